package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"docrag/internal/model"
)

type QueryHistoryRepository struct {
	db *gorm.DB
}

func NewQueryHistoryRepository(db *gorm.DB) *QueryHistoryRepository {
	return &QueryHistoryRepository{db: db}
}

func (r *QueryHistoryRepository) Create(ctx context.Context, h *model.QueryHistory) error {
	if err := r.db.WithContext(ctx).Create(h).Error; err != nil {
		return fmt.Errorf("create query history failed: %w", err)
	}
	return nil
}

// ListByConversation returns the newest limit entries of a conversation,
// oldest first.
func (r *QueryHistoryRepository) ListByConversation(ctx context.Context, conversationID string, limit int) ([]model.QueryHistory, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	var list []model.QueryHistory
	if err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list query history failed: %w", err)
	}
	for i, j := 0, len(list)-1; i < j; i, j = i+1, j-1 {
		list[i], list[j] = list[j], list[i]
	}
	return list, nil
}
