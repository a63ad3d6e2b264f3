package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"docrag/internal/model"
)

// EmbeddingRepository is the vector store: chunk id -> vector.
type EmbeddingRepository struct {
	db *gorm.DB
}

func NewEmbeddingRepository(db *gorm.DB) *EmbeddingRepository {
	return &EmbeddingRepository{db: db}
}

func (r *EmbeddingRepository) Create(ctx context.Context, emb *model.Embedding) error {
	if err := r.db.WithContext(ctx).Create(emb).Error; err != nil {
		return fmt.Errorf("create embedding failed: %w", err)
	}
	return nil
}

// ListByModel loads every vector produced by the named embedder.
func (r *EmbeddingRepository) ListByModel(ctx context.Context, modelName string) ([]model.Embedding, error) {
	var list []model.Embedding
	if err := r.db.WithContext(ctx).
		Where("model = ?", modelName).
		Order("chunk_id ASC").
		Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list embeddings failed: %w", err)
	}
	return list, nil
}

func (r *EmbeddingRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.Embedding{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count embeddings failed: %w", err)
	}
	return n, nil
}

// CountOtherModels counts vectors not produced by modelName.
func (r *EmbeddingRepository) CountOtherModels(ctx context.Context, modelName string) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.Embedding{}).
		Where("model <> ?", modelName).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count foreign embeddings failed: %w", err)
	}
	return n, nil
}

func (r *EmbeddingRepository) CountByChunk(ctx context.Context, chunkID uint) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.Embedding{}).
		Where("chunk_id = ?", chunkID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count chunk embeddings failed: %w", err)
	}
	return n, nil
}

// DeleteAll removes every stored vector and reports how many were deleted.
func (r *EmbeddingRepository) DeleteAll(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&model.Embedding{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete embeddings failed: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *EmbeddingRepository) DeleteByChunkIDs(ctx context.Context, chunkIDs []uint) error {
	if len(chunkIDs) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Where("chunk_id IN ?", chunkIDs).
		Delete(&model.Embedding{}).Error; err != nil {
		return fmt.Errorf("delete embeddings by chunk failed: %w", err)
	}
	return nil
}
