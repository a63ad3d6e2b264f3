package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"docrag/internal/model"
)

type MetricRepository struct {
	db *gorm.DB
}

func NewMetricRepository(db *gorm.DB) *MetricRepository {
	return &MetricRepository{db: db}
}

func (r *MetricRepository) Create(ctx context.Context, m *model.SystemMetric) error {
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("create system metric failed: %w", err)
	}
	return nil
}

func (r *MetricRepository) Latest(ctx context.Context) (*model.SystemMetric, error) {
	var m model.SystemMetric
	if err := r.db.WithContext(ctx).Order("recorded_at DESC, id DESC").Take(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get latest system metric failed: %w", err)
	}
	return &m, nil
}

// ListSince returns snapshots recorded at or after since, oldest first.
func (r *MetricRepository) ListSince(ctx context.Context, since time.Time, limit int) ([]model.SystemMetric, error) {
	if limit <= 0 || limit > 10000 {
		limit = 1000
	}
	var list []model.SystemMetric
	if err := r.db.WithContext(ctx).
		Where("recorded_at >= ?", since).
		Order("recorded_at ASC, id ASC").
		Limit(limit).
		Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list system metrics failed: %w", err)
	}
	return list, nil
}

// DeleteBefore prunes snapshots older than cutoff.
func (r *MetricRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("recorded_at < ?", cutoff).Delete(&model.SystemMetric{})
	if res.Error != nil {
		return 0, fmt.Errorf("prune system metrics failed: %w", res.Error)
	}
	return res.RowsAffected, nil
}
