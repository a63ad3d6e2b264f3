package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"docrag/internal/model"
)

type CollectionRepository struct {
	db *gorm.DB
}

func NewCollectionRepository(db *gorm.DB) *CollectionRepository {
	return &CollectionRepository{db: db}
}

func (r *CollectionRepository) Create(ctx context.Context, c *model.Collection) error {
	if err := r.db.WithContext(ctx).Create(c).Error; err != nil {
		return fmt.Errorf("create collection failed: %w", err)
	}
	return nil
}

func (r *CollectionRepository) GetByID(ctx context.Context, id uint) (*model.Collection, error) {
	var c model.Collection
	if err := r.db.WithContext(ctx).First(&c, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get collection failed: %w", err)
	}
	return &c, nil
}

// List returns every collection ordered by name.
func (r *CollectionRepository) List(ctx context.Context) ([]model.Collection, error) {
	var list []model.Collection
	if err := r.db.WithContext(ctx).Order("name ASC, id ASC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list collections failed: %w", err)
	}
	return list, nil
}
