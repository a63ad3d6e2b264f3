package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"docrag/internal/model"
)

type WebpageRepository struct {
	db *gorm.DB
}

func NewWebpageRepository(db *gorm.DB) *WebpageRepository {
	return &WebpageRepository{db: db}
}

func (r *WebpageRepository) Create(ctx context.Context, page *model.Webpage) error {
	if err := r.db.WithContext(ctx).Create(page).Error; err != nil {
		return fmt.Errorf("create webpage failed: %w", err)
	}
	return nil
}

func (r *WebpageRepository) GetByID(ctx context.Context, id uint) (*model.Webpage, error) {
	var page model.Webpage
	if err := r.db.WithContext(ctx).First(&page, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get webpage failed: %w", err)
	}
	return &page, nil
}

func (r *WebpageRepository) GetByURL(ctx context.Context, url string) (*model.Webpage, error) {
	var page model.Webpage
	if err := r.db.WithContext(ctx).Where("url = ?", url).Take(&page).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get webpage by url failed: %w", err)
	}
	return &page, nil
}

// List returns webpages newest first. A zero collectionID lists all of them.
func (r *WebpageRepository) List(ctx context.Context, collectionID uint, limit int) ([]model.Webpage, error) {
	var list []model.Webpage
	q := r.db.WithContext(ctx).Omit("content").Order("crawled_at DESC")
	if collectionID != 0 {
		q = q.Where("collection_id = ?", collectionID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list webpages failed: %w", err)
	}
	return list, nil
}

// SetContent stores extracted text; an empty title leaves the existing one.
func (r *WebpageRepository) SetContent(ctx context.Context, id uint, title, content string) error {
	updates := map[string]any{"content": content}
	if title != "" {
		updates["title"] = title
	}
	if err := r.db.WithContext(ctx).Model(&model.Webpage{}).Where("id = ?", id).
		Updates(updates).Error; err != nil {
		return fmt.Errorf("store webpage content failed: %w", err)
	}
	return nil
}

func (r *WebpageRepository) MarkProcessed(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Model(&model.Webpage{}).Where("id = ?", id).
		Update("processed", true).Error; err != nil {
		return fmt.Errorf("mark webpage processed failed: %w", err)
	}
	return nil
}

func (r *WebpageRepository) Delete(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Delete(&model.Webpage{}, id).Error; err != nil {
		return fmt.Errorf("delete webpage failed: %w", err)
	}
	return nil
}
