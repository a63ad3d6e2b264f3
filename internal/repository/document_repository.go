package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"docrag/internal/model"
)

type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Create(ctx context.Context, doc *model.Document) error {
	if err := r.db.WithContext(ctx).Create(doc).Error; err != nil {
		return fmt.Errorf("create document failed: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id uint) (*model.Document, error) {
	var doc model.Document
	if err := r.db.WithContext(ctx).First(&doc, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document failed: %w", err)
	}
	return &doc, nil
}

// GetByDOI returns the document owning doi, or nil.
func (r *DocumentRepository) GetByDOI(ctx context.Context, doi string) (*model.Document, error) {
	var doc model.Document
	if err := r.db.WithContext(ctx).Where("doi = ?", doi).Take(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document by doi failed: %w", err)
	}
	return &doc, nil
}

// List returns documents newest first. A zero collectionID lists all of them.
func (r *DocumentRepository) List(ctx context.Context, collectionID uint, limit int) ([]model.Document, error) {
	var list []model.Document
	q := r.db.WithContext(ctx).Omit("full_text").Order("created_at DESC")
	if collectionID != 0 {
		q = q.Where("collection_id = ?", collectionID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list documents failed: %w", err)
	}
	return list, nil
}

// Save writes every column of doc.
func (r *DocumentRepository) Save(ctx context.Context, doc *model.Document) error {
	if err := r.db.WithContext(ctx).Save(doc).Error; err != nil {
		return fmt.Errorf("save document failed: %w", err)
	}
	return nil
}

func (r *DocumentRepository) SetFullText(ctx context.Context, id uint, text string) error {
	if err := r.db.WithContext(ctx).Model(&model.Document{}).Where("id = ?", id).
		Update("full_text", text).Error; err != nil {
		return fmt.Errorf("store document text failed: %w", err)
	}
	return nil
}

func (r *DocumentRepository) MarkProcessed(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Model(&model.Document{}).Where("id = ?", id).
		Update("processed", true).Error; err != nil {
		return fmt.Errorf("mark document processed failed: %w", err)
	}
	return nil
}

func (r *DocumentRepository) Delete(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Delete(&model.Document{}, id).Error; err != nil {
		return fmt.Errorf("delete document failed: %w", err)
	}
	return nil
}

// ListTags returns the raw tags column of every tagged document.
func (r *DocumentRepository) ListTags(ctx context.Context) ([]string, error) {
	var tags []string
	if err := r.db.WithContext(ctx).Model(&model.Document{}).
		Where("tags <> ''").
		Pluck("tags", &tags).Error; err != nil {
		return nil, fmt.Errorf("list document tags failed: %w", err)
	}
	return tags, nil
}
