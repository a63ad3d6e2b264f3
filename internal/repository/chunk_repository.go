package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"docrag/internal/model"
)

type ChunkRepository struct {
	db *gorm.DB
}

func NewChunkRepository(db *gorm.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

func (r *ChunkRepository) CreateBatch(ctx context.Context, chunks []model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).CreateInBatches(&chunks, 200).Error; err != nil {
		return fmt.Errorf("create chunks batch failed: %w", err)
	}
	return nil
}

// Create inserts one chunk; chunk.ID is populated on success.
func (r *ChunkRepository) Create(ctx context.Context, chunk *model.Chunk) error {
	if err := r.db.WithContext(ctx).Create(chunk).Error; err != nil {
		return fmt.Errorf("create chunk failed: %w", err)
	}
	return nil
}

func (r *ChunkRepository) ListBySource(ctx context.Context, ref model.SourceRef) ([]model.Chunk, error) {
	var chunks []model.Chunk
	if err := r.db.WithContext(ctx).
		Where("source_kind = ? AND source_id = ?", ref.Kind, ref.ID).
		Order("chunk_index ASC").
		Find(&chunks).Error; err != nil {
		return nil, fmt.Errorf("list chunks by source failed: %w", err)
	}
	return chunks, nil
}

// ListByIDs returns the chunks for ids keyed by id.
func (r *ChunkRepository) ListByIDs(ctx context.Context, ids []uint) (map[uint]model.Chunk, error) {
	out := make(map[uint]model.Chunk, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var chunks []model.Chunk
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&chunks).Error; err != nil {
		return nil, fmt.Errorf("list chunks by ids failed: %w", err)
	}
	for _, c := range chunks {
		out[c.ID] = c
	}
	return out, nil
}

// ListPage walks chunks in id order; pass the last seen id as afterID.
func (r *ChunkRepository) ListPage(ctx context.Context, afterID uint, limit int) ([]model.Chunk, error) {
	var chunks []model.Chunk
	if err := r.db.WithContext(ctx).
		Where("id > ?", afterID).
		Order("id ASC").
		Limit(limit).
		Find(&chunks).Error; err != nil {
		return nil, fmt.Errorf("list chunks page failed: %w", err)
	}
	return chunks, nil
}

func (r *ChunkRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.Chunk{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count chunks failed: %w", err)
	}
	return n, nil
}

// SourceChunkIDs returns the ids of every chunk of ref.
func (r *ChunkRepository) SourceChunkIDs(ctx context.Context, ref model.SourceRef) ([]uint, error) {
	var ids []uint
	if err := r.db.WithContext(ctx).Model(&model.Chunk{}).
		Where("source_kind = ? AND source_id = ?", ref.Kind, ref.ID).
		Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list chunk ids by source failed: %w", err)
	}
	return ids, nil
}

// DeleteBySource removes chunks of ref; embeddings must be deleted first.
func (r *ChunkRepository) DeleteBySource(ctx context.Context, ref model.SourceRef) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("source_kind = ? AND source_id = ?", ref.Kind, ref.ID).
		Delete(&model.Chunk{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete chunks by source failed: %w", res.Error)
	}
	return res.RowsAffected, nil
}
