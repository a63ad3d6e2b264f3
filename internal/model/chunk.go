package model

import "time"

// Chunk is a contiguous slice of a source item's normalized text.
// ChunkIndex is 0-based and unique per source.
type Chunk struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	SourceKind SourceKind `gorm:"size:16;not null;uniqueIndex:idx_chunk_source_index,priority:1" json:"source_kind"`
	SourceID   uint       `gorm:"not null;uniqueIndex:idx_chunk_source_index,priority:2" json:"source_id"`
	ChunkIndex int        `gorm:"not null;uniqueIndex:idx_chunk_source_index,priority:3" json:"chunk_index"`
	Text       string     `gorm:"type:text;not null" json:"text"`
	CreatedAt  time.Time  `json:"created_at"`
}

func (c *Chunk) Source() SourceRef {
	return SourceRef{Kind: c.SourceKind, ID: c.SourceID}
}
