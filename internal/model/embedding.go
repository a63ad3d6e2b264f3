package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Embedding stores the vector of exactly one chunk.
// Vector is persisted as a JSON array of float32 for portability across drivers.
type Embedding struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ChunkID   uint      `gorm:"not null;uniqueIndex" json:"chunk_id"`
	Model     string    `gorm:"size:64;not null;index" json:"model"`
	Dimension int       `gorm:"not null" json:"dimension"`
	Vector    string    `gorm:"type:mediumtext;not null" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// Values decodes the stored vector.
func (e *Embedding) Values() ([]float32, error) {
	if e.Vector == "" {
		return nil, nil
	}
	var v []float32
	if err := json.Unmarshal([]byte(e.Vector), &v); err != nil {
		return nil, fmt.Errorf("decode embedding %d failed: %w", e.ID, err)
	}
	return v, nil
}

// SetValues encodes vec into the Vector column and records its dimension.
func (e *Embedding) SetValues(vec []float32) error {
	if vec == nil {
		vec = []float32{}
	}
	b, err := json.Marshal(vec)
	if err != nil {
		return fmt.Errorf("encode embedding failed: %w", err)
	}
	e.Vector = string(b)
	e.Dimension = len(vec)
	return nil
}
