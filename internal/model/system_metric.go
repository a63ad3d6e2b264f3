package model

import "time"

// SystemMetric is a periodic snapshot written by the health checker.
type SystemMetric struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	RecordedAt      time.Time `gorm:"not null;index" json:"recorded_at"`
	ChunksProcessed int64     `json:"chunks_processed"`
	ChunksPending   int64     `json:"chunks_pending"`
	JobsPending     int64     `json:"jobs_pending"`
	JobsProcessing  int64     `json:"jobs_processing"`
	HeapAllocBytes  uint64    `json:"heap_alloc_bytes"`
}
