package app

import (
	"context"
	"time"

	"docrag/internal/model"
	"docrag/internal/repository"
)

const defaultMetricsWindow = 24 * time.Hour

// MonitorService exposes the recorded health snapshots and a live view of
// the job queue.
type MonitorService struct {
	jobRepo    *repository.JobRepository
	chunkRepo  *repository.ChunkRepository
	embRepo    *repository.EmbeddingRepository
	metricRepo *repository.MetricRepository
}

// QueueStats counts jobs per status and chunks per embedding state.
type QueueStats struct {
	Jobs             map[model.JobStatus]int64 `json:"jobs"`
	Chunks           int64                     `json:"chunks"`
	ChunksEmbedded   int64                     `json:"chunks_embedded"`
	ChunksUnembedded int64                     `json:"chunks_unembedded"`
}

func NewMonitorService(
	jobRepo *repository.JobRepository,
	chunkRepo *repository.ChunkRepository,
	embRepo *repository.EmbeddingRepository,
	metricRepo *repository.MetricRepository,
) *MonitorService {
	return &MonitorService{
		jobRepo:    jobRepo,
		chunkRepo:  chunkRepo,
		embRepo:    embRepo,
		metricRepo: metricRepo,
	}
}

// History returns the snapshots recorded since the given time, oldest first.
// A zero since covers the last day.
func (s *MonitorService) History(ctx context.Context, since time.Time, limit int) ([]model.SystemMetric, error) {
	if since.IsZero() {
		since = time.Now().UTC().Add(-defaultMetricsWindow)
	}
	return s.metricRepo.ListSince(ctx, since.UTC(), limit)
}

func (s *MonitorService) Queue(ctx context.Context) (*QueueStats, error) {
	jobs, err := s.jobRepo.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	chunks, err := s.chunkRepo.Count(ctx)
	if err != nil {
		return nil, err
	}
	embedded, err := s.embRepo.Count(ctx)
	if err != nil {
		return nil, err
	}
	return &QueueStats{
		Jobs:             jobs,
		Chunks:           chunks,
		ChunksEmbedded:   embedded,
		ChunksUnembedded: max(chunks-embedded, 0),
	}, nil
}

// ParseSince accepts an RFC 3339 time or a duration such as "6h" counted
// back from now. Empty means the default window.
func ParseSince(raw string, now time.Time) (time.Time, error) {
	if raw == "" {
		return now.Add(-defaultMetricsWindow), nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return time.Time{}, ErrInvalidInput
	}
	return now.Add(-d), nil
}
