package worker

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"docrag/internal/model"
	"docrag/internal/repository"
)

// Nudger wakes an idle worker.
type Nudger interface {
	Nudge()
}

type HealthOptions struct {
	Interval  time.Duration
	Retention time.Duration
	// StaleAfter is the heartbeat silence after which a processing job is
	// handed back to pending. Zero leaves processing jobs alone.
	StaleAfter time.Duration
}

// HealthChecker periodically looks at the job table, recovers jobs whose
// worker died, kicks the worker when work is waiting and nothing runs, and
// records a SystemMetric snapshot.
type HealthChecker struct {
	jobs    *repository.JobRepository
	chunks  *repository.ChunkRepository
	embs    *repository.EmbeddingRepository
	metrics *repository.MetricRepository
	nudger  Nudger
	opts    HealthOptions
	now     func() time.Time
}

func NewHealthChecker(
	jobs *repository.JobRepository,
	chunks *repository.ChunkRepository,
	embs *repository.EmbeddingRepository,
	metrics *repository.MetricRepository,
	nudger Nudger,
	opts HealthOptions,
) *HealthChecker {
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	if opts.Retention <= 0 {
		opts.Retention = 24 * time.Hour
	}
	return &HealthChecker{
		jobs:    jobs,
		chunks:  chunks,
		embs:    embs,
		metrics: metrics,
		nudger:  nudger,
		opts:    opts,
		now:     time.Now,
	}
}

// Run checks once right away and then on every interval until ctx is done.
func (h *HealthChecker) Run(ctx context.Context) {
	ticker := time.NewTicker(h.opts.Interval)
	defer ticker.Stop()
	for {
		if _, err := h.Check(ctx); err != nil && ctx.Err() == nil {
			slog.Error("health check failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Check runs one health pass and returns the snapshot it stored.
func (h *HealthChecker) Check(ctx context.Context) (*model.SystemMetric, error) {
	now := h.now().UTC()
	if h.opts.StaleAfter > 0 {
		cutoff := now.Add(-h.opts.StaleAfter)
		recovered, err := h.jobs.RecoverStale(ctx, cutoff)
		if err != nil {
			return nil, err
		}
		if recovered > 0 {
			slog.Warn("recovered jobs with silent workers", "count", recovered, "silent_since", cutoff)
		}
	}

	counts, err := h.jobs.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	pending, processing := counts[model.JobPending], counts[model.JobProcessing]
	if processing == 0 && pending > 0 && h.nudger != nil {
		slog.Info("pending jobs with idle worker, nudging", "pending", pending)
		h.nudger.Nudge()
	}

	totalChunks, err := h.chunks.Count(ctx)
	if err != nil {
		return nil, err
	}
	embedded, err := h.embs.Count(ctx)
	if err != nil {
		return nil, err
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	snapshot := &model.SystemMetric{
		RecordedAt:      now,
		ChunksProcessed: embedded,
		ChunksPending:   max(totalChunks-embedded, 0),
		JobsPending:     pending,
		JobsProcessing:  processing,
		HeapAllocBytes:  mem.HeapAlloc,
	}
	if err := h.metrics.Create(ctx, snapshot); err != nil {
		return nil, err
	}

	pruned, err := h.metrics.DeleteBefore(ctx, now.Add(-h.opts.Retention))
	if err != nil {
		return snapshot, fmt.Errorf("prune metrics failed: %w", err)
	}
	if pruned > 0 {
		slog.Debug("pruned old system metrics", "count", pruned)
	}
	return snapshot, nil
}
