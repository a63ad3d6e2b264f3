package worker

import (
	"context"
	"log/slog"
	"time"

	"docrag/internal/model"
	"docrag/internal/repository"
)

// WorkSource claims pending jobs from the job table and hands them out one at
// a time. The table is the source of truth; Nudge and the poll tick only say
// when to look again.
type WorkSource struct {
	jobs     *repository.JobRepository
	workerID string
	interval time.Duration

	wake chan struct{}
	out  chan *model.JobRecord
}

func NewWorkSource(jobs *repository.JobRepository, workerID string, interval time.Duration) *WorkSource {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &WorkSource{
		jobs:     jobs,
		workerID: workerID,
		interval: interval,
		wake:     make(chan struct{}, 1),
		out:      make(chan *model.JobRecord),
	}
}

// Jobs is closed when Run returns.
func (s *WorkSource) Jobs() <-chan *model.JobRecord {
	return s.out
}

// Nudge asks for an immediate poll. It never blocks.
func (s *WorkSource) Nudge() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Run polls until ctx is done.
func (s *WorkSource) Run(ctx context.Context) {
	defer close(s.out)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if !s.drain(ctx) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-s.wake:
		case <-ticker.C:
		}
	}
}

// drain hands out claimed jobs until none are pending. It reports false once
// ctx is done.
func (s *WorkSource) drain(ctx context.Context) bool {
	for {
		if ctx.Err() != nil {
			return false
		}
		job, ok, err := s.jobs.ClaimNext(ctx, s.workerID, time.Now().UTC())
		if err != nil {
			if ctx.Err() == nil {
				slog.Error("claim next job failed", "worker_id", s.workerID, "error", err)
			}
			return ctx.Err() == nil
		}
		if !ok {
			return true
		}

		select {
		case s.out <- job:
		case <-ctx.Done():
			s.release(job)
			return false
		}
	}
}

func (s *WorkSource) release(job *model.JobRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.jobs.Release(ctx, job.ID, s.workerID); err != nil {
		slog.Error("release claimed job failed", "job_id", job.ID, "error", err)
		return
	}
	slog.Info("claimed job released on shutdown", "job_id", job.ID)
}
