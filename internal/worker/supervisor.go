package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"docrag/internal/app"
	"docrag/internal/model"
	"docrag/internal/repository"
)

// Runner executes the ingestion pipeline for one claimed job.
type Runner interface {
	Run(ctx context.Context, job *model.JobRecord) app.Result
}

// CacheInvalidator is told when the vector store changed.
type CacheInvalidator interface {
	InvalidateCache(ctx context.Context)
}

type SupervisorOptions struct {
	PollInterval time.Duration
	// Heartbeat is how often a running job is marked alive.
	Heartbeat time.Duration
	// StaleAfter is how long a processing job may go without a heartbeat
	// before its worker is treated as dead.
	StaleAfter time.Duration
}

// Supervisor owns the single ingestion worker loop of this process.
type Supervisor struct {
	jobs        *repository.JobRepository
	runner      Runner
	invalidator CacheInvalidator
	opts        SupervisorOptions
	workerID    string

	mu     sync.Mutex
	parent context.Context
	source *WorkSource
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSupervisor builds a stopped supervisor. invalidator may be nil.
func NewSupervisor(jobs *repository.JobRepository, runner Runner, invalidator CacheInvalidator, opts SupervisorOptions) *Supervisor {
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = 30 * time.Second
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = 4 * opts.Heartbeat
	}
	return &Supervisor{
		jobs:        jobs,
		runner:      runner,
		invalidator: invalidator,
		opts:        opts,
		workerID:    newWorkerID(),
	}
}

func newWorkerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "docrag"
	}
	return fmt.Sprintf("%s-%s", host, uuid.NewString()[:8])
}

func (s *Supervisor) WorkerID() string { return s.workerID }

// Start recovers jobs left processing by a dead worker and launches the
// worker loop. Starting a running supervisor is a no-op. The loop ends when
// ctx is done or Stop is called, whichever comes first.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startLocked(ctx)
}

func (s *Supervisor) startLocked(ctx context.Context) error {
	if s.cancel != nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	cutoff := time.Now().UTC().Add(-s.opts.StaleAfter)
	recovered, err := s.jobs.RecoverStale(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("recover stale jobs failed: %w", err)
	}
	if recovered > 0 {
		slog.Warn("recovered stale jobs", "count", recovered, "silent_since", cutoff)
	}

	runCtx, cancel := context.WithCancel(ctx)
	source := NewWorkSource(s.jobs, s.workerID, s.opts.PollInterval)
	done := make(chan struct{})

	s.parent = ctx
	s.source = source
	s.cancel = cancel
	s.done = done

	go source.Run(runCtx)
	go func() {
		for job := range source.Jobs() {
			s.process(runCtx, job)
		}
		// the loop may end on its own when the parent ctx is cancelled
		s.mu.Lock()
		if s.done == done {
			s.cancel = nil
			s.done = nil
			s.source = nil
		}
		s.mu.Unlock()
		cancel()
		close(done)
	}()

	slog.Info("ingestion worker started", "worker_id", s.workerID)
	return nil
}

// Stop cancels the loop and waits for the current job to finish.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Supervisor) stopLocked() bool {
	cancel, done := s.cancel, s.done
	if cancel == nil {
		return false
	}
	cancel()
	// the loop goroutine clears its own state, which needs mu
	s.mu.Unlock()
	<-done
	s.mu.Lock()
	slog.Info("ingestion worker stopped", "worker_id", s.workerID)
	return true
}

// Pause stops the loop and reports whether it was running. Resume restarts
// it under the context Start was given.
func (s *Supervisor) Pause() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopLocked()
}

func (s *Supervisor) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.parent == nil || s.parent.Err() != nil {
		return nil
	}
	return s.startLocked(s.parent)
}

func (s *Supervisor) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Nudge wakes the worker to look for pending jobs.
func (s *Supervisor) Nudge() {
	s.mu.Lock()
	source := s.source
	s.mu.Unlock()
	if source != nil {
		source.Nudge()
	}
}

// process runs one job and records its outcome. A failure never stops the
// loop.
func (s *Supervisor) process(ctx context.Context, job *model.JobRecord) {
	log := slog.With("job_id", job.ID, "source", job.Source().String(), "worker_id", s.workerID)
	started := time.Now()

	beatCtx, stopBeat := context.WithCancel(ctx)
	beating := make(chan struct{})
	go func() {
		defer close(beating)
		s.heartbeat(beatCtx, job.ID, log)
	}()
	res := s.runner.Run(ctx, job)
	stopBeat()
	<-beating

	// outcome writes must land even while shutting down
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	switch {
	case res.OK():
		if err := s.jobs.MarkCompleted(writeCtx, job, time.Now().UTC()); err != nil {
			log.Error("mark job completed failed", "error", err)
			return
		}
		log.Info("job completed",
			"chunks", res.Stats.Chunks, "embeddings", res.Stats.Embeddings,
			"characters", res.Stats.Characters, "elapsed", time.Since(started))
	case ctx.Err() != nil:
		// interrupted by shutdown, not by the job itself
		if err := s.jobs.Release(writeCtx, job.ID, s.workerID); err != nil {
			log.Error("release interrupted job failed", "error", err)
			return
		}
		log.Warn("job interrupted by shutdown, released", "reason", res.Failure.Message)
		return
	default:
		if err := s.jobs.MarkFailed(writeCtx, job, time.Now().UTC(), res.Failure.Kind, res.Failure.Message); err != nil {
			log.Error("mark job failed failed", "error", err)
			return
		}
		log.Error("job failed", "kind", res.Failure.Kind, "error", res.Failure.Message)
	}

	if s.invalidator != nil {
		s.invalidator.InvalidateCache(writeCtx)
	}
}

// heartbeat keeps the claim on a running job fresh until ctx is done.
func (s *Supervisor) heartbeat(ctx context.Context, id uint, log *slog.Logger) {
	ticker := time.NewTicker(s.opts.Heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		alive, err := s.jobs.Heartbeat(ctx, id, s.workerID, time.Now().UTC())
		switch {
		case err != nil && ctx.Err() == nil:
			log.Warn("job heartbeat failed", "error", err)
		case err == nil && !alive:
			log.Warn("job claim lost while running")
			return
		}
	}
}
