package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"docrag/internal/model"
)

// maxClaimAttempts bounds how often ClaimNext retries after losing a race.
const maxClaimAttempts = 5

type JobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) Create(ctx context.Context, job *model.JobRecord) error {
	if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
		return fmt.Errorf("create job record failed: %w", err)
	}
	return nil
}

func (r *JobRepository) GetByID(ctx context.Context, id uint) (*model.JobRecord, error) {
	var job model.JobRecord
	if err := r.db.WithContext(ctx).First(&job, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get job record failed: %w", err)
	}
	return &job, nil
}

func (r *JobRepository) GetBySource(ctx context.Context, ref model.SourceRef) (*model.JobRecord, error) {
	var job model.JobRecord
	if err := r.db.WithContext(ctx).
		Where("source_kind = ? AND source_id = ?", ref.Kind, ref.ID).
		Take(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get job record by source failed: %w", err)
	}
	return &job, nil
}

// List returns jobs, newest first. An empty status lists all of them.
func (r *JobRepository) List(ctx context.Context, status model.JobStatus, limit int) ([]model.JobRecord, error) {
	q := r.db.WithContext(ctx).Order("queued_at DESC, id DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var jobs []model.JobRecord
	if err := q.Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("list job records failed: %w", err)
	}
	return jobs, nil
}

// ClaimNext takes ownership of the oldest pending job. The status flip is a
// single conditional UPDATE, so two workers can never claim the same row;
// the loser simply moves on to the next candidate.
func (r *JobRepository) ClaimNext(ctx context.Context, workerID string, now time.Time) (*model.JobRecord, bool, error) {
	for attempt := 0; attempt < maxClaimAttempts; attempt++ {
		var candidate model.JobRecord
		err := r.db.WithContext(ctx).
			Where("status = ?", model.JobPending).
			Order("queued_at ASC, id ASC").
			Take(&candidate).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}
		if err != nil {
			return nil, false, fmt.Errorf("find pending job failed: %w", err)
		}

		res := r.db.WithContext(ctx).Model(&model.JobRecord{}).
			Where("id = ? AND status = ?", candidate.ID, model.JobPending).
			Updates(map[string]any{
				"status":       model.JobProcessing,
				"started_at":   now,
				"heartbeat_at": now,
				"claimed_by":   workerID,
				"attempts":     gorm.Expr("attempts + 1"),
			})
		if res.Error != nil {
			return nil, false, fmt.Errorf("claim job %d failed: %w", candidate.ID, res.Error)
		}
		if res.RowsAffected == 1 {
			if err := candidate.Start(now, workerID); err != nil {
				return nil, false, err
			}
			return &candidate, true, nil
		}
	}
	return nil, false, nil
}

// MarkCompleted completes a processing job in memory and in the store.
func (r *JobRepository) MarkCompleted(ctx context.Context, job *model.JobRecord, now time.Time) error {
	return r.apply(ctx, job, func(j *model.JobRecord) error {
		return j.Complete(now)
	}, "status", "completed_at")
}

// MarkFailed fails a processing job and records why.
func (r *JobRepository) MarkFailed(ctx context.Context, job *model.JobRecord, now time.Time, kind model.FailureKind, message string) error {
	return r.apply(ctx, job, func(j *model.JobRecord) error {
		return j.Fail(now, kind, message)
	}, "status", "completed_at", "error_kind", "error_message")
}

// Reset returns a completed or failed job to pending.
func (r *JobRepository) Reset(ctx context.Context, job *model.JobRecord, now time.Time) error {
	return r.apply(ctx, job, func(j *model.JobRecord) error {
		return j.Reset(now)
	}, "status", "queued_at", "started_at", "heartbeat_at", "completed_at", "error_message", "error_kind", "claimed_by")
}

// apply runs a JobRecord transition and writes the changed columns only if
// the stored row is still in the status the transition started from. On any
// error job is left as it was.
func (r *JobRepository) apply(ctx context.Context, job *model.JobRecord, step func(*model.JobRecord) error, columns ...string) error {
	before := *job
	if err := step(job); err != nil {
		return err
	}
	to := job.Status
	res := r.db.WithContext(ctx).Model(job).
		Where("status = ?", before.Status).
		Select(columns).
		Updates(job)
	if res.Error != nil {
		*job = before
		return fmt.Errorf("move job %d to %s failed: %w", job.ID, to, res.Error)
	}
	if res.RowsAffected == 0 {
		*job = before
		return fmt.Errorf("%w: job %d is no longer %s", model.ErrIllegalTransition, job.ID, before.Status)
	}
	return nil
}

// Heartbeat records that the worker holding the job is still alive. It
// reports false once the job was taken away from workerID.
func (r *JobRepository) Heartbeat(ctx context.Context, id uint, workerID string, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.JobRecord{}).
		Where("id = ? AND status = ? AND claimed_by = ?", id, model.JobProcessing, workerID).
		Update("heartbeat_at", now)
	if res.Error != nil {
		return false, fmt.Errorf("heartbeat job %d failed: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// Release gives back a claim that never started running.
func (r *JobRepository) Release(ctx context.Context, id uint, workerID string) error {
	updates := pendingUpdates(time.Time{})
	delete(updates, "queued_at")
	updates["attempts"] = gorm.Expr("attempts - 1")
	res := r.db.WithContext(ctx).Model(&model.JobRecord{}).
		Where("id = ? AND status = ? AND claimed_by = ?", id, model.JobProcessing, workerID).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("release job %d failed: %w", id, res.Error)
	}
	return nil
}

// RecoverStale puts processing jobs whose last heartbeat is older than the
// cutoff back to pending. Their worker is assumed dead; the job restarts
// from scratch.
func (r *JobRepository) RecoverStale(ctx context.Context, before time.Time) (int64, error) {
	updates := pendingUpdates(time.Time{})
	delete(updates, "queued_at")
	res := r.db.WithContext(ctx).Model(&model.JobRecord{}).
		Where("status = ? AND COALESCE(heartbeat_at, started_at) < ?", model.JobProcessing, before).
		Updates(updates)
	if res.Error != nil {
		return 0, fmt.Errorf("recover stale jobs failed: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *JobRepository) CountByStatus(ctx context.Context) (map[model.JobStatus]int64, error) {
	var rows []struct {
		Status model.JobStatus
		N      int64
	}
	if err := r.db.WithContext(ctx).Model(&model.JobRecord{}).
		Select("status, COUNT(*) AS n").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("count jobs by status failed: %w", err)
	}
	out := map[model.JobStatus]int64{
		model.JobPending:    0,
		model.JobProcessing: 0,
		model.JobCompleted:  0,
		model.JobFailed:     0,
	}
	for _, row := range rows {
		out[row.Status] = row.N
	}
	return out, nil
}

func (r *JobRepository) DeleteBySource(ctx context.Context, ref model.SourceRef) error {
	if err := r.db.WithContext(ctx).
		Where("source_kind = ? AND source_id = ?", ref.Kind, ref.ID).
		Delete(&model.JobRecord{}).Error; err != nil {
		return fmt.Errorf("delete job record failed: %w", err)
	}
	return nil
}

func pendingUpdates(queuedAt time.Time) map[string]any {
	return map[string]any{
		"status":        model.JobPending,
		"queued_at":     queuedAt,
		"started_at":    nil,
		"heartbeat_at":  nil,
		"completed_at":  nil,
		"error_message": "",
		"error_kind":    "",
		"claimed_by":    "",
	}
}
