package repository_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/model"
	"docrag/internal/repository"
	"docrag/internal/testutil"
)

func newPendingJob(t *testing.T, repo *repository.JobRepository, id uint, queuedAt time.Time) *model.JobRecord {
	t.Helper()
	job := &model.JobRecord{
		SourceKind: model.SourceDocument,
		SourceID:   id,
		Status:     model.JobPending,
		QueuedAt:   queuedAt,
	}
	require.NoError(t, repo.Create(context.Background(), job))
	return job
}

func TestJobRepository_ClaimNextOldestFirst(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewJobRepository(testutil.NewDB(t))
	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	second := newPendingJob(t, repo, 2, base.Add(time.Minute))
	first := newPendingJob(t, repo, 1, base)

	job, ok, err := repo.ClaimNext(ctx, "worker-a", base.Add(time.Hour))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, first.ID, job.ID)
	assert.Equal(t, model.JobProcessing, job.Status)
	require.NotNil(t, job.StartedAt)
	assert.Equal(t, "worker-a", job.ClaimedBy)
	assert.Equal(t, 1, job.Attempts)

	stored, err := repo.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobProcessing, stored.Status)
	assert.NotNil(t, stored.StartedAt)
	assert.Nil(t, stored.CompletedAt)

	job, ok, err = repo.ClaimNext(ctx, "worker-a", base.Add(time.Hour))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, second.ID, job.ID)

	_, ok, err = repo.ClaimNext(ctx, "worker-a", base.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestJobRepository_ConcurrentClaimsNeverShareAJob(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewJobRepository(testutil.NewDB(t))
	now := time.Now().UTC()
	for i := 1; i <= 20; i++ {
		newPendingJob(t, repo, uint(i), now)
	}

	var (
		mu      sync.Mutex
		claimed = map[uint]string{}
		wg      sync.WaitGroup
	)
	for _, worker := range []string{"w1", "w2", "w3", "w4"} {
		wg.Add(1)
		go func(worker string) {
			defer wg.Done()
			for {
				job, ok, err := repo.ClaimNext(ctx, worker, time.Now().UTC())
				if err != nil || !ok {
					return
				}
				mu.Lock()
				_, dup := claimed[job.ID]
				assert.False(t, dup, "job %d claimed twice", job.ID)
				claimed[job.ID] = worker
				mu.Unlock()
			}
		}(worker)
	}
	wg.Wait()
	assert.Len(t, claimed, 20)
}

func TestJobRepository_TerminalTransitions(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewJobRepository(testutil.NewDB(t))
	now := time.Now().UTC()
	job := newPendingJob(t, repo, 1, now)

	// not yet processing
	err := repo.MarkCompleted(ctx, job, now)
	assert.ErrorIs(t, err, model.ErrIllegalTransition)
	assert.Equal(t, model.JobPending, job.Status)

	claimed, ok, err := repo.ClaimNext(ctx, "w", now)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, repo.MarkFailed(ctx, claimed, now, model.FailureExtraction, "no text"))
	assert.Equal(t, model.JobFailed, claimed.Status)
	stored, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobFailed, stored.Status)
	assert.Equal(t, "no text", stored.ErrorMessage)
	assert.Equal(t, model.FailureExtraction, stored.ErrorKind)
	assert.NotNil(t, stored.CompletedAt)

	// failed jobs stay failed until reset
	assert.ErrorIs(t, repo.MarkCompleted(ctx, stored, now), model.ErrIllegalTransition)
	_, ok, err = repo.ClaimNext(ctx, "w", now)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.Reset(ctx, stored, now.Add(time.Second)))
	assert.Equal(t, model.JobPending, stored.Status)
	stored, err = repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobPending, stored.Status)
	assert.Nil(t, stored.StartedAt)
	assert.Nil(t, stored.HeartbeatAt)
	assert.Nil(t, stored.CompletedAt)
	assert.Empty(t, stored.ErrorMessage)
	assert.Empty(t, stored.ErrorKind)
	assert.Empty(t, stored.ClaimedBy)

	assert.ErrorIs(t, repo.Reset(ctx, stored, now), model.ErrIllegalTransition)
}

func TestJobRepository_TransitionLosesToConcurrentChange(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewJobRepository(testutil.NewDB(t))
	now := time.Now().UTC()
	newPendingJob(t, repo, 1, now)

	claimed, ok, err := repo.ClaimNext(ctx, "w", now)
	require.NoError(t, err)
	require.True(t, ok)

	// another process recovered the job behind this worker's back
	n, err := repo.RecoverStale(ctx, now.Add(time.Minute))
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	err = repo.MarkCompleted(ctx, claimed, now)
	assert.ErrorIs(t, err, model.ErrIllegalTransition)
	assert.Equal(t, model.JobProcessing, claimed.Status, "in-memory record is restored")
	assert.Nil(t, claimed.CompletedAt)

	stored, err := repo.GetByID(ctx, claimed.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobPending, stored.Status)
	assert.Nil(t, stored.CompletedAt)
}

func TestJobRepository_HeartbeatKeepsJobAlive(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewJobRepository(testutil.NewDB(t))
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	newPendingJob(t, repo, 1, start)

	job, ok, err := repo.ClaimNext(ctx, "w1", start)
	require.NoError(t, err)
	require.True(t, ok)

	alive, err := repo.Heartbeat(ctx, job.ID, "w1", start.Add(10*time.Minute))
	require.NoError(t, err)
	assert.True(t, alive)

	// started long ago but beat recently
	n, err := repo.RecoverStale(ctx, start.Add(5*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	alive, err = repo.Heartbeat(ctx, job.ID, "someone-else", start.Add(11*time.Minute))
	require.NoError(t, err)
	assert.False(t, alive)

	n, err = repo.RecoverStale(ctx, start.Add(20*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	stored, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobPending, stored.Status)
	assert.Nil(t, stored.HeartbeatAt)

	alive, err = repo.Heartbeat(ctx, job.ID, "w1", start.Add(21*time.Minute))
	require.NoError(t, err)
	assert.False(t, alive)
}

func TestJobRepository_ReleaseAndRecover(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewJobRepository(testutil.NewDB(t))
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	a := newPendingJob(t, repo, 1, start)
	b := newPendingJob(t, repo, 2, start.Add(time.Second))

	_, _, err := repo.ClaimNext(ctx, "w1", start)
	require.NoError(t, err)
	require.NoError(t, repo.Release(ctx, a.ID, "w1"))
	stored, err := repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobPending, stored.Status)
	assert.Nil(t, stored.StartedAt)
	assert.Equal(t, 0, stored.Attempts)

	_, _, err = repo.ClaimNext(ctx, "w1", start)
	require.NoError(t, err)
	_, _, err = repo.ClaimNext(ctx, "w1", start.Add(time.Hour))
	require.NoError(t, err)

	n, err := repo.RecoverStale(ctx, start.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	stored, err = repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobPending, stored.Status)
	stored, err = repo.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobProcessing, stored.Status)

	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[model.JobPending])
	assert.Equal(t, int64(1), counts[model.JobProcessing])
	assert.Equal(t, int64(0), counts[model.JobFailed])
}

func TestJobRepository_OneRecordPerSource(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewJobRepository(testutil.NewDB(t))
	newPendingJob(t, repo, 7, time.Now().UTC())

	dup := &model.JobRecord{SourceKind: model.SourceDocument, SourceID: 7, Status: model.JobPending, QueuedAt: time.Now().UTC()}
	assert.Error(t, repo.Create(ctx, dup))

	other := &model.JobRecord{SourceKind: model.SourceWebpage, SourceID: 7, Status: model.JobPending, QueuedAt: time.Now().UTC()}
	assert.NoError(t, repo.Create(ctx, other))

	got, err := repo.GetBySource(ctx, model.SourceRef{Kind: model.SourceWebpage, ID: 7})
	require.NoError(t, err)
	assert.Equal(t, other.ID, got.ID)

	missing, err := repo.GetByID(ctx, 999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}
