package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

type fakeCleaner struct {
	olderThan time.Duration
	pruned    int64
	err       error
}

func (f *fakeCleaner) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	f.olderThan = olderThan
	return f.pruned, f.err
}

type fakeSweeper struct {
	cutoff   time.Time
	archived int
	err      error
}

func (f *fakeSweeper) SweepStaleDrafts(ctx context.Context, cutoff time.Time) (int, error) {
	f.cutoff = cutoff
	return f.archived, f.err
}

func TestIdempotencyCleanupUsesPayloadRetention(t *testing.T) {
	cleaner := &fakeCleaner{pruned: 3}
	job := NewIdempotencyCleanupJob(cleaner, 72*time.Hour, nil, nil)

	task, err := NewIdempotencyCleanupTask(IdempotencyCleanupPayload{Retention: time.Hour})
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, time.Hour, cleaner.olderThan)
}

func TestIdempotencyCleanupFallsBackToConfiguredRetention(t *testing.T) {
	cleaner := &fakeCleaner{}
	job := NewIdempotencyCleanupJob(cleaner, 48*time.Hour, nil, nil)

	task, err := NewIdempotencyCleanupTask(IdempotencyCleanupPayload{})
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 48*time.Hour, cleaner.olderThan)
}

func TestIdempotencyCleanupSkipsRetryOnBadPayload(t *testing.T) {
	job := NewIdempotencyCleanupJob(&fakeCleaner{}, 0, nil, nil)
	err := job.Handle(context.Background(), asynq.NewTask(TaskIdempotencyCleanup, []byte("not json")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestDraftSweepComputesCutoffFromMaxAge(t *testing.T) {
	sweeper := &fakeSweeper{archived: 2}
	job := NewDraftSweepJob(sweeper, 720*time.Hour, nil, nil)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	job.clock = func() time.Time { return now }

	task, err := NewDraftSweepTask(DraftSweepPayload{})
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, now.Add(-720*time.Hour), sweeper.cutoff)
}

func TestDraftSweepPayloadOverridesMaxAge(t *testing.T) {
	sweeper := &fakeSweeper{}
	job := NewDraftSweepJob(sweeper, 720*time.Hour, nil, nil)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	job.clock = func() time.Time { return now }

	task, err := NewDraftSweepTask(DraftSweepPayload{MaxAge: 24 * time.Hour})
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, now.Add(-24*time.Hour), sweeper.cutoff)
}

func TestDraftSweepPropagatesSweepError(t *testing.T) {
	sweeper := &fakeSweeper{err: context.DeadlineExceeded}
	job := NewDraftSweepJob(sweeper, time.Hour, nil, nil)

	task, err := NewDraftSweepTask(DraftSweepPayload{})
	require.NoError(t, err)

	require.ErrorIs(t, job.Handle(context.Background(), task), context.DeadlineExceeded)
}
