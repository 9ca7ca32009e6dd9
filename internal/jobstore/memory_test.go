package jobstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newJob(id string, created time.Time, ttl time.Duration) Job {
	return Job{
		ID:        id,
		Kind:      KindPDFAnalysis,
		Status:    StatusPending,
		Input:     Input{URL: "http://files.example.com/" + id + ".pdf"},
		CreatedAt: created,
		ExpiresAt: created.Add(ttl),
	}
}

func TestClaimNextOldestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	base := time.Now()

	require.NoError(t, s.Put(ctx, newJob("b", base.Add(time.Second), time.Hour)))
	require.NoError(t, s.Put(ctx, newJob("a", base, time.Hour)))
	require.NoError(t, s.Put(ctx, newJob("c", base.Add(2*time.Second), time.Hour)))

	for _, want := range []string{"a", "b", "c"} {
		job, ok, err := s.ClaimNext(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, want, job.ID)
		require.Equal(t, StatusRunning, job.Status)
		require.NotNil(t, job.StartedAt)
	}

	_, ok, err := s.ClaimNext(ctx)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestClaimNextIsExclusive(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Put(ctx, newJob("only", time.Now(), time.Hour)))

	_, ok, err := s.ClaimNext(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	// claimed jobs are running, not pending, so a second claim finds nothing
	_, ok, err = s.ClaimNext(ctx)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestClaimNextSkipsAndDeletesExpired(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	base := time.Now()
	clock := base
	s.SetClock(func() time.Time { return clock })

	require.NoError(t, s.Put(ctx, newJob("old", base.Add(-time.Minute), time.Second)))
	require.NoError(t, s.Put(ctx, newJob("fresh", base, time.Hour)))

	clock = base.Add(time.Minute)
	job, ok, err := s.ClaimNext(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "fresh", job.ID)

	// the expired job was purged during the claim, so it is gone entirely
	_, err = s.Get(ctx, "old")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGetExpiredThenNotFound(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	base := time.Now()
	clock := base
	s.SetClock(func() time.Time { return clock })

	require.NoError(t, s.Put(ctx, newJob("j", base, 2*time.Hour)))

	clock = base.Add(time.Hour)
	_, err := s.Get(ctx, "j")
	require.NoError(t, err)

	clock = base.Add(3 * time.Hour)
	_, err = s.Get(ctx, "j")
	require.ErrorIs(t, err, ErrExpired)

	// the first expired observation purged the record
	_, err = s.Get(ctx, "j")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPutKeepsRunningProgressMonotonic(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	job := newJob("j", time.Now(), time.Hour)
	require.NoError(t, s.Put(ctx, job))

	claimed, ok, err := s.ClaimNext(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	claimed.Progress = 60
	require.NoError(t, s.Put(ctx, claimed))

	stale := claimed
	stale.Progress = 25
	require.NoError(t, s.Put(ctx, stale))

	got, err := s.Get(ctx, "j")
	require.NoError(t, err)
	require.Equal(t, 60, got.Progress)

	// terminal transitions may advance progress
	done := got
	done.Status = StatusCompleted
	done.Progress = 100
	require.NoError(t, s.Put(ctx, done))
	got, err = s.Get(ctx, "j")
	require.NoError(t, err)
	require.Equal(t, 100, got.Progress)
	require.True(t, got.Terminal())
}

func TestPutFailedNeverRegressesProgress(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Put(ctx, newJob("j", time.Now(), time.Hour)))
	claimed, ok, err := s.ClaimNext(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	claimed.Progress = 25
	require.NoError(t, s.Put(ctx, claimed))

	// a failure write built from the claim-time copy still has progress 0;
	// the stored record must keep the milestone a poller already saw
	failed := claimed
	failed.Status = StatusFailed
	failed.Progress = 0
	failed.Error = "download_failed: connection reset"
	require.NoError(t, s.Put(ctx, failed))

	got, err := s.Get(ctx, "j")
	require.NoError(t, err)
	require.Equal(t, StatusFailed, got.Status)
	require.Equal(t, 25, got.Progress)
}

func TestDeleteMissingIsNoError(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Delete(context.Background(), "ghost"))
}
