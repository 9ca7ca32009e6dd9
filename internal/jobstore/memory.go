package jobstore

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is the default single-process Store. All coordination between
// the gateway, pollers and the worker goes through its mutex.
type MemoryStore struct {
	mu   sync.Mutex
	jobs map[string]Job
	now  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]Job), now: time.Now}
}

// SetClock overrides the store's clock, used by expiry tests.
func (s *MemoryStore) SetClock(now func() time.Time) { s.now = now }

func (s *MemoryStore) Put(ctx context.Context, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.jobs[job.ID]; ok {
		job.Progress = clampProgress(prev, job)
	}
	s.jobs[job.ID] = job
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	if job.Expired(s.now()) {
		delete(s.jobs, id)
		return Job{}, ErrExpired
	}
	return job, nil
}

func (s *MemoryStore) ClaimNext(ctx context.Context) (Job, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for {
		oldest, ok := s.oldestPending()
		if !ok {
			return Job{}, false, nil
		}
		if oldest.Expired(now) {
			delete(s.jobs, oldest.ID)
			continue
		}
		oldest.Status = StatusRunning
		started := now
		oldest.StartedAt = &started
		s.jobs[oldest.ID] = oldest
		return oldest, true, nil
	}
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
	return nil
}

// Ping satisfies health checks; the in-process store is always reachable.
func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

// QueueDepth returns the number of pending jobs, for metrics.
func (s *MemoryStore) QueueDepth(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, j := range s.jobs {
		if j.Status == StatusPending {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) oldestPending() (Job, bool) {
	var best Job
	found := false
	for _, j := range s.jobs {
		if j.Status != StatusPending {
			continue
		}
		if !found || j.CreatedAt.Before(best.CreatedAt) {
			best = j
			found = true
		}
	}
	return best, found
}

// clampProgress keeps a job's stored progress non-decreasing, so neither a
// stale milestone write nor a terminal write can move a poller backwards.
func clampProgress(prev, next Job) int {
	if next.Progress < prev.Progress {
		return prev.Progress
	}
	return next.Progress
}
