package jobstore

import (
    "context"
    "encoding/json"
    "fmt"
    "time"

    redis "github.com/redis/go-redis/v9"
    "github.com/rs/zerolog/log"
)

const (
    jobKeyPrefix = "quote:job:"
    pendingKey   = "quote:jobs:pending"

    // ttlGrace keeps the raw record around a little past logical expiry so
    // the first poller after the deadline can still observe "expired"
    // rather than "not found".
    ttlGrace = time.Hour
)

// RedisStore persists jobs as JSON blobs with a sorted-set pending queue
// scored by creation time. ZPOPMIN makes claims exclusive, so a pool of
// workers could drain the same queue without contract changes.
type RedisStore struct {
    client *redis.Client
}

func NewRedisStore(redisURL string) (*RedisStore, error) {
    opt, err := redis.ParseURL(redisURL)
    if err != nil { return nil, fmt.Errorf("parse redis url: %w", err) }
    c := redis.NewClient(opt)
    ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
    defer cancel()
    if err := c.Ping(ctx).Err(); err != nil { return nil, fmt.Errorf("redis ping: %w", err) }
    return &RedisStore{client: c}, nil
}

func (s *RedisStore) Close() error { return s.client.Close() }

// Ping checks connectivity for health reporting.
func (s *RedisStore) Ping(ctx context.Context) error { return s.client.Ping(ctx).Err() }

func jobKey(id string) string { return jobKeyPrefix + id }

func (s *RedisStore) Put(ctx context.Context, job Job) error {
    // The scheduler is the only mutator of a claimed job, so read-clamp-write
    // is race-free here; the clamp only guards against stale milestone writes.
    if prev, err := s.load(ctx, job.ID); err == nil {
        job.Progress = clampProgress(prev, job)
    }
    data, err := json.Marshal(job)
    if err != nil { return err }

    ttl := ttlGrace
    if !job.ExpiresAt.IsZero() {
        if d := time.Until(job.ExpiresAt); d > 0 { ttl = d + ttlGrace }
    }
    pipe := s.client.TxPipeline()
    pipe.Set(ctx, jobKey(job.ID), data, ttl)
    if job.Status == StatusPending {
        pipe.ZAdd(ctx, pendingKey, redis.Z{Score: float64(job.CreatedAt.UnixNano()), Member: job.ID})
    } else {
        pipe.ZRem(ctx, pendingKey, job.ID)
    }
    _, err = pipe.Exec(ctx)
    return err
}

func (s *RedisStore) Get(ctx context.Context, id string) (Job, error) {
    job, err := s.load(ctx, id)
    if err != nil { return Job{}, err }
    if job.Expired(time.Now()) {
        if derr := s.Delete(ctx, id); derr != nil {
            log.Warn().Err(derr).Str("job_id", id).Msg("failed to purge expired job")
        }
        return Job{}, ErrExpired
    }
    return job, nil
}

func (s *RedisStore) ClaimNext(ctx context.Context) (Job, bool, error) {
    for {
        res, err := s.client.ZPopMin(ctx, pendingKey, 1).Result()
        if err != nil { return Job{}, false, err }
        if len(res) == 0 { return Job{}, false, nil }
        id, _ := res[0].Member.(string)
        job, err := s.load(ctx, id)
        if err != nil {
            // record vanished under its queue entry; skip
            continue
        }
        if job.Expired(time.Now()) {
            _ = s.Delete(ctx, id)
            continue
        }
        now := time.Now()
        job.Status = StatusRunning
        job.StartedAt = &now
        if err := s.Put(ctx, job); err != nil { return Job{}, false, err }
        return job, true, nil
    }
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
    pipe := s.client.TxPipeline()
    pipe.Del(ctx, jobKey(id))
    pipe.ZRem(ctx, pendingKey, id)
    _, err := pipe.Exec(ctx)
    return err
}

// QueueDepth returns the number of pending jobs, for metrics.
func (s *RedisStore) QueueDepth(ctx context.Context) (int64, error) {
    return s.client.ZCard(ctx, pendingKey).Result()
}

func (s *RedisStore) load(ctx context.Context, id string) (Job, error) {
    raw, err := s.client.Get(ctx, jobKey(id)).Bytes()
    if err == redis.Nil { return Job{}, ErrNotFound }
    if err != nil { return Job{}, err }
    var job Job
    if err := json.Unmarshal(raw, &job); err != nil {
        return Job{}, fmt.Errorf("corrupt job record %s: %w", id, err)
    }
    return job, nil
}
