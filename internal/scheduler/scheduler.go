package scheduler

import (
    "context"
    "fmt"
    "time"

    "github.com/rs/zerolog/log"

    "github.com/local/printquote/internal/analysis"
    "github.com/local/printquote/internal/download"
    "github.com/local/printquote/internal/jobstore"
    "github.com/local/printquote/internal/metrics"
    "github.com/local/printquote/internal/pipeline"
)

// Config tunes the worker loop.
type Config struct {
    IdleSleep    time.Duration // pause when the queue is empty
    FaultBackoff time.Duration // pause after a panic inside job processing
    JobTimeout   time.Duration // hard ceiling per job
    CleanupEvery time.Duration // stale temp file sweep interval
    CleanupAge   time.Duration // temp files older than this are removed
}

// depthReporter is satisfied by stores that can count pending jobs.
type depthReporter interface {
    QueueDepth(ctx context.Context) (int64, error)
}

// Scheduler runs the single background worker that drains deferred analysis
// jobs. One goroutine processes one job at a time; fairness comes from the
// store's oldest-first claim, not from parallelism.
type Scheduler struct {
    cfg    Config
    store  jobstore.Store
    runner *analysis.Runner
    stop   chan struct{}
    done   chan struct{}
}

func New(cfg Config, store jobstore.Store, runner *analysis.Runner) *Scheduler {
    if cfg.IdleSleep <= 0 { cfg.IdleSleep = time.Second }
    if cfg.FaultBackoff <= 0 { cfg.FaultBackoff = 5 * time.Second }
    if cfg.JobTimeout <= 0 { cfg.JobTimeout = 5 * time.Minute }
    if cfg.CleanupEvery <= 0 { cfg.CleanupEvery = 10 * time.Minute }
    if cfg.CleanupAge <= 0 { cfg.CleanupAge = time.Hour }
    return &Scheduler{cfg: cfg, store: store, runner: runner, stop: make(chan struct{}), done: make(chan struct{})}
}

func (s *Scheduler) Start() {
    go s.loop()
}

// Stop signals the loop and waits for the in-flight job to finish or the
// context to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
    close(s.stop)
    select {
    case <-s.done:
        return nil
    case <-ctx.Done():
        return ctx.Err()
    }
}

func (s *Scheduler) loop() {
    log.Info().Msg("analysis worker started")
    defer close(s.done)
    cleanup := time.NewTicker(s.cfg.CleanupEvery)
    defer cleanup.Stop()
    for {
        select {
        case <-s.stop:
            log.Info().Msg("analysis worker stopped")
            return
        case <-cleanup.C:
            download.CleanupTemps(s.cfg.CleanupAge)
            continue
        default:
        }

        job, ok, err := s.store.ClaimNext(context.Background())
        if err != nil {
            log.Error().Err(err).Msg("job claim failed")
            time.Sleep(s.cfg.FaultBackoff)
            continue
        }
        s.reportDepth()
        if !ok {
            time.Sleep(s.cfg.IdleSleep)
            continue
        }

        if !s.process(job) {
            time.Sleep(s.cfg.FaultBackoff)
        }
    }
}

// process runs one claimed job to a terminal state. It returns false only
// when the pipeline panicked, so the loop can back off before the next claim.
func (s *Scheduler) process(job jobstore.Job) (clean bool) {
    start := time.Now()
    clean = true
    defer func() {
        if r := recover(); r != nil {
            clean = false
            log.Error().Str("job_id", job.ID).Any("panic", r).Msg("job processing panicked")
            s.fail(job, fmt.Errorf("internal fault: %v", r), start)
        }
    }()

    ctx, cancel := context.WithTimeout(context.Background(), s.cfg.JobTimeout)
    defer cancel()

    // Milestones mutate the local copy so a terminal write after a failure
    // still carries the furthest progress the job reached.
    progress := func(pct int) {
        job.Progress = pct
        if err := s.store.Put(context.Background(), job); err != nil {
            log.Warn().Err(err).Str("job_id", job.ID).Msg("progress update failed")
        }
    }

    res, err := s.runner.Run(ctx, job.Input.URL, job.ID, progress)
    if err != nil {
        s.fail(job, err, start)
        return clean
    }

    now := time.Now()
    job.Status = jobstore.StatusCompleted
    job.Progress = analysis.ProgressDone
    job.Result = res
    job.CompletedAt = &now
    if err := s.store.Put(context.Background(), job); err != nil {
        log.Error().Err(err).Str("job_id", job.ID).Msg("failed to persist completed job")
    }
    metrics.ObserveAnalysis("deferred", "success", time.Since(start))
    metrics.AddDownloadBytes(res.ByteSize)
    return clean
}

func (s *Scheduler) fail(job jobstore.Job, err error, start time.Time) {
    code := pipeline.CodeOf(err)
    evt := log.Error
    if pipeline.IsSecurity(code) {
        evt = log.Warn // blocked request, not a system fault
    }
    evt().Err(err).Str("job_id", job.ID).Str("code", string(code)).Msg("job failed")

    now := time.Now()
    job.Status = jobstore.StatusFailed
    job.Error = err.Error()
    job.CompletedAt = &now
    if perr := s.store.Put(context.Background(), job); perr != nil {
        log.Error().Err(perr).Str("job_id", job.ID).Msg("failed to persist failed job")
    }
    metrics.ObserveAnalysis("deferred", "failure", time.Since(start))
    metrics.IncPipelineError(string(code))
}

func (s *Scheduler) reportDepth() {
    if dr, ok := s.store.(depthReporter); ok {
        if n, err := dr.QueueDepth(context.Background()); err == nil {
            metrics.SetQueueDepth(n)
        }
    }
}
