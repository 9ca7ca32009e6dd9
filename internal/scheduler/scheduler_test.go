package scheduler

import (
    "context"
    "net/url"
    "os"
    "sync"
    "testing"
    "time"

    "github.com/stretchr/testify/require"

    "github.com/local/printquote/internal/analysis"
    "github.com/local/printquote/internal/download"
    "github.com/local/printquote/internal/jobstore"
    "github.com/local/printquote/internal/pipeline"
)

type passValidator struct{}

func (passValidator) Validate(_ context.Context, raw string) (*url.URL, error) {
    return url.Parse(raw)
}

type stubFetcher struct {
    err error
    panics bool
}

func (f *stubFetcher) Fetch(context.Context, string) (*download.Result, error) {
    if f.panics { panic("fetcher exploded") }
    if f.err != nil { return nil, f.err }
    tmp, err := os.CreateTemp("", "schedtest-*.pdf")
    if err != nil { return nil, err }
    tmp.WriteString("%PDF-1.4\n%%EOF\n")
    tmp.Close()
    return &download.Result{Path: tmp.Name(), Bytes: 16, Release: func() { os.Remove(tmp.Name()) }}, nil
}

type failOpener struct{}

func (failOpener) Open(string) (analysis.Doc, error) { return nil, os.ErrInvalid }

// recordStore captures every progress value written for a running job.
type recordStore struct {
    jobstore.Store
    mu       sync.Mutex
    progress []int
}

func (r *recordStore) Put(ctx context.Context, job jobstore.Job) error {
    r.mu.Lock()
    if job.Status == jobstore.StatusRunning {
        r.progress = append(r.progress, job.Progress)
    }
    r.mu.Unlock()
    return r.Store.Put(ctx, job)
}

func newTestScheduler(store jobstore.Store, fetcher analysis.Fetcher) *Scheduler {
    classifier := analysis.NewWith(failOpener{}, func(string) (int, error) { return 3, nil })
    runner := analysis.NewRunner(passValidator{}, fetcher, classifier, nil)
    return New(Config{IdleSleep: 10 * time.Millisecond, FaultBackoff: 10 * time.Millisecond}, store, runner)
}

func pendingJob(id string) jobstore.Job {
    now := time.Now()
    return jobstore.Job{
        ID:        id,
        Kind:      jobstore.KindPDFAnalysis,
        Status:    jobstore.StatusPending,
        Input:     jobstore.Input{URL: "http://files.example.com/" + id + ".pdf"},
        CreatedAt: now,
        ExpiresAt: now.Add(time.Hour),
    }
}

func TestProcessCompletesJob(t *testing.T) {
    ctx := context.Background()
    store := &recordStore{Store: jobstore.NewMemoryStore()}
    s := newTestScheduler(store, &stubFetcher{})

    require.NoError(t, store.Put(ctx, pendingJob("j1")))
    job, ok, err := store.ClaimNext(ctx)
    require.NoError(t, err)
    require.True(t, ok)

    require.True(t, s.process(job))

    got, err := store.Get(ctx, "j1")
    require.NoError(t, err)
    require.Equal(t, jobstore.StatusCompleted, got.Status)
    require.Equal(t, analysis.ProgressDone, got.Progress)
    require.NotNil(t, got.CompletedAt)
    require.NotNil(t, got.Result)
    require.Equal(t, 3, got.Result.Report.TotalPages)
    require.Equal(t, analysis.MethodPageCount, got.Result.Method)

    // milestones arrived in order while the job was running; 100 only lands
    // with the completed status, never on a running record
    require.Equal(t, []int{
        analysis.ProgressValidated,
        analysis.ProgressDownloading,
        analysis.ProgressDownloaded,
    }, store.progress)
}

func TestProcessFailureRecordsErrorCode(t *testing.T) {
    ctx := context.Background()
    store := jobstore.NewMemoryStore()
    s := newTestScheduler(store, &stubFetcher{err: pipeline.NewError(pipeline.CodeFileTooLarge, "declared size 83886080 exceeds ceiling")})

    require.NoError(t, store.Put(ctx, pendingJob("j2")))
    job, _, err := store.ClaimNext(ctx)
    require.NoError(t, err)

    require.True(t, s.process(job))

    got, err := store.Get(ctx, "j2")
    require.NoError(t, err)
    require.Equal(t, jobstore.StatusFailed, got.Status)
    require.Contains(t, got.Error, "file_too_large")
    require.NotNil(t, got.CompletedAt)
    require.Nil(t, got.Result)
    // the terminal write keeps the furthest milestone the job reached, so a
    // poller never sees progress drop back to zero on failure
    require.Equal(t, analysis.ProgressDownloading, got.Progress)
}

func TestProcessRecoversFromPanic(t *testing.T) {
    ctx := context.Background()
    store := jobstore.NewMemoryStore()
    s := newTestScheduler(store, &stubFetcher{panics: true})

    require.NoError(t, store.Put(ctx, pendingJob("j3")))
    job, _, err := store.ClaimNext(ctx)
    require.NoError(t, err)

    require.False(t, s.process(job))

    got, err := store.Get(ctx, "j3")
    require.NoError(t, err)
    require.Equal(t, jobstore.StatusFailed, got.Status)
    require.Contains(t, got.Error, "internal fault")
}

func TestSchedulerDrainsQueueOldestFirst(t *testing.T) {
    ctx := context.Background()
    store := jobstore.NewMemoryStore()
    s := newTestScheduler(store, &stubFetcher{})

    base := time.Now()
    for i, id := range []string{"a", "b", "c"} {
        j := pendingJob(id)
        j.CreatedAt = base.Add(time.Duration(i) * time.Second)
        require.NoError(t, store.Put(ctx, j))
    }

    s.Start()
    defer func() {
        stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
        defer cancel()
        require.NoError(t, s.Stop(stopCtx))
    }()

    require.Eventually(t, func() bool {
        for _, id := range []string{"a", "b", "c"} {
            j, err := store.Get(ctx, id)
            if err != nil || !j.Terminal() { return false }
        }
        return true
    }, 5*time.Second, 20*time.Millisecond)
}
