package gateway

import (
    "context"
    "encoding/json"
    "net/http"
    "strings"
    "time"

    "github.com/google/uuid"
    "github.com/rs/zerolog/log"

    "github.com/local/printquote/internal/analysis"
    "github.com/local/printquote/internal/jobstore"
    "github.com/local/printquote/internal/metrics"
    "github.com/local/printquote/internal/pipeline"
    "github.com/local/printquote/internal/pricing"
)

// Config tunes submission routing.
type Config struct {
    // SyncThreshold is the declared size above which work is deferred to the
    // background worker. Unknown sizes are always deferred.
    SyncThreshold int64
    // JobTTL bounds how long a deferred result stays pollable.
    JobTTL time.Duration
    // InlineTimeout caps an inline analysis so a slow origin cannot pin the
    // request handler.
    InlineTimeout time.Duration
}

// Prober estimates a remote resource size without downloading it.
type Prober interface {
    Probe(ctx context.Context, url string) (size int64, ok bool)
}

// Gateway is the public API: submit a document for color analysis, poll a
// deferred job, price a report.
type Gateway struct {
    cfg       Config
    validator analysis.URLValidator
    prober    Prober
    runner    *analysis.Runner
    store     jobstore.Store
    engine    *pricing.Engine
}

func New(cfg Config, validator analysis.URLValidator, prober Prober, runner *analysis.Runner, store jobstore.Store, engine *pricing.Engine) *Gateway {
    if cfg.SyncThreshold <= 0 { cfg.SyncThreshold = 10 << 20 }
    if cfg.JobTTL <= 0 { cfg.JobTTL = 2 * time.Hour }
    if cfg.InlineTimeout <= 0 { cfg.InlineTimeout = 90 * time.Second }
    return &Gateway{cfg: cfg, validator: validator, prober: prober, runner: runner, store: store, engine: engine}
}

func (g *Gateway) RegisterRoutes(mux *http.ServeMux) {
    mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK); _, _ = w.Write([]byte("ok")) })
    mux.HandleFunc("/submit", g.handleSubmit)
    mux.HandleFunc("/jobs/", g.handleJob)
    mux.HandleFunc("/quote", g.handleQuote)
}

type submitReq struct {
    URL string `json:"url"`
}

type submitResp struct {
    Mode   string           `json:"mode"`
    JobID  string           `json:"job_id,omitempty"`
    Result *analysis.Result `json:"result,omitempty"`
}

type errorResp struct {
    Code    string `json:"code"`
    Message string `json:"message"`
}

func (g *Gateway) handleSubmit(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost {
        w.WriteHeader(http.StatusMethodNotAllowed); return
    }
    defer r.Body.Close()
    var req submitReq
    if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
        writeError(w, http.StatusBadRequest, "invalid_request", "invalid json"); return
    }
    if req.URL == "" {
        writeError(w, http.StatusBadRequest, "invalid_request", "missing url"); return
    }

    // Validation runs first so blocked or malformed URLs are rejected here
    // and never reach the queue.
    u, err := g.validator.Validate(r.Context(), req.URL)
    if err != nil {
        writePipelineError(w, err); return
    }

    size, known := g.prober.Probe(r.Context(), u.String())
    if !known || size > g.cfg.SyncThreshold {
        g.enqueue(w, r, u.String(), size)
        return
    }
    g.runInline(w, r, u.String())
}

func (g *Gateway) runInline(w http.ResponseWriter, r *http.Request, url string) {
    start := time.Now()
    ctx, cancel := context.WithTimeout(r.Context(), g.cfg.InlineTimeout)
    defer cancel()

    res, err := g.runner.Run(ctx, url, uuid.NewString(), nil)
    if err != nil {
        metrics.ObserveAnalysis("inline", "failure", time.Since(start))
        metrics.IncPipelineError(string(pipeline.CodeOf(err)))
        writePipelineError(w, err)
        return
    }
    metrics.ObserveAnalysis("inline", "success", time.Since(start))
    metrics.AddDownloadBytes(res.ByteSize)
    writeJSON(w, http.StatusOK, submitResp{Mode: "inline", Result: res})
}

func (g *Gateway) enqueue(w http.ResponseWriter, r *http.Request, url string, declaredSize int64) {
    now := time.Now()
    job := jobstore.Job{
        ID:        uuid.NewString(),
        Kind:      jobstore.KindPDFAnalysis,
        Status:    jobstore.StatusPending,
        Input:     jobstore.Input{URL: url, DeclaredSize: declaredSize},
        CreatedAt: now,
        ExpiresAt: now.Add(g.cfg.JobTTL),
    }
    if err := g.store.Put(r.Context(), job); err != nil {
        log.Error().Err(err).Msg("job enqueue failed")
        writeError(w, http.StatusServiceUnavailable, "store_unavailable", "could not enqueue job")
        return
    }
    log.Info().Str("job_id", job.ID).Str("host", hostOf(url)).Int64("declared_size", declaredSize).Msg("job deferred")
    writeJSON(w, http.StatusAccepted, submitResp{Mode: "deferred", JobID: job.ID})
}

func (g *Gateway) handleJob(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodGet {
        w.WriteHeader(http.StatusMethodNotAllowed); return
    }
    id := strings.TrimPrefix(r.URL.Path, "/jobs/")
    if id == "" || strings.Contains(id, "/") {
        writeError(w, http.StatusNotFound, "not_found", "no such job"); return
    }
    job, err := g.store.Get(r.Context(), id)
    switch {
    case err == jobstore.ErrExpired:
        writeError(w, http.StatusNotFound, "expired", "job result expired")
    case err == jobstore.ErrNotFound:
        writeError(w, http.StatusNotFound, "not_found", "no such job")
    case err != nil:
        log.Error().Err(err).Str("job_id", id).Msg("job lookup failed")
        writeError(w, http.StatusServiceUnavailable, "store_unavailable", "job lookup failed")
    default:
        writeJSON(w, http.StatusOK, job)
    }
}

type quoteReq struct {
    ColorPages   int      `json:"color_pages"`
    MonoPages    int      `json:"mono_pages"`
    PaperType    string   `json:"paper_type"`
    PaperWeight  int      `json:"paper_weight"`
    BindingType  string   `json:"binding_type"`
    Finishing    []string `json:"finishing"`
    CopyQuantity int      `json:"copy_quantity"`
    PrintType    string   `json:"print_type"`
}

func (g *Gateway) handleQuote(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost {
        w.WriteHeader(http.StatusMethodNotAllowed); return
    }
    defer r.Body.Close()
    var req quoteReq
    if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
        writeError(w, http.StatusBadRequest, "invalid_request", "invalid json"); return
    }
    if req.CopyQuantity == 0 { req.CopyQuantity = 1 }

    color, mono := pricing.ApplyPrintType(req.ColorPages, req.MonoPages, req.PrintType)
    breakdown, err := g.engine.Quote(color, mono, req.PaperType, req.PaperWeight, req.BindingType, req.Finishing, req.CopyQuantity)
    if err != nil {
        writeError(w, http.StatusBadRequest, "invalid_request", err.Error()); return
    }
    metrics.IncQuote()
    writeJSON(w, http.StatusOK, breakdown)
}

// writePipelineError maps stable pipeline codes onto HTTP statuses.
func writePipelineError(w http.ResponseWriter, err error) {
    code := pipeline.CodeOf(err)
    status := http.StatusBadGateway
    switch code {
    case pipeline.CodeInvalidScheme, pipeline.CodeDNSFailed:
        status = http.StatusBadRequest
    case pipeline.CodeSSRFBlocked, pipeline.CodeRedirectBlocked:
        status = http.StatusForbidden
    case pipeline.CodeInvalidContentType:
        status = http.StatusUnsupportedMediaType
    case pipeline.CodeFileTooLarge, pipeline.CodePayloadTooLarge:
        status = http.StatusRequestEntityTooLarge
    }
    if pipeline.IsSecurity(code) {
        log.Warn().Str("code", string(code)).Msg("blocked request")
    }
    writeError(w, status, string(code), err.Error())
}

func writeError(w http.ResponseWriter, status int, code, message string) {
    writeJSON(w, status, errorResp{Code: code, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
    w.Header().Set("Content-Type", "application/json")
    w.WriteHeader(status)
    _ = json.NewEncoder(w).Encode(v)
}

func hostOf(raw string) string {
    if i := strings.Index(raw, "://"); i >= 0 {
        rest := raw[i+3:]
        if j := strings.IndexAny(rest, "/?#"); j >= 0 { return rest[:j] }
        return rest
    }
    return raw
}
