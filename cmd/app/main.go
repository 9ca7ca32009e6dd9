package main

import (
    "context"
    "encoding/json"
    "fmt"
    "net/http"
    "os"
    "os/signal"
    "syscall"

    "github.com/joho/godotenv"
    "github.com/rs/zerolog/log"

    "github.com/local/printquote/internal/analysis"
    "github.com/local/printquote/internal/archive"
    cfgpkg "github.com/local/printquote/internal/config"
    "github.com/local/printquote/internal/download"
    "github.com/local/printquote/internal/gateway"
    "github.com/local/printquote/internal/jobstore"
    logpkg "github.com/local/printquote/internal/logger"
    "github.com/local/printquote/internal/metrics"
    "github.com/local/printquote/internal/pricing"
    "github.com/local/printquote/internal/safeurl"
    "github.com/local/printquote/internal/scheduler"
    "github.com/local/printquote/internal/statuscheck"
)

func main() {
    _ = godotenv.Load()
    cfg := cfgpkg.FromEnv()

    // Init logging
    _ = logpkg.Init(logpkg.Options{
        Level: cfg.Logging.Level,
        Pretty: cfg.Logging.Pretty,
        File: cfg.Logging.File,
        MaxSizeMB: cfg.Logging.MaxSizeMB,
        MaxBackups: cfg.Logging.MaxBackups,
        MaxAgeDays: cfg.Logging.MaxAgeDays,
        Compress: cfg.Logging.Compress,
        SendToAxiom: cfg.Axiom.Send && cfg.Axiom.APIKey != "",
        AxiomAPIKey: cfg.Axiom.APIKey,
        AxiomOrgID: cfg.Axiom.OrgID,
        AxiomDataset: cfg.Axiom.Dataset,
        AxiomFlush: cfg.Axiom.FlushInterval,
    })
    defer logpkg.Close()

    metrics.Init()

    // Job store + pricing table backends
    var store jobstore.Store
    var table pricing.Table
    switch cfg.Store.Backend {
    case "redis":
        rs, err := jobstore.NewRedisStore(cfg.Store.RedisURL)
        if err != nil {
            log.Fatal().Err(err).Msg("failed to connect redis job store")
        }
        defer rs.Close()
        store = rs

        rt, err := pricing.NewRedisTable(cfg.Store.RedisURL)
        if err != nil {
            log.Fatal().Err(err).Msg("failed to connect redis pricing table")
        }
        defer rt.Close()
        if err := rt.SeedIfEmpty(context.Background(), pricing.DefaultTable()); err != nil {
            log.Warn().Err(err).Msg("pricing table seed failed")
        }
        table = rt
    default:
        store = jobstore.NewMemoryStore()
        table = pricing.DefaultTable()
    }

    // Analysis pipeline
    resolver := safeurl.New()
    downloader := download.New(download.Options{
        MaxBytes:       cfg.Download.MaxBytes,
        ConnectTimeout: cfg.Download.ConnectTimeout,
        ReadTimeout:    cfg.Download.ReadTimeout,
        ProbeTimeout:   cfg.Download.ProbeTimeout,
    })
    classifier := analysis.New()

    var archiver analysis.Archiver
    var archivePing statuscheck.Pinger
    if cfg.Archive.Enabled {
        arc, err := archive.New(context.Background(), cfg.Archive.Bucket, cfg.Archive.Password)
        if err != nil {
            log.Warn().Err(err).Msg("archive disabled")
        } else {
            archiver = arc
            archivePing = arc
        }
    }

    runner := analysis.NewRunner(resolver, downloader, classifier, archiver)

    // Background worker
    sched := scheduler.New(scheduler.Config{
        IdleSleep:    cfg.Worker.IdleSleep,
        FaultBackoff: cfg.Worker.FaultBackoff,
        JobTimeout:   cfg.Worker.JobTimeout,
        CleanupEvery: cfg.Worker.CleanupEvery,
        CleanupAge:   cfg.Worker.CleanupAge,
    }, store, runner)
    sched.Start()
    defer sched.Stop(context.Background())

    // HTTP surface
    gw := gateway.New(gateway.Config{
        SyncThreshold: cfg.Gateway.SyncThreshold,
        JobTTL:        cfg.Gateway.JobTTL,
        InlineTimeout: cfg.Gateway.InlineTimeout,
    }, resolver, downloader, runner, store, pricing.NewEngine(table))

    mux := http.NewServeMux()
    gw.RegisterRoutes(mux)
    mux.Handle("/metrics", metrics.Handler())

    var storePing statuscheck.Pinger
    if p, ok := store.(statuscheck.Pinger); ok { storePing = p }
    checker := statuscheck.New(statuscheck.Options{
        Store:    storePing,
        Archive:  archivePing,
        Renderer: classifier.SelfCheck,
    })
    mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
        w.Header().Set("Content-Type", "application/json")
        _ = json.NewEncoder(w).Encode(checker.Summary(r.Context()))
    })

    srv := &http.Server{Addr: ":" + cfg.Server.Port, Handler: mux}

    go func(){
        log.Info().Msgf("HTTP server listening on :%s", cfg.Server.Port)
        if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
            log.Fatal().Err(err).Msg("http server error")
        }
    }()

    // Graceful shutdown
    stop := make(chan os.Signal, 1)
    signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
    <-stop
    ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
    defer cancel()
    _ = srv.Shutdown(ctx)
    fmt.Println("shutdown complete")
}
