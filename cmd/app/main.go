package main

import (
    "context"
    "errors"
    "fmt"
    "net/http"
    "os"
    "os/signal"
    "syscall"
    "time"

    "github.com/joho/godotenv"
    "github.com/rs/zerolog/log"

    "github.com/local/bookletd/internal/booklet"
    cfgpkg "github.com/local/bookletd/internal/config"
    "github.com/local/bookletd/internal/dispatcher"
    "github.com/local/bookletd/internal/imagerender"
    "github.com/local/bookletd/internal/limiter"
    logpkg "github.com/local/bookletd/internal/logger"
    "github.com/local/bookletd/internal/metrics"
    "github.com/local/bookletd/internal/orchestrator"
    "github.com/local/bookletd/internal/pdfengine"
    "github.com/local/bookletd/internal/queue"
    "github.com/local/bookletd/internal/statuscheck"
    "github.com/local/bookletd/internal/storage"
    "github.com/local/bookletd/internal/store"
)

func main() {
    _ = godotenv.Load()
    cfg := cfgpkg.FromEnv()

    // Init logging
    if err := logpkg.Init(logpkg.FromConfig(cfg, "bookletd")); err != nil {
        fmt.Fprintf(os.Stderr, "logger init: %v\n", err)
    }
    defer logpkg.Close()
    metrics.Init()

    ctx, stopSignals := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
    defer stopSignals()

    // Queue
    rq, err := queue.NewRedisQueue(cfg.Queue.RedisURL, cfg.Queue.Stream, cfg.Queue.Group, cfg.Queue.PollInterval)
    if err != nil {
        log.Fatal().Err(err).Msg("failed to connect to redis")
    }
    defer rq.Close()

    // Status and trace stores share one client
    rs, err := store.NewRedisStatus(cfg.Queue.RedisURL, cfg.Storage.Retention)
    if err != nil {
        log.Fatal().Err(err).Msg("failed to init redis status store")
    }
    defer rs.Close()
    traces := store.NewTraceStore(rs.Client(), cfg.Storage.Retention)

    // Blob storage
    s3opts := storage.S3Options{
        Bucket:    cfg.Storage.Bucket,
        Password:  cfg.Storage.Password,
        Endpoint:  cfg.Storage.Endpoint,
        AccessKey: cfg.Storage.AccessKey,
        SecretKey: cfg.Storage.SecretKey,
    }
    blobs, err := storage.Open(ctx, cfg.Storage.Backend, cfg.Storage.LocalDir, s3opts)
    if err != nil {
        log.Fatal().Err(err).Str("backend", cfg.Storage.Backend).Msg("failed to init storage")
    }
    var s3fetch orchestrator.ObjectFetcher
    if s3c, ok := blobs.(*storage.S3Client); ok {
        s3fetch = s3c
    } else if cfg.Storage.Bucket != "" {
        if s3c, err := storage.NewS3Client(ctx, s3opts); err == nil {
            s3fetch = s3c
        } else {
            log.Warn().Err(err).Msg("s3 fetch disabled")
        }
    }

    engine := pdfengine.New()
    engine.Password = cfg.Booklet.PDFPassword
    pipeline := booklet.New(engine, booklet.Options{
        FoldFactor:  cfg.Booklet.FoldFactor,
        Concurrency: cfg.Booklet.EmbedConcurrency,
    })
    renderer := imagerender.New(imagerender.Options{DPI: cfg.Preview.DPI, Quality: cfg.Preview.Quality})

    defaultMode, err := booklet.ParseMode(cfg.Booklet.DefaultMode)
    if err != nil {
        log.Warn().Err(err).Msg("invalid BOOKLET_DEFAULT_MODE; using a")
        defaultMode = booklet.ModeA
    }

    // Orchestrator HTTP server
    orch := orchestrator.New(orchestrator.Config{
        DefaultMode:    defaultMode,
        MaxUploadBytes: cfg.Booklet.MaxUploadBytes(),
        JobTimeout:     cfg.Booklet.JobTimeout,
        Retention:      cfg.Storage.Retention,
    }, orchestrator.Dependencies{
        Queue:   rq,
        Status:  rs,
        Traces:  traces,
        Blobs:   blobs,
        Runner:  pipeline,
        Preview: renderer,
        Health: statuscheck.New(statuscheck.Options{
            Redis:          rq,
            Storage:        blobs,
            StorageBackend: cfg.Storage.Backend,
            Renderer:       renderer,
        }),
        Depths:  rq,
        Limiter: limiter.New(cfg.HTTP.SyncMaxInflight),
        Fetcher: &orchestrator.Fetcher{
            HTTP:       &http.Client{Timeout: cfg.HTTP.FetchTimeout},
            S3:         s3fetch,
            AllowFiles: cfg.HTTP.AllowFileURLs,
            MaxBytes:   cfg.Booklet.MaxUploadBytes(),
        },
    })
    mux := http.NewServeMux()
    orch.RegisterRoutes(mux)
    go orch.RunHousekeeping(ctx, time.Minute)

    // Dispatcher worker (optional)
    if cfg.Worker.RunDispatcher {
        disp := dispatcher.New(dispatcher.Config{
            Concurrency: cfg.Worker.Concurrency,
            JobTimeout:  cfg.Booklet.JobTimeout,
            IdemTTL:     cfg.Storage.Retention,
        }, dispatcher.Dependencies{
            Queue:   rq,
            Status:  rs,
            Traces:  traces,
            Blobs:   blobs,
            Runner:  pipeline,
            Breaker: dispatcher.NewCircuitBreaker(rs.Client(), 5*time.Second, 5*time.Minute),
        })
        disp.Start()
        defer func() {
            sctx, cancel := context.WithTimeout(context.Background(), cfg.Booklet.JobTimeout)
            defer cancel()
            if err := disp.Stop(sctx); err != nil {
                log.Warn().Err(err).Msg("dispatcher did not drain")
            }
        }()
    }

    srv := &http.Server{Addr: ":" + cfg.HTTP.Port, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
    go func(){
        log.Info().Msgf("HTTP server listening on :%s", cfg.HTTP.Port)
        if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
            log.Fatal().Err(err).Msg("http server error")
        }
    }()

    // Graceful shutdown
    <-ctx.Done()
    sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
    defer cancel()
    _ = srv.Shutdown(sctx)
    log.Info().Msg("shutdown complete")
}
