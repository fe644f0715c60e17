package logger

import (
    "context"
    "encoding/json"
    "fmt"
    "io"
    "os"
    "path/filepath"
    "sync"
    "sync/atomic"
    "time"

    "github.com/axiomhq/axiom-go/axiom"
    "github.com/axiomhq/axiom-go/axiom/ingest"
    "github.com/rs/zerolog"
    "github.com/rs/zerolog/log"
    lumberjack "gopkg.in/natefinch/lumberjack.v2"

    "github.com/local/bookletd/internal/config"
)

// Options defines logger initialization parameters.
type Options struct {
    Service      string
    Level        string
    Pretty       bool
    File         string
    MaxSizeMB    int
    MaxBackups   int
    MaxAgeDays   int
    Compress     bool

    // Console receives human or JSON output; nil means stdout. The CLI
    // points it at stderr so stdout stays free for data.
    Console      io.Writer

    // Axiom
    SendToAxiom  bool
    AxiomAPIKey  string
    AxiomOrgID   string
    AxiomDataset string
    AxiomFlush   time.Duration
}

// FromConfig maps the env config onto logger options for service.
func FromConfig(cfg config.Config, service string) Options {
    return Options{
        Service:      service,
        Level:        cfg.Logging.Level,
        Pretty:       cfg.Logging.Pretty,
        File:         cfg.Logging.File,
        MaxSizeMB:    cfg.Logging.MaxSizeMB,
        MaxBackups:   cfg.Logging.MaxBackups,
        MaxAgeDays:   cfg.Logging.MaxAgeDays,
        Compress:     cfg.Logging.Compress,
        SendToAxiom:  cfg.Axiom.Send,
        AxiomAPIKey:  cfg.Axiom.APIKey,
        AxiomOrgID:   cfg.Axiom.OrgID,
        AxiomDataset: cfg.Axiom.Dataset,
        AxiomFlush:   cfg.Axiom.FlushInterval,
    }
}

var (
    global zerolog.Logger
    ax     *axiomClient
)

// Init sets up global logger: file rotation, console, optional Axiom forwarding.
func Init(opts Options) error {
    if opts.Service == "" { opts.Service = "bookletd" }
    if opts.File != "" {
        if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
            return fmt.Errorf("create logs dir: %w", err)
        }
    }

    var writers []io.Writer

    if opts.File != "" {
        writers = append(writers, &lumberjack.Logger{
            Filename:   opts.File,
            MaxSize:    opts.MaxSizeMB,
            MaxBackups: opts.MaxBackups,
            MaxAge:     opts.MaxAgeDays,
            Compress:   opts.Compress,
        })
    }

    console := opts.Console
    if console == nil { console = os.Stdout }
    if opts.Pretty {
        writers = append(writers, zerolog.ConsoleWriter{Out: console, TimeFormat: time.RFC3339})
    } else {
        writers = append(writers, console)
    }

    // Optional Axiom writer (info+)
    if opts.SendToAxiom && opts.AxiomAPIKey != "" {
        client, err := newAxiomClient(opts.AxiomAPIKey, opts.AxiomOrgID, opts.AxiomDataset, opts.AxiomFlush)
        if err != nil {
            fmt.Fprintf(os.Stderr, "Axiom disabled: %v\n", err)
        } else {
            ax = client
            writers = append(writers, &axiomWriter{client: client, service: opts.Service})
        }
    }

    zerolog.TimeFieldFormat = time.RFC3339
    lvl, err := zerolog.ParseLevel(opts.Level)
    if err != nil || opts.Level == "" {
        lvl = zerolog.InfoLevel
    }

    global = zerolog.New(io.MultiWriter(writers...)).Level(lvl).With().Timestamp().Str("service", opts.Service).Logger()
    log.Logger = global
    return nil
}

// Close flushes any buffered external loggers.
func Close() {
    if ax != nil {
        _ = ax.Close()
        ax = nil
    }
}

// Get returns the global logger.
func Get() *zerolog.Logger { return &global }

// axiomWriter forwards zerolog JSON lines to Axiom (dropping debug level).
type axiomWriter struct {
    client  *axiomClient
    service string
}

func (w *axiomWriter) Write(p []byte) (int, error) {
    var ev map[string]interface{}
    if err := json.Unmarshal(p, &ev); err != nil {
        ev = map[string]interface{}{"message": string(p), "level": "info"}
    }
    if lvl, ok := ev["level"].(string); ok && (lvl == "debug" || lvl == "trace") {
        return len(p), nil
    }
    ev["service"] = w.service
    if _, ok := ev[ingest.TimestampField]; !ok {
        ev[ingest.TimestampField] = time.Now()
    }
    w.client.Send(axiom.Event(ev))
    return len(p), nil
}

const axiomBatch = 200

// Minimal Axiom batching client
type axiomClient struct {
    client  *axiom.Client
    dataset string
    ch      chan axiom.Event
    dropped atomic.Int64
    wg      sync.WaitGroup
    ctx     context.Context
    cancel  context.CancelFunc
}

func newAxiomClient(token, orgID, dataset string, flushEvery time.Duration) (*axiomClient, error) {
    if dataset == "" { dataset = "dev_bookletd" }
    opts := []axiom.Option{axiom.SetToken(token)}
    if orgID != "" { opts = append(opts, axiom.SetOrganizationID(orgID)) }
    c, err := axiom.NewClient(opts...)
    if err != nil { return nil, err }
    ctx, cancel := context.WithCancel(context.Background())
    ac := &axiomClient{
        client:  c,
        dataset: dataset,
        ch:      make(chan axiom.Event, 5*axiomBatch),
        ctx:     ctx,
        cancel:  cancel,
    }
    if flushEvery <= 0 { flushEvery = 10 * time.Second }
    ac.wg.Add(1)
    go ac.loop(flushEvery)
    return ac, nil
}

// Send queues ev; events are dropped while the buffer is full.
func (a *axiomClient) Send(ev axiom.Event) {
    select {
    case a.ch <- ev:
    default:
        a.dropped.Add(1)
    }
}

func (a *axiomClient) loop(flushEvery time.Duration) {
    defer a.wg.Done()
    ticker := time.NewTicker(flushEvery)
    defer ticker.Stop()
    batch := make([]axiom.Event, 0, axiomBatch)
    flush := func() {
        if len(batch) == 0 { return }
        ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
        if _, err := a.client.IngestEvents(ctx, a.dataset, batch); err != nil {
            fmt.Fprintf(os.Stderr, "axiom ingest: %v\n", err)
        }
        cancel()
        batch = batch[:0]
    }
    for {
        select {
        case <-a.ctx.Done():
            // drain what is already queued
            for {
                select {
                case ev := <-a.ch:
                    batch = append(batch, ev)
                default:
                    flush()
                    return
                }
            }
        case <-ticker.C:
            flush()
        case ev := <-a.ch:
            batch = append(batch, ev)
            if len(batch) >= axiomBatch { flush() }
        }
    }
}

func (a *axiomClient) Close() error {
    a.cancel()
    a.wg.Wait()
    if n := a.dropped.Load(); n > 0 {
        fmt.Fprintf(os.Stderr, "axiom: dropped %d log events\n", n)
    }
    return nil
}
