package statuscheck

import (
    "context"
    "errors"
    "time"

    "github.com/local/bookletd/internal/document"
    "github.com/local/bookletd/internal/pdfengine"
)

// Pinger models the minimal capability we need for status checks.
type Pinger interface {
    Ping(ctx context.Context) error
}

// Prober renders a PDF to prove the preview renderer works.
type Prober interface {
    Probe(pdf []byte) error
}

// Checker aggregates health checks for external dependencies.
type Checker struct {
    redis    Pinger
    storage  Pinger
    backend  string
    renderer Prober
    probePDF []byte
}

// Options configures the Checker.
type Options struct {
    Redis          Pinger
    Storage        Pinger
    StorageBackend string
    Renderer       Prober
}

// Status represents the readiness of a subsystem.
type Status struct {
    OK      bool   `json:"ok"`
    Message string `json:"message"`
}

// Summary bundles all subsystem statuses.
type Summary struct {
    Redis   Status `json:"redis"`
    Storage Status `json:"storage"`
    MuPDF   Status `json:"mupdf"`
}

// Healthy reports whether every subsystem is OK.
func (s Summary) Healthy() bool { return s.Redis.OK && s.Storage.OK && s.MuPDF.OK }

// New creates a new Checker with the provided options.
func New(opts Options) *Checker {
    return &Checker{
        redis:    opts.Redis,
        storage:  opts.Storage,
        backend:  opts.StorageBackend,
        renderer: opts.Renderer,
        probePDF: pdfengine.Sample(1, document.Size{Width: 72, Height: 72}),
    }
}

// Summary returns the current status snapshot.
func (c *Checker) Summary(ctx context.Context) Summary {
    return Summary{
        Redis:   ping(ctx, c.redis, 2*time.Second, "Connected"),
        Storage: ping(ctx, c.storage, 5*time.Second, "Available ("+c.backend+")"),
        MuPDF:   c.checkMuPDF(),
    }
}

func ping(ctx context.Context, p Pinger, timeout time.Duration, okMsg string) Status {
    if p == nil {
        return Status{OK: false, Message: "client unavailable"}
    }
    ctx, cancel := context.WithTimeout(ctx, timeout)
    defer cancel()
    if err := p.Ping(ctx); err != nil {
        return Status{OK: false, Message: trimError(err)}
    }
    return Status{OK: true, Message: okMsg}
}

func (c *Checker) checkMuPDF() Status {
    if c.renderer == nil {
        return Status{OK: false, Message: "renderer not configured"}
    }
    if err := c.renderer.Probe(c.probePDF); err != nil {
        return Status{OK: false, Message: trimError(err)}
    }
    return Status{OK: true, Message: "Available"}
}

func trimError(err error) string {
    if err == nil {
        return ""
    }
    var netErr interface{ Timeout() bool }
    if errors.As(err, &netErr) && netErr.Timeout() {
        return "timeout"
    }
    if errors.Is(err, context.DeadlineExceeded) {
        return "timeout"
    }
    msg := err.Error()
    if len(msg) > 120 {
        return msg[:120]
    }
    return msg
}
