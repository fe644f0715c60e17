// Package dispatcher runs queued booklet jobs.
package dispatcher

import (
    "context"
    "errors"
    "fmt"
    "os"
    "sync"
    "time"

    "github.com/rs/zerolog"
    "github.com/rs/zerolog/log"

    "github.com/local/bookletd/internal/booklet"
    "github.com/local/bookletd/internal/metrics"
    "github.com/local/bookletd/internal/queue"
    "github.com/local/bookletd/internal/storage"
    "github.com/local/bookletd/internal/store"
)

// depStorage is the breaker name for the blob store.
const depStorage = "storage"

type Queue interface {
    Dequeue(ctx context.Context, consumer string, timeout time.Duration) (string, queue.Job, error)
    Ack(ctx context.Context, msgID string) error
    IsCancelled(ctx context.Context, jobID string) (bool, error)
    IsIdemDone(ctx context.Context, jobID string) (bool, error)
    MarkIdemDone(ctx context.Context, jobID string, ttl time.Duration) error
}

type StatusStore interface {
    Set(ctx context.Context, jobID string, st store.Status) error
}

type TraceStore interface {
    Save(ctx context.Context, jobID string, sheets int, trace []booklet.Placement) error
}

// Runner imposes one input; *booklet.Pipeline satisfies it.
type Runner interface {
    Run(ctx context.Context, mode booklet.Mode, input []byte) (*booklet.Result, error)
}

type Config struct {
    Concurrency int
    JobTimeout  time.Duration
    // IdemTTL is how long a finished job is remembered so redelivery is a no-op.
    IdemTTL     time.Duration
    PollTimeout time.Duration
}

// Dependencies wires a Worker. Breaker is optional.
type Dependencies struct {
    Queue   Queue
    Status  StatusStore
    Traces  TraceStore
    Blobs   storage.Blobs
    Runner  Runner
    Breaker *CircuitBreaker
}

type Worker struct {
    cfg      Config
    deps     Dependencies
    consumer string
    stop     chan struct{}
    wg       sync.WaitGroup
}

func New(cfg Config, deps Dependencies) *Worker {
    if cfg.Concurrency <= 0 { cfg.Concurrency = 2 }
    if cfg.JobTimeout <= 0 { cfg.JobTimeout = 2 * time.Minute }
    if cfg.IdemTTL <= 0 { cfg.IdemTTL = 24 * time.Hour }
    if cfg.PollTimeout <= 0 { cfg.PollTimeout = 2 * time.Second }
    host, _ := os.Hostname()
    if host == "" { host = "worker" }
    return &Worker{cfg: cfg, deps: deps, consumer: fmt.Sprintf("%s-%d", host, os.Getpid()), stop: make(chan struct{})}
}

func (w *Worker) Start() {
    for i := 0; i < w.cfg.Concurrency; i++ {
        w.wg.Add(1)
        go w.loop(i)
    }
}

// Stop signals the loops and waits for in-flight jobs, or for ctx.
func (w *Worker) Stop(ctx context.Context) error {
    close(w.stop)
    done := make(chan struct{})
    go func() { w.wg.Wait(); close(done) }()
    select {
    case <-done:
        return nil
    case <-ctx.Done():
        return ctx.Err()
    }
}

func (w *Worker) loop(id int) {
    defer w.wg.Done()
    log.Info().Int("worker", id).Msg("dispatcher worker started")
    consumer := fmt.Sprintf("%s-%d", w.consumer, id)
    for {
        select {
        case <-w.stop:
            log.Info().Int("worker", id).Msg("dispatcher worker stopped")
            return
        default:
        }

        if w.deps.Breaker != nil && w.deps.Breaker.IsOpen(context.Background(), depStorage) {
            w.sleep(time.Second)
            continue
        }

        msgID, job, err := w.deps.Queue.Dequeue(context.Background(), consumer, w.cfg.PollTimeout)
        if errors.Is(err, queue.ErrBadPayload) {
            log.Warn().Int("worker", id).Str("msg_id", msgID).Msg("undecodable job moved to DLQ")
            _ = w.deps.Queue.Ack(context.Background(), msgID)
            continue
        }
        if err != nil {
            log.Error().Err(err).Msg("queue dequeue error")
            w.sleep(500 * time.Millisecond)
            continue
        }
        if msgID == "" { continue }

        w.Process(context.Background(), job)
        if err := w.deps.Queue.Ack(context.Background(), msgID); err != nil {
            log.Error().Err(err).Str("job_id", job.ID).Msg("ack failed")
        }
    }
}

func (w *Worker) sleep(d time.Duration) {
    select {
    case <-w.stop:
    case <-time.After(d):
    }
}

// Process runs one job to a terminal status. Failures are not retried.
func (w *Worker) Process(ctx context.Context, job queue.Job) {
    l := log.With().Str("job_id", job.ID).Str("mode", job.Mode).Logger()

    if done, _ := w.deps.Queue.IsIdemDone(ctx, job.ID); done {
        l.Info().Msg("job already finished; skipping redelivery")
        return
    }
    if cancelled, _ := w.deps.Queue.IsCancelled(ctx, job.ID); cancelled {
        l.Warn().Msg("job cancelled before processing; skipping")
        w.finish(ctx, job, store.Status{Status: store.StatusCancelled, Message: "Cancelled"})
        metrics.IncJob(store.StatusCancelled)
        return
    }

    mode, err := booklet.ParseMode(job.Mode)
    if err != nil {
        w.fail(ctx, l, job, &booklet.PipelineError{Mode: booklet.Mode(job.Mode), Stage: "validate", Err: err})
        return
    }

    start := time.Now()
    w.setStatus(ctx, l, job.ID, store.Status{Status: store.StatusProcessing, Progress: 10, Message: "loading input", Start: &start})

    input, _, err := w.deps.Blobs.Get(ctx, job.InputKey)
    if err != nil {
        w.fail(ctx, l, job, &StorageError{Op: "get", Key: job.InputKey, Err: err})
        return
    }
    w.setStatus(ctx, l, job.ID, store.Status{Status: store.StatusProcessing, Progress: 30, Message: "composing booklet"})

    jctx, cancel := context.WithTimeout(ctx, w.cfg.JobTimeout)
    res, err := w.deps.Runner.Run(jctx, mode, input)
    cancel()
    if err != nil {
        metrics.ObserveRun(string(mode), failureKind(err), time.Since(start), 0, 0)
        w.fail(ctx, l, job, err)
        return
    }
    metrics.ObserveRun(string(mode), "success", res.Duration, res.OutputPages, res.BlanksAdded)

    if cancelled, _ := w.deps.Queue.IsCancelled(ctx, job.ID); cancelled {
        l.Warn().Msg("job cancelled while composing; discarding output")
        w.finish(ctx, job, store.Status{Status: store.StatusCancelled, Message: "Cancelled"})
        metrics.IncJob(store.StatusCancelled)
        return
    }

    outKey := storage.OutputKey(job.ID)
    meta := storage.Metadata{"name": job.FileName, "mode": string(mode)}
    if err := w.deps.Blobs.Put(ctx, outKey, res.Output, meta); err != nil {
        w.fail(ctx, l, job, &StorageError{Op: "put", Key: outKey, Err: err})
        return
    }
    if w.deps.Breaker != nil { w.deps.Breaker.Close(ctx, depStorage) }

    if w.deps.Traces != nil {
        if err := w.deps.Traces.Save(ctx, job.ID, res.OutputPages, res.Trace); err != nil {
            l.Error().Err(&StateError{JobID: job.ID, Err: err}).Msg("trace not saved")
        }
    }

    w.finish(ctx, job, store.Status{
        Status:    store.StatusSuccess,
        Progress:  100,
        Message:   "completed",
        OutputKey: outKey,
        Metadata: map[string]interface{}{
            "input_pages":  res.InputPages,
            "sheets":       res.OutputPages,
            "blanks_added": res.BlanksAdded,
        },
    })
    _ = w.deps.Queue.MarkIdemDone(ctx, job.ID, w.cfg.IdemTTL)
    metrics.IncJob(store.StatusSuccess)
    l.Info().Int("sheets", res.OutputPages).Dur("duration", time.Since(start)).Msg("job completed")
}

func (w *Worker) fail(ctx context.Context, l zerolog.Logger, job queue.Job, err error) {
    kind := failureKind(err)
    ev := l.Error().Err(err).Str("kind", kind)
    if isTimeoutError(err) { ev = ev.Dur("timeout", w.cfg.JobTimeout) }
    ev.Msg("job failed")

    if isTransientError(err) && w.deps.Breaker != nil {
        w.deps.Breaker.Open(ctx, depStorage)
    }
    w.finish(ctx, job, store.Status{Status: store.StatusFailed, Message: err.Error(), ErrorKind: kind})
    _ = w.deps.Queue.MarkIdemDone(ctx, job.ID, w.cfg.IdemTTL)
    metrics.IncJob(store.StatusFailed)
}

func (w *Worker) finish(ctx context.Context, job queue.Job, st store.Status) {
    end := time.Now()
    st.End = &end
    st.Mode = job.Mode
    st.FileName = job.FileName
    w.setStatus(ctx, log.With().Str("job_id", job.ID).Logger(), job.ID, st)
}

func (w *Worker) setStatus(ctx context.Context, l zerolog.Logger, jobID string, st store.Status) {
    if err := w.deps.Status.Set(ctx, jobID, st); err != nil {
        l.Error().Err(&StateError{JobID: jobID, Err: err}).Str("status", st.Status).Msg("status not saved")
    }
}
