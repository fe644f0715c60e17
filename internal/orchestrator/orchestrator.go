// Package orchestrator is the HTTP surface of bookletd: synchronous
// conversions, queued jobs and their results.
package orchestrator

import (
    "bytes"
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "mime"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/google/uuid"
    "github.com/rs/zerolog/log"

    "github.com/local/bookletd/internal/booklet"
    "github.com/local/bookletd/internal/filetype"
    "github.com/local/bookletd/internal/imagerender"
    "github.com/local/bookletd/internal/metrics"
    "github.com/local/bookletd/internal/queue"
    "github.com/local/bookletd/internal/statuscheck"
    "github.com/local/bookletd/internal/storage"
    "github.com/local/bookletd/internal/store"
)

type Queue interface {
    Enqueue(ctx context.Context, job queue.Job) error
    EnqueueAt(ctx context.Context, job queue.Job, executeAt time.Time) error
    CancelJob(ctx context.Context, jobID string) error
}

type StatusStore interface {
    Set(ctx context.Context, jobID string, st store.Status) error
    Get(ctx context.Context, jobID string) (store.Status, bool, error)
}

type TraceStore interface {
    Trace(ctx context.Context, jobID string) ([]booklet.Placement, int, bool, error)
}

type Runner interface {
    Run(ctx context.Context, mode booklet.Mode, input []byte) (*booklet.Result, error)
}

type Previewer interface {
    RenderJPEG(pdf []byte, page int) ([]byte, int, int, error)
}

type HealthChecker interface {
    Summary(ctx context.Context) statuscheck.Summary
}

// Limiter bounds concurrent synchronous conversions; *limiter.Inflight satisfies it.
type Limiter interface {
    Allow(key string) (func(), bool)
}

type DepthReader interface {
    Depths(ctx context.Context) (queue.Depths, error)
}

type Dependencies struct {
    Queue   Queue
    Status  StatusStore
    Traces  TraceStore
    Blobs   storage.Blobs
    Runner  Runner
    Preview Previewer
    Health  HealthChecker
    Depths  DepthReader
    Limiter Limiter
    Fetcher *Fetcher
}

type Config struct {
    DefaultMode    booklet.Mode
    MaxUploadBytes int64
    JobTimeout     time.Duration
    Retention      time.Duration
}

type Orchestrator struct {
    cfg      Config
    deps     Dependencies
    detector *filetype.Detector
}

func New(cfg Config, deps Dependencies) *Orchestrator {
    if cfg.DefaultMode == "" { cfg.DefaultMode = booklet.ModeA }
    if cfg.MaxUploadBytes <= 0 { cfg.MaxUploadBytes = 64 << 20 }
    if cfg.JobTimeout <= 0 { cfg.JobTimeout = 2 * time.Minute }
    if deps.Fetcher == nil { deps.Fetcher = &Fetcher{MaxBytes: cfg.MaxUploadBytes} }
    return &Orchestrator{cfg: cfg, deps: deps, detector: filetype.New()}
}

func (o *Orchestrator) RegisterRoutes(mux *http.ServeMux) {
    mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request){ w.WriteHeader(http.StatusOK); _,_ = w.Write([]byte("ok")) })
    mux.Handle("/metrics", metrics.Handler())
    mux.HandleFunc("/status", o.handleStatus)
    mux.HandleFunc("/booklet", o.handleBooklet)
    mux.HandleFunc("/jobs", o.handleCreateJob)
    mux.HandleFunc("/progress/", o.handleProgress)
    mux.HandleFunc("/download/", o.handleDownload)
    mux.HandleFunc("/trace/", o.handleTrace)
    mux.HandleFunc("/preview/", o.handlePreview)
    mux.HandleFunc("/cancel_job", o.handleCancelJob)
}

type jobReq struct {
    FileURL      string `json:"file_url"`
    FileName     string `json:"file_name"`
    Mode         string `json:"mode"`
    DelaySeconds int    `json:"delay_seconds"`
}

type jobResp struct {
    Status  string `json:"status"`
    JobID   string `json:"job_id"`
    Message string `json:"message"`
}

func (o *Orchestrator) handleStatus(w http.ResponseWriter, r *http.Request) {
    if o.deps.Health == nil { http.Error(w, "status unavailable", http.StatusServiceUnavailable); return }
    writeJSON(w, http.StatusOK, o.deps.Health.Summary(r.Context()))
}

// mode picks the mode from the query, then a form field, then the default.
func (o *Orchestrator) mode(r *http.Request, fallback string) (booklet.Mode, error) {
    v := r.URL.Query().Get("mode")
    if v == "" { v = fallback }
    if v == "" { return o.cfg.DefaultMode, nil }
    return booklet.ParseMode(v)
}

// readUpload returns the uploaded PDF from a multipart "file" field or the
// raw request body, plus its name and any "mode" form field.
func (o *Orchestrator) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, string, string, error) {
    r.Body = http.MaxBytesReader(w, r.Body, o.cfg.MaxUploadBytes)
    ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
    if ct == "multipart/form-data" {
        if err := r.ParseMultipartForm(32 << 20); err != nil { return nil, "", "", err }
        file, hdr, err := r.FormFile("file")
        if err != nil { return nil, "", "", &booklet.InputValidationError{Reason: "no file supplied"} }
        defer file.Close()
        data, err := io.ReadAll(file)
        return data, hdr.Filename, r.FormValue("mode"), err
    }
    data, err := io.ReadAll(r.Body)
    return data, r.URL.Query().Get("name"), "", err
}

func (o *Orchestrator) uploadError(w http.ResponseWriter, err error) {
    var tooBig *http.MaxBytesError
    if errors.As(err, &tooBig) {
        http.Error(w, "file too large", http.StatusRequestEntityTooLarge); return
    }
    if booklet.Kind(err) == booklet.KindValidation {
        http.Error(w, err.Error(), http.StatusBadRequest); return
    }
    http.Error(w, "invalid upload", http.StatusBadRequest)
}

// handleBooklet converts the upload synchronously and answers with the PDF.
func (o *Orchestrator) handleBooklet(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost { w.WriteHeader(http.StatusMethodNotAllowed); return }
    data, name, formMode, err := o.readUpload(w, r)
    if err != nil { o.uploadError(w, err); return }
    mode, err := o.mode(r, formMode)
    if err != nil { http.Error(w, err.Error(), http.StatusBadRequest); return }
    if o.deps.Limiter != nil {
        release, ok := o.deps.Limiter.Allow(string(mode))
        if !ok {
            w.Header().Set("Retry-After", "1")
            http.Error(w, "too many conversions in progress; use /jobs", http.StatusTooManyRequests)
            return
        }
        defer release()
    }

    ctx, cancel := context.WithTimeout(r.Context(), o.cfg.JobTimeout)
    defer cancel()
    start := time.Now()
    res, err := o.deps.Runner.Run(ctx, mode, data)
    if err != nil {
        kind := booklet.Kind(err)
        metrics.ObserveRun(string(mode), kind, time.Since(start), 0, 0)
        log.Error().Err(err).Str("mode", string(mode)).Str("kind", kind).Str("file", name).Msg("booklet request failed")
        w.Header().Set("X-Error-Kind", kind)
        http.Error(w, err.Error(), booklet.HTTPStatus(err))
        return
    }
    metrics.ObserveRun(string(mode), "success", res.Duration, res.OutputPages, res.BlanksAdded)

    w.Header().Set("Content-Type", "application/pdf")
    w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filetype.OutputName(name)))
    w.Header().Set("X-Booklet-Input-Pages", strconv.Itoa(res.InputPages))
    w.Header().Set("X-Booklet-Sheets", strconv.Itoa(res.OutputPages))
    w.Header().Set("X-Booklet-Blanks-Added", strconv.Itoa(res.BlanksAdded))
    w.Header().Set("Content-Length", strconv.Itoa(len(res.Output)))
    _, _ = w.Write(res.Output)
}

// handleCreateJob stores the input and queues it for the dispatcher.
func (o *Orchestrator) handleCreateJob(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost { w.WriteHeader(http.StatusMethodNotAllowed); return }

    var (
        data     []byte
        name     string
        formMode string
        delay    int
        err      error
    )
    ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
    if ct == "application/json" {
        var req jobReq
        if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
            http.Error(w, "invalid json", http.StatusBadRequest); return
        }
        if req.FileURL == "" { http.Error(w, "missing file_url", http.StatusBadRequest); return }
        data, name, err = o.deps.Fetcher.Fetch(r.Context(), req.FileURL)
        if err != nil {
            log.Warn().Err(err).Str("file_url", req.FileURL).Msg("fetch failed")
            status := http.StatusBadGateway
            if errors.Is(err, ErrUnsupportedRef) { status = http.StatusBadRequest }
            if errors.Is(err, ErrTooLarge) { status = http.StatusRequestEntityTooLarge }
            if errors.Is(err, storage.ErrNotFound) { status = http.StatusNotFound }
            http.Error(w, "cannot fetch file: "+err.Error(), status); return
        }
        if req.FileName != "" { name = req.FileName }
        formMode, delay = req.Mode, req.DelaySeconds
    } else {
        if data, name, formMode, err = o.readUpload(w, r); err != nil { o.uploadError(w, err); return }
        delay, _ = strconv.Atoi(r.URL.Query().Get("delay_seconds"))
    }

    mode, err := o.mode(r, formMode)
    if err != nil { http.Error(w, err.Error(), http.StatusBadRequest); return }
    if len(data) == 0 { http.Error(w, "no file supplied", http.StatusBadRequest); return }
    if info := o.detector.Detect(data, name); !info.Supported {
        http.Error(w, info.Description, http.StatusBadRequest); return
    }

    jobID := uuid.NewString()
    key := storage.InputKey(jobID)
    if err := o.deps.Blobs.Put(r.Context(), key, data, storage.Metadata{"name": name}); err != nil {
        log.Error().Err(err).Str("job_id", jobID).Msg("input not stored")
        http.Error(w, "storage unavailable", http.StatusServiceUnavailable); return
    }

    start := time.Now()
    _ = o.deps.Status.Set(r.Context(), jobID, store.Status{Status: store.StatusQueued, Message: "queued",
        Mode: string(mode), FileName: name, Start: &start})

    job := queue.Job{ID: jobID, Mode: string(mode), InputKey: key, FileName: name, EnqueuedAt: start}
    if delay > 0 {
        err = o.deps.Queue.EnqueueAt(r.Context(), job, start.Add(time.Duration(delay)*time.Second))
    } else {
        err = o.deps.Queue.Enqueue(r.Context(), job)
    }
    if err != nil {
        log.Error().Err(err).Str("job_id", jobID).Msg("enqueue failed")
        _ = o.deps.Status.Set(r.Context(), jobID, store.Status{Status: store.StatusFailed, Message: "queue unavailable", ErrorKind: booklet.KindInternal})
        http.Error(w, "queue unavailable", http.StatusServiceUnavailable)
        return
    }
    log.Info().Str("job_id", jobID).Str("mode", string(mode)).Str("file", name).Int("bytes", len(data)).Msg("job created")
    writeJSON(w, http.StatusCreated, jobResp{Status: "ok", JobID: jobID, Message: "Booklet job created"})
}

// job loads the status of the job named by the last path segment.
func (o *Orchestrator) job(w http.ResponseWriter, r *http.Request, prefix string) (string, store.Status, bool) {
    id := strings.TrimPrefix(r.URL.Path, prefix)
    if id == "" || strings.Contains(id, "/") { http.Error(w, "not found", http.StatusNotFound); return "", store.Status{}, false }
    st, ok, err := o.deps.Status.Get(r.Context(), id)
    if err != nil { http.Error(w, "error", http.StatusInternalServerError); return "", store.Status{}, false }
    if !ok { http.Error(w, "not found", http.StatusNotFound); return "", store.Status{}, false }
    return id, st, true
}

func (o *Orchestrator) handleProgress(w http.ResponseWriter, r *http.Request) {
    id, st, ok := o.job(w, r, "/progress/")
    if !ok { return }
    resp := map[string]any{
        "success":    st.Status == store.StatusSuccess,
        "job_id":     id,
        "status":     st.Status,
        "progress":   st.Progress,
        "message":    st.Message,
        "mode":       st.Mode,
        "file_name":  st.FileName,
        "start_time": st.Start,
        "end_time":   st.End,
    }
    if st.ErrorKind != "" { resp["error_kind"] = st.ErrorKind }
    if st.Metadata != nil { resp["metadata"] = st.Metadata }
    if st.Status == store.StatusSuccess { resp["download_url"] = "/download/" + id }
    writeJSON(w, http.StatusOK, resp)
}

// output returns the finished booklet of a successful job.
func (o *Orchestrator) output(w http.ResponseWriter, r *http.Request, st store.Status) ([]byte, bool) {
    switch st.Status {
    case store.StatusSuccess:
    case store.StatusQueued, store.StatusProcessing:
        http.Error(w, "not ready", http.StatusAccepted); return nil, false
    default:
        http.Error(w, "job "+st.Status, http.StatusConflict); return nil, false
    }
    data, _, err := o.deps.Blobs.Get(r.Context(), st.OutputKey)
    if errors.Is(err, storage.ErrNotFound) { http.Error(w, "result expired", http.StatusGone); return nil, false }
    if err != nil { http.Error(w, "failed to read", http.StatusInternalServerError); return nil, false }
    return data, true
}

func (o *Orchestrator) handleDownload(w http.ResponseWriter, r *http.Request) {
    _, st, ok := o.job(w, r, "/download/")
    if !ok { return }
    data, ok := o.output(w, r, st)
    if !ok { return }
    w.Header().Set("Content-Type", "application/pdf")
    w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filetype.OutputName(st.FileName)))
    http.ServeContent(w, r, "", timeOrZero(st.End), bytes.NewReader(data))
}

func (o *Orchestrator) handleTrace(w http.ResponseWriter, r *http.Request) {
    id, st, ok := o.job(w, r, "/trace/")
    if !ok { return }
    if st.Status != store.StatusSuccess { http.Error(w, "not ready", http.StatusAccepted); return }
    trace, sheets, found, err := o.deps.Traces.Trace(r.Context(), id)
    if err != nil { http.Error(w, "error", http.StatusInternalServerError); return }
    if !found { http.Error(w, "trace expired", http.StatusGone); return }
    if r.URL.Query().Get("format") == "text" {
        w.Header().Set("Content-Type", "text/plain; charset=utf-8")
        _, _ = io.WriteString(w, booklet.FormatTrace(trace))
        return
    }
    writeJSON(w, http.StatusOK, map[string]any{"job_id": id, "sheets": sheets, "placements": trace})
}

func (o *Orchestrator) handlePreview(w http.ResponseWriter, r *http.Request) {
    _, st, ok := o.job(w, r, "/preview/")
    if !ok { return }
    sheet := 1
    if v := r.URL.Query().Get("sheet"); v != "" {
        n, err := strconv.Atoi(v)
        if err != nil || n < 1 { http.Error(w, "invalid sheet", http.StatusBadRequest); return }
        sheet = n
    }
    data, ok := o.output(w, r, st)
    if !ok { return }
    if o.deps.Preview == nil { http.Error(w, "preview unavailable", http.StatusServiceUnavailable); return }
    jpg, _, _, err := o.deps.Preview.RenderJPEG(data, sheet)
    var rangeErr *imagerender.PageRangeError
    if errors.As(err, &rangeErr) { http.Error(w, rangeErr.Error(), http.StatusBadRequest); return }
    if err != nil {
        log.Error().Err(err).Int("sheet", sheet).Msg("preview render failed")
        http.Error(w, "render failed", http.StatusInternalServerError); return
    }
    w.Header().Set("Content-Type", "image/jpeg")
    _, _ = w.Write(jpg)
}

type cancelReq struct {
    JobID  string `json:"job_id"`
    Reason string `json:"reason,omitempty"`
}

func (o *Orchestrator) handleCancelJob(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost { w.WriteHeader(http.StatusMethodNotAllowed); return }
    var req cancelReq
    if err := json.NewDecoder(r.Body).Decode(&req); err != nil { http.Error(w, "invalid json", 400); return }
    if req.JobID == "" { http.Error(w, "missing job_id", 400); return }
    st, ok, err := o.deps.Status.Get(r.Context(), req.JobID)
    if err != nil { http.Error(w, "error", http.StatusInternalServerError); return }
    if !ok { http.Error(w, "not found", http.StatusNotFound); return }
    if st.Terminal() { http.Error(w, "job already "+st.Status, http.StatusConflict); return }
    // mark cancelled in queue store
    if err := o.deps.Queue.CancelJob(r.Context(), req.JobID); err != nil {
        http.Error(w, "cancel failed", 500); return
    }
    msg := "Cancelled"
    if req.Reason != "" { msg = fmt.Sprintf("Cancelled: %s", req.Reason) }
    now := time.Now()
    _ = o.deps.Status.Set(r.Context(), req.JobID, store.Status{Status: store.StatusCancelled, Message: msg, End: &now})
    writeJSON(w, http.StatusOK, map[string]any{"success": true, "job_id": req.JobID, "status": store.StatusCancelled})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
    w.Header().Set("Content-Type", "application/json")
    w.WriteHeader(status)
    _ = json.NewEncoder(w).Encode(v)
}

func timeOrZero(t *time.Time) time.Time {
    if t == nil { return time.Time{} }
    return *t
}
