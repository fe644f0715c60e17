package config

import (
    "os"
    "strconv"
    "strings"
    "time"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
    Level        string
    Pretty       bool
    File         string
    MaxSizeMB    int
    MaxBackups   int
    MaxAgeDays   int
    Compress     bool
}

// AxiomConfig holds Axiom logging configuration.
type AxiomConfig struct {
    Send          bool
    APIKey        string
    OrgID         string
    Dataset       string
    FlushInterval time.Duration
}

// BookletConfig tunes the imposition pipeline.
type BookletConfig struct {
    DefaultMode      string // "a"|"b"
    FoldFactor       int
    EmbedConcurrency int
    JobTimeout       time.Duration
    MaxUploadMB      int
    PDFPassword      string
}

// WorkerConfig defines worker behavior and limits.
type WorkerConfig struct {
    Concurrency   int
    RunDispatcher bool
}

// QueueConfig defines queue connectivity and names.
type QueueConfig struct {
    RedisURL     string
    Stream       string
    Group        string
    PollInterval time.Duration
}

// StorageConfig selects where job inputs and results live.
type StorageConfig struct {
    Backend   string // "local"|"s3"
    LocalDir  string
    Bucket    string
    Endpoint  string
    AccessKey string
    SecretKey string
    Password  string
    Retention time.Duration
}

// HTTPConfig holds the API listener settings.
type HTTPConfig struct {
    Port            string
    // AllowFileURLs lets POST /jobs read file:// references from local disk.
    AllowFileURLs   bool
    FetchTimeout    time.Duration
    // SyncMaxInflight caps concurrent POST /booklet conversions per mode.
    SyncMaxInflight int
}

// PreviewConfig controls sheet preview rendering.
type PreviewConfig struct {
    DPI     float64
    Quality int
}

// Config is the top-level configuration.
type Config struct {
    Logging LoggingConfig
    Axiom   AxiomConfig
    Booklet BookletConfig
    Worker  WorkerConfig
    Queue   QueueConfig
    Storage StorageConfig
    HTTP    HTTPConfig
    Preview PreviewConfig
}

// FromEnv loads configuration from environment with sensible defaults.
func FromEnv() Config {
    cfg := Config{}

    // Logging defaults
    cfg.Logging = LoggingConfig{
        Level:      getEnv("LOG_LEVEL", "info"),
        Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
        File:       getEnv("LOG_FILE", "logs/bookletd.log"),
        MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "100"), 100),
        MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "10"), 10),
        MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
        Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
    }

    // Axiom defaults
    baseDataset := getEnv("AXIOM_DATASET", "dev")
    cfg.Axiom = AxiomConfig{
        Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
        APIKey:        getEnv("AXIOM_API_KEY", ""),
        OrgID:         getEnv("AXIOM_ORG_ID", ""),
        Dataset:       baseDataset + "_bookletd",
        FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
    }

    // Booklet defaults
    cfg.Booklet = BookletConfig{
        DefaultMode:      strings.ToLower(getEnv("BOOKLET_DEFAULT_MODE", "a")),
        FoldFactor:       parseInt(getEnv("BOOKLET_FOLD_FACTOR", "8"), 8),
        EmbedConcurrency: parseInt(getEnv("BOOKLET_EMBED_CONCURRENCY", "4"), 4),
        JobTimeout:       parseDuration(getEnv("BOOKLET_JOB_TIMEOUT", "2m"), 2*time.Minute),
        MaxUploadMB:      parseInt(getEnv("BOOKLET_MAX_UPLOAD_MB", "64"), 64),
        PDFPassword:      getEnv("BOOKLET_PDF_PASSWORD", ""),
    }
    if cfg.Booklet.FoldFactor <= 0 { cfg.Booklet.FoldFactor = 8 }

    // Worker defaults
    cfg.Worker = WorkerConfig{
        Concurrency:   parseInt(getEnv("WORKER_CONCURRENCY", "4"), 4),
        RunDispatcher: parseBool(getEnv("RUN_DISPATCHER", "true")),
    }

    // Queue defaults
    cfg.Queue = QueueConfig{
        RedisURL:     getEnv("REDIS_URL", "redis://localhost:6379"),
        Stream:       getEnv("QUEUE_STREAM", "jobs:booklet"),
        Group:        getEnv("QUEUE_GROUP", "workers:booklet"),
        PollInterval: parseDuration(getEnv("QUEUE_POLL_INTERVAL", "100ms"), 100*time.Millisecond),
    }

    // Storage defaults
    cfg.Storage = StorageConfig{
        Backend:   strings.ToLower(getEnv("STORAGE_BACKEND", "local")),
        LocalDir:  getEnv("RESULT_DIR", "/tmp/bookletd"),
        Bucket:    getEnv("AWS_S3_BUCKET", ""),
        Endpoint:  getEnv("S3_ENDPOINT", ""),
        AccessKey: getEnv("S3_ACCESS_KEY", ""),
        SecretKey: getEnv("S3_SECRET_KEY", ""),
        Password:  getEnv("STORAGE_PASSWORD", ""),
        Retention: parseDuration(getEnv("RESULT_RETENTION", "24h"), 24*time.Hour),
    }

    cfg.HTTP = HTTPConfig{
        Port:            getEnv("PORT", "8080"),
        AllowFileURLs:   parseBool(getEnv("ALLOW_FILE_URLS", "false")),
        FetchTimeout:    parseDuration(getEnv("FETCH_TIMEOUT", "30s"), 30*time.Second),
        SyncMaxInflight: parseInt(getEnv("SYNC_MAX_INFLIGHT", "4"), 4),
    }

    cfg.Preview = PreviewConfig{
        DPI:     parseFloat(getEnv("PREVIEW_DPI", "72"), 72),
        Quality: parseInt(getEnv("PREVIEW_QUALITY", "80"), 80),
    }

    return cfg
}

// MaxUploadBytes is the request body limit for uploads.
func (c BookletConfig) MaxUploadBytes() int64 { return int64(c.MaxUploadMB) << 20 }

// Helpers
func getEnv(key, def string) string {
    if v := os.Getenv(key); v != "" {
        return v
    }
    return def
}

func parseInt(s string, def int) int {
    if s == "" { return def }
    if n, err := strconv.Atoi(s); err == nil { return n }
    return def
}

func parseFloat(s string, def float64) float64 {
    if s == "" { return def }
    if f, err := strconv.ParseFloat(s, 64); err == nil { return f }
    return def
}

func parseBool(s string) bool {
    v := strings.ToLower(strings.TrimSpace(s))
    return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
    if s == "" { return def }
    if d, err := time.ParseDuration(s); err == nil { return d }
    return def
}

func devDefaultPretty() string {
    env := strings.ToLower(os.Getenv("ENVIRONMENT"))
    if env == "dev" || env == "development" || env == "local" { return "true" }
    return "false"
}
