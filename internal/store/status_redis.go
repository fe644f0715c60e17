package store

import (
    "context"
    "encoding/json"
    "fmt"
    "strconv"
    "time"

    redis "github.com/redis/go-redis/v9"
)

// Job states.
const (
    StatusQueued     = "queued"
    StatusProcessing = "processing"
    StatusSuccess    = "success"
    StatusFailed     = "failed"
    StatusCancelled  = "cancelled"
)

type Status struct {
    Status    string                 `json:"status"`
    Progress  int                    `json:"progress"`
    Message   string                 `json:"message"`
    Mode      string                 `json:"mode,omitempty"`
    FileName  string                 `json:"file_name,omitempty"`
    OutputKey string                 `json:"output_key,omitempty"`
    ErrorKind string                 `json:"error_kind,omitempty"`
    Start     *time.Time             `json:"start_time,omitempty"`
    End       *time.Time             `json:"end_time,omitempty"`
    Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Terminal reports whether the job will not change state again.
func (s Status) Terminal() bool {
    return s.Status == StatusSuccess || s.Status == StatusFailed || s.Status == StatusCancelled
}

type RedisStatus struct {
    client *redis.Client
    keyNS  string
    ttl    time.Duration
}

func NewRedisStatus(redisURL string, ttl time.Duration) (*RedisStatus, error) {
    opt, err := redis.ParseURL(redisURL)
    if err != nil { return nil, err }
    c := redis.NewClient(opt)
    if err := c.Ping(context.Background()).Err(); err != nil { return nil, err }
    return NewRedisStatusFromClient(c, ttl), nil
}

// NewRedisStatusFromClient wraps an existing client. Keys expire ttl after
// their last write; zero keeps them forever.
func NewRedisStatusFromClient(c *redis.Client, ttl time.Duration) *RedisStatus {
    return &RedisStatus{client: c, keyNS: "booklet", ttl: ttl}
}

func (s *RedisStatus) key(jobID string) string { return fmt.Sprintf("%s:%s:status", s.keyNS, jobID) }

// Set merges st into the stored hash. Empty optional fields leave earlier values in place.
func (s *RedisStatus) Set(ctx context.Context, jobID string, st Status) error {
    m := map[string]interface{}{
        "status":   st.Status,
        "progress": st.Progress,
        "message":  st.Message,
    }
    if st.Mode != "" { m["mode"] = st.Mode }
    if st.FileName != "" { m["file_name"] = st.FileName }
    if st.OutputKey != "" { m["output_key"] = st.OutputKey }
    if st.ErrorKind != "" { m["error_kind"] = st.ErrorKind }
    if st.Start != nil { m["start"] = st.Start.Format(time.RFC3339Nano) }
    if st.End != nil { m["end"] = st.End.Format(time.RFC3339Nano) }
    if st.Metadata != nil {
        b, _ := json.Marshal(st.Metadata)
        m["metadata"] = string(b)
    }
    pipe := s.client.TxPipeline()
    pipe.HSet(ctx, s.key(jobID), m)
    if s.ttl > 0 { pipe.Expire(ctx, s.key(jobID), s.ttl) }
    _, err := pipe.Exec(ctx)
    return err
}

func (s *RedisStatus) Get(ctx context.Context, jobID string) (Status, bool, error) {
    res, err := s.client.HGetAll(ctx, s.key(jobID)).Result()
    if err != nil { return Status{}, false, err }
    if len(res) == 0 { return Status{}, false, nil }
    st := Status{
        Status:    res["status"],
        Message:   res["message"],
        Mode:      res["mode"],
        FileName:  res["file_name"],
        OutputKey: res["output_key"],
        ErrorKind: res["error_kind"],
    }
    // ignore parse error; default 0
    st.Progress, _ = strconv.Atoi(res["progress"])
    if v := res["start"]; v != "" {
        if t, err := time.Parse(time.RFC3339Nano, v); err == nil { st.Start = &t }
    }
    if v := res["end"]; v != "" {
        if t, err := time.Parse(time.RFC3339Nano, v); err == nil { st.End = &t }
    }
    if v := res["metadata"]; v != "" {
        _ = json.Unmarshal([]byte(v), &st.Metadata)
    }
    return st, true, nil
}

func (s *RedisStatus) Ping(ctx context.Context) error { return s.client.Ping(ctx).Err() }

func (s *RedisStatus) Close() error { return s.client.Close() }

// Client returns the underlying Redis client
func (s *RedisStatus) Client() *redis.Client { return s.client }
