package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "strings"
    "time"

    redis "github.com/redis/go-redis/v9"
)

// Job is one queued booklet conversion.
type Job struct {
    ID         string    `json:"job_id"`
    Mode       string    `json:"mode"`
    InputKey   string    `json:"input_key"`
    FileName   string    `json:"file_name"`
    EnqueuedAt time.Time `json:"enqueued_at"`
}

// RedisQueue implements Redis Streams + consumer groups with a delayed ZSET mover.
type RedisQueue struct {
    client       *redis.Client
    // streams / groups
    Stream       string
    Group        string
    // keys
    CancelKey    string
    DelayedKey   string
    DLQStream    string
    IdemDoneKey  string
    // mover control
    pollInterval time.Duration
    stop         chan struct{}
}

// NewRedisQueue connects to Redis, ensures stream & group, and starts delayed mover.
func NewRedisQueue(redisURL, stream, group string, poll time.Duration) (*RedisQueue, error) {
    opt, err := redis.ParseURL(redisURL)
    if err != nil {
        return nil, fmt.Errorf("parse redis url: %w", err)
    }
    return NewRedisQueueFromClient(redis.NewClient(opt), stream, group, poll)
}

// NewRedisQueueFromClient is NewRedisQueue for an existing client. The queue
// takes ownership of c.
func NewRedisQueueFromClient(c *redis.Client, stream, group string, poll time.Duration) (*RedisQueue, error) {
    ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
    defer cancel()
    if err := c.Ping(ctx).Err(); err != nil {
        return nil, fmt.Errorf("redis ping: %w", err)
    }
    q := &RedisQueue{
        client:       c,
        Stream:       stream,
        Group:        group,
        CancelKey:    stream + ":cancelled",
        DelayedKey:   stream + ":delayed",
        DLQStream:    stream + ":dlq",
        IdemDoneKey:  stream + ":done:",
        pollInterval: poll,
        stop:         make(chan struct{}),
    }
    // MKSTREAM creates the stream if missing
    if err := c.XGroupCreateMkStream(ctx, stream, group, "0").Err(); err != nil && !isBusyGroupErr(err) {
        return nil, fmt.Errorf("xgroup create: %w", err)
    }
    go q.mover()
    return q, nil
}

func isBusyGroupErr(err error) bool {
    if err == nil { return false }
    return strings.Contains(strings.ToUpper(err.Error()), "BUSYGROUP")
}

func (q *RedisQueue) Close() error {
    close(q.stop)
    return q.client.Close()
}

// Ping checks redis connectivity.
func (q *RedisQueue) Ping(ctx context.Context) error { return q.client.Ping(ctx).Err() }

// Enqueue adds a job to the stream as a single-field entry {data: <json>}.
func (q *RedisQueue) Enqueue(ctx context.Context, job Job) error {
    payload, err := json.Marshal(job)
    if err != nil { return err }
    return q.client.XAdd(ctx, &redis.XAddArgs{
        Stream: q.Stream,
        Values: map[string]any{"data": string(payload)},
    }).Err()
}

// EnqueueAt schedules a job for later execution via ZSET.
func (q *RedisQueue) EnqueueAt(ctx context.Context, job Job, executeAt time.Time) error {
    payload, err := json.Marshal(job)
    if err != nil { return err }
    return q.client.ZAdd(ctx, q.DelayedKey, redis.Z{Score: float64(executeAt.Unix()), Member: string(payload)}).Err()
}

// ErrBadPayload is returned by Dequeue for entries that do not decode to a
// Job. The message ID is still returned so the caller can ack it.
var ErrBadPayload = errors.New("queue: undecodable job payload")

// Dequeue reads one message for consumer, waiting up to timeout. It returns
// an empty ID when nothing arrived. The message stays pending until Ack.
func (q *RedisQueue) Dequeue(ctx context.Context, consumer string, timeout time.Duration) (string, Job, error) {
    if timeout <= 0 { timeout = time.Second }
    res, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
        Group:    q.Group,
        Consumer: consumer,
        Streams:  []string{q.Stream, ">"},
        Count:    1,
        Block:    timeout,
    }).Result()
    if err != nil {
        if errors.Is(err, redis.Nil) { return "", Job{}, nil }
        return "", Job{}, err
    }
    if len(res) == 0 || len(res[0].Messages) == 0 { return "", Job{}, nil }
    msg := res[0].Messages[0]

    var raw []byte
    switch t := msg.Values["data"].(type) {
    case string:
        raw = []byte(t)
    case []byte:
        raw = t
    }
    var job Job
    if len(raw) == 0 || json.Unmarshal(raw, &job) != nil || job.ID == "" {
        _ = q.AddDLQ(ctx, raw, "undecodable payload")
        return msg.ID, Job{}, ErrBadPayload
    }
    return msg.ID, job, nil
}

// Ack marks a message as processed.
func (q *RedisQueue) Ack(ctx context.Context, msgID string) error {
    if msgID == "" { return nil }
    return q.client.XAck(ctx, q.Stream, q.Group, msgID).Err()
}

// CancelJob marks a job as cancelled. Workers check this before processing.
func (q *RedisQueue) CancelJob(ctx context.Context, jobID string) error {
    return q.client.SAdd(ctx, q.CancelKey, jobID).Err()
}

// IsCancelled returns true if job is cancelled.
func (q *RedisQueue) IsCancelled(ctx context.Context, jobID string) (bool, error) {
    return q.client.SIsMember(ctx, q.CancelKey, jobID).Result()
}

// AddDLQ pushes a payload that could not be processed to the DLQ stream with reason.
func (q *RedisQueue) AddDLQ(ctx context.Context, payload []byte, reason string) error {
    return q.client.XAdd(ctx, &redis.XAddArgs{Stream: q.DLQStream, Values: map[string]any{"data": string(payload), "reason": reason}}).Err()
}

// IsIdemDone returns true if the job was already finished by some worker.
func (q *RedisQueue) IsIdemDone(ctx context.Context, jobID string) (bool, error) {
    if jobID == "" { return false, nil }
    exists, err := q.client.Exists(ctx, q.IdemDoneKey+jobID).Result()
    return exists == 1, err
}

// MarkIdemDone marks a job as finished with TTL.
func (q *RedisQueue) MarkIdemDone(ctx context.Context, jobID string, ttl time.Duration) error {
    if jobID == "" { return nil }
    return q.client.Set(ctx, q.IdemDoneKey+jobID, 1, ttl).Err()
}

// mover periodically moves due delayed jobs from ZSET into the stream.
func (q *RedisQueue) mover() {
    if q.pollInterval <= 0 { q.pollInterval = 200 * time.Millisecond }
    ticker := time.NewTicker(q.pollInterval)
    defer ticker.Stop()
    for {
        select {
        case <-q.stop:
            return
        case <-ticker.C:
            q.moveDue(time.Now())
        }
    }
}

// moveDue moves up to 100 jobs due at now into the stream and reports how many moved.
func (q *RedisQueue) moveDue(now time.Time) int {
    ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
    defer cancel()
    vals, err := q.client.ZRangeByScore(ctx, q.DelayedKey, &redis.ZRangeBy{
        Min: "-inf", Max: fmt.Sprintf("%d", now.Unix()), Offset: 0, Count: 100,
    }).Result()
    if err != nil || len(vals) == 0 { return 0 }
    pipe := q.client.TxPipeline()
    for _, s := range vals {
        pipe.XAdd(ctx, &redis.XAddArgs{Stream: q.Stream, Values: map[string]any{"data": s}})
        pipe.ZRem(ctx, q.DelayedKey, s)
    }
    if _, err := pipe.Exec(ctx); err != nil { return 0 }
    return len(vals)
}

// Depths holds queue sizes for metrics and status.
type Depths struct {
    Stream  int64 `json:"stream"`
    Pending int64 `json:"pending"`
    Delayed int64 `json:"delayed"`
    DLQ     int64 `json:"dlq"`
}

// Depths returns approximate stream/pending/delayed/dlq lengths.
func (q *RedisQueue) Depths(ctx context.Context) (Depths, error) {
    pipe := q.client.Pipeline()
    xlen := pipe.XLen(ctx, q.Stream)
    zcard := pipe.ZCard(ctx, q.DelayedKey)
    dxlen := pipe.XLen(ctx, q.DLQStream)
    if _, err := pipe.Exec(ctx); err != nil { return Depths{}, err }
    d := Depths{Stream: xlen.Val(), Delayed: zcard.Val(), DLQ: dxlen.Val()}
    if p, err := q.client.XPending(ctx, q.Stream, q.Group).Result(); err == nil {
        d.Pending = p.Count
    }
    return d, nil
}
