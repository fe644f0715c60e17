package store

import (
    "context"
    "fmt"
    "strconv"
    "time"

    redis "github.com/redis/go-redis/v9"

    "github.com/local/bookletd/internal/booklet"
)

// TraceStore keeps the composer trace of a job, one hash per sheet mapping
// slot numbers to page numbers.
type TraceStore struct {
    client *redis.Client
    ttl    time.Duration
}

func NewTraceStore(c *redis.Client, ttl time.Duration) *TraceStore {
    return &TraceStore{client: c, ttl: ttl}
}

func (s *TraceStore) sheetKey(jobID string, sheet int) string {
    return fmt.Sprintf("booklet:%s:sheet:%d", jobID, sheet)
}

func (s *TraceStore) countKey(jobID string) string {
    return fmt.Sprintf("booklet:%s:sheets", jobID)
}

// Save stores trace for a job whose output has sheets sheets.
func (s *TraceStore) Save(ctx context.Context, jobID string, sheets int, trace []booklet.Placement) error {
    bySheet := map[int]map[string]interface{}{}
    for _, p := range trace {
        m, ok := bySheet[p.Sheet]
        if !ok {
            m = map[string]interface{}{}
            bySheet[p.Sheet] = m
        }
        m["slot"+strconv.Itoa(p.Slot)] = p.Page
    }
    pipe := s.client.TxPipeline()
    pipe.Set(ctx, s.countKey(jobID), sheets, s.ttl)
    for sheet, m := range bySheet {
        key := s.sheetKey(jobID, sheet)
        pipe.HSet(ctx, key, m)
        if s.ttl > 0 { pipe.Expire(ctx, key, s.ttl) }
    }
    _, err := pipe.Exec(ctx)
    return err
}

// Sheet returns the placements of one sheet in slot order.
func (s *TraceStore) Sheet(ctx context.Context, jobID string, sheet int) ([]booklet.Placement, error) {
    res, err := s.client.HGetAll(ctx, s.sheetKey(jobID, sheet)).Result()
    if err != nil { return nil, err }
    var out []booklet.Placement
    for slot := 1; slot <= booklet.SlotsPerSheet; slot++ {
        v, ok := res["slot"+strconv.Itoa(slot)]
        if !ok { continue }
        page, err := strconv.Atoi(v)
        if err != nil { return nil, fmt.Errorf("sheet %d slot %d: %w", sheet, slot, err) }
        out = append(out, booklet.Placement{Sheet: sheet, Slot: slot, Page: page})
    }
    return out, nil
}

// Trace returns the whole stored trace. found is false when nothing was saved for the job.
func (s *TraceStore) Trace(ctx context.Context, jobID string) (trace []booklet.Placement, sheets int, found bool, err error) {
    sheets, err = s.client.Get(ctx, s.countKey(jobID)).Int()
    if err == redis.Nil { return nil, 0, false, nil }
    if err != nil { return nil, 0, false, err }
    for i := 1; i <= sheets; i++ {
        ps, err := s.Sheet(ctx, jobID, i)
        if err != nil { return nil, 0, true, err }
        trace = append(trace, ps...)
    }
    return trace, sheets, true, nil
}
