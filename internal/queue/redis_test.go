package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"
	redis "github.com/redis/go-redis/v9"
)

func newTestQueue(t *testing.T) (*RedisQueue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	q, err := NewRedisQueueFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "jobs:test", "workers", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { q.Close() })
	return q, mr
}

func TestEnqueueDequeueAck(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()
	job := Job{ID: "j1", Mode: "b", InputKey: "inputs/j1.pdf", FileName: "zine.pdf", EnqueuedAt: time.Unix(1700000000, 0).UTC()}
	if err := q.Enqueue(ctx, job); err != nil {
		t.Fatal(err)
	}

	id, got, err := q.Dequeue(ctx, "w1", 100*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if id == "" {
		t.Fatal("no message dequeued")
	}
	if diff := cmp.Diff(job, got); diff != "" {
		t.Errorf("job mismatch (-want +got):\n%s", diff)
	}

	d, err := q.Depths(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if d.Stream != 1 || d.Pending != 1 {
		t.Errorf("depths before ack = %+v", d)
	}
	if err := q.Ack(ctx, id); err != nil {
		t.Fatal(err)
	}
	if d, _ := q.Depths(ctx); d.Pending != 0 {
		t.Errorf("pending after ack = %d", d.Pending)
	}
}

func TestDequeueBadPayloadGoesToDLQ(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()
	if err := q.client.XAdd(ctx, &redis.XAddArgs{Stream: q.Stream, Values: map[string]any{"data": "{not json"}}).Err(); err != nil {
		t.Fatal(err)
	}
	id, _, err := q.Dequeue(ctx, "w1", 100*time.Millisecond)
	if !errors.Is(err, ErrBadPayload) || id == "" {
		t.Fatalf("id %q, err %v; want ErrBadPayload with an id", id, err)
	}
	if d, _ := q.Depths(ctx); d.DLQ != 1 {
		t.Errorf("dlq depth = %d, want 1", d.DLQ)
	}
}

func TestCancelJob(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()
	if err := q.CancelJob(ctx, "j2"); err != nil {
		t.Fatal(err)
	}
	if ok, err := q.IsCancelled(ctx, "j2"); err != nil || !ok {
		t.Errorf("IsCancelled(j2) = %v, %v", ok, err)
	}
	if ok, _ := q.IsCancelled(ctx, "j3"); ok {
		t.Error("j3 reported cancelled")
	}
}

func TestDelayedJobsMoveWhenDue(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()
	now := time.Now()
	if err := q.EnqueueAt(ctx, Job{ID: "later"}, now.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	if err := q.EnqueueAt(ctx, Job{ID: "due"}, now.Add(-time.Second)); err != nil {
		t.Fatal(err)
	}

	if moved := q.moveDue(now); moved != 1 {
		t.Fatalf("moved %d jobs, want 1", moved)
	}
	_, job, err := q.Dequeue(ctx, "w1", 100*time.Millisecond)
	if err != nil || job.ID != "due" {
		t.Fatalf("dequeued %+v, %v", job, err)
	}
	if d, _ := q.Depths(ctx); d.Delayed != 1 {
		t.Errorf("delayed depth = %d, want 1", d.Delayed)
	}
}

func TestIdempotencyMarker(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()
	if done, _ := q.IsIdemDone(ctx, "j1"); done {
		t.Fatal("fresh job reported done")
	}
	if err := q.MarkIdemDone(ctx, "j1", time.Hour); err != nil {
		t.Fatal(err)
	}
	if done, err := q.IsIdemDone(ctx, "j1"); err != nil || !done {
		t.Errorf("IsIdemDone = %v, %v", done, err)
	}
}
