// Package limiter caps concurrent synchronous conversions per key.
package limiter

import (
    "strings"
    "sync"

    "golang.org/x/sync/semaphore"
)

type Inflight struct {
    max int64
    mu  sync.Mutex
    sem map[string]*semaphore.Weighted
}

// New allows up to maxInflight concurrent holders per key; <= 0 means 2.
func New(maxInflight int) *Inflight {
    if maxInflight <= 0 { maxInflight = 2 }
    return &Inflight{max: int64(maxInflight), sem: map[string]*semaphore.Weighted{}}
}

// Allow tries to reserve a slot for key without waiting.
// Returns a release function and true if allowed; otherwise a no-op, false.
func (a *Inflight) Allow(key string) (func(), bool) {
    key = strings.ToLower(key)
    a.mu.Lock()
    s, ok := a.sem[key]
    if !ok {
        s = semaphore.NewWeighted(a.max)
        a.sem[key] = s
    }
    a.mu.Unlock()
    if !s.TryAcquire(1) { return func() {}, false }
    var once sync.Once
    return func() { once.Do(func() { s.Release(1) }) }, true
}
