package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryCounter is an in-process sliding-window Strategy for tests and
// single-instance deployments that don't need a shared Redis window.
type MemoryCounter struct {
	mu         sync.Mutex
	timestamps map[string][]time.Time
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{timestamps: make(map[string][]time.Time)}
}

func (c *MemoryCounter) Run(_ context.Context, r Request) (Result, error) {
	now := time.Now().UTC()
	minimum := now.Add(-r.Duration)
	expiresAt := now.Add(r.Duration)

	c.mu.Lock()
	defer c.mu.Unlock()

	kept := c.timestamps[r.Key][:0]
	for _, ts := range c.timestamps[r.Key] {
		if ts.After(minimum) {
			kept = append(kept, ts)
		}
	}

	res := Result{State: Deny, ExpiresAt: expiresAt, TotalRequests: uint64(len(kept))}
	if res.TotalRequests >= r.Limit {
		c.timestamps[r.Key] = kept
		return res, nil
	}

	kept = append(kept, now)
	c.timestamps[r.Key] = kept
	res.TotalRequests = uint64(len(kept))
	res.State = Allow

	return res, nil
}

var _ Strategy = (*MemoryCounter)(nil)
