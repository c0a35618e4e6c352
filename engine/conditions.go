package engine

import (
	"context"
	"log"
	"sync/atomic"
	"time"
)

// UnknownConditions is the sentinel readers see before the first
// successful refresh.
const UnknownConditions = "unknown"

// Conditions is a single-slot holder for externally refreshed context
// (e.g. current weather). It is written only by the refresh task and read
// by prompt assembly; readers always see the last successfully fetched
// value or the unknown sentinel, never a half-written one.
type Conditions struct {
	value atomic.Pointer[string]
}

// NewConditions creates a slot holding the unknown sentinel.
func NewConditions() *Conditions {
	c := &Conditions{}
	sentinel := UnknownConditions
	c.value.Store(&sentinel)
	return c
}

// Current returns the last stored value.
func (c *Conditions) Current() string {
	return *c.value.Load()
}

// Set atomically replaces the slot's value.
func (c *Conditions) Set(value string) {
	c.value.Store(&value)
}

// Refresh runs fetch on the given interval until ctx is cancelled,
// replacing the slot on success and keeping the previous value on failure.
// It runs on its own schedule, decoupled from the request path; call it in
// a goroutine.
func (c *Conditions) Refresh(ctx context.Context, interval time.Duration, fetch func(context.Context) (string, error)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		value, err := fetch(ctx)
		if err != nil {
			log.Printf("[CONDITIONS] Refresh failed: %v", err)
		} else {
			c.Set(value)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
