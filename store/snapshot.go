package store

import (
	"context"
	"time"
)

// Snapshotter ticks every interval and invokes save, so a long-lived
// document gets durably flattened on a schedule rather than only at the
// moment a caller happens to ask for one. Grounded on the teacher's own
// reliance on a single background connection (no periodic work of its
// own) generalized into the simplest idiomatic select-on-ticker loop.
type Snapshotter struct {
	interval time.Duration
}

// NewSnapshotter returns a Snapshotter that fires every interval.
func NewSnapshotter(interval time.Duration) *Snapshotter {
	return &Snapshotter{interval: interval}
}

// Run calls save on every tick until ctx is cancelled.
func (sn *Snapshotter) Run(ctx context.Context, save func()) {
	ticker := time.NewTicker(sn.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			save()
		}
	}
}
