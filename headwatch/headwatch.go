// Package headwatch implements the per-worker latest-block watcher: a
// TTL-cached read of the chain head so that busy schedulers don't hammer the
// upstream node with a get_block_number call on every tick.
package headwatch

import (
	"context"
	"sync"
	"time"
)

// TTL is the freshness window for a cached head value.
const TTL = 10 * time.Second

// HeadSource is the narrow slice of Provider a Watcher depends on.
type HeadSource interface {
	GetBlockNumber(ctx context.Context) (uint64, error)
}

// Watcher caches the chain head for TTL. It is owned by exactly one worker
// and is not shared, so it needs no lock against other goroutines beyond
// protecting its own fields from the rare concurrent call.
type Watcher struct {
	source HeadSource

	mu       sync.Mutex
	value    uint64
	fetchedAt time.Time
}

// New returns a Watcher reading from source.
func New(source HeadSource) *Watcher {
	return &Watcher{source: source}
}

// Get returns the cached head if it is still fresh, otherwise fetches and
// caches a new value.
func (w *Watcher) Get(ctx context.Context) (uint64, error) {
	w.mu.Lock()
	if !w.fetchedAt.IsZero() && time.Since(w.fetchedAt) < TTL {
		v := w.value
		w.mu.Unlock()
		return v, nil
	}
	w.mu.Unlock()

	v, err := w.source.GetBlockNumber(ctx)
	if err != nil {
		return 0, err
	}

	w.mu.Lock()
	w.value = v
	w.fetchedAt = time.Now()
	w.mu.Unlock()
	return v, nil
}
