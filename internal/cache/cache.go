package cache

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sync"
	"time"

	"github.com/Jakar510/jakardb/internal/logging"
	"github.com/Jakar510/jakardb/internal/table"
	"github.com/google/uuid"
)

// State is the lifecycle stage of a Cache.
type State string

const (
	StateCreated   State = "created"
	StateRunning   State = "running"
	StateDisposing State = "disposing"
	StateDisposed  State = "disposed"
)

var (
	// ErrAlreadyStarted is returned by Start on a running cache.
	ErrAlreadyStarted = errors.New("cache already started")

	// ErrClosed is returned by Start after Close.
	ErrClosed = errors.New("cache closed")
)

// Stats is a snapshot of a cache's state and reload history.
type Stats struct {
	Name                string    `json:"name"`
	State               State     `json:"state"`
	Records             int       `json:"records"`
	Dirty               int       `json:"dirty"`
	Reloads             int64     `json:"reloads"`
	Failures            int64     `json:"failures"`
	ConsecutiveFailures int64     `json:"consecutiveFailures"`
	LastReload          time.Time `json:"lastReload,omitzero"`
	LastError           string    `json:"lastError,omitempty"`
}

// Cache keeps one table's records in a Mapping, reloads them periodically
// and writes local changes back.
type Cache[R table.Record[ID], ID cmp.Ordered] struct {
	id       uuid.UUID
	name     string
	store    Store[R, ID]
	mapping  *Mapping[R, ID]
	interval time.Duration
	logger   *slog.Logger
	metrics  *cacheMetrics

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	done   chan struct{}
	stats  Stats
}

// New creates a stopped cache over store. Call Reload to load it and
// Start to begin periodic reloads.
func New[R table.Record[ID], ID cmp.Ordered](store Store[R, ID], opts ...Option) *Cache[R, ID] {
	o := options{
		interval: DefaultInterval,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Cache[R, ID]{
		id:       uuid.New(),
		name:     o.name,
		store:    store,
		mapping:  NewMapping[R, ID](),
		interval: o.interval,
		state:    StateCreated,
	}
	c.logger = o.logger.With("cache", c.name, "cache_id", c.id.String())
	c.metrics = newCacheMetrics(c.name,
		func() float64 { return float64(c.mapping.Len()) },
		func() float64 { return float64(c.mapping.pendingCount()) },
	)
	return c
}

// Name returns the name given with WithName.
func (c *Cache[R, ID]) Name() string {
	return c.name
}

// Interval returns the reload interval.
func (c *Cache[R, ID]) Interval() time.Duration {
	return c.interval
}

// Mapping returns the underlying mapping.
func (c *Cache[R, ID]) Mapping() *Mapping[R, ID] {
	return c.mapping
}

// Start launches the background reload loop. The loop runs until ctx is
// cancelled or the cache is closed.
func (c *Cache[R, ID]) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateRunning:
		return ErrAlreadyStarted
	case StateDisposing, StateDisposed:
		return ErrClosed
	}

	loopCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	c.state = StateRunning

	go c.run(loopCtx, c.done)

	c.logger.Info("cache started", "interval", c.interval)
	return nil
}

// run waits for each tick and reloads. Errors are logged and the loop
// carries on with the next tick.
func (c *Cache[R, ID]) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Debug("cache loop stopped")
			return
		case <-ticker.C:
			c.tick(ctx)
		}
	}
}

func (c *Cache[R, ID]) tick(ctx context.Context) {
	reloadID := uuid.NewString()
	start := time.Now()

	err := c.Reload(ctx)
	if err == nil {
		c.logger.Debug("cache reloaded",
			"reload_id", reloadID,
			"records", c.mapping.Len(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return
	}
	if ctx.Err() != nil {
		return
	}

	c.mu.Lock()
	consecutive := c.stats.ConsecutiveFailures
	c.mu.Unlock()

	c.logger.Log(ctx, logging.LevelCritical, "cache reload failed",
		"reload_id", reloadID,
		"error", err,
		"consecutive_failures", consecutive,
		"dirty", c.mapping.pendingCount(),
	)
}

// Reload writes back dirty records, then replaces the mapping's contents
// with every row from storage.
func (c *Cache[R, ID]) Reload(ctx context.Context) error {
	err := c.reload(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	// A reload cut short by its own cancellation is not a failure.
	if err != nil && ctx.Err() != nil {
		return err
	}
	if err != nil {
		c.stats.Failures++
		c.stats.ConsecutiveFailures++
		c.stats.LastError = err.Error()
		c.metrics.reloadFailures.Inc()
		return err
	}

	c.stats.Reloads++
	c.stats.ConsecutiveFailures = 0
	c.stats.LastError = ""
	c.stats.LastReload = time.Now()
	c.metrics.reloads.Inc()
	return nil
}

func (c *Cache[R, ID]) reload(ctx context.Context) error {
	if err := c.flush(ctx); err != nil {
		return err
	}

	records, err := c.store.All(ctx)
	if err != nil {
		return fmt.Errorf("load %s: %w", c.name, err)
	}

	c.mapping.Replace(records)
	return nil
}

// Flush writes every dirty record back to storage.
func (c *Cache[R, ID]) Flush(ctx context.Context) error {
	return c.flush(ctx)
}

func (c *Cache[R, ID]) flush(ctx context.Context) error {
	n, dropped, err := c.mapping.refresh(ctx, c.store)
	if len(dropped) > 0 {
		c.logger.Warn("dropped local changes to records deleted from storage",
			"count", len(dropped),
			"keys", dropped,
		)
	}
	if n > 0 {
		c.metrics.flushedRecords.Add(n)
		c.logger.Debug("flushed dirty records", "count", n)
	}
	return err
}

// Get returns the record for id.
func (c *Cache[R, ID]) Get(id ID) (R, bool) {
	return c.mapping.Get(id)
}

// Set stores rec, marking it dirty when it differs from storage.
func (c *Cache[R, ID]) Set(rec R) {
	c.mapping.Set(rec)
}

// AddOrUpdate stores rec as already in sync with storage.
func (c *Cache[R, ID]) AddOrUpdate(rec R) {
	c.mapping.AddOrUpdate(rec)
}

// Remove drops id from the cache. Storage is not touched.
func (c *Cache[R, ID]) Remove(id ID) bool {
	return c.mapping.Remove(id)
}

// Len returns the number of cached records.
func (c *Cache[R, ID]) Len() int {
	return c.mapping.Len()
}

// Keys returns the cached keys in ascending order.
func (c *Cache[R, ID]) Keys() []ID {
	return c.mapping.Keys()
}

// HasChanged reports whether id has unsaved changes.
func (c *Cache[R, ID]) HasChanged(id ID) bool {
	return c.mapping.HasChanged(id)
}

// All iterates the cached records in key order. Every step first writes
// back dirty records, so iteration speed is bound by storage latency
// whenever records are being modified. A write-back failure is yielded as
// the error and ends the iteration.
func (c *Cache[R, ID]) All(ctx context.Context) iter.Seq2[R, error] {
	return func(yield func(R, error) bool) {
		for _, id := range c.mapping.Keys() {
			if err := c.flush(ctx); err != nil {
				var zero R
				yield(zero, err)
				return
			}

			rec, ok := c.mapping.Get(id)
			if !ok {
				continue
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}

// Stats returns a snapshot of the cache's state.
func (c *Cache[R, ID]) Stats() Stats {
	c.mu.Lock()
	s := c.stats
	s.State = c.state
	c.mu.Unlock()

	s.Name = c.name
	s.Records = c.mapping.Len()
	s.Dirty = len(c.mapping.DirtyKeys())
	return s
}

// Close stops the loop and flushes dirty records. If the flush fails the
// records stay in memory and a later Close retries it. Once the flush
// succeeds the mapping is cleared and further calls return nil.
func (c *Cache[R, ID]) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateDisposed {
		c.mu.Unlock()
		return nil
	}
	c.state = StateDisposing
	cancel, done := c.cancel, c.done
	c.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := c.flush(ctx); err != nil {
		c.logger.Log(ctx, logging.LevelCritical, "flush on close failed",
			"error", err,
			"dirty", c.mapping.pendingCount(),
		)
		return err
	}

	c.mapping.Clear()

	c.mu.Lock()
	c.state = StateDisposed
	c.mu.Unlock()

	c.logger.Info("cache closed")
	return nil
}
