package cache

import (
	"log/slog"
	"time"
)

// DefaultInterval is how often a running cache reloads from storage.
const DefaultInterval = 15 * time.Second

type options struct {
	interval time.Duration
	logger   *slog.Logger
	name     string
}

// Option configures a Cache.
type Option func(*options)

// WithInterval sets the reload interval. Non-positive values keep the default.
func WithInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.interval = d
		}
	}
}

// WithLogger sets the logger used by the background loop.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithName names the cache in logs and metrics. It is usually the table name.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}
