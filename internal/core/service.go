package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/Jakar510/jakardb/internal/cache"
	"github.com/Jakar510/jakardb/internal/config"
	"github.com/Jakar510/jakardb/internal/logging"
	"github.com/Jakar510/jakardb/internal/table"
	"golang.org/x/sync/errgroup"
)

// MaxParallelLoads caps how many tables load or flush at once.
var MaxParallelLoads = 4

// pinger is satisfied by *pgxpool.Pool.
type pinger interface {
	Ping(ctx context.Context) error
}

// Service owns one cached Handle per registered table.
type Service struct {
	db     table.DBTX
	cfg    config.CacheConfig
	logger *slog.Logger

	handles map[string]Handle
	infos   []TableInfo
}

// NewService opens a handle for every definition over db.
func NewService(db table.DBTX, cfg config.CacheConfig, defs []TableDefinition) (*Service, error) {
	logger := slog.Default().With("component", "core")

	defs = append([]TableDefinition(nil), defs...)
	sortDefinitions(defs)

	s := &Service{
		db:      db,
		cfg:     cfg,
		logger:  logger,
		handles: make(map[string]Handle, len(defs)),
		infos:   make([]TableInfo, 0, len(defs)),
	}

	for _, def := range defs {
		if _, dup := s.handles[def.Info.Key]; dup {
			return nil, fmt.Errorf("table already registered: %s", def.Info.Key)
		}

		h, err := def.Open(db,
			cache.WithInterval(cfg.RefreshInterval),
			cache.WithLogger(logger.With("table", def.Info.Key)),
		)
		if err != nil {
			return nil, err
		}

		s.handles[def.Info.Key] = h
		s.infos = append(s.infos, h.Info())
	}

	return s, nil
}

// Tables returns information about every served table, sorted by group then key.
func (s *Service) Tables() []TableInfo {
	return append([]TableInfo(nil), s.infos...)
}

// Table returns the handle for key.
func (s *Service) Table(key string) (Handle, error) {
	h, ok := s.handles[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, key)
	}
	return h, nil
}

// Start loads every table in parallel, then starts each refresh loop.
// The loops run until ctx is cancelled or Close is called.
func (s *Service) Start(ctx context.Context) error {
	if err := s.Load(ctx); err != nil {
		return err
	}

	for _, info := range s.infos {
		if err := s.handles[info.Key].Start(ctx); err != nil {
			return fmt.Errorf("start %s: %w", info.Key, err)
		}
	}

	s.logger.Info("caches started", "tables", len(s.infos), "interval", s.cfg.RefreshInterval)
	return nil
}

// Load performs one reload of every table, bounded by the load timeout.
// The first failure cancels the remaining loads.
func (s *Service) Load(ctx context.Context) error {
	if s.cfg.LoadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.LoadTimeout)
		defer cancel()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(MaxParallelLoads)

	for _, info := range s.infos {
		h := s.handles[info.Key]
		g.Go(func() error {
			if err := h.Reload(gctx); err != nil {
				return fmt.Errorf("load %s: %w", info.Key, err)
			}
			return nil
		})
	}

	return g.Wait()
}

// Flush writes back every table's dirty records. Unlike Load, one table
// failing does not stop the others; all failures are joined.
func (s *Service) Flush(ctx context.Context) error {
	return s.each(ctx, "flush", Handle.Flush)
}

// Close stops every refresh loop and flushes what is left, bounded by the
// flush timeout. A table whose flush failed keeps its changes, and calling
// Close again retries it.
func (s *Service) Close(ctx context.Context) error {
	if s.cfg.FlushTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.FlushTimeout)
		defer cancel()
	}

	if err := s.each(ctx, "close", Handle.Close); err != nil {
		return err
	}
	s.logger.Info("caches closed", "tables", len(s.infos))
	return nil
}

// Ping checks the database connection when the underlying pool supports it.
func (s *Service) Ping(ctx context.Context) error {
	if p, ok := s.db.(pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Stats returns a snapshot for every table in Tables order.
func (s *Service) Stats() []cache.Stats {
	out := make([]cache.Stats, len(s.infos))
	for i, info := range s.infos {
		out[i] = s.handles[info.Key].Stats()
	}
	return out
}

// WritePrometheus writes every table's cache series.
func (s *Service) WritePrometheus(w io.Writer) {
	for _, info := range s.infos {
		s.handles[info.Key].WritePrometheus(w)
	}
}

// each runs op on every handle in parallel and joins the failures.
func (s *Service) each(ctx context.Context, name string, op func(Handle, context.Context) error) error {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	g.SetLimit(MaxParallelLoads)

	for _, info := range s.infos {
		h := s.handles[info.Key]
		g.Go(func() error {
			if err := op(h, ctx); err != nil {
				logging.WithFields(ctx, "table", info.Key, "op", name).
					Log(ctx, logging.LevelCritical, "write-back failed; changes remain in memory", "error", err)
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s %s: %w", name, info.Key, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}
