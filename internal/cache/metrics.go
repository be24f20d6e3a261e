package cache

import (
	"fmt"
	"io"

	"github.com/VictoriaMetrics/metrics"
)

// cacheMetrics are the per-cache series. Each cache owns its own set so
// tables can come and go without touching the global registry.
type cacheMetrics struct {
	set            *metrics.Set
	reloads        *metrics.Counter
	reloadFailures *metrics.Counter
	flushedRecords *metrics.Counter
}

func newCacheMetrics(name string, records, dirty func() float64) *cacheMetrics {
	set := metrics.NewSet()
	series := func(metric string) string {
		return fmt.Sprintf("%s{cache=%q}", metric, name)
	}

	set.NewGauge(series("jakardb_cache_records"), records)
	set.NewGauge(series("jakardb_cache_dirty_records"), dirty)

	return &cacheMetrics{
		set:            set,
		reloads:        set.NewCounter(series("jakardb_cache_reloads_total")),
		reloadFailures: set.NewCounter(series("jakardb_cache_reload_failures_total")),
		flushedRecords: set.NewCounter(series("jakardb_cache_flushed_records_total")),
	}
}

// WritePrometheus writes the cache's series in Prometheus text format.
func (c *Cache[R, ID]) WritePrometheus(w io.Writer) {
	c.metrics.set.WritePrometheus(w)
}
