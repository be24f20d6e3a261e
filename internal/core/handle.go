package core

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/Jakar510/jakardb/internal/cache"
	"github.com/Jakar510/jakardb/internal/table"
)

// tableStore is what a cached handle needs from storage.
// *table.Table satisfies it.
type tableStore[R table.Record[ID], ID cmp.Ordered] interface {
	cache.Store[R, ID]
	Insert(ctx context.Context, rec R) error
	InsertMany(ctx context.Context, records []R) (int64, error)
	ReplaceMany(ctx context.Context, records []R) (int64, error)
	Delete(ctx context.Context, ids ...ID) (int64, error)
	Where(ctx context.Context, column string, value any) ([]R, error)
	Count(ctx context.Context) (int64, error)
}

// Define returns a definition that serves schema's table through a
// write-back cache. Panics if the schema is invalid.
func Define[R table.Record[ID], ID cmp.Ordered](group, label string, schema *table.Schema[R, ID]) TableDefinition {
	if err := schema.Validate(); err != nil {
		panic(fmt.Sprintf("define %s: %v", schema.Table, err))
	}

	info := TableInfo{
		Key:       schema.Table,
		Group:     group,
		Label:     label,
		Columns:   schema.ColumnNames(),
		KeyColumn: schema.KeyColumn().Name,
	}

	return TableDefinition{
		Info: info,
		Open: func(db table.DBTX, opts ...cache.Option) (Handle, error) {
			tbl, err := table.New(db, schema)
			if err != nil {
				return nil, fmt.Errorf("open %s: %w", info.Key, err)
			}
			return newCachedHandle(info, schema, tbl, opts...), nil
		},
	}
}

// cachedHandle adapts a typed cache to the Handle interface.
type cachedHandle[R table.Record[ID], ID cmp.Ordered] struct {
	info   TableInfo
	schema *table.Schema[R, ID]
	store  tableStore[R, ID]
	cache  *cache.Cache[R, ID]
}

func newCachedHandle[R table.Record[ID], ID cmp.Ordered](info TableInfo, schema *table.Schema[R, ID], store tableStore[R, ID], opts ...cache.Option) *cachedHandle[R, ID] {
	opts = append([]cache.Option{cache.WithName(info.Key)}, opts...)
	return &cachedHandle[R, ID]{
		info:   info,
		schema: schema,
		store:  store,
		cache:  cache.New[R, ID](store, opts...),
	}
}

func (h *cachedHandle[R, ID]) Info() TableInfo                  { return h.info }
func (h *cachedHandle[R, ID]) Start(ctx context.Context) error  { return h.cache.Start(ctx) }
func (h *cachedHandle[R, ID]) Reload(ctx context.Context) error { return h.cache.Reload(ctx) }
func (h *cachedHandle[R, ID]) Flush(ctx context.Context) error  { return h.cache.Flush(ctx) }
func (h *cachedHandle[R, ID]) Close(ctx context.Context) error  { return h.cache.Close(ctx) }
func (h *cachedHandle[R, ID]) Stats() cache.Stats               { return h.cache.Stats() }
func (h *cachedHandle[R, ID]) WritePrometheus(w io.Writer)      { h.cache.WritePrometheus(w) }

func (h *cachedHandle[R, ID]) List(ctx context.Context) ([]any, error) {
	out := make([]any, 0, h.cache.Len())
	for rec, err := range h.cache.All(ctx) {
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", h.info.Key, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (h *cachedHandle[R, ID]) Get(id string) (any, error) {
	key, err := h.parseID(id)
	if err != nil {
		return nil, err
	}

	rec, ok := h.cache.Get(key)
	if !ok {
		return nil, h.notFound(key)
	}
	return rec, nil
}

// Put only replaces records the cache already holds: write-back issues
// UPDATEs, so a key unknown to storage could never be flushed.
func (h *cachedHandle[R, ID]) Put(id string, body []byte) (any, error) {
	key, err := h.parseID(id)
	if err != nil {
		return nil, err
	}
	if _, ok := h.cache.Get(key); !ok {
		return nil, h.notFound(key)
	}

	rec, err := h.decode(body)
	if err != nil {
		return nil, err
	}
	if rec.RecordID() != key {
		return nil, fmt.Errorf("%w: body has %v, path has %v", ErrIDMismatch, rec.RecordID(), key)
	}

	h.cache.Set(rec)
	return rec, nil
}

func (h *cachedHandle[R, ID]) Create(ctx context.Context, body []byte) (any, error) {
	rec, err := h.decode(body)
	if err != nil {
		return nil, err
	}

	if err := h.store.Insert(ctx, rec); err != nil {
		return nil, fmt.Errorf("create %s %v: %w", h.info.Key, rec.RecordID(), err)
	}
	h.cache.AddOrUpdate(rec)
	return rec, nil
}

func (h *cachedHandle[R, ID]) Delete(ctx context.Context, id string) error {
	key, err := h.parseID(id)
	if err != nil {
		return err
	}

	n, err := h.store.Delete(ctx, key)
	if err != nil {
		return fmt.Errorf("delete %s %v: %w", h.info.Key, key, err)
	}
	h.cache.Remove(key)
	if n == 0 {
		return h.notFound(key)
	}
	return nil
}

func (h *cachedHandle[R, ID]) Rows(ctx context.Context) ([]any, error) {
	recs, err := h.store.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", h.info.Key, err)
	}
	return toAny(recs), nil
}

func (h *cachedHandle[R, ID]) Where(ctx context.Context, column, value string) ([]any, error) {
	recs, err := h.store.Where(ctx, column, value)
	if err != nil {
		return nil, fmt.Errorf("filter %s: %w", h.info.Key, err)
	}
	return toAny(recs), nil
}

func (h *cachedHandle[R, ID]) Count(ctx context.Context) (int64, error) {
	n, err := h.store.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", h.info.Key, err)
	}
	return n, nil
}

func (h *cachedHandle[R, ID]) Import(ctx context.Context, body []byte, replace bool) (int64, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return 0, fmt.Errorf("%w for %s: expected a JSON array: %v", ErrInvalidRecord, h.info.Key, err)
	}

	recs := make([]R, len(raw))
	for i, item := range raw {
		rec, err := h.decode(item)
		if err != nil {
			return 0, fmt.Errorf("record %d: %w", i, err)
		}
		recs[i] = rec
	}
	if len(recs) == 0 {
		return 0, nil
	}

	load := h.store.InsertMany
	if replace {
		load = h.store.ReplaceMany
	}
	n, err := load(ctx, recs)
	if err != nil {
		return 0, fmt.Errorf("import %s: %w", h.info.Key, err)
	}

	for _, rec := range recs {
		h.cache.AddOrUpdate(rec)
	}
	return n, nil
}

func (h *cachedHandle[R, ID]) parseID(id string) (ID, error) {
	if h.schema.ParseID == nil {
		var zero ID
		return zero, fmt.Errorf("%w: %s cannot address records by id", ErrInvalidID, h.info.Key)
	}
	key, err := h.schema.ParseID(id)
	if err != nil {
		return key, fmt.Errorf("%w %q for %s: %v", ErrInvalidID, id, h.info.Key, err)
	}
	return key, nil
}

func (h *cachedHandle[R, ID]) decode(body []byte) (R, error) {
	rec := h.schema.New()
	if err := json.Unmarshal(body, rec); err != nil {
		var zero R
		return zero, fmt.Errorf("%w for %s: %v", ErrInvalidRecord, h.info.Key, err)
	}
	return rec, nil
}

func toAny[R any](recs []R) []any {
	out := make([]any, len(recs))
	for i, rec := range recs {
		out[i] = rec
	}
	return out
}

func (h *cachedHandle[R, ID]) notFound(key ID) error {
	return fmt.Errorf("%s %v: %w", h.info.Key, key, table.ErrRecordNotFound)
}
