package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/Jakar510/jakardb/internal/cache"
	"github.com/Jakar510/jakardb/internal/table"
)

type item struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func (i *item) RecordID() int64 { return i.ID }
func (i *item) Hash() uint64    { return table.HashFields(i.ID, i.Name) }

func itemSchema() *table.Schema[*item, int64] {
	return &table.Schema[*item, int64]{
		Table: "items",
		Columns: []table.Column{
			{Field: "ID", Name: "id", Key: true},
			{Field: "Name", Name: "name"},
		},
		New:    func() *item { return &item{} },
		Fields: func(i *item) []any { return []any{&i.ID, &i.Name} },
		ParseID: func(s string) (int64, error) {
			return strconv.ParseInt(s, 10, 64)
		},
	}
}

var errStorage = errors.New("storage unavailable")

// memStore is an in-memory tableStore.
type memStore struct {
	mu        sync.Mutex
	rows      map[int64]item
	updates   int
	failWrite error
}

func newMemStore(rows ...item) *memStore {
	s := &memStore{rows: make(map[int64]item)}
	for _, r := range rows {
		s.rows[r.ID] = r
	}
	return s
}

func (s *memStore) All(context.Context) ([]*item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*item, 0, len(s.rows))
	for _, r := range s.rows {
		out = append(out, &r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) GetMany(_ context.Context, ids []int64) ([]*item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*item
	for _, id := range ids {
		if r, ok := s.rows[id]; ok {
			out = append(out, &r)
		}
	}
	return out, nil
}

func (s *memStore) Update(_ context.Context, recs []*item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failWrite != nil {
		return s.failWrite
	}
	for _, r := range recs {
		if _, ok := s.rows[r.ID]; !ok {
			return table.ErrRecordNotFound
		}
	}
	for _, r := range recs {
		s.rows[r.ID] = *r
	}
	s.updates++
	return nil
}

func (s *memStore) Insert(_ context.Context, rec *item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failWrite != nil {
		return s.failWrite
	}
	s.rows[rec.ID] = *rec
	return nil
}

func (s *memStore) InsertMany(_ context.Context, recs []*item) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failWrite != nil {
		return 0, s.failWrite
	}
	for _, r := range recs {
		if _, ok := s.rows[r.ID]; ok {
			return 0, fmt.Errorf("items %d: duplicate key", r.ID)
		}
	}
	for _, r := range recs {
		s.rows[r.ID] = *r
	}
	return int64(len(recs)), nil
}

func (s *memStore) ReplaceMany(_ context.Context, recs []*item) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failWrite != nil {
		return 0, s.failWrite
	}
	for _, r := range recs {
		s.rows[r.ID] = *r
	}
	return int64(len(recs)), nil
}

func (s *memStore) Where(_ context.Context, column string, value any) ([]*item, error) {
	if !strings.EqualFold(column, "name") {
		return nil, fmt.Errorf("items.%s: %w", column, table.ErrUnknownColumn)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*item
	for _, r := range s.rows {
		if r.Name == value {
			out = append(out, &r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) Count(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.rows)), nil
}

func (s *memStore) Delete(_ context.Context, ids ...int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, id := range ids {
		if _, ok := s.rows[id]; ok {
			delete(s.rows, id)
			n++
		}
	}
	return n, nil
}

func (s *memStore) row(id int64) (item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	return r, ok
}

// stubHandle records lifecycle calls for service tests.
type stubHandle struct {
	info TableInfo

	mu        sync.Mutex
	calls     []string
	reloadErr error
	flushErr  error
}

func (h *stubHandle) record(call string) {
	h.mu.Lock()
	h.calls = append(h.calls, call)
	h.mu.Unlock()
}

func (h *stubHandle) Calls() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.calls...)
}

func (h *stubHandle) Info() TableInfo { return h.info }

func (h *stubHandle) Start(context.Context) error { h.record("start"); return nil }

func (h *stubHandle) Reload(context.Context) error { h.record("reload"); return h.reloadErr }

func (h *stubHandle) Flush(context.Context) error { h.record("flush"); return h.flushErr }

func (h *stubHandle) Close(context.Context) error { h.record("close"); return h.flushErr }

func (h *stubHandle) List(context.Context) ([]any, error) { return nil, nil }

func (h *stubHandle) Get(string) (any, error) { return nil, table.ErrRecordNotFound }

func (h *stubHandle) Put(string, []byte) (any, error) { return nil, table.ErrRecordNotFound }

func (h *stubHandle) Create(context.Context, []byte) (any, error) { return nil, nil }

func (h *stubHandle) Delete(context.Context, string) error { return nil }

func (h *stubHandle) Rows(context.Context) ([]any, error) { return nil, nil }

func (h *stubHandle) Where(context.Context, string, string) ([]any, error) { return nil, nil }

func (h *stubHandle) Count(context.Context) (int64, error) { return 0, nil }

func (h *stubHandle) Import(context.Context, []byte, bool) (int64, error) { return 0, nil }

func (h *stubHandle) Stats() cache.Stats { return cache.Stats{Name: h.info.Key} }

func (h *stubHandle) WritePrometheus(w io.Writer) {
	_, _ = io.WriteString(w, "stub_"+h.info.Key+" 1\n")
}

// stubDefinition returns a definition whose Open yields h.
func stubDefinition(h *stubHandle) TableDefinition {
	return TableDefinition{
		Info: h.info,
		Open: func(table.DBTX, ...cache.Option) (Handle, error) { return h, nil },
	}
}
