package cache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/Jakar510/jakardb/internal/table"
)

type user struct {
	ID   int64
	Name string
}

func (u *user) RecordID() int64 { return u.ID }
func (u *user) Hash() uint64    { return table.HashFields(u.ID, u.Name) }

var errStorage = errors.New("storage unavailable")

// fakeStore is an in-memory Store that records every call.
type fakeStore struct {
	mu   sync.Mutex
	rows map[int64]user

	allCalls     int
	getManyCalls int
	updates      [][]user

	failAll    int   // fail this many upcoming All calls
	failUpdate error // returned by Update while set

	// onUpdate runs after a successful Update, outside the lock.
	onUpdate func()
}

func newFakeStore(rows ...user) *fakeStore {
	s := &fakeStore{rows: make(map[int64]user)}
	for _, r := range rows {
		s.rows[r.ID] = r
	}
	return s
}

func (s *fakeStore) All(ctx context.Context) ([]*user, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.allCalls++
	if s.failAll > 0 {
		s.failAll--
		return nil, errStorage
	}

	out := make([]*user, 0, len(s.rows))
	for _, r := range s.rows {
		r := r
		out = append(out, &r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeStore) GetMany(ctx context.Context, ids []int64) ([]*user, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.getManyCalls++
	var out []*user
	for _, id := range ids {
		if r, ok := s.rows[id]; ok {
			out = append(out, &r)
		}
	}
	return out, nil
}

func (s *fakeStore) Update(ctx context.Context, records []*user) error {
	s.mu.Lock()
	if s.failUpdate != nil {
		err := s.failUpdate
		s.mu.Unlock()
		return err
	}

	batch := make([]user, len(records))
	for i, r := range records {
		if _, ok := s.rows[r.ID]; !ok {
			s.mu.Unlock()
			return fmt.Errorf("users %d: %w", r.ID, table.ErrRecordNotFound)
		}
		batch[i] = *r
	}
	for _, r := range batch {
		s.rows[r.ID] = r
	}
	s.updates = append(s.updates, batch)
	hook := s.onUpdate
	s.mu.Unlock()

	if hook != nil {
		hook()
	}
	return nil
}

func (s *fakeStore) row(id int64) user {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows[id]
}

// deleteRow removes a row as another writer would.
func (s *fakeStore) deleteRow(id int64) {
	s.mu.Lock()
	delete(s.rows, id)
	s.mu.Unlock()
}

// putRow inserts or replaces a row as another writer would.
func (s *fakeStore) putRow(r user) {
	s.mu.Lock()
	s.rows[r.ID] = r
	s.mu.Unlock()
}

func (s *fakeStore) updateCalls() [][]user {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]user(nil), s.updates...)
}

func (s *fakeStore) setFailUpdate(err error) {
	s.mu.Lock()
	s.failUpdate = err
	s.mu.Unlock()
}

// syncBuffer is a goroutine-safe log sink.
type syncBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
