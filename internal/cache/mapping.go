package cache

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Jakar510/jakardb/internal/table"
	"github.com/google/btree"
	"github.com/puzpuzpuz/xsync/v3"
)

// btreeDegree is the branching factor of the hash index.
const btreeDegree = 32

// stamp is one entry of the key-ordered hash index.
type stamp[ID cmp.Ordered] struct {
	id     ID
	hash   uint64 // hash at last sync; meaningless unless synced
	synced bool   // false for keys that were never loaded from storage
}

// Mapping is an in-memory keyed record store with change detection.
//
// Single operations are atomic. Sequences of operations are not: a reader
// running concurrently with Replace can observe a partially filled map.
type Mapping[R table.Record[ID], ID cmp.Ordered] struct {
	records *xsync.MapOf[ID, R] // written only under mu

	mu     sync.Mutex // guards hashes, dirty and writes to records
	hashes *btree.BTreeG[stamp[ID]]
	dirty  map[ID]struct{}
}

// NewMapping returns an empty mapping.
func NewMapping[R table.Record[ID], ID cmp.Ordered]() *Mapping[R, ID] {
	return &Mapping[R, ID]{
		records: xsync.NewMapOf[ID, R](),
		hashes: btree.NewG[stamp[ID]](btreeDegree, func(a, b stamp[ID]) bool {
			return a.id < b.id
		}),
		dirty: make(map[ID]struct{}),
	}
}

// Get returns the record stored under id and re-checks it for changes.
func (m *Mapping[R, ID]) Get(id ID) (R, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records.Load(id)
	if ok {
		m.observeLocked(id, rec)
	}
	return rec, ok
}

// Set stores rec under its key. The key becomes dirty when rec's hash
// differs from the last synced hash, which is always the case for a key
// that was never loaded from storage.
func (m *Mapping[R, ID]) Set(rec R) {
	id := rec.RecordID()

	m.mu.Lock()
	m.records.Store(id, rec)
	m.observeLocked(id, rec)
	m.mu.Unlock()
}

// AddOrUpdate stores rec and records its current hash as synced.
// It never marks the key dirty.
func (m *Mapping[R, ID]) AddOrUpdate(rec R) {
	id := rec.RecordID()

	m.mu.Lock()
	m.records.Store(id, rec)
	m.stampLocked(id, rec.Hash())
	m.mu.Unlock()
}

// Remove deletes id from the mapping. It reports whether the key was present.
func (m *Mapping[R, ID]) Remove(id ID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.removeLocked(id)
}

// Clear removes every record, hash and dirty flag.
func (m *Mapping[R, ID]) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records.Clear()
	m.hashes.Clear(false)
	clear(m.dirty)
}

// Replace clears the mapping and fills it with records, all marked synced.
// Pending local changes are discarded; flush them first.
func (m *Mapping[R, ID]) Replace(records []R) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records.Clear()
	m.hashes.Clear(false)
	clear(m.dirty)

	for _, rec := range records {
		id := rec.RecordID()
		m.records.Store(id, rec)
		m.hashes.ReplaceOrInsert(stamp[ID]{id: id, hash: rec.Hash(), synced: true})
	}
}

// Len returns the number of records.
func (m *Mapping[R, ID]) Len() int {
	return m.records.Size()
}

// Keys returns every key in ascending order.
func (m *Mapping[R, ID]) Keys() []ID {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]ID, 0, m.hashes.Len())
	m.hashes.Ascend(func(s stamp[ID]) bool {
		keys = append(keys, s.id)
		return true
	})
	return keys
}

// At returns the record at position i in ascending key order.
func (m *Mapping[R, ID]) At(i int) (R, bool) {
	var zero R
	if i < 0 {
		return zero, false
	}

	m.mu.Lock()
	var (
		id    ID
		found bool
		pos   int
	)
	m.hashes.Ascend(func(s stamp[ID]) bool {
		if pos == i {
			id, found = s.id, true
			return false
		}
		pos++
		return true
	})
	m.mu.Unlock()

	if !found {
		return zero, false
	}
	return m.Get(id)
}

// HasChanged reports whether the record under id differs from what was
// last synced with storage.
func (m *Mapping[R, ID]) HasChanged(id ID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records.Load(id)
	if !ok {
		return false
	}
	m.observeLocked(id, rec)
	_, dirty := m.dirty[id]
	return dirty
}

// DirtyKeys rescans every record and returns the dirty keys in ascending order.
func (m *Mapping[R, ID]) DirtyKeys() []ID {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.scanDirtyLocked()
}

// DirtyRecords returns the dirty records in key order.
func (m *Mapping[R, ID]) DirtyRecords() []R {
	records, _ := m.dirtyRecords()
	return records
}

// Refresh writes every dirty record to store in one bulk update and merges
// the stored versions back.
//
// With nothing dirty it makes no storage calls. If the update fails the
// error is returned and the dirty set is left as it was, so the next
// refresh retries the same records. A record changed locally while the
// update was in flight stays dirty and keeps its local value.
//
// When the update reports table.ErrRecordNotFound, dirty records whose
// rows are gone from storage are removed from the mapping and the rest
// are written.
func (m *Mapping[R, ID]) Refresh(ctx context.Context, store Store[R, ID]) error {
	_, _, err := m.refresh(ctx, store)
	return err
}

// refresh implements Refresh. It returns how many records were written
// and the keys dropped because their rows no longer exist.
func (m *Mapping[R, ID]) refresh(ctx context.Context, store Store[R, ID]) (int, []ID, error) {
	records, written := m.dirtyRecords()
	if len(records) == 0 {
		return 0, nil, nil
	}

	var dropped []ID
	err := store.Update(ctx, records)
	if errors.Is(err, table.ErrRecordNotFound) {
		records, written, dropped, err = m.dropVanished(ctx, store, records, written)
		if err == nil && len(records) > 0 {
			err = store.Update(ctx, records)
		}
	}
	if err != nil {
		return 0, dropped, fmt.Errorf("write back %d records: %w", len(records), err)
	}
	if len(records) == 0 {
		return 0, dropped, nil
	}

	ids := make([]ID, len(records))
	m.mu.Lock()
	for i, rec := range records {
		id := rec.RecordID()
		ids[i] = id
		cur, ok := m.records.Load(id)
		if !ok {
			continue
		}
		m.stampLocked(id, written[i])
		m.observeLocked(id, cur)
	}
	m.mu.Unlock()

	fresh, err := store.GetMany(ctx, ids)
	if err != nil {
		return len(records), dropped, fmt.Errorf("reload %d written records: %w", len(ids), err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range fresh {
		id := rec.RecordID()
		if _, dirty := m.dirty[id]; dirty {
			continue
		}
		if _, ok := m.records.Load(id); !ok {
			continue
		}
		m.records.Store(id, rec)
		m.stampLocked(id, rec.Hash())
	}

	return len(records), dropped, nil
}

// dropVanished looks up which of records still exist in storage. The
// missing ones are removed from the mapping; the rest are returned with
// their collected hashes.
func (m *Mapping[R, ID]) dropVanished(ctx context.Context, store Store[R, ID], records []R, hashes []uint64) ([]R, []uint64, []ID, error) {
	ids := make([]ID, len(records))
	for i, rec := range records {
		ids[i] = rec.RecordID()
	}

	stored, err := store.GetMany(ctx, ids)
	if err != nil {
		return records, hashes, nil, fmt.Errorf("look up %d records: %w", len(ids), err)
	}
	exists := make(map[ID]struct{}, len(stored))
	for _, rec := range stored {
		exists[rec.RecordID()] = struct{}{}
	}

	var (
		keep       = make([]R, 0, len(stored))
		keepHashes = make([]uint64, 0, len(stored))
		dropped    []ID
	)

	m.mu.Lock()
	defer m.mu.Unlock()
	for i, rec := range records {
		if _, ok := exists[ids[i]]; ok {
			keep = append(keep, rec)
			keepHashes = append(keepHashes, hashes[i])
			continue
		}
		m.removeLocked(ids[i])
		dropped = append(dropped, ids[i])
	}
	return keep, keepHashes, dropped, nil
}

// pendingCount returns the size of the dirty set without rescanning.
func (m *Mapping[R, ID]) pendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.dirty)
}

// dirtyRecords returns the dirty records with the hashes they had when collected.
func (m *Mapping[R, ID]) dirtyRecords() ([]R, []uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := m.scanDirtyLocked()
	records := make([]R, 0, len(ids))
	hashes := make([]uint64, 0, len(ids))
	for _, id := range ids {
		rec, ok := m.records.Load(id)
		if !ok {
			continue
		}
		records = append(records, rec)
		hashes = append(hashes, rec.Hash())
	}
	return records, hashes
}

func (m *Mapping[R, ID]) scanDirtyLocked() []ID {
	var ids []ID
	m.hashes.Ascend(func(s stamp[ID]) bool {
		rec, ok := m.records.Load(s.id)
		if !ok {
			return true
		}
		if !s.synced || s.hash != rec.Hash() {
			m.dirty[s.id] = struct{}{}
			ids = append(ids, s.id)
		} else {
			delete(m.dirty, s.id)
		}
		return true
	})
	return ids
}

// observeLocked brings id's dirty flag in line with rec's current hash.
func (m *Mapping[R, ID]) observeLocked(id ID, rec R) {
	s, ok := m.hashes.Get(stamp[ID]{id: id})
	if !ok {
		m.hashes.ReplaceOrInsert(stamp[ID]{id: id})
	}
	if ok && s.synced && s.hash == rec.Hash() {
		delete(m.dirty, id)
		return
	}
	m.dirty[id] = struct{}{}
}

func (m *Mapping[R, ID]) removeLocked(id ID) bool {
	_, ok := m.records.LoadAndDelete(id)
	m.hashes.Delete(stamp[ID]{id: id})
	delete(m.dirty, id)
	return ok
}

func (m *Mapping[R, ID]) stampLocked(id ID, hash uint64) {
	m.hashes.ReplaceOrInsert(stamp[ID]{id: id, hash: hash, synced: true})
	delete(m.dirty, id)
}
