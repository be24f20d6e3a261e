package table

import (
	"context"
	"fmt"
	"reflect"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type call struct {
	sql  string
	args []any
}

// fakeDB is a scripted DBTX. Begin returns the same value as the
// transaction, so statements run inside a transaction are recorded too.
type fakeDB struct {
	pgx.Tx // methods no test reaches

	calls []call

	rows     [][]any // returned by Query
	rowsErr  error   // reported by Rows.Err after iteration
	queryErr error

	row    []any // scanned by QueryRow
	rowErr error

	execTag pgconn.CommandTag
	execErr error

	batch       *pgx.Batch
	batchTags   []pgconn.CommandTag // one per statement
	batchErr    error               // returned once batchTags run out
	batchClosed bool

	copyTable pgx.Identifier
	copyCols  []string
	copied    [][]any
	copyErr   error

	begins, commits, rollbacks int
	finished                   bool
}

func (db *fakeDB) Begin(context.Context) (pgx.Tx, error) {
	db.begins++
	db.finished = false
	return db, nil
}

func (db *fakeDB) Commit(context.Context) error {
	if db.finished {
		return pgx.ErrTxClosed
	}
	db.commits++
	db.finished = true
	return nil
}

func (db *fakeDB) Rollback(context.Context) error {
	if db.finished {
		return pgx.ErrTxClosed
	}
	db.rollbacks++
	db.finished = true
	return nil
}

func (db *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	db.calls = append(db.calls, call{sql, args})
	return db.execTag, db.execErr
}

func (db *fakeDB) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	db.calls = append(db.calls, call{sql, args})
	if db.queryErr != nil {
		return nil, db.queryErr
	}
	return &fakeRows{data: db.rows, err: db.rowsErr}, nil
}

func (db *fakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	db.calls = append(db.calls, call{sql, args})
	return fakeRow{vals: db.row, err: db.rowErr}
}

func (db *fakeDB) SendBatch(_ context.Context, b *pgx.Batch) pgx.BatchResults {
	db.batch = b
	return &fakeBatchResults{db: db}
}

func (db *fakeDB) CopyFrom(_ context.Context, table pgx.Identifier, cols []string, src pgx.CopyFromSource) (int64, error) {
	db.copyTable = table
	db.copyCols = cols
	if db.copyErr != nil {
		return 0, db.copyErr
	}
	for src.Next() {
		vals, err := src.Values()
		if err != nil {
			return 0, err
		}
		db.copied = append(db.copied, vals)
	}
	return int64(len(db.copied)), src.Err()
}

type fakeRow struct {
	vals []any
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return scanInto(dest, r.vals)
}

type fakeRows struct {
	pgx.Rows

	data   [][]any
	pos    int
	err    error
	closed bool
}

func (r *fakeRows) Next() bool {
	if r.closed || r.pos >= len(r.data) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Scan(dest ...any) error { return scanInto(dest, r.data[r.pos-1]) }
func (r *fakeRows) Err() error             { return r.err }
func (r *fakeRows) Close()                 { r.closed = true }

type fakeBatchResults struct {
	pgx.BatchResults

	db *fakeDB
	n  int
}

func (r *fakeBatchResults) Exec() (pgconn.CommandTag, error) {
	i := r.n
	r.n++
	if i < len(r.db.batchTags) {
		return r.db.batchTags[i], nil
	}
	return pgconn.CommandTag{}, r.db.batchErr
}

func (r *fakeBatchResults) Close() error {
	r.db.batchClosed = true
	return nil
}

// scanInto copies vals into the pointers in dest.
func scanInto(dest, vals []any) error {
	if len(dest) != len(vals) {
		return fmt.Errorf("scan: %d destinations for %d values", len(dest), len(vals))
	}
	for i, v := range vals {
		reflect.ValueOf(dest[i]).Elem().Set(reflect.ValueOf(v))
	}
	return nil
}

func tag(s string) pgconn.CommandTag { return pgconn.NewCommandTag(s) }
