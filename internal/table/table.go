package table

import (
	"cmp"
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Table provides CRUD access to one table described by a Schema.
type Table[R Record[ID], ID cmp.Ordered] struct {
	db     DBTX
	schema *Schema[R, ID]
	stmts  statements
}

// New validates the schema and returns a Table running against db.
func New[R Record[ID], ID cmp.Ordered](db DBTX, schema *Schema[R, ID]) (*Table[R, ID], error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	return &Table[R, ID]{
		db:     db,
		schema: schema,
		stmts:  buildStatements(schema.Table, schema.Columns),
	}, nil
}

// Name returns the table name.
func (t *Table[R, ID]) Name() string {
	return t.schema.Table
}

// Schema returns the table's schema.
func (t *Table[R, ID]) Schema() *Schema[R, ID] {
	return t.schema
}

// WithTx returns a copy of the table bound to tx.
func (t *Table[R, ID]) WithTx(tx pgx.Tx) *Table[R, ID] {
	return &Table[R, ID]{
		db:     tx,
		schema: t.schema,
		stmts:  t.stmts,
	}
}

// InTx runs fn inside a transaction. The transaction commits when fn
// returns nil and rolls back otherwise. When the table is already bound to
// a transaction a savepoint is used.
func (t *Table[R, ID]) InTx(ctx context.Context, fn func(*Table[R, ID]) error) error {
	return pgx.BeginFunc(ctx, t.db, func(tx pgx.Tx) error {
		return fn(t.WithTx(tx))
	})
}

// All returns every row in the table in key order.
func (t *Table[R, ID]) All(ctx context.Context) ([]R, error) {
	return t.query(ctx, t.stmts.selectAll)
}

// Get returns the record with the given key, or ErrRecordNotFound.
func (t *Table[R, ID]) Get(ctx context.Context, id ID) (R, error) {
	rec := t.schema.New()
	err := t.db.QueryRow(ctx, t.stmts.selectByID, id).Scan(t.schema.Fields(rec)...)
	if errors.Is(err, pgx.ErrNoRows) {
		var zero R
		return zero, fmt.Errorf("%s %v: %w", t.schema.Table, id, ErrRecordNotFound)
	}
	if err != nil {
		var zero R
		return zero, fmt.Errorf("get %s %v: %w", t.schema.Table, id, err)
	}
	return rec, nil
}

// GetMany returns the records whose keys are in ids. Missing keys are
// skipped; the result order is unspecified.
func (t *Table[R, ID]) GetMany(ctx context.Context, ids []ID) ([]R, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return t.query(ctx, t.stmts.selectMany, ids)
}

// Where returns the records whose column equals value. column may be a
// database column name or a field name.
func (t *Table[R, ID]) Where(ctx context.Context, column string, value any) ([]R, error) {
	dbCol, ok := t.schema.resolveColumn(column)
	if !ok {
		return nil, fmt.Errorf("%s.%s: %w", t.schema.Table, column, ErrUnknownColumn)
	}
	return t.query(ctx, selectWhere(t.schema.Table, t.schema.ColumnNames(), dbCol, t.schema.KeyColumn().Name), value)
}

// Count returns the number of rows in the table.
func (t *Table[R, ID]) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := t.db.QueryRow(ctx, t.stmts.count).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", t.schema.Table, err)
	}
	return n, nil
}

// Insert adds a single record.
func (t *Table[R, ID]) Insert(ctx context.Context, rec R) error {
	if _, err := t.db.Exec(ctx, t.stmts.insert, t.schema.Fields(rec)...); err != nil {
		return fmt.Errorf("insert %s %v: %w", t.schema.Table, rec.RecordID(), err)
	}
	return nil
}

// InsertMany adds records using the COPY protocol and returns the number
// of rows copied.
func (t *Table[R, ID]) InsertMany(ctx context.Context, records []R) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}
	n, err := t.db.CopyFrom(ctx,
		pgx.Identifier{t.schema.Table},
		t.schema.ColumnNames(),
		pgx.CopyFromSlice(len(records), func(i int) ([]any, error) {
			return t.schema.Fields(records[i]), nil
		}),
	)
	if err != nil {
		return n, fmt.Errorf("copy into %s: %w", t.schema.Table, err)
	}
	return n, nil
}

// ReplaceMany deletes the rows sharing a key with records and copies
// records in, all in one transaction. It returns the number of rows copied.
func (t *Table[R, ID]) ReplaceMany(ctx context.Context, records []R) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	ids := make([]ID, len(records))
	for i, rec := range records {
		ids[i] = rec.RecordID()
	}

	var n int64
	err := t.InTx(ctx, func(tx *Table[R, ID]) error {
		if _, err := tx.Delete(ctx, ids...); err != nil {
			return err
		}
		var err error
		n, err = tx.InsertMany(ctx, records)
		return err
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Update writes every record back by key in a single batch inside one
// transaction. Each statement must touch exactly one row; a record whose
// key no longer exists fails the whole update with ErrRecordNotFound.
func (t *Table[R, ID]) Update(ctx context.Context, records []R) error {
	if len(records) == 0 {
		return nil
	}

	return pgx.BeginFunc(ctx, t.db, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, rec := range records {
			batch.Queue(t.stmts.update, t.updateArgs(rec)...)
		}

		br := tx.SendBatch(ctx, batch)
		for _, rec := range records {
			tag, err := br.Exec()
			if err != nil {
				br.Close()
				return fmt.Errorf("update %s %v: %w", t.schema.Table, rec.RecordID(), err)
			}
			if tag.RowsAffected() != 1 {
				br.Close()
				return fmt.Errorf("update %s %v: %w", t.schema.Table, rec.RecordID(), ErrRecordNotFound)
			}
		}
		return br.Close()
	})
}

// Delete removes the records with the given keys and returns how many
// rows were deleted.
func (t *Table[R, ID]) Delete(ctx context.Context, ids ...ID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := t.db.Exec(ctx, t.stmts.deleteMany, ids)
	if err != nil {
		return 0, fmt.Errorf("delete from %s: %w", t.schema.Table, err)
	}
	return tag.RowsAffected(), nil
}

func (t *Table[R, ID]) updateArgs(rec R) []any {
	fields := t.schema.Fields(rec)
	args := make([]any, len(t.stmts.updateOrder))
	for i, idx := range t.stmts.updateOrder {
		args[i] = fields[idx]
	}
	return args
}

func (t *Table[R, ID]) query(ctx context.Context, sql string, args ...any) ([]R, error) {
	rows, err := t.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", t.schema.Table, err)
	}

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (R, error) {
		rec := t.schema.New()
		err := row.Scan(t.schema.Fields(rec)...)
		return rec, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", t.schema.Table, err)
	}
	return records, nil
}
