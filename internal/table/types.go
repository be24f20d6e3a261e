package table

import (
	"cmp"
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
	SendBatch(context.Context, *pgx.Batch) pgx.BatchResults
	CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error)
	Begin(context.Context) (pgx.Tx, error)
}

// Record is a row that can be identified and fingerprinted.
//
// Hash must be deterministic over the record's current field values: two
// records with equal fields hash equally, and changing any persisted field
// changes the hash. [HashFields] is the usual way to implement it.
type Record[ID cmp.Ordered] interface {
	RecordID() ID
	Hash() uint64
}

// Column maps one record field to one database column.
type Column struct {
	Field string // Go field name, used for lookups by callers
	Name  string // Database column name
	Key   bool   // Primary key column; exactly one per schema
}

// Schema describes how a record type is stored.
type Schema[R Record[ID], ID cmp.Ordered] struct {
	// Table is the database table name.
	Table string

	// Columns lists every persisted column in the order Fields returns them.
	Columns []Column

	// New returns an empty record ready to be scanned into.
	New func() R

	// Fields returns pointers to the record's fields in Columns order.
	// The pointers are used both as scan destinations and as bind arguments.
	Fields func(R) []any

	// ParseID converts the textual form of a key, as found in URLs and CLI
	// arguments, into an ID. Optional.
	ParseID func(string) (ID, error)
}

// Validate checks that the schema is complete and has exactly one key column.
func (s *Schema[R, ID]) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: nil schema", ErrInvalidSchema)
	}
	if strings.TrimSpace(s.Table) == "" {
		return fmt.Errorf("%w: empty table name", ErrInvalidSchema)
	}
	if len(s.Columns) == 0 {
		return fmt.Errorf("%w: %s has no columns", ErrInvalidSchema, s.Table)
	}
	if s.New == nil || s.Fields == nil {
		return fmt.Errorf("%w: %s needs New and Fields", ErrInvalidSchema, s.Table)
	}

	keys := 0
	seen := make(map[string]bool, len(s.Columns))
	for _, col := range s.Columns {
		if col.Name == "" {
			return fmt.Errorf("%w: %s has a column without a name", ErrInvalidSchema, s.Table)
		}
		lower := strings.ToLower(col.Name)
		if seen[lower] {
			return fmt.Errorf("%w: %s declares column %q twice", ErrInvalidSchema, s.Table, col.Name)
		}
		seen[lower] = true
		if col.Key {
			keys++
		}
	}
	if keys != 1 {
		return fmt.Errorf("%w: %s must have exactly one key column, has %d", ErrInvalidSchema, s.Table, keys)
	}

	if n := len(s.Fields(s.New())); n != len(s.Columns) {
		return fmt.Errorf("%w: %s Fields returns %d values for %d columns", ErrInvalidSchema, s.Table, n, len(s.Columns))
	}
	return nil
}

// KeyColumn returns the key column.
func (s *Schema[R, ID]) KeyColumn() Column {
	return s.Columns[s.keyIndex()]
}

// ColumnNames returns the database column names in schema order.
func (s *Schema[R, ID]) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, col := range s.Columns {
		names[i] = col.Name
	}
	return names
}

func (s *Schema[R, ID]) keyIndex() int {
	for i, col := range s.Columns {
		if col.Key {
			return i
		}
	}
	return -1
}

// resolveColumn returns the database column for a field or column name.
// Matching is case-insensitive against both Column.Field and Column.Name.
func (s *Schema[R, ID]) resolveColumn(name string) (string, bool) {
	for _, col := range s.Columns {
		if strings.EqualFold(col.Name, name) || (col.Field != "" && strings.EqualFold(col.Field, name)) {
			return col.Name, true
		}
	}
	return "", false
}
