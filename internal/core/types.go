// Package core wires registered tables to write-back caches.
// This package has no transport dependencies and can be used by any frontend.
package core

import (
	"context"
	"errors"
	"io"

	"github.com/Jakar510/jakardb/internal/cache"
	"github.com/Jakar510/jakardb/internal/table"
)

var (
	// ErrUnknownTable is returned when a table key is not registered.
	ErrUnknownTable = errors.New("unknown table")

	// ErrInvalidID is returned when a path id cannot be parsed for the table.
	ErrInvalidID = errors.New("invalid record id")

	// ErrInvalidRecord is returned when a request body does not decode into a record.
	ErrInvalidRecord = errors.New("invalid record")

	// ErrIDMismatch is returned when a body's key differs from the addressed id.
	ErrIDMismatch = errors.New("record id does not match path")
)

// TableInfo contains display information about a table.
type TableInfo struct {
	Key       string   `json:"key"`       // Unique identifier: "users"
	Group     string   `json:"group"`     // Logical owner: "accounts"
	Label     string   `json:"label"`     // Display name: "Users"
	Columns   []string `json:"columns"`   // Column names in schema order
	KeyColumn string   `json:"keyColumn"` // Primary key column
}

// Opener builds a Handle for one table over db.
type Opener func(db table.DBTX, opts ...cache.Option) (Handle, error)

// TableDefinition contains everything needed to serve a table.
type TableDefinition struct {
	Info TableInfo
	Open Opener
}

// Handle is the type-erased view of one cached table. Records cross this
// boundary as values that encode to JSON.
type Handle interface {
	Info() TableInfo

	// Lifecycle of the underlying cache.
	Start(ctx context.Context) error
	Reload(ctx context.Context) error
	Flush(ctx context.Context) error
	Close(ctx context.Context) error

	// List returns every cached record in key order, writing back local
	// changes between steps.
	List(ctx context.Context) ([]any, error)

	// Get returns the cached record for a path id.
	Get(id string) (any, error)

	// Put replaces a cached record with the JSON body; the change is
	// written back on the next flush.
	Put(id string, body []byte) (any, error)

	// Create inserts the JSON body into storage and caches it.
	Create(ctx context.Context, body []byte) (any, error)

	// Delete removes the record from storage and from the cache.
	Delete(ctx context.Context, id string) error

	// Rows reads every row straight from storage, bypassing the cache.
	Rows(ctx context.Context) ([]any, error)

	// Where reads the rows whose column equals value from storage.
	Where(ctx context.Context, column, value string) ([]any, error)

	// Count returns the number of rows in storage.
	Count(ctx context.Context) (int64, error)

	// Import bulk loads a JSON array of records into storage and caches
	// them. With replace set, stored rows sharing a key are replaced.
	Import(ctx context.Context, body []byte, replace bool) (int64, error)

	Stats() cache.Stats
	WritePrometheus(w io.Writer)
}
