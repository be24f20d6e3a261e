package cache

import (
	"cmp"
	"context"

	"github.com/Jakar510/jakardb/internal/table"
)

// Store is the storage contract a cache consumes.
// *table.Table satisfies it.
type Store[R table.Record[ID], ID cmp.Ordered] interface {
	// All returns every stored record.
	All(ctx context.Context) ([]R, error)

	// GetMany returns the stored records for ids, skipping missing keys.
	GetMany(ctx context.Context, ids []ID) ([]R, error)

	// Update writes records back by key. It either applies every record
	// or none of them.
	Update(ctx context.Context, records []R) error
}
