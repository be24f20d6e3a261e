// Package cache keeps a table's rows in memory and writes local changes
// back in bulk.
//
// # Mapping
//
// A [Mapping] is a keyed record store with change detection. Next to the
// records it keeps a key-ordered index of the hash each record had when it
// was last synchronised with storage, and a set of dirty keys:
//
//	key is dirty  <=>  current Hash() != last synced hash
//
// Records are shared pointers, so callers may mutate them in place. Such
// changes are picked up the next time the key is read through Get, checked
// with HasChanged, or when the mapping collects dirty keys for a refresh.
//
// # Cache
//
// A [Cache] wraps one Mapping and a [Store]. Once started it reloads every
// row on a fixed interval (15s by default), writing back dirty records
// first. A failed reload is logged at critical level and retried on the
// next tick; failures never stop the loop. Close stops the loop and flushes
// whatever is still dirty.
//
//	c := cache.New[*User, int64](usersTable, cache.WithInterval(30*time.Second))
//	if err := c.Reload(ctx); err != nil { ... }
//	c.Start(ctx)
//	defer c.Close(context.Background())
//
//	u, _ := c.Get(1)
//	u.Name = "C"  // written back on the next tick or on Close
package cache
