// Package core serves registered tables through write-back caches.
//
// This package sits between storage and any transport. It can be used by
// web handlers, CLI commands, or tests without modification.
//
// # Table Registry
//
// Tables are registered once from the composition root using [Register].
// [Define] builds a [TableDefinition] from an explicit table schema:
//
//	core.Register(core.Define("accounts", "Users", records.UserSchema()))
//
// # Service
//
// [NewService] opens one [Handle] per definition. [Service.Start] loads
// every table in parallel and starts each cache's refresh loop;
// [Service.Close] stops the loops and writes back dirty records.
//
// # Handles
//
// A [Handle] hides a table's record and key types. Reads are served from
// the cache. Put replaces a cached record and leaves it dirty until the
// next flush. Create and Delete go to storage first and then update the
// cache.
//
// # Errors
//
// [Classify] and [MapError] turn errors into stable codes and user-facing
// messages; transports choose status codes from the returned [Kind].
package core
