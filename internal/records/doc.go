// Package records defines the concrete tables served by jakardb.
//
// Each record type implements table.Record and ships an explicit schema.
// Nothing registers itself on import: the composition root calls
// [Register] once before building the core service.
package records
