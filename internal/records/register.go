package records

import (
	"sync"

	"github.com/Jakar510/jakardb/internal/core"
)

var registerOnce sync.Once

// Register adds every table in this package to the core registry.
// Calling it more than once is a no-op.
func Register() {
	registerOnce.Do(func() {
		for _, def := range Definitions() {
			core.Register(def)
		}
	})
}

// Definitions returns the table definitions without registering them.
func Definitions() []core.TableDefinition {
	return []core.TableDefinition{
		core.Define("accounts", "Users", UserSchema()),
		core.Define("accounts", "Groups", GroupSchema()),
	}
}
