package records

import (
	"fmt"
	"strings"

	"github.com/Jakar510/jakardb/internal/table"
)

// Group is one row of the groups table. Owner references users.id.
type Group struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Owner int64  `json:"owner"`
}

func (g *Group) RecordID() string { return g.ID }
func (g *Group) Hash() uint64     { return table.HashFields(g.ID, g.Name, g.Owner) }

// GroupSchema describes the groups table.
func GroupSchema() *table.Schema[*Group, string] {
	return &table.Schema[*Group, string]{
		Table: "groups",
		Columns: []table.Column{
			{Field: "ID", Name: "id", Key: true},
			{Field: "Name", Name: "name"},
			{Field: "Owner", Name: "owner_id"},
		},
		New:    func() *Group { return &Group{} },
		Fields: func(g *Group) []any { return []any{&g.ID, &g.Name, &g.Owner} },
		ParseID: func(s string) (string, error) {
			if strings.TrimSpace(s) == "" {
				return "", fmt.Errorf("empty group id")
			}
			return s, nil
		},
	}
}
