package records

import (
	"strconv"
	"time"

	"github.com/Jakar510/jakardb/internal/table"
)

// User is one row of the users table.
type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Active    bool      `json:"active"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (u *User) RecordID() int64 { return u.ID }

func (u *User) Hash() uint64 {
	return table.HashFields(u.ID, u.Name, u.Email, u.Active, u.UpdatedAt)
}

// UserSchema describes the users table.
func UserSchema() *table.Schema[*User, int64] {
	return &table.Schema[*User, int64]{
		Table: "users",
		Columns: []table.Column{
			{Field: "ID", Name: "id", Key: true},
			{Field: "Name", Name: "name"},
			{Field: "Email", Name: "email"},
			{Field: "Active", Name: "active"},
			{Field: "UpdatedAt", Name: "updated_at"},
		},
		New: func() *User { return &User{} },
		Fields: func(u *User) []any {
			return []any{&u.ID, &u.Name, &u.Email, &u.Active, &u.UpdatedAt}
		},
		ParseID: func(s string) (int64, error) {
			return strconv.ParseInt(s, 10, 64)
		},
	}
}
