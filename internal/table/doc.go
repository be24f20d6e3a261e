// Package table provides typed CRUD access to a single PostgreSQL table.
//
// A [Table] is built from an explicit [Schema]: the table name, the ordered
// column list (one of which is the key) and two small functions that
// construct a record and expose pointers to its fields in column order.
// No reflection is involved; the schema is the single source of truth for
// every generated statement.
//
//	users := &table.Schema[*User, int64]{
//	    Table: "users",
//	    Columns: []table.Column{
//	        {Field: "ID", Name: "id", Key: true},
//	        {Field: "Name", Name: "name"},
//	    },
//	    New:    func() *User { return &User{} },
//	    Fields: func(u *User) []any { return []any{&u.ID, &u.Name} },
//	}
//	t, err := table.New(pool, users)
//
// # Statements
//
// Statements are generated once when the table is created. Table and column
// names are quoted identifiers taken from the schema and are assumed to be
// trusted; values are always bound as parameters.
//
//	SELECT "id", "name" FROM "users"
//	SELECT "id", "name" FROM "users" WHERE "id" = ANY($1)
//	UPDATE "users" SET "name" = $1 WHERE "id" = $2
//
// # Transactions
//
// A Table runs against any [DBTX]: a *pgxpool.Pool or a pgx.Tx. Use
// [Table.WithTx] to bind an existing transaction or [Table.InTx] to run a
// function inside a fresh one. Bulk updates always run inside a
// transaction so a failed batch leaves the table untouched.
package table
