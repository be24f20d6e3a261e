package table

import (
	"fmt"
	"strings"
)

// statements holds the SQL generated for one schema.
type statements struct {
	selectAll  string
	selectByID string
	selectMany string
	count      string
	insert     string
	update     string
	deleteMany string

	// updateOrder lists the Fields indexes bound by update, key last.
	updateOrder []int
}

// buildStatements generates every statement a Table needs.
func buildStatements(tableName string, cols []Column) statements {
	names := make([]string, len(cols))
	for i, col := range cols {
		names[i] = col.Name
	}
	quotedTable := quoteIdentifier(tableName)
	colList := strings.Join(quoteColumns(names), ", ")

	keyIdx := 0
	for i, col := range cols {
		if col.Key {
			keyIdx = i
			break
		}
	}
	key := quoteIdentifier(cols[keyIdx].Name)

	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	var sets []string
	var order []int
	for i, col := range cols {
		if i == keyIdx {
			continue
		}
		order = append(order, i)
		sets = append(sets, fmt.Sprintf("%s = $%d", quoteIdentifier(col.Name), len(order)))
	}
	order = append(order, keyIdx)

	st := statements{
		selectAll:  fmt.Sprintf("SELECT %s FROM %s ORDER BY %s", colList, quotedTable, key),
		selectByID: fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1", colList, quotedTable, key),
		selectMany: fmt.Sprintf("SELECT %s FROM %s WHERE %s = ANY($1)", colList, quotedTable, key),
		count:      fmt.Sprintf("SELECT COUNT(*) FROM %s", quotedTable),
		insert: fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			quotedTable, colList, strings.Join(placeholders, ", ")),
		deleteMany:  fmt.Sprintf("DELETE FROM %s WHERE %s = ANY($1)", quotedTable, key),
		updateOrder: order,
	}

	// A key-only table has nothing to SET; rewriting the key onto itself
	// still reports whether the row exists.
	if len(sets) == 0 {
		st.update = fmt.Sprintf("UPDATE %s SET %s = $1 WHERE %s = $1", quotedTable, key, key)
	} else {
		st.update = fmt.Sprintf("UPDATE %s SET %s WHERE %s = $%d",
			quotedTable, strings.Join(sets, ", "), key, len(order))
	}

	return st
}

// selectWhere builds a single-column equality query ordered by key.
// column must already be resolved against the schema.
func selectWhere(tableName string, cols []string, column, key string) string {
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1 ORDER BY %s",
		strings.Join(quoteColumns(cols), ", "),
		quoteIdentifier(tableName),
		quoteIdentifier(column),
		quoteIdentifier(key),
	)
}

// quoteIdentifier quotes a SQL identifier to prevent injection.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteColumns(cols []string) []string {
	quoted := make([]string, len(cols))
	for i, col := range cols {
		quoted[i] = quoteIdentifier(col)
	}
	return quoted
}
