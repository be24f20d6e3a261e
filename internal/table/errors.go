package table

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrRecordNotFound is returned when a lookup or update by key matches no row.
	ErrRecordNotFound = errors.New("record not found")

	// ErrUnknownColumn is returned when a query names a column the schema does not declare.
	ErrUnknownColumn = errors.New("unknown column")

	// ErrInvalidSchema is returned by Schema.Validate and New for incomplete schemas.
	ErrInvalidSchema = errors.New("invalid schema")
)

// PostgreSQL SQLSTATE codes inspected by the helpers below.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeDeadlockDetected    = "40P01"
	codeSerialization       = "40001"
)

// IsDuplicateKey reports whether err is a unique constraint violation.
func IsDuplicateKey(err error) bool {
	return pgCode(err) == codeUniqueViolation
}

// IsForeignKeyViolation reports whether err is a foreign key violation.
func IsForeignKeyViolation(err error) bool {
	return pgCode(err) == codeForeignKeyViolation
}

// IsRetryable reports whether the failed statement can be retried as-is:
// deadlocks, serialization failures, and errors pgconn marks safe to retry.
func IsRetryable(err error) bool {
	switch pgCode(err) {
	case codeDeadlockDetected, codeSerialization:
		return true
	}
	return pgconn.SafeToRetry(err)
}

// IsConnectionError reports whether err happened while establishing a connection.
func IsConnectionError(err error) bool {
	var connErr *pgconn.ConnectError
	return errors.As(err, &connErr)
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
