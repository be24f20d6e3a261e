// error_messages.go maps internal errors to user-facing messages with codes
// for support reference.
//
// # Error Codes Reference
//
// Record errors (REC001-REC099):
//
//	REC001 - Record not found: No record with this id exists
//	REC002 - Invalid id: The id is not valid for this table
//	REC003 - Invalid record: The request body is not a valid record
//	REC004 - Id mismatch: The body's id differs from the addressed id
//
// Table errors (TBL001-TBL099):
//
//	TBL002 - Unknown table: Table is not configured
//	TBL003 - Unknown column: Column is not part of the table
//	TBL004 - Cache closed: The table cache is shutting down
//
// Database errors (DB001-DB099):
//
//	DB001 - Duplicate key: A record with this id already exists
//	DB003 - Foreign key: Referenced record does not exist
//	DB004 - Connection: Unable to connect to database
//	DB006 - Timeout: Operation timed out
//	DB007 - Conflict: Database was busy with conflicting operations
//
// Request errors (REQ001-REQ099):
//
//	REQ001 - Request cancelled
//	REQ002 - Request timeout
//	REQ003 - Request body too large (web layer)
//	RATE001 - Rate limited: Too many requests
//
// ERR000 is the fallback; check the server log for the technical error.
package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Jakar510/jakardb/internal/cache"
	"github.com/Jakar510/jakardb/internal/table"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// Kind groups codes by how a transport should answer them.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindInvalid
	KindConflict
	KindUnavailable
	KindTimeout
	KindCanceled
	KindRateLimited
)

// errorMatch classifies errors by identity rather than text.
type errorMatch struct {
	match func(error) bool
	kind  Kind
	msg   UserMessage
}

func is(target error) func(error) bool {
	return func(err error) bool { return errors.Is(err, target) }
}

// errorMatches is checked in order; the first match wins, so more
// specific classes come before general ones.
var errorMatches = []errorMatch{
	{is(table.ErrRecordNotFound), KindNotFound, UserMessage{"Record not found", "Verify the record id", "REC001"}},
	{is(ErrInvalidID), KindInvalid, UserMessage{"The id is not valid for this table", "Check the id format", "REC002"}},
	{is(ErrInvalidRecord), KindInvalid, UserMessage{"The request body is not a valid record", "Send the record as a JSON object", "REC003"}},
	{is(ErrIDMismatch), KindInvalid, UserMessage{"The record id does not match the addressed id", "Use the same id in the path and the body", "REC004"}},
	{is(ErrUnknownTable), KindNotFound, UserMessage{"Unknown table", "This table is not configured", "TBL002"}},
	{is(table.ErrUnknownColumn), KindInvalid, UserMessage{"Unknown column", "Use a column listed for the table", "TBL003"}},
	{is(cache.ErrClosed), KindUnavailable, UserMessage{"The table cache is shutting down", "Please try again shortly", "TBL004"}},
	{table.IsDuplicateKey, KindConflict, UserMessage{"A record with this id already exists", "Update the existing record instead", "DB001"}},
	{table.IsForeignKeyViolation, KindConflict, UserMessage{"Referenced record does not exist", "Create the referenced record first", "DB003"}},
	{table.IsConnectionError, KindUnavailable, UserMessage{"Unable to connect to database", "Please try again in a few moments", "DB004"}},
	{is(context.DeadlineExceeded), KindTimeout, UserMessage{"Request timed out", "Please try again later", "REQ002"}},
	{is(context.Canceled), KindCanceled, UserMessage{"Request was cancelled", "Please try again", "REQ001"}},
	{table.IsRetryable, KindUnavailable, UserMessage{"Database was busy with conflicting operations", "Please try again", "DB007"}},
}

// errorPatterns catches errors that arrive without a typed cause.
// Patterns are matched case-insensitively using strings.Contains.
var errorPatterns = []struct {
	pattern string
	kind    Kind
	msg     UserMessage
}{
	{"connection refused", KindUnavailable, UserMessage{"Unable to connect to database", "Please try again in a few moments", "DB004"}},
	{"timeout", KindTimeout, UserMessage{"Operation timed out", "Please try again later", "DB006"}},
	{"rate limit", KindRateLimited, UserMessage{"Too many requests", "Please wait a moment before trying again", "RATE001"}},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// Classify returns the kind and user message for err.
func Classify(err error) (Kind, UserMessage) {
	if err == nil {
		return KindInternal, UserMessage{}
	}

	for _, m := range errorMatches {
		if m.match(err) {
			return m.kind, m.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, p := range errorPatterns {
		if strings.Contains(errStr, p.pattern) {
			return p.kind, p.msg
		}
	}

	return KindInternal, defaultMessage
}

// MapError converts a technical error to a user-friendly message.
//
// Example:
//
//	msg := MapError(fmt.Errorf("users 7: %w", table.ErrRecordNotFound))
//	// msg.Code == "REC001"
func MapError(err error) UserMessage {
	_, msg := Classify(err)
	return msg
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
