package web

// errors.go provides unified error response handling for the web layer.
//
// The error flow:
//  1. Handler encounters an error
//  2. Calls respondError(w, r, err)
//  3. core.Classify picks the status code and user-facing message
//  4. The technical error is logged with the request id for correlation
//  5. The client receives an ErrorResponse

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/Jakar510/jakardb/internal/core"
	"github.com/Jakar510/jakardb/internal/logging"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// statusByKind maps error kinds to HTTP status codes.
var statusByKind = map[core.Kind]int{
	core.KindInternal:    http.StatusInternalServerError,
	core.KindNotFound:    http.StatusNotFound,
	core.KindInvalid:     http.StatusBadRequest,
	core.KindConflict:    http.StatusConflict,
	core.KindUnavailable: http.StatusServiceUnavailable,
	core.KindTimeout:     http.StatusGatewayTimeout,
	core.KindCanceled:    499, // client closed request
	core.KindRateLimited: http.StatusTooManyRequests,
}

// respondError logs the technical error server-side and writes a
// user-friendly JSON error.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		writeJSON(w, r, http.StatusRequestEntityTooLarge, ErrorResponse{
			Error:   "request body too large",
			Message: "Request body too large",
			Action:  "Send a smaller record",
			Code:    "REQ003",
		})
		return
	}

	kind, msg := core.Classify(err)
	status := statusByKind[kind]

	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	logging.FromContext(r.Context()).Log(r.Context(), level, "request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
	)

	writeJSON(w, r, status, ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}
