package httpx

import (
	"context"
	"encoding/json"
	"maps"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/lumashop/api/internal/platform/requestctx"
)

const (
	maxCodeLen    = 80
	maxMessageLen = 512
	maxIDLen      = 80
)

// Error is the API error envelope:
// {"error": code, "message": ..., "status": n, "request_id": ..., "trace_id": ...}.
// Details are merged into the top level without overriding those keys.
type Error struct {
	Code      string
	Message   string
	Status    int
	RequestID string
	TraceID   string
	Details   map[string]any
}

func (e Error) Error() string { return e.Code + ": " + e.Message }

// NewError clamps code and message to single bounded lines. A zero status means 500.
func NewError(code, message string, status int) Error {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return Error{Code: oneLine(code, maxCodeLen), Message: oneLine(message, maxMessageLen), Status: status}
}

func BadRequest(code, message string) Error {
	return NewError(code, message, http.StatusBadRequest)
}

func Unauthorized(code, message string) Error {
	return NewError(code, message, http.StatusUnauthorized)
}

func NotFound(code, message string) Error {
	return NewError(code, message, http.StatusNotFound)
}

// Internal never carries the underlying error text.
func Internal() Error {
	return NewError("internal_error", "an unexpected error occurred", http.StatusInternalServerError)
}

func (e Error) WithDetails(details map[string]any) Error {
	if len(details) > 0 {
		e.Details = maps.Clone(details)
	}
	return e
}

// body renders the envelope, filling request and trace ids from ctx when unset.
func (e Error) body(ctx context.Context) (int, map[string]any) {
	status := e.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}
	out := make(map[string]any, 5+len(e.Details))
	for k, v := range e.Details {
		out[k] = v
	}
	out["error"] = e.Code
	out["message"] = e.Message
	out["status"] = status
	delete(out, "request_id")
	delete(out, "trace_id")

	if id := firstSet(e.RequestID, middleware.GetReqID(ctx)); id != "" {
		out["request_id"] = oneLine(id, maxIDLen)
	}
	if id := firstSet(e.TraceID, requestctx.TraceID(ctx)); id != "" {
		out["trace_id"] = oneLine(id, maxIDLen)
	}
	return status, out
}

// WriteError writes err as the JSON envelope.
func WriteError(ctx context.Context, w http.ResponseWriter, err Error) {
	status, body := err.body(ctx)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func firstSet(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func oneLine(value string, limit int) string {
	value = strings.TrimSpace(strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' {
			return ' '
		}
		return r
	}, value))
	if len(value) > limit {
		value = value[:limit]
	}
	return value
}
