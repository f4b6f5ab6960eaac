package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/lumashop/api/internal/platform/requestctx"
)

func TestWriteErrorIncludesRequestAndTraceIDs(t *testing.T) {
	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-1")
	ctx = requestctx.WithTrace(ctx, requestctx.TraceInfo{TraceID: "trace-1"})
	rec := httptest.NewRecorder()

	WriteError(ctx, rec, NotFound("order_not_found", "order not found\n").WithDetails(map[string]any{
		"order_id": "o1",
		"status":   999,
	}))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] != "order_not_found" || body["message"] != "order not found" {
		t.Fatalf("unexpected body %v", body)
	}
	if body["request_id"] != "req-1" || body["trace_id"] != "trace-1" {
		t.Fatalf("expected ids in body, got %v", body)
	}
	if body["status"] != float64(404) {
		t.Fatalf("details must not override status, got %v", body["status"])
	}
	if body["order_id"] != "o1" {
		t.Fatalf("expected detail order_id, got %v", body["order_id"])
	}
}

type samplePayload struct {
	Email    string `json:"email" validate:"required,email"`
	Quantity int    `json:"quantity" validate:"min=1"`
}

func TestDecodeJSONValidatesFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"nope","quantity":0}`))
	var payload samplePayload
	err := DecodeJSON(req, &payload, 0)
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if validation.Fields["email"] != "must be a valid email" {
		t.Fatalf("unexpected email message %q", validation.Fields["email"])
	}
	if validation.Fields["quantity"] != "must be at least 1" {
		t.Fatalf("unexpected quantity message %q", validation.Fields["quantity"])
	}
	if got := DecodeError(err); got.Status != http.StatusBadRequest || got.Code != "validation_failed" {
		t.Fatalf("unexpected envelope %+v", got)
	}
}

func TestDecodeJSONRejectsOversizedAndEmptyBodies(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@b.co","quantity":1}`))
	var payload samplePayload
	if err := DecodeJSON(req, &payload, 8); !errors.Is(err, ErrBodyTooLarge) {
		t.Fatalf("expected ErrBodyTooLarge, got %v", err)
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader("   "))
	if err := DecodeJSON(req, &payload, 0); !errors.Is(err, ErrEmptyBody) {
		t.Fatalf("expected ErrEmptyBody, got %v", err)
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":`))
	err := DecodeJSON(req, &payload, 0)
	if got := DecodeError(err); got.Code != "invalid_json" {
		t.Fatalf("expected invalid_json, got %+v", got)
	}
}
