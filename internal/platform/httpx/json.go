package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// DefaultMaxBodyBytes bounds JSON request bodies.
const DefaultMaxBodyBytes = 1 << 20

var (
	// ErrEmptyBody is returned when a request that requires a JSON body has none.
	ErrEmptyBody = errors.New("httpx: request body is empty")
	// ErrBodyTooLarge is returned when the body exceeds the configured limit.
	ErrBodyTooLarge = errors.New("httpx: request body too large")

	validate = newValidator()
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// ValidationError lists failing request fields keyed by their JSON name.
type ValidationError struct {
	Fields map[string]string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, field+" "+msg)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// DecodeJSON reads at most maxBytes of JSON into dest and runs struct validation tags.
// Unknown fields are tolerated so older clients keep working.
func DecodeJSON(r *http.Request, dest any, maxBytes int64) error {
	if r.Body == nil {
		return ErrEmptyBody
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBytes+1))
	if err != nil {
		return fmt.Errorf("httpx: read body: %w", err)
	}
	if int64(len(body)) > maxBytes {
		return ErrBodyTooLarge
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return ErrEmptyBody
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("httpx: invalid JSON: %w", err)
	}
	return Validate(dest)
}

// Validate runs go-playground validation tags on value.
func Validate(value any) error {
	err := validate.Struct(value)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	out := &ValidationError{Fields: make(map[string]string, len(fieldErrs))}
	for _, fe := range fieldErrs {
		out.Fields[fe.Field()] = validationMessage(fe)
	}
	return out
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_without":
		return "is required"
	case "min", "gte":
		return "must be at least " + fe.Param()
	case "max", "lte":
		return "must be at most " + fe.Param()
	case "email":
		return "must be a valid email"
	case "oneof":
		return "must be one of " + fe.Param()
	case "url":
		return "must be a valid URL"
	}
	return "is invalid"
}

// DecodeError converts a DecodeJSON failure into the API envelope.
func DecodeError(err error) Error {
	var validation *ValidationError
	switch {
	case errors.As(err, &validation):
		details := make(map[string]any, len(validation.Fields))
		for k, v := range validation.Fields {
			details[k] = v
		}
		return BadRequest("validation_failed", "request validation failed").WithDetails(map[string]any{"fields": details})
	case errors.Is(err, ErrBodyTooLarge):
		return NewError("payload_too_large", "request body exceeds limit", http.StatusRequestEntityTooLarge)
	case errors.Is(err, ErrEmptyBody):
		return BadRequest("invalid_request", "request body is required")
	default:
		return BadRequest("invalid_json", "request body must be valid JSON")
	}
}

// WriteJSON encodes payload with the given status.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}
