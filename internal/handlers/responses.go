package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/lumashop/api/internal/platform/auth"
	"github.com/lumashop/api/internal/platform/httpx"
	"github.com/lumashop/api/internal/platform/pagination"
	"github.com/lumashop/api/internal/platform/requestctx"
	"github.com/lumashop/api/internal/services"
	"go.uber.org/zap"
)

const defaultBodyLimit = 64 * 1024

// writeServiceError maps the service error kinds onto HTTP statuses. resource prefixes the error code.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error, resource string) {
	if err == nil {
		return
	}
	resource = strings.TrimSpace(resource)
	if resource == "" {
		resource = "request"
	}
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", err.Error()))
	case errors.Is(err, services.ErrNotFound):
		httpx.WriteError(ctx, w, httpx.NotFound(resource+"_not_found", err.Error()))
	case errors.Is(err, services.ErrUnauthorized):
		httpx.WriteError(ctx, w, httpx.Unauthorized("not_authorized", err.Error()))
	case errors.Is(err, services.ErrConflict):
		httpx.WriteError(ctx, w, httpx.NewError(resource+"_conflict", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError(resource+"_unavailable", resource+" service unavailable", http.StatusServiceUnavailable))
	default:
		requestctx.Logger(ctx).Error("request failed", zap.String("resource", resource), zap.Error(err))
		httpx.WriteError(ctx, w, httpx.Internal())
	}
}

func writeUnavailable(ctx context.Context, w http.ResponseWriter, resource string) {
	httpx.WriteError(ctx, w, httpx.NewError(resource+"_service_unavailable", resource+" service unavailable", http.StatusServiceUnavailable))
}

// actorFromContext returns nil for anonymous callers.
func actorFromContext(ctx context.Context) *services.Actor {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || strings.TrimSpace(identity.UID) == "" {
		return nil
	}
	return &services.Actor{
		UserID: strings.TrimSpace(identity.UID),
		Email:  strings.TrimSpace(identity.Email),
		Name:   strings.TrimSpace(identity.Name),
		Admin:  identity.IsAdmin(),
	}
}

// requireActor writes a 401 and returns false when the request carries no identity.
func requireActor(w http.ResponseWriter, r *http.Request) (*services.Actor, bool) {
	actor := actorFromContext(r.Context())
	if actor == nil {
		httpx.WriteError(r.Context(), w, httpx.Unauthorized("unauthenticated", "authentication required"))
		return nil, false
	}
	return actor, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dest any, limit int64) bool {
	if limit <= 0 {
		limit = defaultBodyLimit
	}
	if err := httpx.DecodeJSON(r, dest, limit); err != nil {
		httpx.WriteError(r.Context(), w, httpx.DecodeError(err))
		return false
	}
	return true
}

func pageParams(w http.ResponseWriter, r *http.Request, defaultLimit, maxLimit int) (pagination.Params, bool) {
	params, err := pagination.FromRequest(r, pagination.Options{DefaultLimit: defaultLimit, MaxLimit: maxLimit})
	if err != nil {
		httpx.WriteError(r.Context(), w, httpx.BadRequest("invalid_pagination", err.Error()))
		return pagination.Params{}, false
	}
	return params, true
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil || t.IsZero() {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func nonNilMap(values map[string]string) map[string]string {
	if values == nil {
		return map[string]string{}
	}
	return values
}

// requireAdmin writes a 401 unless the caller holds the admin role.
func requireAdmin(w http.ResponseWriter, r *http.Request) (*services.Actor, bool) {
	actor, ok := requireActor(w, r)
	if !ok {
		return nil, false
	}
	if !actor.Admin {
		httpx.WriteError(r.Context(), w, httpx.Unauthorized("insufficient_role", "administrator role required"))
		return nil, false
	}
	return actor, true
}

// adminOnly rejects callers without the admin role. It backs up the token middleware so
// routes stay guarded when handlers are mounted without an authenticator.
func adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requireAdmin(w, r); !ok {
			return
		}
		next.ServeHTTP(w, r)
	})
}

func parseOptionalBool(raw string) (*bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, err
	}
	return &value, nil
}
