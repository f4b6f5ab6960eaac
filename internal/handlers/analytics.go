package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/lumashop/api/internal/domain"
	"github.com/lumashop/api/internal/platform/auth"
	"github.com/lumashop/api/internal/platform/httpx"
	"github.com/lumashop/api/internal/services"
)

const (
	maxAnalyticsBodySize   = 8 * 1024
	defaultAnalyticsLimit  = 120
	defaultAnalyticsWindow = time.Minute
	analyticsSessionHeader = "X-Session-ID"
)

// AnalyticsHandlers ingests storefront events from anonymous and signed-in shoppers.
type AnalyticsHandlers struct {
	authn     *auth.Authenticator
	analytics services.AnalyticsService
	limiter   *fixedWindowLimiter
	clock     func() time.Time
}

// AnalyticsOption customises AnalyticsHandlers.
type AnalyticsOption func(*AnalyticsHandlers)

// WithAnalyticsRateLimit overrides the per-client ingestion limit. A non-positive limit disables limiting.
func WithAnalyticsRateLimit(limit int, window time.Duration) AnalyticsOption {
	return func(h *AnalyticsHandlers) {
		h.limiter = newFixedWindowLimiter(limit, window, h.now)
	}
}

// WithAnalyticsClock injects a clock for tests.
func WithAnalyticsClock(clock func() time.Time) AnalyticsOption {
	return func(h *AnalyticsHandlers) {
		if clock != nil {
			h.clock = clock
		}
	}
}

func NewAnalyticsHandlers(authn *auth.Authenticator, analytics services.AnalyticsService, opts ...AnalyticsOption) *AnalyticsHandlers {
	h := &AnalyticsHandlers{
		authn:     authn,
		analytics: analytics,
		clock:     time.Now,
	}
	h.limiter = newFixedWindowLimiter(defaultAnalyticsLimit, defaultAnalyticsWindow, h.now)
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

func (h *AnalyticsHandlers) now() time.Time {
	return h.clock()
}

// Routes registers POST /analytics/events at the API root.
func (h *AnalyticsHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	route := r.With()
	if h.authn != nil {
		route = route.With(h.authn.OptionalFirebaseAuth())
	}
	route.With(limitByClient(h.limiter)).Post("/analytics/events", h.track)
}

type trackEventRequest struct {
	Type      string            `json:"type" validate:"required,max=40"`
	SessionID string            `json:"sessionId" validate:"max=128"`
	ProductID string            `json:"productId" validate:"max=128"`
	OrderID   string            `json:"orderId" validate:"max=128"`
	Value     int64             `json:"value" validate:"min=0"`
	Metadata  map[string]string `json:"metadata"`
}

func (h *AnalyticsHandlers) track(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.analytics == nil {
		writeUnavailable(ctx, w, "analytics")
		return
	}
	var req trackEventRequest
	if !decodeBody(w, r, &req, maxAnalyticsBodySize) {
		return
	}
	eventType := domain.AnalyticsEventType(strings.ToLower(strings.TrimSpace(req.Type)))
	if !eventType.Valid() {
		httpx.WriteError(ctx, w, httpx.BadRequest("invalid_event_type", "unknown analytics event type"))
		return
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = strings.TrimSpace(r.Header.Get(analyticsSessionHeader))
	}
	event := services.AnalyticsEvent{
		Type:       eventType,
		SessionID:  sessionID,
		ProductID:  strings.TrimSpace(req.ProductID),
		OrderID:    strings.TrimSpace(req.OrderID),
		Value:      req.Value,
		Metadata:   req.Metadata,
		OccurredAt: h.now().UTC(),
	}
	if actor := actorFromContext(ctx); actor != nil {
		event.UserID = actor.UserID
	}
	if err := h.analytics.Track(ctx, event); err != nil {
		writeServiceError(ctx, w, err, "analytics")
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
