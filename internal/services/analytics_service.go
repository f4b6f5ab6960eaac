package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/lumashop/api/internal/domain"
	"github.com/lumashop/api/internal/platform/textutil"
	"github.com/lumashop/api/internal/repositories"
)

const (
	defaultSummaryWindow = 30 * 24 * time.Hour
	maxMetadataEntries   = 20
	maxMetadataValueLen  = 256
)

// ErrAnalyticsInvalidInput signals an unknown event type or an inverted summary window.
var ErrAnalyticsInvalidInput = fmt.Errorf("analytics: %w", ErrInvalidInput)

// AnalyticsPublisher forwards stored events to a downstream sink such as Pub/Sub.
type AnalyticsPublisher interface {
	PublishAnalyticsEvent(ctx context.Context, event AnalyticsEvent) (string, error)
}

type AnalyticsServiceDeps struct {
	Events    repositories.AnalyticsRepository
	Publisher AnalyticsPublisher
	// SideEffects runs publishing after the event is stored. Defaults to a detached goroutine.
	SideEffects func(func())
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(context.Context, string, map[string]any)
}

type analyticsService struct {
	events      repositories.AnalyticsRepository
	publisher   AnalyticsPublisher
	sideEffects func(func())
	clock       func() time.Time
	newID       func() string
	logger      func(context.Context, string, map[string]any)
}

// NewAnalyticsService constructs the ingestion service.
func NewAnalyticsService(deps AnalyticsServiceDeps) (AnalyticsService, error) {
	if deps.Events == nil {
		return nil, errors.New("analytics service: event repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	sideEffects := deps.SideEffects
	if sideEffects == nil {
		sideEffects = func(fn func()) { go fn() }
	}
	return &analyticsService{
		events:      deps.Events,
		publisher:   deps.Publisher,
		sideEffects: sideEffects,
		clock:       func() time.Time { return clock().UTC() },
		newID:       idGen,
		logger:      logger,
	}, nil
}

// Track stores one event and forwards it to the publisher without waiting for the result.
func (s *analyticsService) Track(ctx context.Context, event AnalyticsEvent) error {
	event.Type = domain.AnalyticsEventType(strings.ToLower(strings.TrimSpace(string(event.Type))))
	if !event.Type.Valid() {
		return fmt.Errorf("%w: unknown event type %q", ErrAnalyticsInvalidInput, event.Type)
	}
	if event.ID == "" {
		event.ID = s.newID()
	}
	now := s.clock()
	if event.OccurredAt.IsZero() || event.OccurredAt.After(now) {
		event.OccurredAt = now
	}
	event.OccurredAt = event.OccurredAt.UTC()
	event.UserID = strings.TrimSpace(event.UserID)
	event.SessionID = strings.TrimSpace(event.SessionID)
	event.ProductID = strings.TrimSpace(event.ProductID)
	event.Metadata = trimMetadata(event.Metadata)

	if err := s.events.Insert(ctx, event); err != nil {
		return kindOf(err, "analytics")
	}
	if s.publisher != nil {
		detached := context.WithoutCancel(ctx)
		s.sideEffects(func() {
			if _, err := s.publisher.PublishAnalyticsEvent(detached, event); err != nil {
				s.logger(detached, "analytics.publish_failed", map[string]any{
					"eventId": event.ID,
					"type":    string(event.Type),
					"error":   err.Error(),
				})
			}
		})
	}
	return nil
}

// Summary counts events per type in [from, to). A zero to means now; a zero from means 30 days before to.
func (s *analyticsService) Summary(ctx context.Context, from, to time.Time) (domain.AnalyticsSummary, error) {
	if to.IsZero() {
		to = s.clock()
	}
	if from.IsZero() {
		from = to.Add(-defaultSummaryWindow)
	}
	from, to = from.UTC(), to.UTC()
	if !from.Before(to) {
		return domain.AnalyticsSummary{}, fmt.Errorf("%w: from must be before to", ErrAnalyticsInvalidInput)
	}

	summary := domain.AnalyticsSummary{From: from, To: to, Counts: map[domain.AnalyticsEventType]int{}}
	for _, eventType := range domain.AnalyticsEventTypes() {
		n, err := s.events.CountByType(ctx, eventType, from, to)
		if err != nil {
			return domain.AnalyticsSummary{}, kindOf(err, "analytics")
		}
		summary.Counts[eventType] = n
		summary.Total += n
	}
	return summary, nil
}

func trimMetadata(metadata map[string]string) map[string]string {
	cleaned := textutil.CleanAttributes(metadata, true)
	if len(cleaned) == 0 {
		return nil
	}
	out := make(map[string]string, min(len(cleaned), maxMetadataEntries))
	for key, value := range cleaned {
		if len(out) == maxMetadataEntries {
			break
		}
		if len(value) > maxMetadataValueLen {
			value = value[:maxMetadataValueLen]
		}
		out[key] = value
	}
	return out
}
