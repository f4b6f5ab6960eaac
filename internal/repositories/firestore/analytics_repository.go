package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/lumashop/api/internal/domain"
	pfirestore "github.com/lumashop/api/internal/platform/firestore"
)

const analyticsCollection = "analyticsEvents"

type analyticsDocument struct {
	Type       string            `firestore:"type"`
	User       string            `firestore:"user,omitempty"`
	Session    string            `firestore:"session,omitempty"`
	Product    string            `firestore:"product,omitempty"`
	Order      string            `firestore:"order,omitempty"`
	Value      int64             `firestore:"value,omitempty"`
	Metadata   map[string]string `firestore:"metadata,omitempty"`
	OccurredAt time.Time         `firestore:"occurredAt"`
}

// AnalyticsRepository is the durable sink for tracked events.
type AnalyticsRepository struct {
	base *pfirestore.BaseRepository[analyticsDocument]
}

func NewAnalyticsRepository(provider *pfirestore.Provider) *AnalyticsRepository {
	return &AnalyticsRepository{base: pfirestore.NewBaseRepository[analyticsDocument](provider, analyticsCollection, nil, nil)}
}

func (r *AnalyticsRepository) Insert(ctx context.Context, event domain.AnalyticsEvent) error {
	id, err := requireID("analytics.insert", event.ID)
	if err != nil {
		return err
	}
	return r.base.Create(ctx, id, analyticsDocument{
		Type:       string(event.Type),
		User:       event.UserID,
		Session:    event.SessionID,
		Product:    event.ProductID,
		Order:      event.OrderID,
		Value:      event.Value,
		Metadata:   cloneStrings(event.Metadata),
		OccurredAt: event.OccurredAt.UTC(),
	})
}

// CountByType counts events in [from, to). A zero bound is open.
func (r *AnalyticsRepository) CountByType(ctx context.Context, eventType domain.AnalyticsEventType, from, to time.Time) (int, error) {
	return r.base.Count(ctx, func(q firestore.Query) firestore.Query {
		q = q.Where("type", "==", string(eventType))
		if !from.IsZero() {
			q = q.Where("occurredAt", ">=", from.UTC())
		}
		if !to.IsZero() {
			q = q.Where("occurredAt", "<", to.UTC())
		}
		return q
	})
}
