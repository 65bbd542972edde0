package alerts

import (
	"context"
	"fmt"
	"time"

	"github.com/mbd888/walletguard/internal/idgen"
	"github.com/mbd888/walletguard/internal/logging"
	"github.com/mbd888/walletguard/internal/metrics"
	"github.com/mbd888/walletguard/internal/publisher"
)

// Service implements alert business logic.
type Service struct {
	store  Store
	events publisher.Sink
	now    func() time.Time
}

// NewService creates a new alert service. events may be nil.
func NewService(store Store, events publisher.Sink) *Service {
	if events == nil {
		events = publisher.Noop{}
	}
	return &Service{store: store, events: events, now: time.Now}
}

// Raise creates and stores a new unread alert and publishes it.
func (s *Service) Raise(ctx context.Context, in Input) (*Alert, error) {
	if !in.Type.Valid() {
		return nil, fmt.Errorf("alerts: unknown type %q", in.Type)
	}
	a := &Alert{
		ID:            idgen.New(),
		Type:          in.Type,
		Title:         in.Title,
		Message:       in.Message,
		Timestamp:     s.now().UnixMilli(),
		TransactionID: in.TransactionID,
	}
	if err := s.store.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("alerts: create: %w", err)
	}

	metrics.AlertsTotal.WithLabelValues(string(a.Type)).Inc()
	logging.L(ctx).Info("alert raised", "id", a.ID, "type", a.Type, "transaction_id", a.TransactionID)
	s.events.Publish(ctx, publisher.Event{Type: publisher.EventAlert, Key: a.ID, Data: a})
	return a, nil
}

// List returns every alert, newest first.
func (s *Service) List(ctx context.Context) ([]*Alert, error) {
	return s.store.List(ctx)
}

// MarkRead flags one alert as read.
func (s *Service) MarkRead(ctx context.Context, id string) (*Alert, error) {
	a, err := s.store.MarkRead(ctx, id)
	if err != nil {
		return nil, err
	}
	s.events.Publish(ctx, publisher.Event{Type: publisher.EventAlertRead, Key: a.ID, Data: a})
	return a, nil
}

// MarkAllRead flags every alert as read and returns how many changed.
func (s *Service) MarkAllRead(ctx context.Context) (int, error) {
	return s.store.MarkAllRead(ctx)
}

// Delete removes an alert.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.events.Publish(ctx, publisher.Event{Type: publisher.EventAlertDelete, Key: id, Data: map[string]string{"id": id}})
	return nil
}
