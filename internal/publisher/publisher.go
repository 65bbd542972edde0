// Package publisher fans WalletGuard domain events out to the optional
// outbound channels: the websocket hub, Kafka and the alert webhook.
//
// Publishing is fire-and-forget. A sink that is slow or down must never
// change the outcome of the request that produced the event.
package publisher

import (
	"context"
	"encoding/json"
	"time"
)

// Event types.
const (
	EventAnalysis    = "analysis"
	EventTransaction = "transaction"
	EventAlert       = "alert"
	EventAlertRead   = "alert.read"
	EventAlertDelete = "alert.deleted"
)

// Event is one domain event. Key partitions it (the record id).
type Event struct {
	Type string
	Key  string
	Time time.Time
	Data any
}

// Envelope is the wire form shared by every sink.
type Envelope struct {
	Type string          `json:"type"`
	TS   int64           `json:"ts"`
	Data json.RawMessage `json:"data"`
}

// Encode renders ev as an Envelope.
func Encode(ev Event) ([]byte, error) {
	data, err := json.Marshal(ev.Data)
	if err != nil {
		return nil, err
	}
	ts := ev.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	return json.Marshal(Envelope{Type: ev.Type, TS: ts.UnixMilli(), Data: data})
}

// Sink receives events. Publish must not block on slow downstreams.
type Sink interface {
	Publish(ctx context.Context, ev Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, ev Event)

func (f SinkFunc) Publish(ctx context.Context, ev Event) { f(ctx, ev) }

// Noop discards events.
type Noop struct{}

func (Noop) Publish(context.Context, Event) {}

// Fanout delivers each event to every sink in order. Nil sinks are skipped.
type Fanout []Sink

func (f Fanout) Publish(ctx context.Context, ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	for _, s := range f {
		if s != nil {
			s.Publish(ctx, ev)
		}
	}
}
