package publisher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/IBM/sarama"

	"github.com/mbd888/walletguard/internal/metrics"
)

const defaultBuffer = 256

// Kafka publishes events to a topic through a sarama SyncProducer. Publish
// only enqueues; Run drains the queue, so request handlers never wait on a
// broker round trip. Events are dropped (and counted) when the queue is full.
type Kafka struct {
	topic    string
	producer sarama.SyncProducer
	queue    chan Event
	logger   *slog.Logger
}

// NewKafka dials brokers (comma separated) and returns a publisher for topic.
func NewKafka(brokersCSV, topic string, logger *slog.Logger) (*Kafka, error) {
	if topic == "" {
		return nil, errors.New("publisher: kafka topic empty")
	}
	brokers := splitCSV(brokersCSV)
	if len(brokers) == 0 {
		return nil, errors.New("publisher: no kafka brokers")
	}

	cfg := sarama.NewConfig()
	cfg.ClientID = "walletguard"
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Retry.Backoff = 200 * time.Millisecond
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true

	p, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("publisher: kafka producer: %w", err)
	}
	return NewKafkaWithProducer(p, topic, defaultBuffer, logger), nil
}

// NewKafkaWithProducer wraps an existing producer.
func NewKafkaWithProducer(p sarama.SyncProducer, topic string, buffer int, logger *slog.Logger) *Kafka {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Kafka{
		topic:    topic,
		producer: p,
		queue:    make(chan Event, buffer),
		logger:   logger,
	}
}

// Publish enqueues ev without blocking.
func (k *Kafka) Publish(_ context.Context, ev Event) {
	select {
	case k.queue <- ev:
	default:
		metrics.EventsPublishedTotal.WithLabelValues(ev.Type, "dropped").Inc()
		k.logger.Warn("kafka queue full, dropping event", "type", ev.Type, "key", ev.Key)
	}
}

// Run sends queued events until ctx is cancelled, then flushes what is left.
func (k *Kafka) Run(ctx context.Context) error {
	for {
		select {
		case ev := <-k.queue:
			k.send(ev)
		case <-ctx.Done():
			for {
				select {
				case ev := <-k.queue:
					k.send(ev)
				default:
					return nil
				}
			}
		}
	}
}

func (k *Kafka) send(ev Event) {
	b, err := Encode(ev)
	if err != nil {
		metrics.EventsPublishedTotal.WithLabelValues(ev.Type, "error").Inc()
		k.logger.Error("encode event", "type", ev.Type, "error", err)
		return
	}
	msg := &sarama.ProducerMessage{
		Topic: k.topic,
		Value: sarama.ByteEncoder(b),
	}
	if ev.Key != "" {
		msg.Key = sarama.StringEncoder(ev.Key)
	}
	partition, offset, err := k.producer.SendMessage(msg)
	if err != nil {
		metrics.EventsPublishedTotal.WithLabelValues(ev.Type, "error").Inc()
		k.logger.Warn("kafka publish failed", "type", ev.Type, "key", ev.Key, "error", err)
		return
	}
	metrics.EventsPublishedTotal.WithLabelValues(ev.Type, "ok").Inc()
	k.logger.Debug("event published", "type", ev.Type, "partition", partition, "offset", offset)
}

// Close closes the producer. Call after Run has returned.
func (k *Kafka) Close() error {
	return k.producer.Close()
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
