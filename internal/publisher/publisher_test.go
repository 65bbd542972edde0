package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/walletguard/internal/metrics"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func producerConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	return cfg
}

func TestEncode(t *testing.T) {
	at := time.UnixMilli(1_739_615_400_123)
	b, err := Encode(Event{Type: EventAlert, Key: "a1", Time: at, Data: map[string]any{"title": "Transaction Blocked"}})
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(b, &env))
	assert.Equal(t, EventAlert, env.Type)
	assert.Equal(t, int64(1_739_615_400_123), env.TS)
	assert.JSONEq(t, `{"title":"Transaction Blocked"}`, string(env.Data))
}

func TestEncode_Unencodable(t *testing.T) {
	_, err := Encode(Event{Type: EventAlert, Data: make(chan int)})
	assert.Error(t, err)
}

func TestFanout(t *testing.T) {
	var mu sync.Mutex
	var got []string
	record := func(name string) Sink {
		return SinkFunc(func(_ context.Context, ev Event) {
			mu.Lock()
			defer mu.Unlock()
			assert.False(t, ev.Time.IsZero(), "fanout stamps the event time")
			got = append(got, name+":"+ev.Type)
		})
	}

	f := Fanout{record("hub"), nil, Noop{}, record("kafka")}
	f.Publish(context.Background(), Event{Type: EventAnalysis, Key: "tx1"})

	assert.Equal(t, []string{"hub:analysis", "kafka:analysis"}, got)
}

func TestKafka_PublishesEnvelopeKeyedByID(t *testing.T) {
	producer := mocks.NewSyncProducer(t, producerConfig())
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != "walletguard.events" {
			return fmt.Errorf("unexpected topic %q", msg.Topic)
		}
		key, err := msg.Key.Encode()
		if err != nil {
			return err
		}
		if string(key) != "tx-1" {
			return fmt.Errorf("unexpected key %q", key)
		}
		val, err := msg.Value.Encode()
		if err != nil {
			return err
		}
		var env Envelope
		if err := json.Unmarshal(val, &env); err != nil {
			return err
		}
		if env.Type != EventAnalysis {
			return fmt.Errorf("unexpected type %q", env.Type)
		}
		return nil
	})
	producer.ExpectSendMessageAndFail(errors.New("broker unavailable"))

	k := NewKafkaWithProducer(producer, "walletguard.events", 8, discard)
	okCounter := metrics.EventsPublishedTotal.WithLabelValues(EventAnalysis, "ok")
	errCounter := metrics.EventsPublishedTotal.WithLabelValues(EventAlert, "error")
	okBefore, errBefore := testutil.ToFloat64(okCounter), testutil.ToFloat64(errCounter)

	k.Publish(context.Background(), Event{Type: EventAnalysis, Key: "tx-1", Data: map[string]int{"riskScore": 55}})
	k.Publish(context.Background(), Event{Type: EventAlert, Key: "al-1", Data: map[string]string{}})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- k.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	require.NoError(t, k.Close())
	assert.Equal(t, okBefore+1, testutil.ToFloat64(okCounter))
	assert.Equal(t, errBefore+1, testutil.ToFloat64(errCounter))
}

func TestKafka_DropsWhenQueueFull(t *testing.T) {
	producer := mocks.NewSyncProducer(t, producerConfig())
	k := NewKafkaWithProducer(producer, "walletguard.events", 1, discard)

	dropped := metrics.EventsPublishedTotal.WithLabelValues(EventTransaction, "dropped")
	before := testutil.ToFloat64(dropped)

	k.Publish(context.Background(), Event{Type: EventTransaction, Key: "a"})
	k.Publish(context.Background(), Event{Type: EventTransaction, Key: "b"})

	assert.Equal(t, before+1, testutil.ToFloat64(dropped))
	require.NoError(t, k.Close())
}

func TestNewKafka_Validation(t *testing.T) {
	_, err := NewKafka("localhost:9092", "", discard)
	assert.Error(t, err)

	_, err = NewKafka(" , ", "events", discard)
	assert.Error(t, err)
}

func TestSplitCSV(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092"}, splitCSV(" a:9092, ,b:9092 "))
	assert.Nil(t, splitCSV(""))
}
