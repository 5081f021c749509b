// Package sink publishes emitted alerts to an external stream. The only
// implementation is a Kafka publisher, disabled by default.
package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"tirewatch/internal/alerting"
	"tirewatch/internal/config"
)

// ErrClosed is returned when publishing through a closed sink.
var ErrClosed = errors.New("alert sink is closed")

// KafkaSink publishes alerts as JSON messages keyed by sensor ID.
type KafkaSink struct {
	writer *kafka.Writer
	topic  string
	closed atomic.Bool

	published atomic.Int64
	failed    atomic.Int64
}

// NewKafkaSink creates a publisher from validated configuration.
func NewKafkaSink(cfg config.KafkaConfig) (*KafkaSink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("%w: kafka sink needs brokers", config.ErrInvalid)
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("%w: kafka sink needs a topic", config.ErrInvalid)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: cfg.BatchTimeout,
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			slog.Error(fmt.Sprintf(msg, args...), "component", "alert-sink")
		}),
	}

	slog.Info("kafka alert sink initialized", "brokers", cfg.Brokers, "topic", cfg.Topic)

	return &KafkaSink{writer: writer, topic: cfg.Topic}, nil
}

// Publish sends a batch of alerts. Failures are logged and counted, not
// returned per message; the simulation never stalls on the sink.
func (s *KafkaSink) Publish(ctx context.Context, alerts []alerting.Alert) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if len(alerts) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(alerts))
	for _, a := range alerts {
		value, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("marshaling alert %s: %w", a.ID, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(a.SensorID),
			Value: value,
			Time:  time.Now(),
		})
	}

	if err := s.writer.WriteMessages(ctx, msgs...); err != nil {
		s.failed.Add(int64(len(msgs)))
		return fmt.Errorf("publishing %d alerts: %w", len(msgs), err)
	}

	s.published.Add(int64(len(msgs)))
	return nil
}

// Stats returns publish/failure counters.
func (s *KafkaSink) Stats() (published, failed int64) {
	return s.published.Load(), s.failed.Load()
}

// Close flushes and closes the underlying writer.
func (s *KafkaSink) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.writer.Close()
}
