package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/airshedlabs/enviro-risk-service/internal/config"
	"github.com/airshedlabs/enviro-risk-service/internal/domain"
)

// AlertWriter publishes generated alerts to the alert topic.
// It implements pipeline.ResultSink; cycle results without an alert are
// skipped.
type AlertWriter struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewAlertWriter creates a Kafka producer for the configured alert topic.
func NewAlertWriter(cfg *config.Config, logger *slog.Logger) *AlertWriter {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaAlertTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &AlertWriter{writer: w, logger: logger}
}

// LoadCycle publishes every alert in the cycle in a single WriteMessages
// call. Deterministic alert IDs make redelivery after a retried cycle safe
// for downstream consumers to deduplicate.
func (w *AlertWriter) LoadCycle(ctx context.Context, results []domain.CycleResult) error {
	var msgs []kafkago.Message
	for _, r := range results {
		if r.Alert == nil {
			continue
		}
		msg, err := serializeAlert(*r.Alert)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}
	if len(msgs) == 0 {
		return nil
	}
	return w.writer.WriteMessages(ctx, msgs...)
}

func (w *AlertWriter) Close() error {
	return w.writer.Close()
}

// serializeAlert marshals an Alert into a Kafka message keyed by station, so
// a partition preserves per-station alert order.
func serializeAlert(alert domain.Alert) (kafkago.Message, error) {
	data, err := json.Marshal(alert)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize alert: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(alert.LocationID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "alert_id", Value: []byte(alert.ID)},
			{Key: "level", Value: []byte(alert.Risk.Level)},
			{Key: "generated_at", Value: []byte(alert.Timestamp.Format(time.RFC3339))},
		},
	}, nil
}
