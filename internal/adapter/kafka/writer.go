package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/soccerwave/barcelona-air-quality-schools/internal/config"
	"github.com/soccerwave/barcelona-air-quality-schools/internal/domain"
)

// Writer publishes QC-approved school exposure records to a Kafka topic so
// downstream consumers (dashboards, alerting) see them without polling the
// CSV outputs.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured exposure topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// PublishExposures serializes and publishes exposure records in a single
// WriteMessages call.
func (w *Writer) PublishExposures(ctx context.Context, records []domain.SchoolExposureRecord) error {
	if len(records) == 0 {
		return nil
	}
	producedAt := domain.Now()
	msgs := make([]kafkago.Message, len(records))
	for i := range records {
		msg, err := serializeToMessage(records[i], producedAt)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish exposures: %w", err)
	}
	w.logger.Info("published exposure records", "count", len(records), "topic", w.writer.Topic)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals an exposure record into a Kafka message keyed
// by school, pollutant, and date so compacted topics retain the latest value
// per school-day.
func serializeToMessage(rec domain.SchoolExposureRecord, producedAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize exposure record: %w", err)
	}
	key := fmt.Sprintf("%s|%s|%s", rec.SchoolID, rec.PollutantName, rec.Date)
	return kafkago.Message{
		Key:   []byte(key),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "method", Value: []byte(rec.Method)},
			{Key: "produced_at", Value: []byte(producedAt.Format(time.RFC3339))},
		},
	}, nil
}
