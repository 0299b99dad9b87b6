package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/ensemble-cast/internal/config"
	"github.com/couchcryptid/ensemble-cast/internal/domain"
)

// Writer publishes consolidated forecast tables to a Kafka topic.
// It implements pipeline.Publisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured forecast topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Kafka.Brokers...),
		Topic:        cfg.Kafka.Topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// PublishConsolidated serializes the table and publishes it as a single message.
func (w *Writer) PublishConsolidated(ctx context.Context, table domain.Table) error {
	msg, err := serializeToMessage(table)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish consolidated table: %w", err)
	}
	w.logger.Debug("consolidated table published", "models", table.Models, "rows", len(table.Times))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// tablePayload is the wire format for a consolidated forecast table.
type tablePayload struct {
	Models      []string     `json:"models"`
	GeneratedAt time.Time    `json:"generated_at"`
	Columns     []string     `json:"columns"`
	Times       []time.Time  `json:"times"`
	Rows        [][]*float64 `json:"rows"`
}

// serializeToMessage marshals a Table into a Kafka message keyed by its
// generation timestamp.
func serializeToMessage(table domain.Table) (kafkago.Message, error) {
	payload := tablePayload{
		Models:      table.Models,
		GeneratedAt: table.GeneratedAt,
		Columns:     table.Columns,
		Times:       table.Times,
		Rows:        table.Rows,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize consolidated table: %w", err)
	}
	generated := table.GeneratedAt.UTC().Format(time.RFC3339)
	return kafkago.Message{
		Key:   []byte(generated),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "models", Value: []byte(strings.Join(table.Models, ","))},
			{Key: "generated_at", Value: []byte(generated)},
		},
	}, nil
}
