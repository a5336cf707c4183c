// Package kafka publishes notebook events to a Kafka topic. Events key on
// the notebook ID so all events for one notebook land on the same partition
// in order.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/quillworksco/folio/pkg/eventstream"
)

// Publisher implements eventstream.Publisher on a Kafka topic.
type Publisher struct {
	writer *kafkago.Writer
	logger *zap.Logger
}

// Config holds configuration for the Kafka publisher.
type Config struct {
	// Brokers is the list of bootstrap broker addresses.
	Brokers []string

	// Topic receives the notebook events.
	Topic string
}

// NewPublisher creates a new Kafka-backed eventstream publisher.
func NewPublisher(c Config, logger *zap.Logger) (*Publisher, error) {
	if len(c.Brokers) == 0 {
		return nil, fmt.Errorf("at least one kafka broker is required")
	}
	if c.Topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}

	writer := &kafkago.Writer{
		Addr:     kafkago.TCP(c.Brokers...),
		Topic:    c.Topic,
		Balancer: &kafkago.Hash{},
	}

	logger.Info("kafka event publisher initialized",
		zap.Strings("brokers", c.Brokers),
		zap.String("topic", c.Topic),
	)

	return &Publisher{
		writer: writer,
		logger: logger,
	}, nil
}

// PublishNotebookEvent writes the event to the topic.
func (p *Publisher) PublishNotebookEvent(ctx context.Context, event *eventstream.NotebookEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event %s: %w", event.EventID, err)
	}

	err = p.writer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(event.NotebookID),
		Value: payload,
	})
	if err != nil {
		return fmt.Errorf("writing event %s: %w", event.EventID, err)
	}

	p.logger.Debug("published notebook event",
		zap.String("event_id", event.EventID),
		zap.String("event_type", event.EventType),
		zap.String("notebook_id", event.NotebookID),
	)

	return nil
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

var _ eventstream.Publisher = (*Publisher)(nil)
