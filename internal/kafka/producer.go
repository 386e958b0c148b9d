package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/trogers1052/holdings-service/internal/models"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer handles publishing events to Kafka
type Producer struct {
	writer messageWriter
	topic  string
}

// NewProducer creates a new Kafka producer
func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
	}

	return &Producer{
		writer: writer,
		topic:  topic,
	}
}

// PublishLoadEvent publishes the outcome of a settled holdings load
func (p *Producer) PublishLoadEvent(ctx context.Context, event models.LoadEvent) error {
	if event.EventType == "" {
		event.EventType = models.EventTypeHoldingsLoaded
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	return p.publish(ctx, event.Outcome, event)
}

// PublishSnapshot publishes a holdings snapshot in the format HoldingsConsumer applies
func (p *Producer) PublishSnapshot(ctx context.Context, source string, holdings []models.Holding) error {
	records := make([]json.RawMessage, 0, len(holdings))
	for _, h := range holdings {
		raw, err := json.Marshal(h)
		if err != nil {
			return fmt.Errorf("failed to marshal holding %s: %w", h.Symbol, err)
		}
		records = append(records, raw)
	}

	event := models.HoldingsEvent{
		EventType: models.EventTypeHoldingsSnapshot,
		Source:    source,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Data:      models.HoldingsEventData{Holdings: records},
	}
	return p.publish(ctx, source, event)
}

func (p *Producer) publish(ctx context.Context, key string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: data,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}

	return nil
}

// Close closes the Kafka producer
func (p *Producer) Close() error {
	return p.writer.Close()
}
