package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"github.com/trogers1052/holdings-service/internal/models"
)

// HoldingsRepository defines the database operation snapshot events apply
type HoldingsRepository interface {
	ReplaceAllHoldings(ctx context.Context, holdings []models.Holding) error
}

// EventRecorder receives consumer metrics
type EventRecorder interface {
	EventConsumed(eventType, result string)
	RecordsDropped(n int)
}

type reader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
	Config() kafka.ReaderConfig
}

// HoldingsConsumer applies HOLDINGS_SNAPSHOT events to the local store.
// Each snapshot replaces every stored holding.
type HoldingsConsumer struct {
	reader   reader
	repo     HoldingsRepository
	recorder EventRecorder
	logger   logrus.FieldLogger
}

// NewHoldingsConsumer creates a consumer for holdings snapshot events
func NewHoldingsConsumer(brokers []string, topic, groupID string, repo HoldingsRepository, recorder EventRecorder, logger logrus.FieldLogger) *HoldingsConsumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       10e3, // 10KB
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		StartOffset:    kafka.LastOffset,
		CommitInterval: time.Second,
	})
	return newHoldingsConsumer(r, repo, recorder, logger)
}

func newHoldingsConsumer(r reader, repo HoldingsRepository, recorder EventRecorder, logger logrus.FieldLogger) *HoldingsConsumer {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &HoldingsConsumer{
		reader:   r,
		repo:     repo,
		recorder: recorder,
		logger:   logger.WithField("component", "holdings_consumer"),
	}
}

// Start begins consuming messages from Kafka
func (c *HoldingsConsumer) Start(ctx context.Context) error {
	c.logger.WithField("topic", c.reader.Config().Topic).Info("Starting holdings consumer")

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Holdings consumer shutting down")
			return c.reader.Close()
		default:
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					c.logger.Info("Holdings consumer shutting down")
					return c.reader.Close()
				}
				c.logger.WithError(err).Error("Error reading message")
				continue
			}

			if err := c.processMessage(ctx, msg); err != nil {
				c.logger.WithError(err).Error("Error processing message")
			}
		}
	}
}

// processMessage handles a single Kafka message
func (c *HoldingsConsumer) processMessage(ctx context.Context, msg kafka.Message) error {
	c.logger.WithFields(logrus.Fields{
		"partition": msg.Partition,
		"offset":    msg.Offset,
		"key":       string(msg.Key),
	}).Debug("Received message")

	var event models.HoldingsEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		c.record("unknown", "failed")
		return fmt.Errorf("failed to unmarshal holdings event: %w", err)
	}

	if event.EventType != models.EventTypeHoldingsSnapshot {
		c.logger.WithField("event_type", event.EventType).Debug("Ignoring event type")
		c.record(event.EventType, "ignored")
		return nil
	}

	holdings, errs := models.DecodeHoldings(event.Data.Holdings)
	for _, err := range errs {
		c.logger.WithError(err).WithField("source", event.Source).Warn("Dropping undecodable holding record")
	}
	if c.recorder != nil && len(errs) > 0 {
		c.recorder.RecordsDropped(len(errs))
	}

	if err := c.repo.ReplaceAllHoldings(ctx, holdings); err != nil {
		c.record(event.EventType, "failed")
		return fmt.Errorf("failed to replace holdings: %w", err)
	}

	c.record(event.EventType, "applied")
	c.logger.WithFields(logrus.Fields{
		"source":   event.Source,
		"holdings": len(holdings),
		"dropped":  len(errs),
	}).Info("Applied holdings snapshot")
	return nil
}

func (c *HoldingsConsumer) record(eventType, result string) {
	if c.recorder != nil {
		c.recorder.EventConsumed(eventType, result)
	}
}

// Close closes the Kafka consumer
func (c *HoldingsConsumer) Close() error {
	return c.reader.Close()
}
