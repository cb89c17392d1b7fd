package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"market-data-hub/src/interfaces"
	"market-data-hub/src/logger"
	"market-data-hub/src/models"

	"github.com/segmentio/kafka-go"
)

// NewPublisher returns a Kafka publisher when enabled, else a log-only one.
func NewPublisher(cfg models.MKafkaConfig, log *logger.Logger) (interfaces.IEventPublisher, error) {
	if !cfg.Enabled {
		return NewLogPublisher(log), nil
	}
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nil, errors.New("kafka: brokers and topic are required")
	}
	return NewKafkaPublisher(cfg.Brokers, cfg.Topic, log), nil
}

// -----------------------------------------------------------------------------
// Log publisher
// -----------------------------------------------------------------------------

type LogPublisher struct {
	Logger *logger.Logger
}

func NewLogPublisher(log *logger.Logger) *LogPublisher {
	return &LogPublisher{Logger: log}
}

func (p *LogPublisher) Publish(ctx context.Context, event models.MProviderEvent) error {
	p.Logger.Info("event %s router=%s provider=%s %s", event.Type, event.Router, event.Provider, event.Message)
	return nil
}

func (p *LogPublisher) Close() error {
	return nil
}

// -----------------------------------------------------------------------------
// Kafka publisher
// -----------------------------------------------------------------------------

// KafkaPublisher writes events keyed by provider so one provider's events stay
// ordered within a partition. Writes are async; failures are logged.
type KafkaPublisher struct {
	Logger *logger.Logger

	writer    *kafka.Writer
	closeOnce sync.Once
}

func NewKafkaPublisher(brokers []string, topic string, log *logger.Logger) *KafkaPublisher {
	p := &KafkaPublisher{Logger: log}
	p.writer = &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		Async:        true,
		BatchTimeout: 50 * time.Millisecond,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				p.Logger.Warning("Failed to deliver %d events: %v", len(messages), err)
			}
		},
	}
	return p
}

// -----------------------------------------------------------------------------

func (p *KafkaPublisher) Publish(ctx context.Context, event models.MProviderEvent) error {
	msg, err := message(event)
	if err != nil {
		return err
	}
	p.Logger.Debug("event %s provider=%s -> kafka", event.Type, event.Provider)
	return p.writer.WriteMessages(ctx, msg)
}

// -----------------------------------------------------------------------------

// Close flushes pending events.
func (p *KafkaPublisher) Close() error {
	var err error
	p.closeOnce.Do(func() {
		err = p.writer.Close()
	})
	return err
}

// -----------------------------------------------------------------------------

func message(event models.MProviderEvent) (kafka.Message, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal event: %w", err)
	}
	ts := event.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return kafka.Message{
		Key:   []byte(event.Provider),
		Value: value,
		Time:  ts,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(event.Type)},
		},
	}, nil
}
