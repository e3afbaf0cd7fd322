package outbox

import (
	"context"
	"fmt"
	"time"

	"motodean/internal/repos"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Publisher delivers one stored event to the outside world.
type Publisher interface {
	Publish(ctx context.Context, e repos.OutboxEvent) error
	Close() error
}

// Writer is the part of kafka.Writer the publisher uses.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		WriteTimeout: 10 * time.Second,
	}}
}

func NewKafkaPublisherWithWriter(w Writer) *KafkaPublisher { return &KafkaPublisher{writer: w} }

// Publish keys messages by aggregate id so events for one order stay ordered.
func (p *KafkaPublisher) Publish(ctx context.Context, e repos.OutboxEvent) error {
	msg := kafka.Message{
		Key:   []byte(e.AggregateType + ":" + e.AggregateID),
		Value: []byte(e.Payload),
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(e.EventID)},
			{Key: "event_type", Value: []byte(e.EventType)},
		},
		Time: e.CreatedAt,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write %s: %w", e.EventID, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error { return p.writer.Close() }

// LogPublisher stands in when no broker is configured.
type LogPublisher struct{ Log *zap.Logger }

func (p LogPublisher) Publish(_ context.Context, e repos.OutboxEvent) error {
	p.Log.Info("outbox event",
		zap.String("event_id", e.EventID),
		zap.String("event_type", e.EventType),
		zap.String("aggregate", e.AggregateType+":"+e.AggregateID),
		zap.String("payload", e.Payload))
	return nil
}

func (LogPublisher) Close() error { return nil }
