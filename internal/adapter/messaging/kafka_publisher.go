package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	otelkafka "github.com/Trendyol/otel-kafka-konsumer"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/rl1809/storefront-ledger/internal/core/domain"
)

const (
	HeaderEventType = "event-type"
	HeaderEventID   = "event-id"
)

// Producer is the part of a kafka writer the publisher needs.
type Producer interface {
	WriteMessage(ctx context.Context, msg kafka.Message) error
	Close() error
}

// KafkaPublisher sends outbox events to Kafka, keyed by order id so every event
// for one order lands on the same partition.
type KafkaPublisher struct {
	producer Producer
}

func NewKafkaPublisher(producer Producer) *KafkaPublisher {
	return &KafkaPublisher{producer: producer}
}

// NewInstrumentedWriter builds a kafka-go writer wrapped with trace propagation.
// The writer has no default topic; each message carries its own.
func NewInstrumentedWriter(brokers []string, clientID string, tp trace.TracerProvider) (Producer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("no kafka brokers configured")
	}

	baseWriter := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		BatchTimeout:           10 * time.Millisecond,
		BatchSize:              100,
		AllowAutoTopicCreation: true,
	}

	writer, err := otelkafka.NewWriter(baseWriter,
		otelkafka.WithTracerProvider(tp),
		otelkafka.WithPropagator(propagation.TraceContext{}),
		otelkafka.WithAttributes(
			[]attribute.KeyValue{
				attribute.String("messaging.system", "kafka"),
				attribute.String("messaging.kafka.client_id", clientID),
			},
		),
	)
	if err != nil {
		return nil, fmt.Errorf("instrument kafka writer: %w", err)
	}
	return writer, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, event domain.OutboxEvent) error {
	msg := kafka.Message{
		Topic: event.Topic,
		Key:   []byte(event.Key),
		Value: event.Payload,
		Headers: []kafka.Header{
			{Key: HeaderEventType, Value: []byte(event.Type)},
			{Key: HeaderEventID, Value: []byte(event.ID)},
		},
		Time: event.CreatedAt,
	}
	if err := p.producer.WriteMessage(ctx, msg); err != nil {
		return fmt.Errorf("publish %s event %s: %w", event.Type, event.ID, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
