// Package events publishes storefront domain events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/pkg/logger"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const DefaultTopic = "storefront-orders"

type OrderSubmitted struct {
	EventID    string             `json:"event_id"`
	OrderID    string             `json:"order_id"`
	UserID     string             `json:"user_id,omitempty"`
	Guest      bool               `json:"guest"`
	Email      string             `json:"email"`
	Items      []domain.OrderItem `json:"items"`
	TotalPrice decimal.Decimal    `json:"total_price"`
	OccurredAt time.Time          `json:"occurred_at"`
}

type Publisher interface {
	PublishOrderSubmitted(ctx context.Context, e OrderSubmitted) error
	Close() error
}

// messageWriter is the part of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer  messageWriter
	timeout time.Duration
	log     *logger.Logger
}

func NewKafkaPublisher(topic string, log *logger.Logger, brokers ...string) *KafkaPublisher {
	if topic == "" {
		topic = DefaultTopic
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	return &KafkaPublisher{writer: w, timeout: 5 * time.Second, log: log.Named("events")}
}

// PublishOrderSubmitted writes the event keyed by order id. Missing event id
// and timestamp are filled in.
func (p *KafkaPublisher) PublishOrderSubmitted(ctx context.Context, e OrderSubmitted) error {
	if e.EventID == "" {
		e.EventID = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}

	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal order_submitted: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.OrderID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("order_submitted")},
			{Key: "event_id", Value: []byte(e.EventID)},
		},
	})
	if err != nil {
		return fmt.Errorf("publish order_submitted %s: %w", e.OrderID, err)
	}
	p.log.Debug(ctx, "order_submitted published", zap.String("order_id", e.OrderID), zap.String("event_id", e.EventID))
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Nop drops every event. Used when no brokers are configured.
type Nop struct{}

func (Nop) PublishOrderSubmitted(context.Context, OrderSubmitted) error { return nil }
func (Nop) Close() error                                              { return nil }
