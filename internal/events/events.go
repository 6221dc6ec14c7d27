// Package events publishes order lifecycle events after the change that
// produced them has been committed.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Keoroanthony/shopnow-api/internal/models"
)

type Type string

const (
	OrderCreated       Type = "order.created"
	OrderStatusChanged Type = "order.status_changed"
	OrderCreditDecided Type = "order.credit_decided"
)

type Event struct {
	ID             string              `json:"id"`
	Type           Type                `json:"type"`
	OrderID        uint                `json:"order_id"`
	UserID         uint                `json:"user_id"`
	ShopID         *uint               `json:"shop_id,omitempty"`
	Status         models.OrderStatus  `json:"status"`
	PreviousStatus models.OrderStatus  `json:"previous_status,omitempty"`
	CreditStatus   models.CreditStatus `json:"credit_status"`
	TotalPrice     decimal.Decimal     `json:"total_price"`
	ActorID        uint                `json:"actor_id,omitempty"`
	OccurredAt     time.Time           `json:"occurred_at"`
}

// New builds an event describing the current state of order.
func New(t Type, order *models.Order) Event {
	return Event{
		ID:           uuid.NewString(),
		Type:         t,
		OrderID:      order.ID,
		UserID:       order.UserID,
		ShopID:       order.ShopID,
		Status:       order.Status,
		CreditStatus: order.CreditStatus,
		TotalPrice:   order.TotalPrice,
		OccurredAt:   time.Now().UTC(),
	}
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events to one topic keyed by order id, so the
// events of an order stay in order on a single partition.
type KafkaPublisher struct {
	writer messageWriter
	log    *zap.Logger
}

func NewKafkaPublisher(brokers []string, topic string, log *zap.Logger) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
	}
	return &KafkaPublisher{writer: w, log: log}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", e.Type, err)
	}
	msg := kafka.Message{
		Key:   []byte(strconv.FormatUint(uint64(e.OrderID), 10)),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(e.Type)},
			{Key: "event_id", Value: []byte(e.ID)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s event for order %d: %w", e.Type, e.OrderID, err)
	}
	p.log.Debug("event published", zap.String("type", string(e.Type)), zap.Uint("order_id", e.OrderID))
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Nop drops every event. It is used when no brokers are configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
