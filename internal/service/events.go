package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/jonathantombe/MisakGuambShop-Backend/internal/models"
	"github.com/jonathantombe/MisakGuambShop-Backend/pkg/logger"
)

// PaymentEvent is published on every reconciled status transition so the
// notification side can mail the buyer without the payment path depending on
// email delivery.
type PaymentEvent struct {
	PaymentID     uint64               `json:"payment_id"`
	OrderID       uint64               `json:"order_id"`
	ReferenceCode string               `json:"reference_code"`
	Status        models.PaymentStatus `json:"status"`
	Amount        string               `json:"amount"`
	Currency      string               `json:"currency"`
	OccurredAt    time.Time            `json:"occurred_at"`
}

// EventPublisher is the notifier collaborator.
type EventPublisher interface {
	PublishStatusChange(ctx context.Context, event PaymentEvent) error
}

// RabbitPublisher publishes payment events to a topic exchange with routing
// keys like payment.completed.
type RabbitPublisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

func NewRabbitPublisher(url, exchange string) (*RabbitPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}
	return &RabbitPublisher{conn: conn, ch: ch, exchange: exchange}, nil
}

func (p *RabbitPublisher) PublishStatusChange(ctx context.Context, event PaymentEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	routingKey := "payment." + strings.ToLower(string(event.Status))
	return p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
}

func (p *RabbitPublisher) Close() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}

// LogPublisher is the fallback when no broker is configured.
type LogPublisher struct {
	Logger *logger.Logger
}

func (p *LogPublisher) PublishStatusChange(_ context.Context, event PaymentEvent) error {
	p.Logger.WithReference(event.ReferenceCode).
		WithField("status", event.Status).
		Info("payment status changed")
	return nil
}
