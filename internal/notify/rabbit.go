package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"storefront/internal/logging"
	"storefront/internal/metrics"
	"storefront/internal/models"
)

// Topology names the exchange, queue and binding used for order events.
type Topology struct {
	Exchange   string
	Queue      string
	RoutingKey string
}

// Declare sets up a durable topic exchange and a durable queue bound to it.
func (t Topology) Declare(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(t.Exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	q, err := ch.QueueDeclare(t.Queue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, t.RoutingKey, t.Exchange, false, nil); err != nil {
		return fmt.Errorf("queue bind: %w", err)
	}
	return nil
}

// RabbitPublisher is a Sender that publishes the order as JSON instead of
// delivering it. A Consumer on the other side of the queue does the delivery.
type RabbitPublisher struct {
	mu       sync.Mutex
	ch       *amqp.Channel
	topology Topology
}

func NewRabbitPublisher(ch *amqp.Channel, topology Topology) (*RabbitPublisher, error) {
	if err := topology.Declare(ch); err != nil {
		return nil, err
	}
	if err := ch.Confirm(false); err != nil {
		return nil, fmt.Errorf("enable confirm mode: %w", err)
	}
	return &RabbitPublisher{ch: ch, topology: topology}, nil
}

func (p *RabbitPublisher) Send(ctx context.Context, order models.Order) error {
	body, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("marshal order: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	confirm, err := p.ch.PublishWithDeferredConfirmWithContext(ctx, p.topology.Exchange, p.topology.RoutingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    order.OrderNumber,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("publish confirm: %w", err)
	}
	if !acked {
		return errors.New("publish nacked by broker")
	}
	return nil
}

// Handler processes a single delivery. Returning nil acks it.
type Handler interface {
	Handle(ctx context.Context, d amqp.Delivery) error
}

// JSONHandler decodes the delivery body into T before calling HandleFunc.
type JSONHandler[T any] struct {
	HandleFunc func(ctx context.Context, msg T) error
}

func (h JSONHandler[T]) Handle(ctx context.Context, d amqp.Delivery) error {
	var v T
	if err := json.Unmarshal(d.Body, &v); err != nil {
		return err
	}
	return h.HandleFunc(ctx, v)
}

// Consumer drains the order queue into a Sender. Failed deliveries are nacked
// without requeue: notifications are never retried.
type Consumer struct {
	ch          *amqp.Channel
	queue       string
	tag         string
	handler     Handler
	prefetch    int
	callTimeout time.Duration
	log         *slog.Logger
}

func NewConsumer(ch *amqp.Channel, queue string, sender Sender) *Consumer {
	return &Consumer{
		ch:          ch,
		queue:       queue,
		tag:         "c_" + queue,
		handler:     JSONHandler[models.Order]{HandleFunc: sender.Send},
		prefetch:    10,
		callTimeout: 15 * time.Second,
		log:         logging.New("notify").With("queue", queue),
	}
}

// Run consumes until ctx is canceled or the channel closes.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.ch.Qos(c.prefetch, 0, false); err != nil {
		return err
	}
	deliveries, err := c.ch.Consume(c.queue, c.tag, false, false, false, false, nil)
	if err != nil {
		return err
	}

	c.log.Info("consumer started")
	for {
		select {
		case <-ctx.Done():
			_ = c.ch.Cancel(c.tag, false)
			c.log.Info("consumer stopped")
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			c.process(ctx, d)
		}
	}
}

func (c *Consumer) process(ctx context.Context, d amqp.Delivery) {
	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	err := c.handler.Handle(callCtx, d)
	cancel()

	if err != nil {
		metrics.NotificationsFailed.WithLabelValues("rabbitmq").Inc()
		c.log.Error("notification delivery failed", "message_id", d.MessageId, "err", err)
		_ = d.Nack(false, false)
		return
	}
	_ = d.Ack(false)
}
