package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"storefront/internal/logging"
	"storefront/internal/metrics"
	"storefront/internal/models"
)

// AsyncDispatcher hands orders to a Sender through a bounded queue drained by
// a fixed set of workers. When the queue is full the order is dropped.
type AsyncDispatcher struct {
	sender    Sender
	transport string
	queue     chan models.Order
	workers   int
	timeout   time.Duration
	log       *slog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

type AsyncOption func(*AsyncDispatcher)

func WithWorkers(n int) AsyncOption {
	return func(d *AsyncDispatcher) {
		if n > 0 {
			d.workers = n
		}
	}
}

func WithSendTimeout(t time.Duration) AsyncOption {
	return func(d *AsyncDispatcher) { d.timeout = t }
}

// WithTransport names the sender in logs and metrics.
func WithTransport(name string) AsyncOption {
	return func(d *AsyncDispatcher) { d.transport = name }
}

func NewAsyncDispatcher(sender Sender, queueSize int, opts ...AsyncOption) *AsyncDispatcher {
	if queueSize < 1 {
		queueSize = 1
	}
	d := &AsyncDispatcher{
		sender:    sender,
		transport: "telegram",
		queue:     make(chan models.Order, queueSize),
		workers:   1,
		timeout:   15 * time.Second,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.log = logging.New("notify").With("transport", d.transport)

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.run()
	}
	return d
}

func (d *AsyncDispatcher) Dispatch(order models.Order) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.drop(order, "dispatcher closed")
		return
	}
	select {
	case d.queue <- order:
	default:
		d.drop(order, "queue full")
	}
}

// Close stops accepting orders and waits for queued ones to be sent, or for
// ctx to expire.
func (d *AsyncDispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *AsyncDispatcher) run() {
	defer d.wg.Done()
	for order := range d.queue {
		d.send(order)
	}
}

func (d *AsyncDispatcher) send(order models.Order) {
	defer func() {
		if r := recover(); r != nil {
			metrics.NotificationsFailed.WithLabelValues(d.transport).Inc()
			d.log.Error("notification sender panicked", "order_number", order.OrderNumber, "panic", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := d.sender.Send(ctx, order); err != nil {
		metrics.NotificationsFailed.WithLabelValues(d.transport).Inc()
		d.log.Error("notification failed", "order_number", order.OrderNumber, "err", err)
		return
	}
	d.log.Debug("notification sent", "order_number", order.OrderNumber)
}

func (d *AsyncDispatcher) drop(order models.Order, reason string) {
	metrics.NotificationsDropped.Inc()
	d.log.Error("notification dropped", "order_number", order.OrderNumber, "reason", reason)
}
