// Package consumer owns the broker connection lifecycle: one connection
// per running daemon, one channel per enabled queue, one worker goroutine
// per in-flight message. All acknowledgments funnel through a single
// dispatch goroutine because the channel objects must not be driven
// concurrently from worker goroutines.
package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"jellyhook/internal/config"
	"jellyhook/internal/event"
	"jellyhook/internal/journal"
	"jellyhook/internal/logging"
)

// Processor runs the job pipeline for one delivery. The return value is
// the acknowledgment decision.
type Processor interface {
	Process(ctx context.Context, webhookID string, body []byte) bool
}

// Recorder persists processed-event history. Recording failures are
// logged and never influence acknowledgment.
type Recorder interface {
	Record(ctx context.Context, entry journal.Entry) error
}

// Channel is the subset of the AMQP channel API the consumer uses.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	Qos(prefetchCount, prefetchSize int, global bool) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Ack(tag uint64, multiple bool) error
	Nack(tag uint64, multiple, requeue bool) error
	Cancel(consumer string, noWait bool) error
	Close() error
}

// Connection is the subset of the AMQP connection API the consumer uses.
type Connection interface {
	Channel() (Channel, error)
	NotifyClose(receiver chan *amqp.Error) chan *amqp.Error
	Close() error
}

// Dialer opens a broker connection.
type Dialer func(url string) (Connection, error)

// Dial is the production dialer.
func Dial(url string) (Connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	return &amqpConnection{conn: conn}, nil
}

type amqpConnection struct {
	conn *amqp.Connection
}

func (c *amqpConnection) Channel() (Channel, error) {
	channel, err := c.conn.Channel()
	if err != nil {
		return nil, err
	}
	return channel, nil
}

func (c *amqpConnection) NotifyClose(receiver chan *amqp.Error) chan *amqp.Error {
	return c.conn.NotifyClose(receiver)
}

func (c *amqpConnection) Close() error {
	return c.conn.Close()
}

// ackRequest is one acknowledgment decision handed to the dispatch
// goroutine, bound to the channel the message was delivered on.
type ackRequest struct {
	channel Channel
	tag     uint64
	ack     bool
}

// Consumer connects the configured queues to the orchestrator.
type Consumer struct {
	cfg       *config.Config
	webhooks  *config.WebhookConfig
	processor Processor
	recorder  Recorder
	dial      Dialer
	log       *slog.Logger
}

// New constructs a consumer. A nil recorder disables history; a nil
// dialer selects the production broker dialer.
func New(cfg *config.Config, webhooks *config.WebhookConfig, processor Processor, recorder Recorder, dial Dialer, logger *slog.Logger) *Consumer {
	if dial == nil {
		dial = Dial
	}
	return &Consumer{
		cfg:       cfg,
		webhooks:  webhooks,
		processor: processor,
		recorder:  recorder,
		dial:      dial,
		log:       logger.With(logging.FieldComponent, "consumer"),
	}
}

// Run connects and consumes until the context is cancelled. Connection
// loss triggers a reconnect-and-redeclare cycle after a fixed delay,
// indefinitely.
func (c *Consumer) Run(ctx context.Context) error {
	delay := time.Duration(c.cfg.Broker.ReconnectDelaySeconds) * time.Second
	for {
		if err := c.serve(ctx); err != nil {
			c.log.Error("broker session ended", "error", err)
		}
		select {
		case <-ctx.Done():
			c.log.Info("consumer stopped")
			return ctx.Err()
		case <-time.After(delay):
			c.log.Info("reconnecting to broker", "delay", delay)
		}
	}
}

// serve runs one broker session: connect, declare, consume, and tear
// down on cancellation or connection loss.
func (c *Consumer) serve(ctx context.Context) error {
	enabled := c.webhooks.Enabled()
	if len(enabled) == 0 {
		c.log.Warn("no enabled webhooks configured, consumer is idle")
	}

	conn, err := c.dial(c.cfg.Broker.URL)
	if err != nil {
		return err
	}
	defer conn.Close()
	closed := conn.NotifyClose(make(chan *amqp.Error, 1))
	c.log.Info("connected to broker", "queues", len(enabled))

	acks := make(chan ackRequest)
	ackDone := make(chan struct{})
	go c.dispatchAcks(acks, ackDone)

	var workers sync.WaitGroup
	// teardown joins in-flight workers before releasing the ack
	// dispatcher; a timed-out join leaves the dispatcher draining so
	// stragglers never block on a closed channel.
	teardown := func() {
		if c.joinWorkers(&workers) {
			close(acks)
			<-ackDone
		}
	}

	type boundChannel struct {
		channel Channel
		tag     string
	}
	var channels []boundChannel
	// cancelAll stops delivery on every started consumer so no new
	// workers spawn while teardown joins the existing ones.
	cancelAll := func() {
		for _, bound := range channels {
			if err := bound.channel.Cancel(bound.tag, false); err != nil {
				c.log.Warn("cancel consumer failed", "error", err)
			}
		}
	}

	for webhookID, webhook := range enabled {
		channel, err := conn.Channel()
		if err != nil {
			cancelAll()
			teardown()
			return fmt.Errorf("open channel for %q: %w", webhookID, err)
		}
		if _, err := channel.QueueDeclare(webhook.Queue, true, false, false, false, nil); err != nil {
			cancelAll()
			teardown()
			return fmt.Errorf("declare queue %q: %w", webhook.Queue, err)
		}
		if err := channel.Qos(c.cfg.Broker.Prefetch, 0, false); err != nil {
			cancelAll()
			teardown()
			return fmt.Errorf("set prefetch on %q: %w", webhook.Queue, err)
		}

		consumerTag := "jellyhook-" + webhookID
		deliveries, err := channel.Consume(webhook.Queue, consumerTag, false, false, false, false, nil)
		if err != nil {
			cancelAll()
			teardown()
			return fmt.Errorf("consume queue %q: %w", webhook.Queue, err)
		}
		channels = append(channels, boundChannel{channel: channel, tag: consumerTag})

		go c.consumeQueue(ctx, webhookID, webhook.Queue, channel, deliveries, acks, &workers)
		c.log.Info("consuming queue",
			logging.FieldWebhookID, webhookID,
			logging.FieldQueue, webhook.Queue)
	}

	var sessionErr error
	select {
	case <-ctx.Done():
		c.log.Info("shutting down broker session")
		cancelAll()
	case amqpErr := <-closed:
		if amqpErr != nil {
			sessionErr = fmt.Errorf("connection lost: %s", amqpErr.Reason)
		} else {
			sessionErr = fmt.Errorf("connection closed")
		}
	}

	teardown()
	return sessionErr
}

// joinWorkers waits for in-flight messages, bounded by the configured
// shutdown timeout. It reports whether every worker finished.
func (c *Consumer) joinWorkers(workers *sync.WaitGroup) bool {
	done := make(chan struct{})
	go func() {
		workers.Wait()
		close(done)
	}()

	timeout := time.Duration(c.cfg.Workflow.ShutdownTimeoutSeconds) * time.Second
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		c.log.Warn("shutdown timeout reached with jobs still in flight", "timeout", timeout)
		return false
	}
}

// dispatchAcks is the only goroutine that touches the channels after
// consumption starts. Failures are logged; an unacknowledged message is
// redelivered by the broker after the connection drops.
func (c *Consumer) dispatchAcks(acks <-chan ackRequest, done chan<- struct{}) {
	defer close(done)
	for req := range acks {
		var err error
		if req.ack {
			err = req.channel.Ack(req.tag, false)
		} else {
			// Never requeue: a poison message would otherwise loop forever.
			err = req.channel.Nack(req.tag, false, false)
		}
		if err != nil {
			c.log.Error("acknowledgment failed",
				logging.FieldDeliveryTag, req.tag, "ack", req.ack, "error", err)
		}
	}
}

// consumeQueue drains one queue's delivery stream, spawning a worker per
// message. Concurrency per queue is bounded by the broker's prefetch
// credit, not by this loop.
func (c *Consumer) consumeQueue(ctx context.Context, webhookID, queue string, channel Channel, deliveries <-chan amqp.Delivery, acks chan<- ackRequest, workers *sync.WaitGroup) {
	for delivery := range deliveries {
		workers.Add(1)
		go c.handle(ctx, webhookID, queue, channel, delivery, acks, workers)
	}
	c.log.Info("delivery stream closed",
		logging.FieldWebhookID, webhookID,
		logging.FieldQueue, queue)
}

// handle processes one delivery and hands the acknowledgment decision to
// the dispatch goroutine.
func (c *Consumer) handle(ctx context.Context, webhookID, queue string, channel Channel, delivery amqp.Delivery, acks chan<- ackRequest, workers *sync.WaitGroup) {
	defer workers.Done()

	correlationID := uuid.NewString()
	log := c.log.With(
		logging.FieldWebhookID, webhookID,
		logging.FieldQueue, queue,
		logging.FieldDeliveryTag, delivery.DeliveryTag,
		logging.FieldCorrelationID, correlationID,
	)
	log.Info("processing message", "bytes", len(delivery.Body))

	// In-flight jobs get the graceful-shutdown window rather than an
	// immediate abort; joinWorkers bounds how long that window lasts.
	ctx = context.WithoutCancel(ctx)

	start := time.Now()
	completed := c.processor.Process(ctx, webhookID, delivery.Body)
	duration := time.Since(start)

	if completed {
		log.Info("message processed", "duration", duration)
	} else {
		log.Error("message processing failed, dropping", "duration", duration)
	}

	c.record(ctx, log, journal.Entry{
		WebhookID:     webhookID,
		Queue:         queue,
		CorrelationID: correlationID,
		Completed:     completed,
		Duration:      duration,
		ReceivedAt:    start,
	}, delivery.Body)

	acks <- ackRequest{channel: channel, tag: delivery.DeliveryTag, ack: completed}
}

func (c *Consumer) record(ctx context.Context, log *slog.Logger, entry journal.Entry, body []byte) {
	if c.recorder == nil {
		return
	}
	if payload, err := event.Decode(body); err == nil {
		flat := payload.Flattened()
		entry.ItemID = flat.ItemID()
		entry.ItemName = flat.Name()
	}
	if err := c.recorder.Record(ctx, entry); err != nil {
		log.Warn("journal record failed", "error", err)
	}
}
