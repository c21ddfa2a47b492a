package consumer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/TP-Master1-GL/terra-notification-service/internal/config"
	"github.com/TP-Master1-GL/terra-notification-service/internal/events"
	"github.com/TP-Master1-GL/terra-notification-service/internal/models"
	"github.com/TP-Master1-GL/terra-notification-service/internal/notification"
)

const (
	exchangeType = "topic"
	routingKey   = "user.created"

	// prefetch of 1 keeps a single message in flight: processing is
	// serialized per queue, ack/nack before the next draw
	prefetchCount = 1

	resumeRetryWait = 2 * time.Second
	resumeMaxWait   = 30 * time.Second
)

// routingKeyEventType is the event type assumed when the envelope
// carries no explicit discriminator; it follows from the binding key.
const routingKeyEventType = models.EventUserRegistered

// Broker is the slice of the connection contract the consumer uses.
// Satisfied by *rabbitmq.Connection.
type Broker interface {
	Channel() (*amqp.Channel, error)
	SetQoS(prefetchCount int) error
	Consume(queue, consumerTag string) (<-chan amqp.Delivery, error)
	Get(queue string) (amqp.Delivery, bool, error)
	QueueInspect(queue string) (amqp.Queue, error)
}

// Consumer binds the queue to the exchange and drives the per-message
// pipeline: decode, normalize, dispatch by type, ack or reject.
type Consumer struct {
	cfg         *config.RabbitMQConfig
	conn        Broker
	registry    *events.Registry
	logger      *zap.Logger
	ctx         context.Context
	cancel      context.CancelFunc
	consumerTag string
	started     bool
	resumeWait  time.Duration
}

func New(cfg *config.RabbitMQConfig, conn Broker, registry *events.Registry, logger *zap.Logger) *Consumer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Consumer{
		cfg:         cfg,
		conn:        conn,
		registry:    registry,
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
		consumerTag: fmt.Sprintf("notification-consumer-%s", uuid.NewString()[:8]),
		resumeWait:  resumeRetryWait,
	}
}

// Start declares the durable topic exchange, the durable queue and the
// binding, then begins consuming with explicit acknowledgment.
func (c *Consumer) Start() error {
	if err := c.declare(); err != nil {
		return err
	}

	if err := c.conn.SetQoS(prefetchCount); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	deliveries, err := c.conn.Consume(c.cfg.Queue, c.consumerTag)
	if err != nil {
		return fmt.Errorf("failed to start consuming from queue %s: %w", c.cfg.Queue, err)
	}

	go c.run(deliveries)

	c.started = true
	c.logger.Info("Consumer started",
		zap.String("queue", c.cfg.Queue),
		zap.String("exchange", c.cfg.Exchange),
		zap.String("routing_key", routingKey),
		zap.String("consumer_tag", c.consumerTag),
	)
	return nil
}

func (c *Consumer) declare() error {
	ch, err := c.conn.Channel()
	if err != nil {
		return err
	}

	if err := ch.ExchangeDeclare(
		c.cfg.Exchange,
		exchangeType,
		true,  // durable
		false, // autoDelete
		false, // internal
		false, // noWait
		nil,
	); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", c.cfg.Exchange, err)
	}

	if _, err := ch.QueueDeclare(
		c.cfg.Queue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", c.cfg.Queue, err)
	}

	if err := ch.QueueBind(c.cfg.Queue, routingKey, c.cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue %s to exchange %s: %w", c.cfg.Queue, c.cfg.Exchange, err)
	}

	return nil
}

// Stop cancels the consumer and lets the in-flight message finish
func (c *Consumer) Stop() {
	c.logger.Info("Stopping consumer", zap.String("consumer_tag", c.consumerTag))
	c.cancel()

	if ch, err := c.conn.Channel(); err == nil {
		if err := ch.Cancel(c.consumerTag, false); err != nil {
			c.logger.Error("Failed to cancel consumer",
				zap.String("consumer_tag", c.consumerTag),
				zap.Error(err),
			)
		}
	}
}

func (c *Consumer) run(deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-c.ctx.Done():
			c.logger.Info("Consumer context cancelled, stopping message loop")
			return
		case msg, ok := <-deliveries:
			if !ok {
				c.logger.Warn("Delivery channel closed, waiting for reconnection",
					zap.String("queue", c.cfg.Queue),
				)
				if c.started {
					c.resumeLoop()
				}
				return
			}
			c.handleDelivery(msg)
		}
	}
}

// resumeLoop re-registers the consumer after the delivery channel
// closes. The connection reconnects on its own schedule, so a single
// attempt is not enough: keep retrying with capped backoff until the
// subscription takes or the consumer is stopped.
func (c *Consumer) resumeLoop() {
	wait := c.resumeWait
	for attempt := 1; ; attempt++ {
		select {
		case <-c.ctx.Done():
			return
		case <-time.After(wait):
		}

		if err := c.resume(); err != nil {
			c.logger.Error("Failed to resume consuming, retrying",
				zap.String("queue", c.cfg.Queue),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", wait),
				zap.Error(err),
			)
			wait *= 2
			if wait > resumeMaxWait {
				wait = resumeMaxWait
			}
			continue
		}

		c.logger.Info("Consumer resumed",
			zap.String("queue", c.cfg.Queue),
			zap.Int("attempt", attempt),
		)
		return
	}
}

func (c *Consumer) resume() error {
	if err := c.conn.SetQoS(prefetchCount); err != nil {
		return err
	}
	deliveries, err := c.conn.Consume(c.cfg.Queue, c.consumerTag)
	if err != nil {
		return err
	}
	go c.run(deliveries)
	return nil
}

// resolveEventType maps the envelope discriminator to a known event
// type, defaulting to the routing-key-derived type when absent.
func resolveEventType(env *models.Envelope) (models.EventType, error) {
	if env.Type == "" {
		return routingKeyEventType, nil
	}
	return models.ParseEventType(string(env.Type))
}

// handleDelivery applies the acknowledgment policy:
//   - undecodable body: reject without requeue (poison message, the
//     queue must not lock up on it)
//   - unknown event type: ack and warn (never requeued indefinitely)
//   - persistence failure: requeue once on first delivery, reject on
//     redelivery (transient errors get one retry, then dead-letter)
//   - any other handler failure: reject without requeue
func (c *Consumer) handleDelivery(msg amqp.Delivery) {
	c.logger.Debug("Received message",
		zap.String("routing_key", msg.RoutingKey),
		zap.Uint64("delivery_tag", msg.DeliveryTag),
	)

	env, err := models.DecodeEnvelope(msg.Body)
	if err != nil {
		c.logger.Error("Failed to decode message, rejecting",
			zap.Uint64("delivery_tag", msg.DeliveryTag),
			zap.ByteString("body", msg.Body),
			zap.Error(err),
		)
		c.reject(msg, false)
		return
	}

	eventType, err := resolveEventType(env)
	if err != nil {
		c.logger.Warn("Unknown event type, acknowledging",
			zap.String("event_type", string(env.Type)),
			zap.Uint64("delivery_tag", msg.DeliveryTag),
			zap.Error(err),
		)
		c.ack(msg)
		return
	}

	handler, ok := c.registry.Lookup(eventType)
	if !ok {
		c.logger.Warn("No handler for event type, acknowledging",
			zap.String("event_type", string(eventType)),
			zap.Uint64("delivery_tag", msg.DeliveryTag),
		)
		c.ack(msg)
		return
	}

	// Deliberately not c.ctx: an in-flight message runs to completion
	// (ack or nack) even when Stop cancels the consume loop.
	if err := handler.Handle(context.Background(), &env.Payload); err != nil {
		var persistenceErr *notification.PersistenceError
		requeue := errors.As(err, &persistenceErr) && !msg.Redelivered

		c.logger.Error("Handler failed",
			zap.String("event_type", string(eventType)),
			zap.Uint64("delivery_tag", msg.DeliveryTag),
			zap.Bool("requeue", requeue),
			zap.ByteString("body", msg.Body),
			zap.Error(err),
		)
		c.reject(msg, requeue)
		return
	}

	c.ack(msg)
	c.logger.Info("Message processed",
		zap.String("event_type", string(eventType)),
		zap.Uint64("delivery_tag", msg.DeliveryTag),
	)
}

// ProcessOne pulls at most one message via basic.get and runs it through
// the same pipeline as the consume loop. Administrative escape hatch
// behind POST /api/consume/user-created; not the primary consumption
// path.
func (c *Consumer) ProcessOne(ctx context.Context) (*models.Payload, bool, error) {
	msg, ok, err := c.conn.Get(c.cfg.Queue)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	env, err := models.DecodeEnvelope(msg.Body)
	if err != nil {
		c.reject(msg, false)
		return nil, true, err
	}

	eventType, err := resolveEventType(env)
	if err != nil {
		c.ack(msg)
		return &env.Payload, true, err
	}

	handler, ok := c.registry.Lookup(eventType)
	if !ok {
		c.ack(msg)
		return &env.Payload, true, fmt.Errorf("no handler for event type %s", eventType)
	}

	if err := handler.Handle(ctx, &env.Payload); err != nil {
		c.reject(msg, false)
		return &env.Payload, true, err
	}

	c.ack(msg)
	return &env.Payload, true, nil
}

// Peek inspects the queued messages without consuming: each one is read
// and immediately requeued. A requeued message lands back at the queue
// head, so the fetch count is fixed up front from the queue depth to
// keep the loop from re-reading what it just put back. Administrative
// inspection only.
func (c *Consumer) Peek() ([]*models.Payload, error) {
	state, err := c.conn.QueueInspect(c.cfg.Queue)
	if err != nil {
		return nil, err
	}

	payloads := make([]*models.Payload, 0, state.Messages)
	for i := 0; i < state.Messages; i++ {
		msg, ok, err := c.conn.Get(c.cfg.Queue)
		if err != nil {
			return payloads, err
		}
		if !ok {
			return payloads, nil
		}

		if env, err := models.DecodeEnvelope(msg.Body); err == nil {
			payloads = append(payloads, &env.Payload)
		} else {
			c.logger.Warn("Undecodable message during peek",
				zap.Uint64("delivery_tag", msg.DeliveryTag),
				zap.Error(err),
			)
		}
		c.reject(msg, true)
	}
	return payloads, nil
}

func (c *Consumer) ack(msg amqp.Delivery) {
	if err := msg.Ack(false); err != nil {
		c.logger.Error("Failed to ack message",
			zap.Uint64("delivery_tag", msg.DeliveryTag),
			zap.Error(err),
		)
	}
}

func (c *Consumer) reject(msg amqp.Delivery, requeue bool) {
	if err := msg.Nack(false, requeue); err != nil {
		c.logger.Error("Failed to nack message",
			zap.Uint64("delivery_tag", msg.DeliveryTag),
			zap.Error(err),
		)
	}
}
