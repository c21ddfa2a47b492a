package rabbitmq

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/TP-Master1-GL/terra-notification-service/internal/config"
)

// ErrNotInitialized is returned when the channel is requested before
// Connect has succeeded.
var ErrNotInitialized = errors.New("rabbitmq: channel not initialized, call Connect first")

const (
	connectMaxElapsed = 2 * time.Minute
	connectMaxBackoff = 30 * time.Second
)

// Connection owns the single broker connection and channel for the
// process. No other component dials the broker; everything goes through
// this type. The channel is recreated transparently when the broker
// drops the connection.
type Connection struct {
	cfg    *config.RabbitMQConfig
	logger *zap.Logger

	conn    *amqp.Connection
	channel *amqp.Channel

	stopChan     chan struct{}
	mu           sync.RWMutex
	reconnecting bool
	reconnectMu  sync.Mutex
}

func NewConnection(cfg *config.RabbitMQConfig, logger *zap.Logger) *Connection {
	return &Connection{
		cfg:      cfg,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Connect establishes the initial connection, retrying with capped
// exponential backoff. Exhausting the retry budget is fatal to the
// caller: the service has no function without its broker.
func (c *Connection) Connect() error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = time.Second
	policy.MaxInterval = connectMaxBackoff
	policy.MaxElapsedTime = connectMaxElapsed

	attempt := 0
	err := backoff.RetryNotify(
		func() error {
			attempt++
			return c.dial()
		},
		policy,
		func(err error, next time.Duration) {
			c.logger.Warn("RabbitMQ connection failed, retrying",
				zap.Int("attempt", attempt),
				zap.Duration("next_attempt_in", next),
				zap.Error(err),
			)
		},
	)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", attempt, err)
	}

	c.logger.Info("Connected to RabbitMQ",
		zap.String("url", c.cfg.URL),
		zap.Int("attempts", attempt),
	)

	go c.monitor()
	return nil
}

// dial performs one connection attempt, replacing any half-open state
func (c *Connection) dial() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.channel != nil && !c.channel.IsClosed() {
		c.channel.Close()
	}
	if c.conn != nil && !c.conn.IsClosed() {
		c.conn.Close()
	}

	amqpConfig := amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Properties: amqp.Table{
			"connection_name": "terra-notification-service",
		},
	}

	conn, err := amqp.DialConfig(c.cfg.URL, amqpConfig)
	if err != nil {
		return fmt.Errorf("failed to dial RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	c.conn = conn
	c.channel = channel
	return nil
}

// monitor watches for broker-initiated closes and reconnects
func (c *Connection) monitor() {
	for {
		c.mu.RLock()
		if c.conn == nil || c.channel == nil {
			c.mu.RUnlock()
			return
		}
		connClose := c.conn.NotifyClose(make(chan *amqp.Error, 1))
		channelClose := c.channel.NotifyClose(make(chan *amqp.Error, 1))
		c.mu.RUnlock()

		select {
		case <-c.stopChan:
			return
		case amqpErr := <-connClose:
			if amqpErr == nil {
				return
			}
			c.logger.Error("RabbitMQ connection closed, reconnecting",
				zap.String("reason", amqpErr.Reason),
			)
			c.reconnect()
		case amqpErr := <-channelClose:
			if amqpErr == nil {
				return
			}
			c.logger.Error("RabbitMQ channel closed, reconnecting",
				zap.String("reason", amqpErr.Reason),
			)
			c.reconnect()
		}
	}
}

// reconnect retries dial until it succeeds or the connection is closed
func (c *Connection) reconnect() {
	c.reconnectMu.Lock()
	if c.reconnecting {
		c.reconnectMu.Unlock()
		return
	}
	c.reconnecting = true
	c.reconnectMu.Unlock()

	defer func() {
		c.reconnectMu.Lock()
		c.reconnecting = false
		c.reconnectMu.Unlock()
	}()

	delay := time.Second
	for attempt := 1; ; attempt++ {
		select {
		case <-c.stopChan:
			return
		default:
		}

		if err := c.dial(); err != nil {
			c.logger.Warn("RabbitMQ reconnect failed",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", delay),
				zap.Error(err),
			)
			time.Sleep(delay)
			delay *= 2
			if delay > connectMaxBackoff {
				delay = connectMaxBackoff
			}
			continue
		}

		c.logger.Info("Reconnected to RabbitMQ", zap.Int("attempt", attempt))
		return
	}
}

// Channel returns the shared channel, or ErrNotInitialized before Connect
func (c *Connection) Channel() (*amqp.Channel, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.channel == nil {
		return nil, ErrNotInitialized
	}
	return c.channel, nil
}

// Close shuts the channel and connection down. Best effort: used during
// graceful shutdown, so errors are swallowed.
func (c *Connection) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.stopChan:
	default:
		close(c.stopChan)
	}

	if c.channel != nil {
		_ = c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
		c.logger.Info("RabbitMQ connection closed")
	}
}

// Publish sends a persistent JSON message to the exchange
func (c *Connection) Publish(exchange, routingKey string, body []byte) error {
	ch, err := c.Channel()
	if err != nil {
		return err
	}

	err = ch.Publish(
		exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

// Consume starts a manual-ack consumer on the queue
func (c *Connection) Consume(queue, consumerTag string) (<-chan amqp.Delivery, error) {
	ch, err := c.Channel()
	if err != nil {
		return nil, err
	}

	deliveries, err := ch.Consume(
		queue,
		consumerTag,
		false, // autoAck: acknowledgment is always explicit
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register consumer: %w", err)
	}
	return deliveries, nil
}

// Get synchronously pulls at most one message from the queue
// (basic.get). Used by the administrative consume endpoint.
func (c *Connection) Get(queue string) (amqp.Delivery, bool, error) {
	ch, err := c.Channel()
	if err != nil {
		return amqp.Delivery{}, false, err
	}

	msg, ok, err := ch.Get(queue, false)
	if err != nil {
		return amqp.Delivery{}, false, fmt.Errorf("failed to get message from queue %s: %w", queue, err)
	}
	return msg, ok, nil
}

// QueueInspect reports the queue's message and consumer counts
func (c *Connection) QueueInspect(queue string) (amqp.Queue, error) {
	ch, err := c.Channel()
	if err != nil {
		return amqp.Queue{}, err
	}

	state, err := ch.QueueInspect(queue)
	if err != nil {
		return amqp.Queue{}, fmt.Errorf("failed to inspect queue %s: %w", queue, err)
	}
	return state, nil
}

// SetQoS sets the channel prefetch count
func (c *Connection) SetQoS(prefetchCount int) error {
	ch, err := c.Channel()
	if err != nil {
		return err
	}

	if err := ch.Qos(prefetchCount, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}
	return nil
}

// IsHealthy reports whether both the connection and channel are open
func (c *Connection) IsHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil && !c.conn.IsClosed() && c.channel != nil && !c.channel.IsClosed()
}
