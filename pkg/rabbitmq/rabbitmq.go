package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/streadway/amqp"
	"go.uber.org/zap"
)

// Client holds the RabbitMQ connection and a confirm-mode channel bound to one queue.
type Client struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	queue    string
	confirms chan amqp.Confirmation
	// mu serializes publishes so each one is matched with its own confirmation.
	mu sync.Mutex
	// published is the delivery tag of the last message sent on channel.
	published uint64
	logger    *zap.Logger
}

// Config holds RabbitMQ connection details. When DeadLetterQueue is set, rejected
// messages are routed there instead of being dropped.
type Config struct {
	URL             string
	Queue           string
	DeadLetterQueue string
}

// permanentError marks a handler failure that retrying cannot fix.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so that Consume rejects the message without a retry.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// NewClient connects to RabbitMQ, declares the durable queue and puts the channel
// into confirm mode.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.L()
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close() // Close connection if channel creation fails
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	var args amqp.Table
	if cfg.DeadLetterQueue != "" {
		if _, err := ch.QueueDeclare(cfg.DeadLetterQueue, true, false, false, false, nil); err != nil {
			ch.Close()
			conn.Close()
			return nil, fmt.Errorf("failed to declare %s: %w", cfg.DeadLetterQueue, err)
		}
		args = amqp.Table{
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": cfg.DeadLetterQueue,
		}
	}

	_, err = ch.QueueDeclare(
		cfg.Queue, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		args,      // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare %s: %w", cfg.Queue, err)
	}

	if err := ch.Confirm(false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to enable publisher confirms: %w", err)
	}
	confirms := ch.NotifyPublish(make(chan amqp.Confirmation, 8))

	logger.Info("RabbitMQ client connected", zap.String("queue", cfg.Queue), zap.String("dead_letter_queue", cfg.DeadLetterQueue))

	return &Client{
		conn:     conn,
		channel:  ch,
		queue:    cfg.Queue,
		confirms: confirms,
		logger:   logger,
	}, nil
}

// Close closes the RabbitMQ connection and channel.
func (c *Client) Close() error {
	var errs []error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close channel: %w", err))
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close connection: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("multiple errors occurred during RabbitMQ client close: %v", errs)
	}
	return nil
}

// Publish sends a persistent JSON message to the queue and waits until the broker
// confirms it or ctx is done. A confirmation left over from an earlier publish
// whose ctx expired is skipped.
func (c *Client) Publish(ctx context.Context, body []byte) error {
	if c.channel == nil {
		return fmt.Errorf("RabbitMQ channel is not available")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.channel.Publish(
		"",      // exchange: default exchange
		c.queue, // routing key: the queue name
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		})
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	c.published++

	return c.awaitConfirm(ctx, c.published)
}

// awaitConfirm must be called with mu held.
func (c *Client) awaitConfirm(ctx context.Context, tag uint64) error {
	for {
		select {
		case confirm, ok := <-c.confirms:
			if !ok {
				return fmt.Errorf("channel closed before publish was confirmed")
			}
			if confirm.DeliveryTag < tag {
				c.logger.Debug("discarding stale publish confirmation", zap.Uint64("delivery_tag", confirm.DeliveryTag), zap.Bool("ack", confirm.Ack))
				continue
			}
			if !confirm.Ack {
				return fmt.Errorf("broker rejected message %d", confirm.DeliveryTag)
			}
			return nil
		case <-ctx.Done():
			return fmt.Errorf("waiting for publish confirmation: %w", ctx.Err())
		}
	}
}

// Consume starts a goroutine delivering messages from the queue to handler.
// Messages are acked when handler returns nil. A failed message is requeued once;
// on its second failure, or at once for Permanent errors, it is rejected and goes
// to the dead-letter queue if one is configured.
func (c *Client) Consume(handler func(msg amqp.Delivery) error) error {
	if c.channel == nil {
		return fmt.Errorf("RabbitMQ channel is not available for consumption")
	}

	msgs, err := c.channel.Consume(
		c.queue, // queue
		"",      // consumer tag
		false,   // auto-ack
		false,   // exclusive
		false,   // no-local
		false,   // no-wait
		nil,     // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info("waiting for messages", zap.String("queue", c.queue))

	go func() {
		for msg := range msgs {
			c.settle(msg, handler(msg))
		}
		c.logger.Info("consumer stopped", zap.String("queue", c.queue))
	}()

	return nil
}

// settle acks or rejects msg according to the handler result.
func (c *Client) settle(msg amqp.Delivery, err error) {
	if err == nil {
		if ackErr := msg.Ack(false); ackErr != nil {
			c.logger.Error("error acking message", zap.Uint64("delivery_tag", msg.DeliveryTag), zap.Error(ackErr))
		}
		return
	}

	requeue := !IsPermanent(err) && !msg.Redelivered
	c.logger.Error("error processing message",
		zap.Uint64("delivery_tag", msg.DeliveryTag),
		zap.Bool("redelivered", msg.Redelivered),
		zap.Bool("requeue", requeue),
		zap.Error(err))
	if nackErr := msg.Nack(false, requeue); nackErr != nil {
		c.logger.Error("error nacking message", zap.Uint64("delivery_tag", msg.DeliveryTag), zap.Error(nackErr))
	}
}
