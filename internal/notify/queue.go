package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"authsvc/pkg/rabbitmq"
)

// Publisher publishes a message and waits for the broker to confirm it.
type Publisher interface {
	Publish(ctx context.Context, body []byte) error
}

// Consumer hands queued messages to a handler.
type Consumer interface {
	Consume(handler func(msg amqp.Delivery) error) error
}

// QueueNotifier enqueues reset mails for MailWorker. It returns after the broker
// has confirmed the message, not after the mail is delivered.
type QueueNotifier struct {
	publisher Publisher
}

// NewQueueNotifier creates a QueueNotifier.
func NewQueueNotifier(publisher Publisher) *QueueNotifier {
	return &QueueNotifier{publisher: publisher}
}

// SendPasswordReset publishes mail as JSON.
func (n *QueueNotifier) SendPasswordReset(ctx context.Context, mail ResetMail) error {
	body, err := json.Marshal(mail)
	if err != nil {
		return fmt.Errorf("failed to marshal reset mail: %w", err)
	}
	if err := n.publisher.Publish(ctx, body); err != nil {
		return fmt.Errorf("failed to enqueue reset mail: %w", err)
	}
	return nil
}

// MailWorker drains queued reset mails and delivers them with another Notifier.
type MailWorker struct {
	consumer Consumer
	sender   Notifier
	logger   *zap.Logger
}

// NewMailWorker creates a MailWorker.
func NewMailWorker(consumer Consumer, sender Notifier, logger *zap.Logger) *MailWorker {
	if logger == nil {
		logger = zap.L()
	}
	return &MailWorker{consumer: consumer, sender: sender, logger: logger}
}

// Start registers the worker with the consumer. Deliveries run until ctx is done
// or the channel closes.
func (w *MailWorker) Start(ctx context.Context) error {
	return w.consumer.Consume(func(msg amqp.Delivery) error {
		return w.Handle(ctx, msg.Body)
	})
}

// Handle decodes and delivers a single queued mail. Undecodable mail is marked
// permanent; delivery failures are returned as is so the message is retried.
func (w *MailWorker) Handle(ctx context.Context, body []byte) error {
	var mail ResetMail
	if err := json.Unmarshal(body, &mail); err != nil {
		return rabbitmq.Permanent(fmt.Errorf("malformed reset mail: %w", err))
	}
	if mail.To == "" || mail.Code == "" {
		return rabbitmq.Permanent(fmt.Errorf("reset mail is missing recipient or code"))
	}
	if err := w.sender.SendPasswordReset(ctx, mail); err != nil {
		w.logger.Warn("reset mail delivery failed", zap.String("to", mail.To), zap.Error(err))
		return fmt.Errorf("failed to deliver reset mail: %w", err)
	}
	w.logger.Info("reset mail delivered", zap.String("to", mail.To))
	return nil
}
