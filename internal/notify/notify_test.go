package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/smtp"
	"testing"
	"time"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"authsvc/pkg/rabbitmq"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, body []byte) error {
	args := m.Called(ctx, body)
	return args.Error(0)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) SendPasswordReset(ctx context.Context, mail ResetMail) error {
	args := m.Called(ctx, mail)
	return args.Error(0)
}

func sampleMail() ResetMail {
	return ResetMail{
		To:        "a@x.com",
		Username:  "alice",
		Code:      "004217",
		ExpiresAt: time.Date(2026, 10, 19, 12, 10, 0, 0, time.UTC),
	}
}

func TestQueueNotifier_PublishesJSON(t *testing.T) {
	ctx := context.Background()
	pub := new(mockPublisher)
	pub.On("Publish", ctx, mock.MatchedBy(func(body []byte) bool {
		var got ResetMail
		return json.Unmarshal(body, &got) == nil && got.Code == "004217" && got.To == "a@x.com"
	})).Return(nil).Once()

	require.NoError(t, NewQueueNotifier(pub).SendPasswordReset(ctx, sampleMail()))
	pub.AssertExpectations(t)
}

func TestQueueNotifier_ReportsPublishFailure(t *testing.T) {
	ctx := context.Background()
	pub := new(mockPublisher)
	pub.On("Publish", ctx, mock.Anything).Return(errors.New("broker rejected message 1")).Once()

	err := NewQueueNotifier(pub).SendPasswordReset(ctx, sampleMail())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker rejected")
}

func TestMailWorker_Handle(t *testing.T) {
	ctx := context.Background()
	sender := new(mockNotifier)
	worker := NewMailWorker(nil, sender, zap.NewNop())

	mail := sampleMail()
	body, err := json.Marshal(mail)
	require.NoError(t, err)

	sender.On("SendPasswordReset", ctx, mock.MatchedBy(func(m ResetMail) bool {
		return m.To == mail.To && m.Code == mail.Code && m.ExpiresAt.Equal(mail.ExpiresAt)
	})).Return(nil).Once()
	require.NoError(t, worker.Handle(ctx, body))

	err = worker.Handle(ctx, []byte("{not json"))
	require.Error(t, err)
	assert.True(t, rabbitmq.IsPermanent(err))
	err = worker.Handle(ctx, []byte(`{"to":"a@x.com"}`))
	require.Error(t, err)
	assert.True(t, rabbitmq.IsPermanent(err))
	sender.AssertExpectations(t)
}

// capturingConsumer keeps the handler so a test can feed it deliveries.
type capturingConsumer struct {
	handler func(amqp.Delivery) error
}

func (c *capturingConsumer) Consume(handler func(amqp.Delivery) error) error {
	c.handler = handler
	return nil
}

func TestMailWorker_DeliveryFailureIsRetried(t *testing.T) {
	ctx := context.Background()
	sender := new(mockNotifier)
	consumer := &capturingConsumer{}
	worker := NewMailWorker(consumer, sender, zap.NewNop())
	require.NoError(t, worker.Start(ctx))
	require.NotNil(t, consumer.handler)

	body, err := json.Marshal(sampleMail())
	require.NoError(t, err)

	smtpDown := errors.New("dial tcp: connection refused")
	sender.On("SendPasswordReset", ctx, mock.Anything).Return(smtpDown).Once()
	err = consumer.handler(amqp.Delivery{Body: body})
	require.Error(t, err)
	assert.ErrorIs(t, err, smtpDown)
	assert.False(t, rabbitmq.IsPermanent(err), "delivery failures must not be dropped")

	sender.On("SendPasswordReset", ctx, mock.Anything).Return(nil).Once()
	assert.NoError(t, consumer.handler(amqp.Delivery{Body: body, Redelivered: true}))
	sender.AssertExpectations(t)
}

func TestSMTPNotifier_SendsMessage(t *testing.T) {
	var (
		gotAddr string
		gotTo   []string
		gotMsg  string
		gotAuth smtp.Auth
	)
	n := NewSMTPNotifier(SMTPConfig{Host: "smtp.example.com", Port: 587, Username: "mailer", Password: "secret", From: "noreply@example.com"})
	n.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotAuth, gotTo, gotMsg = addr, a, to, string(msg)
		return nil
	}

	require.NoError(t, n.SendPasswordReset(context.Background(), sampleMail()))
	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.NotNil(t, gotAuth)
	assert.Equal(t, []string{"a@x.com"}, gotTo)
	assert.Contains(t, gotMsg, "Subject: Password Reset OTP\r\n")
	assert.Contains(t, gotMsg, "Your OTP for password reset is: 004217")
}

func TestSMTPNotifier_ReportsFailure(t *testing.T) {
	n := NewSMTPNotifier(SMTPConfig{Host: "localhost", Port: 25, From: "noreply@example.com"})
	n.send = func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("554 relay denied")
	}

	err := n.SendPasswordReset(context.Background(), sampleMail())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "relay denied")
}

func TestLogNotifier(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	require.NoError(t, NewLogNotifier(zap.New(core)).SendPasswordReset(context.Background(), sampleMail()))

	entries := logs.FilterMessage("password reset code").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "004217", entries[0].ContextMap()["code"])
}
