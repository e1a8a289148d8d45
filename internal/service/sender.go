package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/sppt/server/internal/logging"
	"github.com/sppt/server/internal/queue"
)

// CodeMessage is a verification code ready for delivery.
type CodeMessage struct {
	ClientID   string
	ClientName string
	Phone      string
	Code       string
	ExpiresAt  time.Time
	TTL        time.Duration
}

// CodeSender delivers verification codes to a client's phone.
type CodeSender interface {
	SendCode(ctx context.Context, msg CodeMessage) error
}

// LogSender writes the code to the log instead of delivering it. Dev mode only.
type LogSender struct {
	log zerolog.Logger
}

func NewLogSender(log zerolog.Logger) *LogSender {
	return &LogSender{log: log.With().Str("sender", "log").Logger()}
}

func (s *LogSender) SendCode(_ context.Context, msg CodeMessage) error {
	s.log.Info().
		Str("client_id", msg.ClientID).
		Str("phone", logging.MaskPhone(msg.Phone)).
		Str("code", msg.Code).
		Time("expires_at", msg.ExpiresAt).
		Msg("verification code (dev mode, not delivered)")
	return nil
}

// EventPublisher publishes JSON events to a named queue.
type EventPublisher interface {
	Publish(ctx context.Context, queue string, v any) error
}

// AMQPSender hands the code to the messaging worker over RabbitMQ.
type AMQPSender struct {
	pub EventPublisher
}

func NewAMQPSender(pub EventPublisher) *AMQPSender {
	return &AMQPSender{pub: pub}
}

func (s *AMQPSender) SendCode(ctx context.Context, msg CodeMessage) error {
	return s.pub.Publish(ctx, queue.QueueVerificationRequested, queue.VerificationRequestedEvent{
		ClientID:      msg.ClientID,
		ClientName:    msg.ClientName,
		Phone:         msg.Phone,
		Code:          msg.Code,
		ExpiresAt:     msg.ExpiresAt.UTC().Format(time.RFC3339),
		ExpiryMinutes: int(msg.TTL / time.Minute),
	})
}
