// Package notify delivers the state machine's composed messages. Every send
// is best-effort: failures are logged, never retried, and never block the
// other messages of the same event.
package notify

import (
	"context"

	"github.com/dabeastttt/test-demo/internal/conversation"
	"github.com/dabeastttt/test-demo/pkg/logging"
)

// SMSSender sends a single text message.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// Dispatcher fans the machine's outbound messages into the messaging
// channel, mirroring owner alerts to email when configured.
type Dispatcher struct {
	sms        SMSSender
	email      EmailSender
	ownerEmail string
	logger     *logging.Logger
}

// NewDispatcher creates a dispatcher. email may be nil.
func NewDispatcher(sms SMSSender, email EmailSender, ownerEmail string, logger *logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.Default()
	}
	return &Dispatcher{sms: sms, email: email, ownerEmail: ownerEmail, logger: logger}
}

// Dispatch sends every message independently and returns the number that
// were delivered.
func (d *Dispatcher) Dispatch(ctx context.Context, msgs []conversation.Message) int {
	sent := 0
	for _, msg := range msgs {
		if msg.To == "" || msg.Body == "" {
			d.logger.Warn("skipping message with missing fields", "kind", msg.Kind)
			continue
		}
		if d.sms == nil {
			d.logger.Warn("sms sender not configured, dropping message", "kind", msg.Kind, "to", msg.To)
			continue
		}
		if err := d.sms.SendSMS(ctx, msg.To, msg.Body); err != nil {
			d.logger.Error("send failed", "error", err, "kind", msg.Kind, "to", msg.To)
		} else {
			sent++
		}

		if msg.Kind == conversation.KindOwnerAlert {
			d.mirrorToEmail(ctx, msg)
		}
	}
	return sent
}

func (d *Dispatcher) mirrorToEmail(ctx context.Context, msg conversation.Message) {
	if d.email == nil || d.ownerEmail == "" {
		return
	}
	err := d.email.Send(ctx, EmailMessage{
		To:      d.ownerEmail,
		Subject: "Missed call assistant update",
		Body:    msg.Body,
	})
	if err != nil {
		d.logger.Error("owner email mirror failed", "error", err)
	}
}

// StubSMSSender is a no-op sender for development without Twilio credentials.
type StubSMSSender struct {
	logger *logging.Logger
}

// NewStubSMSSender creates a stub SMS sender.
func NewStubSMSSender(logger *logging.Logger) *StubSMSSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &StubSMSSender{logger: logger}
}

// SendSMS logs but doesn't send.
func (s *StubSMSSender) SendSMS(ctx context.Context, to, body string) error {
	s.logger.Info("stub SMS sender: would send", "to", to, "body_preview", truncate(body, 50))
	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

var _ SMSSender = (*StubSMSSender)(nil)
