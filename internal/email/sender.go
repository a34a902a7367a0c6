package email

import (
	"context"
	"errors"
	"time"
)

// ReminderEmail contiene los datos del recordatorio de seguimiento.
type ReminderEmail struct {
	ToEmail   string
	UserName  string
	JobTitle  string
	Company   string
	AppliedAt *time.Time
}

// Sender define la interfaz para el envio de correos transaccionales.
type Sender interface {
	SendVerificationCode(ctx context.Context, toEmail string, code string, expiresAt time.Time) error
	SendPasswordReset(ctx context.Context, toEmail string, resetURL string, expiresAt time.Time) error
	SendReminder(ctx context.Context, reminder ReminderEmail) error
}

type disabledSender struct {
	reason string
}

func NewDisabledSender(reason string) Sender {
	return &disabledSender{reason: reason}
}

func (s *disabledSender) err() error {
	if s.reason == "" {
		return errors.New("email sender disabled")
	}
	return errors.New(s.reason)
}

func (s *disabledSender) SendVerificationCode(_ context.Context, _ string, _ string, _ time.Time) error {
	return s.err()
}

func (s *disabledSender) SendPasswordReset(_ context.Context, _ string, _ string, _ time.Time) error {
	return s.err()
}

func (s *disabledSender) SendReminder(_ context.Context, _ ReminderEmail) error {
	return s.err()
}
