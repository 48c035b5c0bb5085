package email

import (
	"context"
	"errors"
)

// Sender define la interfaz para envio de correos de confirmacion de cuenta.
type Sender interface {
	SendRegistrationConfirmation(ctx context.Context, toEmail, name, confirmURL string) error
}

type disabledSender struct {
	reason string
}

func NewDisabledSender(reason string) Sender {
	return &disabledSender{reason: reason}
}

func (s *disabledSender) SendRegistrationConfirmation(_ context.Context, _, _, _ string) error {
	if s.reason == "" {
		return errors.New("email sender disabled")
	}
	return errors.New(s.reason)
}
