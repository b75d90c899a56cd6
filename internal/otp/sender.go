package otp

import (
	"context"

	"institute_backend/platform/config"
	"institute_backend/platform/logger"
)

// Sender delivers a verification code to a phone number. Implementations
// wrap an external SMS provider; failures are surfaced to the caller but do
// not invalidate the stored challenge.
type Sender interface {
	Send(ctx context.Context, phone, code string) error
}

// LogSender writes the delivery to the log instead of sending. Used in
// development and when SMS delivery is disabled.
//
// This is the one place a code appears outside the verification path, and
// only at debug level.
type LogSender struct {
	log *logger.Logger
}

func NewLogSender(log *logger.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(_ context.Context, phone, code string) error {
	s.log.Debug("sms delivery (dev mode)", "phone", phone, "code", code)
	return nil
}

// NewSender picks the delivery implementation from configuration.
func NewSender(cfg config.SMSConfig, log *logger.Logger) Sender {
	if !cfg.GetSMSEnabled() {
		return NewLogSender(log)
	}
	return NewGatewaySender(cfg, log)
}
