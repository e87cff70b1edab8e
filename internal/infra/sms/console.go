package sms

import (
	"context"
	"fmt"
	"sync/atomic"

	domainSMS "hifz_attendance_notifier/internal/domain/sms"

	"github.com/sirupsen/logrus"
)

// ConsoleSender logs messages instead of sending them. Used when no Twilio
// credentials are configured.
type ConsoleSender struct {
	logger *logrus.Entry
	seq    atomic.Int64
}

var _ domainSMS.Sender = (*ConsoleSender)(nil)

func NewConsoleSender(logger *logrus.Entry) *ConsoleSender {
	return &ConsoleSender{logger: logger.WithField("component", "console_sms")}
}

func (s *ConsoleSender) Send(ctx context.Context, from, to, body string) (string, error) {
	id := fmt.Sprintf("console-%d", s.seq.Add(1))
	s.logger.WithFields(logrus.Fields{
		"from":       from,
		"to":         to,
		"message_id": id,
	}).Info(body)
	return id, nil
}
