// internal/app/dispatcher.go
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hifz_attendance_notifier/internal/domain/sms"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// DefaultSendInterval keeps the provider below its per-number rate limit.
const DefaultSendInterval = 150 * time.Millisecond

// Limiter paces outbound sends. *rate.Limiter satisfies it.
type Limiter interface {
	Wait(ctx context.Context) error
}

// NewIntervalLimiter allows one send per interval with no bursting.
// A non-positive interval disables pacing.
func NewIntervalLimiter(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

// RecipientError describes why a single recipient was not reached.
type RecipientError struct {
	Recipient string
	Err       error
}

func (e RecipientError) Reason() string {
	switch {
	case errors.Is(e.Err, sms.ErrInvalidPhoneFormat):
		return "invalid phone format"
	case errors.Is(e.Err, sms.ErrProviderRejected):
		return "rejected by provider"
	default:
		return "provider error"
	}
}

// DispatchResult aggregates the per-recipient outcomes of one SendSMS call.
type DispatchResult struct {
	Sent    int
	Errors  []RecipientError
	Results []sms.SendResult
}

// Attempted reports whether at least one recipient was tried.
func (r DispatchResult) Attempted() bool { return len(r.Results) > 0 }

// Dispatcher sends one message to several phone numbers, one after another.
// A failing recipient never stops the others and nothing is retried.
type Dispatcher struct {
	sender  sms.Sender
	from    string
	limiter Limiter
	logger  *logrus.Entry
}

func NewDispatcher(sender sms.Sender, from string, limiter Limiter, logger *logrus.Entry) *Dispatcher {
	if limiter == nil {
		limiter = NewIntervalLimiter(DefaultSendInterval)
	}
	return &Dispatcher{
		sender:  sender,
		from:    from,
		limiter: limiter,
		logger:  logger.WithField("component", "dispatcher"),
	}
}

// SendSMS delivers body to every recipient and reports what happened to each.
func (d *Dispatcher) SendSMS(ctx context.Context, recipients []string, body string) DispatchResult {
	result := DispatchResult{Results: make([]sms.SendResult, 0, len(recipients))}

	for _, recipient := range recipients {
		res := d.sendOne(ctx, recipient, body)
		result.Results = append(result.Results, res)
		if res.OK() {
			result.Sent++
			continue
		}
		result.Errors = append(result.Errors, RecipientError{Recipient: recipient, Err: res.Err})
	}
	return result
}

func (d *Dispatcher) sendOne(ctx context.Context, recipient, body string) sms.SendResult {
	res := sms.SendResult{Recipient: recipient}
	logCtx := d.logger.WithField("recipient", recipient)

	normalized, err := NormalizePhone(recipient)
	if err != nil {
		logCtx.WithError(err).Warn("Skipping recipient with invalid phone number")
		res.Err = err
		return res
	}
	res.Normalized = normalized

	if err := d.limiter.Wait(ctx); err != nil {
		res.Err = fmt.Errorf("%w: waiting for send slot: %v", sms.ErrProviderError, err)
		logCtx.WithError(res.Err).Error("SMS not sent")
		return res
	}

	id, err := d.sender.Send(ctx, d.from, normalized, body)
	if err != nil {
		if !errors.Is(err, sms.ErrProviderRejected) && !errors.Is(err, sms.ErrProviderError) {
			err = fmt.Errorf("%w: %v", sms.ErrProviderError, err)
		}
		res.Err = err
		logCtx.WithError(err).Error("SMS send failed")
		return res
	}

	res.MessageID = id
	logCtx.WithField("message_id", id).Info("SMS sent")
	return res
}
