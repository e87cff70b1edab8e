package sms

import (
	"context"
	"errors"
)

// Per-recipient failure kinds. None of them is fatal to a batch.
var (
	ErrInvalidPhoneFormat = errors.New("invalid phone format")
	ErrProviderRejected   = errors.New("sms provider rejected message")
	ErrProviderError      = errors.New("sms provider error")
)

// Sender delivers a single text message through an SMS provider.
// Implementations wrap failures with ErrProviderRejected or ErrProviderError.
type Sender interface {
	Send(ctx context.Context, from, to, body string) (messageID string, err error)
}

// SendResult is the outcome of one dispatch attempt. It is never persisted.
type SendResult struct {
	Recipient  string // As given by the caller
	Normalized string // E.164 form actually sent to, empty if normalisation failed
	MessageID  string
	Err        error
}

// OK reports whether the message was accepted by the provider.
func (r SendResult) OK() bool { return r.Err == nil }
