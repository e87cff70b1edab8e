// internal/infra/sms/twilio.go
package sms

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	domainSMS "hifz_attendance_notifier/internal/domain/sms"

	"github.com/twilio/twilio-go"
	twilioclient "github.com/twilio/twilio-go/client"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// messageCreator is the slice of the Twilio REST API this adapter uses.
type messageCreator interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// TwilioSender implements domain sms.Sender on top of the Twilio Messages API.
type TwilioSender struct {
	api messageCreator
}

var _ domainSMS.Sender = (*TwilioSender)(nil)

func NewTwilioSender(accountSID, authToken string) *TwilioSender {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioSender{api: client.Api}
}

// Send posts one message. The Twilio client has no context support, so ctx
// is only checked before the request is made.
func (s *TwilioSender) Send(ctx context.Context, from, to, body string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", domainSMS.ErrProviderError, err)
	}

	params := &openapi.CreateMessageParams{}
	params.SetFrom(from)
	params.SetTo(to)
	params.SetBody(body)

	msg, err := s.api.CreateMessage(params)
	if err != nil {
		return "", classifyTwilioError(err)
	}
	if msg == nil || msg.Sid == nil {
		return "", fmt.Errorf("%w: response without message sid", domainSMS.ErrProviderError)
	}
	return *msg.Sid, nil
}

// classifyTwilioError separates requests Twilio refused (bad or unverified
// numbers, blocked recipients) from transport and server failures.
func classifyTwilioError(err error) error {
	var restErr *twilioclient.TwilioRestError
	if errors.As(err, &restErr) {
		if restErr.Status >= http.StatusBadRequest && restErr.Status < http.StatusInternalServerError && restErr.Status != http.StatusTooManyRequests {
			return fmt.Errorf("%w: twilio code %d: %s", domainSMS.ErrProviderRejected, restErr.Code, restErr.Message)
		}
		return fmt.Errorf("%w: twilio status %d code %d: %s", domainSMS.ErrProviderError, restErr.Status, restErr.Code, restErr.Message)
	}
	return fmt.Errorf("%w: %v", domainSMS.ErrProviderError, err)
}
