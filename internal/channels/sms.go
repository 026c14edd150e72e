package channels

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	twilio "github.com/twilio/twilio-go"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/Kerhoff/carecircle/internal/models"
	"github.com/Kerhoff/carecircle/internal/repository"
)

// maxSMSLength keeps a message inside ten GSM segments
const maxSMSLength = 1530

// SMSSender sends one text message
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// TwilioSender sends SMS through the Twilio REST API
type TwilioSender struct {
	client *twilio.RestClient
	from   string
}

// NewTwilioSender creates a sender for the given account
func NewTwilioSender(accountSID, authToken, from string) *TwilioSender {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioSender{client: client, from: from}
}

// SendSMS implements SMSSender. The Twilio client carries no context
// support, so ctx is only checked before the call.
func (s *TwilioSender) SendSMS(ctx context.Context, to, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	params := &twilioapi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(s.from)
	params.SetBody(body)

	if _, err := s.client.Api.CreateMessage(params); err != nil {
		return fmt.Errorf("failed to send SMS: %w", err)
	}
	return nil
}

// SMSSink texts every member of a circle that has a phone number on file
type SMSSink struct {
	sender SMSSender
	users  repository.UserRepository
}

// NewSMSSink creates an SMS sink
func NewSMSSink(sender SMSSender, users repository.UserRepository) *SMSSink {
	return &SMSSink{sender: sender, users: users}
}

// Name implements fanout.Sink
func (s *SMSSink) Name() string { return "sms" }

// Deliver implements fanout.Sink
func (s *SMSSink) Deliver(ctx context.Context, n models.Notification, allow func(int64) bool) error {
	to, err := recipients(ctx, s.users, n.CircleID, allow, func(u *models.User) string { return u.Phone })
	if err != nil {
		return err
	}

	body := n.Message
	if r := []rune(body); len(r) > maxSMSLength {
		body = string(r[:maxSMSLength-1]) + "…"
	}

	var result *multierror.Error
	for _, u := range to {
		if err := s.sender.SendSMS(ctx, u.Phone, body); err != nil {
			result = multierror.Append(result, fmt.Errorf("user %d: %w", u.ID, err))
		}
	}
	return result.ErrorOrNil()
}
