package channels

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/Kerhoff/carecircle/internal/models"
	"github.com/Kerhoff/carecircle/internal/repository"
)

const (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
	appName          = "CareCircle"
)

// EmailSink mails a notification to every member of a circle with an
// address on file. Each recipient gets its own personalization so
// addresses are not shared.
type EmailSink struct {
	key   string
	host  string
	from  *sgmail.Email
	users repository.UserRepository
}

// EmailOption configures an EmailSink
type EmailOption func(*EmailSink)

// WithSendGridHost points the sink at another API host
func WithSendGridHost(host string) EmailOption {
	return func(s *EmailSink) { s.host = host }
}

// NewEmailSink creates an e-mail sink backed by SendGrid
func NewEmailSink(apiKey, fromEmail string, users repository.UserRepository, opts ...EmailOption) *EmailSink {
	s := &EmailSink{
		key:   apiKey,
		host:  sendgridHost,
		from:  sgmail.NewEmail(appName, fromEmail),
		users: users,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name implements fanout.Sink
func (s *EmailSink) Name() string { return "email" }

// Deliver implements fanout.Sink
func (s *EmailSink) Deliver(ctx context.Context, n models.Notification, allow func(int64) bool) error {
	to, err := recipients(ctx, s.users, n.CircleID, allow, func(u *models.User) string { return u.Email })
	if err != nil {
		return err
	}
	if len(to) == 0 {
		return nil
	}

	req := sendgrid.GetRequest(s.key, sendgridEndpoint, s.host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(s.prepare(n, to))

	res, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to send %s e-mail: %w", n.Kind, err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("failed to send %s e-mail: sendgrid status %d: %s", n.Kind, res.StatusCode, res.Body)
	}
	return nil
}

func (s *EmailSink) prepare(n models.Notification, to []*models.User) *sgmail.SGMailV3 {
	m := sgmail.NewV3Mail()
	m.SetFrom(s.from)

	subject := "[" + appName + "] " + subjectFor(n.Kind)
	for _, u := range to {
		p := sgmail.NewPersonalization()
		p.Subject = subject
		p.AddTos(sgmail.NewEmail(u.DisplayName(), u.Email))
		m.AddPersonalizations(p)
	}

	m.AddContent(sgmail.NewContent("text/plain", n.Message))
	return m
}

func subjectFor(kind models.Kind) string {
	switch kind {
	case models.KindMinorPre15, models.KindMinorPing, models.KindReminder:
		return "Task reminder"
	case models.KindDisruptiveAlert, models.KindEscalation:
		return "Task overdue"
	case models.KindTaskAck:
		return "Task acknowledged"
	case models.KindGeofenceEnter, models.KindGeofenceExit:
		return "Location update"
	case models.KindVitalsAlert:
		return "Vitals alert"
	case models.KindInactivity:
		return "No recent activity"
	default:
		return "Notification"
	}
}
