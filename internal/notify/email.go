package notify

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/wolfman30/vetclinic-platform/pkg/logging"
)

const defaultFromName = "Vet Clinic"

// EmailSender delivers a rendered email. SendGrid and SES both implement it.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// EmailMessage represents an email to be sent.
type EmailMessage struct {
	To      string
	ToName  string
	Subject string
	Body    string // Plain text body
	HTML    string // Optional HTML body
}

// SendGridSender sends emails via SendGrid API.
type SendGridSender struct {
	client    *sendgrid.Client
	fromEmail string
	fromName  string
	logger    *logging.Logger
}

// SendGridConfig holds configuration for SendGrid.
type SendGridConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
}

// NewSendGridSender returns nil when no API key is configured.
func NewSendGridSender(cfg SendGridConfig, logger *logging.Logger) *SendGridSender {
	if cfg.APIKey == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.FromName == "" {
		cfg.FromName = defaultFromName
	}
	return &SendGridSender{
		client:    sendgrid.NewSendClient(cfg.APIKey),
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
		logger:    logger,
	}
}

func (s *SendGridSender) Send(ctx context.Context, msg EmailMessage) error {
	if s.client == nil {
		return fmt.Errorf("notify: sendgrid client not configured")
	}

	from := mail.NewEmail(s.fromName, s.fromEmail)
	to := mail.NewEmail(msg.ToName, msg.To)
	htmlBody := msg.HTML
	if htmlBody == "" {
		htmlBody = msg.Body
	}
	message := mail.NewSingleEmail(from, msg.Subject, to, msg.Body, htmlBody)

	response, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		s.logger.Error("sendgrid send failed", "error", err, "to", msg.To)
		return fmt.Errorf("notify: sendgrid send failed: %w", err)
	}
	if response.StatusCode >= 400 {
		s.logger.Error("sendgrid returned error status", "status", response.StatusCode, "to", msg.To)
		return fmt.Errorf("notify: sendgrid returned status %d", response.StatusCode)
	}

	s.logger.Info("email sent via sendgrid", "to", msg.To, "subject", msg.Subject, "status", response.StatusCode)
	return nil
}

// StubEmailSender logs instead of sending. Used in development.
type StubEmailSender struct {
	logger *logging.Logger
}

func NewStubEmailSender(logger *logging.Logger) *StubEmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &StubEmailSender{logger: logger}
}

func (s *StubEmailSender) Send(ctx context.Context, msg EmailMessage) error {
	s.logger.Info("stub email sender: would send email", "to", msg.To, "subject", msg.Subject)
	return nil
}

// EmailNotifier renders the confirmation email for the client.
type EmailNotifier struct {
	sender EmailSender
	logger *logging.Logger
}

func NewEmailNotifier(sender EmailSender, logger *logging.Logger) *EmailNotifier {
	if logger == nil {
		logger = logging.Default()
	}
	return &EmailNotifier{sender: sender, logger: logger}
}

func (n *EmailNotifier) BookingConfirmed(ctx context.Context, evt BookingConfirmed) error {
	if err := evt.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(evt.RecipientEmail) == "" {
		n.logger.Debug("booking has no client email, skipping confirmation", "booking_id", evt.BookingID)
		return nil
	}
	return n.sender.Send(ctx, renderConfirmation(evt))
}

func renderConfirmation(evt BookingConfirmed) EmailMessage {
	clinicName := evt.ClinicName
	if clinicName == "" {
		clinicName = defaultFromName
	}
	animal := evt.AnimalName
	if animal == "" {
		animal = "your animal"
	}
	visit := "appointment"
	if evt.Animals > 1 {
		visit = fmt.Sprintf("appointment for %d animals", evt.Animals)
	}

	subject := fmt.Sprintf("%s: appointment confirmed on %s at %s", clinicName, evt.Date, evt.Time)
	body := fmt.Sprintf("Hello %s,\n\nYour %s for %s is confirmed on %s at %s.\nReference: %s\n\n%s",
		evt.RecipientName, visit, animal, evt.Date, evt.Time, evt.BookingID, clinicName)
	htmlBody := fmt.Sprintf("<p>Hello %s,</p><p>Your %s for <strong>%s</strong> is confirmed on <strong>%s at %s</strong>.</p><p>Reference: %s</p><p>%s</p>",
		html.EscapeString(evt.RecipientName), visit, html.EscapeString(animal),
		evt.Date, evt.Time, evt.BookingID, html.EscapeString(clinicName))

	return EmailMessage{
		To:      evt.RecipientEmail,
		ToName:  evt.RecipientName,
		Subject: subject,
		Body:    body,
		HTML:    htmlBody,
	}
}
