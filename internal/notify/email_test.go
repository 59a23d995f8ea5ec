package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
)

type mockEmailSender struct {
	sent    []EmailMessage
	callErr error
}

func (m *mockEmailSender) Send(ctx context.Context, msg EmailMessage) error {
	if m.callErr != nil {
		return m.callErr
	}
	m.sent = append(m.sent, msg)
	return nil
}

type mockSES struct {
	input *sesv2.SendEmailInput
	err   error
}

func (m *mockSES) SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	m.input = params
	if m.err != nil {
		return nil, m.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func confirmedEvent() BookingConfirmed {
	return BookingConfirmed{
		BookingID:      "bk-1",
		ClinicID:       "clinic-1",
		ClinicName:     "Clinique des Tilleuls",
		RecipientName:  "Alice",
		RecipientEmail: "alice@example.com",
		AnimalName:     "Moka",
		Animals:        1,
		Date:           "2025-04-14",
		Time:           "10:00",
	}
}

func TestNewSendGridSender_NilWithoutAPIKey(t *testing.T) {
	sender := NewSendGridSender(SendGridConfig{FromEmail: "test@example.com"}, nil)
	if sender != nil {
		t.Error("expected nil sender when API key is empty")
	}
}

func TestNewSendGridSender_DefaultFromName(t *testing.T) {
	sender := NewSendGridSender(SendGridConfig{APIKey: "test-key", FromEmail: "test@example.com"}, nil)
	if sender == nil {
		t.Fatal("expected non-nil sender")
	}
	if sender.fromName != defaultFromName {
		t.Errorf("expected default from name %q, got %q", defaultFromName, sender.fromName)
	}
}

func TestSendGridSender_Send_NilClient(t *testing.T) {
	sender := &SendGridSender{}
	if err := sender.Send(context.Background(), EmailMessage{To: "a@example.com"}); err == nil {
		t.Error("expected error when client is nil")
	}
}

func TestSESSender_Send(t *testing.T) {
	api := &mockSES{}
	sender := NewSESSender(api, SESConfig{FromEmail: "noreply@clinic.test"}, nil)

	err := sender.Send(context.Background(), EmailMessage{To: "alice@example.com", Subject: "Hi", Body: "text", HTML: "<p>text</p>"})
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if got := aws.ToString(api.input.FromEmailAddress); got != "Vet Clinic <noreply@clinic.test>" {
		t.Errorf("unexpected from address %q", got)
	}
	if api.input.Content.Simple.Body.Html == nil || api.input.Content.Simple.Body.Text == nil {
		t.Error("expected both text and html bodies")
	}
}

func TestSESSender_SendError(t *testing.T) {
	sender := NewSESSender(&mockSES{err: errors.New("throttled")}, SESConfig{FromEmail: "noreply@clinic.test"}, nil)
	if err := sender.Send(context.Background(), EmailMessage{To: "alice@example.com"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestStubEmailSender_Send(t *testing.T) {
	if err := NewStubEmailSender(nil).Send(context.Background(), EmailMessage{To: "a@example.com"}); err != nil {
		t.Errorf("stub sender should not return error, got: %v", err)
	}
}

func TestEmailNotifierRendersConfirmation(t *testing.T) {
	sender := &mockEmailSender{}
	n := NewEmailNotifier(sender, nil)

	if err := n.BookingConfirmed(context.Background(), confirmedEvent()); err != nil {
		t.Fatalf("notify failed: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected 1 email, got %d", len(sender.sent))
	}
	msg := sender.sent[0]
	if msg.To != "alice@example.com" {
		t.Errorf("unexpected recipient %q", msg.To)
	}
	for _, want := range []string{"2025-04-14", "10:00"} {
		if !strings.Contains(msg.Subject, want) {
			t.Errorf("subject %q missing %q", msg.Subject, want)
		}
	}
	if !strings.Contains(msg.Body, "Moka") || !strings.Contains(msg.Body, "bk-1") {
		t.Errorf("body missing animal or reference: %q", msg.Body)
	}
}

func TestEmailNotifierTwoAnimals(t *testing.T) {
	sender := &mockEmailSender{}
	evt := confirmedEvent()
	evt.Animals = 2
	if err := NewEmailNotifier(sender, nil).BookingConfirmed(context.Background(), evt); err != nil {
		t.Fatalf("notify failed: %v", err)
	}
	if !strings.Contains(sender.sent[0].Body, "2 animals") {
		t.Errorf("expected two-animal wording, got %q", sender.sent[0].Body)
	}
}

func TestEmailNotifierSkipsWithoutRecipient(t *testing.T) {
	sender := &mockEmailSender{}
	evt := confirmedEvent()
	evt.RecipientEmail = ""
	if err := NewEmailNotifier(sender, nil).BookingConfirmed(context.Background(), evt); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sender.sent) != 0 {
		t.Fatal("expected no email without recipient")
	}
}

func TestEmailNotifierEscapesHTML(t *testing.T) {
	sender := &mockEmailSender{}
	evt := confirmedEvent()
	evt.AnimalName = "<script>"
	if err := NewEmailNotifier(sender, nil).BookingConfirmed(context.Background(), evt); err != nil {
		t.Fatalf("notify failed: %v", err)
	}
	if strings.Contains(sender.sent[0].HTML, "<script>") {
		t.Error("animal name should be escaped in html body")
	}
}
