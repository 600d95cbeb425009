// Package mail delivers transactional email. Delivery is best effort: failures
// are logged and counted, never returned to the workflow that triggered them.
package mail

import (
	"context"
	"fmt"

	"parcels/internal/observability/metrics"
	"parcels/internal/observability/middleware"

	"github.com/resend/resend-go/v2"
)

type Message struct {
	To       string
	Subject  string
	HTML     string
	Text     string
	Template string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// ResendSender delivers through the Resend API.
type ResendSender struct {
	client *resend.Client
	from   string
}

func NewResendSender(apiKey, from string) *ResendSender {
	return &ResendSender{client: resend.NewClient(apiKey), from: from}
}

func (s *ResendSender) Send(ctx context.Context, msg Message) error {
	_, err := s.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
		Tags:    []resend.Tag{{Name: "template", Value: msg.Template}},
	})
	if err != nil {
		return fmt.Errorf("resend: %w", err)
	}
	return nil
}

// LogSender writes messages to the log instead of sending them.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, msg Message) error {
	log := middleware.Logger(ctx)
	log.Info("email not sent (no provider configured)",
		"to", msg.To,
		"subject", msg.Subject,
		"template", msg.Template,
	)
	// Bodies carry reset links and codes.
	log.Debug("unsent email body", "template", msg.Template, "body", msg.Text)
	return nil
}

// Mailer renders templates and hands them to a Sender.
type Mailer struct {
	sender Sender
}

func NewMailer(sender Sender) *Mailer {
	if sender == nil {
		sender = LogSender{}
	}
	return &Mailer{sender: sender}
}

func (m *Mailer) deliver(ctx context.Context, to, template string, data any) {
	msg, err := render(template, data)
	if err == nil {
		msg.To = to
		err = m.sender.Send(ctx, msg)
	}
	metrics.EmailsTotal.WithLabelValues(template, metrics.Result(err)).Inc()
	if err != nil {
		middleware.Logger(ctx).Error("email delivery failed",
			"template", template,
			"error", err,
		)
	}
}

type ReceiptData struct {
	UnitKey  string
	Amount   string
	CertURL  string
	ClaimURL string
	GiftCode string
	ClaimID  string
	CertHash string
}

func (m *Mailer) Receipt(ctx context.Context, to string, d ReceiptData) {
	m.deliver(ctx, to, TemplateReceipt, d)
}

type SaleData struct {
	UnitKey  string
	Amount   string
	ClaimURL string
	CertURL  string
}

func (m *Mailer) SaleSeller(ctx context.Context, to string, d SaleData) {
	m.deliver(ctx, to, TemplateSaleSeller, d)
}

func (m *Mailer) SaleBuyer(ctx context.Context, to string, d SaleData) {
	m.deliver(ctx, to, TemplateSaleBuyer, d)
}

type ResetData struct {
	Link    string
	Expires string
}

func (m *Mailer) PasswordReset(ctx context.Context, to string, d ResetData) {
	m.deliver(ctx, to, TemplatePasswordReset, d)
}

type LoginCodeData struct {
	Code    string
	Expires string
}

func (m *Mailer) LoginCode(ctx context.Context, to string, d LoginCodeData) {
	m.deliver(ctx, to, TemplateLoginCode, d)
}
