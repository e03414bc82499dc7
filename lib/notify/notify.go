// Package notify emails a short report when a scrape finishes, for
// long running crawls nobody sits and watches.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"webharvest/lib/scrape"
	"webharvest/lib/sink"

	"github.com/jordan-wright/email"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("webharvest.notify")

type SmtpConfig struct {
	Server       string `json:"server"`
	Port         int    `json:"port"`
	EmailAddress string `json:"emailAddress"`
	Password     string `json:"password"`
}

type Options struct {
	Smtp       SmtpConfig
	Recipients []string
}

type Notifier struct {
	config Options
}

func NewNotifier(options Options) Notifier {
	return Notifier{config: options}
}

func (n Notifier) buildEmail(session *scrape.Session, fields []string) (*email.Email, error) {
	var body bytes.Buffer
	err := sink.NewSummarySink(&body, sink.SummaryOptions{Fields: fields}).Write(session)
	if err != nil {
		return nil, fmt.Errorf("render summary: %w", err)
	}

	mail := email.NewEmail()
	mail.From = fmt.Sprintf("webharvest <%s>", n.config.Smtp.EmailAddress)
	mail.To = n.config.Recipients
	mail.Subject = fmt.Sprintf("Scrape finished: %d records from %s", len(session.Records), session.Seed)
	if session.Fault != nil {
		mail.Subject = fmt.Sprintf("Scrape stopped early: %s", session.Seed)
	}
	mail.Text = body.Bytes()
	return mail, nil
}

// SessionFinished mails the session report to every configured
// recipient.
func (n Notifier) SessionFinished(ctx context.Context, session *scrape.Session, fields []string) error {
	_, span := tracer.Start(ctx, "SessionFinished")
	defer span.End()

	if len(n.config.Recipients) == 0 {
		return nil
	}

	mail, err := n.buildEmail(session, fields)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to build email")
		return err
	}

	addr := fmt.Sprintf("%s:%d", n.config.Smtp.Server, n.config.Smtp.Port)
	err = mail.Send(
		addr,
		smtp.PlainAuth("", n.config.Smtp.EmailAddress, n.config.Smtp.Password, n.config.Smtp.Server),
	)
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = mail.Send(addr, nil)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to send email")
		return err
	}
	return nil
}
