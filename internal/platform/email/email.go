package email

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"clinic/internal/domain/compliance"
	"clinic/internal/platform/config"
)

type noopSink struct{}

func (noopSink) ExportReady(context.Context, string, string) error { return nil }
func (noopSink) ErasureCompleted(context.Context, string) error    { return nil }

type smtpSink struct {
	dialer *gomail.Dialer
	from   string
}

// New returns the SMTP-backed notification sink, or a noop sink when email
// is disabled or unconfigured.
func New(cfg config.Config) compliance.NotificationSink {
	if !cfg.EmailEnabled || cfg.SMTPHost == "" {
		return noopSink{}
	}
	return &smtpSink{
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword),
		from:   cfg.EmailFrom,
	}
}

func (s *smtpSink) ExportReady(ctx context.Context, to, downloadURL string) error {
	body := fmt.Sprintf(
		"Your personal data export is ready.\n\nDownload it within 24 hours:\n%s\n\nThe link works once and requires the token it contains.",
		downloadURL,
	)
	return s.send(ctx, to, "Your data export is ready", body)
}

func (s *smtpSink) ErasureCompleted(ctx context.Context, to string) error {
	body := "Your erasure request has been completed. Identifying information has been removed from our records; de-identified booking history is retained where regulations require it."
	return s.send(ctx, to, "Your erasure request is complete", body)
}

func (s *smtpSink) send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)
	return s.dialer.DialAndSend(m)
}
