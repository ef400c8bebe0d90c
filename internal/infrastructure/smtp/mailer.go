package smtp

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/go-otp-onboarding/internal/config"
)

// Mailer sends emails.
type Mailer interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

type mailer struct {
	host     string
	port     string
	from     string
	username string
	password string
	send     func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewMailer returns nil when no SMTP host is configured, which disables mail.
func NewMailer(cfg *config.Config) Mailer {
	if cfg.SMTPHost == "" {
		return nil
	}
	return &mailer{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		from:     cfg.SMTPFrom,
		username: cfg.SMTPUsername,
		password: cfg.SMTPPassword,
		send:     smtp.SendMail,
	}
}

func (m *mailer) SendEmail(ctx context.Context, to, subject, body string) error {
	if strings.ContainsAny(to, "\r\n") || strings.ContainsAny(subject, "\r\n") {
		return fmt.Errorf("invalid header value")
	}
	msg := buildMessage(m.from, to, subject, body)
	addr := fmt.Sprintf("%s:%s", m.host, m.port)

	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}

	// net/smtp has no context support; run the send so the caller can stop waiting.
	done := make(chan error, 1)
	go func() { done <- m.send(addr, auth, m.from, []string{to}, msg) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func buildMessage(from, to, subject, body string) []byte {
	return []byte(fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nDate: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s",
		from, to, subject, time.Now().UTC().Format(time.RFC1123Z), body,
	))
}

// WelcomeMessage is the subject and body sent once a user registers an email.
func WelcomeMessage(firstName string) (subject, body string) {
	greeting := "Hi"
	if firstName != "" {
		greeting = "Hi " + firstName
	}
	return "Welcome aboard", greeting + ",\r\n\r\nYour email address is now linked to your account.\r\n"
}
