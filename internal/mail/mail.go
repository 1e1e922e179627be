// Package mail delivers outbound messages for the notification worker.
package mail

import (
	"context"
	"fmt"
	"net"
	"time"

	log "github.com/sirupsen/logrus"
	gomail "github.com/wneessen/go-mail"

	"servus-backend/internal/config"
)

// sendTimeout bounds a single delivery when the caller's context has no
// earlier deadline.
const sendTimeout = 30 * time.Second

type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// New returns an SMTP sender, or a log-only sender when no SMTP host is configured.
func New(cfg *config.Config) Sender {
	if cfg.Email.SMTPHost == "" {
		log.Warn("[Mail] SMTP_HOST not set, outbound email will only be logged")
		return LogSender{}
	}
	return &SMTPSender{
		host: cfg.Email.SMTPHost,
		port: cfg.Email.SMTPPort,
		user: cfg.Email.SMTPUser,
		pass: cfg.Email.SMTPPassword,
		from: cfg.Email.From,
	}
}

type SMTPSender struct {
	host, user, pass, from string
	port                   int
}

func (s *SMTPSender) client() (*gomail.Client, error) {
	opts := []gomail.Option{
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(sendTimeout),
		gomail.WithDialContextFunc(dialWithDeadline),
	}
	if s.port > 0 {
		opts = append(opts, gomail.WithPort(s.port))
	}
	if s.user != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(s.user),
			gomail.WithPassword(s.pass),
		)
	}
	return gomail.NewClient(s.host, opts...)
}

// Send delivers one message. The connection inherits the context deadline so
// a server that stops responding cannot hold the call past it.
func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	msg, err := BuildMessage(s.from, to, subject, body, time.Now())
	if err != nil {
		return err
	}
	c, err := s.client()
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := c.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to, err)
	}
	return nil
}

func dialWithDeadline(ctx context.Context, network, addr string) (net.Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			conn.Close()
			return nil, err
		}
	}
	return conn, nil
}

// BuildMessage renders a plain-text message. Addresses are parsed strictly
// and non-ASCII header text is RFC 2047 encoded.
func BuildMessage(from, to, subject, body string, date time.Time) (*gomail.Msg, error) {
	m := gomail.NewMsg()
	if err := m.From(from); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", from, err)
	}
	if err := m.To(to); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", to, err)
	}
	m.Subject(subject)
	m.SetDateWithValue(date)
	m.SetBodyString(gomail.TypeTextPlain, body)
	return m, nil
}

// LogSender writes messages to the log instead of sending them.
type LogSender struct{}

func (LogSender) Send(_ context.Context, to, subject, _ string) error {
	log.WithFields(log.Fields{"to": to, "subject": subject}).Info("[Mail] email (log only)")
	return nil
}
