package notify

import (
	"context"
	"fmt"
	"net"
	"net/smtp"

	"github.com/jordan-wright/email"
)

type Config struct {
	// SmtpAddr is host:port, an empty address disables notifications.
	SmtpAddr string   `json:"smtp_addr"`
	Username string   `json:"username"`
	Password string   `json:"password"`
	From     string   `json:"from"`
	To       []string `json:"to"`
}

func (c Config) Enabled() bool {
	return c.SmtpAddr != "" && len(c.To) > 0
}

type sendFunc func(e *email.Email, addr string, auth smtp.Auth) error

// Email sends plain text notifications over smtp.
type Email struct {
	config Config
	send   sendFunc
}

func NewEmail(config Config) Email {
	return Email{
		config: config,
		send: func(e *email.Email, addr string, auth smtp.Auth) error {
			return e.Send(addr, auth)
		},
	}
}

func (n Email) auth() (smtp.Auth, error) {
	if n.config.Username == "" {
		return nil, nil
	}
	host, _, err := net.SplitHostPort(n.config.SmtpAddr)
	if err != nil {
		return nil, fmt.Errorf("invalid smtp address %q: %w", n.config.SmtpAddr, err)
	}
	return smtp.PlainAuth("", n.config.Username, n.config.Password, host), nil
}

func (n Email) Notify(ctx context.Context, subject, body string) error {
	if !n.config.Enabled() {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	auth, err := n.auth()
	if err != nil {
		return err
	}

	e := email.NewEmail()
	e.From = n.config.From
	e.To = n.config.To
	e.Subject = subject
	e.Text = []byte(body)
	return n.send(e, n.config.SmtpAddr, auth)
}
