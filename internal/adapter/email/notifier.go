// Package email delivers approval alerts over SMTP with approve/deny
// callback links.
package email

import (
	"context"
	"fmt"
	"net/smtp"
)

// SMTPConfig holds the configuration for SMTP connections.
type SMTPConfig struct {
	Host     string
	Port     int
	From     string
	Password string
}

// Notifier sends mail via SMTP. Kept separate from the alert channel so the
// channel logic stays testable without a mail server.
type Notifier struct {
	cfg  SMTPConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewNotifier creates a new SMTP notifier.
func NewNotifier(cfg SMTPConfig) *Notifier {
	return &Notifier{cfg: cfg, send: smtp.SendMail}
}

// Send sends one HTML email.
func (n *Notifier) Send(_ context.Context, to, subject, body string) error {
	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		n.cfg.From, to, subject, body)

	var auth smtp.Auth
	if n.cfg.Password != "" {
		auth = smtp.PlainAuth("", n.cfg.From, n.cfg.Password, n.cfg.Host)
	}

	return n.send(addr, auth, n.cfg.From, []string{to}, []byte(msg))
}
