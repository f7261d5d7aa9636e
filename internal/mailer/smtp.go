// Package mailer delivers outbound mail over SMTP.
package mailer

import (
	"fmt"
	"net/smtp"
	"strings"
)

// SMTPMailer sends plain text mail through a single SMTP relay.
type SMTPMailer struct {
	addr string
	auth smtp.Auth
	from string
}

// NewSMTPMailer constructs the mailer. With an empty user no authentication
// is attempted, which suits local relays like Mailpit.
func NewSMTPMailer(host string, port int, user, password, from string) *SMTPMailer {
	var auth smtp.Auth
	if user != "" {
		auth = smtp.PlainAuth("", user, password, host)
	}
	return &SMTPMailer{
		addr: fmt.Sprintf("%s:%d", host, port),
		auth: auth,
		from: from,
	}
}

// Send delivers one message.
func (m *SMTPMailer) Send(to []string, subject, body string) error {
	msg := strings.Join([]string{
		"From: " + m.from,
		"To: " + strings.Join(to, ", "),
		"Subject: " + subject,
		"MIME-Version: 1.0",
		`Content-Type: text/plain; charset="utf-8"`,
		"",
		body,
	}, "\r\n")

	if err := smtp.SendMail(m.addr, m.auth, m.from, to, []byte(msg)); err != nil {
		return fmt.Errorf("mailer: send: %w", err)
	}
	return nil
}
