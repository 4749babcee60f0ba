package email

import (
	"errors"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"go-careerdesk/config"
	"go-careerdesk/plan"
)

var ErrNotConfigured = errors.New("smtp is not configured")

// sendMail is swapped in tests.
var sendMail = smtp.SendMail

type Sender struct {
	cfg config.SMTPConfig
}

func NewSender(cfg config.SMTPConfig) *Sender {
	return &Sender{cfg: cfg}
}

// Enabled reports whether every SMTP setting is present. A nil Sender is disabled.
func (s *Sender) Enabled() bool {
	if s == nil {
		return false
	}
	c := s.cfg
	return c.Server != "" && c.Port != "" && c.User != "" && c.Pass != "" && c.FromAddr != ""
}

func (s *Sender) Send(to, subject, body string) error {
	if !s.Enabled() {
		return ErrNotConfigured
	}
	if strings.ContainsAny(to, "\r\n") || strings.ContainsAny(subject, "\r\n") {
		return fmt.Errorf("invalid header value")
	}
	fromName := s.cfg.FromName
	if fromName == "" {
		fromName = "CareerDesk"
	}
	msg := []byte(fmt.Sprintf("From: %s <%s>\r\n"+
		"To: %s\r\n"+
		"Subject: %s\r\n"+
		"Content-Type: text/plain; charset=UTF-8\r\n\r\n"+
		"%s",
		fromName, s.cfg.FromAddr, to, subject, body))

	auth := smtp.PlainAuth("", s.cfg.User, s.cfg.Pass, s.cfg.Server)
	if err := sendMail(s.cfg.Server+":"+s.cfg.Port, auth, s.cfg.FromAddr, []string{to}, msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// SendPlanChanged tells a user their plan moved, with the date it lapses when known.
func (s *Sender) SendPlanChanged(to string, p plan.Plan, expiresAt *time.Time) error {
	subject := "Your CareerDesk plan has changed"
	var b strings.Builder
	fmt.Fprintf(&b, "Your account is now on the %s plan.\n", p)
	if expiresAt != nil {
		fmt.Fprintf(&b, "It is valid until %s.\n", expiresAt.UTC().Format("2 Jan 2006"))
	}
	if p == plan.Free {
		b.WriteString("\nYou can upgrade again at any time from your account page.\n")
	}
	return s.Send(to, subject, b.String())
}

// SendVerification mails the link that confirms ownership of a new account.
func (s *Sender) SendVerification(to, link string) error {
	subject := "Please verify your email address for your CareerDesk account"
	body := fmt.Sprintf("Click the link below to verify your email address:\n\n%s\n\nThis link will expire in 24 hours.", link)
	return s.Send(to, subject, body)
}
