package email

import (
	"errors"
	"net/smtp"
	"testing"
	"time"

	"go-careerdesk/config"
	"go-careerdesk/plan"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSMTP = config.SMTPConfig{
	Server:   "smtp.example.com",
	Port:     "587",
	User:     "mailer",
	Pass:     "secret",
	FromAddr: "noreply@example.com",
	FromName: "CareerDesk",
}

func stubSendMail(t *testing.T, fn func(addr string, a smtp.Auth, from string, to []string, msg []byte) error) {
	t.Helper()
	orig := sendMail
	t.Cleanup(func() { sendMail = orig })
	sendMail = fn
}

func TestSendPlanChanged(t *testing.T) {
	var gotAddr string
	var gotTo []string
	var gotMsg string
	stubSendMail(t, func(addr string, _ smtp.Auth, _ string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, string(msg)
		return nil
	})

	until := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, NewSender(testSMTP).SendPlanChanged("a@example.com", plan.Pro, &until))

	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, []string{"a@example.com"}, gotTo)
	assert.Contains(t, gotMsg, "From: CareerDesk <noreply@example.com>\r\n")
	assert.Contains(t, gotMsg, "now on the pro plan")
	assert.Contains(t, gotMsg, "valid until 1 Jun 2026")
}

func TestSendVerification(t *testing.T) {
	var gotMsg string
	stubSendMail(t, func(_ string, _ smtp.Auth, _ string, _ []string, msg []byte) error {
		gotMsg = string(msg)
		return nil
	})

	link := "https://careerdesk.example.com/verify?token=abc-123"
	require.NoError(t, NewSender(testSMTP).SendVerification("a@example.com", link))
	assert.Contains(t, gotMsg, "Subject: Please verify your email address")
	assert.Contains(t, gotMsg, link)
	assert.Contains(t, gotMsg, "expire in 24 hours")
}

func TestSendDisabledAndFailures(t *testing.T) {
	var nilSender *Sender
	assert.False(t, nilSender.Enabled())
	assert.ErrorIs(t, NewSender(config.SMTPConfig{}).Send("a@example.com", "s", "b"), ErrNotConfigured)

	stubSendMail(t, func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("connection refused")
	})
	s := NewSender(testSMTP)
	assert.ErrorContains(t, s.Send("a@example.com", "s", "b"), "connection refused")
	assert.Error(t, s.Send("a@example.com\r\nBcc: x@example.com", "s", "b"))
}
