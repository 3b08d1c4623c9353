package services

import (
	"fmt"
	"html"
	"math/rand/v2"
	"net/smtp"
	"strings"

	"github.com/charmbracelet/log"

	"smartplanr/config"
)

// Mailer delivers HTML email.
type Mailer interface {
	Send(to, subject, body string) error
}

// SMTPMailer sends mail through an authenticated SMTP relay.
type SMTPMailer struct {
	cfg    config.SMTPConfig
	logger *log.Logger
}

func NewSMTPMailer(cfg config.SMTPConfig, logger *log.Logger) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, logger: logger}
}

func (m *SMTPMailer) Send(to, subject, body string) error {
	if !m.cfg.Enabled() {
		return fmt.Errorf("incomplete SMTP configuration: host=%q, port=%q, username=%q",
			m.cfg.Host, m.cfg.Port, m.cfg.Username)
	}

	addr := m.cfg.Host + ":" + m.cfg.Port
	auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)

	from := m.cfg.Username
	message := "From: " + from + "\r\n" +
		"To: " + to + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"MIME-version: 1.0;\r\nContent-Type: text/html; charset=\"UTF-8\";\r\n\r\n" +
		body

	m.logger.Debug("sending email", "to", to, "via", addr)
	if err := smtp.SendMail(addr, auth, from, []string{to}, []byte(message)); err != nil {
		return fmt.Errorf("SMTP send error: %w", err)
	}
	return nil
}

// LogMailer only logs outgoing mail. It stands in for SMTP when no relay is configured.
type LogMailer struct {
	logger *log.Logger
}

func NewLogMailer(logger *log.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(to, subject, body string) error {
	m.logger.Info("mail not sent, SMTP is not configured", "to", to, "subject", subject, "body", body)
	return nil
}

// GenerateOTP returns a numeric one-time password of the given length.
func GenerateOTP(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("length must be greater than 0")
	}
	var otp strings.Builder
	for i := 0; i < length; i++ {
		otp.WriteByte(byte('0' + rand.IntN(10)))
	}
	return otp.String(), nil
}

// GenerateREF returns a random alphanumeric reference that identifies an OTP.
func GenerateREF(length int) string {
	const characters = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	var ref strings.Builder
	for i := 0; i < length; i++ {
		ref.WriteByte(characters[rand.IntN(len(characters))])
	}
	return ref.String()
}

// ResetEmailContent renders the password reset email.
func ResetEmailContent(otp, ref string) string {
	return fmt.Sprintf(`<table width="600" cellpadding="0" cellspacing="0" border="0" bgcolor="#eeeeee">
  <tr><td align="center"><h1>SmartPlanr</h1></td></tr>
  <tr><td align="center" bgcolor="#ffffff" style="font-family:Arial;font-size:16px;line-height:24px">
    Use the code below to reset your password. It expires in 15 minutes.
  </td></tr>
  <tr><td align="center" bgcolor="#ffffff" style="font-family:Arial;font-size:18px;color:#c00">
    OTP : <strong style="color:#000">%s</strong><br>
    Ref : <strong style="color:#000">%s</strong>
  </td></tr>
</table>`, html.EscapeString(otp), html.EscapeString(ref))
}
