package mailer

import (
	"fmt"
	"net/smtp"
	"os"
	"strings"

	"go.uber.org/zap"
)

// Mailer sends transactional email over SMTP. It is a best-effort sink:
// callers log failures and move on, nothing upstream waits on delivery.
type Mailer struct {
	host     string
	port     string
	username string
	password string
	from     string
	logger   *zap.Logger
}

func NewMailer(logger *zap.Logger) *Mailer {
	return &Mailer{
		host:     getEnv("SMTP_HOST", "localhost"),
		port:     getEnv("SMTP_PORT", "587"),
		username: getEnv("SMTP_USER", ""),
		password: getEnv("SMTP_PASS", ""),
		from:     getEnv("SMTP_FROM_EMAIL", "no-reply@localhost"),
		logger:   logger,
	}
}

type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

func (m *Mailer) Send(msg Message) error {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	if msg.HTML != "" {
		b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
		b.WriteString(msg.HTML)
	} else {
		b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n\r\n")
		b.WriteString(msg.Text)
	}

	addr := m.host + ":" + m.port
	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}

	if err := smtp.SendMail(addr, auth, m.from, []string{msg.To}, []byte(b.String())); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	m.logger.Info("Email sent", zap.String("to", msg.To), zap.String("subject", msg.Subject))
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
