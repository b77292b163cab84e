package notification

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"time"

	"github.com/wneessen/go-mail"
)

// SMTPConfig configures the email notifier's mail client.
type SMTPConfig struct {
	Host     string
	Port     int
	TLS      bool
	Username string
	Password string
	From     string
}

// EmailNotifier delivers notices over SMTP.
type EmailNotifier struct {
	config SMTPConfig
	client *mail.Client
}

// NewEmailNotifier creates a new SMTP-backed notifier.
func NewEmailNotifier(config SMTPConfig) (*EmailNotifier, error) {
	opts := []mail.Option{
		mail.WithPort(config.Port),
		mail.WithTimeout(30 * time.Second),
	}

	if config.Username != "" && config.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthLogin),
			mail.WithUsername(config.Username),
			mail.WithPassword(config.Password),
		)
	}

	if !config.TLS {
		slog.Info("Using NoTLS policy for SMTP", "host", config.Host)
		opts = append(opts,
			mail.WithTLSConfig(&tls.Config{InsecureSkipVerify: true}),
			mail.WithTLSPolicy(mail.NoTLS),
		)
	}

	client, err := mail.NewClient(config.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create mail client: %w", err)
	}

	return &EmailNotifier{config: config, client: client}, nil
}

// Send delivers one notice as an email.
func (n *EmailNotifier) Send(notifType Type, data Data) error {
	msg := mail.NewMsg()
	if err := msg.From(n.config.From); err != nil {
		return fmt.Errorf("failed to set from address: %w", err)
	}
	if err := msg.To(data.To); err != nil {
		return fmt.Errorf("failed to set to address: %w", err)
	}

	subject := data.Subject
	if subject == "" {
		subject = fmt.Sprintf("Notice: %s", notifType)
	}
	msg.Subject(subject)

	body := data.Body
	for key, value := range data.Fields {
		body += fmt.Sprintf("\n%s: %s", key, value)
	}
	msg.SetBodyString(mail.TypeTextPlain, body)

	if err := n.client.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	slog.Info("Notification email sent", "type", notifType, "to", data.To)
	return nil
}
