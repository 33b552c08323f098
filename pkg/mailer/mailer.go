package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"html/template"
	"time"

	"gopkg.in/mail.v2"
)

const (
	TemplateTest             = "test"
	TemplatePasswordRecovery = "password_recovery"
)

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	SSL      bool
}

// SMTPMailer sends rendered templates through an SMTP relay.
type SMTPMailer struct {
	cfg    Config
	dialer *mail.Dialer
}

func NewSMTPMailer(cfg Config) *SMTPMailer {
	d := mail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.Timeout = 20 * time.Second
	d.SSL = cfg.SSL
	if cfg.SSL {
		d.TLSConfig = &tls.Config{ServerName: cfg.Host}
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	return &SMTPMailer{cfg: cfg, dialer: d}
}

func (m *SMTPMailer) Send(ctx context.Context, to, templateName string, params map[string]string) error {
	subject, body, err := Render(templateName, params)
	if err != nil {
		return err
	}

	msg := mail.NewMessage()
	msg.SetHeader("From", m.cfg.From)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body)

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}
	return nil
}

type mailTemplate struct {
	subject string
	body    *template.Template
}

var templates = map[string]mailTemplate{
	TemplateTest: {
		subject: "Test message",
		body: template.Must(template.New(TemplateTest).Parse(
			`<p>Hello {{.name}},</p><p>this is a test message from Social Feed.</p>`)),
	},
	TemplatePasswordRecovery: {
		subject: "Reset your password",
		body: template.Must(template.New(TemplatePasswordRecovery).Parse(
			`<p>Hello {{.name}},</p>` +
				`<p>Follow <a href="{{.link}}">this link</a> to choose a new password.</p>` +
				`<p>The link expires in {{.expires}}.</p>`)),
	},
}

// Render returns the subject and HTML body for a known template.
func Render(templateName string, params map[string]string) (string, string, error) {
	tpl, ok := templates[templateName]
	if !ok {
		return "", "", fmt.Errorf("unknown mail template %q", templateName)
	}

	var buf bytes.Buffer
	if err := tpl.body.Execute(&buf, params); err != nil {
		return "", "", fmt.Errorf("failed to render template %s: %w", templateName, err)
	}
	return tpl.subject, buf.String(), nil
}
