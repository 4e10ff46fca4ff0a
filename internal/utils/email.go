package utils

import (
	"bytes"
	"context"
	"html/template"

	"github.com/rs/zerolog/log"
	"github.com/wneessen/go-mail"
)

// Mailer envoie un e-mail HTML.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type SMTPMailer struct {
	cfg SMTPConfig
}

func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &SMTPMailer{cfg: cfg}
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return err
	}
	if err := msg.To(to); err != nil {
		return err
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, htmlBody)

	client, err := mail.NewClient(m.cfg.Host,
		mail.WithPort(m.cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthLogin),
		mail.WithUsername(m.cfg.Username),
		mail.WithPassword(m.cfg.Password),
		mail.WithTLSPolicy(mail.TLSMandatory),
	)
	if err != nil {
		return err
	}

	log.Info().Str("to", to).Msg("📤 Envoi de l'e-mail")
	return client.DialAndSendWithContext(ctx, msg)
}

// LogMailer journalise les e-mails au lieu de les envoyer (dev, SMTP non configuré).
type LogMailer struct{}

func (LogMailer) Send(_ context.Context, to, subject, htmlBody string) error {
	log.Warn().Str("to", to).Str("subject", subject).Int("bytes", len(htmlBody)).Msg("📭 SMTP non configuré, e-mail non envoyé")
	return nil
}

var resetPasswordTemplate = template.Must(template.New("reset").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="UTF-8">
	<title>Reset your password</title>
</head>
<body style="font-family: Arial, sans-serif; background-color: #f9f9f9; padding: 20px;">
	<div style="max-width: 600px; margin: auto; background-color: white; padding: 20px; border-radius: 10px;">
		<h2 style="color: #333;">Reset your password</h2>
		<p>Hello <b>{{.Username}}</b>,</p>
		<p>Someone asked to reset the password of your account.</p>
		<p style="text-align: center; margin: 30px 0;">
			<a href="{{.Link}}" style="background-color: #007bff; color: white; padding: 12px 30px; text-decoration: none; border-radius: 5px; display: inline-block;">Choose a new password</a>
		</p>
		<p style="font-size: 14px; color: #888;">This link is valid for one hour. If you did not ask for it, ignore this e-mail.</p>
	</div>
</body>
</html>`))

// ResetPasswordEmail construit le corps HTML du lien de réinitialisation.
func ResetPasswordEmail(username, link string) (string, error) {
	var buf bytes.Buffer
	err := resetPasswordTemplate.Execute(&buf, map[string]string{
		"Username": username,
		"Link":     link,
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
