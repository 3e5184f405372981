package notify

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"

	"campus-events/config"
	"campus-events/internal/util"

	"go.uber.org/zap"
)

// Attachment is an inline file carried by an email
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Email is one outbound message
type Email struct {
	To          string
	Subject     string
	Body        string
	Attachments []Attachment
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Mailer delivers email over SMTP. In mock mode messages are only logged.
type Mailer struct {
	cfg    config.MailConfig
	send   sendFunc
	logger *zap.Logger
}

// NewMailer creates a mailer for the given SMTP settings
func NewMailer(cfg config.MailConfig) *Mailer {
	return &Mailer{cfg: cfg, send: smtp.SendMail, logger: util.GetLogger()}
}

// Send delivers an email
func (m *Mailer) Send(ctx context.Context, e Email) error {
	_, span := util.StartSpan(ctx, "Mailer.Send")
	defer span.End()

	if e.To == "" {
		return fmt.Errorf("email has no recipient")
	}

	if m.cfg.MockMode {
		m.logger.Info("Mock email",
			zap.String("to", e.To),
			zap.String("subject", e.Subject),
			zap.Int("attachments", len(e.Attachments)))
		return nil
	}

	msg, err := m.compose(e)
	if err != nil {
		return err
	}

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	addr := m.cfg.Host + ":" + strconv.Itoa(m.cfg.Port)
	if err := m.send(addr, auth, m.cfg.From, []string{e.To}, msg); err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	m.logger.Info("Email sent", zap.String("to", e.To), zap.String("subject", e.Subject))
	return nil
}

// compose renders a multipart/mixed message with a text body and base64 attachments
func (m *Mailer) compose(e Email) ([]byte, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fmt.Fprintf(&buf, "From: %s\r\n", m.cfg.From)
	fmt.Fprintf(&buf, "To: %s\r\n", e.To)
	fmt.Fprintf(&buf, "Subject: %s\r\n", e.Subject)
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%s\r\n\r\n", w.Boundary())

	body, err := w.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"text/plain; charset=utf-8"},
	})
	if err != nil {
		return nil, err
	}
	if _, err := body.Write([]byte(e.Body)); err != nil {
		return nil, err
	}

	for _, a := range e.Attachments {
		part, err := w.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {a.ContentType},
			"Content-Transfer-Encoding": {"base64"},
			"Content-Disposition":       {fmt.Sprintf("attachment; filename=%q", a.Filename)},
		})
		if err != nil {
			return nil, err
		}
		if _, err := part.Write([]byte(wrap(base64.StdEncoding.EncodeToString(a.Data), 76))); err != nil {
			return nil, err
		}
	}

	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func wrap(s string, width int) string {
	var b strings.Builder
	for len(s) > width {
		b.WriteString(s[:width])
		b.WriteString("\r\n")
		s = s[width:]
	}
	b.WriteString(s)
	return b.String()
}
