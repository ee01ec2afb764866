package notify

import (
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/nkiryanov/authkeeper/internal/logger"
)

const (
	TemplatePasswordReset = "password_reset"
	TemplateEmailChange   = "email_change"
)

// Params every template expects
const (
	ParamLink = "link"
)

// Sender delivers templated messages to an address
type Sender interface {
	Send(ctx context.Context, address string, templateID string, params map[string]string) error
}

type Message struct {
	Subject string
	Body    string
}

type messageTemplate struct {
	subject string
	body    *template.Template
}

var templates = map[string]messageTemplate{
	TemplatePasswordReset: {
		subject: "Password reset",
		body: template.Must(template.New(TemplatePasswordReset).Option("missingkey=error").Parse(
			"To reset your password follow the link: {{.link}}\n" +
				"The link is valid for one hour. If you did not request a reset, ignore this message.\n",
		)),
	},
	TemplateEmailChange: {
		subject: "Confirm email change",
		body: template.Must(template.New(TemplateEmailChange).Option("missingkey=error").Parse(
			"To confirm your new email address follow the link: {{.link}}\n" +
				"The link is valid for one hour.\n",
		)),
	},
}

// Render message from template
func Render(templateID string, params map[string]string) (Message, error) {
	t, ok := templates[templateID]
	if !ok {
		return Message{}, fmt.Errorf("unknown template %q", templateID)
	}

	var body strings.Builder
	if err := t.body.Execute(&body, params); err != nil {
		return Message{}, fmt.Errorf("error while rendering %s. Err: %w", templateID, err)
	}

	return Message{Subject: t.subject, Body: body.String()}, nil
}

// LogSender renders messages and writes them to the log instead of sending.
// Message body holds secrets, so it is logged at debug level only.
type LogSender struct {
	logger logger.Logger
}

func NewLogSender(l logger.Logger) *LogSender {
	return &LogSender{logger: l.With("component", "notify")}
}

func (s *LogSender) Send(_ context.Context, address string, templateID string, params map[string]string) error {
	msg, err := Render(templateID, params)
	if err != nil {
		return err
	}

	s.logger.Info("Message sent", "to", address, "template", templateID, "subject", msg.Subject)
	s.logger.Debug("Message body", "to", address, "body", msg.Body)
	return nil
}
