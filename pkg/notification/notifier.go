package notification

import (
	"bytes"
	"context"
	htmltemplate "html/template"
	"text/template"
)

// NotificationSystem represents a delivery channel (e.g., email, SMS).
type NotificationSystem string

// NoticeType identifies what a notification is about (e.g., a 2FA code).
type NoticeType string

const (
	EmailSystem NotificationSystem = "email"
	SMSSystem   NotificationSystem = "sms"

	TwofaCodeNotice NoticeType = "twofa_code"
)

type NotificationData struct {
	To      string            // Recipient identifier (e.g., email address, phone number)
	Subject string            // Optional: Subject for notifications like email
	Body    string            // The content or message to send
	Data    map[string]string // Template data (e.g., the passcode)
}

// NoticeTemplate holds the templates rendered with NotificationData.Data
type NoticeTemplate struct {
	Subject string
	Text    string
	Html    string
}

type Notifier interface {
	Send(ctx context.Context, noticeType NoticeType, notification NotificationData, template NoticeTemplate) error
}

// renderText executes a text template against data
func renderText(tmpl string, data map[string]string) (string, error) {
	if tmpl == "" {
		return "", nil
	}
	t, err := template.New("text").Parse(tmpl)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// renderHtml executes an HTML template against data, escaping values
func renderHtml(tmpl string, data map[string]string) (string, error) {
	if tmpl == "" {
		return "", nil
	}
	t, err := htmltemplate.New("html").Parse(tmpl)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
