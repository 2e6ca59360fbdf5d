package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// SMSGatewayConfig points at an HTTP SMS gateway accepting
// {"from": ..., "to": ..., "body": ...} JSON posts.
type SMSGatewayConfig struct {
	URL      string
	APIToken string
	From     string
	Timeout  time.Duration
}

type SMSNotifier struct {
	SMSGatewayConfig SMSGatewayConfig
	client           *http.Client
}

type smsMessage struct {
	From string `json:"from,omitempty"`
	To   string `json:"to"`
	Body string `json:"body"`
}

func NewSMSNotifier(config SMSGatewayConfig) *SMSNotifier {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SMSNotifier{
		SMSGatewayConfig: config,
		client:           &http.Client{Timeout: timeout},
	}
}

func (s *SMSNotifier) Send(ctx context.Context, noticeType NoticeType, notification NotificationData, template NoticeTemplate) error {
	body := notification.Body
	if body == "" {
		rendered, err := renderText(template.Text, notification.Data)
		if err != nil {
			return err
		}
		body = rendered
	}
	if notification.To == "" || body == "" {
		return fmt.Errorf("SMS notification requires 'To' and 'Body'")
	}

	payload, err := json.Marshal(smsMessage{From: s.SMSGatewayConfig.From, To: notification.To, Body: body})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.SMSGatewayConfig.URL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.SMSGatewayConfig.APIToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.SMSGatewayConfig.APIToken)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		slog.Error("Failed to reach sms gateway", "err", err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sms gateway returned status %d", resp.StatusCode)
	}

	slog.Info("Successfully sent sms", "noticeType", noticeType, "status", resp.StatusCode)
	return nil
}
