package config

import (
	"context"
	"time"

	"github.com/tendant/simple-idm-twofa/pkg/notification"
)

// EmailConfig holds SMTP email configuration
type EmailConfig struct {
	Enabled  bool   `env:"EMAIL_ENABLED" env-default:"true"`
	Host     string `env:"EMAIL_HOST" env-default:"localhost"`
	Port     uint16 `env:"EMAIL_PORT" env-default:"1025"`
	Username string `env:"EMAIL_USERNAME"`
	Password string `env:"EMAIL_PASSWORD"`
	From     string `env:"EMAIL_FROM" env-default:"noreply@example.com"`
	TLS      bool   `env:"EMAIL_TLS" env-default:"false"`
}

// ToSMTPConfig converts the config to a notification.SMTPConfig
func (e EmailConfig) ToSMTPConfig() notification.SMTPConfig {
	return notification.SMTPConfig{
		Host:     e.Host,
		Port:     int(e.Port),
		Username: e.Username,
		Password: e.Password,
		From:     e.From,
		TLS:      e.TLS,
	}
}

// SESConfig selects Amazon SES for email. Credentials come from the default AWS chain.
type SESConfig struct {
	Region string `env:"SES_REGION"`
	From   string `env:"SES_FROM"`
}

func (s SESConfig) IsConfigured() bool {
	return s.Region != "" && s.From != ""
}

// SMSGatewayConfig holds the HTTP SMS gateway settings
type SMSGatewayConfig struct {
	URL      string        `env:"SMS_GATEWAY_URL"`
	APIToken string        `env:"SMS_GATEWAY_TOKEN"`
	From     string        `env:"SMS_FROM"`
	Timeout  time.Duration `env:"SMS_TIMEOUT" env-default:"10s"`
}

func (s SMSGatewayConfig) IsConfigured() bool {
	return s.URL != ""
}

// NotificationOptions returns the notification manager options for every
// configured channel. SES takes over email from SMTP when configured.
func (c Config) NotificationOptions(ctx context.Context) []notification.NotificationManagerOption {
	opts := []notification.NotificationManagerOption{notification.WithTwofaCodeTemplates()}
	switch {
	case c.SES.IsConfigured():
		opts = append(opts, notification.WithSES(ctx, notification.SESConfig{Region: c.SES.Region, From: c.SES.From}))
	case c.Email.Enabled:
		opts = append(opts, notification.WithSMTP(c.Email.ToSMTPConfig()))
	}
	if c.SMS.IsConfigured() {
		opts = append(opts, notification.WithSMSGateway(notification.SMSGatewayConfig{
			URL:      c.SMS.URL,
			APIToken: c.SMS.APIToken,
			From:     c.SMS.From,
			Timeout:  c.SMS.Timeout,
		}))
	}
	return opts
}
