package notification

import "context"

// Default 2FA code templates, rendered with the "TwofaPasscode" key.
const (
	twofaCodeSubject   = "Your verification code"
	twofaCodeEmailText = "Your verification code is: {{.TwofaPasscode}}\n\nIt expires in a few minutes. If you did not request it, ignore this message."
	twofaCodeEmailHtml = `<p>Your verification code is: <strong>{{.TwofaPasscode}}</strong></p>
<p>It expires in a few minutes. If you did not request it, ignore this message.</p>`
	twofaCodeSmsText = "Your verification code is: {{.TwofaPasscode}}"
)

// NotificationManagerOption is a function that configures a NotificationManager
type NotificationManagerOption func(*NotificationManager) error

// WithSMTP adds an email notifier with the provided SMTP configuration
func WithSMTP(config SMTPConfig) NotificationManagerOption {
	return func(nm *NotificationManager) error {
		emailNotifier, err := NewEmailNotifier(config)
		if err != nil {
			return err
		}
		nm.RegisterNotifier(EmailSystem, emailNotifier)
		return nil
	}
}

// WithSES adds an email notifier backed by Amazon SES. It replaces any SMTP notifier.
func WithSES(ctx context.Context, config SESConfig) NotificationManagerOption {
	return func(nm *NotificationManager) error {
		sesNotifier, err := NewSESNotifier(ctx, config)
		if err != nil {
			return err
		}
		nm.RegisterNotifier(EmailSystem, sesNotifier)
		return nil
	}
}

// WithSMSGateway adds an SMS notifier posting to an HTTP gateway
func WithSMSGateway(config SMSGatewayConfig) NotificationManagerOption {
	return func(nm *NotificationManager) error {
		nm.RegisterNotifier(SMSSystem, NewSMSNotifier(config))
		return nil
	}
}

// WithNotifier registers an arbitrary notifier, mostly useful in tests
func WithNotifier(system NotificationSystem, notifier Notifier) NotificationManagerOption {
	return func(nm *NotificationManager) error {
		nm.RegisterNotifier(system, notifier)
		return nil
	}
}

// WithTwofaCodeTemplates registers the 2FA code templates for email and SMS
func WithTwofaCodeTemplates() NotificationManagerOption {
	return func(nm *NotificationManager) error {
		if err := nm.RegisterNotification(TwofaCodeNotice, EmailSystem, NoticeTemplate{
			Subject: twofaCodeSubject,
			Text:    twofaCodeEmailText,
			Html:    twofaCodeEmailHtml,
		}); err != nil {
			return err
		}
		return nm.RegisterNotification(TwofaCodeNotice, SMSSystem, NoticeTemplate{
			Subject: twofaCodeSubject,
			Text:    twofaCodeSmsText,
		})
	}
}

// NewNotificationManagerWithOptions creates a new notification manager with the provided options
func NewNotificationManagerWithOptions(opts ...NotificationManagerOption) (*NotificationManager, error) {
	notificationManager := NewNotificationManager()

	// Apply all options
	for _, opt := range opts {
		if err := opt(notificationManager); err != nil {
			return nil, err
		}
	}

	return notificationManager, nil
}
