package notification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

const charsetUTF8 = "UTF-8"

type SESConfig struct {
	Region string
	From   string
}

// SESSender is the part of the SES client the notifier needs
type SESSender interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESNotifier delivers email through Amazon SES instead of SMTP.
type SESNotifier struct {
	SESConfig SESConfig
	client    SESSender
}

// NewSESNotifier loads the default AWS credential chain for the configured region.
func NewSESNotifier(ctx context.Context, cfg SESConfig) (*SESNotifier, error) {
	if cfg.From == "" {
		return nil, fmt.Errorf("ses notifier requires a from address")
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	return NewSESNotifierWithClient(cfg, ses.NewFromConfig(awsCfg)), nil
}

func NewSESNotifierWithClient(cfg SESConfig, client SESSender) *SESNotifier {
	return &SESNotifier{SESConfig: cfg, client: client}
}

func (s *SESNotifier) Send(ctx context.Context, noticeType NoticeType, notification NotificationData, noticeTemplate NoticeTemplate) error {
	if notification.To == "" {
		return fmt.Errorf("email notification requires 'To' address")
	}

	textBody, err := renderText(noticeTemplate.Text, notification.Data)
	if err != nil {
		return err
	}
	htmlBody, err := renderHtml(noticeTemplate.Html, notification.Data)
	if err != nil {
		return err
	}

	subject := noticeTemplate.Subject
	if notification.Subject != "" {
		subject = notification.Subject
	}

	body := &types.Body{}
	if textBody != "" {
		body.Text = &types.Content{Data: aws.String(textBody), Charset: aws.String(charsetUTF8)}
	}
	if htmlBody != "" {
		body.Html = &types.Content{Data: aws.String(htmlBody), Charset: aws.String(charsetUTF8)}
	}

	out, err := s.client.SendEmail(ctx, &ses.SendEmailInput{
		Source:      aws.String(s.SESConfig.From),
		Destination: &types.Destination{ToAddresses: []string{notification.To}},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject), Charset: aws.String(charsetUTF8)},
			Body:    body,
		},
	})
	if err != nil {
		slog.Error("Failed to send email via SES", "noticeType", noticeType, "err", err)
		return err
	}

	slog.Info("Email sent via SES", "noticeType", noticeType, "messageId", aws.ToString(out.MessageId))
	return nil
}
