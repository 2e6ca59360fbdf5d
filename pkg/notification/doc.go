// Package notification delivers rendered messages over email and SMS.
//
// A NotificationManager pairs notifiers (one per NotificationSystem) with
// templates registered per NoticeType. Email goes out through SMTP
// (go-mail) or Amazon SES, SMS through a JSON HTTP gateway.
//
//	nm, err := notification.NewNotificationManagerWithOptions(
//	    notification.WithSMTP(notification.SMTPConfig{Host: "localhost", Port: 1025, From: "noreply@example.com"}),
//	    notification.WithTwofaCodeTemplates(),
//	)
//	err = nm.Send(ctx, notification.TwofaCodeNotice, notification.EmailSystem, notification.NotificationData{
//	    To:   "user@example.com",
//	    Data: map[string]string{"TwofaPasscode": "123456"},
//	})
package notification
