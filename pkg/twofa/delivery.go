package twofa

import (
	"context"
	"log/slog"

	"github.com/tendant/simple-idm-twofa/pkg/notification"
)

// NotifierHandler returns a DeliveryHandler sending the token through the
// notification manager on system. The method value is the recipient.
func NotifierHandler(nm *notification.NotificationManager, system notification.NotificationSystem) DeliveryHandler {
	return func(ctx context.Context, user User, token string, method MethodData) (bool, error) {
		err := nm.Send(ctx, notification.TwofaCodeNotice, system, notification.NotificationData{
			To: method.Value,
			Data: map[string]string{
				"TwofaPasscode": token,
				"Username":      user.account(),
			},
		})
		if err != nil {
			slog.Error("Failed to send 2fa token", "type", method.Type, "to", MaskValue(method.Value), "error", err)
			return false, err
		}
		return true, nil
	}
}

// RegisterNotifierHandlers registers email and sms handlers for every system
// the manager has a notifier for.
func RegisterNotifierHandlers(registry *Registry, nm *notification.NotificationManager) {
	if nm.HasNotifier(notification.EmailSystem) {
		registry.Register(TWO_FACTOR_TYPE_EMAIL, NotifierHandler(nm, notification.EmailSystem))
	}
	if nm.HasNotifier(notification.SMSSystem) {
		registry.Register(TWO_FACTOR_TYPE_SMS, NotifierHandler(nm, notification.SMSSystem))
	}
}
