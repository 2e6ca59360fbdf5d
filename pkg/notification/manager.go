package notification

import (
	"context"
	"fmt"
	"sync"
)

// NotificationManager manages notifiers and notification templates.
type NotificationManager struct {
	mu                   sync.RWMutex
	notifiers            map[NotificationSystem]Notifier                      // Map of notification systems to their Notifier implementations
	notificationRegistry map[NoticeType]map[NotificationSystem]NoticeTemplate // Registry for notification templates
}

// NewNotificationManager creates and returns a new NotificationManager.
func NewNotificationManager() *NotificationManager {
	return &NotificationManager{
		notifiers:            make(map[NotificationSystem]Notifier),
		notificationRegistry: make(map[NoticeType]map[NotificationSystem]NoticeTemplate),
	}
}

// RegisterNotifier registers a notifier for a specific system.
func (nm *NotificationManager) RegisterNotifier(system NotificationSystem, notifier Notifier) {
	nm.mu.Lock()
	defer nm.mu.Unlock()
	nm.notifiers[system] = notifier
}

// HasNotifier reports whether a notifier is registered for system.
func (nm *NotificationManager) HasNotifier(system NotificationSystem) bool {
	nm.mu.RLock()
	defer nm.mu.RUnlock()
	_, ok := nm.notifiers[system]
	return ok
}

// RegisterNotification adds or replaces the template for a notice type on a system.
func (nm *NotificationManager) RegisterNotification(noticeType NoticeType, system NotificationSystem, template NoticeTemplate) error {
	if noticeType == "" || system == "" {
		return fmt.Errorf("invalid input: notice type and system cannot be empty")
	}
	if template.Text == "" && template.Html == "" {
		return fmt.Errorf("invalid input: template needs a text or html body")
	}

	nm.mu.Lock()
	defer nm.mu.Unlock()

	if _, exists := nm.notificationRegistry[noticeType]; !exists {
		nm.notificationRegistry[noticeType] = make(map[NotificationSystem]NoticeTemplate)
	}
	nm.notificationRegistry[noticeType][system] = template
	return nil
}

// Send renders nothing itself: it resolves the template and notifier for the
// system and hands both to the notifier.
func (nm *NotificationManager) Send(ctx context.Context, noticeType NoticeType, system NotificationSystem, notification NotificationData) error {
	nm.mu.RLock()
	systemTemplates, exists := nm.notificationRegistry[noticeType]
	if !exists {
		nm.mu.RUnlock()
		return fmt.Errorf("no templates registered for notice type: %s", noticeType)
	}
	template, exists := systemTemplates[system]
	if !exists {
		nm.mu.RUnlock()
		return fmt.Errorf("no template registered for system: %s under notice type: %s", system, noticeType)
	}
	notifier, exists := nm.notifiers[system]
	nm.mu.RUnlock()
	if !exists {
		return fmt.Errorf("no notifier registered for system: %s", system)
	}

	return notifier.Send(ctx, noticeType, notification, template)
}
