package twofa

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-idm-twofa/pkg/notification"
)

func newMockManager(t *testing.T, systems ...notification.NotificationSystem) (*notification.NotificationManager, map[notification.NotificationSystem]*notification.MockNotifier) {
	t.Helper()
	mocks := map[notification.NotificationSystem]*notification.MockNotifier{}
	opts := []notification.NotificationManagerOption{notification.WithTwofaCodeTemplates()}
	for _, system := range systems {
		m := &notification.MockNotifier{}
		mocks[system] = m
		opts = append(opts, notification.WithNotifier(system, m))
	}
	nm, err := notification.NewNotificationManagerWithOptions(opts...)
	require.NoError(t, err)
	return nm, mocks
}

func TestNotifierHandler(t *testing.T) {
	nm, mocks := newMockManager(t, notification.EmailSystem)
	handler := NotifierHandler(nm, notification.EmailSystem)

	ok, err := handler(context.Background(), alice, "123456", aliceEmail)
	require.NoError(t, err)
	assert.True(t, ok)

	sent := mocks[notification.EmailSystem].Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "alice@example.com", sent[0].To)
	assert.Equal(t, "123456", sent[0].Data["TwofaPasscode"])
	assert.Equal(t, "alice", sent[0].Data["Username"])
}

func TestNotifierHandlerFailure(t *testing.T) {
	nm, mocks := newMockManager(t, notification.EmailSystem)
	mocks[notification.EmailSystem].Err = errors.New("relay refused")

	ok, err := NotifierHandler(nm, notification.EmailSystem)(context.Background(), alice, "123456", aliceEmail)
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestRegisterNotifierHandlers(t *testing.T) {
	nm, mocks := newMockManager(t, notification.SMSSystem)
	registry := NewRegistry()
	RegisterNotifierHandlers(registry, nm)

	assert.Equal(t, []string{TWO_FACTOR_TYPE_SMS}, registry.Types())

	clock := newFakeClock()
	service := NewTwoFaService(NewInMemoryMethodRepository(), registry, NewPquernaProvider(WithProviderClock(clock.Now)), WithClock(clock.Now))
	ctx := context.Background()

	phone := MethodData{Type: TWO_FACTOR_TYPE_SMS, Value: "+15550100"}
	id, err := service.AddMethod(ctx, alice, phone, true)
	require.NoError(t, err)

	sent := mocks[notification.SMSSystem].Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "+15550100", sent[0].To)
	require.NoError(t, service.EnableMethod(ctx, alice, id, sent[0].Data["TwofaPasscode"]))

	_, err = service.AddMethod(ctx, alice, aliceEmail, true)
	assert.ErrorIs(t, err, ErrNoHandlerForType)
}
