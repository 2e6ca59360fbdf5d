package twofa

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-idm-twofa/pkg/ratelimit"
)

var alice = User{ID: "user-alice", Username: "alice"}

var aliceEmail = MethodData{Type: TWO_FACTOR_TYPE_EMAIL, Value: "alice@example.com"}

type serviceFixture struct {
	service  *TwoFaService
	repo     *InMemoryMethodRepository
	registry *Registry
	provider *PquernaProvider
	clock    *fakeClock
}

func newServiceFixture(opts ...Option) *serviceFixture {
	clock := newFakeClock()
	f := &serviceFixture{
		repo:     NewInMemoryMethodRepository(),
		registry: NewRegistry(),
		provider: NewPquernaProvider(WithProviderClock(clock.Now)),
		clock:    clock,
	}
	opts = append([]Option{WithClock(clock.Now), WithIDGenerator(sequentialIDs())}, opts...)
	f.service = NewTwoFaService(f.repo, f.registry, f.provider, opts...)
	return f
}

// currentToken returns the token the provider would issue right now for the method
func (f *serviceFixture) currentToken(t *testing.T, user User, methodID string) string {
	t.Helper()
	methods, err := f.repo.ListMethods(context.Background(), user.ID)
	require.NoError(t, err)
	m, ok := methods.Find(methodID)
	require.True(t, ok)
	token, err := f.provider.GenerateToken(m.Secret)
	require.NoError(t, err)
	return token
}

func (f *serviceFixture) method(t *testing.T, user User, methodID string) Method {
	t.Helper()
	methods, err := f.repo.ListMethods(context.Background(), user.ID)
	require.NoError(t, err)
	m, ok := methods.Find(methodID)
	require.True(t, ok, "method %s should exist", methodID)
	return m
}

func (f *serviceFixture) addEnabled(t *testing.T, user User, data MethodData) string {
	t.Helper()
	ctx := context.Background()
	id, err := f.service.AddMethod(ctx, user, data, false)
	require.NoError(t, err)
	require.NoError(t, f.service.EnableMethod(ctx, user, id, f.currentToken(t, user, id)))
	return id
}

func TestEnableAndListScenario(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()

	id, err := f.service.AddMethod(ctx, alice, aliceEmail, false)
	require.NoError(t, err)
	assert.Equal(t, "m1", id)

	enabled, err := f.service.ListEnabledMethods(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, []EnabledMethod{}, enabled)

	require.NoError(t, f.service.EnableMethod(ctx, alice, "m1", f.currentToken(t, alice, "m1")))

	enabled, err = f.service.ListEnabledMethods(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, []EnabledMethod{
		{ID: "m1", Type: "email", MaskedValue: "ali" + strings.Repeat("*", 14)},
	}, enabled)
}

func TestAddMethod(t *testing.T) {
	ctx := context.Background()

	t.Run("fresh method is disabled and carries a secret", func(t *testing.T) {
		f := newServiceFixture()
		id, err := f.service.AddMethod(ctx, alice, aliceEmail, false)
		require.NoError(t, err)

		m := f.method(t, alice, id)
		assert.False(t, m.Enabled)
		assert.NotEmpty(t, m.Secret)
		assert.Equal(t, aliceEmail, m.MethodData)
		assert.Equal(t, f.clock.Now(), m.CreatedAt)
		assert.Nil(t, m.LastUsedAt)
	})

	t.Run("duplicate", func(t *testing.T) {
		f := newServiceFixture()
		_, err := f.service.AddMethod(ctx, alice, aliceEmail, false)
		require.NoError(t, err)

		_, err = f.service.AddMethod(ctx, alice, aliceEmail, false)
		assert.ErrorIs(t, err, ErrDuplicateMethod)

		// another user may use the same address
		_, err = f.service.AddMethod(ctx, User{ID: "user-bob"}, aliceEmail, false)
		assert.NoError(t, err)
	})

	t.Run("ids are unique per user", func(t *testing.T) {
		f := newServiceFixture()
		seen := map[string]bool{}
		for _, v := range []string{"a@example.com", "b@example.com", "c@example.com"} {
			id, err := f.service.AddMethod(ctx, alice, MethodData{Type: "email", Value: v}, false)
			require.NoError(t, err)
			assert.False(t, seen[id])
			seen[id] = true
		}
	})

	t.Run("invalid input", func(t *testing.T) {
		f := newServiceFixture()
		for _, data := range []MethodData{{}, {Type: "email"}, {Value: "a@example.com"}, {Type: "  ", Value: "a@example.com"}, {Type: "email", Value: "\t"}} {
			_, err := f.service.AddMethod(ctx, alice, data, false)
			assert.ErrorIs(t, err, ErrInvalidInput, "%+v", data)
		}
		methods, _ := f.repo.ListMethods(ctx, alice.ID)
		assert.Empty(t, methods)
	})

	t.Run("not authenticated", func(t *testing.T) {
		f := newServiceFixture()
		_, err := f.service.AddMethod(ctx, User{}, aliceEmail, false)
		assert.ErrorIs(t, err, ErrNotAuthenticated)
	})

	t.Run("send delivers a token that enables the method", func(t *testing.T) {
		f := newServiceFixture()
		h := &recordingHandler{result: true}
		f.registry.Register(TWO_FACTOR_TYPE_EMAIL, h.handle)

		id, err := f.service.AddMethod(ctx, alice, aliceEmail, true)
		require.NoError(t, err)
		require.NotEmpty(t, h.last())

		lastUsed := f.method(t, alice, id).LastUsedAt
		require.NotNil(t, lastUsed)
		assert.True(t, f.clock.Now().UTC().Equal(*lastUsed))

		require.NoError(t, f.service.EnableMethod(ctx, alice, id, h.last()))
		assert.True(t, f.method(t, alice, id).Enabled)
	})

	t.Run("send without handler keeps the method and returns its id", func(t *testing.T) {
		f := newServiceFixture()
		id, err := f.service.AddMethod(ctx, alice, aliceEmail, true)
		assert.ErrorIs(t, err, ErrNoHandlerForType)
		assert.Equal(t, "m1", id)
		assert.False(t, f.method(t, alice, id).Enabled)
	})

	t.Run("failed delivery keeps the method and returns its id", func(t *testing.T) {
		f := newServiceFixture()
		h := &recordingHandler{result: false}
		f.registry.Register(TWO_FACTOR_TYPE_EMAIL, h.handle)

		id, err := f.service.AddMethod(ctx, alice, aliceEmail, true)
		assert.ErrorIs(t, err, ErrDeliveryFailed)
		assert.Equal(t, "m1", id)
		assert.Nil(t, f.method(t, alice, id).LastUsedAt)
	})

	t.Run("concurrent duplicates admit exactly one", func(t *testing.T) {
		f := newServiceFixture()
		var wg sync.WaitGroup
		errs := make(chan error, 10)
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := f.service.AddMethod(ctx, alice, aliceEmail, false)
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)

		ok := 0
		for err := range errs {
			if err == nil {
				ok++
				continue
			}
			assert.ErrorIs(t, err, ErrDuplicateMethod)
		}
		assert.Equal(t, 1, ok)
	})
}

func TestCheckToken(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture()
	id, err := f.service.AddMethod(ctx, alice, aliceEmail, false)
	require.NoError(t, err)
	token := f.currentToken(t, alice, id)

	valid, err := f.service.CheckToken(ctx, alice, id, token)
	require.NoError(t, err)
	assert.True(t, valid, "works before the method is enabled")

	// two periods of drift are inside the default window
	f.clock.Advance(2 * PERIOD * time.Second)
	valid, err = f.service.CheckToken(ctx, alice, id, token)
	require.NoError(t, err)
	assert.True(t, valid)

	f.clock.Advance(PERIOD * time.Second)
	valid, err = f.service.CheckToken(ctx, alice, id, token)
	require.NoError(t, err)
	assert.False(t, valid)

	valid, err = f.service.CheckTokenWindow(ctx, alice, id, token, 3)
	require.NoError(t, err)
	assert.True(t, valid)

	valid, err = f.service.CheckToken(ctx, alice, id, "not-a-token")
	require.NoError(t, err)
	assert.False(t, valid)

	_, err = f.service.CheckToken(ctx, alice, "missing", token)
	assert.ErrorIs(t, err, ErrMethodNotFound)

	_, err = f.service.CheckToken(ctx, User{ID: "user-bob"}, id, token)
	assert.ErrorIs(t, err, ErrMethodNotFound)

	assert.False(t, f.method(t, alice, id).Enabled, "checking never mutates")
}

func TestCheckTokenCorruptMethod(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture()
	require.NoError(t, f.repo.AddMethod(ctx, alice.ID, Method{
		MethodData: aliceEmail,
		ID:         "broken",
		CreatedAt:  f.clock.Now(),
	}))

	_, err := f.service.CheckToken(ctx, alice, "broken", "123456")
	assert.ErrorIs(t, err, ErrMethodCorrupt)
}

func TestSendTokenUndecodableSecret(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	repo := NewInMemoryMethodRepository()
	registry := NewRegistry()
	h := &recordingHandler{result: true}
	registry.Register(TWO_FACTOR_TYPE_EMAIL, h.handle)
	service := NewTwoFaService(repo, registry, NewGotpProvider().WithClock(clock.Now), WithClock(clock.Now))

	require.NoError(t, repo.AddMethod(ctx, alice.ID, Method{
		MethodData: aliceEmail,
		ID:         "garbled",
		Secret:     "not-base32!!",
		Enabled:    true,
		CreatedAt:  clock.Now(),
	}))

	assert.NotPanics(t, func() {
		delivered, err := service.SendToken(ctx, alice, "garbled")
		assert.False(t, delivered)
		assert.ErrorIs(t, err, ErrTokenGenerationFailed)

		valid, err := service.CheckToken(ctx, alice, "garbled", "123456")
		assert.NoError(t, err)
		assert.False(t, valid)
	})
	assert.Empty(t, h.last())
}

func TestEnableMethod(t *testing.T) {
	ctx := context.Background()

	t.Run("wrong token", func(t *testing.T) {
		f := newServiceFixture()
		id, err := f.service.AddMethod(ctx, alice, aliceEmail, false)
		require.NoError(t, err)

		assert.ErrorIs(t, f.service.EnableMethod(ctx, alice, id, "abcdef"), ErrInvalidToken)
		assert.False(t, f.method(t, alice, id).Enabled)
	})

	t.Run("expired token", func(t *testing.T) {
		f := newServiceFixture()
		id, err := f.service.AddMethod(ctx, alice, aliceEmail, false)
		require.NoError(t, err)
		token := f.currentToken(t, alice, id)

		f.clock.Advance(10 * time.Minute)
		assert.ErrorIs(t, f.service.EnableMethod(ctx, alice, id, token), ErrInvalidToken)
		assert.False(t, f.method(t, alice, id).Enabled)
	})

	t.Run("missing method", func(t *testing.T) {
		f := newServiceFixture()
		assert.ErrorIs(t, f.service.EnableMethod(ctx, alice, "missing", "123456"), ErrMethodNotFound)
	})
}

func TestDisableMethod(t *testing.T) {
	ctx := context.Background()

	t.Run("keep then re-enable", func(t *testing.T) {
		f := newServiceFixture()
		id := f.addEnabled(t, alice, aliceEmail)

		require.NoError(t, f.service.DisableMethod(ctx, alice, id, false))
		assert.False(t, f.method(t, alice, id).Enabled)
		enabled, err := f.service.ListEnabledMethods(ctx, alice)
		require.NoError(t, err)
		assert.Empty(t, enabled)

		require.NoError(t, f.service.EnableMethod(ctx, alice, id, f.currentToken(t, alice, id)))
		assert.True(t, f.method(t, alice, id).Enabled)
	})

	t.Run("remove", func(t *testing.T) {
		f := newServiceFixture()
		id := f.addEnabled(t, alice, aliceEmail)
		token := f.currentToken(t, alice, id)

		require.NoError(t, f.service.DisableMethod(ctx, alice, id, true))

		_, err := f.service.CheckToken(ctx, alice, id, token)
		assert.ErrorIs(t, err, ErrMethodNotFound)
		assert.ErrorIs(t, f.service.EnableMethod(ctx, alice, id, token), ErrMethodNotFound)
		_, err = f.service.SendToken(ctx, alice, id)
		assert.ErrorIs(t, err, ErrMethodNotFound)
		assert.ErrorIs(t, f.service.DisableMethod(ctx, alice, id, false), ErrMethodNotFound)
		assert.ErrorIs(t, f.service.DisableMethod(ctx, alice, id, true), ErrMethodNotFound)

		// re-adding creates a fresh method
		newID, err := f.service.AddMethod(ctx, alice, aliceEmail, false)
		require.NoError(t, err)
		assert.NotEqual(t, id, newID)
		assert.False(t, f.method(t, alice, newID).Enabled)
	})

	t.Run("not authenticated", func(t *testing.T) {
		f := newServiceFixture()
		assert.ErrorIs(t, f.service.DisableMethod(ctx, User{}, "m1", true), ErrNotAuthenticated)
	})
}

func TestListEnabledMethods(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture()

	email := f.addEnabled(t, alice, aliceEmail)
	_, err := f.service.AddMethod(ctx, alice, MethodData{Type: TWO_FACTOR_TYPE_SMS, Value: "+15550100"}, false)
	require.NoError(t, err)
	short := f.addEnabled(t, alice, MethodData{Type: "pager", Value: "42"})

	enabled, err := f.service.ListEnabledMethods(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, []EnabledMethod{
		{ID: email, Type: "email", MaskedValue: "ali" + strings.Repeat("*", 14)},
		{ID: short, Type: "pager", MaskedValue: "42"},
	}, enabled)

	_, err = f.service.ListEnabledMethods(ctx, User{})
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestSendToken(t *testing.T) {
	ctx := context.Background()

	t.Run("success records last use", func(t *testing.T) {
		f := newServiceFixture()
		h := &recordingHandler{result: true}
		f.registry.Register(TWO_FACTOR_TYPE_EMAIL, h.handle)
		id := f.addEnabled(t, alice, aliceEmail)

		f.clock.Advance(time.Minute)
		start := f.clock.Now()
		delivered, err := f.service.SendToken(ctx, alice, id)
		require.NoError(t, err)
		assert.True(t, delivered)

		m := f.method(t, alice, id)
		require.NotNil(t, m.LastUsedAt)
		assert.False(t, m.LastUsedAt.Before(start))

		valid, err := f.service.CheckToken(ctx, alice, id, h.last())
		require.NoError(t, err)
		assert.True(t, valid)
	})

	t.Run("no handler", func(t *testing.T) {
		f := newServiceFixture()
		id := f.addEnabled(t, alice, aliceEmail)

		delivered, err := f.service.SendToken(ctx, alice, id)
		assert.ErrorIs(t, err, ErrNoHandlerForType)
		assert.False(t, delivered)
		assert.Nil(t, f.method(t, alice, id).LastUsedAt)
	})

	t.Run("handler reports failure", func(t *testing.T) {
		f := newServiceFixture()
		f.registry.Register(TWO_FACTOR_TYPE_EMAIL, (&recordingHandler{result: false}).handle)
		id := f.addEnabled(t, alice, aliceEmail)

		delivered, err := f.service.SendToken(ctx, alice, id)
		assert.ErrorIs(t, err, ErrDeliveryFailed)
		assert.False(t, delivered)
		assert.Nil(t, f.method(t, alice, id).LastUsedAt)
	})

	t.Run("handler error", func(t *testing.T) {
		f := newServiceFixture()
		boom := errors.New("smtp unavailable")
		f.registry.Register(TWO_FACTOR_TYPE_EMAIL, (&recordingHandler{err: boom}).handle)
		id := f.addEnabled(t, alice, aliceEmail)

		_, err := f.service.SendToken(ctx, alice, id)
		assert.ErrorIs(t, err, ErrDeliveryFailed)
		assert.ErrorIs(t, err, boom)
		assert.Nil(t, f.method(t, alice, id).LastUsedAt)
	})

	t.Run("handler timeout", func(t *testing.T) {
		f := newServiceFixture(WithDeliveryTimeout(20 * time.Millisecond))
		f.registry.Register(TWO_FACTOR_TYPE_EMAIL, func(ctx context.Context, _ User, _ string, _ MethodData) (bool, error) {
			<-ctx.Done()
			time.Sleep(10 * time.Millisecond)
			return true, nil
		})
		id := f.addEnabled(t, alice, aliceEmail)

		delivered, err := f.service.SendToken(ctx, alice, id)
		assert.ErrorIs(t, err, ErrDeliveryFailed)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.False(t, delivered)
		assert.Nil(t, f.method(t, alice, id).LastUsedAt)
	})

	t.Run("handler panic", func(t *testing.T) {
		f := newServiceFixture()
		f.registry.Register(TWO_FACTOR_TYPE_EMAIL, func(context.Context, User, string, MethodData) (bool, error) {
			panic("bad handler")
		})
		id := f.addEnabled(t, alice, aliceEmail)

		_, err := f.service.SendToken(ctx, alice, id)
		assert.ErrorIs(t, err, ErrDeliveryFailed)
	})

	t.Run("first registration wins", func(t *testing.T) {
		f := newServiceFixture()
		first := &recordingHandler{result: true}
		second := &recordingHandler{result: true}
		f.registry.Register(TWO_FACTOR_TYPE_EMAIL, first.handle)
		f.registry.Register(TWO_FACTOR_TYPE_EMAIL, second.handle)
		id := f.addEnabled(t, alice, aliceEmail)

		_, err := f.service.SendToken(ctx, alice, id)
		require.NoError(t, err)
		assert.NotEmpty(t, first.last())
		assert.Empty(t, second.last())
	})

	t.Run("disabled method", func(t *testing.T) {
		f := newServiceFixture()
		f.registry.Register(TWO_FACTOR_TYPE_EMAIL, (&recordingHandler{result: true}).handle)
		id, err := f.service.AddMethod(ctx, alice, aliceEmail, false)
		require.NoError(t, err)

		_, err = f.service.SendToken(ctx, alice, id)
		assert.ErrorIs(t, err, ErrMethodNotFound)
	})

	t.Run("minimum interval", func(t *testing.T) {
		f := newServiceFixture(WithMinSendInterval(time.Minute))
		f.registry.Register(TWO_FACTOR_TYPE_EMAIL, (&recordingHandler{result: true}).handle)
		id := f.addEnabled(t, alice, aliceEmail)

		_, err := f.service.SendToken(ctx, alice, id)
		require.NoError(t, err)

		f.clock.Advance(30 * time.Second)
		_, err = f.service.SendToken(ctx, alice, id)
		assert.ErrorIs(t, err, ErrSendTooSoon)

		f.clock.Advance(31 * time.Second)
		_, err = f.service.SendToken(ctx, alice, id)
		assert.NoError(t, err)
	})

	t.Run("send limiter", func(t *testing.T) {
		limiter := ratelimit.NewRateLimiter(1, 0.0001, 0)
		f := newServiceFixture(WithSendLimiter(limiter))
		f.registry.Register(TWO_FACTOR_TYPE_EMAIL, (&recordingHandler{result: true}).handle)
		id := f.addEnabled(t, alice, aliceEmail)

		_, err := f.service.SendToken(ctx, alice, id)
		require.NoError(t, err)
		_, err = f.service.SendToken(ctx, alice, id)
		assert.ErrorIs(t, err, ErrSendTooSoon)
	})
}

func TestSecretSealing(t *testing.T) {
	ctx := context.Background()
	sealer, err := NewAESSecretSealer("a-long-enough-passphrase")
	require.NoError(t, err)

	f := newServiceFixture(WithSecretSealer(sealer))
	h := &recordingHandler{result: true}
	f.registry.Register(TWO_FACTOR_TYPE_EMAIL, h.handle)

	id, err := f.service.AddMethod(ctx, alice, aliceEmail, true)
	require.NoError(t, err)

	stored := f.method(t, alice, id).Secret
	plain, err := sealer.Open(stored)
	require.NoError(t, err)
	assert.NotEqual(t, plain, stored)

	require.NoError(t, f.service.EnableMethod(ctx, alice, id, h.last()))

	// a service with a different key cannot open the secret
	other, err := NewAESSecretSealer("another-long-passphrase")
	require.NoError(t, err)
	misconfigured := NewTwoFaService(f.repo, NewRegistry(), f.provider, WithSecretSealer(other), WithClock(f.clock.Now))
	_, err = misconfigured.CheckToken(ctx, alice, id, h.last())
	assert.ErrorIs(t, err, ErrMethodCorrupt)
}

func TestMetrics(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	f := newServiceFixture(WithMetrics(metrics))

	_, err := f.service.AddMethod(ctx, alice, aliceEmail, false)
	require.NoError(t, err)
	_, err = f.service.AddMethod(ctx, alice, aliceEmail, false)
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.operations.WithLabelValues("add", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.operations.WithLabelValues("add", "error")))
}

// mockRepository lets tests inject store failures
type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) ListMethods(ctx context.Context, userID string) (MethodList, error) {
	args := m.Called(ctx, userID)
	list, _ := args.Get(0).(MethodList)
	return list, args.Error(1)
}

func (m *mockRepository) AddMethod(ctx context.Context, userID string, method Method) error {
	return m.Called(ctx, userID, method).Error(0)
}

func (m *mockRepository) SetEnabled(ctx context.Context, userID, methodID string, enabled bool) error {
	return m.Called(ctx, userID, methodID, enabled).Error(0)
}

func (m *mockRepository) RemoveMethod(ctx context.Context, userID, methodID string) error {
	return m.Called(ctx, userID, methodID).Error(0)
}

func (m *mockRepository) TouchLastUsed(ctx context.Context, userID, methodID string, at time.Time) error {
	return m.Called(ctx, userID, methodID, at).Error(0)
}

func TestServiceStoreFailures(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	provider := NewPquernaProvider(WithProviderClock(clock.Now))
	secret, err := provider.GenerateSecret("email-alice@example.com", "alice")
	require.NoError(t, err)
	enabled := MethodList{{MethodData: aliceEmail, ID: "m1", Secret: secret, Enabled: true, CreatedAt: clock.Now()}}

	t.Run("list failure is not a domain error", func(t *testing.T) {
		repo := &mockRepository{}
		repo.On("ListMethods", mock.Anything, alice.ID).Return(nil, errors.New("connection reset"))
		service := NewTwoFaService(repo, NewRegistry(), provider)

		_, err := service.AddMethod(ctx, alice, aliceEmail, false)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrDuplicateMethod)
		repo.AssertNotCalled(t, "AddMethod", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("store rejects a duplicate the pre-check missed", func(t *testing.T) {
		repo := &mockRepository{}
		repo.On("ListMethods", mock.Anything, alice.ID).Return(MethodList{}, nil)
		repo.On("AddMethod", mock.Anything, alice.ID, mock.AnythingOfType("twofa.Method")).Return(ErrDuplicateMethod)
		service := NewTwoFaService(repo, NewRegistry(), provider)

		_, err := service.AddMethod(ctx, alice, aliceEmail, true)
		assert.ErrorIs(t, err, ErrDuplicateMethod)
	})

	t.Run("touch failure still reports delivery", func(t *testing.T) {
		repo := &mockRepository{}
		repo.On("ListMethods", mock.Anything, alice.ID).Return(enabled, nil)
		repo.On("TouchLastUsed", mock.Anything, alice.ID, "m1", mock.Anything).Return(errors.New("timeout"))
		registry := NewRegistry()
		registry.Register(TWO_FACTOR_TYPE_EMAIL, (&recordingHandler{result: true}).handle)
		service := NewTwoFaService(repo, registry, provider, WithClock(clock.Now))

		delivered, err := service.SendToken(ctx, alice, "m1")
		require.NoError(t, err)
		assert.True(t, delivered)
		repo.AssertExpectations(t)
	})

	t.Run("enable races with remove", func(t *testing.T) {
		repo := &mockRepository{}
		repo.On("ListMethods", mock.Anything, alice.ID).Return(enabled, nil)
		repo.On("SetEnabled", mock.Anything, alice.ID, "m1", true).Return(ErrMethodNotFound)
		service := NewTwoFaService(repo, NewRegistry(), provider, WithClock(clock.Now))

		token, err := provider.GenerateToken(secret)
		require.NoError(t, err)
		assert.ErrorIs(t, service.EnableMethod(ctx, alice, "m1", token), ErrMethodNotFound)
	})
}

func TestNoOpTwoFactorService(t *testing.T) {
	ctx := context.Background()
	svc := NewNoOpTwoFactorService()

	_, err := svc.AddMethod(ctx, alice, aliceEmail, true)
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.ErrorIs(t, svc.EnableMethod(ctx, alice, "m1", "123456"), ErrNotConfigured)
	assert.ErrorIs(t, svc.DisableMethod(ctx, alice, "m1", false), ErrNotConfigured)
	_, err = svc.SendToken(ctx, alice, "m1")
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = svc.CheckToken(ctx, alice, "m1", "123456")
	assert.ErrorIs(t, err, ErrNotConfigured)

	methods, err := svc.ListEnabledMethods(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, methods)
}
