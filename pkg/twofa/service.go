package twofa

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-idm-twofa/pkg/ratelimit"
)

const DEFAULT_DELIVERY_TIMEOUT = 30 * time.Second

type TwoFactorService interface {
	AddMethod(ctx context.Context, user User, data MethodData, send bool) (string, error)
	CheckToken(ctx context.Context, user User, methodID, token string) (bool, error)
	EnableMethod(ctx context.Context, user User, methodID, token string) error
	DisableMethod(ctx context.Context, user User, methodID string, remove bool) error
	ListEnabledMethods(ctx context.Context, user User) ([]EnabledMethod, error)
	SendToken(ctx context.Context, user User, methodID string) (bool, error)
}

// TwoFaService manages a user's two-factor methods. It keeps no state of its
// own between calls; per-user consistency comes from the repository.
type TwoFaService struct {
	repo            MethodRepository
	registry        *Registry
	provider        TotpProvider
	window          uint
	deliveryTimeout time.Duration
	limiter         ratelimit.Limiter
	minSendInterval time.Duration
	sealer          SecretSealer
	metrics         *Metrics
	now             func() time.Time
	newID           func() string
}

type Option func(*TwoFaService)

// WithWindow sets how many periods either side of now CheckToken accepts
func WithWindow(window uint) Option {
	return func(s *TwoFaService) {
		s.window = window
	}
}

// WithDeliveryTimeout bounds each delivery handler call
func WithDeliveryTimeout(timeout time.Duration) Option {
	return func(s *TwoFaService) {
		if timeout > 0 {
			s.deliveryTimeout = timeout
		}
	}
}

// WithSendLimiter throttles SendToken per user and method
func WithSendLimiter(limiter ratelimit.Limiter) Option {
	return func(s *TwoFaService) {
		s.limiter = limiter
	}
}

// WithMinSendInterval refuses SendToken while the method's last successful
// delivery is more recent than interval
func WithMinSendInterval(interval time.Duration) Option {
	return func(s *TwoFaService) {
		s.minSendInterval = interval
	}
}

// WithSecretSealer seals secrets before they reach the repository
func WithSecretSealer(sealer SecretSealer) Option {
	return func(s *TwoFaService) {
		s.sealer = sealer
	}
}

func WithMetrics(metrics *Metrics) Option {
	return func(s *TwoFaService) {
		s.metrics = metrics
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *TwoFaService) {
		s.now = now
	}
}

func WithIDGenerator(newID func() string) Option {
	return func(s *TwoFaService) {
		s.newID = newID
	}
}

func NewTwoFaService(repo MethodRepository, registry *Registry, provider TotpProvider, opts ...Option) *TwoFaService {
	s := &TwoFaService{
		repo:            repo,
		registry:        registry,
		provider:        provider,
		window:          DEFAULT_WINDOW,
		deliveryTimeout: DEFAULT_DELIVERY_TIMEOUT,
		now:             time.Now,
		newID:           func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.registry == nil {
		s.registry = NewRegistry()
	}
	return s
}

// AddMethod creates a disabled method for user. With send set, a token is
// generated and delivered so the user can enable the method. Once the method
// is stored its id is returned even when delivery fails; the error then tells
// the caller the token never went out.
func (s *TwoFaService) AddMethod(ctx context.Context, user User, data MethodData, send bool) (id string, err error) {
	defer func() { s.metrics.observe("add", err) }()

	if err := requireUser(user); err != nil {
		return "", err
	}
	if strings.TrimSpace(data.Type) == "" || strings.TrimSpace(data.Value) == "" {
		return "", ErrInvalidInput
	}

	methods, err := s.repo.ListMethods(ctx, user.ID)
	if err != nil {
		return "", fmt.Errorf("failed to load methods: %w", err)
	}
	if methods.Contains(data) {
		return "", ErrDuplicateMethod.WithDetail("type", data.Type)
	}

	secret, err := s.provider.GenerateSecret(data.label(), user.account())
	if err != nil {
		return "", ErrTokenGenerationFailed.WithCause(err)
	}
	stored, err := s.seal(secret)
	if err != nil {
		return "", err
	}

	method := Method{
		MethodData: data,
		ID:         s.newID(),
		Secret:     stored,
		Enabled:    false,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.repo.AddMethod(ctx, user.ID, method); err != nil {
		if errors.Is(err, ErrDuplicateMethod) {
			return "", err
		}
		return "", fmt.Errorf("failed to add method: %w", err)
	}
	slog.Info("Two-factor method added", "userId", user.ID, "methodId", method.ID, "type", data.Type, "value", MaskValue(data.Value))

	if !send {
		return method.ID, nil
	}

	token, err := s.provider.GenerateToken(secret)
	if err != nil {
		return method.ID, ErrTokenGenerationFailed.WithCause(err)
	}
	if err := s.deliver(ctx, user, data, token); err != nil {
		return method.ID, err
	}
	s.touch(ctx, user, method.ID)
	return method.ID, nil
}

// CheckToken verifies token against the method's secret using the configured window
func (s *TwoFaService) CheckToken(ctx context.Context, user User, methodID, token string) (bool, error) {
	return s.CheckTokenWindow(ctx, user, methodID, token, s.window)
}

// CheckTokenWindow verifies token, accepting window periods on either side of now.
// It works on disabled methods too so it can gate EnableMethod.
func (s *TwoFaService) CheckTokenWindow(ctx context.Context, user User, methodID, token string, window uint) (valid bool, err error) {
	defer func() { s.metrics.observe("check", verifyErr(valid, err)) }()

	method, err := s.findMethod(ctx, user, methodID, false)
	if err != nil {
		return false, err
	}
	secret, err := s.secretOf(method)
	if err != nil {
		return false, err
	}
	return s.provider.VerifyToken(secret, token, window), nil
}

// EnableMethod marks the method enabled once token proves the user received it
func (s *TwoFaService) EnableMethod(ctx context.Context, user User, methodID, token string) (err error) {
	defer func() { s.metrics.observe("enable", err) }()

	valid, err := s.CheckToken(ctx, user, methodID, token)
	if err != nil {
		return err
	}
	if !valid {
		slog.Info("Rejected token for method enable", "userId", user.ID, "methodId", methodID)
		return ErrInvalidToken
	}
	if err := s.repo.SetEnabled(ctx, user.ID, methodID, true); err != nil {
		return repoErr("enable method", err)
	}
	slog.Info("Two-factor method enabled", "userId", user.ID, "methodId", methodID)
	return nil
}

// DisableMethod disables the method, or deletes it when remove is set. No
// token is required; callers wanting proof of possession must check first.
func (s *TwoFaService) DisableMethod(ctx context.Context, user User, methodID string, remove bool) (err error) {
	op := "disable"
	if remove {
		op = "remove"
	}
	defer func() { s.metrics.observe(op, err) }()

	if err := requireUser(user); err != nil {
		return err
	}
	if remove {
		err = s.repo.RemoveMethod(ctx, user.ID, methodID)
	} else {
		err = s.repo.SetEnabled(ctx, user.ID, methodID, false)
	}
	if err != nil {
		return repoErr(op+" method", err)
	}
	slog.Info("Two-factor method disabled", "userId", user.ID, "methodId", methodID, "removed", remove)
	return nil
}

// ListEnabledMethods returns the enabled methods with their values masked
func (s *TwoFaService) ListEnabledMethods(ctx context.Context, user User) ([]EnabledMethod, error) {
	if err := requireUser(user); err != nil {
		return nil, err
	}
	methods, err := s.repo.ListMethods(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load methods: %w", err)
	}

	res := []EnabledMethod{}
	for _, m := range methods.Enabled() {
		res = append(res, EnabledMethod{
			ID:          m.ID,
			Type:        m.Type,
			MaskedValue: MaskValue(m.Value),
		})
	}
	return res, nil
}

// SendToken delivers a fresh token to an enabled method and records the
// time of the successful delivery.
func (s *TwoFaService) SendToken(ctx context.Context, user User, methodID string) (delivered bool, err error) {
	defer func() { s.metrics.observe("send", err) }()

	method, err := s.findMethod(ctx, user, methodID, true)
	if err != nil {
		return false, err
	}

	if s.minSendInterval > 0 && method.LastUsedAt != nil && s.now().Sub(*method.LastUsedAt) < s.minSendInterval {
		return false, ErrSendTooSoon.WithDetail("id", methodID)
	}
	if s.limiter != nil {
		ok, err := s.limiter.Allow(ctx, user.ID+":"+methodID)
		if err != nil {
			return false, fmt.Errorf("failed to check send limit: %w", err)
		}
		if !ok {
			return false, ErrSendTooSoon
		}
	}

	secret, err := s.secretOf(method)
	if err != nil {
		return false, err
	}
	token, err := s.provider.GenerateToken(secret)
	if err != nil {
		return false, ErrTokenGenerationFailed.WithCause(err)
	}
	if err := s.deliver(ctx, user, method.MethodData, token); err != nil {
		return false, err
	}

	s.touch(ctx, user, methodID)
	return true, nil
}

// touch records a successful delivery. The token is already out, so a store
// failure is only logged.
func (s *TwoFaService) touch(ctx context.Context, user User, methodID string) {
	if err := s.repo.TouchLastUsed(ctx, user.ID, methodID, s.now().UTC()); err != nil {
		slog.Warn("Failed to record method use", "userId", user.ID, "methodId", methodID, "error", err)
	}
}

type deliveryResult struct {
	ok  bool
	err error
}

// deliver runs the first handler registered for the method type with a
// bounded timeout. A false result, an error or a timeout are all failures.
func (s *TwoFaService) deliver(ctx context.Context, user User, data MethodData, token string) (err error) {
	handler, ok := s.registry.Lookup(data.Type)
	if !ok {
		slog.Warn("No delivery handler for method type", "type", data.Type)
		return ErrNoHandlerForType.WithDetail("type", data.Type)
	}

	start := s.now()
	defer func() { s.metrics.observeDelivery(data.Type, err, s.now().Sub(start)) }()

	ctx, cancel := context.WithTimeout(ctx, s.deliveryTimeout)
	defer cancel()

	done := make(chan deliveryResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- deliveryResult{err: fmt.Errorf("delivery handler panicked: %v", r)}
			}
		}()
		ok, err := handler(ctx, user, token, data)
		done <- deliveryResult{ok: ok, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return ErrDeliveryFailed.WithCause(res.err).WithDetail("type", data.Type)
		}
		if !res.ok {
			return ErrDeliveryFailed.WithDetail("type", data.Type)
		}
		return nil
	case <-ctx.Done():
		slog.Warn("Delivery handler did not finish in time", "type", data.Type, "timeout", s.deliveryTimeout)
		return ErrDeliveryFailed.WithCause(ctx.Err()).WithDetail("type", data.Type)
	}
}

// findMethod loads one of the user's methods. With enabledOnly a disabled
// method is reported as not found.
func (s *TwoFaService) findMethod(ctx context.Context, user User, methodID string, enabledOnly bool) (Method, error) {
	if err := requireUser(user); err != nil {
		return Method{}, err
	}
	methods, err := s.repo.ListMethods(ctx, user.ID)
	if err != nil {
		return Method{}, fmt.Errorf("failed to load methods: %w", err)
	}

	var method Method
	var found bool
	if enabledOnly {
		method, found = methods.FindEnabled(methodID)
	} else {
		method, found = methods.Find(methodID)
	}
	if !found {
		return Method{}, ErrMethodNotFound.WithDetail("id", methodID)
	}
	return method, nil
}

func (s *TwoFaService) seal(secret string) (string, error) {
	if s.sealer == nil {
		return secret, nil
	}
	sealed, err := s.sealer.Seal(secret)
	if err != nil {
		return "", fmt.Errorf("failed to seal secret: %w", err)
	}
	return sealed, nil
}

// secretOf returns the method's usable secret
func (s *TwoFaService) secretOf(method Method) (string, error) {
	if method.Secret == "" {
		slog.Error("Two-factor method has no secret", "methodId", method.ID)
		return "", ErrMethodCorrupt.WithDetail("id", method.ID)
	}
	if s.sealer == nil {
		return method.Secret, nil
	}
	secret, err := s.sealer.Open(method.Secret)
	if err != nil {
		slog.Error("Failed to open method secret", "methodId", method.ID, "error", err)
		return "", ErrMethodCorrupt.WithCause(err).WithDetail("id", method.ID)
	}
	return secret, nil
}

func requireUser(user User) error {
	if user.ID == "" {
		return ErrNotAuthenticated
	}
	return nil
}

// repoErr passes domain errors through and wraps everything else
func repoErr(action string, err error) error {
	if errors.Is(err, ErrMethodNotFound) {
		return err
	}
	return fmt.Errorf("failed to %s: %w", action, err)
}

// verifyErr folds an invalid token into the error outcome for metrics
func verifyErr(valid bool, err error) error {
	if err == nil && !valid {
		return ErrInvalidToken
	}
	return err
}
