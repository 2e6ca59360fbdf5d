package twofa

import (
	"context"
)

// NoOpTwoFactorService is a no-op implementation of TwoFactorService.
// This allows services that depend on TwoFactorService to work without
// actual 2FA functionality when 2FA is not needed/configured.
//
// Mutating methods return ErrNotConfigured; listing returns no methods.
type NoOpTwoFactorService struct{}

// NewNoOpTwoFactorService creates a new no-op two-factor service.
func NewNoOpTwoFactorService() TwoFactorService {
	return &NoOpTwoFactorService{}
}

func (n *NoOpTwoFactorService) AddMethod(ctx context.Context, user User, data MethodData, send bool) (string, error) {
	return "", ErrNotConfigured
}

func (n *NoOpTwoFactorService) CheckToken(ctx context.Context, user User, methodID, token string) (bool, error) {
	return false, ErrNotConfigured
}

func (n *NoOpTwoFactorService) EnableMethod(ctx context.Context, user User, methodID, token string) error {
	return ErrNotConfigured
}

func (n *NoOpTwoFactorService) DisableMethod(ctx context.Context, user User, methodID string, remove bool) error {
	return ErrNotConfigured
}

func (n *NoOpTwoFactorService) ListEnabledMethods(ctx context.Context, user User) ([]EnabledMethod, error) {
	return []EnabledMethod{}, nil // no methods means 2FA is never required
}

func (n *NoOpTwoFactorService) SendToken(ctx context.Context, user User, methodID string) (bool, error) {
	return false, ErrNotConfigured
}
