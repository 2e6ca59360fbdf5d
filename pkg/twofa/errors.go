package twofa

import (
	idmerrors "github.com/tendant/simple-idm-twofa/pkg/errors"
)

var (
	ErrNotAuthenticated      = idmerrors.New(idmerrors.ErrCodeUnauthorized, "user not logged in")
	ErrInvalidInput          = idmerrors.New(idmerrors.ErrCodeInvalidInput, "method type and value are required")
	ErrDuplicateMethod       = idmerrors.New(idmerrors.ErrCode2FAMethodExists, "method already exists")
	ErrMethodNotFound        = idmerrors.New(idmerrors.ErrCode2FAMethodNotFound, "method not found")
	ErrMethodCorrupt         = idmerrors.New(idmerrors.ErrCode2FAMethodCorrupt, "method was not installed correctly")
	ErrInvalidToken          = idmerrors.New(idmerrors.ErrCode2FAInvalid, "invalid token")
	ErrTokenGenerationFailed = idmerrors.New(idmerrors.ErrCode2FATokenGenerationFailed, "unable to generate token")
	ErrNoHandlerForType      = idmerrors.New(idmerrors.ErrCode2FANoHandler, "no delivery handler registered for method type")
	ErrDeliveryFailed        = idmerrors.New(idmerrors.ErrCode2FADeliveryFailed, "token delivery failed")
	ErrSendTooSoon           = idmerrors.New(idmerrors.ErrCodeRateLimitExceeded, "token was sent too recently")
	ErrNotConfigured         = idmerrors.New(idmerrors.ErrCodeNotConfigured, "two-factor authentication not configured")
)
