package twofa

import (
	"log/slog"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	PERIOD         = 30
	DEFAULT_WINDOW = 2
	SECRET_SIZE    = 20
)

// TotpProvider wraps the TOTP primitive. window is the number of periods
// accepted on either side of the current one.
type TotpProvider interface {
	GenerateSecret(label, account string) (string, error)
	GenerateToken(secret string) (string, error)
	VerifyToken(secret, token string, window uint) bool
}

// PquernaProvider implements TotpProvider with github.com/pquerna/otp.
type PquernaProvider struct {
	period    uint
	digits    otp.Digits
	algorithm otp.Algorithm
	now       func() time.Time
}

type PquernaProviderOption func(*PquernaProvider)

// WithPeriod overrides the 30 second step
func WithPeriod(period uint) PquernaProviderOption {
	return func(p *PquernaProvider) {
		p.period = period
	}
}

// WithProviderClock overrides the clock used for token generation and verification
func WithProviderClock(now func() time.Time) PquernaProviderOption {
	return func(p *PquernaProvider) {
		p.now = now
	}
}

func NewPquernaProvider(opts ...PquernaProviderOption) *PquernaProvider {
	p := &PquernaProvider{
		period:    PERIOD,
		digits:    otp.DigitsSix,
		algorithm: otp.AlgorithmSHA1,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *PquernaProvider) GenerateSecret(label, account string) (string, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      label,
		AccountName: account,
		Period:      p.period,
		Digits:      p.digits,
		Algorithm:   p.algorithm,
		SecretSize:  SECRET_SIZE,
	})
	if err != nil {
		slog.Error("Failed to generate totp secret", "account", account, "error", err)
		return "", err
	}
	return key.Secret(), nil
}

func (p *PquernaProvider) GenerateToken(secret string) (string, error) {
	code, err := totp.GenerateCodeCustom(secret, p.now().UTC(), p.validateOpts(0))
	if err != nil {
		slog.Error("Failed to generate totp token", "error", err)
		return "", err
	}
	return code, nil
}

func (p *PquernaProvider) VerifyToken(secret, token string, window uint) bool {
	valid, err := totp.ValidateCustom(token, secret, p.now().UTC(), p.validateOpts(window))
	if err != nil {
		// malformed tokens are just invalid
		slog.Debug("Totp validation error", "error", err)
		return false
	}
	return valid
}

func (p *PquernaProvider) validateOpts(skew uint) totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    p.period,
		Skew:      skew,
		Digits:    p.digits,
		Algorithm: p.algorithm,
	}
}
