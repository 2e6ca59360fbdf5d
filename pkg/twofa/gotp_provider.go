package twofa

import (
	"crypto/subtle"
	"encoding/base32"
	"errors"
	"strings"
	"time"

	"github.com/xlzd/gotp"
)

const gotpSecretLength = 32

// GotpProvider implements TotpProvider with github.com/xlzd/gotp. The library
// has no notion of issuer or skew, so label and account are ignored and the
// window is checked step by step.
type GotpProvider struct {
	now func() time.Time
}

func NewGotpProvider() *GotpProvider {
	return &GotpProvider{now: time.Now}
}

// WithClock returns a copy of the provider using now as its clock
func (p *GotpProvider) WithClock(now func() time.Time) *GotpProvider {
	return &GotpProvider{now: now}
}

func (p *GotpProvider) GenerateSecret(label, account string) (string, error) {
	secret := gotp.RandomSecret(gotpSecretLength)
	if secret == "" {
		return "", errors.New("gotp returned an empty secret")
	}
	return secret, nil
}

func (p *GotpProvider) GenerateToken(secret string) (string, error) {
	if err := validGotpSecret(secret); err != nil {
		return "", err
	}
	token := gotp.NewDefaultTOTP(secret).At(p.now().Unix())
	if token == "" {
		return "", errors.New("gotp returned an empty token")
	}
	return token, nil
}

func (p *GotpProvider) VerifyToken(secret, token string, window uint) bool {
	if token == "" || validGotpSecret(secret) != nil {
		return false
	}
	t := gotp.NewDefaultTOTP(secret)
	now := p.now().Unix()
	w := int64(window)
	for i := -w; i <= w; i++ {
		candidate := t.At(now + i*PERIOD)
		if subtle.ConstantTimeCompare([]byte(candidate), []byte(token)) == 1 {
			return true
		}
	}
	return false
}

// validGotpSecret rejects secrets gotp cannot decode; the library panics on them
func validGotpSecret(secret string) error {
	if secret == "" {
		return errors.New("secret is required")
	}
	if _, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(strings.TrimRight(secret, "=")); err != nil {
		return errors.New("secret is not valid base32")
	}
	return nil
}
