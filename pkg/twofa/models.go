package twofa

import (
	"strings"
	"time"
	"unicode/utf8"
)

const (
	TWO_FACTOR_TYPE_EMAIL = "email"
	TWO_FACTOR_TYPE_SMS   = "sms"
)

const (
	maskVisibleChars = 3
	maskChar         = "*"
)

// User is the authenticated account a method belongs to. The service never
// loads users itself; callers hand in an identity they have already verified.
type User struct {
	ID       string
	Username string
}

// account returns the label shown next to the secret in authenticator apps
func (u User) account() string {
	if u.Username != "" {
		return u.Username
	}
	return u.ID
}

// MethodData is the user supplied identity of a delivery channel. It is
// immutable once a method is created.
type MethodData struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

func (d MethodData) label() string {
	return d.Type + "-" + d.Value
}

// Method is a persisted two-factor method.
type Method struct {
	MethodData
	ID         string     `json:"id"`
	Secret     string     `json:"-"`
	Enabled    bool       `json:"enabled"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

// EnabledMethod is what callers outside the service get to see of a method.
type EnabledMethod struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	MaskedValue string `json:"masked_value"`
}

// MethodList is a user's methods in creation order.
type MethodList []Method

// Find returns the method with the given id
func (l MethodList) Find(id string) (Method, bool) {
	for _, m := range l {
		if m.ID == id {
			return m, true
		}
	}
	return Method{}, false
}

// FindEnabled returns the method with the given id only if it is enabled
func (l MethodList) FindEnabled(id string) (Method, bool) {
	m, ok := l.Find(id)
	if !ok || !m.Enabled {
		return Method{}, false
	}
	return m, true
}

// Contains reports whether a method with the same type and value exists
func (l MethodList) Contains(data MethodData) bool {
	for _, m := range l {
		if m.Type == data.Type && m.Value == data.Value {
			return true
		}
	}
	return false
}

// Enabled returns the enabled methods, keeping their order
func (l MethodList) Enabled() MethodList {
	res := MethodList{}
	for _, m := range l {
		if m.Enabled {
			res = append(res, m)
		}
	}
	return res
}

// MaskValue keeps the first three characters of value and replaces every
// remaining character with a single '*'.
func MaskValue(value string) string {
	n := utf8.RuneCountInString(value)
	if n <= maskVisibleChars {
		return value
	}
	visible := []rune(value)[:maskVisibleChars]
	return string(visible) + strings.Repeat(maskChar, n-maskVisibleChars)
}
