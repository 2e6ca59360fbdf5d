package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/jwtauth/v5"
)

type ExtraClaims struct {
	Username string   `json:"username,omitempty"`
	Email    string   `json:"email,omitempty"`
	Roles    []string `json:"roles,omitempty"`
}

type AuthUser struct {
	UserId      string      `json:"user_id,omitempty"`
	LoginId     string      `json:"login_id,omitempty"`
	ExtraClaims ExtraClaims `json:"extra_claims,omitempty"`
}

func (i AuthUser) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("user", i.UserId),
		slog.Any("extra_claims", i.ExtraClaims),
	)
}

// contextKey is a value for use with context.WithValue. It's used as
// a pointer so it fits in an interface{} without allocation.
type contextKey struct {
	name string
}

func (k *contextKey) String() string {
	return "twofa context value " + k.name
}

const ACCESS_TOKEN_NAME = "access_token"

var (
	AuthUserKey = &contextKey{"AuthUser"}
)

func LoadFromMap[T any](m map[string]interface{}, c *T) error {
	data, err := json.Marshal(m)
	if err == nil {
		err = json.Unmarshal(data, c)
	}
	return err
}

// AuthUserMiddleware turns the claims verified by jwtauth into an AuthUser on
// the request context. The user id comes from user_id, falling back to sub.
func AuthUserMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, claims, err := jwtauth.FromContext(r.Context())
		if err != nil {
			http.Error(w, fmt.Sprintf("missing or invalid JWT: %v", err), http.StatusUnauthorized)
			return
		}
		if claims == nil {
			http.Error(w, "missing JWT claims", http.StatusUnauthorized)
			return
		}

		authUser := new(AuthUser)
		if err := LoadFromMap(claims, authUser); err != nil {
			slog.Error("failed to parse token claims", "error", err)
			http.Error(w, "invalid token claims", http.StatusUnauthorized)
			return
		}
		if authUser.UserId == "" {
			if sub, ok := claims["sub"].(string); ok {
				authUser.UserId = sub
			}
		}
		if authUser.UserId == "" {
			http.Error(w, "missing user ID in token", http.StatusUnauthorized)
			return
		}

		slog.Debug("authenticated user", "userId", authUser.UserId, "roles", authUser.ExtraClaims.Roles)

		ctx := context.WithValue(r.Context(), AuthUserKey, authUser)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetAuthUser returns the user stored by AuthUserMiddleware
func GetAuthUser(r *http.Request) (*AuthUser, bool) {
	authUser, ok := r.Context().Value(AuthUserKey).(*AuthUser)
	if !ok || authUser == nil {
		return nil, false
	}
	return authUser, true
}

// WithAuthUser stores authUser on ctx the way AuthUserMiddleware does
func WithAuthUser(ctx context.Context, authUser *AuthUser) context.Context {
	return context.WithValue(ctx, AuthUserKey, authUser)
}

func Verifier(ja *jwtauth.JWTAuth) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return jwtauth.Verify(ja, jwtauth.TokenFromHeader, TokenFromCookie)(next)
	}
}

func TokenFromCookie(r *http.Request) string {
	cookie, err := r.Cookie(ACCESS_TOKEN_NAME)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// IsAdminWithRoles checks if the user has any of the specified admin roles
func IsAdminWithRoles(user *AuthUser, adminRoles []string) bool {
	if user == nil || user.ExtraClaims.Roles == nil {
		return false
	}

	for _, userRole := range user.ExtraClaims.Roles {
		for _, adminRole := range adminRoles {
			if userRole == adminRole {
				return true
			}
		}
	}

	return false
}
