package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/MrEthical07/goAuthClient/jwt"
)

// AccessCookieName is the cookie the backend stores the access token in.
const AccessCookieName = "accessToken"

type claimsContextKey struct{}

// Validator verifies an access token and returns its claims.
type Validator interface {
	ValidateAccess(ctx context.Context, token string) (*jwt.AccessClaims, error)
}

// ValidatorFunc adapts a function to Validator.
type ValidatorFunc func(ctx context.Context, token string) (*jwt.AccessClaims, error)

func (f ValidatorFunc) ValidateAccess(ctx context.Context, token string) (*jwt.AccessClaims, error) {
	return f(ctx, token)
}

func ClaimsFromContext(ctx context.Context) (*jwt.AccessClaims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(*jwt.AccessClaims)
	return claims, ok
}

// CookieGuard rejects requests without a valid access token with a bare 401,
// the signal the client gateway treats as credential expiry.
func CookieGuard(v Validator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := authenticate(r, v)
			if !ok {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func authenticate(r *http.Request, v Validator) (*jwt.AccessClaims, bool) {
	if v == nil {
		return nil, false
	}
	token, ok := accessToken(r)
	if !ok {
		return nil, false
	}
	claims, err := v.ValidateAccess(r.Context(), token)
	if err != nil || claims == nil {
		return nil, false
	}
	return claims, true
}

// accessToken prefers the cookie and falls back to a bearer header.
func accessToken(r *http.Request) (string, bool) {
	if c, err := r.Cookie(AccessCookieName); err == nil && c.Value != "" {
		return c.Value, true
	}
	return bearerToken(r.Header.Get("Authorization"))
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
