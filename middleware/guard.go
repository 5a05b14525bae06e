package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/sentinelgrid/authcore"
)

// Authenticator resolves a bearer token. [*authcore.Engine] satisfies it.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*authcore.Principal, error)
}

// ErrorWriter renders a rejected request.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, status int, err error)

type principalContextKey struct{}

// PrincipalFromContext returns the principal injected by [Guard].
func PrincipalFromContext(ctx context.Context) (*authcore.Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(*authcore.Principal)
	return p, ok && p != nil
}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p *authcore.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

type options struct {
	onError ErrorWriter
}

// Option customizes a guard.
type Option func(*options)

// WithErrorWriter replaces the default plain-text error response.
func WithErrorWriter(fn ErrorWriter) Option {
	return func(o *options) {
		if fn != nil {
			o.onError = fn
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{onError: defaultErrorWriter}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func defaultErrorWriter(w http.ResponseWriter, _ *http.Request, status int, _ error) {
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="authcore"`)
	}
	http.Error(w, strings.ToLower(http.StatusText(status)), status)
}

// Guard authenticates every request and stores the principal in its context.
// Token failures get 401, inactive accounts 403 and a store outage 503.
func Guard(engine Authenticator, opts ...Option) func(http.Handler) http.Handler {
	o := buildOptions(opts)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				o.onError(w, r, http.StatusServiceUnavailable, authcore.ErrEngineNotReady)
				return
			}

			token, ok := BearerToken(r)
			if !ok {
				o.onError(w, r, http.StatusUnauthorized, authcore.ErrNoCredential)
				return
			}

			p, err := engine.Authenticate(r.Context(), token)
			if err != nil {
				o.onError(w, r, StatusFor(err), err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// BearerToken extracts the token from an Authorization: Bearer header. The
// scheme is matched case-insensitively.
func BearerToken(r *http.Request) (string, bool) {
	value := r.Header.Get("Authorization")
	const bearer = "bearer "
	if len(value) <= len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}

// StatusFor maps an Engine error to the HTTP status class the guards use.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, authcore.ErrForbidden),
		errors.Is(err, authcore.ErrAccountInactive):
		return http.StatusForbidden
	case errors.Is(err, authcore.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, authcore.ErrEngineNotReady):
		return http.StatusInternalServerError
	default:
		return http.StatusUnauthorized
	}
}
