package middleware

import (
	"net/http"

	"github.com/sentinelgrid/authcore"
	"github.com/sentinelgrid/authcore/permission"
)

// Authorizer checks a principal against a required role. [*authcore.Engine]
// satisfies it.
type Authorizer interface {
	Authorize(p *authcore.Principal, required permission.Role) error
}

// RequireRole admits principals whose role is at least required. It must run
// after [Guard]; a request without a principal gets 401.
func RequireRole(engine Authorizer, required permission.Role, opts ...Option) func(http.Handler) http.Handler {
	o := buildOptions(opts)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				o.onError(w, r, http.StatusUnauthorized, authcore.ErrNoCredential)
				return
			}

			var err error
			if engine != nil {
				err = engine.Authorize(p, required)
			} else if !permission.Allows(p.Role, required) {
				err = authcore.ErrForbidden
			}
			if err != nil {
				o.onError(w, r, http.StatusForbidden, err)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
