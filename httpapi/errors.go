package httpapi

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/sentinelgrid/authcore"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type apiError struct {
	status  int
	code    string
	message string
}

var errorTable = []struct {
	target error
	apiError
}{
	{authcore.ErrSessionInvalidationFailed, apiError{http.StatusInternalServerError, "session_invalidation_failed", "update applied but sessions could not be revoked"}},
	{authcore.ErrStoreUnavailable, apiError{http.StatusServiceUnavailable, "store_unavailable", "service temporarily unavailable"}},
	{authcore.ErrInvalidCredentials, apiError{http.StatusUnauthorized, "invalid_credentials", "invalid email or password"}},
	{authcore.ErrAccountInactive, apiError{http.StatusForbidden, "account_inactive", "account is inactive"}},
	{authcore.ErrNoCredential, apiError{http.StatusUnauthorized, "no_credential", "missing credentials"}},
	{authcore.ErrTokenExpired, apiError{http.StatusUnauthorized, "token_expired", "token expired"}},
	{authcore.ErrTokenRevoked, apiError{http.StatusUnauthorized, "token_revoked", "token revoked"}},
	{authcore.ErrTokenReuseDetected, apiError{http.StatusUnauthorized, "token_reuse_detected", "refresh token reuse detected; all sessions ended"}},
	{authcore.ErrTokenInvalid, apiError{http.StatusUnauthorized, "token_invalid", "token invalid"}},
	{authcore.ErrLoginRateLimited, apiError{http.StatusTooManyRequests, "rate_limited", "too many login attempts"}},
	{authcore.ErrPasswordResetRateLimited, apiError{http.StatusTooManyRequests, "rate_limited", "too many password reset requests"}},
	{authcore.ErrForbidden, apiError{http.StatusForbidden, "forbidden", "insufficient role"}},
	{authcore.ErrDuplicateEmail, apiError{http.StatusConflict, "duplicate_email", "email already registered"}},
	{authcore.ErrWeakPassword, apiError{http.StatusBadRequest, "weak_password", "password does not meet policy"}},
	{authcore.ErrInvalidEmail, apiError{http.StatusBadRequest, "invalid_email", "invalid email"}},
	{authcore.ErrInvalidRole, apiError{http.StatusBadRequest, "invalid_role", "role must be viewer, analyst or admin"}},
	{authcore.ErrUserNotFound, apiError{http.StatusNotFound, "user_not_found", "user not found"}},
	// One message for every reset-token failure.
	{authcore.ErrResetTokenInvalid, apiError{http.StatusBadRequest, "reset_token_invalid", "reset token is invalid or expired"}},
	{authcore.ErrResetTokenExpired, apiError{http.StatusBadRequest, "reset_token_invalid", "reset token is invalid or expired"}},
	{authcore.ErrResetTokenUsed, apiError{http.StatusBadRequest, "reset_token_invalid", "reset token is invalid or expired"}},
	{authcore.ErrEngineNotReady, apiError{http.StatusInternalServerError, "engine_not_ready", "service not ready"}},
}

var internalError = apiError{http.StatusInternalServerError, "internal_error", "internal error"}

func classify(err error) apiError {
	for _, e := range errorTable {
		if errors.Is(err, e.target) {
			return e.apiError
		}
	}
	return internalError
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

// writeEngineError maps an Engine error to its response. Rate-limit errors
// carry Retry-After in whole seconds.
func writeEngineError(w http.ResponseWriter, err error) {
	e := classify(err)
	if wait, ok := authcore.RetryAfter(err); ok && wait > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
	}
	writeError(w, e.status, e.code, e.message)
}

func writeBadRequest(w http.ResponseWriter, err error) {
	writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
}

// guardErrorWriter renders middleware rejections in the API's JSON shape.
func guardErrorWriter(w http.ResponseWriter, _ *http.Request, status int, err error) {
	e := classify(err)
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="authcore"`)
	}
	writeError(w, status, e.code, e.message)
}
