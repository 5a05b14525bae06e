package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/sentinelgrid/authcore"
	"github.com/sentinelgrid/authcore/middleware"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	TokenType    string        `json:"token_type"`
	ExpiresIn    int64         `json:"expires_in"`
	User         authcore.User `json:"user"`
}

type userResponse struct {
	User authcore.User `json:"user"`
}

type statusResponse struct {
	Status string `json:"status"`
}

const forgotPasswordMessage = "if the account exists, a reset link has been sent"

func (a *API) register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}

	user, err := a.engine.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, userResponse{User: user})
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}

	res, err := a.engine.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	a.writeTokens(w, res)
}

func (a *API) refresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := decodeOptionalJSON(w, r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}

	token := strings.TrimSpace(req.RefreshToken)
	if token == "" {
		if c, err := r.Cookie(refreshCookieName); err == nil {
			token = c.Value
		}
	}
	if token == "" {
		writeEngineError(w, authcore.ErrNoCredential)
		return
	}

	res, err := a.engine.Refresh(r.Context(), token)
	if err != nil {
		if errors.Is(err, authcore.ErrTokenReuseDetected) {
			a.clearRefreshCookie(w)
		}
		writeEngineError(w, err)
		return
	}
	a.writeTokens(w, res)
}

func (a *API) writeTokens(w http.ResponseWriter, res *authcore.LoginResult) {
	a.setRefreshCookie(w, res.RefreshToken, res.RefreshExpiresAt)
	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		TokenType:    res.TokenType,
		ExpiresIn:    res.ExpiresIn(a.opts.Now()),
		User:         res.User,
	})
}

func (a *API) logout(w http.ResponseWriter, r *http.Request) {
	token, ok := middleware.BearerToken(r)
	if !ok {
		guardErrorWriter(w, r, http.StatusUnauthorized, authcore.ErrNoCredential)
		return
	}

	if err := a.engine.Logout(r.Context(), token); err != nil {
		writeEngineError(w, err)
		return
	}
	a.clearRefreshCookie(w)
	writeJSON(w, http.StatusOK, statusResponse{Status: "logged_out"})
}

func (a *API) me(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeEngineError(w, authcore.ErrNoCredential)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{User: p.User})
}

func (a *API) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}

	err := a.engine.RequestPasswordReset(r.Context(), req.Email)
	switch {
	case err == nil, errors.Is(err, authcore.ErrNotifierUnavailable):
		// Delivery failures are logged and audited by the engine; the caller
		// gets the same answer as for an unknown address.
		writeJSON(w, http.StatusOK, map[string]string{"message": forgotPasswordMessage})
	default:
		writeEngineError(w, err)
	}
}

func (a *API) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token       string `json:"token"`
		NewPassword string `json:"new_password"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}

	if err := a.engine.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "password_reset"})
}

type componentHealth struct {
	Available bool    `json:"available"`
	LatencyMS float64 `json:"latency_ms"`
}

func (a *API) healthz(w http.ResponseWriter, r *http.Request) {
	h := a.engine.Health(r.Context())
	status, code := "ok", http.StatusOK
	if !h.Healthy() {
		status, code = "unavailable", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status": status,
		"redis":  componentHealth{Available: h.RedisAvailable, LatencyMS: float64(h.RedisLatency.Microseconds()) / 1000},
		"store":  componentHealth{Available: h.StoreAvailable, LatencyMS: float64(h.StoreLatency.Microseconds()) / 1000},
	})
}
