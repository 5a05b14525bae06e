package httpapi

import (
	"net/http"

	"github.com/sentinelgrid/authcore"
	"github.com/sentinelgrid/authcore/middleware"
	"github.com/sentinelgrid/authcore/permission"
)

func (a *API) adminPing(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.PrincipalFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "role": string(p.Role)})
}

func (a *API) getUser(w http.ResponseWriter, r *http.Request) {
	user, err := a.engine.GetUser(r.Context(), r.PathValue("id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{User: user})
}

func (a *API) updateRole(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Role string `json:"role"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	role, err := permission.ParseRole(req.Role)
	if err != nil {
		writeEngineError(w, authcore.ErrInvalidRole)
		return
	}

	user, err := a.engine.UpdateRole(r.Context(), r.PathValue("id"), role)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{User: user})
}

func (a *API) deactivate(w http.ResponseWriter, r *http.Request) {
	user, err := a.engine.Deactivate(r.Context(), r.PathValue("id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{User: user})
}

func (a *API) activate(w http.ResponseWriter, r *http.Request) {
	user, err := a.engine.Activate(r.Context(), r.PathValue("id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{User: user})
}

func (a *API) listSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := a.engine.ActiveSessions(r.Context(), r.PathValue("id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": ids})
}

func (a *API) revokeSessions(w http.ResponseWriter, r *http.Request) {
	n, err := a.engine.LogoutAll(r.Context(), r.PathValue("id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"revoked": n})
}
