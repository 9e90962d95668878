package httptransport

import (
	"encoding/json"
	"net/http"
	"time"

	"gatehouse/internal/auth/models"
	"gatehouse/internal/guard"
	"gatehouse/internal/transport/httputil"
	id "gatehouse/pkg/domain"
	dErrors "gatehouse/pkg/domain-errors"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type registerRequest struct {
	Username string   `json:"username"`
	Password string   `json:"password"`
	Scopes   []string `json:"scopes,omitempty"`
}

type passwordChangeRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type logoutRequest struct {
	SessionID string `json:"session_id,omitempty"`
}

type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	TokenType        string `json:"token_type"`
	ExpiresIn        int64  `json:"expires_in"`
	RefreshExpiresIn int64  `json:"refresh_expires_in"`
	SessionID        string `json:"session_id"`
}

type sessionResponse struct {
	ID         string    `json:"id"`
	DeviceName string    `json:"device_name,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	LastSeenAt time.Time `json:"last_seen_at"`
	Revoked    bool      `json:"revoked"`
	Current    bool      `json:"current"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	if req.Username == "" || req.Password == "" {
		httputil.WriteError(w, r, dErrors.New(dErrors.CodeInvalidInput, "username and password are required"))
		return
	}

	result, err := h.auth.Login(r.Context(), models.LoginRequest{
		Username:  req.Username,
		Password:  req.Password,
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, newTokenResponse(result))
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decode(r, &req); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	if req.RefreshToken == "" {
		httputil.WriteError(w, r, dErrors.New(dErrors.CodeInvalidInput, "refresh_token is required"))
		return
	}

	result, err := h.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, newTokenResponse(result))
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decode(r, &req); err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	credential, err := h.credentials.Register(r.Context(), req.Username, req.Password, req.Scopes)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]string{
		"principal_id": credential.PrincipalID.String(),
		"username":     credential.Username,
	})
}

func (h *Handler) handlePasswordChange(w http.ResponseWriter, r *http.Request) {
	var req passwordChangeRequest
	if err := decode(r, &req); err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	if err := h.credentials.SetPassword(r.Context(), req.Username, req.Password); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleLogout revokes one session: the caller's own by default, or an
// explicit session ID. Idempotent.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	principal := guard.PrincipalFrom(r.Context())
	if principal == nil {
		httputil.WriteError(w, r, dErrors.New(dErrors.CodeAuthRequired, "authentication required"))
		return
	}

	var req logoutRequest
	if err := decode(r, &req); err != nil && r.ContentLength > 0 {
		httputil.WriteError(w, r, err)
		return
	}

	sessionID := principal.SessionID
	if req.SessionID != "" {
		parsed, err := id.ParseSessionID(req.SessionID)
		if err != nil {
			httputil.WriteError(w, r, dErrors.New(dErrors.CodeInvalidInput, "invalid session_id"))
			return
		}
		sessionID = parsed
	}

	if err := h.auth.Logout(r.Context(), sessionID); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	principal := guard.PrincipalFrom(r.Context())
	if principal == nil {
		httputil.WriteError(w, r, dErrors.New(dErrors.CodeAuthRequired, "authentication required"))
		return
	}

	revoked, err := h.auth.LogoutAll(r.Context(), principal.ID)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int{"sessions_revoked": revoked})
}

func (h *Handler) handleSessions(w http.ResponseWriter, r *http.Request) {
	principal := guard.PrincipalFrom(r.Context())
	if principal == nil {
		httputil.WriteError(w, r, dErrors.New(dErrors.CodeAuthRequired, "authentication required"))
		return
	}

	sessions, err := h.auth.Sessions(r.Context(), principal.ID)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	out := make([]sessionResponse, 0, len(sessions))
	for _, session := range sessions {
		out = append(out, sessionResponse{
			ID:         session.ID.String(),
			DeviceName: session.DeviceName,
			CreatedAt:  session.CreatedAt,
			LastSeenAt: session.LastSeenAt,
			Revoked:    session.Revoked,
			Current:    session.ID == principal.SessionID,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"sessions": out})
}

func newTokenResponse(result *models.TokenResult) tokenResponse {
	return tokenResponse{
		AccessToken:      result.AccessToken,
		RefreshToken:     result.RefreshToken,
		TokenType:        result.TokenType,
		ExpiresIn:        int64(result.ExpiresIn.Seconds()),
		RefreshExpiresIn: int64(result.RefreshExpiresIn.Seconds()),
		SessionID:        result.SessionID.String(),
	}
}

func decode(r *http.Request, into any) error {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		return dErrors.New(dErrors.CodeInvalidInput, "invalid request body")
	}
	return nil
}
