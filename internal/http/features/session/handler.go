package session

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/relayhq/crmcore/internal/http/middleware"
	"github.com/relayhq/crmcore/internal/httputil"
	"github.com/relayhq/crmcore/pkg/auth"
	"github.com/relayhq/crmcore/pkg/domain"
)

// Handler serves login and logout for workspace members.
type Handler struct {
	logger   *slog.Logger
	sessions *auth.SessionService
	cookies  httputil.CookieConfig
}

// NewHandler creates a session handler.
func NewHandler(logger *slog.Logger, sessions *auth.SessionService, cookies httputil.CookieConfig) *Handler {
	return &Handler{logger: logger, sessions: sessions, cookies: cookies}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string         `json:"access_token"`
	Member      memberResponse `json:"member"`
}

type memberResponse struct {
	ID    string      `json:"id"`
	Email string      `json:"email"`
	Name  string      `json:"name"`
	Role  domain.Role `json:"role"`
}

// Login authenticates a member of the resolved workspace and issues an
// access token. The tenant comes from host resolution, never the payload.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	workspace, ok := middleware.GetWorkspace(r.Context())
	if !ok {
		httputil.Error(w, http.StatusNotFound, "workspace not found")
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		httputil.Error(w, http.StatusBadRequest, "email and password are required")
		return
	}

	member, err := h.sessions.Authenticate(r.Context(), workspace.ID, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			httputil.Error(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		h.logger.Error("login failed", "error", err, "tenant_id", workspace.ID)
		httputil.Error(w, http.StatusInternalServerError, "internal server error")
		return
	}

	token, err := h.sessions.IssueAccessToken(member)
	if err != nil {
		h.logger.Error("token issuance failed", "error", err, "member_id", member.ID)
		httputil.Error(w, http.StatusInternalServerError, "internal server error")
		return
	}

	httputil.SetAccessTokenCookie(w, token, h.sessions.AccessTokenTTL(), h.cookies)
	httputil.JSON(w, http.StatusOK, loginResponse{
		AccessToken: token,
		Member: memberResponse{
			ID:    member.ID.String(),
			Email: member.Email,
			Name:  member.Name,
			Role:  member.Role,
		},
	})
}

// Logout clears the access token cookie.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	httputil.ClearAccessTokenCookie(w, h.cookies)
	httputil.JSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}
