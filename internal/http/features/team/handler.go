package team

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/relayhq/crmcore/internal/http/middleware"
	"github.com/relayhq/crmcore/internal/httputil"
	"github.com/relayhq/crmcore/pkg/domain"
	"github.com/relayhq/crmcore/pkg/org"
)

// Handler serves team-facing hierarchy views and mutations.
type Handler struct {
	logger *slog.Logger
	engine *org.Engine
}

// NewHandler creates a team handler.
func NewHandler(logger *slog.Logger, engine *org.Engine) *Handler {
	return &Handler{logger: logger, engine: engine}
}

type memberResponse struct {
	ID        string      `json:"id"`
	Email     string      `json:"email"`
	Name      string      `json:"name"`
	Role      domain.Role `json:"role"`
	ManagerID *string     `json:"manager_id"`
}

func toMemberResponse(m *domain.Member) memberResponse {
	resp := memberResponse{
		ID:    m.ID.String(),
		Email: m.Email,
		Name:  m.Name,
		Role:  m.Role,
	}
	if m.ManagerID != nil {
		id := m.ManagerID.String()
		resp.ManagerID = &id
	}
	return resp
}

// List returns the members visible to the principal: the whole tenant for
// the owner role, otherwise the principal's subtree.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "missing authorization")
		return
	}

	members, err := h.engine.VisibleMembers(r.Context(), principal)
	if err != nil {
		if errors.Is(err, domain.ErrMalformedHierarchy) {
			// Valid branches are still served; operators get the warning.
			h.logger.Warn("hierarchy malformed, serving partial visibility",
				"tenant_id", principal.TenantID,
				"principal_id", principal.ID,
				"error", err,
			)
		} else {
			h.writeEngineError(w, err)
			return
		}
	}

	resp := make([]memberResponse, 0, len(members))
	for _, m := range members {
		resp = append(resp, toMemberResponse(m))
	}
	httputil.JSON(w, http.StatusOK, map[string]any{"members": resp})
}

type promoteRequest struct {
	Role domain.Role `json:"role"`
}

// Promote changes a target member's role.
func (h *Handler) Promote(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "missing authorization")
		return
	}

	targetID, err := uuid.Parse(chi.URLParam(r, "memberID"))
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid member id")
		return
	}

	var req promoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Role == "" {
		httputil.Error(w, http.StatusBadRequest, "role is required")
		return
	}

	if err := h.engine.Promote(r.Context(), principal, targetID, req.Role); err != nil {
		h.writeEngineError(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]string{"status": "role updated"})
}

// Remove deletes a member and their sign-in identity. The engine re-verifies
// authorization server-side before the privileged deletion runs.
func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "missing authorization")
		return
	}

	targetID, err := uuid.Parse(chi.URLParam(r, "memberID"))
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid member id")
		return
	}

	if err := h.engine.Remove(r.Context(), principal, targetID); err != nil {
		h.writeEngineError(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]string{"status": "member removed"})
}

type assignManagerRequest struct {
	ManagerID *string `json:"manager_id"`
}

// AssignManager moves a member under a new manager, or to the hierarchy root
// when manager_id is null.
func (h *Handler) AssignManager(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "missing authorization")
		return
	}

	targetID, err := uuid.Parse(chi.URLParam(r, "memberID"))
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid member id")
		return
	}

	var req assignManagerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var managerID *uuid.UUID
	if req.ManagerID != nil {
		id, err := uuid.Parse(*req.ManagerID)
		if err != nil {
			httputil.Error(w, http.StatusBadRequest, "invalid manager id")
			return
		}
		managerID = &id
	}

	if err := h.engine.AssignManager(r.Context(), principal, targetID, managerID); err != nil {
		h.writeEngineError(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]string{"status": "manager updated"})
}

// AssignableRoles returns the roles the principal may grant, weakest first.
func (h *Handler) AssignableRoles(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "missing authorization")
		return
	}

	roles := h.engine.AssignableRoles(principal)
	if roles == nil {
		roles = []domain.Role{}
	}
	httputil.JSON(w, http.StatusOK, map[string]any{"roles": roles})
}

// writeEngineError maps engine errors to HTTP responses, preserving the
// denial reason so the client can render an accurate message.
func (h *Handler) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrMemberNotFound), errors.Is(err, domain.ErrManagerNotFound):
		httputil.Error(w, http.StatusNotFound, "member not found")
	case errors.Is(err, domain.ErrCrossTenant):
		httputil.Error(w, http.StatusForbidden, "operation crosses workspace boundary")
	case errors.Is(err, domain.ErrUnauthorized):
		httputil.Error(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrUnknownRole):
		httputil.Error(w, http.StatusBadRequest, "unknown role")
	case errors.Is(err, domain.ErrCyclicManagerChain):
		httputil.Error(w, http.StatusConflict, "assignment would create a reporting cycle")
	case errors.Is(err, domain.ErrStoreUnavailable):
		w.Header().Set("Retry-After", "5")
		httputil.Error(w, http.StatusServiceUnavailable, "service temporarily unavailable")
	default:
		h.logger.Error("team operation failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "internal server error")
	}
}
