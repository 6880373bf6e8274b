package workspace

import (
	"net/http"

	"github.com/relayhq/crmcore/internal/http/middleware"
	"github.com/relayhq/crmcore/internal/httputil"
)

// Handler exposes the resolved workspace to the frontend shell.
type Handler struct{}

// NewHandler creates a workspace handler.
func NewHandler() *Handler {
	return &Handler{}
}

type workspaceResponse struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Slug       string  `json:"slug"`
	LogoURL    *string `json:"logo_url,omitempty"`
	BrandColor *string `json:"brand_color,omitempty"`
}

// Get returns the workspace the request host resolved to. On the main
// domain and on unresolved custom domains the workspace is null so the shell
// renders tenant-less content instead of an error page.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	res, _ := middleware.GetResolution(r.Context())
	if res.Tenant == nil {
		httputil.JSON(w, http.StatusOK, map[string]any{
			"workspace": nil,
			"class":     res.Class,
		})
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]any{
		"workspace": workspaceResponse{
			ID:         res.Tenant.ID.String(),
			Name:       res.Tenant.Name,
			Slug:       res.Tenant.Slug,
			LogoURL:    res.Tenant.LogoURL,
			BrandColor: res.Tenant.BrandColor,
		},
		"class": res.Class,
	})
}
