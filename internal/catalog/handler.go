package catalog

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/metalyard/metalyard/internal/platform/httpx"
)

// Handler serves catalog endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers /materials and /grades.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/materials", h.listMaterials)
	r.Get("/grades", h.listGrades)
	r.Get("/grades/{materialId}", h.listGradesByMaterial)
}

func (h *Handler) listMaterials(w http.ResponseWriter, r *http.Request) {
	materials, err := h.service.ListMaterials(r.Context())
	if err != nil {
		httpx.RespondFailure(w, r, h.logger, "Failed to load materials", err)
		return
	}
	httpx.JSON(w, http.StatusOK, materials)
}

func (h *Handler) listGrades(w http.ResponseWriter, r *http.Request) {
	grades, err := h.service.ListGrades(r.Context())
	if err != nil {
		httpx.RespondFailure(w, r, h.logger, "Failed to load grades", err)
		return
	}
	httpx.JSON(w, http.StatusOK, grades)
}

func (h *Handler) listGradesByMaterial(w http.ResponseWriter, r *http.Request) {
	materialID, err := httpx.IDParam(r, "materialId")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	grades, err := h.service.ListGradesByMaterial(r.Context(), materialID)
	if err != nil {
		httpx.RespondFailure(w, r, h.logger, "Failed to load grades", err)
		return
	}
	httpx.JSON(w, http.StatusOK, grades)
}
