package rfq

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/metalyard/metalyard/internal/platform/httpx"
)

// Handler exposes the RFQ assistant endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers /parse-rfq and /ai-draft-quote.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/parse-rfq", h.parse)
	r.Post("/ai-draft-quote", h.draft)
}

func (h *Handler) parse(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.Tenant(w, r)
	if !ok {
		return
	}
	var input ParseInput
	if err := httpx.DecodeAndValidate(r, h.validator, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	summary, err := h.service.Parse(r.Context(), tenant, input.Text)
	if err != nil {
		httpx.RespondFailure(w, r, h.logger, "Failed to parse RFQ", err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) draft(w http.ResponseWriter, r *http.Request) {
	tenant, ok := httpx.Tenant(w, r)
	if !ok {
		return
	}
	var input DraftRequest
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if len(input.ParsedRFQs) == 0 {
		httpx.RespondError(w, ErrMissingItems)
		return
	}
	if err := h.validator.Struct(&input); err != nil {
		httpx.RespondError(w, ErrMissingItems.WithDetails(err.Error()))
		return
	}
	draft, err := h.service.Draft(r.Context(), tenant, input)
	if err != nil {
		httpx.RespondFailure(w, r, h.logger, "Failed to draft quote", err)
		return
	}
	httpx.JSON(w, http.StatusOK, draft)
}
