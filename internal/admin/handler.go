package admin

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"vitalrisk/internal/access"
	profilemodels "vitalrisk/internal/profile/models"
	"vitalrisk/pkg/platform/httputil"
	"vitalrisk/pkg/requestcontext"
)

type PatientLister interface {
	List(ctx context.Context, sess access.Session) ([]*profilemodels.Profile, error)
}

// Handler serves the admin overview endpoints. Per-module admin lists
// (history, feedback) are mounted by their own handlers.
type Handler struct {
	service  *Service
	patients PatientLister
	logger   *slog.Logger
}

func NewHandler(service *Service, patients PatientLister, logger *slog.Logger) *Handler {
	return &Handler{service: service, patients: patients, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/admin/patients", h.HandleListPatients)
	r.Get("/admin/dashboard", h.HandleDashboard)
}

// HandleListPatients handles GET /admin/patients.
func (h *Handler) HandleListPatients(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ps, err := h.patients.List(ctx, access.SessionFromContext(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toPatientsList(ps))
}

// HandleDashboard handles GET /admin/dashboard.
func (h *Handler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	d, err := h.service.Dashboard(ctx, access.SessionFromContext(ctx))
	if err != nil {
		h.logger.WarnContext(ctx, "dashboard request failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toDashboard(d))
}
