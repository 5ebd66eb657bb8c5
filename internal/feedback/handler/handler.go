package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"vitalrisk/internal/access"
	"vitalrisk/internal/feedback/models"
	"vitalrisk/internal/risk"
	id "vitalrisk/pkg/domain"
	"vitalrisk/pkg/platform/httputil"
	"vitalrisk/pkg/requestcontext"
)

type Service interface {
	Submit(ctx context.Context, sess access.Session, pid id.PatientID, rating int, comment string) (*models.Entry, error)
	ListByPatient(ctx context.Context, sess access.Session, pid id.PatientID) ([]*models.Entry, error)
	ListAll(ctx context.Context, sess access.Session) ([]*models.Entry, error)
}

// Handler serves the feedback ledger.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/patients/{id}/feedback", h.HandleSubmit)
	r.Get("/patients/{id}/feedback", h.HandleListByPatient)
}

func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/admin/feedback", h.HandleListAll)
}

// SubmitRequest is the HTTP request body for POST /patients/{id}/feedback.
type SubmitRequest struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=2000"`
}

func (r *SubmitRequest) Normalize() {
	r.Comment = strings.TrimSpace(r.Comment)
}

// EntryResponse is one ledger entry.
type EntryResponse struct {
	ID          string    `json:"id"`
	PatientID   string    `json:"patient_id"`
	Rating      int       `json:"rating"`
	Comment     string    `json:"comment"`
	RiskScore   float64   `json:"risk_score"`
	Category    risk.Tier `json:"category"`
	Color       string    `json:"color"`
	SubmittedAt time.Time `json:"submitted_at"`
}

type ListResponse struct {
	Entries []*EntryResponse `json:"feedback"`
	Total   int              `json:"total"`
}

func FromEntry(e *models.Entry) *EntryResponse {
	return &EntryResponse{
		ID:          e.ID.String(),
		PatientID:   e.PatientID.String(),
		Rating:      e.Rating,
		Comment:     e.Comment,
		RiskScore:   e.RiskScore,
		Category:    e.Category,
		Color:       e.Color,
		SubmittedAt: e.SubmittedAt,
	}
}

func FromEntries(es []*models.Entry) *ListResponse {
	out := make([]*EntryResponse, 0, len(es))
	for _, e := range es {
		out = append(out, FromEntry(e))
	}
	return &ListResponse{Entries: out, Total: len(out)}
}

// HandleSubmit handles POST /patients/{id}/feedback.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	pid, err := id.ParsePatientID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[SubmitRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	entry, err := h.service.Submit(ctx, access.SessionFromContext(ctx), pid, req.Rating, req.Comment)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromEntry(entry))
}

// HandleListByPatient handles GET /patients/{id}/feedback.
func (h *Handler) HandleListByPatient(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pid, err := id.ParsePatientID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	entries, err := h.service.ListByPatient(ctx, access.SessionFromContext(ctx), pid)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromEntries(entries))
}

// HandleListAll handles GET /admin/feedback.
func (h *Handler) HandleListAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	entries, err := h.service.ListAll(ctx, access.SessionFromContext(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromEntries(entries))
}
