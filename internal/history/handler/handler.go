package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"vitalrisk/internal/access"
	"vitalrisk/internal/history/models"
	profilemodels "vitalrisk/internal/profile/models"
	"vitalrisk/internal/risk"
	id "vitalrisk/pkg/domain"
	"vitalrisk/pkg/platform/httputil"
	"vitalrisk/pkg/requestcontext"
)

type Service interface {
	ListByPatient(ctx context.Context, sess access.Session, pid id.PatientID) ([]*models.Snapshot, error)
	ListAll(ctx context.Context, sess access.Session) ([]*models.Snapshot, error)
}

// Handler serves the snapshot timeline.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/patients/{id}/history", h.HandleListByPatient)
}

func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/admin/history", h.HandleListAll)
}

// SnapshotResponse is one timeline entry.
type SnapshotResponse struct {
	ID         string        `json:"id"`
	PatientID  string        `json:"patient_id"`
	Trigger    string        `json:"trigger"`
	Snapshot   snapshotState `json:"state"`
	Labels     risk.Labels   `json:"labels"`
	RiskScore  float64       `json:"risk_score"`
	Category   risk.Tier     `json:"category"`
	Color      string        `json:"color"`
	RecordedAt time.Time     `json:"recorded_at"`
}

type snapshotState struct {
	Demographics profilemodels.Demographics `json:"demographics"`
	Clinical     profilemodels.Clinical     `json:"clinical"`
}

// HistoryResponse wraps a timeline, newest first.
type HistoryResponse struct {
	Snapshots []*SnapshotResponse `json:"snapshots"`
	Total     int                 `json:"total"`
}

func FromSnapshots(snaps []*models.Snapshot) *HistoryResponse {
	out := make([]*SnapshotResponse, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, &SnapshotResponse{
			ID:         s.ID.String(),
			PatientID:  s.PatientID.String(),
			Trigger:    string(s.Trigger),
			Snapshot:   snapshotState{Demographics: s.Demographics, Clinical: s.Clinical},
			Labels:     s.Labels,
			RiskScore:  s.RiskScore,
			Category:   s.Category,
			Color:      s.Color,
			RecordedAt: s.RecordedAt,
		})
	}
	return &HistoryResponse{Snapshots: out, Total: len(out)}
}

// HandleListByPatient handles GET /patients/{id}/history.
func (h *Handler) HandleListByPatient(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pid, err := id.ParsePatientID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	snaps, err := h.service.ListByPatient(ctx, access.SessionFromContext(ctx), pid)
	if err != nil {
		h.logger.WarnContext(ctx, "history read failed",
			"error", err,
			"patient_id", pid,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromSnapshots(snaps))
}

// HandleListAll handles GET /admin/history.
func (h *Handler) HandleListAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	snaps, err := h.service.ListAll(ctx, access.SessionFromContext(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromSnapshots(snaps))
}
