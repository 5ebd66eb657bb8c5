package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"vitalrisk/internal/access"
	"vitalrisk/internal/profile/models"
	"vitalrisk/internal/profile/service"
	id "vitalrisk/pkg/domain"
	"vitalrisk/pkg/platform/httputil"
	"vitalrisk/pkg/requestcontext"
)

// Service defines the profile operations the handler needs.
type Service interface {
	Create(ctx context.Context, sess access.Session, req models.CreateRequest) (*models.Profile, error)
	Get(ctx context.Context, sess access.Session, pid id.PatientID) (*models.Profile, error)
	UpdateClinical(ctx context.Context, sess access.Session, pid id.PatientID, u models.ClinicalUpdate) (*models.Profile, error)
	UpdateDemographics(ctx context.Context, sess access.Session, pid id.PatientID, u models.DemographicsUpdate) (*models.Profile, error)
	Analyze(ctx context.Context, sess access.Session, pid id.PatientID) (*service.Analysis, error)
	Delete(ctx context.Context, sess access.Session, pid id.PatientID) error
}

// TokenIssuer mints the bearer token returned on self-registration.
type TokenIssuer interface {
	GenerateAccessToken(subject id.PatientID, role string, expiresIn time.Duration) (string, error)
}

// Handler wires patient profile endpoints to the profile service.
type Handler struct {
	service  Service
	tokens   TokenIssuer
	tokenTTL time.Duration
	logger   *slog.Logger
}

func New(service Service, tokens TokenIssuer, tokenTTL time.Duration, logger *slog.Logger) *Handler {
	return &Handler{
		service:  service,
		tokens:   tokens,
		tokenTTL: tokenTTL,
		logger:   logger,
	}
}

// RegisterPublic mounts routes that accept anonymous callers. Mount behind
// optional authentication so admins can create admin profiles.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Post("/patients", h.HandleRegister)
}

// Register mounts the authenticated patient routes.
func (h *Handler) Register(r chi.Router) {
	r.Get("/patients/{id}", h.HandleGet)
	r.Delete("/patients/{id}", h.HandleDelete)
	r.Put("/patients/{id}/demographics", h.HandleUpdateDemographics)
	r.Put("/patients/{id}/clinical", h.HandleUpdateClinical)
	r.Post("/patients/{id}/analysis", h.HandleAnalyze)
}

// HandleRegister handles POST /patients.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	sess := access.SessionFromContext(ctx)

	req, ok := httputil.DecodeAndPrepare[RegisterRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	p, err := h.service.Create(ctx, sess, req.ToModel())
	if err != nil {
		h.logger.WarnContext(ctx, "patient registration failed",
			"error", err,
			"request_id", requestID,
		)
		httputil.WriteError(w, err)
		return
	}

	resp := &RegisterResponse{Patient: FromProfile(p)}
	if sess.IsAnonymous() && h.tokens != nil {
		token, err := h.tokens.GenerateAccessToken(p.ID, p.Role.String(), h.tokenTTL)
		if err != nil {
			h.logger.ErrorContext(ctx, "failed to issue access token",
				"error", err,
				"patient_id", p.ID,
				"request_id", requestID,
			)
		} else {
			resp.AccessToken = token
			resp.TokenType = "Bearer"
			resp.ExpiresIn = int64(h.tokenTTL.Seconds())
		}
	}
	httputil.WriteJSON(w, http.StatusCreated, resp)
}

// HandleGet handles GET /patients/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pid, ok := h.patientID(w, r)
	if !ok {
		return
	}
	p, err := h.service.Get(ctx, access.SessionFromContext(ctx), pid)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromProfile(p))
}

// HandleDelete handles DELETE /patients/{id}.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pid, ok := h.patientID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(ctx, access.SessionFromContext(ctx), pid); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleUpdateDemographics handles PUT /patients/{id}/demographics.
func (h *Handler) HandleUpdateDemographics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	pid, ok := h.patientID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[DemographicsRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	p, err := h.service.UpdateDemographics(ctx, access.SessionFromContext(ctx), pid, req.ToModel())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromProfile(p))
}

// HandleUpdateClinical handles PUT /patients/{id}/clinical.
func (h *Handler) HandleUpdateClinical(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()
	pid, ok := h.patientID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[ClinicalRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	p, err := h.service.UpdateClinical(ctx, access.SessionFromContext(ctx), pid, req.ToModel())
	if err != nil {
		h.logger.WarnContext(ctx, "clinical update failed",
			"error", err,
			"patient_id", pid,
			"request_id", requestID,
		)
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "clinical data updated",
		"patient_id", pid,
		"risk_score", p.RiskScore,
		"request_id", requestID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, FromProfile(p))
}

// HandleAnalyze handles POST /patients/{id}/analysis.
func (h *Handler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pid, ok := h.patientID(w, r)
	if !ok {
		return
	}
	result, err := h.service.Analyze(ctx, access.SessionFromContext(ctx), pid)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromAnalysis(result))
}

func (h *Handler) patientID(w http.ResponseWriter, r *http.Request) (id.PatientID, bool) {
	pid, err := id.ParsePatientID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.PatientID{}, false
	}
	return pid, true
}
