package handler

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"vitalrisk/internal/access"
	"vitalrisk/internal/feedback/handler/mocks"
	"vitalrisk/internal/feedback/models"
	id "vitalrisk/pkg/domain"
	dErrors "vitalrisk/pkg/domain-errors"
	"vitalrisk/pkg/testutil"
)

func newRouter(t *testing.T) (http.Handler, *mocks.MockService) {
	t.Helper()
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockService(ctrl)
	h := New(svc, slog.Default())
	r := chi.NewRouter()
	h.Register(r)
	h.RegisterAdmin(r)
	return r, svc
}

func TestHandleSubmit(t *testing.T) {
	pid := id.NewPatientID()
	path := "/patients/" + pid.String() + "/feedback"
	self := access.Session{Role: access.RoleUser, SubjectID: pid}

	t.Run("created entry echoes the captured risk state", func(t *testing.T) {
		router, svc := newRouter(t)
		entry, err := models.NewEntry(pid, 4, "clear", 0.81, time.Now())
		require.NoError(t, err)
		svc.EXPECT().Submit(gomock.Any(), self, pid, 4, "clear").Return(entry, nil)

		req := testutil.NewJSONRequest(t, http.MethodPost, path, map[string]any{"rating": 4, "comment": "  clear "})
		rr := testutil.DoRequest(router, testutil.AsUser(req, pid))

		require.Equal(t, http.StatusCreated, rr.Code)
		got := testutil.UnmarshalResponse[EntryResponse](t, rr)
		assert.Equal(t, 0.81, got.RiskScore)
		assert.Equal(t, "High", string(got.Category))
		assert.Equal(t, "#dc3545", got.Color)
	})

	t.Run("rating out of range never reaches the service", func(t *testing.T) {
		router, _ := newRouter(t)
		req := testutil.NewJSONRequest(t, http.MethodPost, path, map[string]any{"rating": 6})
		rr := testutil.DoRequest(router, testutil.AsUser(req, pid))
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "validation_error")
	})

	t.Run("ledger outage is 503 with Retry-After", func(t *testing.T) {
		router, svc := newRouter(t)
		svc.EXPECT().Submit(gomock.Any(), self, pid, 2, "").
			Return(nil, dErrors.New(dErrors.CodeUnavailable, "feedback could not be recorded, please retry"))

		req := testutil.NewJSONRequest(t, http.MethodPost, path, map[string]any{"rating": 2})
		rr := testutil.DoRequest(router, testutil.AsUser(req, pid))
		testutil.AssertStatusAndError(t, rr, http.StatusServiceUnavailable, "unavailable")
		assert.NotEmpty(t, rr.Header().Get("Retry-After"))
	})
}

func TestHandleLists(t *testing.T) {
	pid := id.NewPatientID()
	entry, err := models.NewEntry(pid, 5, "", 0.2, time.Now())
	require.NoError(t, err)

	t.Run("patient list", func(t *testing.T) {
		router, svc := newRouter(t)
		svc.EXPECT().ListByPatient(gomock.Any(), gomock.Any(), pid).Return([]*models.Entry{entry}, nil)

		rr := testutil.DoRequest(router, testutil.AsUser(httptest.NewRequest(http.MethodGet, "/patients/"+pid.String()+"/feedback", nil), pid))
		require.Equal(t, http.StatusOK, rr.Code)
		got := testutil.UnmarshalResponse[ListResponse](t, rr)
		assert.Equal(t, 1, got.Total)
		assert.Equal(t, "Low", string(got.Entries[0].Category))
	})

	t.Run("admin list forwards forbidden", func(t *testing.T) {
		router, svc := newRouter(t)
		svc.EXPECT().ListAll(gomock.Any(), gomock.Any()).Return(nil, dErrors.New(dErrors.CodeForbidden, "not authorized to read all feedback"))

		rr := testutil.DoRequest(router, testutil.AsUser(httptest.NewRequest(http.MethodGet, "/admin/feedback", nil), pid))
		testutil.AssertStatusAndError(t, rr, http.StatusForbidden, "forbidden")
	})
}
