// Package httptransport assembles the chi router: platform middleware, the
// public and authenticated route groups, health and metrics.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vitalrisk/pkg/platform/httputil"
	authmw "vitalrisk/pkg/platform/middleware/auth"
	"vitalrisk/pkg/platform/middleware/request"
	"vitalrisk/pkg/platform/middleware/requesttime"
)

const healthCheckTimeout = 2 * time.Second

// PublicRegistrar mounts routes that anonymous callers may reach.
type PublicRegistrar interface {
	RegisterPublic(r chi.Router)
}

// Registrar mounts routes behind bearer authentication.
type Registrar interface {
	Register(r chi.Router)
}

// AdminRegistrar mounts a module's admin views.
type AdminRegistrar interface {
	RegisterAdmin(r chi.Router)
}

// HealthCheck probes one backing dependency.
type HealthCheck func(ctx context.Context) error

type Deps struct {
	Logger    *slog.Logger
	Tokens    authmw.JWTValidator
	Gatherer  prometheus.Gatherer
	Public    []PublicRegistrar
	Protected []Registrar
	Admin     []AdminRegistrar
	Checks    map[string]HealthCheck
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// NewRouter wires every endpoint. Authorization beyond authentication is left
// to the services' access gate.
func NewRouter(d Deps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.Logger(logger))
	r.Use(chimw.Recoverer)
	r.Use(requesttime.Middleware)

	r.Get("/health", healthHandler(d.Checks))
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(authmw.OptionalAuth(d.Tokens, logger))
		for _, reg := range d.Public {
			reg.RegisterPublic(r)
		}
	})

	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireAuth(d.Tokens, logger))
		for _, reg := range d.Protected {
			reg.Register(r)
		}
		for _, reg := range d.Admin {
			reg.RegisterAdmin(r)
		}
	})

	return r
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		resp := healthResponse{Status: "ok"}
		status := http.StatusOK
		if len(names) > 0 {
			resp.Checks = make(map[string]string, len(names))
		}
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				resp.Checks[name] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
		httputil.WriteJSON(w, status, resp)
	}
}
