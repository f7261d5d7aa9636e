package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/slipdesk/slipdesk/internal/auth"
	"github.com/slipdesk/slipdesk/internal/challan"
	"github.com/slipdesk/slipdesk/internal/dashboard"
	"github.com/slipdesk/slipdesk/internal/observability"
	"github.com/slipdesk/slipdesk/internal/shared"
	"github.com/slipdesk/slipdesk/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	Sessions         *shared.SessionManager
	AuthHandler      *auth.Handler
	ChallanHandler   *challan.Handler
	DashboardHandler *dashboard.Handler
	JobHandler       *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with slipdesk defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:   params.Logger,
		Config:   params.Config,
		Sessions: params.Sessions,
	}) {
		r.Use(mw)
	}
	// Metrics methods are nil-receiver safe, so wiring is unconditional:
	// a nil Metrics passes requests through and serves 503 on /metrics.
	r.Use(params.Metrics.Middleware)
	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())

	// Public slip page reached from the printed QR link, no session needed.
	if params.ChallanHandler != nil {
		params.ChallanHandler.MountPublicRoutes(r)
	}

	r.Route("/api/v1", func(api chi.Router) {
		if params.AuthHandler != nil {
			api.Route("/auth", params.AuthHandler.MountRoutes)
		}
		if params.ChallanHandler != nil {
			api.Route("/challans", params.ChallanHandler.MountRoutes)
		}
		if params.DashboardHandler != nil {
			api.Route("/dashboard", params.DashboardHandler.MountRoutes)
		}
		if params.JobHandler != nil {
			api.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	return r
}
