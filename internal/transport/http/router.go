package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"campusreg/internal/datasync"
	payhandler "campusreg/internal/payment/handler"
	"campusreg/internal/platform/metrics"
	"campusreg/internal/platform/middleware"
	reghandler "campusreg/internal/registration/handler"
	"campusreg/pkg/platform/httputil"
	authmw "campusreg/pkg/platform/middleware/auth"
	request "campusreg/pkg/platform/middleware/request"
	"campusreg/pkg/platform/middleware/requesttime"
)

const requestTimeout = 30 * time.Second

// Deps are the handlers and cross-cutting collaborators the router mounts.
type Deps struct {
	Logger        *slog.Logger
	Metrics       *metrics.Metrics
	Validator     authmw.JWTValidator
	Registrations *reghandler.Handler
	Payments      *payhandler.Handler
	Live          *datasync.Handler
	// Ready reports whether backing stores are reachable. Nil means always ready.
	Ready func(ctx context.Context) error
}

// NewRouter wires every public endpoint. Webhooks, health and metrics are
// unauthenticated; everything else requires a bearer token. Live streams skip
// the request timeout.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(request.Recovery(d.Logger))
	r.Use(request.RequestID)
	r.Use(request.Logger(d.Logger))
	r.Use(requesttime.Middleware)
	r.Use(middleware.LatencyMiddleware(d.Metrics))

	r.Get("/healthz", healthz(d.Ready))
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(requestTimeout))
		r.Use(middleware.ContentTypeJSON)
		d.Payments.RegisterWebhooks(r)
	})

	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireAuth(d.Validator, d.Logger))

		r.Group(func(r chi.Router) {
			r.Use(chimw.Timeout(requestTimeout))
			r.Use(middleware.ContentTypeJSON)
			d.Registrations.Register(r)
			d.Payments.Register(r)

			r.Group(func(r chi.Router) {
				r.Use(authmw.RequireRole(authmw.RoleOrganizer, d.Logger))
				d.Registrations.RegisterOrganizer(r)
			})
		})

		d.Live.Register(r)
	})

	return r
}

func healthz(ready func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ready != nil {
			if err := ready(r.Context()); err != nil {
				httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
