package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hackgods/clinic-appointment-booking/internal/appointment"
	"github.com/hackgods/clinic-appointment-booking/internal/identity"
	"github.com/hackgods/clinic-appointment-booking/internal/provider"
	"github.com/hackgods/clinic-appointment-booking/pkg/logging"
)

type RouterConfig struct {
	Appointments *appointment.Service
	Providers    *provider.Service
	Verifier     *identity.Verifier
	Logger       *logging.Logger
	Dependencies []Dependency
	// Metrics serves /metrics when set.
	Metrics http.Handler
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))

	// Health endpoints
	health := NewHealthHandler(cfg.Dependencies, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	providers := &providerHandlers{svc: cfg.Providers, appts: cfg.Appointments, logger: logger}
	appts := &appointmentHandlers{svc: cfg.Appointments, logger: logger}

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Verifier))

		// Browsing is open to any authenticated caller
		r.Group(func(r chi.Router) {
			r.Use(RequireRole(identity.RolePatient, identity.RoleDoctor, identity.RoleAdmin))
			r.Get("/providers/{kind}", providers.list)
			r.Get("/providers/{kind}/{id}", providers.get)
			r.Get("/providers/{kind}/{id}/dates", providers.dates)
		})

		// Patient endpoints
		r.Group(func(r chi.Router) {
			r.Use(RequireRole(identity.RolePatient))
			r.Post("/appointments", appts.create)
			r.Get("/appointments/mine", appts.mine)
			r.Post("/appointments/{id}/cancel", appts.patientCancel)
		})

		// Admin endpoints
		r.Route("/admin", func(r chi.Router) {
			r.Use(RequireRole(identity.RoleAdmin, identity.RoleDoctor))

			r.Post("/providers/{kind}", providers.create)
			r.Put("/providers/{kind}/{id}", providers.update)
			r.Delete("/providers/{kind}/{id}", providers.delete)
			r.Patch("/providers/{kind}/{id}/availability", providers.setAvailability)
			r.Post("/providers/{kind}/{id}/dates", providers.addDate)
			r.Delete("/providers/{kind}/{id}/dates/{date}", providers.removeDate)
			r.Post("/providers/{kind}/{id}/dates/{date}/slots", providers.addSlot)
			r.Delete("/providers/{kind}/{id}/dates/{date}/slots/{time}", providers.removeSlot)
			r.Get("/providers/{kind}/{id}/stats", providers.stats)

			r.Get("/appointments", appts.list)
			r.Get("/appointments/{id}", appts.get)
			r.Post("/appointments/{id}/transition", appts.transition)
			r.Post("/appointments/{id}/cancel", appts.adminCancel)
			r.Post("/appointments/{id}/reschedule", appts.reschedule)
			r.Get("/stats", appts.dashboard)
		})
	})

	return r
}
