package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/kazemman/InvoTechClinic-WhatsApp-sub000/internal/appointment"
	"github.com/kazemman/InvoTechClinic-WhatsApp-sub000/internal/identity"
	"github.com/kazemman/InvoTechClinic-WhatsApp-sub000/internal/queue"
)

type RouterConfig struct {
	Appointments *appointment.Service
	Queue        *queue.Service
	// Notifications serves the websocket stream; nil disables /ws.
	Notifications http.Handler
	Identity      *identity.Parser
	Gatherer      prometheus.Gatherer
	Postgres      Pinger
	Redis         Pinger
	Logger        zerolog.Logger
	Env           string
	Version       string
	// RequestTimeout bounds every non-streaming request; zero disables it.
	RequestTimeout time.Duration
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(middleware.Recoverer)

	// Health endpoints
	health := NewHealthHandler(cfg.Postgres, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}
	if cfg.Notifications != nil {
		r.Handle("/ws", cfg.Notifications)
	}

	r.Group(func(r chi.Router) {
		if cfg.RequestTimeout > 0 {
			r.Use(middleware.Timeout(cfg.RequestTimeout))
		}
		r.Use(IdentityMiddleware(cfg.Identity))

		loc := cfg.Appointments.Location()
		r.Get("/calendar/holidays", holidaysHandler(loc))
		r.Get("/calendar/{date}", calendarDayHandler(loc))

		// Appointment endpoints
		apps := cfg.Appointments
		r.Post("/appointments", createAppointmentHandler(apps))
		r.Get("/appointments/{id}", getAppointmentHandler(apps))
		r.Patch("/appointments/{id}", rescheduleAppointmentHandler(apps))
		r.Post("/appointments/{id}/status", transitionAppointmentHandler(apps))
		r.Post("/appointments/{id}/cancel", cancelAppointmentHandler(apps))
		r.Get("/patients/{id}/appointments", listPatientAppointmentsHandler(apps))

		r.Get("/doctors", listDoctorsHandler(apps))
		r.Get("/doctors/{id}/availability", doctorAvailabilityHandler(apps))
		r.Get("/availability", allDoctorsAvailabilityHandler(apps))
		r.Post("/doctors/{id}/unavailability", createBlockHandler(apps))
		r.Get("/doctors/{id}/unavailability", listBlocksHandler(apps))
		r.Delete("/unavailability/{id}", deleteBlockHandler(apps))

		// Queue endpoints
		q := cfg.Queue
		r.Post("/checkins", checkInHandler(q))
		r.Post("/queue", enqueueHandler(q))
		r.Get("/queue", activeQueueHandler(q))
		r.Get("/queue/{id}", getQueueEntryHandler(q))
		r.Post("/queue/{id}/advance", advanceQueueEntryHandler(q))
		r.Delete("/queue/{id}", removeQueueEntryHandler(q))
		r.Post("/queue/{id}/complete-consultation", completeConsultationHandler(q))
	})

	return r
}
