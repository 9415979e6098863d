package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/caredesk/hospital-booking/internal/booking"
)

type RouterConfig struct {
	Service *booking.Service
	PgPool  *pgxpool.Pool
	Redis   *redis.Client
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Registration
	r.Post("/doctors", registerDoctorHandler(cfg.Service))
	r.Post("/patients", registerPatientHandler(cfg.Service))

	// Doctor listings and availability
	r.Get("/doctors", listDoctorsHandler(cfg.Service))
	r.Post("/slots", createSlotHandler(cfg.Service))
	r.Get("/doctors/{id}/slots", listDoctorSlotsHandler(cfg.Service))
	r.Get("/doctors/{id}/bookings", listDoctorBookingsHandler(cfg.Service))

	// Booking
	r.Post("/bookings", createBookingHandler(cfg.Service))
	r.Get("/patients/{id}/bookings", listPatientBookingsHandler(cfg.Service))

	return r
}
