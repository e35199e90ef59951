package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/cal-poly-dxhub/duck-hunt/internal/metrics"
	"github.com/cal-poly-dxhub/duck-hunt/internal/middleware"
)

type RouterConfig struct {
	Service string
	Actions Actions
	// Health lists the components /health probes.
	Health  map[string]Pinger
	Metrics *metrics.Metrics
	// Redis enables the team event stream when set.
	Redis          *redis.Client
	RequestTimeout time.Duration
	Logger         *slog.Logger
}

// NewRouter wires the player routes, health and metrics.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(cfg.Logger, cfg.Metrics))
	r.Use(chimw.Recoverer)

	r.Method(http.MethodGet, "/health", NewHealthHandler(cfg.Service, cfg.Health, cfg.Logger))
	r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())

	r.Group(func(r chi.Router) {
		if cfg.RequestTimeout > 0 {
			r.Use(chimw.Timeout(cfg.RequestTimeout))
		}
		r.Method(http.MethodPost, "/message", NewMessageHandler(cfg.Actions, cfg.Logger))
		r.Method(http.MethodPost, "/level", NewLevelHandler(cfg.Actions, cfg.Logger))
		r.Method(http.MethodPost, "/clear-chat", NewClearChatHandler(cfg.Actions, cfg.Logger))
		r.Method(http.MethodPost, "/ping-coordinates", NewCoordinatesHandler(cfg.Actions, cfg.Logger))
		r.Method(http.MethodPost, "/upload-photo", NewPhotoHandler(cfg.Actions, cfg.Logger))
	})

	if cfg.Redis != nil {
		r.Method(http.MethodGet, "/events/teams/{teamID}", NewEventsHandler(cfg.Redis, cfg.Logger))
	}
	return r
}
