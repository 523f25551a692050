package main

import (
	"log/slog"
	"net/http"

	jwttoken "sanctuary/internal/jwt_token"
	"sanctuary/internal/platform/config"
	"sanctuary/internal/platform/httpserver"
	"sanctuary/internal/platform/metrics"
	authmw "sanctuary/pkg/platform/middleware/auth"
	"sanctuary/pkg/platform/middleware/metadata"
	"sanctuary/pkg/platform/middleware/request"
	"sanctuary/pkg/platform/middleware/requesttime"

	"github.com/go-chi/chi/v5"
)

func newRouter(cfg *config.Config, a *app, in *infra, m *metrics.Metrics, log *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.Recovery(log))
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	r.Use(request.Logger(log))
	r.Use(m.Middleware)

	r.Method(http.MethodGet, "/metrics", m.Handler())
	r.Get("/healthz", httpserver.HealthHandler(in.healthChecks()))

	jwtService := jwttoken.NewJWTService(cfg.Auth.SigningKey, cfg.Auth.Issuer, cfg.Auth.Audience)

	r.Group(func(r chi.Router) {
		r.Use(request.Timeout(cfg.Server.RequestTimeout))
		r.Use(request.ContentTypeJSON)
		r.Use(authmw.RequireAuth(jwttoken.NewJWTServiceAdapter(jwtService), log))

		a.vault.Register(r)
		if a.dev != nil {
			a.dev.Register(r)
		}
		if a.oracle != nil {
			a.oracle.Register(r)
		}
	})

	return r
}
