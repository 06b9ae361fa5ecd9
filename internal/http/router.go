package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/seaward/backoffice/internal/http/client"
	"github.com/seaward/backoffice/internal/http/ferry"
	"github.com/seaward/backoffice/internal/http/investor"
	"github.com/seaward/backoffice/internal/http/ledger"
	appmw "github.com/seaward/backoffice/internal/http/middleware"
	"github.com/seaward/backoffice/internal/http/respond"
)

type Options struct {
	AllowedOrigins []string
	// JWTSecret enables bearer-token checks on the API routes when non-empty.
	JWTSecret []byte
	// Health backs /healthz; nil always reports healthy.
	Health func(ctx context.Context) error
}

func New(
	opts Options,
	ledgerV1 *ledger.Handler,
	investorsV1 *investor.Handler,
	clientsV1 *client.Handler,
	ferryV1 *ferry.Handler,
) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))
	router.Use(appmw.Metrics)
	router.Use(appmw.Tracing)

	router.Get("/healthz", health(opts.Health))
	router.Handle("/metrics", promhttp.Handler())

	router.Group(func(r chi.Router) {
		if len(opts.JWTSecret) > 0 {
			r.Use(appmw.Auth(opts.JWTSecret))
		}

		r.Route("/transactions", func(r chi.Router) {
			r.Use(middleware.AllowContentType("application/json"))
			ledgerV1.Routes(r)
		})

		r.Route("/investors", func(r chi.Router) {
			r.Use(middleware.AllowContentType("application/json"))
			investorsV1.Routes(r)
		})

		r.Route("/clients", clientsV1.Routes)
		r.Route("/ferry", ferryV1.Routes)
	})

	return router
}

func health(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			if err := check(r.Context()); err != nil {
				respond.Error(w, http.StatusServiceUnavailable, "unavailable")
				return
			}
		}

		respond.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
