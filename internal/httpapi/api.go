// Package httpapi exposes the subsystem over HTTP. Routing and response
// shaping live here; all verification, authorization and audit semantics stay
// in internal/auth, internal/guard and internal/audit.
package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"hireview.io/internal/audit"
	"hireview.io/internal/auth"
	"hireview.io/internal/guard"
	"hireview.io/internal/obs"
)

// API wires handlers, guard and services into one router.
type API struct {
	service  *auth.Service
	recorder *audit.Recorder
	guard    *guard.Guard
	db       *sql.DB
	version  string

	rateBurst     int
	ratePerSecond int
}

// Option adjusts API construction.
type Option func(*API)

// WithLoginRateLimit tunes the per-IP limit on the login path.
func WithLoginRateLimit(burst, perSecond int) Option {
	return func(a *API) {
		if burst > 0 {
			a.rateBurst = burst
		}
		if perSecond > 0 {
			a.ratePerSecond = perSecond
		}
	}
}

// New constructs the API.
func New(service *auth.Service, recorder *audit.Recorder, db *sql.DB, version string, opts ...Option) *API {
	a := &API{
		service:       service,
		recorder:      recorder,
		guard:         guard.New(service.Tokens()),
		db:            db,
		version:       version,
		rateBurst:     10,
		ratePerSecond: 5,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Router assembles the middleware chain and routes.
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(guard.RequestID)
	r.Use(guard.LoggingJSON)
	r.Use(guard.SecurityHeaders)
	r.Use(guard.MaxBodyBytes(1 << 20))

	r.Get("/healthz", a.handleHealthz)
	r.Get("/readyz", a.handleReadyz)
	r.Method(http.MethodGet, "/metrics", obs.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.With(guard.RateLimit(a.rateBurst, a.ratePerSecond)).
			Post("/auth/login", a.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(a.guard.Authenticate)

			r.Post("/auth/revoke", a.handleRevoke)
			r.Get("/me", a.handleMe)
			r.Post("/me/password", a.handleChangePassword)

			r.Post("/users", a.handleCreateUser)
			r.Get("/users/{id}", a.handleGetUser)
			r.Patch("/users/{id}/status", a.handleSetUserStatus)

			r.With(a.guard.RequireScope(func(*http.Request) auth.Scope {
				return auth.Scope{Role: auth.RolePlatformAdmin}
			})).Get("/audit", a.handleAuditQuery)
		})
	})

	return obs.Instrument(r)
}

func (a *API) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "hireview-auth",
		"version": a.version,
	})
}

func (a *API) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if a.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.db.PingContext(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"status": "not_ready",
				"error":  err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}
