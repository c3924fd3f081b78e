// Package router assembles the chi router and its middleware stack.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/johndosdos/chatroom/internal/auth"
	"github.com/johndosdos/chatroom/internal/handler"
	"github.com/johndosdos/chatroom/internal/middleware"
	"github.com/johndosdos/chatroom/internal/presence"
	ratelimiter "github.com/johndosdos/chatroom/internal/rate_limiter"
	"github.com/johndosdos/chatroom/internal/session"
	"github.com/johndosdos/chatroom/internal/store"
)

// Deps are the collaborators the routes are wired to.
type Deps struct {
	Logger         zerolog.Logger
	Store          store.Store
	Auth           *auth.Service
	Presence       *presence.Tracker
	Coordinator    *session.Coordinator
	Tokens         handler.TokenOptions
	AllowedOrigins []string
	// AuthLimiter throttles /register and /login; nil disables it.
	AuthLimiter *ratelimiter.IPRateLimiter
}

// New creates and configures the HTTP router.
func New(d Deps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Metrics)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(d.Logger))
	r.Use(chimw.Recoverer)

	// Any origin may call the API.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/", handler.ServeRoot())
	r.Get("/health", handler.Health(d.Store, d.Logger))

	r.Group(func(r chi.Router) {
		if d.AuthLimiter != nil {
			r.Use(d.AuthLimiter.Middleware)
		}
		r.Post("/register", handler.Register(d.Auth, d.Logger))
		r.Post("/login", handler.Login(d.Auth, d.Tokens, d.Logger))
	})

	r.Get("/messages", handler.ListMessages(d.Store, d.Logger))
	r.Delete("/message/{id}", handler.DeleteMessage(d.Store, d.Logger))
	r.Get("/online", handler.ListOnline(d.Presence, d.Logger))

	r.With(middleware.RequireClientToken(d.Tokens.Secret, d.Logger)).
		Get("/ws/{client_id}", handler.ServeWs(d.Coordinator, d.AllowedOrigins, d.Logger))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail":"Not Found"}`))
	})

	return r
}
