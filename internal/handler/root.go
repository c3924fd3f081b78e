package handler

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"
)

func ServeRoot() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusOK, "Hello World")
	}
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Health reports whether the store is reachable.
func Health(db pinger, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil {
			logger.Error().Err(err).Msg("health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
