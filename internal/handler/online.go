package handler

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"
)

type onlineLister interface {
	Online(ctx context.Context) ([]int64, error)
}

// ListOnline serves the ids of users with at least one live connection.
func ListOnline(presence onlineLister, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ids, err := presence.Online(r.Context())
		if err != nil {
			logger.Error().Err(err).Msg("failed to list online users")
			writeDetail(w, http.StatusInternalServerError, "Server error")
			return
		}
		if ids == nil {
			ids = []int64{}
		}

		writeJSON(w, http.StatusOK, map[string]any{"data": ids})
	}
}
