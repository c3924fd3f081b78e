package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/johndosdos/chatroom/internal/auth"
)

// RequireClientToken checks that the request carries a JWT whose subject is
// the {client_id} route parameter. The token is read from the "token" query
// parameter, since browsers cannot set headers on a websocket handshake, or
// from a bearer Authorization header. An empty secret disables the check.
func RequireClientToken(secret string, logger zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if secret == "" {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.URL.Query().Get("token")
			if token == "" {
				token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			}

			userID, err := auth.ValidateJWT(token, secret)
			if err != nil {
				logger.Warn().Err(err).Str("path", r.URL.Path).Msg("rejected client token")
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			clientID, err := strconv.ParseInt(chi.URLParam(r, "client_id"), 10, 64)
			if err != nil || clientID != userID {
				logger.Warn().Int64("user_id", userID).Str("path", r.URL.Path).Msg("token does not match client id")
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
