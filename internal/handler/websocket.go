package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/johndosdos/chatroom/internal/session"
	ws "github.com/johndosdos/chatroom/internal/websocket"
)

// ServeWs upgrades /ws/{client_id} and runs the session until the client
// goes away.
func ServeWs(coord *session.Coordinator, allowedOrigins []string, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientID, err := strconv.ParseInt(chi.URLParam(r, "client_id"), 10, 64)
		if err != nil {
			writeDetail(w, http.StatusBadRequest, "Invalid client id")
			return
		}

		t, err := ws.Accept(w, r, allowedOrigins)
		if err != nil {
			logger.Warn().Err(err).Int64("client_id", clientID).Msg("websocket upgrade failed")
			return
		}

		// Serve blocks for the life of the connection; the request context
		// stays valid until we return.
		if err := coord.Serve(r.Context(), t, clientID); err != nil {
			logger.Warn().Err(err).Int64("client_id", clientID).Msg("session refused")
		}
	}
}
