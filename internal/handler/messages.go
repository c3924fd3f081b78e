package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/johndosdos/chatroom/internal/model"
	"github.com/johndosdos/chatroom/internal/store"
)

// Messages is the slice of store.Store the message endpoints use.
type Messages interface {
	ListMessages(ctx context.Context) ([]model.MessageView, error)
	DeleteMessage(ctx context.Context, id int64) error
}

// ListMessages serves the full chat history, oldest first.
func ListMessages(db Messages, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		messages, err := db.ListMessages(r.Context())
		if err != nil {
			logger.Error().Err(err).Msg("failed to load messages from database")
			writeDetail(w, http.StatusInternalServerError, "Server error")
			return
		}
		if messages == nil {
			messages = []model.MessageView{}
		}

		writeJSON(w, http.StatusOK, map[string]any{"data": messages})
	}
}

// DeleteMessage removes one message by id.
func DeleteMessage(db Messages, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			writeDetail(w, http.StatusBadRequest, "Invalid message id")
			return
		}

		err = db.DeleteMessage(r.Context(), id)
		switch {
		case err == nil:
			writeMessage(w, http.StatusOK, "Message Deleted Successfully")
		case errors.Is(err, store.ErrNotFound):
			writeDetail(w, http.StatusNotFound, "Message not found")
		default:
			logger.Error().Err(err).Int64("message_id", id).Msg("failed to delete message")
			writeDetail(w, http.StatusInternalServerError, "Server error")
		}
	}
}
