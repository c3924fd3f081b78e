package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/johndosdos/chatroom/internal/auth"
	"github.com/johndosdos/chatroom/internal/model"
	"github.com/johndosdos/chatroom/internal/store"
)

// TokenOptions controls the JWT returned on login. An empty Secret means no
// token is issued.
type TokenOptions struct {
	Secret string
	Issuer string
	TTL    time.Duration
}

// Register handles user account creation.
func Register(svc *auth.Service, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req model.RegisterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeDetail(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		_, err := svc.Register(r.Context(), req.Email, req.Username, req.Password)
		switch {
		case err == nil:
			writeMessage(w, http.StatusCreated, "User created successfully")
		case errors.Is(err, store.ErrDuplicate):
			writeDetail(w, http.StatusBadRequest, "Username already registered")
		case errors.Is(err, auth.ErrInvalidInput):
			writeDetail(w, http.StatusBadRequest, "Email, username and password are required")
		default:
			logger.Error().Err(err).Msg("failed to register user")
			writeDetail(w, http.StatusInternalServerError, "Server error")
		}
	}
}

// Login verifies credentials and returns the user id, plus a token when
// tokens are enabled.
func Login(svc *auth.Service, tokens TokenOptions, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req model.LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeDetail(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		userID, err := svc.Verify(r.Context(), req.Email, req.Password)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidCredentials) {
				writeDetail(w, http.StatusUnauthorized, "Incorrect username or password")
				return
			}
			logger.Error().Err(err).Msg("failed to verify credentials")
			writeDetail(w, http.StatusInternalServerError, "Server error")
			return
		}

		resp := model.LoginResponse{Message: "Login successful", User: userID}
		if tokens.Secret != "" {
			resp.Token, err = auth.MakeJWT(userID, tokens.Secret, tokens.Issuer, tokens.TTL)
			if err != nil {
				logger.Error().Err(err).Int64("user_id", userID).Msg("failed to make JWT")
				writeDetail(w, http.StatusInternalServerError, "Server error")
				return
			}
		}

		writeJSON(w, http.StatusOK, resp)
	}
}
