package middleware_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johndosdos/chatroom/internal/auth"
	"github.com/johndosdos/chatroom/internal/middleware"
)

func newTokenRouter(secret string) http.Handler {
	r := chi.NewRouter()
	r.With(middleware.RequireClientToken(secret, zerolog.Nop())).
		Get("/ws/{client_id}", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
	return r
}

func TestRequireClientToken(t *testing.T) {
	const secret = "test-secret"

	valid, err := auth.MakeJWT(7, secret, "chatroom", time.Hour)
	require.NoError(t, err)
	other, err := auth.MakeJWT(8, secret, "chatroom", time.Hour)
	require.NoError(t, err)
	foreign, err := auth.MakeJWT(7, "another-secret", "chatroom", time.Hour)
	require.NoError(t, err)
	expired, err := auth.MakeJWT(7, secret, "chatroom", -time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"query_token", "/ws/7?token=" + valid, "", http.StatusNoContent},
		{"bearer_token", "/ws/7", "Bearer " + valid, http.StatusNoContent},
		{"missing_token", "/ws/7", "", http.StatusUnauthorized},
		{"other_user", "/ws/7?token=" + other, "", http.StatusUnauthorized},
		{"wrong_secret", "/ws/7?token=" + foreign, "", http.StatusUnauthorized},
		{"expired", "/ws/7?token=" + expired, "", http.StatusUnauthorized},
		{"bad_client_id", "/ws/abc?token=" + valid, "", http.StatusUnauthorized},
	}

	h := newTokenRouter(secret)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestRequireClientTokenDisabled(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ws/7", nil)
	rec := httptest.NewRecorder()

	newTokenRouter("").ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	h := middleware.Logger(zerolog.New(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/messages", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Contains(t, buf.String(), `"status":418`)
	assert.Contains(t, buf.String(), `"path":"/messages"`)
}

func TestMetrics(t *testing.T) {
	r := chi.NewRouter()
	r.Use(middleware.Metrics)
	r.Get("/message/{id}", func(w http.ResponseWriter, r *http.Request) {})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/message/42", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}
