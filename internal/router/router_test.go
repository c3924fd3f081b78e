package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johndosdos/chatroom/internal/auth"
	"github.com/johndosdos/chatroom/internal/handler"
	"github.com/johndosdos/chatroom/internal/model"
	"github.com/johndosdos/chatroom/internal/presence"
	"github.com/johndosdos/chatroom/internal/registry"
	"github.com/johndosdos/chatroom/internal/router"
	"github.com/johndosdos/chatroom/internal/session"
	"github.com/johndosdos/chatroom/internal/store"
)

type testServer struct {
	*httptest.Server
	registry *registry.Registry
	store    *store.Memory
}

func newTestServer(t *testing.T, jwtSecret string) *testServer {
	t.Helper()

	logger := zerolog.Nop()
	st := store.NewMemory()
	reg := registry.New(logger)
	tracker := presence.New(st, logger)
	coord := session.New(reg, tracker, st, logger, session.Config{})

	mux := router.New(router.Deps{
		Logger:      logger,
		Store:       st,
		Auth:        auth.NewService(st, logger),
		Presence:    tracker,
		Coordinator: coord,
		Tokens:      handler.TokenOptions{Secret: jwtSecret, Issuer: "test", TTL: time.Minute},
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return &testServer{Server: srv, registry: reg, store: st}
}

func (s *testServer) postJSON(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	p, err := json.Marshal(body)
	require.NoError(t, err)

	res, err := http.Post(s.URL+path, "application/json", bytes.NewReader(p))
	require.NoError(t, err)
	t.Cleanup(func() { res.Body.Close() })
	return res
}

func (s *testServer) do(t *testing.T, method, path string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, s.URL+path, nil)
	require.NoError(t, err)

	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { res.Body.Close() })
	return res
}

// signup registers and logs in a user, returning the login response.
func (s *testServer) signup(t *testing.T, email, username string) model.LoginResponse {
	t.Helper()

	res := s.postJSON(t, "/register", model.RegisterRequest{Email: email, Username: username, Password: "pw"})
	require.Equal(t, http.StatusCreated, res.StatusCode)

	res = s.postJSON(t, "/login", model.LoginRequest{Email: email, Password: "pw"})
	require.Equal(t, http.StatusOK, res.StatusCode)

	var login model.LoginResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&login))
	return login
}

func (s *testServer) dial(t *testing.T, path string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	u := "ws" + strings.TrimPrefix(s.URL, "http") + path
	return websocket.Dial(ctx, u, nil)
}

func readEnvelope(t *testing.T, c *websocket.Conn) model.Envelope {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	typ, p, err := c.Read(ctx)
	require.NoError(t, err)
	require.Equal(t, websocket.MessageText, typ)

	var env model.Envelope
	require.NoError(t, json.Unmarshal(p, &env))
	return env
}

func TestRegisterAndLogin(t *testing.T) {
	s := newTestServer(t, "")

	res := s.postJSON(t, "/register", model.RegisterRequest{Email: "a@test.com", Username: "alice", Password: "pw"})
	assert.Equal(t, http.StatusCreated, res.StatusCode)

	res = s.postJSON(t, "/register", model.RegisterRequest{Email: "a@test.com", Username: "again", Password: "pw"})
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	res = s.postJSON(t, "/login", model.LoginRequest{Email: "a@test.com", Password: "pw"})
	require.Equal(t, http.StatusOK, res.StatusCode)
	var login model.LoginResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&login))
	assert.Equal(t, int64(1), login.User)
	assert.Empty(t, login.Token, "no token without a secret")

	res = s.postJSON(t, "/login", model.LoginRequest{Email: "a@test.com", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	res = s.postJSON(t, "/login", model.LoginRequest{Email: "nobody@test.com", Password: "pw"})
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestRoot(t *testing.T) {
	s := newTestServer(t, "")

	res := s.do(t, http.MethodGet, "/")
	require.Equal(t, http.StatusOK, res.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Equal(t, "Hello World", body["message"])

	res = s.do(t, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res = s.do(t, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestDeleteMessage(t *testing.T) {
	s := newTestServer(t, "")
	login := s.signup(t, "a@test.com", "alice")

	msg, err := s.store.CreateMessage(context.Background(), login.User, "bye")
	require.NoError(t, err)

	res := s.do(t, http.MethodDelete, "/message/999")
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	res = s.do(t, http.MethodDelete, "/message/abc")
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	res = s.do(t, http.MethodDelete, "/message/1")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, int64(1), msg.ID)

	res = s.do(t, http.MethodGet, "/messages")
	require.Equal(t, http.StatusOK, res.StatusCode)
	var body struct {
		Data []model.MessageView `json:"data"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Empty(t, body.Data)
}

func TestChatOverWebsocket(t *testing.T) {
	s := newTestServer(t, "")
	alice := s.signup(t, "a@test.com", "alice")
	bob := s.signup(t, "b@test.com", "bob")

	a, _, err := s.dial(t, "/ws/1")
	require.NoError(t, err)
	defer a.CloseNow()
	b, _, err := s.dial(t, "/ws/2")
	require.NoError(t, err)
	defer b.CloseNow()

	require.Eventually(t, func() bool { return s.registry.Len() == 2 }, 2*time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, a.Write(ctx, websocket.MessageText, []byte("hi")))

	for _, c := range []*websocket.Conn{a, b} {
		env := readEnvelope(t, c)
		assert.Equal(t, alice.User, env.ClientID)
		assert.Equal(t, "hi", env.Message)
		assert.Len(t, env.Time, 5)
	}

	res := s.do(t, http.MethodGet, "/online")
	var online struct {
		Data []int64 `json:"data"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&online))
	assert.Equal(t, []int64{alice.User, bob.User}, online.Data)

	require.NoError(t, a.Close(websocket.StatusNormalClosure, ""))

	env := readEnvelope(t, b)
	assert.Equal(t, alice.User, env.ClientID)
	assert.Equal(t, model.StatusOffline, env.Message)
	assert.Equal(t, 1, s.registry.Len())

	res = s.do(t, http.MethodGet, "/messages")
	var history struct {
		Data []model.MessageView `json:"data"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&history))
	require.Len(t, history.Data, 1)
	assert.Equal(t, model.MessageView{ID: 1, SenderID: alice.User, Sender: "alice", Online: false, Content: "hi"}, history.Data[0])
}

func TestWebsocketUnknownClient(t *testing.T) {
	s := newTestServer(t, "")

	c, _, err := s.dial(t, "/ws/999")
	require.NoError(t, err)
	defer c.CloseNow()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _, err = c.Read(ctx)
	require.Error(t, err)
	assert.Equal(t, websocket.StatusPolicyViolation, websocket.CloseStatus(err))
	assert.Equal(t, 0, s.registry.Len())
}

func TestWebsocketBadClientID(t *testing.T) {
	s := newTestServer(t, "")

	_, res, err := s.dial(t, "/ws/abc")
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestWebsocketTokenGuard(t *testing.T) {
	s := newTestServer(t, "secret")
	alice := s.signup(t, "a@test.com", "alice")
	require.NotEmpty(t, alice.Token)

	_, res, err := s.dial(t, "/ws/1")
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	_, res, err = s.dial(t, "/ws/2?token="+alice.Token)
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	c, _, err := s.dial(t, "/ws/1?token="+alice.Token)
	require.NoError(t, err)
	defer c.CloseNow()

	require.Eventually(t, func() bool { return s.registry.Count(alice.User) == 1 }, 2*time.Second, 5*time.Millisecond)
}
