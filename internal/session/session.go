// Package session runs the per-connection control loop: it binds a
// transport to a client id, keeps presence in step with the connection and
// relays every inbound frame to the store and then to all connections.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/johndosdos/chatroom/internal/metrics"
	"github.com/johndosdos/chatroom/internal/model"
	"github.com/johndosdos/chatroom/internal/presence"
	"github.com/johndosdos/chatroom/internal/registry"
)

// ErrClosed is returned by Transport.Receive once the peer has gone away
// normally.
var ErrClosed = errors.New("internal/session: transport closed")

// Transport is one accepted bidirectional connection.
type Transport interface {
	// Receive blocks until the next text frame arrives.
	Receive(ctx context.Context) (string, error)
	// Send writes a single text frame.
	Send(ctx context.Context, payload []byte) error
	// Close ends the connection normally.
	Close(reason string) error
	// Reject ends a connection that never became active.
	Reject(reason string) error
}

// MessageStore persists chat messages.
type MessageStore interface {
	CreateMessage(ctx context.Context, senderID int64, content string) (model.Message, error)
}

type sanitizer interface {
	Sanitize(s string) string
}

// Config tunes a Coordinator. Zero values fall back to the defaults below.
type Config struct {
	QueueSize      int
	RateLimit      int
	RateWindow     time.Duration
	IdleTimeout    time.Duration
	WriteTimeout   time.Duration
	CleanupTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.QueueSize <= 0 {
		c.QueueSize = registry.DefaultQueueSize
	}
	if c.RateWindow <= 0 {
		c.RateWindow = time.Minute
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.CleanupTimeout <= 0 {
		c.CleanupTimeout = 5 * time.Second
	}
	return c
}

// Coordinator owns the lifecycle of every session.
type Coordinator struct {
	registry  *registry.Registry
	presence  *presence.Tracker
	messages  MessageStore
	sanitizer sanitizer
	logger    zerolog.Logger
	now       func() time.Time
	cfg       Config
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClock replaces time.Now for envelope timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// New returns a Coordinator wired to its collaborators.
func New(reg *registry.Registry, tracker *presence.Tracker, messages MessageStore,
	logger zerolog.Logger, cfg Config, opts ...Option) *Coordinator {
	c := &Coordinator{
		registry:  reg,
		presence:  tracker,
		messages:  messages,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "session").Logger(),
		now:       time.Now,
		cfg:       cfg.withDefaults(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Serve runs one session to completion. It returns an error only when the
// session could not be set up; once active, it returns nil after cleanup.
func (c *Coordinator) Serve(ctx context.Context, t Transport, clientID int64) error {
	log := c.logger.With().Int64("client_id", clientID).Logger()

	// Connecting.
	if err := c.presence.Acquire(ctx, clientID); err != nil {
		log.Warn().Err(err).Msg("refusing connection")
		if rerr := t.Reject("unknown client"); rerr != nil {
			log.Debug().Err(rerr).Msg("failed to reject connection")
		}
		return fmt.Errorf("internal/session: connect client %d: %w", clientID, err)
	}

	conn := registry.NewConn(clientID, c.cfg.QueueSize)
	c.registry.Register(conn)
	log = log.With().Str("conn_id", conn.ID.String()).Logger()
	log.Info().Msg("client connected")

	// Active.
	ctx, cancel := context.WithCancel(ctx)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writePump(ctx, cancel, t, conn, log)
	}()

	c.readLoop(ctx, t, conn, log)

	// Closed.
	c.teardown(conn, log)
	cancel()
	<-writerDone

	if err := t.Close("connection closed"); err != nil {
		log.Debug().Err(err).Msg("failed to close transport")
	}
	log.Info().Msg("client disconnected")

	return nil
}

// readLoop processes frames strictly in arrival order until the transport
// fails or ctx is cancelled.
func (c *Coordinator) readLoop(ctx context.Context, t Transport, conn *registry.Conn, log zerolog.Logger) {
	var limiter *rate.Limiter
	if c.cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Every(c.cfg.RateWindow/time.Duration(c.cfg.RateLimit)), c.cfg.RateLimit)
	}

	for {
		text, err := c.receive(ctx, t)
		if err != nil {
			switch {
			case errors.Is(err, ErrClosed):
				log.Debug().Msg("peer closed connection")
			case ctx.Err() != nil:
				log.Debug().Err(ctx.Err()).Msg("session context done")
			default:
				log.Warn().Err(err).Msg("receive failed")
			}
			return
		}

		c.handleFrame(ctx, conn, text, limiter, log)
	}
}

func (c *Coordinator) receive(ctx context.Context, t Transport) (string, error) {
	if c.cfg.IdleTimeout <= 0 {
		return t.Receive(ctx)
	}

	readCtx, cancel := context.WithTimeout(ctx, c.cfg.IdleTimeout)
	defer cancel()
	return t.Receive(readCtx)
}

func (c *Coordinator) handleFrame(ctx context.Context, conn *registry.Conn, text string,
	limiter *rate.Limiter, log zerolog.Logger) {
	if text == "" {
		metrics.MessagesDropped.WithLabelValues("empty").Inc()
		return
	}

	if limiter != nil && !limiter.Allow() {
		metrics.MessagesDropped.WithLabelValues("rate_limited").Inc()
		metrics.RateLimitHits.WithLabelValues("ws").Inc()
		c.warnRateLimited(conn, log)
		return
	}

	// Strip markup, then undo the entity escaping the policy applies so that
	// plain text such as "Tom & Jerry" is stored as typed.
	content := html.UnescapeString(c.sanitizer.Sanitize(text))
	if content == "" {
		metrics.MessagesDropped.WithLabelValues("empty").Inc()
		return
	}

	msg, err := c.messages.CreateMessage(ctx, conn.ClientID, content)
	if err != nil {
		metrics.MessagesDropped.WithLabelValues("store_error").Inc()
		log.Error().Err(err).Msg("failed to store message")
		return
	}
	metrics.MessagesPersisted.Inc()

	delivered := c.broadcast(model.NewEnvelope(c.now(), conn.ClientID, msg.Content), log)
	log.Debug().Int64("message_id", msg.ID).Int("delivered", delivered).Msg("message broadcast")
}

func (c *Coordinator) warnRateLimited(conn *registry.Conn, log zerolog.Logger) {
	payload, err := json.Marshal(model.NewEnvelope(c.now(), conn.ClientID, model.StatusRateLimited))
	if err != nil {
		log.Error().Err(err).Msg("failed to encode envelope")
		return
	}
	if err := c.registry.SendTo(conn, payload); err != nil {
		log.Warn().Err(err).Msg("failed to send rate limit warning")
	}
}

// teardown runs every cleanup step even when an earlier one fails. It uses
// its own context because the session's may already be cancelled.
func (c *Coordinator) teardown(conn *registry.Conn, log zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.CleanupTimeout)
	defer cancel()

	c.registry.Unregister(conn)

	// The Offline broadcast happens inside the release so a reconnect by the
	// same client cannot slip in between the flag change and the broadcast.
	_, err := c.presence.ReleaseWith(ctx, conn.ClientID, func() {
		c.broadcast(model.NewEnvelope(c.now(), conn.ClientID, model.StatusOffline), log)
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to mark client offline")
	}
}

func (c *Coordinator) broadcast(env model.Envelope, log zerolog.Logger) int {
	payload, err := json.Marshal(env)
	if err != nil {
		log.Error().Err(err).Msg("failed to encode envelope")
		return 0
	}
	return c.registry.Broadcast(payload)
}

// writePump drains the connection's queue to the transport. A failed write
// cancels the session so the read loop stops too.
func (c *Coordinator) writePump(ctx context.Context, cancel context.CancelFunc, t Transport,
	conn *registry.Conn, log zerolog.Logger) {
	for {
		select {
		case payload, ok := <-conn.Outbound():
			if !ok {
				return
			}

			writeCtx, writeCancel := context.WithTimeout(ctx, c.cfg.WriteTimeout)
			err := t.Send(writeCtx, payload)
			writeCancel()
			if err != nil {
				log.Warn().Err(err).Msg("failed to write to client")
				cancel()
				return
			}

		case <-ctx.Done():
			return
		}
	}
}
