// Package registry tracks the set of live connections and fans payloads out
// to them.
package registry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/johndosdos/chatroom/internal/metrics"
)

// Registry owns the set of live connections. Structural changes take the
// write lock; Broadcast delivers to a snapshot taken under the read lock, so
// no lock is held while payloads are queued.
type Registry struct {
	mu       sync.RWMutex
	conns    map[uuid.UUID]*Conn
	byClient map[int64]int
	logger   zerolog.Logger
}

// New returns an empty Registry.
func New(logger zerolog.Logger) *Registry {
	return &Registry{
		conns:    make(map[uuid.UUID]*Conn),
		byClient: make(map[int64]int),
		logger:   logger.With().Str("component", "registry").Logger(),
	}
}

// Register adds c to the active set. Registering the same Conn twice is a
// no-op.
func (r *Registry) Register(c *Conn) {
	r.mu.Lock()
	if _, ok := r.conns[c.ID]; ok {
		r.mu.Unlock()
		return
	}
	r.conns[c.ID] = c
	r.byClient[c.ClientID]++
	total := len(r.conns)
	r.mu.Unlock()

	metrics.ConnectionsActive.Inc()
	r.logger.Debug().
		Str("conn_id", c.ID.String()).
		Int64("client_id", c.ClientID).
		Int("total", total).
		Msg("connection registered")
}

// Unregister removes c and closes its outbound queue. It returns how many
// connections remain registered for c's client id. Unregistering a Conn
// that is not in the set does nothing.
func (r *Registry) Unregister(c *Conn) int {
	r.mu.Lock()
	if _, ok := r.conns[c.ID]; !ok {
		remaining := r.byClient[c.ClientID]
		r.mu.Unlock()
		return remaining
	}
	delete(r.conns, c.ID)
	r.byClient[c.ClientID]--
	remaining := r.byClient[c.ClientID]
	if remaining == 0 {
		delete(r.byClient, c.ClientID)
	}
	total := len(r.conns)
	r.mu.Unlock()

	c.close()

	metrics.ConnectionsActive.Dec()
	r.logger.Debug().
		Str("conn_id", c.ID.String()).
		Int64("client_id", c.ClientID).
		Int("total", total).
		Msg("connection unregistered")

	return remaining
}

// Broadcast queues payload on every registered connection and returns the
// number of successful deliveries. A failed delivery is logged and does not
// affect the other recipients.
func (r *Registry) Broadcast(payload []byte) int {
	snapshot := r.snapshot()

	delivered := 0
	for _, c := range snapshot {
		if err := c.enqueue(payload); err != nil {
			r.deliveryFailed(c, err)
			continue
		}
		metrics.BroadcastDeliveries.WithLabelValues("ok").Inc()
		delivered++
	}

	return delivered
}

// SendTo queues payload on c alone.
func (r *Registry) SendTo(c *Conn, payload []byte) error {
	r.mu.RLock()
	_, ok := r.conns[c.ID]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("internal/registry: send to %s: %w", c.ID, ErrNotRegistered)
	}

	if err := c.enqueue(payload); err != nil {
		return fmt.Errorf("internal/registry: send to %s: %w", c.ID, err)
	}
	return nil
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Count returns the number of registered connections bound to clientID.
func (r *Registry) Count(clientID int64) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byClient[clientID]
}

func (r *Registry) snapshot() []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]*Conn, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	return conns
}

func (r *Registry) deliveryFailed(c *Conn, err error) {
	result := "closed"
	if errors.Is(err, ErrQueueFull) {
		result = "queue_full"
	}
	metrics.BroadcastDeliveries.WithLabelValues(result).Inc()

	r.logger.Warn().
		Err(err).
		Str("conn_id", c.ID.String()).
		Int64("client_id", c.ClientID).
		Msg("skipping broadcast delivery")
}
