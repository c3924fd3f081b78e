package registry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

var (
	// ErrTransport is the root of every per-recipient delivery failure.
	ErrTransport = errors.New("internal/registry: transport error")
	// ErrConnClosed means the connection's queue is already closed.
	ErrConnClosed = fmt.Errorf("%w: connection closed", ErrTransport)
	// ErrQueueFull means the recipient is not draining its queue fast enough.
	ErrQueueFull = fmt.Errorf("%w: send queue full", ErrTransport)
	// ErrNotRegistered is returned by SendTo for a connection outside the set.
	ErrNotRegistered = fmt.Errorf("%w: connection not registered", ErrTransport)
)

// DefaultQueueSize is the outbound buffer of a Conn created with size <= 0.
const DefaultQueueSize = 64

// Conn is one live connection bound to a client id. Payloads are queued on
// a buffered channel that the transport's writer drains via Outbound.
type Conn struct {
	ID       uuid.UUID
	ClientID int64

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

// NewConn returns a Conn for clientID with an outbound queue of queueSize.
func NewConn(clientID int64, queueSize int) *Conn {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Conn{
		ID:       uuid.New(),
		ClientID: clientID,
		send:     make(chan []byte, queueSize),
	}
}

// Outbound is the queue the writer pump reads from. It is closed once the
// connection is unregistered.
func (c *Conn) Outbound() <-chan []byte {
	return c.send
}

// enqueue never blocks; the lock only guards against sending on a closed
// channel.
func (c *Conn) enqueue(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrConnClosed
	}

	select {
	case c.send <- payload:
		return nil
	default:
		return ErrQueueFull
	}
}

func (c *Conn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}
