// Package websocket adapts coder/websocket connections to session.Transport.
package websocket

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/coder/websocket"

	"github.com/johndosdos/chatroom/internal/session"
)

// Transport is an accepted websocket connection.
type Transport struct {
	conn *websocket.Conn
}

// Accept upgrades the request. When allowedOrigins is empty origin checks
// are skipped, matching the allow-all CORS policy of the HTTP API.
func Accept(w http.ResponseWriter, r *http.Request, allowedOrigins []string) (*Transport, error) {
	opts := &websocket.AcceptOptions{
		InsecureSkipVerify: len(allowedOrigins) == 0,
		OriginPatterns:     allowedOrigins,
	}

	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		return nil, fmt.Errorf("internal/websocket: failed to upgrade connection: %w", err)
	}

	return &Transport{conn: conn}, nil
}

// Receive returns the next text frame. Binary frames are skipped; the app
// only speaks text.
func (t *Transport) Receive(ctx context.Context) (string, error) {
	for {
		msgType, p, err := t.conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				return "", session.ErrClosed
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return "", err
			}
			return "", fmt.Errorf("internal/websocket: read: %w", err)
		}

		if msgType != websocket.MessageText {
			continue
		}

		return string(p), nil
	}
}

// Send writes payload as one text frame.
func (t *Transport) Send(ctx context.Context, payload []byte) error {
	if err := t.conn.Write(ctx, websocket.MessageText, payload); err != nil {
		return fmt.Errorf("internal/websocket: write: %w", err)
	}
	return nil
}

func (t *Transport) Close(reason string) error {
	return t.conn.Close(websocket.StatusNormalClosure, reason)
}

func (t *Transport) Reject(reason string) error {
	return t.conn.Close(websocket.StatusPolicyViolation, reason)
}
