// Package ws adapts a gorilla/websocket connection to the engine's
// SignalConnection contract: one reader goroutine, one writer goroutine,
// a buffered outbound channel in between.
package ws

import (
	"errors"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/qing-wang/WebRTC-SS/internal/core"
)

var ErrBackpressure = errors.New("backpressure")

type wsConn struct {
	id   core.SessionID
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func newWSConn(id core.SessionID, conn *websocket.Conn) *wsConn {
	return &wsConn{
		id:   id,
		conn: conn,
		send: make(chan core.Frame, 32),
	}
}

func (c *wsConn) ID() core.SessionID { return c.id }

// TrySend queues a frame without blocking. A full send buffer counts as a
// failed delivery; the engine logs and drops it.
func (c *wsConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *wsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}
