package app

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/qing-wang/WebRTC-SS/internal/core"
)

// fakeConn collects frames the engine pushes to one connection.
type fakeConn struct {
	id core.SessionID

	mu       sync.Mutex
	frames   []core.Frame
	closed   bool
	sendFail bool
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: core.SessionID(id)}
}

func (c *fakeConn) ID() core.SessionID { return c.id }

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendFail {
		return errors.New("send failed")
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) received() []core.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]core.Envelope, 0, len(c.frames))
	for _, f := range c.frames {
		var env core.Envelope
		if err := json.Unmarshal(f, &env); err != nil {
			continue
		}
		out = append(out, env)
	}
	return out
}

// lastEnvelope fails the test when the connection received nothing.
func (c *fakeConn) lastEnvelope(t *testing.T) core.Envelope {
	t.Helper()
	got := c.received()
	require.NotEmpty(t, got, "connection %s received no envelopes", c.id)
	return got[len(got)-1]
}

// sendRaw marshals env and feeds it to the engine as a text frame.
func sendRaw(t *testing.T, e *Engine, conn core.SignalConnection, env core.Envelope) {
	t.Helper()
	raw, err := json.Marshal(env)
	require.NoError(t, err)
	e.OnTextFrame(conn, raw)
}
