// Package match implements the multiplayer coordinator: per-connection
// state, per-team lobbies, the session protocol loop, and the
// match-wide controller that owns winner election, pausing, and the
// scoreboard. All mutation of shared state is serialized through
// MatchController's single mutex; connections are written to only after
// that lock is released, using a snapshot of the recipient set — the
// same discipline the teacher's websocket Hub uses around its broadcast
// loop.
package match

import (
	"net"
	"sync"
	"time"

	"github.com/sebastiandperez/hascill-crypto-race/internal/wire"
)

const (
	rateLimitWindow = 2 * time.Second
	rateLimitMax    = 6
)

// ClientConn is one framed TCP connection: a team member with a rate
// limiter tracking its recent step_answer submissions.
type ClientConn struct {
	ID       int
	TeamID   int
	conn     net.Conn
	writeMu  sync.Mutex
	submitMu sync.Mutex
	recent   []time.Time
}

func newClientConn(id, team int, c net.Conn) *ClientConn {
	return &ClientConn{ID: id, TeamID: team, conn: c}
}

// Send writes one framed JSON message to the connection. Safe for
// concurrent use — every caller (the owning session loop, controller
// broadcasts, the admin console) serializes through writeMu.
func (c *ClientConn) Send(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return wire.WriteFrame(c.conn, v)
}

// Recv reads the next framed JSON message from the connection.
func (c *ClientConn) Recv(v interface{}) error {
	return wire.ReadFrame(c.conn, v)
}

// Close closes the underlying socket. In-flight writes are abandoned.
func (c *ClientConn) Close() error {
	return c.conn.Close()
}

// AllowSubmission records a step_answer attempt at time now and reports
// whether it falls within the rate limit (at most 6 in any 2.0s window).
// The window is purged of stale entries on every call.
func (c *ClientConn) AllowSubmission(now time.Time) bool {
	c.submitMu.Lock()
	defer c.submitMu.Unlock()

	cutoff := now.Add(-rateLimitWindow)
	kept := c.recent[:0]
	for _, ts := range c.recent {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	c.recent = append(kept, now)
	return len(c.recent) <= rateLimitMax
}
