package relay

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/nmamano/wallgame/internal/obslog"
	"github.com/nmamano/wallgame/internal/session"
	"github.com/nmamano/wallgame/pkg/wire"
)

const (
	writeTimeout = 10 * time.Second
	sendTimeout  = 5 * time.Second
	readLimit    = 1 << 14
)

// conn is one participant's duplex channel. Outbound frames go through a
// buffered channel drained by a single writer goroutine, so broadcast order
// is the enqueue order.
type conn struct {
	id       string
	gameID   string
	role     session.Role
	playerID string

	ws   *websocket.Conn
	send chan wire.Envelope

	closeOnce sync.Once
	closed    chan struct{}
}

func newConn(id, gameID string, role session.Role, playerID string, ws *websocket.Conn) *conn {
	return &conn{
		id:       id,
		gameID:   gameID,
		role:     role,
		playerID: playerID,
		ws:       ws,
		send:     make(chan wire.Envelope, 256),
		closed:   make(chan struct{}),
	}
}

// enqueue hands a frame to the writer. A connection that cannot drain its
// buffer within sendTimeout is considered dead and closed; the participant
// reconnects and catches up through replay.
func (c *conn) enqueue(env wire.Envelope) bool {
	select {
	case c.send <- env:
		return true
	case <-c.closed:
		return false
	case <-time.After(sendTimeout):
		obslog.L().Warn("conn_send_stalled",
			zap.String("conn_id", c.id),
			zap.String("game_id", c.gameID),
			zap.String("type", env.Type),
		)
		c.close(websocket.StatusPolicyViolation, "send buffer stalled")
		return false
	}
}

// writePump drains the send channel onto the websocket. It owns all writes.
func (c *conn) writePump(ctx context.Context) {
	for {
		select {
		case env := <-c.send:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, c.ws, env)
			cancel()
			if err != nil {
				c.close(websocket.StatusGoingAway, "write failed")
				return
			}
		case <-c.closed:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (c *conn) close(code websocket.StatusCode, reason string) {
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.ws.Close(code, reason)
	})
}
