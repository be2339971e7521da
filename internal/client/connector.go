package client

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/nmamano/wallgame/internal/obslog"
	"github.com/nmamano/wallgame/internal/session"
	"github.com/nmamano/wallgame/pkg/wire"
)

// ConnState is the connector's lifecycle state, reported through the state
// callback.
type ConnState string

const (
	StateDisconnected ConnState = "disconnected"
	StateConnecting   ConnState = "connecting"
	StateConnected    ConnState = "connected"
	StateReconnecting ConnState = "reconnecting"
	StateFailed       ConnState = "failed"
)

// EnvelopeCallback receives every frame pushed by the server, replay
// included, in arrival order.
type EnvelopeCallback func(wire.Envelope)

// StateCallback observes connector state transitions.
type StateCallback func(ConnState)

// Connector maintains the duplex channel for one credential. It redials with
// backoff after a transport drop, asking only for the plies past what the
// lastPly callback reports, so catch-up after reconnect is exactly the missed
// tail. An invalid_credential frame halts reconnection for good; only a fresh
// handshake can continue from there.
type Connector struct {
	baseWSURL string
	cred      *session.Credential
	lastPly   func() int

	connMu sync.Mutex
	conn   *websocket.Conn

	state  ConnState
	stateM sync.RWMutex

	onEnvelope EnvelopeCallback
	onState    StateCallback

	maxReconnectAttempts int

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewConnector builds a connector for cred against baseWSURL (ws:// or
// wss:// host root). lastPly must return the highest ply index the caller
// has applied, -1 before any.
func NewConnector(baseWSURL string, cred *session.Credential, lastPly func() int, onEnvelope EnvelopeCallback, onState StateCallback) *Connector {
	return &Connector{
		baseWSURL:            baseWSURL,
		cred:                 cred,
		lastPly:              lastPly,
		onEnvelope:           onEnvelope,
		onState:              onState,
		state:                StateDisconnected,
		maxReconnectAttempts: 8,
		stopCh:               make(chan struct{}),
	}
}

func (c *Connector) socketURL() string {
	return fmt.Sprintf("%s/api/sessions/%s/ws?socket_token=%s&last_ply=%d",
		c.baseWSURL, c.cred.GameID, url.QueryEscape(c.cred.SocketToken), c.lastPly())
}

// Connect dials the socket and starts the read loop. Returns the dial error
// without scheduling a retry; once connected, later drops reconnect on their
// own.
func (c *Connector) Connect(ctx context.Context) error {
	c.setState(StateConnecting)

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(dialCtx, c.socketURL(), nil)
	if err != nil {
		c.setState(StateFailed)
		return fmt.Errorf("dial socket: %w", err)
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()
	c.setState(StateConnected)

	c.wg.Add(1)
	go c.listen(conn)
	return nil
}

func (c *Connector) listen(conn *websocket.Conn) {
	defer c.wg.Done()
	for {
		var env wire.Envelope
		if err := wsjson.Read(context.Background(), conn, &env); err != nil {
			if c.isStopping() {
				return
			}
			c.setState(StateDisconnected)
			c.scheduleReconnect()
			return
		}

		if env.Type == wire.TypeInvalidCredential {
			// the server closes after this frame; retrying the same token
			// is pointless, so surface it and stop for good
			obslog.L().Warn("socket_credential_rejected", zap.String("game_id", c.cred.GameID))
			if c.onEnvelope != nil {
				c.onEnvelope(env)
			}
			c.setState(StateFailed)
			return
		}
		if c.onEnvelope != nil {
			c.onEnvelope(env)
		}
	}
}

func (c *Connector) scheduleReconnect() {
	c.setState(StateReconnecting)
	go func() {
		for attempt := 1; attempt <= c.maxReconnectAttempts; attempt++ {
			select {
			case <-c.stopCh:
				return
			case <-time.After(backoffDuration(attempt)):
			}

			dialCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			conn, _, err := websocket.Dial(dialCtx, c.socketURL(), nil)
			cancel()
			if err != nil {
				obslog.L().Warn("socket_redial_failed",
					zap.String("game_id", c.cred.GameID),
					zap.Int("attempt", attempt),
					zap.Error(err),
				)
				continue
			}
			// Close may have landed while the dial was in flight; don't
			// leak the socket or start a listener nobody will stop
			if c.isStopping() {
				_ = conn.Close(websocket.StatusNormalClosure, "client close")
				return
			}

			c.connMu.Lock()
			c.conn = conn
			c.connMu.Unlock()
			c.setState(StateConnected)

			c.wg.Add(1)
			go c.listen(conn)
			return
		}
		c.setState(StateFailed)
	}()
}

// Send writes one envelope to the current connection.
func (c *Connector) Send(ctx context.Context, env wire.Envelope) error {
	c.connMu.Lock()
	conn := c.conn
	c.connMu.Unlock()
	if conn == nil {
		return fmt.Errorf("socket not connected")
	}
	wctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return wsjson.Write(wctx, conn, env)
}

// State returns the current lifecycle state.
func (c *Connector) State() ConnState {
	c.stateM.RLock()
	defer c.stateM.RUnlock()
	return c.state
}

func (c *Connector) setState(s ConnState) {
	c.stateM.Lock()
	c.state = s
	c.stateM.Unlock()
	if c.onState != nil {
		c.onState(s)
	}
}

func (c *Connector) isStopping() bool {
	select {
	case <-c.stopCh:
		return true
	default:
		return false
	}
}

// Close stops reconnection and closes the transport. Safe to call more than
// once.
func (c *Connector) Close(ctx context.Context) error {
	c.stopOnce.Do(func() { close(c.stopCh) })

	c.connMu.Lock()
	conn := c.conn
	c.conn = nil
	c.connMu.Unlock()
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "client close")
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		c.setState(StateDisconnected)
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	base := 100 * time.Millisecond
	return time.Duration(1<<uint(attempt-1)) * base
}
