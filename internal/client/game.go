package client

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/nmamano/wallgame/internal/obslog"
	"github.com/nmamano/wallgame/internal/session"
	"github.com/nmamano/wallgame/internal/timeline"
	"github.com/nmamano/wallgame/pkg/wire"
)

// ErrNotLive is returned by SubmitMove while the view is rewound. The move
// never reaches the server; jump back to live first.
var ErrNotLive = errf("view is rewound; jump to live before moving")

// ErrCredentialRejected means the server refused the socket token. The
// stored credential has been discarded; start a fresh handshake.
var ErrCredentialRejected = errf("credential rejected by server")

type staticErr string

func (e staticErr) Error() string { return string(e) }
func errf(s string) error         { return staticErr(s) }

// Events receives the pushes a UI cares about. All callbacks fire from the
// connector's read goroutine; keep them quick. Any field may be nil.
type Events struct {
	OnMove         func(wire.MovePush)
	OnChat         func(wire.ChatPush)
	OnChatRejected func(wire.ChatRejected)
	OnPeerEvent    func(eventType string, ev wire.PeerEvent)
	OnError        func(wire.Error)
	OnState        func(ConnState)
}

// Game is one participant's view of a running session: the local timeline
// replica, the navigation cursor, and the duplex channel that keeps the
// replica in sync. The replica only grows by server pushes; a submitted move
// is not reflected locally until its push comes back.
type Game struct {
	cred   *session.Credential
	store  CredStore
	events Events

	mu   sync.Mutex
	tl   *timeline.Timeline
	view *timeline.View

	conn *Connector
}

// NewGame wires a game around a credential. Call Connect to go live.
func NewGame(baseWSURL string, cred *session.Credential, store CredStore, events Events) *Game {
	g := &Game{
		cred:   cred,
		store:  store,
		events: events,
		tl:     timeline.New(),
		view:   timeline.NewView(),
	}
	g.conn = NewConnector(baseWSURL, cred, g.lastApplied, g.handle, g.onConnState)
	return g
}

// Connect opens the duplex channel. The welcome frame and the timeline tail
// arrive before any new push.
func (g *Game) Connect(ctx context.Context) error {
	return g.conn.Connect(ctx)
}

// Close tears the channel down. Navigation keeps working on the local
// replica afterwards.
func (g *Game) Close(ctx context.Context) error {
	return g.conn.Close(ctx)
}

// lastApplied feeds the connector's last_ply query parameter, so every
// redial requests only the plies this replica is missing.
func (g *Game) lastApplied() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.tl.LatestIndex()
}

func (g *Game) handle(env wire.Envelope) {
	switch env.Type {
	case wire.TypeWelcome:
		var w wire.Welcome
		if err := env.DecodePayload(&w); err == nil {
			obslog.L().Debug("welcome",
				zap.String("game_id", w.GameID),
				zap.Int("latest_ply", w.LatestPlyIndex),
			)
		}
	case wire.TypeMovePush:
		var p wire.MovePush
		if err := env.DecodePayload(&p); err != nil {
			return
		}
		g.applyPush(p)
	case wire.TypeChatPush:
		var p wire.ChatPush
		if err := env.DecodePayload(&p); err == nil && g.events.OnChat != nil {
			g.events.OnChat(p)
		}
	case wire.TypeChatRejected:
		var rej wire.ChatRejected
		if err := env.DecodePayload(&rej); err == nil && g.events.OnChatRejected != nil {
			g.events.OnChatRejected(rej)
		}
	case wire.TypePeerDisconnected, wire.TypePeerReconnected:
		var ev wire.PeerEvent
		if err := env.DecodePayload(&ev); err == nil && g.events.OnPeerEvent != nil {
			g.events.OnPeerEvent(env.Type, ev)
		}
	case wire.TypeInvalidCredential:
		if g.store != nil {
			_ = g.store.Remove(g.cred.GameID)
		}
		if g.events.OnError != nil {
			g.events.OnError(wire.Error{Code: wire.CodeInvalidCredential, Message: ErrCredentialRejected.Error()})
		}
	case wire.TypeError:
		var e wire.Error
		if err := env.DecodePayload(&e); err == nil && g.events.OnError != nil {
			g.events.OnError(e)
		}
	}
}

// applyPush extends the replica. Replays can overlap with pushes already
// applied; anything at or below the local tip is a duplicate and dropped.
// The cursor is never touched: a rewound view stays exactly where it is.
func (g *Game) applyPush(p wire.MovePush) {
	g.mu.Lock()
	ply := timeline.Ply{Index: p.PlyIndex, Notation: p.Notation, PlayerID: p.PlayerID}
	err := g.tl.Append(ply)
	g.mu.Unlock()
	if err != nil {
		if p.PlyIndex > g.lastApplied() {
			obslog.L().Warn("push_gap_detected",
				zap.String("game_id", g.cred.GameID),
				zap.Int("ply_index", p.PlyIndex),
			)
		}
		return
	}
	if g.events.OnMove != nil {
		g.events.OnMove(p)
	}
}

func (g *Game) onConnState(s ConnState) {
	if g.events.OnState != nil {
		g.events.OnState(s)
	}
}

// SubmitMove sends a candidate ply for the next index. It fails fast with
// ErrNotLive while the view is rewound, without any round trip.
func (g *Game) SubmitMove(ctx context.Context, notation string) error {
	g.mu.Lock()
	if !g.view.Live() {
		g.mu.Unlock()
		return ErrNotLive
	}
	next := g.tl.LatestIndex() + 1
	g.mu.Unlock()

	env, err := wire.NewEnvelope(wire.TypeMoveSubmit, wire.MoveSubmit{PlyIndex: next, Notation: notation})
	if err != nil {
		return err
	}
	return g.conn.Send(ctx, env)
}

// Chat sends a chat message. Rejections come back asynchronously through
// OnChatRejected.
func (g *Game) Chat(ctx context.Context, text string) error {
	env, err := wire.NewEnvelope(wire.TypeChatSend, wire.ChatSend{Text: text})
	if err != nil {
		return err
	}
	return g.conn.Send(ctx, env)
}

// Navigation. All of it is local: the server never learns where the cursor
// is, and incoming pushes never move it.

func (g *Game) StepBack() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.view.StepBack(g.tl)
}

func (g *Game) StepForward() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.view.StepForward(g.tl)
}

func (g *Game) JumpStart() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.view.JumpStart()
}

func (g *Game) JumpEnd() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.view.JumpEnd()
}

func (g *Game) GoTo(index int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.view.GoTo(index, g.tl)
}

// Live reports whether the view tracks the latest ply.
func (g *Game) Live() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.view.Live()
}

// Current resolves the ply under the cursor, or the latest when live.
func (g *Game) Current() (timeline.Ply, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.view.Current(g.tl)
}

// HasNewMoves reports whether plies arrived past a rewound cursor. Always
// false while live.
func (g *Game) HasNewMoves() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.view.HasNewMoves(g.tl)
}

// LatestIndex is the replica's tip, -1 when empty.
func (g *Game) LatestIndex() int {
	return g.lastApplied()
}

// Snapshot copies the local replica, for rendering move lists.
func (g *Game) Snapshot() []timeline.Ply {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.tl.Snapshot()
}

// Credential returns the credential this game runs under.
func (g *Game) Credential() *session.Credential { return g.cred }

// OpenSession resolves a credential for gameID and returns a connected game:
// a stored credential is revalidated through resume, a rejected or missing
// one falls back to joinFresh (which should create or join as the caller
// needs). The winning credential is persisted before the socket opens.
func OpenSession(ctx context.Context, hs *Handshake, store CredStore, baseWSURL, gameID string, joinFresh func(context.Context) (*session.Credential, error), events Events) (*Game, error) {
	var cred *session.Credential
	if store != nil && gameID != "" {
		if stored, ok, err := store.Get(gameID); err == nil && ok {
			fresh, err := hs.Resume(ctx, stored)
			switch {
			case err == nil:
				cred = fresh
			case ctx.Err() != nil:
				// cancelled mid-resume: commit nothing, keep the stored
				// credential for the next attempt
				return nil, ctx.Err()
			default:
				_ = store.Remove(gameID)
			}
		}
	}
	if cred == nil {
		fresh, err := joinFresh(ctx)
		if err != nil {
			return nil, err
		}
		cred = fresh
	}
	if store != nil {
		if err := store.Put(cred); err != nil {
			obslog.L().Warn("credential_persist_failed", zap.String("game_id", cred.GameID), zap.Error(err))
		}
	}

	g := NewGame(baseWSURL, cred, store, events)
	if err := g.Connect(ctx); err != nil {
		return nil, err
	}
	return g, nil
}
