package relay

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nmamano/wallgame/internal/obslog"
	"github.com/nmamano/wallgame/internal/rules"
	"github.com/nmamano/wallgame/internal/session"
	"github.com/nmamano/wallgame/internal/timeline"
	"github.com/nmamano/wallgame/pkg/wire"
)

// liveSession is the server-side state of one running match. Its mutex is
// the session's unit of serialization: move appends, connection swaps, and
// replay all run under it, so two near-simultaneous submissions can never
// both pass the next-index check. Different sessions never contend.
type liveSession struct {
	gameID    string
	matchType string
	engine    rules.Engine
	createdAt time.Time

	mu        sync.Mutex
	tl        *timeline.Timeline
	conns     map[session.Role]*conn
	players   map[session.Role]string
	finished  bool
	emptyFrom time.Time
}

func newLiveSession(rec *session.Record, engine rules.Engine) *liveSession {
	players := map[session.Role]string{}
	if rec.Host != nil {
		players[session.RoleHost] = rec.Host.PlayerID
	}
	if rec.Joiner != nil {
		players[session.RoleJoiner] = rec.Joiner.PlayerID
	}
	return &liveSession{
		gameID:    rec.GameID,
		matchType: rec.MatchType,
		engine:    engine,
		createdAt: time.Now(),
		tl:        timeline.New(),
		conns:     make(map[session.Role]*conn),
		players:   players,
		emptyFrom: time.Now(),
	}
}

// expectedMover derives whose turn a ply index is: the host owns even
// indices (the host always moves first).
func expectedMover(plyIndex int) session.Role {
	if plyIndex%2 == 0 {
		return session.RoleHost
	}
	return session.RoleJoiner
}

// attach registers a connection for its seat and replays the timeline tail
// past lastKnownPlyIndex (use -1 for a fresh client) before any new push can
// be interleaved. A previous connection on the same seat is displaced.
// Returns the displaced conn, if any, and the peer to notify.
func (s *liveSession) attach(c *conn, lastKnownPlyIndex int) (displaced, peer *conn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	displaced = s.conns[c.role]
	s.conns[c.role] = c
	if s.players[c.role] == "" {
		s.players[c.role] = c.playerID
	}

	welcome, _ := wire.NewEnvelope(wire.TypeWelcome, wire.Welcome{
		GameID:         s.gameID,
		Role:           string(c.role),
		LatestPlyIndex: s.tl.LatestIndex(),
	})
	c.enqueue(welcome)
	for _, p := range s.tl.Tail(lastKnownPlyIndex) {
		env, _ := wire.NewEnvelope(wire.TypeMovePush, wire.MovePush{
			PlyIndex: p.Index,
			Notation: p.Notation,
			PlayerID: p.PlayerID,
		})
		c.enqueue(env)
	}

	peer = s.conns[otherRole(c.role)]
	return displaced, peer
}

// detach removes the connection if it is still the seat's current one.
// Returns the peer to notify, or nil, and whether the seat actually changed.
func (s *liveSession) detach(c *conn) (peer *conn, removed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conns[c.role] != c {
		return nil, false
	}
	delete(s.conns, c.role)
	if len(s.conns) == 0 {
		s.emptyFrom = time.Now()
	}
	return s.conns[otherRole(c.role)], true
}

// submitMove validates and appends a candidate ply. On success both
// connections receive the push in append order; on failure only the
// submitter hears about it and the timeline is untouched.
func (s *liveSession) submitMove(c *conn, sub wire.MoveSubmit) (appended bool, errCode string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finished {
		return false, wire.CodeNotConnected
	}
	next := s.tl.LatestIndex() + 1
	if expectedMover(next) != c.role {
		return false, wire.CodeNotYourTurn
	}
	if sub.PlyIndex != next {
		return false, wire.CodeOutOfOrder
	}
	if !s.engine.IsLegal(s.tl.Notations(), sub.Notation) {
		return false, wire.CodeIllegalMove
	}

	ply := timeline.Ply{Index: next, Notation: sub.Notation, PlayerID: c.playerID}
	if err := s.tl.Append(ply); err != nil {
		// unreachable while the mutex is held; kept as a hard guard
		return false, wire.CodeOutOfOrder
	}

	env, _ := wire.NewEnvelope(wire.TypeMovePush, wire.MovePush{
		PlyIndex: ply.Index,
		Notation: ply.Notation,
		PlayerID: ply.PlayerID,
	})
	for _, peer := range s.conns {
		peer.enqueue(env)
	}
	obslog.L().Info("move_append",
		zap.String("game_id", s.gameID),
		zap.Int("ply_index", ply.Index),
		zap.String("player_id", ply.PlayerID),
	)
	return true, ""
}

// outcome consults the engine about whether the match has ended. It returns
// done=false for engines that cannot decide (permissive match types play on
// until the session is ended explicitly).
func (s *liveSession) outcome() (result string, done bool) {
	decider, ok := s.engine.(rules.Decider)
	if !ok {
		return "", false
	}
	s.mu.Lock()
	played := s.tl.Notations()
	if s.finished {
		s.mu.Unlock()
		return "", false
	}
	s.mu.Unlock()
	result = decider.Outcome(played)
	return result, result != ""
}

// participants snapshots the seat assignments for readers outside the mutex.
func (s *liveSession) participants() (hostID, joinerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.players[session.RoleHost], s.players[session.RoleJoiner]
}

func (s *liveSession) markFinished() {
	s.mu.Lock()
	s.finished = true
	s.mu.Unlock()
}

// broadcastChat fans an accepted chat message out to both participants,
// including the sender.
func (s *liveSession) broadcastChat(text, senderID string) {
	env, _ := wire.NewEnvelope(wire.TypeChatPush, wire.ChatPush{Text: text, SenderID: senderID})
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, peer := range s.conns {
		peer.enqueue(env)
	}
}

// idleSince reports how long the session has had no connections; ok is
// false while anyone is attached.
func (s *liveSession) idleSince(now time.Time) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.conns) > 0 {
		return 0, false
	}
	return now.Sub(s.emptyFrom), true
}

func otherRole(r session.Role) session.Role {
	if r == session.RoleHost {
		return session.RoleJoiner
	}
	return session.RoleHost
}
