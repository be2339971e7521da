package relay

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nmamano/wallgame/internal/archive"
	"github.com/nmamano/wallgame/internal/gate"
	"github.com/nmamano/wallgame/internal/msgcat"
	"github.com/nmamano/wallgame/internal/obslog"
	"github.com/nmamano/wallgame/internal/rules"
	"github.com/nmamano/wallgame/internal/session"
	"github.com/nmamano/wallgame/pkg/wire"
)

// Hub owns every live session on this server instance, plus the shared
// policy gates. Per-connection throttle state lives here (not process-wide)
// and is torn down on disconnect.
type Hub struct {
	authority *session.Authority
	rate      *gate.RateGate
	moderator *gate.Moderator
	notices   *msgcat.Catalog
	repo      *archive.Repository // optional, nil-safe
	engineFor func(matchType string) rules.Engine

	mu       sync.RWMutex
	sessions map[string]*liveSession
}

func NewHub(authority *session.Authority, rate *gate.RateGate, moderator *gate.Moderator, notices *msgcat.Catalog, repo *archive.Repository) *Hub {
	return &Hub{
		authority: authority,
		rate:      rate,
		moderator: moderator,
		notices:   notices,
		repo:      repo,
		engineFor: rules.ForMatchType,
		sessions:  make(map[string]*liveSession),
	}
}

// SetEngineSelector overrides rules-engine selection, mainly for tests.
func (h *Hub) SetEngineSelector(f func(matchType string) rules.Engine) {
	if f != nil {
		h.engineFor = f
	}
}

func (h *Hub) Authority() *session.Authority { return h.authority }

// liveFor returns the in-memory session for a record, creating it on first
// attach.
func (h *Hub) liveFor(rec *session.Record) *liveSession {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.sessions[rec.GameID]; ok {
		return s
	}
	s := newLiveSession(rec, h.engineFor(rec.MatchType))
	h.sessions[rec.GameID] = s
	return s
}

// handleChat runs the rate gate, then moderation, and either broadcasts the
// message or echoes the rejection back to the sender only. Rejections are
// soft: they never close the connection.
func (h *Hub) handleChat(s *liveSession, c *conn, text string) {
	if !h.rate.TryConsume(c.id, time.Now()) {
		h.rejectChat(c, wire.ReasonRateLimited)
		return
	}
	v := h.moderator.Evaluate(text)
	if !v.Allowed {
		h.rejectChat(c, v.Reason)
		return
	}
	s.broadcastChat(text, c.playerID)
}

func (h *Hub) rejectChat(c *conn, reason string) {
	env, _ := wire.NewEnvelope(wire.TypeChatRejected, wire.ChatRejected{
		Reason: reason,
		Notice: h.notice("chat.rejected."+strings.ToLower(reason), map[string]any{"MaxLen": h.moderator.MaxLen()}),
	})
	c.enqueue(env)
}

// handleMove feeds a candidate ply through the session. Failures go back to
// the submitter only; successes are already broadcast by submitMove. When
// the rules engine reports a decided game, the session is finished and the
// result archived.
func (h *Hub) handleMove(ctx context.Context, s *liveSession, c *conn, sub wire.MoveSubmit) {
	appended, code := s.submitMove(c, sub)
	if !appended {
		env, _ := wire.NewEnvelope(wire.TypeError, wire.Error{Code: code})
		c.enqueue(env)
		return
	}

	// mirror progress onto the session record; best effort
	go func(last int) {
		bctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.authority.RecordProgress(bctx, s.gameID, last); err != nil {
			obslog.L().Warn("progress_mirror_failed", zap.String("game_id", s.gameID), zap.Error(err))
		}
	}(sub.PlyIndex)

	if result, done := s.outcome(); done {
		h.finish(ctx, s, result)
	}
}

// finish marks the session over, invalidates credentials, and archives the
// result. Called once per session; later moves fail with NotConnected.
func (h *Hub) finish(ctx context.Context, s *liveSession, result string) {
	s.markFinished()
	if err := h.authority.End(ctx, s.gameID); err != nil {
		obslog.L().Warn("session_end_failed", zap.String("game_id", s.gameID), zap.Error(err))
	}

	hostID, joinerID := s.participants()
	res := &archive.MatchResult{
		GameID:    s.gameID,
		MatchType: s.matchType,
		HostID:    hostID,
		JoinerID:  joinerID,
		Outcome:   result,
		PlyCount:  s.tl.Len(),
		StartedAt: s.createdAt,
		EndedAt:   time.Now(),
	}
	switch result {
	case "white":
		res.WinnerID = res.HostID
	case "black":
		res.WinnerID = res.JoinerID
	}
	go func() {
		bctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.repo.SaveResult(bctx, res); err != nil {
			obslog.L().Error("result_archive_failed", zap.String("game_id", s.gameID), zap.Error(err))
		}
	}()
	obslog.L().Info("session_finished",
		zap.String("game_id", s.gameID),
		zap.String("outcome", result),
		zap.Int("ply_count", res.PlyCount),
	)
}

// onDisconnect detaches the connection, drops its throttle entry, and tells
// the peer. The timeline and the peer's connection are untouched; nothing
// is forfeited here.
func (h *Hub) onDisconnect(s *liveSession, c *conn) {
	h.rate.Forget(c.id)
	peer, removed := s.detach(c)
	if !removed || peer == nil {
		return
	}
	env, _ := wire.NewEnvelope(wire.TypePeerDisconnected, wire.PeerEvent{
		PlayerID: c.playerID,
		Notice:   h.notice("peer.disconnected", map[string]any{"Name": c.playerID}),
	})
	peer.enqueue(env)
}

func (h *Hub) notice(key string, data map[string]any) string {
	if h.notices == nil {
		return ""
	}
	out, err := h.notices.Render(key, data)
	if err != nil {
		return ""
	}
	return out
}

// StartCleanup periodically drops sessions that have had no connection for
// maxIdle. Stops when ctx is cancelled.
func (h *Hub) StartCleanup(ctx context.Context, every, maxIdle time.Duration) {
	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				h.dropIdle(time.Now(), maxIdle)
			}
		}
	}()
}

func (h *Hub) dropIdle(now time.Time, maxIdle time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, s := range h.sessions {
		if idle, ok := s.idleSince(now); ok && idle > maxIdle {
			delete(h.sessions, id)
			obslog.L().Info("session_evicted", zap.String("game_id", id))
		}
	}
}
