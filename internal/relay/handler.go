package relay

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/nmamano/wallgame/internal/obslog"
	"github.com/nmamano/wallgame/internal/session"
	"github.com/nmamano/wallgame/pkg/wire"
)

// CreateRequest starts a new session with the caller as host.
type CreateRequest struct {
	MatchType string `json:"match_type" binding:"required"`
	PlayerID  string `json:"player_id" binding:"required"`
}

// JoinRequest takes the joiner seat.
type JoinRequest struct {
	PlayerID   string `json:"player_id" binding:"required"`
	InviteCode string `json:"invite_code"`
}

// ResumeRequest revalidates a stored credential after a reload or reconnect.
type ResumeRequest struct {
	Credential session.Credential `json:"credential" binding:"required"`
}

// Routes mounts the handshake endpoints and the duplex socket endpoint.
func Routes(r *gin.Engine, h *Hub, originPatterns []string) {
	api := r.Group("/api")
	api.POST("/sessions", h.handleCreate)
	api.POST("/sessions/:id/join", h.handleJoin)
	api.POST("/invites/:code/join", h.handleJoinByInvite)
	api.POST("/sessions/:id/resume", h.handleResume)
	api.GET("/players/:id/sessions", h.handlePlayerSessions)
	api.GET("/sessions/:id/ws", func(c *gin.Context) { h.handleSocket(c, originPatterns) })
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })
}

func (h *Hub) handleCreate(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cred, err := h.authority.Create(c.Request.Context(), req.MatchType, req.PlayerID)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusCreated, cred)
}

func (h *Hub) handleJoin(c *gin.Context) {
	var req JoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cred, err := h.authority.Join(c.Request.Context(), c.Param("id"), req.PlayerID, req.InviteCode)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, cred)
}

func (h *Hub) handleJoinByInvite(c *gin.Context) {
	var req JoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cred, err := h.authority.Join(c.Request.Context(), "", req.PlayerID, c.Param("code"))
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, cred)
}

func (h *Hub) handleResume(c *gin.Context) {
	var req ResumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cred, err := h.authority.Resume(c.Request.Context(), c.Param("id"), &req.Credential)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, cred)
}

func (h *Hub) handlePlayerSessions(c *gin.Context) {
	ids, err := h.authority.GamesFor(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWith(c, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"game_ids": ids})
}

// handleSocket upgrades the connection, authenticates it with the socket
// token, replays the timeline tail, and then relays frames until the
// transport drops. The handler blocks for the connection's lifetime.
func (h *Hub) handleSocket(c *gin.Context, originPatterns []string) {
	gameID := c.Param("id")
	lastPly := -1
	if v := c.Query("last_ply"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= -1 {
			lastPly = n
		}
	}

	ws, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns: originPatterns,
	})
	if err != nil {
		obslog.L().Warn("ws_accept_failed", zap.String("game_id", gameID), zap.Error(err))
		return
	}
	ws.SetReadLimit(readLimit)
	ctx := c.Request.Context()

	rec, role, err := h.authority.ValidateSocket(ctx, gameID, c.Query("socket_token"))
	if err != nil {
		// explicit in-band signal: the client must re-handshake, not retry
		// the same token
		env, _ := wire.NewEnvelope(wire.TypeInvalidCredential, wire.Error{Code: wire.CodeInvalidCredential})
		_ = wsjson.Write(ctx, ws, env)
		_ = ws.Close(websocket.StatusPolicyViolation, "invalid credential")
		return
	}

	seat := rec.Seat(role)
	cn := newConn(uuid.NewString(), gameID, role, seat.PlayerID, ws)
	go cn.writePump(ctx)

	s := h.liveFor(rec)
	displaced, peer := s.attach(cn, lastPly)
	if displaced != nil {
		displaced.close(websocket.StatusPolicyViolation, "superseded by reconnect")
	}
	if peer != nil {
		env, _ := wire.NewEnvelope(wire.TypePeerReconnected, wire.PeerEvent{
			PlayerID: cn.playerID,
			Notice:   h.notice("peer.reconnected", map[string]any{"Name": cn.playerID}),
		})
		peer.enqueue(env)
	}
	obslog.L().Info("conn_attach",
		zap.String("game_id", gameID),
		zap.String("conn_id", cn.id),
		zap.String("role", string(role)),
		zap.Int("last_known_ply", lastPly),
	)

	for {
		var env wire.Envelope
		if err := wsjson.Read(ctx, ws, &env); err != nil {
			break
		}
		switch env.Type {
		case wire.TypeMoveSubmit:
			var sub wire.MoveSubmit
			if err := env.DecodePayload(&sub); err != nil {
				continue
			}
			h.handleMove(ctx, s, cn, sub)
		case wire.TypeChatSend:
			var cs wire.ChatSend
			if err := env.DecodePayload(&cs); err != nil {
				continue
			}
			h.handleChat(s, cn, cs.Text)
		}
	}

	cn.close(websocket.StatusNormalClosure, "")
	h.onDisconnect(s, cn)
	obslog.L().Info("conn_detach",
		zap.String("game_id", gameID),
		zap.String("conn_id", cn.id),
	)
}

func abortWith(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	code := ""
	switch {
	case errors.Is(err, session.ErrNotFound):
		status, code = http.StatusNotFound, wire.CodeNotFound
	case errors.Is(err, session.ErrAlreadyFull):
		status, code = http.StatusConflict, wire.CodeAlreadyFull
	case errors.Is(err, session.ErrInvalidInvite):
		status, code = http.StatusForbidden, wire.CodeInvalidInvite
	case errors.Is(err, session.ErrInvalidCredential):
		status, code = http.StatusUnauthorized, wire.CodeInvalidCredential
	case errors.Is(err, session.ErrInvalidArgs):
		status = http.StatusBadRequest
	case errors.Is(err, session.ErrFinished):
		status = http.StatusGone
	}
	c.JSON(status, gin.H{"error": err.Error(), "code": code})
}
