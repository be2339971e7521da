package session

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/nmamano/wallgame/internal/obslog"
)

const tokenBytes = 16

// Authority mints and validates session credentials. It is the server-side
// counterpart of the client's credential store.
type Authority struct {
	rdb      *redis.Client
	store    *Store
	shareURL string // base URL for invite links, e.g. https://example.com/g
}

func NewAuthority(rdb *redis.Client, shareBaseURL string) *Authority {
	return &Authority{rdb: rdb, store: NewStore(rdb), shareURL: strings.TrimRight(shareBaseURL, "/")}
}

// Create allocates a new session with the caller as host and registers it as
// awaiting a second participant.
func (a *Authority) Create(ctx context.Context, matchType, hostPlayerID string) (*Credential, error) {
	matchType = strings.TrimSpace(matchType)
	hostPlayerID = strings.TrimSpace(hostPlayerID)
	if matchType == "" || hostPlayerID == "" {
		return nil, ErrInvalidArgs
	}

	gameID := uuid.NewString()
	access, err := newToken(tokenBytes)
	if err != nil {
		return nil, err
	}
	socket, err := newToken(tokenBytes)
	if err != nil {
		return nil, err
	}
	code, err := a.store.AllocateInvite(ctx, gameID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	rec := &Record{
		GameID:       gameID,
		MatchType:    matchType,
		State:        StateLobby,
		InviteCode:   code,
		CreatedAt:    now,
		UpdatedAt:    now,
		Host:         &Seat{PlayerID: hostPlayerID, AccessToken: access, SocketToken: socket},
		LastPlyIndex: -1,
	}
	if err := a.store.SaveRecord(ctx, rec); err != nil {
		return nil, err
	}
	if err := a.store.IndexPlayer(ctx, hostPlayerID, gameID); err != nil {
		return nil, err
	}
	obslog.L().Info("session_create",
		zap.String("game_id", gameID),
		zap.String("match_type", matchType),
		zap.String("host_id", hostPlayerID),
	)
	return &Credential{
		GameID:      gameID,
		AccessToken: access,
		SocketToken: socket,
		Role:        RoleHost,
		PlayerID:    hostPlayerID,
		MatchType:   matchType,
		ShareURL:    a.buildShareURL(gameID, code),
		InviteCode:  code,
	}, nil
}

// Join seats the caller as joiner. The joiner slot is claimed under WATCH on
// the record key so two near-simultaneous joins cannot both win.
func (a *Authority) Join(ctx context.Context, gameID, joinerPlayerID, inviteCode string) (*Credential, error) {
	gameID = strings.TrimSpace(gameID)
	joinerPlayerID = strings.TrimSpace(joinerPlayerID)
	if joinerPlayerID == "" {
		return nil, ErrInvalidArgs
	}
	// joining by invite code alone is allowed; resolve it to the game
	if gameID == "" && strings.TrimSpace(inviteCode) != "" {
		resolved, err := a.store.ResolveInvite(ctx, strings.TrimSpace(inviteCode))
		if err != nil {
			return nil, err
		}
		gameID = resolved
	}
	if gameID == "" {
		return nil, ErrNotFound
	}

	access, err := newToken(tokenBytes)
	if err != nil {
		return nil, err
	}
	socket, err := newToken(tokenBytes)
	if err != nil {
		return nil, err
	}

	var cred *Credential
	recKey := a.store.keyRecord(gameID)
	err = a.rdb.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, recKey).Bytes()
		if err == redis.Nil {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		rec, err := decodeRecord(raw)
		if err != nil {
			return err
		}
		if rec.State == StateFinished {
			return ErrFinished
		}
		if rec.Joiner != nil && rec.Joiner.PlayerID != joinerPlayerID {
			return ErrAlreadyFull
		}
		if rec.InviteCode != "" && strings.TrimSpace(inviteCode) != rec.InviteCode {
			return ErrInvalidInvite
		}
		if rec.Host != nil && rec.Host.PlayerID == joinerPlayerID {
			// a host cannot take the second seat of their own session
			return ErrInvalidArgs
		}
		if rec.Joiner != nil {
			// same player joining again: reuse the stored tokens so the
			// earlier credential stays valid
			access = rec.Joiner.AccessToken
			socket = rec.Joiner.SocketToken
		} else {
			rec.Joiner = &Seat{PlayerID: joinerPlayerID, AccessToken: access, SocketToken: socket}
		}
		rec.State = StateActive
		rec.UpdatedAt = time.Now()

		pipe := tx.TxPipeline()
		newRaw, merr := encodeRecord(rec)
		if merr != nil {
			return merr
		}
		pipe.Set(ctx, recKey, newRaw, ttlSession)
		if _, perr := pipe.Exec(ctx); perr != nil {
			return perr
		}
		cred = &Credential{
			GameID:      rec.GameID,
			AccessToken: access,
			SocketToken: socket,
			Role:        RoleJoiner,
			PlayerID:    joinerPlayerID,
			MatchType:   rec.MatchType,
		}
		return nil
	}, recKey)
	if err != nil {
		return nil, err
	}
	if err := a.store.IndexPlayer(ctx, joinerPlayerID, gameID); err != nil {
		return nil, err
	}
	obslog.L().Info("session_join",
		zap.String("game_id", gameID),
		zap.String("joiner_id", joinerPlayerID),
	)
	return cred, nil
}

// Resume validates a stored credential against the authoritative record.
// It succeeds regardless of connection state: a dropped connection never
// invalidates a credential, only session termination does.
func (a *Authority) Resume(ctx context.Context, gameID string, cred *Credential) (*Credential, error) {
	if cred == nil {
		return nil, ErrInvalidCredential
	}
	rec, err := a.store.LoadRecord(ctx, strings.TrimSpace(gameID))
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrNotFound
	}
	if rec.State == StateFinished {
		return nil, ErrFinished
	}
	seat := rec.Seat(cred.Role)
	if seat == nil ||
		seat.PlayerID != cred.PlayerID ||
		seat.AccessToken != cred.AccessToken ||
		seat.SocketToken != cred.SocketToken {
		return nil, ErrInvalidCredential
	}
	out := *cred
	out.GameID = rec.GameID
	out.MatchType = rec.MatchType
	if cred.Role == RoleHost {
		out.InviteCode = rec.InviteCode
		out.ShareURL = a.buildShareURL(rec.GameID, rec.InviteCode)
	}
	return &out, nil
}

// ValidateSocket authorizes opening the duplex channel. Only the socket
// token grants this.
func (a *Authority) ValidateSocket(ctx context.Context, gameID, socketToken string) (*Record, Role, error) {
	rec, err := a.store.LoadRecord(ctx, strings.TrimSpace(gameID))
	if err != nil {
		return nil, "", err
	}
	if rec == nil {
		return nil, "", ErrNotFound
	}
	socketToken = strings.TrimSpace(socketToken)
	if socketToken == "" {
		return nil, "", ErrInvalidCredential
	}
	if rec.Host != nil && rec.Host.SocketToken == socketToken {
		return rec, RoleHost, nil
	}
	if rec.Joiner != nil && rec.Joiner.SocketToken == socketToken {
		return rec, RoleJoiner, nil
	}
	return nil, "", ErrInvalidCredential
}

// RecordProgress mirrors the latest appended ply index onto the record and
// refreshes its TTL. Best effort; the relay's timeline stays canonical.
func (a *Authority) RecordProgress(ctx context.Context, gameID string, lastPlyIndex int) error {
	rec, err := a.store.LoadRecord(ctx, gameID)
	if err != nil || rec == nil {
		return err
	}
	rec.LastPlyIndex = lastPlyIndex
	rec.UpdatedAt = time.Now()
	return a.store.SaveRecord(ctx, rec)
}

// End terminates the session. Credentials stop resuming and the invite code
// is released.
func (a *Authority) End(ctx context.Context, gameID string) error {
	rec, err := a.store.LoadRecord(ctx, gameID)
	if err != nil {
		return err
	}
	if rec == nil {
		return ErrNotFound
	}
	if err := a.store.DeleteInvite(ctx, rec.InviteCode); err != nil {
		return err
	}
	rec.State = StateFinished
	rec.UpdatedAt = time.Now()
	if err := a.store.SaveRecord(ctx, rec); err != nil {
		return err
	}
	obslog.L().Info("session_end", zap.String("game_id", gameID))
	return nil
}

// GamesFor lists the sessions a player holds a seat in, so a client that
// lost its game id can rediscover where to resume.
func (a *Authority) GamesFor(ctx context.Context, playerID string) ([]string, error) {
	playerID = strings.TrimSpace(playerID)
	if playerID == "" {
		return nil, ErrInvalidArgs
	}
	return a.store.GamesByPlayer(ctx, playerID)
}

// Load exposes the raw record for the relay.
func (a *Authority) Load(ctx context.Context, gameID string) (*Record, error) {
	return a.store.LoadRecord(ctx, gameID)
}

func (a *Authority) buildShareURL(gameID, code string) string {
	if a.shareURL == "" {
		return ""
	}
	return a.shareURL + "/" + gameID + "?invite=" + code
}
