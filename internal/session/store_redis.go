package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ttlSession bounds how long an abandoned session record lingers. Activity
// refreshes it, so live credentials never expire under a player.
const ttlSession = 24 * time.Hour

type Store struct{ rdb *redis.Client }

func NewStore(rdb *redis.Client) *Store { return &Store{rdb: rdb} }

func (s *Store) keyRecord(gameID string) string { return "sess:" + strings.TrimSpace(gameID) }
func (s *Store) keyInvite(code string) string   { return "sess:invite:" + strings.TrimSpace(code) }
func (s *Store) keyPlayerIdx(playerID string) string {
	return "sess:index:player:" + strings.TrimSpace(playerID)
}

func (s *Store) SaveRecord(ctx context.Context, rec *Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.keyRecord(rec.GameID), raw, ttlSession).Err()
}

func (s *Store) LoadRecord(ctx context.Context, gameID string) (*Record, error) {
	raw, err := s.rdb.Get(ctx, s.keyRecord(gameID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// AllocateInvite reserves a fresh invite code pointing at gameID. The SetNX
// loop retries on the rare collision.
func (s *Store) AllocateInvite(ctx context.Context, gameID string) (string, error) {
	for i := 0; i < 5; i++ {
		code, err := inviteGen()
		if err != nil {
			return "", err
		}
		ok, err := s.rdb.SetNX(ctx, s.keyInvite(code), gameID, ttlSession).Result()
		if err != nil {
			return "", err
		}
		if ok {
			return code, nil
		}
	}
	return "", fmt.Errorf("failed to allocate invite code")
}

// ResolveInvite returns the gameID an invite points at, or "" when unknown.
func (s *Store) ResolveInvite(ctx context.Context, code string) (string, error) {
	gameID, err := s.rdb.Get(ctx, s.keyInvite(code)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return gameID, nil
}

func (s *Store) DeleteInvite(ctx context.Context, code string) error {
	if strings.TrimSpace(code) == "" {
		return nil
	}
	return s.rdb.Del(ctx, s.keyInvite(code)).Err()
}

func (s *Store) IndexPlayer(ctx context.Context, playerID, gameID string) error {
	if strings.TrimSpace(playerID) == "" {
		return nil
	}
	key := s.keyPlayerIdx(playerID)
	if err := s.rdb.SAdd(ctx, key, gameID).Err(); err != nil {
		return err
	}
	return s.rdb.Expire(ctx, key, ttlSession).Err()
}

func (s *Store) GamesByPlayer(ctx context.Context, playerID string) ([]string, error) {
	return s.rdb.SMembers(ctx, s.keyPlayerIdx(playerID)).Result()
}

func encodeRecord(rec *Record) ([]byte, error) { return json.Marshal(rec) }

func decodeRecord(raw []byte) (*Record, error) {
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// inviteGen returns `WG-` + 6 upper alnum.
func inviteGen() (string, error) {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	for i := range b {
		b[i] = letters[int(b[i])%len(letters)]
	}
	return "WG-" + string(b), nil
}

// newToken returns an opaque hex token of n random bytes.
func newToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
