// Package archive persists final match results. It is a write-only sink:
// the relay's timeline stays canonical and is never served from here.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

// MatchResult is one finished session, keyed by game id.
type MatchResult struct {
	GameID    string
	MatchType string
	HostID    string
	JoinerID  string
	Outcome   string // e.g. "host", "joiner", "draw", "abandoned"
	WinnerID  string
	PlyCount  int
	StartedAt time.Time
	EndedAt   time.Time
}

type Repository struct {
	db *sql.DB
}

func NewRepository(databaseURL string) (*Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// SaveResult upserts a final result. Nil-safe so the relay can call it
// unconditionally when no database is configured.
func (r *Repository) SaveResult(ctx context.Context, res *MatchResult) error {
	if r == nil || r.db == nil || res == nil {
		return nil
	}
	duration := res.EndedAt.Sub(res.StartedAt).Milliseconds()
	if duration < 0 {
		duration = 0
	}

	const q = `INSERT INTO match_results (
	    game_id, match_type, host_id, joiner_id,
	    outcome, winner_id, ply_count,
	    started_at, ended_at, duration_ms
	  ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	  ON CONFLICT (game_id) DO UPDATE SET
	    outcome=EXCLUDED.outcome,
	    winner_id=EXCLUDED.winner_id,
	    ply_count=EXCLUDED.ply_count,
	    ended_at=EXCLUDED.ended_at,
	    duration_ms=EXCLUDED.duration_ms`

	_, err := r.db.ExecContext(ctx, q,
		res.GameID, res.MatchType, res.HostID, res.JoinerID,
		strings.TrimSpace(res.Outcome), res.WinnerID, res.PlyCount,
		res.StartedAt, res.EndedAt, duration,
	)
	return err
}
