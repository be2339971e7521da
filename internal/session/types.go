package session

import "time"

// Role identifies which seat a participant holds in a session.
type Role string

const (
	RoleHost   Role = "host"
	RoleJoiner Role = "joiner"
)

// State represents the lifecycle of a session record.
type State string

const (
	StateLobby    State = "LOBBY"  // waiting for a second participant
	StateActive   State = "ACTIVE" // both seats taken
	StateFinished State = "FINISHED"
)

// Credential is what a participant holds to view and reconnect to a session.
// The access token authorizes handshake-level calls, the socket token
// authorizes opening the duplex channel. Tokens are opaque and unguessable;
// they never expire implicitly, only session termination invalidates them.
type Credential struct {
	GameID      string `json:"game_id"`
	AccessToken string `json:"token"`
	SocketToken string `json:"socket_token"`
	Role        Role   `json:"role"`
	PlayerID    string `json:"player_id"`
	MatchType   string `json:"match_type"`
	ShareURL    string `json:"share_url,omitempty"`
	InviteCode  string `json:"invite_code,omitempty"`
}

// Seat is the authoritative server-side copy of one participant's tokens.
type Seat struct {
	PlayerID    string `json:"player_id"`
	AccessToken string `json:"access_token"`
	SocketToken string `json:"socket_token"`
}

// Record is stored as JSON in Redis under sess:<gameID>.
type Record struct {
	GameID     string    `json:"game_id"`
	MatchType  string    `json:"match_type"`
	State      State     `json:"state"`
	InviteCode string    `json:"invite_code"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	Host   *Seat `json:"host,omitempty"`
	Joiner *Seat `json:"joiner,omitempty"`

	// LastPlyIndex mirrors relay progress for observability; -1 when no
	// move has been played. The relay owns the canonical timeline.
	LastPlyIndex int `json:"last_ply_index"`
}

// Seat returns the seat for a role, nil when unoccupied.
func (r *Record) Seat(role Role) *Seat {
	switch role {
	case RoleHost:
		return r.Host
	case RoleJoiner:
		return r.Joiner
	}
	return nil
}

// Errors
var (
	ErrInvalidArgs       = errf("invalid arguments")
	ErrNotFound          = errf("session not found")
	ErrAlreadyFull       = errf("session already has two participants")
	ErrInvalidInvite     = errf("invite code does not match")
	ErrInvalidCredential = errf("credential rejected")
	ErrFinished          = errf("session already finished")
)

type staticErr string

func (e staticErr) Error() string { return string(e) }
func errf(s string) error         { return staticErr(s) }
