package wire

import "encoding/json"

// Message types exchanged over the duplex channel.
const (
	// client → server
	TypeMoveSubmit = "move_submit"
	TypeChatSend   = "chat_send"

	// server → client
	TypeWelcome           = "welcome"
	TypeMovePush          = "move_push"
	TypeChatPush          = "chat_push"
	TypeChatRejected      = "chat_rejected"
	TypePeerDisconnected  = "peer_disconnected"
	TypePeerReconnected   = "peer_reconnected"
	TypeInvalidCredential = "invalid_credential"
	TypeError             = "error"
)

// Protocol error codes carried in Error payloads.
const (
	CodeNotFound          = "NOT_FOUND"
	CodeAlreadyFull       = "ALREADY_FULL"
	CodeInvalidInvite     = "INVALID_INVITE"
	CodeInvalidCredential = "INVALID_CREDENTIAL"
	CodeOutOfOrder        = "OUT_OF_ORDER"
	CodeOutOfRange        = "OUT_OF_RANGE"
	CodeNotYourTurn       = "NOT_YOUR_TURN"
	CodeNotConnected      = "NOT_CONNECTED"
	CodeIllegalMove       = "ILLEGAL_MOVE"
	CodeTimeout           = "TIMEOUT"
)

// Chat rejection reason codes.
const (
	ReasonTooLong     = "TOO_LONG"
	ReasonModeration  = "MODERATION"
	ReasonRateLimited = "RATE_LIMITED"
)

// Envelope is the frame carried over the websocket in both directions.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type MoveSubmit struct {
	PlyIndex int    `json:"ply_index"`
	Notation string `json:"notation"`
}

type MovePush struct {
	PlyIndex int    `json:"ply_index"`
	Notation string `json:"notation"`
	PlayerID string `json:"player_id"`
}

type ChatSend struct {
	Text string `json:"text"`
}

type ChatPush struct {
	Text     string `json:"text"`
	SenderID string `json:"sender_id"`
}

type ChatRejected struct {
	Reason string `json:"reason"`
	Notice string `json:"notice,omitempty"`
}

// Welcome opens every attached connection; replayed move pushes follow it,
// so a client knows how many frames to expect before it is caught up.
type Welcome struct {
	GameID         string `json:"game_id"`
	Role           string `json:"role"`
	LatestPlyIndex int    `json:"latest_ply_index"` // -1 when the timeline is empty
}

type PeerEvent struct {
	PlayerID string `json:"player_id"`
	Notice   string `json:"notice,omitempty"`
}

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

// NewEnvelope marshals payload into an Envelope of the given type.
func NewEnvelope(typ string, payload any) (Envelope, error) {
	if payload == nil {
		return Envelope{Type: typ}, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: typ, Payload: raw}, nil
}

// DecodePayload unmarshals the envelope payload into out.
func (e Envelope) DecodePayload(out any) error {
	if len(e.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(e.Payload, out)
}
