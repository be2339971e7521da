package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/nmamano/wallgame/internal/session"
)

// ErrTimeout is returned when a handshake call exceeds its deadline. Callers
// retry these; credential rejections they must not.
var ErrTimeout = errors.New("handshake timed out")

// Handshake talks to the session endpoints over HTTP. It only mints and
// revalidates credentials; all gameplay traffic goes over the socket.
type Handshake struct {
	baseURL string
	http    *fasthttp.Client
	timeout time.Duration
}

type HandshakeOption func(*Handshake)

func WithTimeout(d time.Duration) HandshakeOption {
	return func(h *Handshake) { h.timeout = d }
}

func NewHandshake(baseURL string, opts ...HandshakeOption) *Handshake {
	h := &Handshake{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 8},
		timeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Create starts a new session and returns the host credential.
func (h *Handshake) Create(ctx context.Context, matchType, playerID string) (*session.Credential, error) {
	req := map[string]string{"match_type": matchType, "player_id": playerID}
	var cred session.Credential
	if err := h.doJSON(ctx, "/api/sessions", req, &cred); err != nil {
		return nil, err
	}
	return &cred, nil
}

// Join takes the joiner seat of an existing session.
func (h *Handshake) Join(ctx context.Context, gameID, playerID, inviteCode string) (*session.Credential, error) {
	req := map[string]string{"player_id": playerID, "invite_code": inviteCode}
	var cred session.Credential
	if err := h.doJSON(ctx, "/api/sessions/"+gameID+"/join", req, &cred); err != nil {
		return nil, err
	}
	return &cred, nil
}

// JoinByInvite joins knowing only the invite code, as from a share link.
func (h *Handshake) JoinByInvite(ctx context.Context, code, playerID string) (*session.Credential, error) {
	req := map[string]string{"player_id": playerID}
	var cred session.Credential
	if err := h.doJSON(ctx, "/api/invites/"+code+"/join", req, &cred); err != nil {
		return nil, err
	}
	return &cred, nil
}

// Resume revalidates a stored credential. On ErrInvalidCredential the caller
// must discard the credential and start a fresh handshake.
func (h *Handshake) Resume(ctx context.Context, cred *session.Credential) (*session.Credential, error) {
	req := map[string]any{"credential": cred}
	var fresh session.Credential
	if err := h.doJSON(ctx, "/api/sessions/"+cred.GameID+"/resume", req, &fresh); err != nil {
		return nil, err
	}
	return &fresh, nil
}

func (h *Handshake) doJSON(ctx context.Context, path string, in, out any) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(fasthttp.MethodPost)
	req.SetRequestURI(h.baseURL + path)
	req.Header.SetContentType("application/json")

	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req.SetBody(payload)

	if err := h.http.DoDeadline(req, resp, h.deadline(ctx)); err != nil {
		if errors.Is(err, fasthttp.ErrTimeout) || errors.Is(err, fasthttp.ErrDialTimeout) {
			return fmt.Errorf("%w: %s", ErrTimeout, path)
		}
		return fmt.Errorf("request failed: %w", err)
	}

	status := resp.StatusCode()
	if status < 200 || status >= 300 {
		return statusError(status, resp.Body())
	}
	if out != nil {
		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func (h *Handshake) deadline(ctx context.Context) time.Time {
	own := time.Now().Add(h.timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(own) {
		return dl
	}
	return own
}

// statusError maps handshake HTTP statuses back to the session error set so
// callers branch on errors.Is instead of status codes.
func statusError(status int, body []byte) error {
	var payload struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(body, &payload)

	var base error
	switch status {
	case fasthttp.StatusNotFound:
		base = session.ErrNotFound
	case fasthttp.StatusConflict:
		base = session.ErrAlreadyFull
	case fasthttp.StatusForbidden:
		base = session.ErrInvalidInvite
	case fasthttp.StatusUnauthorized:
		base = session.ErrInvalidCredential
	case fasthttp.StatusGone:
		base = session.ErrFinished
	case fasthttp.StatusBadRequest:
		base = session.ErrInvalidArgs
	default:
		return fmt.Errorf("handshake error: status=%d body=%s", status, truncate(string(body), 256))
	}
	if payload.Error != "" {
		return fmt.Errorf("%w: %s", base, payload.Error)
	}
	return base
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
