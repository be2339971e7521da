package session

import (
	"context"
	"errors"
	"strings"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestAuthority(t *testing.T) (*Authority, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewAuthority(rdb, "https://wallgame.example/g"), func() { mr.Close() }
}

func TestCreateIssuesHostCredential(t *testing.T) {
	a, cleanup := newTestAuthority(t)
	defer cleanup()
	ctx := context.Background()

	cred, err := a.Create(ctx, "chess", "host-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if cred.Role != RoleHost || cred.GameID == "" {
		t.Fatalf("credential = %+v", cred)
	}
	if cred.AccessToken == "" || cred.SocketToken == "" || cred.AccessToken == cred.SocketToken {
		t.Fatalf("tokens must be distinct opaque strings: %+v", cred)
	}
	if !strings.HasPrefix(cred.InviteCode, "WG-") {
		t.Fatalf("invite code = %q", cred.InviteCode)
	}
	if !strings.Contains(cred.ShareURL, cred.GameID) {
		t.Fatalf("share url = %q", cred.ShareURL)
	}

	rec, err := a.Load(ctx, cred.GameID)
	if err != nil || rec == nil {
		t.Fatalf("Load: %v, %v", rec, err)
	}
	if rec.State != StateLobby || rec.LastPlyIndex != -1 {
		t.Fatalf("record = %+v", rec)
	}
}

func TestJoinByIDAndByInvite(t *testing.T) {
	a, cleanup := newTestAuthority(t)
	defer cleanup()
	ctx := context.Background()

	host, _ := a.Create(ctx, "chess", "host-1")

	jc, err := a.Join(ctx, host.GameID, "joiner-1", host.InviteCode)
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if jc.Role != RoleJoiner || jc.GameID != host.GameID || jc.MatchType != "chess" {
		t.Fatalf("joiner credential = %+v", jc)
	}

	// join by invite code only
	host2, _ := a.Create(ctx, "freestyle", "host-2")
	jc2, err := a.Join(ctx, "", "joiner-2", host2.InviteCode)
	if err != nil {
		t.Fatalf("Join by invite: %v", err)
	}
	if jc2.GameID != host2.GameID {
		t.Fatalf("invite resolved to %q, want %q", jc2.GameID, host2.GameID)
	}
}

func TestJoinErrors(t *testing.T) {
	a, cleanup := newTestAuthority(t)
	defer cleanup()
	ctx := context.Background()

	if _, err := a.Join(ctx, "no-such-game", "j", ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown game: %v, want ErrNotFound", err)
	}

	host, _ := a.Create(ctx, "chess", "host-1")
	if _, err := a.Join(ctx, host.GameID, "j", "WG-WRONG0"); !errors.Is(err, ErrInvalidInvite) {
		t.Fatalf("bad invite: %v, want ErrInvalidInvite", err)
	}
	if _, err := a.Join(ctx, host.GameID, "host-1", host.InviteCode); !errors.Is(err, ErrInvalidArgs) {
		t.Fatalf("self-join: %v, want ErrInvalidArgs", err)
	}

	if _, err := a.Join(ctx, host.GameID, "joiner-1", host.InviteCode); err != nil {
		t.Fatalf("Join: %v", err)
	}
	if _, err := a.Join(ctx, host.GameID, "joiner-2", host.InviteCode); !errors.Is(err, ErrAlreadyFull) {
		t.Fatalf("third participant: %v, want ErrAlreadyFull", err)
	}
}

func TestResume(t *testing.T) {
	a, cleanup := newTestAuthority(t)
	defer cleanup()
	ctx := context.Background()

	host, _ := a.Create(ctx, "chess", "host-1")

	got, err := a.Resume(ctx, host.GameID, host)
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if got.PlayerID != "host-1" || got.InviteCode != host.InviteCode {
		t.Fatalf("resumed credential = %+v", got)
	}

	bad := *host
	bad.AccessToken = "forged"
	if _, err := a.Resume(ctx, host.GameID, &bad); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("forged token: %v, want ErrInvalidCredential", err)
	}

	if _, err := a.Resume(ctx, "missing", host); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing game: %v, want ErrNotFound", err)
	}
}

func TestValidateSocket(t *testing.T) {
	a, cleanup := newTestAuthority(t)
	defer cleanup()
	ctx := context.Background()

	host, _ := a.Create(ctx, "chess", "host-1")
	joiner, _ := a.Join(ctx, host.GameID, "joiner-1", host.InviteCode)

	if _, role, err := a.ValidateSocket(ctx, host.GameID, host.SocketToken); err != nil || role != RoleHost {
		t.Fatalf("host socket: role=%v err=%v", role, err)
	}
	if _, role, err := a.ValidateSocket(ctx, host.GameID, joiner.SocketToken); err != nil || role != RoleJoiner {
		t.Fatalf("joiner socket: role=%v err=%v", role, err)
	}
	// access token must NOT open the socket
	if _, _, err := a.ValidateSocket(ctx, host.GameID, host.AccessToken); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("access token on socket: %v, want ErrInvalidCredential", err)
	}
}

func TestEndInvalidatesCredentials(t *testing.T) {
	a, cleanup := newTestAuthority(t)
	defer cleanup()
	ctx := context.Background()

	host, _ := a.Create(ctx, "chess", "host-1")
	if err := a.End(ctx, host.GameID); err != nil {
		t.Fatalf("End: %v", err)
	}
	if _, err := a.Resume(ctx, host.GameID, host); !errors.Is(err, ErrFinished) {
		t.Fatalf("resume after end: %v, want ErrFinished", err)
	}
	// released invite must not resolve anymore
	if _, err := a.Join(ctx, "", "late", host.InviteCode); !errors.Is(err, ErrNotFound) {
		t.Fatalf("join after end: %v, want ErrNotFound", err)
	}
}

func TestRecordProgress(t *testing.T) {
	a, cleanup := newTestAuthority(t)
	defer cleanup()
	ctx := context.Background()

	host, _ := a.Create(ctx, "chess", "host-1")
	if err := a.RecordProgress(ctx, host.GameID, 4); err != nil {
		t.Fatalf("RecordProgress: %v", err)
	}
	rec, _ := a.Load(ctx, host.GameID)
	if rec.LastPlyIndex != 4 {
		t.Fatalf("LastPlyIndex = %d, want 4", rec.LastPlyIndex)
	}
}

func TestGamesFor(t *testing.T) {
	a, cleanup := newTestAuthority(t)
	defer cleanup()
	ctx := context.Background()

	first, _ := a.Create(ctx, "chess", "host-1")
	second, _ := a.Create(ctx, "freestyle", "host-1")
	if _, err := a.Join(ctx, first.GameID, "joiner-1", first.InviteCode); err != nil {
		t.Fatalf("Join: %v", err)
	}

	ids, err := a.GamesFor(ctx, "host-1")
	if err != nil {
		t.Fatalf("GamesFor: %v", err)
	}
	want := map[string]bool{first.GameID: true, second.GameID: true}
	if len(ids) != 2 || !want[ids[0]] || !want[ids[1]] {
		t.Fatalf("host games = %v", ids)
	}

	ids, err = a.GamesFor(ctx, "joiner-1")
	if err != nil || len(ids) != 1 || ids[0] != first.GameID {
		t.Fatalf("joiner games = %v, %v", ids, err)
	}

	if ids, err := a.GamesFor(ctx, "stranger"); err != nil || len(ids) != 0 {
		t.Fatalf("stranger games = %v, %v", ids, err)
	}
	if _, err := a.GamesFor(ctx, " "); !errors.Is(err, ErrInvalidArgs) {
		t.Fatalf("blank player: %v, want ErrInvalidArgs", err)
	}
}
