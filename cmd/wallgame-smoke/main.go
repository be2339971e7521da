package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/nmamano/wallgame/internal/client"
	"github.com/nmamano/wallgame/pkg/wire"
)

// wallgame-smoke runs a full session against a live server: create, join by
// invite, a few moves on both sockets, and one chat round trip.
func main() {
	baseURL := os.Getenv("WALLGAME_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	matchType := os.Getenv("WALLGAME_MATCH_TYPE")
	if matchType == "" {
		matchType = "freestyle"
	}
	wsBase := "ws" + strings.TrimPrefix(baseURL, "http")

	hs := client.NewHandshake(baseURL, client.WithTimeout(8*time.Second))
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	hostCred, err := hs.Create(ctx, matchType, "smoke-host")
	if err != nil {
		log.Fatalf("create error: %v", err)
	}
	log.Printf("created game=%s invite=%s share=%s", hostCred.GameID, hostCred.InviteCode, hostCred.ShareURL)

	joinerCred, err := hs.JoinByInvite(ctx, hostCred.InviteCode, "smoke-joiner")
	if err != nil {
		log.Fatalf("join error: %v", err)
	}

	events := func(name string, moves chan wire.MovePush) client.Events {
		return client.Events{
			OnMove: func(p wire.MovePush) { moves <- p },
			OnChat: func(p wire.ChatPush) {
				fmt.Printf("%s chat from=%s text=%q\n", name, p.SenderID, p.Text)
			},
			OnError: func(e wire.Error) { log.Printf("%s error: %s %s", name, e.Code, e.Message) },
			OnState: func(s client.ConnState) { log.Printf("%s conn state: %s", name, s) },
		}
	}

	hostMoves := make(chan wire.MovePush, 8)
	joinerMoves := make(chan wire.MovePush, 8)
	host := client.NewGame(wsBase, hostCred, nil, events("host", hostMoves))
	joiner := client.NewGame(wsBase, joinerCred, nil, events("joiner", joinerMoves))

	if err := host.Connect(ctx); err != nil {
		log.Fatalf("host connect error: %v", err)
	}
	defer host.Close(context.Background())
	if err := joiner.Connect(ctx); err != nil {
		log.Fatalf("joiner connect error: %v", err)
	}
	defer joiner.Close(context.Background())

	notations := []string{"a1", "b2", "c3", "d4"}
	if matchType == "chess" {
		notations = []string{"e2e4", "e7e5", "g1f3", "b8c6"}
	}
	for i, mv := range notations {
		g := host
		ch := hostMoves
		if i%2 == 1 {
			g = joiner
			ch = joinerMoves
		}
		if err := g.SubmitMove(ctx, mv); err != nil {
			log.Fatalf("submit %d error: %v", i, err)
		}
		select {
		case p := <-ch:
			fmt.Printf("ply %d: %s by %s\n", p.PlyIndex, p.Notation, p.PlayerID)
		case <-ctx.Done():
			log.Fatal("timed out waiting for move push")
		}
	}

	if err := host.Chat(ctx, "smoke test says hi"); err != nil {
		log.Fatalf("chat error: %v", err)
	}
	time.Sleep(time.Second)
	fmt.Printf("ok: %d plies, latest=%d\n", len(host.Snapshot()), host.LatestIndex())
}
