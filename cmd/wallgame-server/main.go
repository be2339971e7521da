package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/nmamano/wallgame/internal/archive"
	appcfg "github.com/nmamano/wallgame/internal/config"
	"github.com/nmamano/wallgame/internal/gate"
	"github.com/nmamano/wallgame/internal/msgcat"
	"github.com/nmamano/wallgame/internal/obslog"
	"github.com/nmamano/wallgame/internal/relay"
	"github.com/nmamano/wallgame/internal/session"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = obslog.L().Sync() }()

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		obslog.L().Fatal("redis url invalid", zap.Error(err))
	}
	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		cancel()
		obslog.L().Fatal("redis unreachable", zap.Error(err))
	}
	cancel()

	var repo *archive.Repository
	if cfg.DatabaseURL != "" {
		repo, err = archive.NewRepository(cfg.DatabaseURL)
		if err != nil {
			obslog.L().Fatal("archive init failed", zap.Error(err))
		}
		defer repo.Close()
	} else {
		obslog.L().Info("archive disabled, no DATABASE_URL")
	}

	notices, err := msgcat.New(cfg.MsgOverrideDir)
	if err != nil {
		obslog.L().Fatal("message catalog init failed", zap.Error(err))
	}

	authority := session.NewAuthority(rdb, cfg.ShareBaseURL)
	hub := relay.NewHub(
		authority,
		gate.NewRateGate(cfg.ChatMinInterval()),
		gate.NewModerator(cfg.ChatMaxLen, gate.WordListMatcher(cfg.ChatBlockedTerms)),
		notices,
		repo,
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	hub.StartCleanup(rootCtx, time.Minute, time.Hour)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	relay.Routes(r, hub, cfg.AllowedOrigins)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		obslog.L().Info("server listening", zap.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			obslog.L().Fatal("server failed", zap.Error(err))
		}
	}()

	<-rootCtx.Done()
	obslog.L().Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		obslog.L().Warn("shutdown incomplete", zap.Error(err))
		os.Exit(1)
	}
}
