package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// AppConfig carries everything the server binary needs. Values come from an
// optional YAML file (WALLGAME_CONFIG) overridden by environment variables.
type AppConfig struct {
	ListenAddr   string `yaml:"listen_addr"`
	ShareBaseURL string `yaml:"share_base_url"`

	RedisURL    string `yaml:"redis_url"`
	DatabaseURL string `yaml:"database_url"`

	AllowedOrigins []string `yaml:"allowed_origins"`

	ChatMaxLen         int      `yaml:"chat_max_len"`
	ChatMinIntervalMS  int      `yaml:"chat_min_interval_ms"`
	ChatBlockedTerms   []string `yaml:"chat_blocked_terms"`
	HandshakeTimeoutMS int      `yaml:"handshake_timeout_ms"`

	MsgOverrideDir string `yaml:"msg_override_dir"`
}

func (c *AppConfig) ChatMinInterval() time.Duration {
	return time.Duration(c.ChatMinIntervalMS) * time.Millisecond
}

func (c *AppConfig) HandshakeTimeout() time.Duration {
	return time.Duration(c.HandshakeTimeoutMS) * time.Millisecond
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		ListenAddr:         ":8080",
		ChatMaxLen:         280,
		ChatMinIntervalMS:  1000,
		HandshakeTimeoutMS: 10_000,
	}

	if path := strings.TrimSpace(os.Getenv("WALLGAME_CONFIG")); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, err
		}
	}

	if v := strings.TrimSpace(os.Getenv("LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("SHARE_BASE_URL")); v != "" {
		cfg.ShareBaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("REDIS_URL")); v != "" {
		cfg.RedisURL = v
	}
	if v := strings.TrimSpace(os.Getenv("DATABASE_URL")); v != "" {
		cfg.DatabaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("ALLOWED_ORIGINS")); v != "" {
		cfg.AllowedOrigins = splitList(v)
	}
	if v := strings.TrimSpace(os.Getenv("CHAT_MAX_LEN")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ChatMaxLen = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("CHAT_MIN_INTERVAL_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ChatMinIntervalMS = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("CHAT_BLOCKED_TERMS")); v != "" {
		cfg.ChatBlockedTerms = splitList(v)
	}
	if v := strings.TrimSpace(os.Getenv("HANDSHAKE_TIMEOUT_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.HandshakeTimeoutMS = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("MSG_OVERRIDE_DIR")); v != "" {
		cfg.MsgOverrideDir = v
	}

	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}

	return cfg, nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
