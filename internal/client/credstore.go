package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/nmamano/wallgame/internal/obslog"
	"github.com/nmamano/wallgame/internal/session"
)

// CredStore persists credentials between runs so a participant can resume a
// session after a restart. Implementations are keyed by game id.
type CredStore interface {
	// Get returns the stored credential, or ok=false when absent.
	Get(gameID string) (cred *session.Credential, ok bool, err error)
	Put(cred *session.Credential) error
	Remove(gameID string) error
}

// FileStore keeps one JSON file per game under dir. A file that no longer
// parses is treated as absent and removed, so a half-written credential can
// never wedge the client; the participant just joins fresh.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) *FileStore { return &FileStore{dir: dir} }

func (s *FileStore) path(gameID string) string {
	return filepath.Join(s.dir, gameID+".json")
}

func (s *FileStore) Get(gameID string) (*session.Credential, bool, error) {
	raw, err := os.ReadFile(s.path(gameID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read credential: %w", err)
	}

	var cred session.Credential
	if err := json.Unmarshal(raw, &cred); err != nil || cred.GameID != gameID || cred.SocketToken == "" {
		obslog.L().Warn("credential_discarded", zap.String("game_id", gameID))
		_ = os.Remove(s.path(gameID))
		return nil, false, nil
	}
	return &cred, true, nil
}

func (s *FileStore) Put(cred *session.Credential) error {
	if cred == nil || cred.GameID == "" {
		return session.ErrInvalidArgs
	}
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("credential dir: %w", err)
	}
	raw, err := json.MarshalIndent(cred, "", "  ")
	if err != nil {
		return err
	}
	// write-then-rename so a crash mid-write leaves either the old
	// credential or none, never a torn file
	tmp := s.path(cred.GameID) + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("write credential: %w", err)
	}
	return os.Rename(tmp, s.path(cred.GameID))
}

func (s *FileStore) Remove(gameID string) error {
	err := os.Remove(s.path(gameID))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// MemStore is the in-process CredStore used in tests.
type MemStore struct {
	mu    sync.Mutex
	creds map[string]session.Credential
}

func NewMemStore() *MemStore {
	return &MemStore{creds: make(map[string]session.Credential)}
}

func (s *MemStore) Get(gameID string) (*session.Credential, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.creds[gameID]
	if !ok {
		return nil, false, nil
	}
	return &c, true, nil
}

func (s *MemStore) Put(cred *session.Credential) error {
	if cred == nil || cred.GameID == "" {
		return session.ErrInvalidArgs
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds[cred.GameID] = *cred
	return nil
}

func (s *MemStore) Remove(gameID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.creds, gameID)
	return nil
}
