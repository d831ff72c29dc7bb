// Package cookies persists browser session cookies as a JSON file so a
// fresh run can resume an authenticated session. Strictly best-effort: the
// monitor is correct without it.
package cookies

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"grabbit/internal/browser"
)

// Store reads and writes one cookie jar file.
type Store struct {
	path string
	log  *zap.Logger
}

func NewStore(path string, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{path: path, log: log}
}

// Path returns the backing file location.
func (s *Store) Path() string { return s.path }

// Save writes the cookie jar, creating parent directories as needed.
func (s *Store) Save(jar []browser.Cookie) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("cookie dir: %w", err)
	}
	data, err := json.MarshalIndent(jar, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cookies: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write cookies: %w", err)
	}
	s.log.Info("saved cookies", zap.Int("count", len(jar)), zap.String("path", s.path))
	return nil
}

// Load reads the cookie jar. Returns ok=false without error when no file
// exists yet.
func (s *Store) Load() ([]browser.Cookie, bool, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read cookies: %w", err)
	}
	var jar []browser.Cookie
	if err := json.Unmarshal(data, &jar); err != nil {
		return nil, false, fmt.Errorf("decode cookies: %w", err)
	}
	s.log.Info("loaded cookies", zap.Int("count", len(jar)))
	return jar, true, nil
}

// Clear deletes the cookie file. Clearing an absent file is not an error.
func (s *Store) Clear() error {
	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clear cookies: %w", err)
	}
	return nil
}

// Count returns how many cookies are currently saved, 0 on any problem.
func (s *Store) Count() int {
	jar, ok, err := s.Load()
	if err != nil || !ok {
		return 0
	}
	return len(jar)
}

// Age returns how old the saved jar is. ok is false when no file exists.
func (s *Store) Age() (time.Duration, bool) {
	info, err := os.Stat(s.path)
	if err != nil {
		return 0, false
	}
	return time.Since(info.ModTime()), true
}
