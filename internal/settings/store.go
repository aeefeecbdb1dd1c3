package settings

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cmalf/cryptobar/internal/files"
	"github.com/cmalf/cryptobar/internal/logger"
)

// Store reads and writes Settings as a YAML file.
type Store struct {
	path string
	now  func() time.Time

	mu sync.Mutex
}

// NewStore returns a Store backed by the file at path.
func NewStore(path string) *Store {
	return &Store{path: path, now: time.Now}
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// Load returns the stored settings. A missing file yields Defaults; keys
// absent from the file keep their default values. An unreadable file is
// backed up and replaced by Defaults.
func (s *Store) Load() (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *Store) loadLocked() (Settings, error) {
	st := Defaults()
	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return st, nil
	}
	if err != nil {
		return st, fmt.Errorf("read settings: %w", err)
	}

	if err := yaml.Unmarshal(b, &st); err != nil {
		bak, berr := files.Backup(s.path, s.now())
		logger.WarnKV(context.Background(), "Settings file is corrupt, using defaults",
			"path", s.path, "backup", bak, "error", err)
		if berr != nil {
			return Defaults(), fmt.Errorf("back up corrupt settings: %w", berr)
		}
		return Defaults(), nil
	}
	if _, err := ParseInterval(string(st.Interval)); err != nil {
		st.Interval = Monthly
	}
	return st, nil
}

// Save writes st atomically.
func (s *Store) Save(st Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(st)
}

func (s *Store) saveLocked(st Settings) error {
	b, err := yaml.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := files.WriteAtomic(s.path, b, 0o644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}

// Update loads the settings, applies fn and saves the result. Nothing is
// written when fn fails.
func (s *Store) Update(fn func(*Settings) error) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.loadLocked()
	if err != nil {
		return st, err
	}
	if err := fn(&st); err != nil {
		return st, err
	}
	return st, s.saveLocked(st)
}

// RecordCheck stores at as the time of the last update check.
func (s *Store) RecordCheck(at time.Time) error {
	_, err := s.Update(func(st *Settings) error {
		st.LastCheck = at.Unix()
		return nil
	})
	return err
}
