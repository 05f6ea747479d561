package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/timmy/vidnotes/internal/domain"
)

const settingsLockTimeout = 5 * time.Second

// SettingsStore persists the user-facing selection document (config.json).
// Reads and writes take an advisory file lock so the server and the CLI
// never interleave writes.
type SettingsStore struct {
	path string
	lock *flock.Flock
}

// NewSettingsStore creates a store for path.
func NewSettingsStore(path string) *SettingsStore {
	return &SettingsStore{
		path: path,
		lock: flock.New(path + ".lock"),
	}
}

// Path returns the settings document path.
func (s *SettingsStore) Path() string {
	return s.path
}

// Load returns the saved settings, or defaults when the file does not exist.
func (s *SettingsStore) Load(ctx context.Context) (domain.Settings, error) {
	if err := s.acquire(ctx, false); err != nil {
		return domain.Settings{}, err
	}
	defer s.lock.Unlock()

	return s.read()
}

// Save writes settings, filling empty fields with defaults.
func (s *SettingsStore) Save(ctx context.Context, settings domain.Settings) (domain.Settings, error) {
	if err := s.acquire(ctx, true); err != nil {
		return domain.Settings{}, err
	}
	defer s.lock.Unlock()

	settings = settings.WithDefaults()
	if err := s.write(settings); err != nil {
		return domain.Settings{}, err
	}
	return settings, nil
}

// Update applies fn to the stored settings under one exclusive lock.
func (s *SettingsStore) Update(ctx context.Context, fn func(*domain.Settings)) (domain.Settings, error) {
	if err := s.acquire(ctx, true); err != nil {
		return domain.Settings{}, err
	}
	defer s.lock.Unlock()

	current, err := s.read()
	if err != nil {
		return domain.Settings{}, err
	}
	fn(&current)
	current = current.WithDefaults()
	if err := s.write(current); err != nil {
		return domain.Settings{}, err
	}
	return current, nil
}

func (s *SettingsStore) acquire(ctx context.Context, exclusive bool) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, settingsLockTimeout)
	defer cancel()

	var (
		ok  bool
		err error
	)
	if exclusive {
		ok, err = s.lock.TryLockContext(ctx, 50*time.Millisecond)
	} else {
		ok, err = s.lock.TryRLockContext(ctx, 50*time.Millisecond)
	}
	if err != nil {
		return fmt.Errorf("lock settings: %w", err)
	}
	if !ok {
		return fmt.Errorf("lock settings: %s is busy", s.path)
	}
	return nil
}

func (s *SettingsStore) read() (domain.Settings, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return domain.DefaultSettings(), nil
	}
	if err != nil {
		return domain.Settings{}, fmt.Errorf("read settings: %w", err)
	}

	var settings domain.Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		return domain.Settings{}, fmt.Errorf("parse settings: %w", err)
	}
	return settings.WithDefaults(), nil
}

func (s *SettingsStore) write(settings domain.Settings) error {
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}
