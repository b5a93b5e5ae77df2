package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// Store persists State as a single JSON document, replacing it whole on
// every write.
type Store struct {
	fs   afero.Fs
	path string
}

func NewStore(fs afero.Fs, path string) *Store {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Store{fs: fs, path: path}
}

func (s *Store) Path() string {
	return s.path
}

// Read loads the state file. A missing file is an empty state.
func (s *Store) Read() (*State, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}
	st := New()
	if err := json.Unmarshal(data, st); err != nil {
		return nil, fmt.Errorf("failed to decode state file %s: %w", s.path, err)
	}
	return st, nil
}

// Write replaces the state file with st. The document is written to a
// temporary file and synced to disk before it is renamed into place.
func (s *Store) Write(st *State) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := s.writeSynced(tmp, data); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := s.fs.Rename(tmp, s.path); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("failed to move state file into place: %w", err)
	}
	return nil
}

func (s *Store) writeSynced(path string, data []byte) error {
	f, err := s.fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Exists reports whether a state file has been written before.
func (s *Store) Exists() (bool, error) {
	_, err := s.fs.Stat(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}
