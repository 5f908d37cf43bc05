package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"tcm-wellness-backend/internal/consult"
)

type snapshot struct {
	SavedAt  time.Time          `json:"savedAt"`
	Sessions []*consult.Session `json:"sessions"`
}

// FileSnapshotStore persists sessions on disk across restarts.
type FileSnapshotStore struct {
	path string
}

func NewFileSnapshotStore(path string) *FileSnapshotStore {
	return &FileSnapshotStore{path: path}
}

func (f *FileSnapshotStore) Path() string { return f.path }

// Read returns the stored sessions. A missing file yields no sessions.
func (f *FileSnapshotStore) Read() ([]*consult.Session, error) {
	b, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var snap snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s: %w", f.path, err)
	}
	return snap.Sessions, nil
}

// Write replaces the snapshot atomically.
func (f *FileSnapshotStore) Write(sessions []*consult.Session) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(snapshot{SavedAt: time.Now().UTC(), Sessions: sessions}, "", "  ")
	if err != nil {
		return err
	}
	// transcripts contain health details
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}

func (f *FileSnapshotStore) Clear() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
