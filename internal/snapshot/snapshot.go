// Package snapshot persists the restartable subset of a session to a single
// namespaced JSON file so a restart can resume mid-session.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spigell/interview-trainer/internal/session"

	"go.uber.org/zap"
)

// DefaultFile is the snapshot location when none is configured.
const DefaultFile = "interview-trainer.state.json"

// File stores session snapshots on disk. It implements session.Persister.
type File struct {
	path   string
	logger *zap.Logger
}

func New(path string, logger *zap.Logger) *File {
	if strings.TrimSpace(path) == "" {
		path = DefaultFile
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &File{path: path, logger: logger}
}

// Path returns the backing file location.
func (f *File) Path() string {
	return f.path
}

// Save writes the snapshot. The write goes through a temp file in the same
// directory so a crash mid-write never leaves a truncated snapshot behind.
func (f *File) Save(snap *session.Snapshot) error {
	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, ".interview-trainer-*.json")
	if err != nil {
		return fmt.Errorf("creating snapshot temp file: %w", err)
	}

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}

	if err := os.Rename(tmp.Name(), f.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replacing snapshot file: %w", err)
	}

	f.logger.Debug("saved session snapshot", zap.String("path", f.path))

	return nil
}

// Load reads the stored snapshot. A missing or empty file yields (nil, nil):
// there is simply nothing to resume.
func (f *File) Load() (*session.Snapshot, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading snapshot file %q: %w", f.path, err)
	}

	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}

	var snap session.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decoding snapshot file %q: %w", f.path, err)
	}

	if strings.TrimSpace(snap.SessionID) == "" {
		return nil, nil
	}

	return &snap, nil
}

// Clear removes the snapshot file. Clearing an absent snapshot is fine.
func (f *File) Clear() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing snapshot file %q: %w", f.path, err)
	}

	return nil
}
