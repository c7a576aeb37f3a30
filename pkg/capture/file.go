package capture

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/strata-gfx/strata/pkg/observability"
)

// FileStore persists sessions as JSON files under a directory, for CLI use.
// Files fan out into two-character subdirectories so large capture sets do
// not pile up in one directory.
type FileStore struct {
	dir string
}

// NewFileStore creates a file-backed store rooted at dir. If dir is empty,
// ~/.config/strata/captures is used.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home dir: %w", err)
		}
		dir = filepath.Join(home, ".config", "strata", "captures")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create capture dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Path returns the root directory of the store.
func (s *FileStore) Path() string {
	return s.dir
}

func (s *FileStore) path(id string) string {
	sub := "00"
	if len(id) >= 2 {
		sub = id[:2]
	}
	return filepath.Join(s.dir, sub, id+".json")
}

func (s *FileStore) Get(ctx context.Context, id string) (*Session, error) {
	path := s.path(id)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		observability.Capture().OnLoad(ctx, "file", false)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read capture file: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		// Corrupt entry, treat as missing.
		_ = os.Remove(path)
		observability.Capture().OnLoad(ctx, "file", false)
		return nil, nil
	}
	if sess.IsExpired() {
		_ = os.Remove(path)
		observability.Capture().OnLoad(ctx, "file", false)
		return nil, ErrExpired
	}
	observability.Capture().OnLoad(ctx, "file", true)
	return &sess, nil
}

func (s *FileStore) Set(ctx context.Context, sess *Session) error {
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal capture: %w", err)
	}
	path := s.path(sess.ID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create capture subdir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write capture file: %w", err)
	}
	observability.Capture().OnSave(ctx, "file", len(sess.Transactions))
	return nil
}

func (s *FileStore) Delete(_ context.Context, id string) error {
	if err := os.Remove(s.path(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove capture file: %w", err)
	}
	return nil
}

func (s *FileStore) List(_ context.Context) ([]string, error) {
	var out []string
	err := s.walk(func(path string, sess *Session) {
		if !sess.IsExpired() {
			out = append(out, sess.ID)
		}
	})
	return out, err
}

func (s *FileStore) Cleanup(_ context.Context) error {
	now := time.Now()
	return s.walk(func(path string, sess *Session) {
		if !sess.ExpiresAt.IsZero() && now.After(sess.ExpiresAt) {
			_ = os.Remove(path)
		}
	})
}

func (s *FileStore) walk(fn func(path string, sess *Session)) error {
	subdirs, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("read capture dir: %w", err)
	}
	for _, sub := range subdirs {
		if !sub.IsDir() {
			continue
		}
		entries, err := os.ReadDir(filepath.Join(s.dir, sub.Name()))
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
				continue
			}
			path := filepath.Join(s.dir, sub.Name(), entry.Name())
			data, err := os.ReadFile(path)
			if err != nil {
				continue
			}
			var sess Session
			if err := json.Unmarshal(data, &sess); err != nil {
				continue
			}
			fn(path, &sess)
		}
	}
	return nil
}

var _ Store = (*FileStore)(nil)
