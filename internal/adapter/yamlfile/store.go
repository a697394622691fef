// Package yamlfile persists the active session record as a YAML file at
// a well-known path. The record file's sibling lock file is the
// machine-wide mutual-exclusion point for session mutation.
package yamlfile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"
	"gopkg.in/yaml.v3"

	"github.com/enough/enough/internal/domain"
)

const (
	recordFile = "current-session.yaml"
	lockFile   = "session.lock"
)

// Store implements port.SessionStore on top of a state directory.
type Store struct {
	dir string
	log hclog.Logger
}

func New(dir string, log hclog.Logger) *Store {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &Store{dir: dir, log: log}
}

func (s *Store) recordPath() string { return filepath.Join(s.dir, recordFile) }
func (s *Store) lockPath() string   { return filepath.Join(s.dir, lockFile) }

// Lock takes the exclusive cross-process lock, blocking until it is
// acquired or ctx is done.
func (s *Store) Lock(ctx context.Context) (func(), error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir %s: %w", s.dir, err)
	}
	f, err := os.OpenFile(s.lockPath(), os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	if err := lockExclusive(ctx, f); err != nil {
		f.Close()
		return nil, fmt.Errorf("acquire session lock: %w", err)
	}
	return func() {
		if err := unlock(f); err != nil {
			s.log.Warn("release session lock failed", "error", err)
		}
		f.Close()
	}, nil
}

func (s *Store) Load(_ context.Context) (domain.SessionRecord, error) {
	data, err := os.ReadFile(s.recordPath())
	if err != nil {
		if os.IsNotExist(err) {
			return domain.SessionRecord{}, domain.ErrNotActive
		}
		return domain.SessionRecord{}, fmt.Errorf("read session record: %w", err)
	}
	var rec domain.SessionRecord
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return domain.SessionRecord{}, fmt.Errorf("%w: %v", domain.ErrCorruptState, err)
	}
	if rec.ID == "" || rec.State == "" || rec.Duration <= 0 {
		return domain.SessionRecord{}, fmt.Errorf("%w: missing required fields", domain.ErrCorruptState)
	}
	return rec, nil
}

// Save writes the record atomically: temp file in the same directory,
// fsync, then rename over the final path.
func (s *Store) Save(_ context.Context, rec domain.SessionRecord) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create state dir %s: %w", s.dir, err)
	}
	data, err := yaml.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode session record: %w", err)
	}
	tmp, err := os.CreateTemp(s.dir, ".session-*")
	if err != nil {
		return fmt.Errorf("create temp record: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp record: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync temp record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp record: %w", err)
	}
	if err := os.Rename(tmpName, s.recordPath()); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace session record: %w", err)
	}
	return nil
}

func (s *Store) Delete(_ context.Context) error {
	if err := os.Remove(s.recordPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete session record: %w", err)
	}
	return nil
}
