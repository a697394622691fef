// Package sqlite archives finished sessions for the history listing.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/enough/enough/internal/domain"
	"github.com/enough/enough/internal/port"
)

const timeLayout = time.RFC3339

type HistoryStore struct {
	db *sql.DB
}

func NewHistoryStore(dbPath string) (*HistoryStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	h := &HistoryStore{db: db}
	if err := h.ensureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return h, nil
}

func (h *HistoryStore) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS sessions (
  id TEXT PRIMARY KEY,
  profile TEXT NOT NULL,
  state TEXT NOT NULL,
  started_at TEXT NOT NULL,
  ended_at TEXT NOT NULL,
  duration_secs INTEGER NOT NULL,
  websites INTEGER NOT NULL,
  applications INTEGER NOT NULL
);
`
	if _, err := h.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create sessions table: %w", err)
	}
	return nil
}

// Archive upserts so that an idempotent teardown may record the same
// session twice without error.
func (h *HistoryStore) Archive(ctx context.Context, rec domain.SessionRecord, endedAt time.Time) error {
	const stmt = `
INSERT INTO sessions (id, profile, state, started_at, ended_at, duration_secs, websites, applications)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  state=excluded.state,
  ended_at=excluded.ended_at;
`
	_, err := h.db.ExecContext(ctx, stmt,
		rec.ID,
		rec.ProfileName,
		string(rec.State),
		rec.StartedAt.UTC().Format(timeLayout),
		endedAt.UTC().Format(timeLayout),
		int64(rec.Duration/time.Second),
		domain.CountByKind(rec.Targets, domain.TargetWebsite),
		domain.CountByKind(rec.Targets, domain.TargetApplication),
	)
	if err != nil {
		return fmt.Errorf("archive session: %w", err)
	}
	return nil
}

func (h *HistoryStore) List(ctx context.Context, limit int) ([]port.FinishedSession, error) {
	if limit <= 0 {
		limit = 20
	}
	const query = `
SELECT id, profile, state, started_at, ended_at, duration_secs, websites, applications
FROM sessions ORDER BY ended_at DESC LIMIT ?;
`
	rows, err := h.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []port.FinishedSession
	for rows.Next() {
		var (
			fs            port.FinishedSession
			state         string
			started, end  string
			durationSecs  int64
		)
		if err := rows.Scan(&fs.ID, &fs.ProfileName, &state, &started, &end, &durationSecs, &fs.Websites, &fs.Applications); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		fs.State = domain.SessionState(state)
		fs.Duration = time.Duration(durationSecs) * time.Second
		if fs.StartedAt, err = time.Parse(timeLayout, started); err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		if fs.EndedAt, err = time.Parse(timeLayout, end); err != nil {
			return nil, fmt.Errorf("parse ended_at: %w", err)
		}
		out = append(out, fs)
	}
	return out, rows.Err()
}

func (h *HistoryStore) Close() error {
	return h.db.Close()
}
