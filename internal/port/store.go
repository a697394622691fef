package port

import (
	"context"
	"time"

	"github.com/enough/enough/internal/domain"
)

// SessionStore durably persists the single active session record.
//
// Load returns domain.ErrNotActive when no record exists and
// domain.ErrCorruptState when the record cannot be decoded. Save must be
// atomic (write-temp-then-rename) so a crash mid-write never leaves a
// partial record.
type SessionStore interface {
	// Lock acquires the exclusive cross-process lock guarding the record
	// file. Mutating sequences (start, stop, tick) hold it end to end so
	// two invocations cannot race into a half-applied state.
	Lock(ctx context.Context) (release func(), err error)

	Load(ctx context.Context) (domain.SessionRecord, error)
	Save(ctx context.Context, rec domain.SessionRecord) error
	Delete(ctx context.Context) error
}

// FinishedSession is one archived session for history listings.
type FinishedSession struct {
	ID           string
	ProfileName  string
	StartedAt    time.Time
	EndedAt      time.Time
	Duration     time.Duration
	State        domain.SessionState
	Websites     int
	Applications int
}

// HistoryStore archives finished sessions. Archive must tolerate being
// called twice for the same record since teardown is idempotent.
type HistoryStore interface {
	Archive(ctx context.Context, rec domain.SessionRecord, endedAt time.Time) error
	List(ctx context.Context, limit int) ([]FinishedSession, error)
}
