// Package engine orchestrates the lifecycle of a blocking session:
// all-or-nothing start, pure status reads, expiry-gated stop, and the
// periodic tick that heals tampering and retires the session.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/enough/enough/internal/domain"
	"github.com/enough/enough/internal/port"
)

// DefaultApplyTimeout bounds a single apply/remove/check attempt so one
// stuck target cannot stall the whole loop.
const DefaultApplyTimeout = 10 * time.Second

type Engine struct {
	store        port.SessionStore
	appliers     map[domain.TargetKind]port.TargetApplier
	clock        port.Clock
	priv         port.PrivilegeChecker
	history      port.HistoryStore
	log          hclog.Logger
	applyTimeout time.Duration
}

// New wires the engine. history may be nil; finished sessions are then
// simply not archived.
func New(
	store port.SessionStore,
	appliers map[domain.TargetKind]port.TargetApplier,
	clock port.Clock,
	priv port.PrivilegeChecker,
	history port.HistoryStore,
	log hclog.Logger,
) *Engine {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &Engine{
		store:        store,
		appliers:     appliers,
		clock:        clock,
		priv:         priv,
		history:      history,
		log:          log,
		applyTimeout: DefaultApplyTimeout,
	}
}

// Start establishes a new session: validates, persists the record, then
// applies every block. Any apply failure rolls back the already-applied
// targets and deletes the record, so start is all-or-nothing.
func (e *Engine) Start(ctx context.Context, profile domain.Profile, override time.Duration) (domain.SessionRecord, error) {
	if err := e.priv.Check(); err != nil {
		return domain.SessionRecord{}, err
	}
	if profile.Name == "" {
		return domain.SessionRecord{}, domain.ErrNoProfile
	}
	if len(profile.Targets) == 0 {
		return domain.SessionRecord{}, domain.ErrEmptyTargetSet
	}
	duration := profile.Duration
	if override != 0 {
		duration = override
	}
	if duration <= 0 {
		return domain.SessionRecord{}, domain.ErrInvalidDuration
	}
	for _, t := range profile.Targets {
		if _, ok := e.appliers[t.Kind]; !ok {
			return domain.SessionRecord{}, &domain.ApplyError{Target: t, Err: domain.ErrUnsupportedTarget}
		}
	}

	release, err := e.store.Lock(ctx)
	if err != nil {
		return domain.SessionRecord{}, err
	}
	defer release()

	switch _, loadErr := e.store.Load(ctx); {
	case loadErr == nil:
		return domain.SessionRecord{}, domain.ErrAlreadyActive
	case errors.Is(loadErr, domain.ErrNotActive):
	case errors.Is(loadErr, domain.ErrCorruptState):
		e.log.Warn("replacing corrupt session record", "error", loadErr)
	default:
		return domain.SessionRecord{}, loadErr
	}

	rec := domain.SessionRecord{
		ID:          uuid.NewString(),
		ProfileName: profile.Name,
		Targets:     append([]domain.BlockTarget(nil), profile.Targets...),
		StartedAt:   e.clock.Now(),
		StartUptime: e.clock.Uptime(),
		BootID:      e.clock.BootID(),
		Duration:    duration,
		State:       domain.SessionActive,
	}

	// Persist before applying: a crash mid-apply is then recoverable,
	// the first tick after restart re-applies everything from the record.
	if err := e.store.Save(ctx, rec); err != nil {
		return domain.SessionRecord{}, err
	}

	for i, t := range rec.Targets {
		if applyErr := e.applyOne(ctx, t); applyErr != nil {
			e.rollback(ctx, rec.Targets[:i])
			if delErr := e.store.Delete(ctx); delErr != nil {
				e.log.Error("delete record after failed start", "error", delErr)
			}
			return domain.SessionRecord{}, &domain.ApplyError{Target: t, Err: applyErr}
		}
	}

	e.log.Info("session started",
		"profile", rec.ProfileName,
		"duration", duration.String(),
		"targets", len(rec.Targets),
		"expires_at", rec.ExpiresAt().Format(time.RFC3339))
	return rec, nil
}

// SessionStatus classifies the current enforcement state.
type SessionStatus string

const (
	StatusNone    SessionStatus = "none"
	StatusActive  SessionStatus = "active"
	StatusExpired SessionStatus = "expired"
)

// StatusReport is a read-only snapshot for presentation.
type StatusReport struct {
	Status       SessionStatus
	ProfileName  string
	StartedAt    time.Time
	ExpiresAt    time.Time
	Remaining    time.Duration
	Websites     int
	Applications int

	// CorruptState flags that a record existed but could not be read;
	// blocks may still be in place even though Status is none.
	CorruptState bool
}

// Status is a pure read: it never transitions state. Expiry itself
// happens only through Tick or Stop.
func (e *Engine) Status(ctx context.Context) (StatusReport, error) {
	rec, err := e.store.Load(ctx)
	switch {
	case errors.Is(err, domain.ErrNotActive):
		return StatusReport{Status: StatusNone}, nil
	case errors.Is(err, domain.ErrCorruptState):
		e.log.Warn("session record is corrupt, reporting no session; blocks may still be in place", "error", err)
		return StatusReport{Status: StatusNone, CorruptState: true}, nil
	case err != nil:
		return StatusReport{}, err
	}

	now, up, boot := e.clock.Now(), e.clock.Uptime(), e.clock.BootID()
	rep := StatusReport{
		ProfileName:  rec.ProfileName,
		StartedAt:    rec.StartedAt,
		ExpiresAt:    rec.ExpiresAt(),
		Websites:     domain.CountByKind(rec.Targets, domain.TargetWebsite),
		Applications: domain.CountByKind(rec.Targets, domain.TargetApplication),
	}
	if rec.IsExpired(now, up, boot) {
		rep.Status = StatusExpired
	} else {
		rep.Status = StatusActive
		rep.Remaining = rec.Remaining(now, up, boot)
	}
	return rep, nil
}

// Stop tears the session down. While the session is active and not yet
// expired it is rejected unless force is set; force is the privileged,
// loudly-logged escape hatch.
func (e *Engine) Stop(ctx context.Context, force bool) error {
	if err := e.priv.Check(); err != nil {
		return err
	}
	release, err := e.store.Lock(ctx)
	if err != nil {
		return err
	}
	defer release()

	rec, err := e.store.Load(ctx)
	switch {
	case errors.Is(err, domain.ErrNotActive):
		return domain.ErrNotActive
	case errors.Is(err, domain.ErrCorruptState):
		e.log.Warn("session record is corrupt; any applied blocks were not removed", "error", err)
		return domain.ErrNotActive
	case err != nil:
		return err
	}

	now, up, boot := e.clock.Now(), e.clock.Uptime(), e.clock.BootID()
	expired := rec.IsExpired(now, up, boot)
	if !expired && !force {
		return domain.ErrStillLocked
	}
	final := domain.SessionExpired
	if !expired {
		final = domain.SessionStopped
		e.log.Warn("FORCED STOP of active session",
			"profile", rec.ProfileName,
			"remaining", rec.Remaining(now, up, boot).String())
	}
	return e.teardown(ctx, rec, final)
}

// Tick is one watchdog iteration: retire the session when expired,
// otherwise detect drifted targets and re-apply them. Called once
// synchronously at process startup for crash recovery before anything
// else is served.
func (e *Engine) Tick(ctx context.Context) error {
	release, err := e.store.Lock(ctx)
	if err != nil {
		return err
	}
	defer release()

	rec, err := e.store.Load(ctx)
	switch {
	case errors.Is(err, domain.ErrNotActive):
		return nil
	case errors.Is(err, domain.ErrCorruptState):
		e.log.Warn("session record is corrupt, nothing to enforce", "error", err)
		return nil
	case err != nil:
		return err
	}

	if rec.IsExpired(e.clock.Now(), e.clock.Uptime(), e.clock.BootID()) {
		e.log.Info("session expired, tearing down", "profile", rec.ProfileName)
		return e.teardown(ctx, rec, domain.SessionExpired)
	}
	e.heal(ctx, rec)
	return nil
}

// heal re-applies every target whose observed state no longer matches
// intent. Per-target failures are logged and retried on the next tick;
// one unreachable target must not stop enforcement of the rest.
func (e *Engine) heal(ctx context.Context, rec domain.SessionRecord) {
	for _, t := range rec.Targets {
		applied, err := e.checkOne(ctx, t)
		if err != nil {
			e.log.Warn("integrity check failed, retrying next tick", "target", t.String(), "error", err)
			continue
		}
		if applied {
			continue
		}
		if err := e.applyOne(ctx, t); err != nil {
			e.log.Warn("re-apply failed, retrying next tick", "target", t.String(), "error", err)
			continue
		}
		e.log.Info("healed tampered block", "target", t.String())
	}
}

// teardown removes every block, archives the outcome, then deletes the
// record. The record is kept when any removal fails so a later tick
// retries; calling teardown again once everything is gone is a no-op,
// which makes expiry exactly-once even across crash recovery.
func (e *Engine) teardown(ctx context.Context, rec domain.SessionRecord, final domain.SessionState) error {
	rec.State = final
	var firstErr error
	for _, t := range rec.Targets {
		if err := e.removeOne(ctx, t); err != nil {
			e.log.Error("remove block failed", "target", t.String(), "error", err)
			if firstErr == nil {
				firstErr = &domain.ApplyError{Target: t, Err: err}
			}
		}
	}
	if firstErr != nil {
		return firstErr
	}
	if e.history != nil {
		if err := e.history.Archive(ctx, rec, e.clock.Now()); err != nil {
			e.log.Warn("archive session failed", "error", err)
		}
	}
	if err := e.store.Delete(ctx); err != nil {
		return err
	}
	e.log.Info("session ended", "profile", rec.ProfileName, "state", string(final))
	return nil
}

func (e *Engine) applyOne(ctx context.Context, t domain.BlockTarget) error {
	applier, ok := e.appliers[t.Kind]
	if !ok {
		return domain.ErrUnsupportedTarget
	}
	opCtx, cancel := context.WithTimeout(ctx, e.applyTimeout)
	defer cancel()
	return applier.Apply(opCtx, t)
}

func (e *Engine) removeOne(ctx context.Context, t domain.BlockTarget) error {
	applier, ok := e.appliers[t.Kind]
	if !ok {
		return domain.ErrUnsupportedTarget
	}
	opCtx, cancel := context.WithTimeout(ctx, e.applyTimeout)
	defer cancel()
	return applier.Remove(opCtx, t)
}

func (e *Engine) checkOne(ctx context.Context, t domain.BlockTarget) (bool, error) {
	applier, ok := e.appliers[t.Kind]
	if !ok {
		return false, domain.ErrUnsupportedTarget
	}
	opCtx, cancel := context.WithTimeout(ctx, e.applyTimeout)
	defer cancel()
	return applier.IsApplied(opCtx, t)
}

func (e *Engine) rollback(ctx context.Context, applied []domain.BlockTarget) {
	for _, t := range applied {
		if err := e.removeOne(ctx, t); err != nil {
			e.log.Error("rollback failed for target", "target", t.String(), "error", err)
		}
	}
}
