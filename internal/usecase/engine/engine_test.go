package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/enough/enough/internal/domain"
	"github.com/enough/enough/internal/port"
)

type fakeClock struct {
	now    time.Time
	uptime time.Duration
	bootID string
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Uptime() time.Duration   { return c.uptime }
func (c *fakeClock) BootID() string          { return c.bootID }
func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d); c.uptime += d }

type fakeStore struct {
	rec      *domain.SessionRecord
	corrupt  bool
	saves    int
	deletes  int
	lockHeld bool
}

func (s *fakeStore) Lock(context.Context) (func(), error) {
	if s.lockHeld {
		return nil, errors.New("lock already held")
	}
	s.lockHeld = true
	return func() { s.lockHeld = false }, nil
}

func (s *fakeStore) Load(context.Context) (domain.SessionRecord, error) {
	if s.corrupt {
		return domain.SessionRecord{}, fmt.Errorf("%w: truncated yaml", domain.ErrCorruptState)
	}
	if s.rec == nil {
		return domain.SessionRecord{}, domain.ErrNotActive
	}
	return *s.rec, nil
}

func (s *fakeStore) Save(_ context.Context, rec domain.SessionRecord) error {
	s.saves++
	s.rec = &rec
	return nil
}

func (s *fakeStore) Delete(context.Context) error {
	s.deletes++
	s.rec = nil
	return nil
}

type fakeApplier struct {
	applied   map[string]bool
	failApply map[string]error
	checkErr  map[string]error
	applies   []string
	removes   []string
}

func newFakeApplier() *fakeApplier {
	return &fakeApplier{
		applied:   map[string]bool{},
		failApply: map[string]error{},
		checkErr:  map[string]error{},
	}
}

func (a *fakeApplier) Apply(_ context.Context, t domain.BlockTarget) error {
	a.applies = append(a.applies, t.Key())
	if err := a.failApply[t.Key()]; err != nil {
		return err
	}
	a.applied[t.Key()] = true
	return nil
}

func (a *fakeApplier) Remove(_ context.Context, t domain.BlockTarget) error {
	a.removes = append(a.removes, t.Key())
	delete(a.applied, t.Key())
	return nil
}

func (a *fakeApplier) IsApplied(_ context.Context, t domain.BlockTarget) (bool, error) {
	if err := a.checkErr[t.Key()]; err != nil {
		return false, err
	}
	return a.applied[t.Key()], nil
}

type fakeHistory struct {
	archived []port.FinishedSession
}

func (h *fakeHistory) Archive(_ context.Context, rec domain.SessionRecord, endedAt time.Time) error {
	h.archived = append(h.archived, port.FinishedSession{
		ID:          rec.ID,
		ProfileName: rec.ProfileName,
		StartedAt:   rec.StartedAt,
		EndedAt:     endedAt,
		Duration:    rec.Duration,
		State:       rec.State,
	})
	return nil
}

func (h *fakeHistory) List(context.Context, int) ([]port.FinishedSession, error) {
	return h.archived, nil
}

type fakePriv struct{ err error }

func (p fakePriv) Check() error { return p.err }

type fixture struct {
	engine  *Engine
	store   *fakeStore
	sites   *fakeApplier
	apps    *fakeApplier
	clock   *fakeClock
	history *fakeHistory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:   &fakeStore{},
		sites:   newFakeApplier(),
		apps:    newFakeApplier(),
		clock:   &fakeClock{now: time.Date(2026, 8, 26, 9, 0, 0, 0, time.UTC), uptime: time.Hour, bootID: "boot-1"},
		history: &fakeHistory{},
	}
	appliers := map[domain.TargetKind]port.TargetApplier{
		domain.TargetWebsite:     f.sites,
		domain.TargetApplication: f.apps,
	}
	f.engine = New(f.store, appliers, f.clock, fakePriv{}, f.history, nil)
	return f
}

func lockInProfile(t *testing.T) domain.Profile {
	t.Helper()
	yt, err := domain.NewWebsiteTarget("youtube.com")
	if err != nil {
		t.Fatal(err)
	}
	rd, err := domain.NewWebsiteTarget("reddit.com")
	if err != nil {
		t.Fatal(err)
	}
	steam, err := domain.NewApplicationTarget("/Applications/Steam.app")
	if err != nil {
		t.Fatal(err)
	}
	return domain.Profile{
		Name:     "lock-in",
		Duration: 90 * time.Minute,
		Targets:  []domain.BlockTarget{yt, rd, steam},
	}
}

func TestStartThenStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.engine.Start(ctx, lockInProfile(t), 0)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if rec.ID == "" || rec.State != domain.SessionActive {
		t.Errorf("record = %+v", rec)
	}
	if !f.sites.applied["website:youtube.com"] || !f.sites.applied["website:reddit.com"] {
		t.Errorf("websites not applied: %v", f.sites.applied)
	}
	if !f.apps.applied["application:steam"] {
		t.Errorf("app not applied: %v", f.apps.applied)
	}

	rep, err := f.engine.Status(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if rep.Status != StatusActive {
		t.Fatalf("status = %s, want active", rep.Status)
	}
	if rep.Remaining != 90*time.Minute {
		t.Errorf("remaining = %v, want 90m", rep.Remaining)
	}
	if rep.Websites != 2 || rep.Applications != 1 {
		t.Errorf("counts = %d/%d, want 2/1", rep.Websites, rep.Applications)
	}
}

func TestStartRejectsSecondSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.engine.Start(ctx, lockInProfile(t), 0); err != nil {
		t.Fatal(err)
	}
	if _, err := f.engine.Start(ctx, lockInProfile(t), 0); !errors.Is(err, domain.ErrAlreadyActive) {
		t.Errorf("second start: got %v, want ErrAlreadyActive", err)
	}
}

func TestStartValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	profile := lockInProfile(t)

	cases := []struct {
		name    string
		mutate  func(*domain.Profile)
		wantErr error
	}{
		{"empty name", func(p *domain.Profile) { p.Name = "" }, domain.ErrNoProfile},
		{"no targets", func(p *domain.Profile) { p.Targets = nil }, domain.ErrEmptyTargetSet},
		{"zero duration", func(p *domain.Profile) { p.Duration = 0 }, domain.ErrInvalidDuration},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := profile
			p.Targets = append([]domain.BlockTarget(nil), profile.Targets...)
			tc.mutate(&p)
			if _, err := f.engine.Start(ctx, p, 0); !errors.Is(err, tc.wantErr) {
				t.Errorf("got %v, want %v", err, tc.wantErr)
			}
		})
	}

	if _, err := f.engine.Start(ctx, profile, -time.Minute); !errors.Is(err, domain.ErrInvalidDuration) {
		t.Errorf("negative override: got %v, want ErrInvalidDuration", err)
	}
	if f.store.rec != nil {
		t.Error("validation failures must not persist a record")
	}
}

func TestStartOverrideDuration(t *testing.T) {
	f := newFixture(t)
	rec, err := f.engine.Start(context.Background(), lockInProfile(t), 25*time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Duration != 25*time.Minute {
		t.Errorf("duration = %v, want 25m", rec.Duration)
	}
}

func TestStartRequiresPrivilege(t *testing.T) {
	f := newFixture(t)
	f.engine.priv = fakePriv{err: domain.ErrPermissionDenied}
	if _, err := f.engine.Start(context.Background(), lockInProfile(t), 0); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Errorf("got %v, want ErrPermissionDenied", err)
	}
}

func TestStartRollsBackOnApplyFailure(t *testing.T) {
	f := newFixture(t)
	f.sites.failApply["website:reddit.com"] = errors.New("hosts file busy")

	_, err := f.engine.Start(context.Background(), lockInProfile(t), 0)
	var applyErr *domain.ApplyError
	if !errors.As(err, &applyErr) {
		t.Fatalf("got %v, want *ApplyError", err)
	}
	if applyErr.Target.Value != "reddit.com" {
		t.Errorf("failing target = %v, want reddit.com", applyErr.Target)
	}
	if len(f.sites.applied) != 0 {
		t.Errorf("applied targets were not rolled back: %v", f.sites.applied)
	}
	if f.store.rec != nil {
		t.Error("record must be deleted after a failed start")
	}
}

func TestStartPersistsRecordBeforeApplying(t *testing.T) {
	f := newFixture(t)
	f.sites.failApply["website:youtube.com"] = errors.New("boom")

	_, err := f.engine.Start(context.Background(), lockInProfile(t), 0)
	if err == nil {
		t.Fatal("expected apply failure")
	}
	if f.store.saves != 1 {
		t.Errorf("saves = %d, want the record persisted before the first apply", f.store.saves)
	}
}

func TestTickHealsTamperedTargets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.engine.Start(ctx, lockInProfile(t), 0); err != nil {
		t.Fatal(err)
	}
	// Simulate the user editing the hosts file and relaunching the app.
	delete(f.sites.applied, "website:youtube.com")
	delete(f.apps.applied, "application:steam")

	if err := f.engine.Tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if !f.sites.applied["website:youtube.com"] || !f.apps.applied["application:steam"] {
		t.Errorf("tampered targets not healed: %v %v", f.sites.applied, f.apps.applied)
	}
	if f.store.rec == nil {
		t.Error("healing must not end the session")
	}
}

func TestTickSkipsFailingTargetAndHealsRest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.engine.Start(ctx, lockInProfile(t), 0); err != nil {
		t.Fatal(err)
	}
	delete(f.sites.applied, "website:youtube.com")
	delete(f.sites.applied, "website:reddit.com")
	f.sites.checkErr["website:youtube.com"] = errors.New("read-only fs")

	if err := f.engine.Tick(ctx); err != nil {
		t.Fatalf("tick must not fail on a single bad target: %v", err)
	}
	if !f.sites.applied["website:reddit.com"] {
		t.Error("healthy target was not healed")
	}
}

func TestTickExpiryTearsDownOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.engine.Start(ctx, lockInProfile(t), 0); err != nil {
		t.Fatal(err)
	}
	f.clock.advance(91 * time.Minute)

	if err := f.engine.Tick(ctx); err != nil {
		t.Fatalf("expiry tick: %v", err)
	}
	if len(f.sites.applied) != 0 || len(f.apps.applied) != 0 {
		t.Errorf("targets still applied after expiry: %v %v", f.sites.applied, f.apps.applied)
	}
	if f.store.rec != nil {
		t.Error("record must be deleted after expiry")
	}
	if len(f.history.archived) != 1 || f.history.archived[0].State != domain.SessionExpired {
		t.Errorf("archived = %+v, want one expired session", f.history.archived)
	}

	removesBefore := len(f.sites.removes) + len(f.apps.removes)
	if err := f.engine.Tick(ctx); err != nil {
		t.Fatalf("second tick: %v", err)
	}
	if got := len(f.sites.removes) + len(f.apps.removes); got != removesBefore {
		t.Error("second tick after expiry must be a no-op")
	}
	if len(f.history.archived) != 1 {
		t.Error("session archived more than once")
	}
}

func TestWallClockTamperDoesNotExpire(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.engine.Start(ctx, lockInProfile(t), 0); err != nil {
		t.Fatal(err)
	}
	// Jump the wall clock forward three hours without advancing uptime.
	f.clock.now = f.clock.now.Add(3 * time.Hour)
	f.clock.uptime += 10 * time.Minute

	rep, err := f.engine.Status(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Status != StatusActive {
		t.Fatalf("status = %s, clock tampering must not expire the session", rep.Status)
	}
	if rep.Remaining != 80*time.Minute {
		t.Errorf("remaining = %v, want 80m from uptime arithmetic", rep.Remaining)
	}
}

func TestExpiryAcrossRebootFallsBackToWallClock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.engine.Start(ctx, lockInProfile(t), 0); err != nil {
		t.Fatal(err)
	}
	// Reboot: new boot id, uptime reset, wall clock well past the deadline.
	f.clock.bootID = "boot-2"
	f.clock.uptime = 2 * time.Minute
	f.clock.now = f.clock.now.Add(4 * time.Hour)

	if err := f.engine.Tick(ctx); err != nil {
		t.Fatal(err)
	}
	if f.store.rec != nil {
		t.Error("session should expire on the first tick after the reboot")
	}
}

func TestCrashRecoveryFirstTick(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	profile := lockInProfile(t)

	// A record left behind by a crashed watchdog, already past deadline.
	f.store.rec = &domain.SessionRecord{
		ID:          "left-over",
		ProfileName: profile.Name,
		Targets:     profile.Targets,
		StartedAt:   f.clock.now.Add(-2 * time.Hour),
		StartUptime: 0,
		BootID:      f.clock.bootID,
		Duration:    90 * time.Minute,
		State:       domain.SessionActive,
	}
	f.clock.uptime = 2 * time.Hour
	for _, target := range profile.Targets {
		switch target.Kind {
		case domain.TargetApplication:
			f.apps.applied[target.Key()] = true
		default:
			f.sites.applied[target.Key()] = true
		}
	}

	if err := f.engine.Tick(ctx); err != nil {
		t.Fatalf("recovery tick: %v", err)
	}
	if f.store.rec != nil {
		t.Error("stale session must be torn down on the first tick")
	}
	if len(f.sites.applied) != 0 {
		t.Errorf("blocks still applied after recovery: %v", f.sites.applied)
	}
}

func TestStopBeforeExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.engine.Start(ctx, lockInProfile(t), 0); err != nil {
		t.Fatal(err)
	}
	if err := f.engine.Stop(ctx, false); !errors.Is(err, domain.ErrStillLocked) {
		t.Fatalf("early stop: got %v, want ErrStillLocked", err)
	}
	if f.store.rec == nil || len(f.sites.applied) == 0 {
		t.Error("rejected stop must leave the session intact")
	}

	if err := f.engine.Stop(ctx, true); err != nil {
		t.Fatalf("forced stop: %v", err)
	}
	if f.store.rec != nil || len(f.sites.applied) != 0 || len(f.apps.applied) != 0 {
		t.Error("forced stop must tear everything down")
	}
	if len(f.history.archived) != 1 || f.history.archived[0].State != domain.SessionStopped {
		t.Errorf("archived = %+v, want one stopped session", f.history.archived)
	}
}

func TestStopAfterExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.engine.Start(ctx, lockInProfile(t), 0); err != nil {
		t.Fatal(err)
	}
	f.clock.advance(2 * time.Hour)

	if err := f.engine.Stop(ctx, false); err != nil {
		t.Fatalf("stop after expiry: %v", err)
	}
	if len(f.history.archived) != 1 || f.history.archived[0].State != domain.SessionExpired {
		t.Errorf("archived = %+v, want expired", f.history.archived)
	}
}

func TestStopWithoutSession(t *testing.T) {
	f := newFixture(t)
	if err := f.engine.Stop(context.Background(), false); !errors.Is(err, domain.ErrNotActive) {
		t.Errorf("got %v, want ErrNotActive", err)
	}
}

func TestStatusWithCorruptRecord(t *testing.T) {
	f := newFixture(t)
	f.store.corrupt = true

	rep, err := f.engine.Status(context.Background())
	if err != nil {
		t.Fatalf("status must not fail on corrupt state: %v", err)
	}
	if rep.Status != StatusNone || !rep.CorruptState {
		t.Errorf("report = %+v, want none with corrupt flag", rep)
	}
}

func TestStartReplacesCorruptRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Load reports corruption until the first save overwrites the file.
	f.store.corrupt = true
	f.engine.store = &corruptClearingStore{fakeStore: f.store}

	if _, err := f.engine.Start(ctx, lockInProfile(t), 0); err != nil {
		t.Fatalf("start over corrupt record: %v", err)
	}
	if f.store.rec == nil {
		t.Error("new record not persisted")
	}
}

// corruptClearingStore clears the corrupt flag on save, mimicking an
// overwrite of an unreadable file.
type corruptClearingStore struct {
	*fakeStore
}

func (s *corruptClearingStore) Save(ctx context.Context, rec domain.SessionRecord) error {
	s.corrupt = false
	return s.fakeStore.Save(ctx, rec)
}
