package tracker

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/exiletools/runtracker/internal/event"
	"github.com/exiletools/runtracker/internal/loot"
	"github.com/exiletools/runtracker/internal/sched"
	"github.com/exiletools/runtracker/internal/stats"
	"github.com/exiletools/runtracker/internal/storage"
)

type captureNotifier struct {
	mu  sync.Mutex
	got []Notification
}

func (n *captureNotifier) RunProcessed(ctx context.Context, note Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.got = append(n.got, note)
	return nil
}

func (n *captureNotifier) all() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notification(nil), n.got...)
}

type fixedXP struct{ xp int64 }

func (f *fixedXP) GetExperience(ctx context.Context) (int64, error) { return f.xp, nil }

type chaosPricer struct{}

func (chaosPricer) Price(ctx context.Context, item storage.Item) (loot.Price, error) {
	if item.Name == "Chaos Orb" {
		return loot.Price{Value: 1}, nil
	}
	return loot.Price{IsVendor: true}, nil
}

type env struct {
	tr    *Tracker
	store *storage.SQLite
	notes *captureNotifier
}

type envOpt func(logger *slog.Logger, store *storage.SQLite) (*loot.Valuer, XPSource)

func plain(logger *slog.Logger, store *storage.SQLite) (*loot.Valuer, XPSource) {
	return nil, nil
}

func withLoot(logger *slog.Logger, store *storage.SQLite) (*loot.Valuer, XPSource) {
	return loot.NewValuer(logger, store, chaosPricer{}), nil
}

func withXP(xp int64) envOpt {
	return func(logger *slog.Logger, store *storage.SQLite) (*loot.Valuer, XPSource) {
		return nil, &fixedXP{xp: xp}
	}
}

func newEnv(t *testing.T, opt envOpt) *env {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := storage.Open(filepath.Join(t.TempDir(), "runtracker.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	scheduler := sched.New(logger)
	t.Cleanup(scheduler.Close)

	valuer, xp := opt(logger, store)
	notes := &captureNotifier{}
	extractor := stats.NewExtractor(logger, "MyExile")
	tr := New(logger, store, scheduler, extractor, valuer, xp, notes)
	return &env{tr: tr, store: store, notes: notes}
}

func at(min, sec int) time.Time {
	return time.Date(2026, 3, 1, 20, min, sec, 0, time.Local)
}

func (e *env) feed(t *testing.T, typ event.Type, text string, ts time.Time) {
	t.Helper()
	if err := <-e.tr.HandleEvent(event.Event{Type: typ, Text: text, Timestamp: ts}); err != nil {
		t.Fatalf("handle %s %q: %v", typ, text, err)
	}
}

func (e *env) completedRuns(t *testing.T) []*storage.Run {
	t.Helper()
	runs, err := e.store.ListRuns(context.Background(), 0)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	return runs
}

// Town, map, death, back to town: exactly one run, bounded by the map
// enter and the town return, with the death recorded.
func TestRunLifecycle(t *testing.T) {
	e := newEnv(t, plain)

	e.feed(t, event.TypeInstanceServer, "169.48.107.1:6112", at(0, 0))
	e.feed(t, event.TypeEntered, "Lioneye's Watch", at(0, 0))
	e.feed(t, event.TypeEntered, "Crimson Temple", at(1, 0))
	e.feed(t, event.TypeSlain, "MyExile", at(3, 0))
	e.feed(t, event.TypeEntered, "Lioneye's Watch", at(5, 0))

	runs := e.completedRuns(t)
	if len(runs) != 1 {
		t.Fatalf("completed runs = %d, want 1", len(runs))
	}
	run := runs[0]
	if !run.FirstEvent.Equal(at(1, 0)) {
		t.Fatalf("first event = %v, want %v", run.FirstEvent, at(1, 0))
	}
	if !run.LastEvent.Equal(at(5, 0)) {
		t.Fatalf("last event = %v, want %v", run.LastEvent, at(5, 0))
	}

	var info stats.RunInfo
	if err := json.Unmarshal(run.Info, &info); err != nil {
		t.Fatalf("decode run info: %v", err)
	}
	if info.Deaths != 1 {
		t.Fatalf("deaths = %d, want 1", info.Deaths)
	}

	// No XP, no kills, no loot: kept for history, never notified.
	if !info.Ignored {
		t.Fatal("empty run not flagged ignored")
	}
	if len(e.notes.all()) != 0 {
		t.Fatalf("ignored run was notified: %+v", e.notes.all())
	}
}

// Re-entering the same instance of the open run's area is intra-run
// traffic, not a boundary.
func TestSameInstanceDoesNotSplitRun(t *testing.T) {
	e := newEnv(t, plain)

	e.feed(t, event.TypeInstanceServer, "169.48.107.1:6112", at(0, 0))
	e.feed(t, event.TypeEntered, "Crimson Temple", at(1, 0))
	e.feed(t, event.TypeEntered, "Crimson Temple", at(2, 0))

	open, err := e.store.OpenRun(context.Background())
	if err != nil {
		t.Fatalf("open run: %v", err)
	}
	if open == nil {
		t.Fatal("run was closed by same-instance re-enter")
	}
	if !open.FirstEvent.Equal(at(1, 0)) {
		t.Fatalf("first event moved: %v", open.FirstEvent)
	}
	if len(e.completedRuns(t)) != 0 {
		t.Fatal("same-instance traffic finalized the run")
	}
}

// After a run closes, repeated boundary signals for the same (area,
// server) pair neither reprocess it nor open a duplicate.
func TestClosedRunIsNotReopened(t *testing.T) {
	e := newEnv(t, plain)

	e.feed(t, event.TypeInstanceServer, "169.48.107.1:6112", at(0, 0))
	e.feed(t, event.TypeEntered, "Crimson Temple", at(1, 0))
	e.feed(t, event.TypeEntered, "Lioneye's Watch", at(5, 0))

	// Back into the same instance to pick up leftovers, then to town.
	e.feed(t, event.TypeEntered, "Crimson Temple", at(6, 0))
	e.feed(t, event.TypeEntered, "Lioneye's Watch", at(7, 0))

	if runs := e.completedRuns(t); len(runs) != 1 {
		t.Fatalf("completed runs = %d, want 1", len(runs))
	}

	// A fresh instance of the same map is a new run.
	e.feed(t, event.TypeInstanceServer, "169.48.107.2:6112", at(8, 0))
	e.feed(t, event.TypeEntered, "Crimson Temple", at(8, 30))
	e.feed(t, event.TypeEntered, "Lioneye's Watch", at(12, 0))

	if runs := e.completedRuns(t); len(runs) != 2 {
		t.Fatalf("completed runs = %d, want 2", len(runs))
	}
}

// The first recorded run has no baseline, so its XP gain is the raw
// sampled total.
func TestFirstRunXPDiffIsRawSample(t *testing.T) {
	e := newEnv(t, plain)

	e.feed(t, event.TypeEntered, "Crimson Temple", at(1, 0))
	if err := <-e.tr.RecordXPSample(storage.XPSample{Timestamp: at(3, 0), XP: 12345}); err != nil {
		t.Fatalf("record xp sample: %v", err)
	}
	e.feed(t, event.TypeEntered, "Lioneye's Watch", at(5, 0))

	notes := e.notes.all()
	if len(notes) != 1 {
		t.Fatalf("notifications = %d, want 1", len(notes))
	}
	if notes[0].XP != 12345 {
		t.Fatalf("xp gain = %d, want 12345", notes[0].XP)
	}
	if notes[0].Kills != KillsUnknown {
		t.Fatalf("kills = %d, want unknown", notes[0].Kills)
	}

	runs := e.completedRuns(t)
	if runs[0].XP == nil || *runs[0].XP != 12345 {
		t.Fatalf("persisted xp = %v", runs[0].XP)
	}
	if runs[0].Kills != nil {
		t.Fatalf("persisted kills = %v, want nil for unknown", runs[0].Kills)
	}
}

// The second run's gain is the diff against the previous run's total.
func TestXPDiffAgainstPreviousRun(t *testing.T) {
	e := newEnv(t, plain)

	e.feed(t, event.TypeEntered, "Crimson Temple", at(1, 0))
	<-e.tr.RecordXPSample(storage.XPSample{Timestamp: at(2, 0), XP: 1000})
	e.feed(t, event.TypeEntered, "Lioneye's Watch", at(3, 0))

	e.feed(t, event.TypeInstanceServer, "169.48.107.2:6112", at(4, 0))
	e.feed(t, event.TypeEntered, "Cemetery", at(5, 0))
	<-e.tr.RecordXPSample(storage.XPSample{Timestamp: at(6, 0), XP: 1750})
	e.feed(t, event.TypeEntered, "Lioneye's Watch", at(7, 0))

	notes := e.notes.all()
	if len(notes) != 2 {
		t.Fatalf("notifications = %d, want 2", len(notes))
	}
	if notes[1].XP != 750 {
		t.Fatalf("second run xp gain = %d, want 750", notes[1].XP)
	}
	if notes[1].Name != "Cemetery" {
		t.Fatalf("second run area = %q", notes[1].Name)
	}
}

// Without a local sample the remote API supplies the total.
func TestRemoteXPFallback(t *testing.T) {
	e := newEnv(t, withXP(99999))

	e.feed(t, event.TypeEntered, "Crimson Temple", at(1, 0))
	e.feed(t, event.TypeEntered, "Lioneye's Watch", at(5, 0))

	notes := e.notes.all()
	if len(notes) != 1 {
		t.Fatalf("notifications = %d, want 1", len(notes))
	}
	if notes[0].XP != 99999 {
		t.Fatalf("xp = %d, want remote value", notes[0].XP)
	}
}

// Kill counting needs at least two incubator samples in the window.
func TestKillsFromIncubatorDelta(t *testing.T) {
	e := newEnv(t, plain)

	e.feed(t, event.TypeEntered, "Crimson Temple", at(1, 0))
	<-e.tr.RecordIncubatorSample(storage.IncubatorSample{Timestamp: at(1, 30), Progress: 100})
	<-e.tr.RecordIncubatorSample(storage.IncubatorSample{Timestamp: at(4, 0), Progress: 187})
	e.feed(t, event.TypeEntered, "Lioneye's Watch", at(5, 0))

	notes := e.notes.all()
	if len(notes) != 1 {
		t.Fatalf("notifications = %d, want 1", len(notes))
	}
	if notes[0].Kills != 87 {
		t.Fatalf("kills = %d, want 87", notes[0].Kills)
	}

	runs := e.completedRuns(t)
	if runs[0].Kills == nil || *runs[0].Kills != 87 {
		t.Fatalf("persisted kills = %v, want 87", runs[0].Kills)
	}
}

// Loot value comes from the pricing collaborator; vendor trash is free.
func TestLootValuation(t *testing.T) {
	e := newEnv(t, withLoot)

	e.feed(t, event.TypeEntered, "Crimson Temple", at(1, 0))
	items := []storage.Item{
		{Timestamp: at(2, 0), Name: "Chaos Orb", StackSize: 3},
		{Timestamp: at(5, 0), Name: "Portal Scroll", StackSize: 12},
	}
	if err := <-e.tr.RecordItems(items); err != nil {
		t.Fatalf("record items: %v", err)
	}
	e.feed(t, event.TypeEntered, "Lioneye's Watch", at(5, 0))

	notes := e.notes.all()
	if len(notes) != 1 {
		t.Fatalf("notifications = %d, want 1", len(notes))
	}
	if notes[0].Gained != 3 {
		t.Fatalf("gained = %v, want 3", notes[0].Gained)
	}
}

// Area generation feeds the monster level into the run's area info.
func TestGeneratedAreaLevelRecorded(t *testing.T) {
	e := newEnv(t, plain)

	gen := event.AreaGenerated{Level: 83, Area: "MapWorlds/Cemetery", Seed: 42}
	e.feed(t, event.TypeGeneratedArea, gen.Encode(), at(0, 55))
	e.feed(t, event.TypeEntered, "Cemetery", at(1, 0))

	open, err := e.store.OpenRun(context.Background())
	if err != nil || open == nil {
		t.Fatalf("open run = %v, err %v", open, err)
	}
	info, err := e.store.GetAreaInfo(context.Background(), open.ID)
	if err != nil {
		t.Fatalf("area info: %v", err)
	}
	if info.Level != 83 || info.Name != "Cemetery" {
		t.Fatalf("area info = %+v", info)
	}
}

// A boundary signal without a town visit in the window leaves the run
// open: the session is still going.
func TestNoTownVisitNoFinalization(t *testing.T) {
	e := newEnv(t, plain)

	e.feed(t, event.TypeEntered, "Crimson Temple", at(1, 0))

	gen := event.AreaGenerated{Level: 82, Area: "MapWorlds/Dunes"}
	e.feed(t, event.TypeGeneratedArea, gen.Encode(), at(6, 0))
	e.feed(t, event.TypeEndSignal, "", at(7, 0))

	open, err := e.store.OpenRun(context.Background())
	if err != nil {
		t.Fatalf("open run: %v", err)
	}
	if open == nil {
		t.Fatal("run closed without a town visit")
	}
	if len(e.completedRuns(t)) != 0 {
		t.Fatal("run finalized without a town visit")
	}
}

// Towns and hideouts never open runs.
func TestTownsNeverOpenRuns(t *testing.T) {
	e := newEnv(t, plain)

	e.feed(t, event.TypeEntered, "Lioneye's Watch", at(0, 0))
	e.feed(t, event.TypeEntered, "Celestial Hideout", at(1, 0))

	open, err := e.store.OpenRun(context.Background())
	if err != nil {
		t.Fatalf("open run: %v", err)
	}
	if open != nil {
		t.Fatalf("town opened a run: %+v", open)
	}
}

// Crossing labyrinth floors never splits the run.
func TestLabyrinthFloorsShareOneRun(t *testing.T) {
	e := newEnv(t, plain)

	e.feed(t, event.TypeEntered, "Estate Path", at(1, 0))
	e.feed(t, event.TypeEntered, "Estate Walkways", at(3, 0))
	e.feed(t, event.TypeEntered, "Estate Crossing", at(5, 0))

	open, err := e.store.OpenRun(context.Background())
	if err != nil {
		t.Fatalf("open run: %v", err)
	}
	if open == nil {
		t.Fatal("labyrinth run missing")
	}
	if !open.FirstEvent.Equal(at(1, 0)) {
		t.Fatalf("first event = %v, want first floor", open.FirstEvent)
	}
	if len(e.completedRuns(t)) != 0 {
		t.Fatal("floor crossing finalized the run")
	}
}

// ProcessRun finalizes with an explicit end, bypassing the town search.
func TestProcessRunExplicitEnd(t *testing.T) {
	e := newEnv(t, plain)

	e.feed(t, event.TypeEntered, "Crimson Temple", at(1, 0))
	if err := e.tr.ProcessRun(at(4, 30)); err != nil {
		t.Fatalf("process run: %v", err)
	}

	runs := e.completedRuns(t)
	if len(runs) != 1 {
		t.Fatalf("completed runs = %d, want 1", len(runs))
	}
	if !runs[0].LastEvent.Equal(at(4, 30)) {
		t.Fatalf("last event = %v, want explicit end", runs[0].LastEvent)
	}
}

// ProcessRun with nothing open is a no-op.
func TestProcessRunWithoutOpenRun(t *testing.T) {
	e := newEnv(t, plain)

	if err := e.tr.ProcessRun(at(1, 0)); err != nil {
		t.Fatalf("process run on empty state: %v", err)
	}
	if len(e.completedRuns(t)) != 0 {
		t.Fatal("phantom run appeared")
	}
}

// The AFK flag follows the toggle events.
func TestAFKToggle(t *testing.T) {
	e := newEnv(t, plain)

	e.feed(t, event.TypeAFKToggle, "on", at(0, 0))
	if !e.tr.AFK() {
		t.Fatal("afk flag not set")
	}
	e.feed(t, event.TypeAFKToggle, "off", at(1, 0))
	if e.tr.AFK() {
		t.Fatal("afk flag not cleared")
	}
}

// UpsertAreaInfo without a run id targets the open run.
func TestUpsertAreaInfoTargetsOpenRun(t *testing.T) {
	e := newEnv(t, plain)

	e.feed(t, event.TypeEntered, "Crimson Temple", at(1, 0))

	iiq := 74
	if err := <-e.tr.UpsertAreaInfo(storage.AreaInfo{Level: 83, IIQ: &iiq}); err != nil {
		t.Fatalf("upsert area info: %v", err)
	}

	open, _ := e.store.OpenRun(context.Background())
	info, err := e.store.GetAreaInfo(context.Background(), open.ID)
	if err != nil {
		t.Fatalf("get area info: %v", err)
	}
	if info.IIQ == nil || *info.IIQ != iiq || info.Name != "Crimson Temple" {
		t.Fatalf("area info = %+v", info)
	}

	// The OCR values land on the finalized run.
	e.feed(t, event.TypeEntered, "Lioneye's Watch", at(5, 0))
	runs := e.completedRuns(t)
	if runs[0].IIQ == nil || *runs[0].IIQ != iiq {
		t.Fatalf("run iiq = %v, want %d", runs[0].IIQ, iiq)
	}
}
