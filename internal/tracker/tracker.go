// Package tracker owns the run lifecycle: it decides when a run opens,
// when one is finalized, and enriches the finished run with statistics
// from the collaborators.
//
// All state in Tracker is touched only from inside scheduled tasks, so
// the single-concurrency scheduler is the only synchronization needed.
package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/exiletools/runtracker/internal/area"
	"github.com/exiletools/runtracker/internal/event"
	"github.com/exiletools/runtracker/internal/loot"
	"github.com/exiletools/runtracker/internal/sched"
	"github.com/exiletools/runtracker/internal/stats"
	"github.com/exiletools/runtracker/internal/storage"
)

// KillsUnknown marks a run where no incubator data existed. Distinct
// from zero kills.
const KillsUnknown = -1

// Notification is the run-processed payload pushed to the host shell
// and the chat notifiers.
type Notification struct {
	Name       string    `json:"name"`
	ID         string    `json:"id"`
	Gained     float64   `json:"gained"`
	XP         int64     `json:"xp"`
	Kills      int       `json:"kills"`
	FirstEvent time.Time `json:"firstEvent"`
	LastEvent  time.Time `json:"lastEvent"`
}

// Notifier receives run-processed payloads. Failures are logged and
// never abort finalization.
type Notifier interface {
	RunProcessed(ctx context.Context, n Notification) error
}

// XPSource is the remote game API, used only as a fallback when no
// local XP sample landed inside the run window.
type XPSource interface {
	GetExperience(ctx context.Context) (int64, error)
}

// Tracker is the run boundary detector.
type Tracker struct {
	logger    *slog.Logger
	store     storage.Store
	scheduler *sched.Scheduler
	extractor *stats.Extractor
	valuer    *loot.Valuer
	xp        XPSource // optional
	notifier  Notifier // optional

	// Mutable state below is owned by scheduled tasks exclusively.
	afk            bool
	instanceServer string
	sawServerAgain bool
	currentArea    string
	runArea        string // area that opened the current run
	runServer      string // instance server of the current run
	latestGen      *event.AreaGenerated

	// lastProcessed is the (area, server) pair of the most recently
	// finalized run; repeated boundary signals for the same pair are
	// ignored instead of double-processing.
	lastProcessedArea   string
	lastProcessedServer string
}

func New(logger *slog.Logger, store storage.Store, scheduler *sched.Scheduler,
	extractor *stats.Extractor, valuer *loot.Valuer, xp XPSource, notifier Notifier) *Tracker {
	return &Tracker{
		logger:    logger,
		store:     store,
		scheduler: scheduler,
		extractor: extractor,
		valuer:    valuer,
		xp:        xp,
		notifier:  notifier,
	}
}

// HandleEvent schedules processing of one classified event. Producers
// never touch run state directly; they submit here and the scheduler
// guarantees strict ordering.
func (t *Tracker) HandleEvent(ev event.Event) <-chan error {
	return t.scheduler.Schedule(func(ctx context.Context) error {
		return t.process(ctx, ev)
	})
}

// TryProcess attempts finalization of the open run, optionally given
// the triggering event. Exposed to the host; runs on the scheduler.
func (t *Tracker) TryProcess(ev *event.Event) error {
	return t.scheduler.Wait(func(ctx context.Context) error {
		_, err := t.tryProcess(ctx, ev)
		return err
	})
}

// ProcessRun finalizes the open run with an explicit last-event
// timestamp, bypassing the last-town-visit search. Exposed to the host.
func (t *Tracker) ProcessRun(lastEvent time.Time) error {
	return t.scheduler.Wait(func(ctx context.Context) error {
		open, err := t.store.OpenRun(ctx)
		if err != nil {
			return err
		}
		if open == nil {
			return nil
		}
		return t.finalize(ctx, open, lastEvent)
	})
}

// RecordXPSample stores an XP observation through the scheduler so it
// cannot interleave with a finalization reading the sample table.
func (t *Tracker) RecordXPSample(s storage.XPSample) <-chan error {
	return t.scheduler.Schedule(func(ctx context.Context) error {
		return t.store.InsertXPSample(ctx, s)
	})
}

// RecordIncubatorSample stores a kill-counter observation.
func (t *Tracker) RecordIncubatorSample(s storage.IncubatorSample) <-chan error {
	return t.scheduler.Schedule(func(ctx context.Context) error {
		return t.store.InsertIncubatorSample(ctx, s)
	})
}

// RecordItems stores a batch from the inventory-diff collaborator.
func (t *Tracker) RecordItems(items []storage.Item) <-chan error {
	return t.scheduler.Schedule(func(ctx context.Context) error {
		return t.store.InsertItems(ctx, items)
	})
}

// UpsertAreaInfo is called by the OCR collaborator; data may arrive
// after the run already started. When runID is empty the open run is
// targeted.
func (t *Tracker) UpsertAreaInfo(info storage.AreaInfo) <-chan error {
	return t.scheduler.Schedule(func(ctx context.Context) error {
		if info.RunID == "" {
			open, err := t.store.OpenRun(ctx)
			if err != nil {
				return err
			}
			if open == nil {
				return fmt.Errorf("no open run for area info")
			}
			info.RunID = open.ID
			if info.Name == "" {
				info.Name = t.runArea
			}
		}
		return t.store.UpsertAreaInfo(ctx, info)
	})
}

// AFK reports the process-wide AFK flag. Read-only; useful for pausing
// the API pollers.
func (t *Tracker) AFK() bool { return t.afk }

func (t *Tracker) process(ctx context.Context, ev event.Event) error {
	switch ev.Type {
	case event.TypeAFKToggle:
		t.afk = ev.Text == "on"
		return nil

	case event.TypeInstanceServer:
		if ev.Text == t.instanceServer {
			// The client logs the instance line twice per join; the
			// second occurrence means same instance, not a new one.
			t.sawServerAgain = true
		} else {
			t.instanceServer = ev.Text
			t.sawServerAgain = false
		}
		return nil

	case event.TypeEndSignal:
		_, err := t.tryProcess(ctx, &ev)
		return err
	}

	ev.Server = t.instanceServer
	if ev.Type.Persisted() {
		if err := t.store.InsertEvent(ctx, ev); err != nil {
			return err
		}
	}

	switch ev.Type {
	case event.TypeGeneratedArea:
		return t.handleGeneratedArea(ctx, ev)
	case event.TypeEntered:
		return t.handleEntered(ctx, ev)
	}
	return nil
}

func (t *Tracker) handleGeneratedArea(ctx context.Context, ev event.Event) error {
	gen, err := event.DecodeAreaGenerated(ev.Text)
	if err != nil {
		return fmt.Errorf("decode generated area: %w", err)
	}
	t.latestGen = &gen

	// Generation of the next area is a boundary signal for the
	// previous run. The run row itself materializes at the entered
	// event that follows, whose timestamp is the true first_event.
	_, err = t.tryProcess(ctx, &ev)
	return err
}

func (t *Tracker) handleEntered(ctx context.Context, ev event.Event) error {
	next := ev.Text

	if _, err := t.tryProcess(ctx, &ev); err != nil {
		return err
	}

	defer func() { t.currentArea = next }()

	open, err := t.store.OpenRun(ctx)
	if err != nil {
		return err
	}
	if open != nil {
		return nil
	}
	if area.NeverStartsRun(next) {
		return nil
	}
	// Re-entering the instance of a run that is already closed must
	// not open a second run for it.
	if next == t.lastProcessedArea && t.instanceServer == t.lastProcessedServer {
		return nil
	}

	run := &storage.Run{FirstEvent: ev.Timestamp, LastEvent: ev.Timestamp}
	if err := t.store.InsertRun(ctx, run); err != nil {
		return err
	}

	info := storage.AreaInfo{RunID: run.ID, Name: next}
	if t.latestGen != nil {
		info.Level = t.latestGen.Level
	}
	if err := t.store.UpsertAreaInfo(ctx, info); err != nil {
		return err
	}

	t.runArea = next
	t.runServer = t.instanceServer
	t.logger.Info("run opened", "run", run.ID, "area", next, "server", t.instanceServer)
	return nil
}

// tryProcess attempts to finalize the open run. The boolean reports
// whether a run was actually processed; "nothing to do" outcomes are
// normal control flow, not errors.
func (t *Tracker) tryProcess(ctx context.Context, trigger *event.Event) (bool, error) {
	open, err := t.store.OpenRun(ctx)
	if err != nil {
		return false, err
	}
	if open == nil {
		return false, nil
	}

	triggerTime := time.Now()
	nextArea := ""
	if trigger != nil {
		triggerTime = trigger.Timestamp
		if trigger.Type == event.TypeEntered {
			nextArea = trigger.Text
		}
	}

	if t.suppressed(nextArea) {
		return false, nil
	}

	// Duplicate boundary signals for a run the engine already closed.
	if t.runArea == t.lastProcessedArea && t.runServer == t.lastProcessedServer && t.lastProcessedArea != "" {
		return false, nil
	}

	lastEvent, ok, err := t.lastTownVisit(ctx, open.FirstEvent, triggerTime)
	if err != nil {
		return false, err
	}
	if !ok {
		// No town visit since the run opened; the session is still
		// going somewhere else. Not an error.
		return false, nil
	}

	if err := t.finalize(ctx, open, lastEvent); err != nil {
		return false, err
	}
	return true, nil
}

// suppressed applies the "still in the same thing" guards.
func (t *Tracker) suppressed(nextArea string) bool {
	if nextArea == "" {
		return false
	}
	switch {
	case area.IsLabyrinth(t.currentArea) && area.IsLabyrinth(nextArea):
		return true
	case t.currentArea == area.AzuriteMine && nextArea == area.AzuriteMine:
		return true
	case t.currentArea == area.MemoryVoid && nextArea == area.MemoryVoid:
		return true
	case nextArea == t.runArea && t.instanceServer == t.runServer:
		// Same instance of the same area: intra-run traffic.
		return true
	}
	return false
}

// lastTownVisit finds the latest town/hideout enter event inside
// (firstEvent, until]; its timestamp is the candidate last_event,
// because players linger in town before the terminating signal fires.
func (t *Tracker) lastTownVisit(ctx context.Context, firstEvent, until time.Time) (time.Time, bool, error) {
	events, err := t.store.EventsBetween(ctx, firstEvent, until)
	if err != nil {
		return time.Time{}, false, err
	}
	var visit time.Time
	for _, ev := range events {
		if ev.Type != event.TypeEntered {
			continue
		}
		if !ev.Timestamp.After(firstEvent) {
			continue
		}
		if area.IsTown(ev.Text) || area.IsHideout(ev.Text) {
			visit = ev.Timestamp
		}
	}
	if visit.IsZero() {
		return time.Time{}, false, nil
	}
	return visit, true, nil
}

// finalize enriches and closes the run. Each enrichment step degrades
// independently: a collaborator failure costs that statistic, never the
// run itself.
func (t *Tracker) finalize(ctx context.Context, open *storage.Run, lastEvent time.Time) error {
	if lastEvent.Before(open.FirstEvent) {
		lastEvent = open.FirstEvent
	}

	events, err := t.store.EventsBetween(ctx, open.FirstEvent, lastEvent)
	if err != nil {
		return fmt.Errorf("load run events: %w", err)
	}

	// 1. Area info: OCR may never have reported; degrade to the name
	// taken from the log at open time.
	areaName := t.runArea
	ai, err := t.store.GetAreaInfo(ctx, open.ID)
	switch {
	case err == nil:
		if ai.Name != "" {
			areaName = ai.Name
		}
		open.IIQ, open.IIR, open.PackSize = ai.IIQ, ai.IIR, ai.PackSize
	case errors.Is(err, storage.ErrNotFound):
		// keep defaults
	default:
		t.logger.Warn("area info lookup failed", "run", open.ID, "error", err)
	}

	// 2. XP: prefer a local sample inside the window, else the remote
	// API. The diff baseline is the previous run's recorded total.
	xpTotal := t.resolveXP(ctx, open.FirstEvent, lastEvent)
	var xpDiff int64
	if xpTotal != nil {
		open.XP = xpTotal
		prev, err := t.store.LatestCompletedRun(ctx)
		if err != nil {
			t.logger.Warn("xp baseline lookup failed", "run", open.ID, "error", err)
		} else if prev != nil && prev.XP != nil {
			xpDiff = *xpTotal - *prev.XP
		} else {
			// First-ever recorded run: the raw sampled value.
			xpDiff = *xpTotal
		}
	}

	// 3. Loot value via the pricing collaborator.
	gained := 0.0
	if t.valuer != nil {
		gained, err = t.valuer.Value(ctx, events, open.FirstEvent, lastEvent)
		if err != nil {
			t.logger.Warn("loot valuation degraded to zero", "run", open.ID, "error", err)
			gained = 0
		}
	}

	// 4. Kill count from incubator-progress deltas; absence of data is
	// "unknown", which is not zero.
	kills := t.resolveKills(ctx, open.FirstEvent, lastEvent)
	if kills != KillsUnknown {
		k := kills
		open.Kills = &k
	}

	// 5. Narrative extraction over the full window.
	items, err := t.store.ItemsBetween(ctx, open.FirstEvent, lastEvent)
	if err != nil {
		t.logger.Warn("item window lookup failed", "run", open.ID, "error", err)
		items = nil
	}
	info := t.extractor.Extract(events, items)

	// 6. A run with nothing to show is kept for history but excluded
	// from aggregates and never notified.
	if gained == 0 && kills <= 0 && xpDiff == 0 {
		info.Ignored = true
	}

	infoJSON, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("encode run info: %w", err)
	}

	// 7. Persist exactly once.
	open.LastEvent = lastEvent
	open.Info = infoJSON
	open.Completed = true
	if err := t.store.UpdateRun(ctx, open); err != nil {
		return fmt.Errorf("finalize run: %w", err)
	}

	t.lastProcessedArea = t.runArea
	t.lastProcessedServer = t.runServer

	if info.Ignored {
		t.logger.Info("run ignored", "run", open.ID, "area", areaName)
		return nil
	}

	t.logger.Info("run processed", "run", open.ID, "area", areaName,
		"gained", gained, "xp", xpDiff, "kills", kills)

	if t.notifier != nil {
		n := Notification{
			Name:       areaName,
			ID:         open.ID,
			Gained:     gained,
			XP:         xpDiff,
			Kills:      kills,
			FirstEvent: open.FirstEvent,
			LastEvent:  open.LastEvent,
		}
		if err := t.notifier.RunProcessed(ctx, n); err != nil {
			t.logger.Warn("run notification failed", "run", open.ID, "error", err)
		}
	}
	return nil
}

// resolveXP returns the character's total XP at run end, or nil when
// neither a local sample nor the remote API produced one.
func (t *Tracker) resolveXP(ctx context.Context, from, to time.Time) *int64 {
	samples, err := t.store.XPSamplesBetween(ctx, from, to)
	if err != nil {
		t.logger.Warn("xp sample lookup failed", "error", err)
	} else if len(samples) > 0 {
		xp := samples[len(samples)-1].XP
		return &xp
	}
	if t.xp == nil {
		return nil
	}
	xp, err := t.xp.GetExperience(ctx)
	if err != nil {
		t.logger.Warn("remote xp lookup failed", "error", err)
		return nil
	}
	return &xp
}

// resolveKills diffs the monotonic incubator counter across the window,
// clipped to >= 0. Fewer than two samples means unknown.
func (t *Tracker) resolveKills(ctx context.Context, from, to time.Time) int {
	samples, err := t.store.IncubatorSamplesBetween(ctx, from, to)
	if err != nil {
		t.logger.Warn("incubator sample lookup failed", "error", err)
		return KillsUnknown
	}
	if len(samples) < 2 {
		return KillsUnknown
	}
	delta := samples[len(samples)-1].Progress - samples[0].Progress
	if delta < 0 {
		delta = 0
	}
	return delta
}
