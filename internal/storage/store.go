// Package storage persists events, runs and collaborator samples.
//
// Every range query is keyed by timestamp, never by autoincrement id:
// events arrive from multiple async producers (log tailer, OCR ingest)
// and may be inserted slightly out of temporal order, so insertion order
// carries no meaning. Ids only break ties between equal timestamps.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/exiletools/runtracker/internal/event"
)

// TimeFormat is the canonical TEXT encoding of timestamps in the
// database. Fixed-width, so lexicographic order is temporal order.
const TimeFormat = "2006-01-02 15:04:05"

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("storage: not found")

// StoredEvent is the persisted form of a classified event.
type StoredEvent struct {
	ID        int64
	Type      event.Type
	Text      string
	Timestamp time.Time
	Server    string
}

// Run is the central aggregate: one bounded session of play in a single
// qualifying area. XP holds the character's total experience at run end
// (gains are diffs between consecutive runs). Nil XP or Kills means
// unknown, which is distinct from zero.
type Run struct {
	ID         string
	FirstEvent time.Time
	LastEvent  time.Time
	IIQ        *int
	IIR        *int
	PackSize   *int
	XP         *int64
	Kills      *int
	Info       json.RawMessage
	Completed  bool
}

// AreaInfo is upserted by the OCR collaborator as data becomes
// available, possibly after the run already started.
type AreaInfo struct {
	RunID    string
	Name     string
	Level    int
	Depth    int
	IIQ      *int
	IIR      *int
	PackSize *int
}

// XPSample is one observation of the character's total experience.
type XPSample struct {
	Timestamp time.Time
	XP        int64
}

// IncubatorSample is one observation of total incubator progress, a
// monotonic kill counter maintained by the capture collaborator.
type IncubatorSample struct {
	Timestamp time.Time
	Progress  int
}

// Item is one drop reported by the inventory-diff collaborator.
type Item struct {
	ID        int64
	Timestamp time.Time
	Name      string
	TypeLine  string
	Rarity    string
	StackSize int
	Equipped  bool
	Raw       json.RawMessage
}

// Store is the persistence boundary of the engine.
type Store interface {
	InsertEvent(ctx context.Context, e event.Event) error
	EventsBetween(ctx context.Context, from, to time.Time) ([]StoredEvent, error)

	InsertRun(ctx context.Context, run *Run) error
	UpdateRun(ctx context.Context, run *Run) error
	OpenRun(ctx context.Context) (*Run, error)
	GetRun(ctx context.Context, id string) (*Run, error)
	LatestCompletedRun(ctx context.Context) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]*Run, error)

	UpsertAreaInfo(ctx context.Context, info AreaInfo) error
	GetAreaInfo(ctx context.Context, runID string) (*AreaInfo, error)

	InsertXPSample(ctx context.Context, s XPSample) error
	XPSamplesBetween(ctx context.Context, from, to time.Time) ([]XPSample, error)

	InsertIncubatorSample(ctx context.Context, s IncubatorSample) error
	IncubatorSamplesBetween(ctx context.Context, from, to time.Time) ([]IncubatorSample, error)

	InsertItems(ctx context.Context, items []Item) error
	ItemsBetween(ctx context.Context, from, to time.Time) ([]Item, error)
	LatestItemTimestamp(ctx context.Context) (time.Time, error)

	Close() error
}
