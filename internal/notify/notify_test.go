package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/exiletools/runtracker/internal/tracker"
)

type recordSink struct {
	got  int
	fail bool
}

func (s *recordSink) RunProcessed(ctx context.Context, n tracker.Notification) error {
	s.got++
	if s.fail {
		return errors.New("sink down")
	}
	return nil
}

func TestManagerFanOutSurvivesSinkFailure(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	bad := &recordSink{fail: true}
	good := &recordSink{}
	m := NewManager(logger, bad, good)

	if err := m.RunProcessed(context.Background(), tracker.Notification{Name: "Crimson Temple"}); err != nil {
		t.Fatalf("run processed: %v", err)
	}
	if bad.got != 1 || good.got != 1 {
		t.Fatalf("deliveries = bad %d, good %d, want 1/1", bad.got, good.got)
	}
}

func TestFormatRun(t *testing.T) {
	start := time.Date(2026, 3, 1, 20, 0, 0, 0, time.Local)
	n := tracker.Notification{
		Name:       "Crimson Temple",
		Gained:     42.5,
		XP:         12345,
		Kills:      187,
		FirstEvent: start,
		LastEvent:  start.Add(4*time.Minute + 7*time.Second),
	}

	got := FormatRun(n)
	want := "Crimson Temple finished in 4m07s | 42.5c | +12345 XP | 187 kills"
	if got != want {
		t.Fatalf("formatted = %q, want %q", got, want)
	}
}

func TestFormatRunOmitsUnknowns(t *testing.T) {
	start := time.Date(2026, 3, 1, 20, 0, 0, 0, time.Local)
	n := tracker.Notification{
		Name:       "Cemetery",
		Kills:      tracker.KillsUnknown,
		FirstEvent: start,
		LastEvent:  start.Add(30 * time.Second),
	}

	got := FormatRun(n)
	if got != "Cemetery finished in 30s" {
		t.Fatalf("formatted = %q", got)
	}
	if strings.Contains(got, "kills") {
		t.Fatalf("unknown kills leaked into %q", got)
	}
}
