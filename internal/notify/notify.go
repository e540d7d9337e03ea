// Package notify fans run-processed notifications out to the configured
// sinks: Discord, Telegram, and the websocket hub the shell listens on.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/exiletools/runtracker/internal/tracker"
)

// Manager multiplexes one notification to every configured sink. A sink
// failure is logged and does not stop the others.
type Manager struct {
	logger *slog.Logger
	sinks  []tracker.Notifier
}

func NewManager(logger *slog.Logger, sinks ...tracker.Notifier) *Manager {
	return &Manager{logger: logger, sinks: sinks}
}

func (m *Manager) Add(sink tracker.Notifier) {
	m.sinks = append(m.sinks, sink)
}

func (m *Manager) RunProcessed(ctx context.Context, n tracker.Notification) error {
	for _, sink := range m.sinks {
		if err := sink.RunProcessed(ctx, n); err != nil {
			m.logger.Warn("notification sink failed", "error", err)
		}
	}
	return nil
}

// FormatRun renders the one-line chat summary shared by the Discord and
// Telegram sinks.
func FormatRun(n tracker.Notification) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s finished in %s", n.Name, formatDuration(n.LastEvent.Sub(n.FirstEvent)))
	if n.Gained > 0 {
		fmt.Fprintf(&b, " | %.1fc", n.Gained)
	}
	if n.XP != 0 {
		fmt.Fprintf(&b, " | %+d XP", n.XP)
	}
	if n.Kills >= 0 {
		fmt.Fprintf(&b, " | %d kills", n.Kills)
	}
	return b.String()
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
}
