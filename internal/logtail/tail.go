// Package logtail follows the game client's log file and yields raw
// timestamped lines to the pipeline.
package logtail

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/exiletools/runtracker/internal/event"
)

// linePattern splits the fixed client-log prefix from the content:
//
//	2023/01/05 20:10:15 123456789 ac9 [INFO Client 1234] : You have entered ...
var linePattern = regexp.MustCompile(`^(\d{4}/\d{2}/\d{2} \d{2}:\d{2}:\d{2}) \S+ \S+ \[[^\]]+\] (.*)$`)

const logTimeFormat = "2006/01/02 15:04:05"

// Tailer polls the client log for appended lines. It survives the
// client truncating or rotating the file by reopening from the start.
type Tailer struct {
	logger   *slog.Logger
	path     string
	interval time.Duration
	// fromStart reads the whole file instead of seeking to EOF; used
	// by the offline replay command.
	fromStart bool
}

func New(logger *slog.Logger, path string) *Tailer {
	return &Tailer{logger: logger, path: path, interval: 500 * time.Millisecond}
}

// NewReplay reads the file once from the beginning and stops at EOF.
func NewReplay(logger *slog.Logger, path string) *Tailer {
	return &Tailer{logger: logger, path: path, fromStart: true}
}

// Run reads lines and passes each parsed Raw to emit until ctx is done
// (or EOF in replay mode). emit runs on the tailer goroutine; it is
// expected to hand off to the scheduler and return quickly.
func (t *Tailer) Run(ctx context.Context, emit func(event.Raw)) error {
	f, err := os.Open(t.path)
	if err != nil {
		return fmt.Errorf("open client log: %w", err)
	}
	defer f.Close()

	if !t.fromStart {
		if _, err := f.Seek(0, io.SeekEnd); err != nil {
			return fmt.Errorf("seek client log: %w", err)
		}
	}

	r := bufio.NewReader(f)
	var partial strings.Builder

	for {
		line, err := r.ReadString('\n')
		if err == nil {
			if partial.Len() > 0 {
				line = partial.String() + line
				partial.Reset()
			}
			t.handleLine(strings.TrimRight(line, "\r\n"), emit)
			continue
		}
		if err != io.EOF {
			return fmt.Errorf("read client log: %w", err)
		}

		// Keep an incomplete trailing line until the client finishes
		// writing it.
		partial.WriteString(line)

		if t.fromStart {
			if partial.Len() > 0 {
				t.handleLine(strings.TrimRight(partial.String(), "\r\n"), emit)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(t.interval):
		}

		if err := t.maybeReopen(&f, &r); err != nil {
			return err
		}
	}
}

// maybeReopen restarts from the top when the file shrank (rotation or
// in-place truncation by the client).
func (t *Tailer) maybeReopen(f **os.File, r **bufio.Reader) error {
	pos, err := (*f).Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	info, err := os.Stat(t.path)
	if err != nil {
		// The file can briefly vanish during rotation.
		t.logger.Warn("client log stat failed", "error", err)
		return nil
	}
	if info.Size() >= pos {
		return nil
	}
	t.logger.Info("client log truncated, reopening")
	nf, err := os.Open(t.path)
	if err != nil {
		return fmt.Errorf("reopen client log: %w", err)
	}
	(*f).Close()
	*f = nf
	*r = bufio.NewReader(nf)
	return nil
}

func (t *Tailer) handleLine(line string, emit func(event.Raw)) {
	if line == "" {
		return
	}
	raw, ok := t.parseLine(line)
	if !ok {
		t.logger.Debug("line failed timestamp/content split", "line", line)
		return
	}
	emit(raw)
}

func (t *Tailer) parseLine(line string) (event.Raw, bool) {
	m := linePattern.FindStringSubmatch(line)
	if m == nil {
		return event.Raw{}, false
	}
	ts, err := time.ParseInLocation(logTimeFormat, m[1], time.Local)
	if err != nil {
		return event.Raw{}, false
	}
	return event.Raw{Timestamp: ts, Content: m[2]}, true
}
