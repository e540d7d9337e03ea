package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	_ "modernc.org/sqlite"

	"github.com/exiletools/runtracker/internal/event"
	"github.com/exiletools/runtracker/internal/storage/migrations"
)

// SQLite implements Store on a local single-file database.
type SQLite struct {
	db *sql.DB
}

var _ Store = (*SQLite)(nil)

// Open opens (creating if needed) the database at path and applies
// embedded migrations.
func Open(path string) (*SQLite, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("database path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(db, migrations.FS, cleanPath); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func encodeTime(t time.Time) string {
	return t.Format(TimeFormat)
}

func decodeTime(s string) (time.Time, error) {
	return time.ParseInLocation(TimeFormat, s, time.Local)
}

func (s *SQLite) InsertEvent(ctx context.Context, e event.Event) error {
	if !e.Type.Persisted() {
		return fmt.Errorf("event type %s is not persistable", e.Type)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (event_type, event_text, timestamp, server) VALUES (?, ?, ?, ?)`,
		string(e.Type), e.Text, encodeTime(e.Timestamp), e.Server)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// EventsBetween returns events with from <= timestamp <= to, ordered by
// timestamp with id as tiebreaker.
func (s *SQLite) EventsBetween(ctx context.Context, from, to time.Time) ([]StoredEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, event_type, event_text, timestamp, server
		   FROM events
		  WHERE timestamp BETWEEN ? AND ?
		  ORDER BY timestamp, id`,
		encodeTime(from), encodeTime(to))
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []StoredEvent
	for rows.Next() {
		var e StoredEvent
		var typ, ts string
		if err := rows.Scan(&e.ID, &typ, &e.Text, &ts, &e.Server); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Type = event.Type(typ)
		if e.Timestamp, err = decodeTime(ts); err != nil {
			return nil, fmt.Errorf("decode event timestamp: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// InsertRun creates a run row, assigning a nanoid when the id is empty.
// At most one incomplete run may exist; inserting a second one fails.
func (s *SQLite) InsertRun(ctx context.Context, run *Run) error {
	if run.ID == "" {
		id, err := gonanoid.New()
		if err != nil {
			return fmt.Errorf("generate run id: %w", err)
		}
		run.ID = id
	}
	if !run.Completed {
		open, err := s.OpenRun(ctx)
		if err != nil {
			return err
		}
		if open != nil {
			return fmt.Errorf("insert run: run %s is still open", open.ID)
		}
	}
	info := run.Info
	if len(info) == 0 {
		info = []byte("{}")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, first_event, last_event, iiq, iir, pack_size, xp, kills, run_info, completed)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, encodeTime(run.FirstEvent), encodeTime(run.LastEvent),
		run.IIQ, run.IIR, run.PackSize, run.XP, run.Kills, string(info), run.Completed)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (s *SQLite) UpdateRun(ctx context.Context, run *Run) error {
	info := run.Info
	if len(info) == 0 {
		info = []byte("{}")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET first_event = ?, last_event = ?, iiq = ?, iir = ?, pack_size = ?,
		        xp = ?, kills = ?, run_info = ?, completed = ?
		  WHERE id = ?`,
		encodeTime(run.FirstEvent), encodeTime(run.LastEvent),
		run.IIQ, run.IIR, run.PackSize, run.XP, run.Kills, string(info), run.Completed, run.ID)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// OpenRun returns the single incomplete run, or nil when none exists.
func (s *SQLite) OpenRun(ctx context.Context) (*Run, error) {
	run, err := s.scanRun(s.db.QueryRowContext(ctx,
		`SELECT id, first_event, last_event, iiq, iir, pack_size, xp, kills, run_info, completed
		   FROM runs WHERE completed = 0 LIMIT 1`))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return run, err
}

func (s *SQLite) GetRun(ctx context.Context, id string) (*Run, error) {
	run, err := s.scanRun(s.db.QueryRowContext(ctx,
		`SELECT id, first_event, last_event, iiq, iir, pack_size, xp, kills, run_info, completed
		   FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return run, err
}

// LatestCompletedRun is the most recently finished run by last_event
// timestamp, used for the XP baseline. Nil when history is empty.
func (s *SQLite) LatestCompletedRun(ctx context.Context) (*Run, error) {
	run, err := s.scanRun(s.db.QueryRowContext(ctx,
		`SELECT id, first_event, last_event, iiq, iir, pack_size, xp, kills, run_info, completed
		   FROM runs WHERE completed = 1
		  ORDER BY last_event DESC, id DESC LIMIT 1`))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return run, err
}

func (s *SQLite) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, first_event, last_event, iiq, iir, pack_size, xp, kills, run_info, completed
		   FROM runs WHERE completed = 1
		  ORDER BY first_event DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []*Run
	for rows.Next() {
		run, err := s.scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *SQLite) scanRun(row rowScanner) (*Run, error) {
	var run Run
	var first, last, info string
	if err := row.Scan(&run.ID, &first, &last, &run.IIQ, &run.IIR, &run.PackSize,
		&run.XP, &run.Kills, &info, &run.Completed); err != nil {
		return nil, err
	}
	var err error
	if run.FirstEvent, err = decodeTime(first); err != nil {
		return nil, fmt.Errorf("decode first_event: %w", err)
	}
	if run.LastEvent, err = decodeTime(last); err != nil {
		return nil, fmt.Errorf("decode last_event: %w", err)
	}
	run.Info = []byte(info)
	return &run, nil
}

func (s *SQLite) UpsertAreaInfo(ctx context.Context, info AreaInfo) error {
	if info.RunID == "" {
		return fmt.Errorf("upsert area info: run id is required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO area_info (run_id, name, level, depth, iiq, iir, pack_size)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(run_id) DO UPDATE SET
		   name = excluded.name, level = excluded.level, depth = excluded.depth,
		   iiq = excluded.iiq, iir = excluded.iir, pack_size = excluded.pack_size`,
		info.RunID, info.Name, info.Level, info.Depth, info.IIQ, info.IIR, info.PackSize)
	if err != nil {
		return fmt.Errorf("upsert area info: %w", err)
	}
	return nil
}

func (s *SQLite) GetAreaInfo(ctx context.Context, runID string) (*AreaInfo, error) {
	var info AreaInfo
	err := s.db.QueryRowContext(ctx,
		`SELECT run_id, name, level, depth, iiq, iir, pack_size FROM area_info WHERE run_id = ?`,
		runID).Scan(&info.RunID, &info.Name, &info.Level, &info.Depth, &info.IIQ, &info.IIR, &info.PackSize)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get area info: %w", err)
	}
	return &info, nil
}

func (s *SQLite) InsertXPSample(ctx context.Context, sample XPSample) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO xp_samples (timestamp, xp) VALUES (?, ?)`,
		encodeTime(sample.Timestamp), sample.XP)
	if err != nil {
		return fmt.Errorf("insert xp sample: %w", err)
	}
	return nil
}

func (s *SQLite) XPSamplesBetween(ctx context.Context, from, to time.Time) ([]XPSample, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT timestamp, xp FROM xp_samples WHERE timestamp BETWEEN ? AND ? ORDER BY timestamp`,
		encodeTime(from), encodeTime(to))
	if err != nil {
		return nil, fmt.Errorf("query xp samples: %w", err)
	}
	defer rows.Close()

	var out []XPSample
	for rows.Next() {
		var sample XPSample
		var ts string
		if err := rows.Scan(&ts, &sample.XP); err != nil {
			return nil, fmt.Errorf("scan xp sample: %w", err)
		}
		if sample.Timestamp, err = decodeTime(ts); err != nil {
			return nil, fmt.Errorf("decode xp sample timestamp: %w", err)
		}
		out = append(out, sample)
	}
	return out, rows.Err()
}

func (s *SQLite) InsertIncubatorSample(ctx context.Context, sample IncubatorSample) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO incubator_samples (timestamp, progress) VALUES (?, ?)`,
		encodeTime(sample.Timestamp), sample.Progress)
	if err != nil {
		return fmt.Errorf("insert incubator sample: %w", err)
	}
	return nil
}

func (s *SQLite) IncubatorSamplesBetween(ctx context.Context, from, to time.Time) ([]IncubatorSample, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT timestamp, progress FROM incubator_samples
		  WHERE timestamp BETWEEN ? AND ? ORDER BY timestamp`,
		encodeTime(from), encodeTime(to))
	if err != nil {
		return nil, fmt.Errorf("query incubator samples: %w", err)
	}
	defer rows.Close()

	var out []IncubatorSample
	for rows.Next() {
		var sample IncubatorSample
		var ts string
		if err := rows.Scan(&ts, &sample.Progress); err != nil {
			return nil, fmt.Errorf("scan incubator sample: %w", err)
		}
		if sample.Timestamp, err = decodeTime(ts); err != nil {
			return nil, fmt.Errorf("decode incubator sample timestamp: %w", err)
		}
		out = append(out, sample)
	}
	return out, rows.Err()
}

func (s *SQLite) InsertItems(ctx context.Context, items []Item) error {
	if len(items) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("insert items: %w", err)
	}
	for _, it := range items {
		raw := it.Raw
		if len(raw) == 0 {
			raw = []byte("{}")
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO items (timestamp, name, type_line, rarity, stack_size, equipped, raw_data)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			encodeTime(it.Timestamp), it.Name, it.TypeLine, it.Rarity, it.StackSize, it.Equipped, string(raw)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert item %q: %w", it.Name, err)
		}
	}
	return tx.Commit()
}

func (s *SQLite) ItemsBetween(ctx context.Context, from, to time.Time) ([]Item, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, timestamp, name, type_line, rarity, stack_size, equipped, raw_data
		   FROM items WHERE timestamp BETWEEN ? AND ? ORDER BY timestamp, id`,
		encodeTime(from), encodeTime(to))
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		var it Item
		var ts, raw string
		if err := rows.Scan(&it.ID, &ts, &it.Name, &it.TypeLine, &it.Rarity, &it.StackSize, &it.Equipped, &raw); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		if it.Timestamp, err = decodeTime(ts); err != nil {
			return nil, fmt.Errorf("decode item timestamp: %w", err)
		}
		it.Raw = []byte(raw)
		out = append(out, it)
	}
	return out, rows.Err()
}

// LatestItemTimestamp returns the newest item timestamp, or the zero
// time when no items exist yet.
func (s *SQLite) LatestItemTimestamp(ctx context.Context) (time.Time, error) {
	var ts sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT MAX(timestamp) FROM items`).Scan(&ts)
	if err != nil {
		return time.Time{}, fmt.Errorf("latest item timestamp: %w", err)
	}
	if !ts.Valid || ts.String == "" {
		return time.Time{}, nil
	}
	return decodeTime(ts.String)
}
