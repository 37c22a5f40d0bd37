// Package journal persists the engine's committed state changes to SQLite.
//
// The journal is append-only: one row per commit, never updated. It backs
// the /api/history endpoint and survives restarts, so the history of
// live/fallback transitions can be inspected after the fact.
package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/jpalmerr/sensorsync/internal/event"
	"github.com/jpalmerr/sensorsync/internal/reconcile"
	"github.com/jpalmerr/sensorsync/reading"
)

//go:embed schema.sql
var schemaSQL string

// MaxRecent caps the number of rows [Journal.Recent] returns.
const MaxRecent = 1000

// Journal is an append-only log of change events.
type Journal struct {
	db *sql.DB
}

// Open creates or opens the journal database at path.
//
// The database runs in WAL mode with a single connection, which matches the
// engine's single writer.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to journal: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Journal{db: db}, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// Close closes the database. Safe to call on a nil Journal.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Record appends e to the journal.
func (j *Journal) Record(ctx context.Context, e event.ChangeEvent) error {
	r, err := json.Marshal(e.Reading)
	if err != nil {
		return fmt.Errorf("encode reading: %w", err)
	}

	_, err = j.db.ExecContext(ctx, `
		INSERT INTO transitions (tick_id, version, decision, from_mode, to_mode, reading, committed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.TickID,
		int64(e.Version),
		string(e.Decision),
		string(e.From),
		string(e.To),
		string(r),
		e.CommittedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert transition: %w", err)
	}
	return nil
}

// Recent returns up to limit events, newest first.
//
// A non-positive limit or one above [MaxRecent] is clamped to MaxRecent.
func (j *Journal) Recent(ctx context.Context, limit int) ([]event.ChangeEvent, error) {
	if limit <= 0 || limit > MaxRecent {
		limit = MaxRecent
	}

	rows, err := j.db.QueryContext(ctx, `
		SELECT tick_id, version, decision, from_mode, to_mode, reading, committed_at
		FROM transitions
		ORDER BY seq DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close()

	events := make([]event.ChangeEvent, 0)
	for rows.Next() {
		var (
			e                       event.ChangeEvent
			version                 int64
			decision, from, to, raw string
			committedAt             string
		)
		if err := rows.Scan(&e.TickID, &version, &decision, &from, &to, &raw, &committedAt); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}

		var r reading.Reading
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			return nil, fmt.Errorf("decode reading of tick %s: %w", e.TickID, err)
		}
		at, err := time.Parse(time.RFC3339Nano, committedAt)
		if err != nil {
			return nil, fmt.Errorf("parse committed_at of tick %s: %w", e.TickID, err)
		}

		e.Version = uint64(version)
		e.Decision = reconcile.Decision(decision)
		e.From = reconcile.Mode(from)
		e.To = reconcile.Mode(to)
		e.Reading = r
		e.CommittedAt = at
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transitions: %w", err)
	}
	return events, nil
}

// Count returns the number of recorded events.
func (j *Journal) Count(ctx context.Context) (int, error) {
	var n int
	if err := j.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM transitions").Scan(&n); err != nil {
		return 0, fmt.Errorf("count transitions: %w", err)
	}
	return n, nil
}
