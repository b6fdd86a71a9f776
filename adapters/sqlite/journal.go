package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/index-py/index-cli/domain/gunicorn"
	"github.com/index-py/index-cli/ports"
)

// Journal implements ports.Journal using SQLite.
type Journal struct {
	db  *DB
	now func() time.Time
}

// NewJournal creates a journal over an opened and migrated database.
func NewJournal(db *DB) *Journal {
	return &Journal{db: db, now: time.Now}
}

// Ensure interface compliance.
var _ ports.Journal = (*Journal)(nil)

// Record appends an entry, assigning an ID and timestamp when missing.
func (j *Journal) Record(ctx context.Context, e gunicorn.Entry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.At.IsZero() {
		e.At = j.now()
	}

	_, err := j.db.ExecContext(ctx, `
		INSERT INTO control_journal (id, action, pid, signals, detail, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.ID, string(e.Action), e.PID, e.SignalNames(), e.Detail, e.Error, e.At.UTC())
	if err != nil {
		return fmt.Errorf("record %s: %w", e.Action, err)
	}
	return nil
}

// Recent returns up to limit entries, newest first. A non-positive limit returns all.
func (j *Journal) Recent(ctx context.Context, limit int) ([]gunicorn.Entry, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := j.db.QueryContext(ctx, `
		SELECT id, action, pid, signals, detail, error, created_at
		FROM control_journal
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var entries []gunicorn.Entry
	for rows.Next() {
		var (
			e       gunicorn.Entry
			action  string
			signals string
		)
		if err := rows.Scan(&e.ID, &action, &e.PID, &signals, &e.Detail, &e.Error, &e.At); err != nil {
			return nil, fmt.Errorf("scan journal: %w", err)
		}
		e.Action = gunicorn.Action(action)
		if e.Signals, err = gunicorn.ParseSignalNames(signals); err != nil {
			return nil, fmt.Errorf("entry %s: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
