package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"

	"chattysync/internal/chatty"
	"chattysync/pkg/migrations"
)

//go:embed schema.sql
var schema string

// Archive is an append-only sqlite table of every published event. Unlike
// the event log it is not bounded.
type Archive struct {
	db *sql.DB
}

func OpenArchive(path string) (Archive, error) {
	db, err := migrations.OpenAndMigrateDB(schema, path)
	if err != nil {
		return Archive{}, fmt.Errorf("open archive: %w", err)
	}
	return Archive{db: db}, nil
}

func (a Archive) Close() error {
	return a.db.Close()
}

// Append stores events, events whose id is already archived are skipped.
func (a Archive) Append(ctx context.Context, events []chatty.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("archive append: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(
		ctx,
		"insert or ignore into event(id, date, type, payload) values (?, ?, ?, ?)",
	)
	if err != nil {
		return fmt.Errorf("archive append: %w", err)
	}
	defer stmt.Close()

	for _, e := range events {
		payload, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("archive append: event %d: %w", e.ID, err)
		}
		_, err = stmt.ExecContext(ctx, e.ID, e.Date.UnixMilli(), string(e.Type), string(payload))
		if err != nil {
			return fmt.Errorf("archive append: event %d: %w", e.ID, err)
		}
	}
	return tx.Commit()
}

// Range returns up to limit archived events with an id greater than
// afterID, oldest first.
func (a Archive) Range(ctx context.Context, afterID int64, limit int) ([]chatty.Event, error) {
	rows, err := a.db.QueryContext(
		ctx,
		"select payload from event where id > ? order by id asc limit ?",
		afterID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("archive range: %w", err)
	}
	defer rows.Close()

	var out []chatty.Event
	for rows.Next() {
		var payload string
		err = rows.Scan(&payload)
		if err != nil {
			return nil, fmt.Errorf("archive range: %w", err)
		}
		var e chatty.Event
		err = json.Unmarshal([]byte(payload), &e)
		if err != nil {
			return nil, fmt.Errorf("archive range: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// LastID is the id of the newest archived event, 0 when empty.
func (a Archive) LastID(ctx context.Context) (int64, error) {
	var id sql.NullInt64
	err := a.db.QueryRowContext(ctx, "select max(id) from event").Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("archive last id: %w", err)
	}
	return id.Int64, nil
}
