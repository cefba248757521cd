// Package store provides the persistent play-count store and the in-memory
// managed-track set backing the shuffle reconciler.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"shufflerd/internal/core"
)

const schema = `
CREATE TABLE IF NOT EXISTS play_counts (
	context_id  TEXT NOT NULL,
	track_id    TEXT NOT NULL,
	play_count  INTEGER NOT NULL DEFAULT 0,
	last_played TIMESTAMP,
	PRIMARY KEY (context_id, track_id)
);
CREATE INDEX IF NOT EXISTS idx_play_counts_order
	ON play_counts (context_id, play_count, last_played);
`

// PlayCountStore is a SQLite-backed implementation of core.PlayCountStore.
type PlayCountStore struct {
	db *sql.DB
}

// Open opens (and if necessary creates) the play-count database at path.
// The path ":memory:" yields an in-memory database.
func Open(path string) (*PlayCountStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// The daemon is the only writer; a single connection sidesteps
	// SQLITE_BUSY under concurrent upserts.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &PlayCountStore{db: db}, nil
}

func (s *PlayCountStore) Close() error {
	return s.db.Close()
}

// Get returns the play count for a (context, track) pair, 0 if no record exists.
func (s *PlayCountStore) Get(ctx context.Context, contextID, trackID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT play_count FROM play_counts WHERE context_id = ? AND track_id = ?`,
		contextID, trackID).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, &core.StoreError{Op: "get", Err: err}
	}
	return count, nil
}

// Increment atomically bumps the play count and stamps last_played, creating
// the record at count 1 if absent. Returns the new count.
func (s *PlayCountStore) Increment(ctx context.Context, contextID, trackID string) (int, error) {
	now := time.Now().UTC()

	var count int
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO play_counts (context_id, track_id, play_count, last_played)
		VALUES (?, ?, 1, ?)
		ON CONFLICT (context_id, track_id)
		DO UPDATE SET play_count = play_count + 1, last_played = excluded.last_played
		RETURNING play_count`,
		contextID, trackID, now).Scan(&count)
	if err != nil {
		return 0, &core.StoreError{Op: "increment", Err: err}
	}

	return count, nil
}

// ListByContext returns every record of a context ordered least-played first:
// play_count ascending, then last_played ascending with NULLs first.
func (s *PlayCountStore) ListByContext(ctx context.Context, contextID string) ([]core.PlayCountRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT context_id, track_id, play_count, last_played
		FROM play_counts
		WHERE context_id = ?
		ORDER BY play_count ASC, last_played IS NOT NULL, last_played ASC`,
		contextID)
	if err != nil {
		return nil, &core.StoreError{Op: "list", Err: err}
	}
	defer rows.Close()

	return scanRecords(rows, "list")
}

// LeastPlayed returns all records of a context sharing the minimum play count.
func (s *PlayCountStore) LeastPlayed(ctx context.Context, contextID string) ([]core.PlayCountRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT context_id, track_id, play_count, last_played
		FROM play_counts
		WHERE context_id = ?
		  AND play_count = (SELECT MIN(play_count) FROM play_counts WHERE context_id = ?)`,
		contextID, contextID)
	if err != nil {
		return nil, &core.StoreError{Op: "least-played", Err: err}
	}
	defer rows.Close()

	return scanRecords(rows, "least-played")
}

// RecentlyTouched returns up to limit records ordered by last_played
// descending. Records never played are excluded.
func (s *PlayCountStore) RecentlyTouched(ctx context.Context, contextID string, limit int) ([]core.PlayCountRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT context_id, track_id, play_count, last_played
		FROM play_counts
		WHERE context_id = ? AND last_played IS NOT NULL
		ORDER BY last_played DESC
		LIMIT ?`,
		contextID, limit)
	if err != nil {
		return nil, &core.StoreError{Op: "recently-touched", Err: err}
	}
	defer rows.Close()

	return scanRecords(rows, "recently-touched")
}

// ResetAll zeroes every play count and clears every timestamp across all
// contexts. Returns the number of rows affected.
func (s *PlayCountStore) ResetAll(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE play_counts SET play_count = 0, last_played = NULL`)
	if err != nil {
		return 0, &core.StoreError{Op: "reset", Err: err}
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, &core.StoreError{Op: "reset", Err: err}
	}
	return affected, nil
}

// Sync inserts a count-0 record for every track not already present for the
// context, leaving existing rows untouched. The inserts run in a single
// transaction: on any failure none are retained. Returns rows inserted.
func (s *PlayCountStore) Sync(ctx context.Context, contextID string, trackIDs []string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, &core.StoreError{Op: "sync", Err: err}
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO play_counts (context_id, track_id, play_count, last_played)
		VALUES (?, ?, 0, NULL)`)
	if err != nil {
		return 0, &core.StoreError{Op: "sync", Err: err}
	}
	defer stmt.Close()

	inserted := 0
	for _, trackID := range trackIDs {
		if trackID == "" {
			continue
		}
		res, err := stmt.ExecContext(ctx, contextID, trackID)
		if err != nil {
			return 0, &core.StoreError{Op: "sync", Err: err}
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, &core.StoreError{Op: "sync", Err: err}
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, &core.StoreError{Op: "sync", Err: err}
	}

	return inserted, nil
}

func scanRecords(rows *sql.Rows, op string) ([]core.PlayCountRecord, error) {
	var records []core.PlayCountRecord

	for rows.Next() {
		var (
			rec        core.PlayCountRecord
			lastPlayed sql.NullTime
		)
		if err := rows.Scan(&rec.ContextID, &rec.TrackID, &rec.PlayCount, &lastPlayed); err != nil {
			return nil, &core.StoreError{Op: op, Err: err}
		}
		if lastPlayed.Valid {
			t := lastPlayed.Time
			rec.LastPlayed = &t
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, &core.StoreError{Op: op, Err: err}
	}

	return records, nil
}
