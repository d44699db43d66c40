package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/desertthunder/crowdq/internal/models"
)

// SQLiteSnapshotStore implements [SnapshotStore] on a migrated SQLite database.
type SQLiteSnapshotStore struct {
	db *sql.DB
}

// NewSQLiteSnapshotStore creates a store on db. Migrations must already be applied.
func NewSQLiteSnapshotStore(db *sql.DB) *SQLiteSnapshotStore {
	return &SQLiteSnapshotStore{db: db}
}

// Save replaces the stored sequence with entries.
func (r *SQLiteSnapshotStore) Save(ctx context.Context, entries []models.SnapshotEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM queue_entries"); err != nil {
		return fmt.Errorf("failed to clear queue entries: %w", err)
	}

	query := `
		INSERT INTO queue_entries (entry_id, position, track_id, name, candidates, likers, dislikers)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	for _, e := range entries {
		enc, err := encodeEntry(e)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, query,
			e.EntryID,
			e.Position,
			e.TrackID,
			e.Name,
			string(enc.candidates),
			string(enc.likers),
			string(enc.dislikers),
		)
		if err != nil {
			return fmt.Errorf("failed to insert queue entry: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, "INSERT INTO snapshot_log (entries) VALUES (?)", len(entries)); err != nil {
		return fmt.Errorf("failed to log snapshot: %w", err)
	}

	return tx.Commit()
}

// Load returns the stored sequence ordered by position.
func (r *SQLiteSnapshotStore) Load(ctx context.Context) ([]models.SnapshotEntry, error) {
	query := `
		SELECT entry_id, position, track_id, name, candidates, likers, dislikers
		FROM queue_entries
		ORDER BY position ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query queue entries: %w", err)
	}
	defer rows.Close()

	return r.scanMany(rows)
}

// History returns the most recent snapshot log rows, newest first.
func (r *SQLiteSnapshotStore) History(ctx context.Context, limit int) ([]SnapshotRecord, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, entries, saved_at FROM snapshot_log ORDER BY id DESC LIMIT ?", max(limit, 1))
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot log: %w", err)
	}
	defer rows.Close()

	var records []SnapshotRecord
	for rows.Next() {
		var rec SnapshotRecord
		if err := rows.Scan(&rec.ID, &rec.Entries, &rec.SavedAt); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot log: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Close closes the underlying database.
func (r *SQLiteSnapshotStore) Close() error {
	return r.db.Close()
}

// scanOne scans a single queue entry row.
func (r *SQLiteSnapshotStore) scanOne(rows *sql.Rows) (models.SnapshotEntry, error) {
	var e models.SnapshotEntry
	var candidates, likers, dislikers string

	err := rows.Scan(&e.EntryID, &e.Position, &e.TrackID, &e.Name, &candidates, &likers, &dislikers)
	if err != nil {
		return e, fmt.Errorf("failed to scan queue entry: %w", err)
	}

	enc := encodedEntry{candidates: []byte(candidates), likers: []byte(likers), dislikers: []byte(dislikers)}
	if err := decodeEntry(&e, enc); err != nil {
		return e, err
	}
	return e, nil
}

// scanMany scans every row into queue entries.
func (r *SQLiteSnapshotStore) scanMany(rows *sql.Rows) ([]models.SnapshotEntry, error) {
	var entries []models.SnapshotEntry
	for rows.Next() {
		e, err := r.scanOne(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating queue entries: %w", err)
	}
	return entries, nil
}
