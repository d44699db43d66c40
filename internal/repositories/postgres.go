package repositories

import (
	"context"
	"fmt"

	"github.com/desertthunder/crowdq/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxDB is the subset of *pgxpool.Pool the Postgres store needs.
type PgxDB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresSnapshotStore implements [SnapshotStore] on PostgreSQL.
type PostgresSnapshotStore struct {
	db PgxDB
}

// NewPostgresSnapshotStore creates the schema if needed and returns a store on db.
func NewPostgresSnapshotStore(ctx context.Context, db PgxDB) (*PostgresSnapshotStore, error) {
	if err := autoMigrate(ctx, db); err != nil {
		return nil, err
	}
	return &PostgresSnapshotStore{db: db}, nil
}

func autoMigrate(ctx context.Context, db PgxDB) error {
	_, err := db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS queue_entries (
			entry_id TEXT PRIMARY KEY,
			position INTEGER NOT NULL,
			track_id TEXT NOT NULL,
			name TEXT NOT NULL,
			candidates JSONB NOT NULL DEFAULT '[]'::jsonb,
			likers JSONB NOT NULL DEFAULT '[]'::jsonb,
			dislikers JSONB NOT NULL DEFAULT '[]'::jsonb
		)
	`)
	if err != nil {
		return fmt.Errorf("migrate queue_entries: %w", err)
	}

	_, err = db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS snapshot_log (
			id BIGSERIAL PRIMARY KEY,
			entries INTEGER NOT NULL,
			saved_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return fmt.Errorf("migrate snapshot_log: %w", err)
	}
	return nil
}

// Save replaces the stored sequence with entries.
func (r *PostgresSnapshotStore) Save(ctx context.Context, entries []models.SnapshotEntry) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM queue_entries"); err != nil {
		return fmt.Errorf("failed to clear queue entries: %w", err)
	}

	for _, e := range entries {
		enc, err := encodeEntry(e)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO queue_entries (entry_id, position, track_id, name, candidates, likers, dislikers)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, e.EntryID, e.Position, e.TrackID, e.Name, string(enc.candidates), string(enc.likers), string(enc.dislikers))
		if err != nil {
			return fmt.Errorf("failed to insert queue entry: %w", err)
		}
	}

	if _, err := tx.Exec(ctx, "INSERT INTO snapshot_log (entries) VALUES ($1)", len(entries)); err != nil {
		return fmt.Errorf("failed to log snapshot: %w", err)
	}

	return tx.Commit(ctx)
}

// Load returns the stored sequence ordered by position.
func (r *PostgresSnapshotStore) Load(ctx context.Context) ([]models.SnapshotEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT entry_id, position, track_id, name, candidates, likers, dislikers
		FROM queue_entries
		ORDER BY position ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query queue entries: %w", err)
	}
	defer rows.Close()

	var entries []models.SnapshotEntry
	for rows.Next() {
		var e models.SnapshotEntry
		var enc encodedEntry
		if err := rows.Scan(&e.EntryID, &e.Position, &e.TrackID, &e.Name, &enc.candidates, &enc.likers, &enc.dislikers); err != nil {
			return nil, fmt.Errorf("failed to scan queue entry: %w", err)
		}
		if err := decodeEntry(&e, enc); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// History returns the most recent snapshot log rows, newest first.
func (r *PostgresSnapshotStore) History(ctx context.Context, limit int) ([]SnapshotRecord, error) {
	rows, err := r.db.Query(ctx, "SELECT id, entries, saved_at FROM snapshot_log ORDER BY id DESC LIMIT $1", max(limit, 1))
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

// Close closes the pool.
func (r *PostgresSnapshotStore) Close() error {
	r.db.Close()
	return nil
}
