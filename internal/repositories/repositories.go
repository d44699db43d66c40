package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/crowdq/internal/models"
	"github.com/desertthunder/crowdq/internal/shared"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SnapshotStore persists the pending sequence.
type SnapshotStore interface {
	Save(ctx context.Context, entries []models.SnapshotEntry) error
	Load(ctx context.Context) ([]models.SnapshotEntry, error)
	History(ctx context.Context, limit int) ([]SnapshotRecord, error)
	Close() error
}

// SnapshotRecord is one row of the snapshot log.
type SnapshotRecord struct {
	ID      int64
	Entries int
	SavedAt time.Time
}

// Open returns the store selected by cfg: PostgreSQL for a postgres:// url, SQLite otherwise.
func Open(ctx context.Context, cfg shared.DatabaseConfig) (SnapshotStore, error) {
	if isPostgresURL(cfg.URL) {
		pool, err := pgxpool.New(ctx, cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to ping postgres: %w", err)
		}
		return NewPostgresSnapshotStore(ctx, pool)
	}

	db, err := shared.NewDatabase(cfg.Path)
	if err != nil {
		return nil, err
	}
	shared.ConfigureDatabase(db, cfg)

	if _, err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return NewSQLiteSnapshotStore(db), nil
}

func isPostgresURL(url string) bool {
	return strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://")
}

// encodedEntry holds the JSON columns of one entry.
type encodedEntry struct {
	candidates, likers, dislikers []byte
}

func encodeEntry(e models.SnapshotEntry) (encodedEntry, error) {
	var enc encodedEntry
	var err error

	if enc.candidates, err = json.Marshal(nonNil(e.Candidates)); err != nil {
		return enc, fmt.Errorf("failed to encode candidates: %w", err)
	}
	if enc.likers, err = json.Marshal(nonNil(e.Likers)); err != nil {
		return enc, fmt.Errorf("failed to encode likers: %w", err)
	}
	if enc.dislikers, err = json.Marshal(nonNil(e.Dislikers)); err != nil {
		return enc, fmt.Errorf("failed to encode dislikers: %w", err)
	}
	return enc, nil
}

func decodeEntry(e *models.SnapshotEntry, enc encodedEntry) error {
	if err := json.Unmarshal(enc.candidates, &e.Candidates); err != nil {
		return fmt.Errorf("failed to decode candidates: %w", err)
	}
	if err := json.Unmarshal(enc.likers, &e.Likers); err != nil {
		return fmt.Errorf("failed to decode likers: %w", err)
	}
	if err := json.Unmarshal(enc.dislikers, &e.Dislikers); err != nil {
		return fmt.Errorf("failed to decode dislikers: %w", err)
	}
	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
