package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/crowdq/internal/formatter"
	"github.com/desertthunder/crowdq/internal/repositories"
	"github.com/urfave/cli/v3"
)

// loadExport reads the saved queue together with the time it was saved.
func (r *Runner) loadExport(ctx context.Context, store repositories.SnapshotStore) (*formatter.QueueExport, error) {
	entries, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	export := &formatter.QueueExport{Entries: entries}

	history, err := store.History(ctx, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot history: %w", err)
	}
	if len(history) > 0 {
		export.SavedAt = history[0].SavedAt
	}
	return export, nil
}

// QueueShow prints the saved queue.
func (r *Runner) QueueShow(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	store, err := repositories.Open(ctx, r.config.Database)
	if err != nil {
		return err
	}
	defer store.Close()

	export, err := r.loadExport(ctx, store)
	if err != nil {
		return err
	}

	if format == formatter.Text {
		r.writePlainHeader("Saved queue")
	}
	return formatter.Write(r.output, export, format)
}

// QueueHistory lists recent snapshot saves.
func (r *Runner) QueueHistory(ctx context.Context, cmd *cli.Command) error {
	store, err := repositories.Open(ctx, r.config.Database)
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.History(ctx, int(cmd.Int("limit")))
	if err != nil {
		return fmt.Errorf("failed to load snapshot history: %w", err)
	}

	history := make([]formatter.HistoryEntry, len(records))
	for i, rec := range records {
		history[i] = formatter.HistoryEntry{ID: rec.ID, Entries: rec.Entries, SavedAt: rec.SavedAt}
	}
	return formatter.WriteHistory(r.output, history)
}

// QueueExport writes the saved queue to a file.
func (r *Runner) QueueExport(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	store, err := repositories.Open(ctx, r.config.Database)
	if err != nil {
		return err
	}
	defer store.Close()

	export, err := r.loadExport(ctx, store)
	if err != nil {
		return err
	}

	path, err := formatter.WriteFile(export, format, cmd.String("output"))
	if err != nil {
		return err
	}

	r.logger.Info("queue exported", "path", path, "tracks", len(export.Entries))
	r.writePlain("✓ Exported %d tracks to %s\n", len(export.Entries), path)
	return nil
}
