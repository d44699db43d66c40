package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/crowdq/internal/repositories"
	"github.com/desertthunder/crowdq/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup creates the config file when missing and initializes the snapshot store.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	if _, err := os.Stat(r.configPath); err != nil {
		r.logger.Info("config file not found, creating from template", "path", r.configPath)
		if err := shared.CreateConfigFile(r.configPath); err != nil {
			return fmt.Errorf("failed to create config file: %w", err)
		}

		config, err := shared.LoadConfig(r.configPath)
		if err != nil {
			return fmt.Errorf("failed to load created config: %w", err)
		}
		r.config = config
		r.logger.Info("config file created", "path", r.configPath)
	}

	target := r.config.Database.Path
	if r.config.Database.URL != "" {
		target = "postgres"
	}
	r.logger.Info("initializing snapshot store", "target", target)

	store, err := repositories.Open(ctx, r.config.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize snapshot store: %w", err)
	}
	defer store.Close()

	if err := os.MkdirAll(r.config.Resolver.DownloadDir, 0755); err != nil {
		return fmt.Errorf("failed to create download directory: %w", err)
	}

	r.logger.Infof("setup complete for database: %v", target)
	r.writePlain("✓ crowdq is ready\n")
	r.writePlain("Config: %s\n", r.configPath)
	r.writePlain("Run 'crowdq serve' to start the player and API\n")
	return nil
}
