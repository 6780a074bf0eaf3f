package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/plsync/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup creates the config file from the embedded template when missing,
// then initializes the database and reports migration status.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")
	if configPath == "" {
		configPath = defaultConfigPath
	}

	if _, err := os.Stat(configPath); err != nil {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			return fmt.Errorf("failed to create config file: %w", err)
		}
		config, err := shared.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("failed to load created config: %w", err)
		}
		r.config = config
		r.configPath = configPath
		r.writePlain("✓ Created %s\n", configPath)
	}

	r.logger.Info("initializing database", "path", r.config.Database.Path)
	if err := r.open(ctx); err != nil {
		return err
	}

	statuses, err := shared.Migrations(ctx, r.db)
	if err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}

	r.writePlainHeader("Database: " + r.config.Database.Path)
	for _, status := range statuses {
		mark := "✗"
		if status.Applied {
			mark = "✓"
		}
		r.writePlain("%s %04d %s\n", mark, status.Version, status.Name)
	}

	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)
	return nil
}
