package main

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/plsync/internal/shared"
	"github.com/desertthunder/plsync/internal/tasks"
	"github.com/desertthunder/plsync/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive sync dashboard.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	logPath := cmd.String("log-file")
	if r.config.Logging.File != "" {
		logPath = r.config.Logging.File
	}
	fileLogger, err := shared.NewFileLogger(logPath)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	shared.SetLogLevel(fileLogger, shared.ParseLogLevel(r.config.Logging.Level))
	r.SetLogger(fileLogger)

	r.progress = make(chan tasks.ProgressUpdate, 64)
	if err := r.open(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cmd.Bool("schedule") {
		if err := r.manager.Start(ctx, r.config.Sync.PollInterval()); err != nil {
			return err
		}
		defer func() {
			cancel()
			stopCtx, stopCancel := context.WithTimeout(context.Background(), stopTimeout)
			defer stopCancel()
			if err := r.manager.Stop(stopCtx); err != nil && !errors.Is(err, shared.ErrNotRunning) {
				r.logger.Warn("scheduler did not stop cleanly", "error", err)
			}
		}()
	}

	model := ui.NewModel(ctx, r.manager, r.progress)
	p := tea.NewProgram(model, tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
