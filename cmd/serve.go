package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/desertthunder/plsync/internal/server"
	"github.com/desertthunder/plsync/internal/shared"
	"github.com/urfave/cli/v3"
)

const stopTimeout = 30 * time.Second

// Serve runs the HTTP API and, unless disabled, the polling scheduler until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(ctx); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.New(server.Options{
		Addr:    r.config.Server.Addr(),
		Manager: r.manager,
		Runs:    r.runs,
		Logger:  r.logger,
	})

	if !cmd.Bool("no-scheduler") {
		interval := r.config.Sync.PollInterval()
		if seconds := cmd.Int("interval"); seconds > 0 {
			interval = time.Duration(seconds) * time.Second
		}
		if err := r.manager.Start(ctx, interval); err != nil {
			return err
		}
	}

	r.writePlain("→ Serving on %s (Ctrl+C to stop)\n", r.config.Server.BaseURL())
	serveErr := srv.ListenAndServe(ctx)

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := r.manager.Stop(stopCtx); err != nil && !errors.Is(err, shared.ErrNotRunning) {
		r.logger.Warn("scheduler did not stop cleanly", "error", err)
	}

	if serveErr != nil {
		return fmt.Errorf("server error: %w", serveErr)
	}
	r.logger.Info("shutdown complete")
	return nil
}
