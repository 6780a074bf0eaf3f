package main

import (
	"context"

	"github.com/desertthunder/plsync/internal/formatter"
	"github.com/desertthunder/plsync/internal/models"
	"github.com/urfave/cli/v3"
)

// History prints recorded sync runs, newest first.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	if err := r.open(ctx); err != nil {
		return err
	}

	limit := cmd.Int("limit")
	var runs []models.SyncRun
	if groupID := cmd.String("group"); groupID != "" {
		if _, err := r.manager.Registry().Get(ctx, groupID); err != nil {
			return err
		}
		runs, err = r.runs.ListByGroup(ctx, groupID, limit)
	} else {
		runs, err = r.runs.Recent(ctx, limit)
	}
	if err != nil {
		return err
	}

	if len(runs) == 0 && format == formatter.Text {
		return r.writePlain("No sync runs recorded yet.\n")
	}

	data, err := formatter.Runs(format, runs)
	if err != nil {
		return err
	}
	return r.writePlain("%s", data)
}
