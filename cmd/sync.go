package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/plsync/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Sync runs one sweep, or reconciles a single group when --group is set.
func (r *Runner) Sync(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(ctx); err != nil {
		return err
	}

	if groupID := cmd.String("group"); groupID != "" {
		group, err := r.manager.Registry().Get(ctx, groupID)
		if err != nil {
			return err
		}
		result := r.manager.SyncGroup(ctx, *group)
		if cmd.Bool("json") {
			return r.writeJSON(result, true)
		}
		r.writeGroupResult(result)
		return nil
	}

	result := r.manager.RunOnce(ctx)
	if cmd.Bool("json") {
		if err := r.writeJSON(result, true); err != nil {
			return err
		}
	} else {
		r.writePlainHeader("Sweep " + result.StartedAt.Local().Format(time.DateTime))
		for _, group := range result.Groups {
			r.writeGroupResult(group)
		}
		r.writePlainln("%s", result.Summary())
	}

	if result.Err != nil {
		return fmt.Errorf("sweep failed: %w", result.Err)
	}
	return nil
}

func (r *Runner) writeGroupResult(result tasks.GroupResult) {
	r.writePlain("%s %s [%s]", statusIcon(string(result.Status)), result.GroupName, result.Status)
	if result.Message != "" {
		r.writePlain(" %s", result.Message)
	}
	r.writePlain("\n")

	for _, target := range result.Targets {
		r.writePlain("    %s %-14s %s", statusIcon(string(target.Status)), target.Service.DisplayName(), target.PlaylistID)
		if target.Status == tasks.TargetReplaced {
			r.writePlain(" (%d/%d matched)", target.Matched, target.Total)
		}
		if target.Message != "" {
			r.writePlain(" %s", target.Message)
		}
		r.writePlain("\n")
	}
}

func statusIcon(status string) string {
	switch status {
	case "synced", "replaced":
		return "✓"
	case "unchanged":
		return "="
	case "skipped":
		return "-"
	case "partial":
		return "!"
	default:
		return "✗"
	}
}
