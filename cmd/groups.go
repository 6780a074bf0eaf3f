package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/plsync/internal/formatter"
	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/shared"
	"github.com/urfave/cli/v3"
)

// GroupsList prints every sync group.
func (r *Runner) GroupsList(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	if err := r.open(ctx); err != nil {
		return err
	}

	groups, err := r.manager.Registry().Load(ctx)
	if err != nil {
		return err
	}
	if len(groups) == 0 && format == formatter.Text {
		return r.writePlain("No sync groups. Create one with 'plsync groups create'.\n")
	}

	data, err := formatter.Groups(format, groups)
	if err != nil {
		return err
	}
	return r.writePlain("%s", data)
}

// GroupsCreate registers a new sync group.
func (r *Runner) GroupsCreate(ctx context.Context, cmd *cli.Command) error {
	primary, err := models.ParseServiceType(cmd.String("primary"))
	if err != nil {
		return err
	}
	playlists, err := parsePlaylists(cmd.StringSlice("playlist"))
	if err != nil {
		return err
	}
	if err := r.open(ctx); err != nil {
		return err
	}

	group, err := r.manager.Registry().Create(ctx, cmd.String("name"), primary, playlists)
	if err != nil {
		return err
	}
	r.logger.Info("sync group created", "id", group.ID, "name", group.Name)

	if cmd.Bool("json") {
		return r.writeJSON(group, true)
	}
	r.writePlain("✓ Created %s [%s]\n", group.Name, group.ID)
	if _, ok := group.SourcePlaylist(); !ok {
		r.writePlain("⚠ No %s playlist bound; the group will be skipped until one is added.\n", primary.DisplayName())
	}
	return nil
}

// GroupsUpdate replaces a group's playlist bindings wholesale.
func (r *Runner) GroupsUpdate(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: group id", shared.ErrMissingArgument)
	}
	playlists, err := parsePlaylists(cmd.StringSlice("playlist"))
	if err != nil {
		return err
	}
	if err := r.open(ctx); err != nil {
		return err
	}

	group, err := r.manager.Registry().Update(ctx, id, playlists)
	if err != nil {
		return err
	}
	r.logger.Info("sync group updated", "id", group.ID, "playlists", len(group.Playlists))

	if cmd.Bool("json") {
		return r.writeJSON(group, true)
	}
	return r.writePlain("✓ Updated %s [%s]\n", group.Name, group.ID)
}

// GroupsDelete removes a group and its snapshot, optionally purging its run history.
func (r *Runner) GroupsDelete(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: group id", shared.ErrMissingArgument)
	}
	if err := r.open(ctx); err != nil {
		return err
	}

	if err := r.manager.Registry().Delete(ctx, id); err != nil {
		return err
	}
	r.writePlain("✓ Deleted %s\n", id)

	if cmd.Bool("purge-history") {
		n, err := r.runs.DeleteByGroup(ctx, id)
		if err != nil {
			return err
		}
		r.writePlain("✓ Removed %d recorded run(s)\n", n)
	}
	return nil
}

// GroupsExport writes every sync group in the requested format.
func (r *Runner) GroupsExport(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	if err := r.open(ctx); err != nil {
		return err
	}

	groups, err := r.manager.Registry().Load(ctx)
	if err != nil {
		return err
	}
	data, err := formatter.Groups(format, groups)
	if err != nil {
		return err
	}
	return r.export(cmd.String("output"), data)
}

// export writes data to path, or to the runner output when path is empty.
func (r *Runner) export(path string, data []byte) error {
	if path == "" {
		return r.writePlain("%s", data)
	}
	if err := formatter.WriteFile(path, data); err != nil {
		return err
	}
	r.logger.Info("export written", "file", path)
	return r.writePlain("✓ Saved to %s\n", path)
}

// parsePlaylists turns service=playlist_id pairs into a binding map.
func parsePlaylists(values []string) (map[models.ServiceType]string, error) {
	playlists := map[models.ServiceType]string{}
	for _, value := range values {
		key, id, ok := strings.Cut(value, "=")
		if !ok || strings.TrimSpace(id) == "" {
			return nil, fmt.Errorf("%w: playlist %q must look like service=playlist_id", shared.ErrInvalidInput, value)
		}
		service, err := models.ParseServiceType(key)
		if err != nil {
			return nil, err
		}
		if _, dup := playlists[service]; dup {
			return nil, fmt.Errorf("%w: %s bound more than once", shared.ErrInvalidInput, service)
		}
		playlists[service] = strings.TrimSpace(id)
	}
	return playlists, nil
}
