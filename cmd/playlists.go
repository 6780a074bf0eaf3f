package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/plsync/internal/formatter"
	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/shared"
	"github.com/urfave/cli/v3"
)

// Playlists lists playlists of every authenticated service, or of --service only.
func (r *Runner) Playlists(ctx context.Context, cmd *cli.Command) error {
	services := models.ServiceTypes
	if name := cmd.String("service"); name != "" {
		service, err := models.ParseServiceType(name)
		if err != nil {
			return err
		}
		services = []models.ServiceType{service}
	}
	if err := r.open(ctx); err != nil {
		return err
	}

	all := []models.Playlist{}
	for _, service := range services {
		conn, err := r.connectors.Get(service)
		if err != nil || !conn.IsConfigured() || !conn.TokenReady(ctx) {
			r.logger.Debug("skipping service without credentials", "service", service)
			continue
		}

		playlists, err := conn.ListPlaylists(ctx)
		if err != nil {
			r.logger.Warn("failed to list playlists", "service", service, "error", err)
			continue
		}
		all = append(all, playlists...)
	}

	if cmd.Bool("json") {
		return r.writeJSON(all, true)
	}
	if len(all) == 0 {
		return r.writePlain("No playlists found. Connect a service with 'plsync auth login <service>'.\n")
	}

	var current models.ServiceType
	for _, playlist := range all {
		if playlist.Service != current {
			current = playlist.Service
			r.writePlainHeader(current.DisplayName())
		}
		r.writePlain("%-40s %5d  %s\n", playlist.Name, playlist.TrackCount, playlist.ID)
	}
	return nil
}

// PlaylistExport writes the tracks of one playlist in the requested format.
func (r *Runner) PlaylistExport(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}
	service, err := models.ParseServiceType(cmd.String("service"))
	if err != nil {
		return err
	}
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	if err := r.open(ctx); err != nil {
		return err
	}

	conn, err := r.connectors.Get(service)
	if err != nil {
		return err
	}
	if !conn.TokenReady(ctx) {
		return fmt.Errorf("%w: %s", shared.ErrNotAuthenticated, service)
	}

	tracks, err := conn.ListTracks(ctx, id)
	if err != nil {
		return err
	}

	playlist := models.Playlist{ID: id, Name: id, Service: service, TrackCount: len(tracks)}
	if playlists, err := conn.ListPlaylists(ctx); err == nil {
		for _, p := range playlists {
			if p.ID == id {
				playlist.Name = p.Name
				break
			}
		}
	}

	data, err := formatter.Playlist(format, formatter.PlaylistExport{Playlist: playlist, Tracks: tracks})
	if err != nil {
		return err
	}
	return r.export(cmd.String("output"), data)
}
