// submodule cmd contains command definitions
package main

import (
	"github.com/desertthunder/plsync/internal/formatter"
	"github.com/urfave/cli/v3"
)

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
		Sources: cli.EnvVars("PLSYNC_CONFIG"),
	}
}

func formatFlag(value formatter.Format) cli.Flag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, yaml, csv, markdown or text",
		Value:   string(value),
	}
}

func outputFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "Write to a file instead of stdout",
	}
}

func jsonFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "json",
		Usage: "Output raw JSON",
	}
}

func playlistFlag() cli.Flag {
	return &cli.StringSliceFlag{
		Name:    "playlist",
		Aliases: []string{"p"},
		Usage:   "Playlist binding as service=playlist_id (repeatable)",
	}
}

func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create a config file if missing, initialize the database and run migrations",
		Action: r.Setup,
	}
}

func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API and the polling scheduler",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "no-scheduler",
				Usage: "Serve the API without polling in the background",
			},
			&cli.IntFlag{
				Name:  "interval",
				Usage: "Override sync.poll_interval_seconds",
			},
		},
		Action: r.Serve,
	}
}

func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Run one sweep over every sync group, or a single group",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "group",
				Aliases: []string{"g"},
				Usage:   "Only reconcile the group with this ID",
			},
			jsonFlag(),
		},
		Action: r.Sync,
	}
}

func groupsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "groups",
		Aliases: []string{"g"},
		Usage:   "Manage sync groups",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List sync groups",
				Flags:  []cli.Flag{formatFlag(formatter.Text)},
				Action: r.GroupsList,
			},
			{
				Name:  "create",
				Usage: "Create a sync group",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "name",
						Aliases:  []string{"n"},
						Usage:    "Group name",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "primary",
						Usage:    "Primary service: spotify, apple_music or youtube_music",
						Required: true,
					},
					playlistFlag(),
					jsonFlag(),
				},
				Action: r.GroupsCreate,
			},
			{
				Name:      "update",
				Usage:     "Replace the playlist bindings of a sync group",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags:     []cli.Flag{playlistFlag(), jsonFlag()},
				Action:    r.GroupsUpdate,
			},
			{
				Name:      "delete",
				Aliases:   []string{"rm"},
				Usage:     "Delete a sync group and its snapshot",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "purge-history",
						Usage: "Also delete recorded sync runs",
					},
				},
				Action: r.GroupsDelete,
			},
			{
				Name:   "export",
				Usage:  "Export sync groups",
				Flags:  []cli.Flag{formatFlag(formatter.JSON), outputFlag()},
				Action: r.GroupsExport,
			},
		},
	}
}

func playlistsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "playlists",
		Aliases: []string{"pl"},
		Usage:   "List playlists on authenticated services",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "service",
				Aliases: []string{"s"},
				Usage:   "Only list playlists on this service",
			},
			jsonFlag(),
		},
		Action: r.Playlists,
		Commands: []*cli.Command{
			{
				Name:      "export",
				Usage:     "Export the tracks of one playlist",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "service",
						Aliases:  []string{"s"},
						Usage:    "Service owning the playlist",
						Required: true,
					},
					formatFlag(formatter.Text),
					outputFlag(),
				},
				Action: r.PlaylistExport,
			},
		},
	}
}

func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Connect streaming services",
		Commands: []*cli.Command{
			{
				Name:      "login",
				Usage:     "Authorize spotify or youtube_music in the browser",
				Arguments: []cli.Argument{&cli.StringArg{Name: "service"}},
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "How long to wait for the browser callback",
						Value: authTimeout,
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:  "apple",
				Usage: "Store Apple Music developer and music user tokens",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "developer-token",
						Usage: "Apple Music developer token (JWT)",
					},
					&cli.StringFlag{
						Name:  "user-token",
						Usage: "Apple Music music user token",
					},
				},
				Action: r.AuthApple,
			},
			{
				Name:   "status",
				Usage:  "Show which services are configured and authenticated",
				Flags:  []cli.Flag{jsonFlag()},
				Action: r.AuthStatus,
			},
		},
	}
}

func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show recorded sync runs",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "group",
				Aliases: []string{"g"},
				Usage:   "Only show runs of this group",
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"l"},
				Usage:   "Maximum number of runs",
				Value:   20,
			},
			formatFlag(formatter.Text),
		},
		Action: r.History,
	}
}

func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "tui",
		Usage: "Interactive terminal dashboard",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "schedule",
				Usage: "Poll in the background while the dashboard is open",
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Log destination while the dashboard owns the terminal",
				Value: "./tmp/plsync-tui.log",
			},
		},
		Action: r.TUI,
	}
}
