// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

// userFlag overrides the user id sent to the backend, which defaults to the logged in Spotify account.
func userFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "user",
		Aliases: []string{"u"},
		Usage:   "User id to act as (default: your Spotify account id)",
		Sources: cli.EnvVars("MULTIFY_USER"),
	}
}

func jsonFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "json",
		Usage: "Output raw JSON",
	}
}

func prettyFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "pretty",
		Usage: "Pretty-print output",
		Value: true,
	}
}

// serveCommand runs the backend.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the party API and live queue updates",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (default: server.host:server.port)",
			},
		},
		Action: r.Serve,
	}
}

// setupCommand handles setup operations for the database and configuration.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "database",
				Usage: "Initialize database and run migrations",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:  "database",
						Usage: "Database path (overrides database.path)",
					},
					jsonFlag(),
				},
				Action: r.SetupDatabase,
			},
			{
				Name:   "config",
				Usage:  "Write an example config.toml",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupConfig,
			},
		},
	}
}

// spotifyCommand handles Spotify operations
func spotifyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "spotify",
		Aliases: []string{"spot"},
		Usage:   "Spotify account and catalog",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Authorize with Spotify using OAuth2",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Discard the cached token and log in again",
					},
				},
				Action: r.SpotifyLogin,
			},
			{
				Name:   "status",
				Usage:  "Show the cached token state",
				Flags:  []cli.Flag{jsonFlag()},
				Action: r.SpotifyStatus,
			},
			{
				Name:  "playlists",
				Usage: "List your Spotify playlists",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of playlists to return",
						Value: 20,
					},
					&cli.StringFlag{
						Name:  "cursor",
						Usage: "Page URL from a previous listing",
					},
					jsonFlag(),
					prettyFlag(),
				},
				Action: r.SpotifyPlaylists,
			},
			{
				Name:  "search",
				Usage: "Search Spotify for tracks",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "query"},
				},
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of tracks to return",
						Value: 10,
					},
					jsonFlag(),
					prettyFlag(),
				},
				Action: r.SpotifySearch,
			},
		},
	}
}

// partyCommand handles party and queue operations
func partyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "party",
		Usage: "Create and join parties, queue tracks and vote",
		Commands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Create a party hosted by you",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "name"},
				},
				Flags:  []cli.Flag{userFlag(), jsonFlag()},
				Action: r.PartyCreate,
			},
			{
				Name:  "lookup",
				Usage: "Find the party id for a join code",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "code"},
				},
				Flags:  []cli.Flag{jsonFlag()},
				Action: r.PartyLookup,
			},
			{
				Name:  "queue",
				Usage: "Show the ranked queue of a party",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "party"},
				},
				Flags: []cli.Flag{
					userFlag(),
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format: txt, markdown, csv or json",
						Value:   "txt",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write the queue to this file",
					},
					&cli.BoolFlag{
						Name:  "save",
						Usage: "Write the queue to {party}_queue.{ext}",
					},
				},
				Action: r.PartyQueue,
			},
			{
				Name:  "add",
				Usage: "Queue a Spotify track",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "party"},
					&cli.StringArg{Name: "track"},
				},
				Flags:  []cli.Flag{userFlag()},
				Action: r.PartyAdd,
			},
			{
				Name:  "vote",
				Usage: "Set your vote on a queued track (no flag clears it)",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "party"},
					&cli.StringArg{Name: "track"},
				},
				Flags: []cli.Flag{
					userFlag(),
					&cli.BoolFlag{Name: "like", Usage: "Upvote the track"},
					&cli.BoolFlag{Name: "dislike", Usage: "Downvote the track"},
					jsonFlag(),
				},
				Action: r.PartyVote,
			},
			{
				Name:  "fallback",
				Usage: "Fill a party queue from a Spotify playlist (local database)",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "party"},
					&cli.StringArg{Name: "playlist"},
				},
				Flags: []cli.Flag{
					userFlag(),
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent queue writers",
						Value: 5,
					},
					&cli.FloatFlag{
						Name:  "rate",
						Usage: "Tracks per second",
						Value: 10,
					},
					&cli.StringFlag{
						Name:  "manifest",
						Usage: "Write the import result as JSON to this file",
					},
					&cli.BoolFlag{
						Name:    "quiet",
						Aliases: []string{"q"},
						Usage:   "Hide progress",
					},
					jsonFlag(),
				},
				Action: r.PartyFallback,
			},
			{
				Name:  "recount",
				Usage: "Recompute vote counters from markers (local database)",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "party"},
				},
				Flags:  []cli.Flag{jsonFlag()},
				Action: r.PartyRecount,
			},
			{
				Name:   "list",
				Usage:  "List active parties (local database)",
				Flags:  []cli.Flag{userFlag(), jsonFlag()},
				Action: r.PartyList,
			},
			{
				Name:  "end",
				Usage: "End a party and release its join code (local database)",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "party"},
				},
				Flags:  []cli.Flag{userFlag()},
				Action: r.PartyEnd,
			},
			{
				Name:  "token",
				Usage: "Store your current Spotify token with a party (local database)",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "party"},
				},
				Action: r.PartyToken,
			},
		},
	}
}

// tuiCommand returns the top-level TUI command for a party queue.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch the interactive party queue",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "party"},
		},
		Flags: []cli.Flag{
			userFlag(),
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Where to write logs while the TUI runs",
				Value: "./tmp/multify-tui.log",
			},
		},
		Action: r.TUI,
	}
}
