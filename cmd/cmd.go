// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// configFlag is shared by every command that reads or writes config.toml.
func configFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

// setupCommand initializes the config file and database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create config.toml and initialize the database",
		Flags:  []cli.Flag{configFlag()},
		Action: r.Setup,
	}
}

// authCommand handles Spotify OAuth authorization.
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "auth",
		Usage:  "Authenticate with Spotify using OAuth2",
		Flags:  []cli.Flag{configFlag()},
		Action: r.SpotifyAuth,
	}
}

// generateCommand runs the discovery pipeline and publishes the playlist.
func generateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "generate",
		Aliases: []string{"gen", "run"},
		Usage:   "Discover recent releases and publish the weekly playlist",
		Flags: []cli.Flag{
			configFlag(),
			&cli.IntFlag{
				Name:    "window",
				Aliases: []string{"w"},
				Usage:   "Recency window in days",
			},
			&cli.StringFlag{
				Name:  "as-of",
				Usage: "Generate as of a past date (YYYY-MM-DD)",
			},
			&cli.IntFlag{
				Name:    "related",
				Aliases: []string{"max-related"},
				Usage:   "Related artists kept per followed artist",
			},
			&cli.IntFlag{
				Name:  "max-artists",
				Usage: "Cap on the total artist pool (seeds exempt)",
			},
			&cli.IntFlag{
				Name:  "depth",
				Usage: "Related-artist expansion hops",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Concurrent catalog fetches",
			},
			&cli.BoolFlag{
				Name:  "strict-dates",
				Usage: "Exclude releases with month or year date precision",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Discover tracks without creating or updating the playlist",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output run summary as JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print JSON output",
				Value: true,
			},
			&cli.StringFlag{
				Name:    "export",
				Aliases: []string{"o", "save"},
				Usage:   "Base path for CSV export of the discovered tracks",
			},
		},
		Action: r.Generate,
	}
}

// artistsCommand lists followed artists.
func artistsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "artists",
		Usage: "List the artists you follow on Spotify",
		Flags: []cli.Flag{
			configFlag(),
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of artists to print",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
			},
		},
		Action: r.Artists,
	}
}

// historyCommand lists past discovery runs.
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show past discovery runs",
		Flags: []cli.Flag{
			configFlag(),
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of runs to show",
				Value: 10,
			},
			&cli.StringFlag{
				Name:  "status",
				Usage: "Filter by run status (success, partial, failed)",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
				Value: true,
			},
		},
		Action: r.History,
	}
}

// tuiCommand returns the top-level TUI command for interactive generation.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch interactive TUI for playlist generation",
		Flags:   []cli.Flag{configFlag()},
		Action:  r.TUI,
	}
}
