// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// setupCommand writes a starter config and prepares the snapshot store.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create the config file and run database migrations",
		Action: r.Setup,
	}
}

// serveCommand runs the rotation engine behind the HTTP API.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the player and the HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (overrides server.host and server.port)",
			},
			&cli.BoolFlag{
				Name:  "watch",
				Usage: "Reload queue settings when the config file changes",
			},
			&cli.BoolFlag{
				Name:  "simulate",
				Usage: "Use the simulated player instead of mpv",
			},
		},
		Action: r.Serve,
	}
}

// tuiCommand returns the top-level TUI command for interactive queue management.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Start the player with an interactive terminal UI",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "voter",
				Usage: "Identity used for votes cast from the TUI",
				Value: "console",
			},
			&cli.BoolFlag{
				Name:  "simulate",
				Usage: "Use the simulated player instead of mpv",
			},
		},
		Action: r.TUI,
	}
}

// queueCommand inspects the persisted queue without starting the player.
func queueCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "queue",
		Usage: "Inspect the saved queue snapshot",
		Commands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Print the saved queue",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format (text, csv, markdown, json)",
						Value:   "text",
					},
				},
				Action: r.QueueShow,
			},
			{
				Name:  "history",
				Usage: "List recent snapshot saves",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of snapshots to list",
						Value: 10,
					},
				},
				Action: r.QueueHistory,
			},
			{
				Name:  "export",
				Usage: "Write the saved queue to a file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Export format (text, csv, markdown, json)",
						Value:   "markdown",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file path (default: queue.<ext>)",
					},
				},
				Action: r.QueueExport,
			},
		},
	}
}

// lookupCommand queries the catalog directly.
func lookupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "lookup",
		Usage:     "Look up tracks in the catalog by id or link",
		ArgsUsage: "<id or link>...",
		Flags: []cli.Flag{
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
		Action: r.Lookup,
	}
}
