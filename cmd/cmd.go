// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// runCommand is the full pipeline: build, shuffle, match, download, publish.
func runCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Build a playlist from a song file and download the audio",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "songfile",
			},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Directory for downloaded audio (default from config)",
			},
			&cli.IntFlag{
				Name:  "max-songs",
				Usage: "Cap the playlist at this many songs",
			},
			&cli.BoolFlag{
				Name:  "no-shuffle",
				Usage: "Keep the song file's order",
			},
			&cli.BoolFlag{
				Name:    "yes",
				Aliases: []string{"y"},
				Usage:   "Accept the top match for every song without prompting",
			},
			&cli.BoolFlag{
				Name:  "publish",
				Usage: "Upload the downloaded audio and create a card",
			},
			&cli.StringFlag{
				Name:  "card-name",
				Usage: "Name for the published card (defaults to the song file name)",
			},
			&cli.StringFlag{
				Name:  "provider",
				Usage: "Audio source override (stream or library)",
			},
			&cli.StringFlag{
				Name:  "manifest",
				Usage: "Path for the run manifest JSON (default: <output>/manifest.json)",
			},
			&cli.StringFlag{
				Name:  "csv",
				Usage: "Also write per-song outcomes as CSV to this path",
			},
		},
		Action: r.Run,
	}
}

// serveCommand starts the web wizard.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the web wizard HTTP server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Listen host (default from config)",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Listen port (default from config)",
			},
		},
		Action: r.Serve,
	}
}

// authCommand handles destination authentication.
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage card service authentication",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Authenticate with the card service",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "browser",
						Usage: "Use the browser redirect flow instead of the device code flow",
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:   "status",
				Usage:  "Show the stored credential state",
				Action: r.AuthStatus,
			},
			{
				Name:   "logout",
				Usage:  "Delete the stored credential",
				Action: r.AuthLogout,
			},
		},
	}
}

// cardsCommand inspects cards on the destination account.
func cardsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cards",
		Usage: "Inspect cards on the connected account",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List the account's cards",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.CardsList,
			},
			{
				Name:  "show",
				Usage: "Show one card's chapters",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "id",
					},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.CardsShow,
			},
		},
	}
}

// setupCommand initializes configuration and the session database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Create config.toml and initialize the session database",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
		},
		Action: r.Setup,
	}
}
