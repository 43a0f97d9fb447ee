// submodule cmd contains command definitions
package main

import (
	"github.com/desertthunder/songvert/internal/models"
	"github.com/urfave/cli/v3"
)

// convertFlags are shared by the track, album and playlist commands.
func convertFlags() []cli.Flag {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:    "url",
			Aliases: []string{"u"},
			Usage:   "Share link or spotify: URI of the source entity",
		},
		&cli.StringFlag{
			Name:    "input-file",
			Aliases: []string{"i"},
			Usage:   "JSON document previously written by 'songvert export' or --output-file",
		},
	}
	for _, f := range targetFlags {
		flags = append(flags, &cli.BoolFlag{
			Name:  f.name,
			Usage: "Resolve against " + f.src.Label() + " (default: every service except the source)",
		})
	}
	return append(flags,
		&cli.StringFlag{
			Name:    "download",
			Aliases: []string{"d"},
			Usage:   "Download and tag the matched tracks into `DIR`",
		},
		&cli.StringFlag{
			Name:    "output-file",
			Aliases: []string{"o"},
			Usage:   "Write a report; the format follows the extension (.json, .csv, .md, .txt)",
		},
		&cli.BoolFlag{
			Name:  "overwrite-artwork",
			Usage: "Replace artwork already embedded in downloaded files",
		},
		&cli.BoolFlag{
			Name:  "tui",
			Usage: "Show an interactive progress view",
		},
	)
}

func convertCommand(r *Runner, kind models.Kind, usage string) *cli.Command {
	return &cli.Command{
		Name:   string(kind),
		Usage:  usage,
		Flags:  convertFlags(),
		Action: r.Convert(kind),
	}
}

func trackCommand(r *Runner) *cli.Command {
	return convertCommand(r, models.KindTrack, "Find a track on other services")
}

func albumCommand(r *Runner) *cli.Command {
	return convertCommand(r, models.KindAlbum, "Find every track of an album on other services")
}

func playlistCommand(r *Runner) *cli.Command {
	return convertCommand(r, models.KindPlaylist, "Find every track of a playlist on other services")
}

// exportCommand saves a source entity as JSON
func exportCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Save a Spotify or Apple Music track, album or playlist as JSON",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "url",
				Aliases:  []string{"u"},
				Usage:    "Share link or spotify: URI",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output file path",
			},
		},
		Action: r.Export,
	}
}

// searchCommand runs a raw catalog search
func searchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "search",
		Usage: "Search one service's catalog",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "query",
			},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "service",
				Aliases: []string{"s"},
				Usage:   "spotify, apple_music, bandcamp or youtube",
				Value:   "youtube",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of results to print",
				Value: 10,
			},
		},
		Action: r.Search,
	}
}

// historyCommand lists recorded runs
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List recorded conversion runs",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of runs to list",
				Value: 20,
			},
			&cli.StringFlag{
				Name:  "source",
				Usage: "Only runs loaded from this service",
			},
			&cli.IntFlag{
				Name:  "run",
				Usage: "Show the per-track outcomes of run `N`",
			},
		},
		Action: r.History,
	}
}

// setupCommand handles setup operations for configuration and database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write the example configuration file",
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Action: r.SetupDatabase,
			},
		},
	}
}
