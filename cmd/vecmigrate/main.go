package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/kailas-cloud/vecmigrate/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newApp().RunContext(ctx, os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	stop()
	os.Exit(exitCode(err))
}

func newApp() *cli.App {
	return (&job{}).app()
}

func (j *job) app() *cli.App {
	return &cli.App{
		Name:    "vecmigrate",
		Usage:   "Add a vector field to a search index and backfill its embeddings",
		Version: version.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "env",
				Aliases: []string{"e"},
				Usage:   "Environment name, selects config/<env>.yaml and the log format",
				EnvVars: []string{"ENV"},
				Value:   "local",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a config file (overrides --env lookup)",
				EnvVars: []string{"VECMIGRATE_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
			},
			&cli.StringFlag{
				Name:  "dotenv",
				Usage: "Path to a .env file loaded before the config",
				Value: ".env",
			},
		},
		Before: j.setup,
		After:  j.teardown,
		Commands: []*cli.Command{
			{
				Name:   "migrate",
				Usage:  "Add the vector field to the index if it is missing",
				Action: j.migrateCommand,
			},
			{
				Name:   "backfill",
				Usage:  "Embed the source field of every document and write the vectors",
				Action: j.backfillCommand,
				Flags:  []cli.Flag{continueOnErrorFlag()},
			},
			{
				Name:   "run",
				Usage:  "Migrate, then backfill",
				Action: j.runCommand,
				Flags:  []cli.Flag{continueOnErrorFlag()},
			},
			{
				Name:   "check",
				Usage:  "Check the search backend, the index and the embedding provider",
				Action: j.checkCommand,
			},
			{
				Name:   "version",
				Usage:  "Print build information",
				Action: versionCommand,
			},
		},
	}
}

func continueOnErrorFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "continue-on-error",
		Usage: "Record failed documents and keep going instead of aborting",
	}
}

func versionCommand(c *cli.Context) error {
	fmt.Fprintf(c.App.Writer, "vecmigrate %s (commit %s, built %s)\n",
		version.Version, version.Commit, version.Date)
	return nil
}
