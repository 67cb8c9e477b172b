package main

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecmigrate/internal/config"
	"github.com/kailas-cloud/vecmigrate/internal/db"
	logpkg "github.com/kailas-cloud/vecmigrate/internal/logger"
	"github.com/kailas-cloud/vecmigrate/internal/usecase/backfill"
	"github.com/kailas-cloud/vecmigrate/internal/usecase/health"
	"github.com/kailas-cloud/vecmigrate/internal/usecase/migration"
)

func (j *job) migrateCommand(c *cli.Context) error {
	ctx, logger := logpkg.WithRun(c.Context, j.logger, "migrate")

	store, err := openStore(ctx, j.cfg, logger)
	if err != nil {
		return exitErr("migrate", err)
	}
	defer store.Close()

	return j.migrate(c, store, logger)
}

func (j *job) backfillCommand(c *cli.Context) error {
	ctx, logger := logpkg.WithRun(c.Context, j.logger, "backfill")

	store, err := openStore(ctx, j.cfg, logger)
	if err != nil {
		return exitErr("backfill", err)
	}
	defer store.Close()

	return j.backfill(c, store, logger)
}

func (j *job) runCommand(c *cli.Context) error {
	ctx, logger := logpkg.WithRun(c.Context, j.logger, "run")

	store, err := openStore(ctx, j.cfg, logger)
	if err != nil {
		return exitErr("run", err)
	}
	defer store.Close()

	if err := j.migrate(c, store, logger); err != nil {
		return err
	}
	return j.backfill(c, store, logger)
}

func (j *job) migrate(c *cli.Context, store db.Store, logger *zap.Logger) error {
	svc := migration.New(store, logger)
	res, err := svc.EnsureVectorField(c.Context, j.cfg.Search.IndexName, j.cfg.VectorFieldSpec())
	if err != nil {
		return exitErr("migrate", err)
	}

	state := "already present"
	if res.Applied {
		state = "added"
	}
	fmt.Fprintf(c.App.Writer, "Vector field %s %s on index %s (%d fields)\n",
		res.Field, state, res.Index, res.FieldCount)
	return nil
}

func (j *job) backfill(c *cli.Context, store db.Store, logger *zap.Logger) error {
	chain, err := buildEmbedder(j.cfg, logger)
	if err != nil {
		return exitErr("backfill", err)
	}
	defer chain.Close()

	gen := buildGenerator(j.cfg, chain, logger)
	svc := backfill.New(store, store, gen, backfillConfig(j.cfg, c.Bool("continue-on-error")), os.Stderr, logger)

	rep, err := svc.Run(c.Context)
	if err != nil {
		if backfill.IsAborted(err) {
			return withExitCode(130, fmt.Errorf("backfill interrupted after %d of %d documents: %w", rep.Processed, rep.Total, err))
		}
		return exitErr("backfill", err)
	}

	fmt.Fprintf(c.App.Writer, "Backfill complete: %d updated, %d failed of %d documents in %s\n",
		rep.Updated, rep.Failed, rep.Total, rep.Elapsed.Round(time.Millisecond))
	if rep.Failed > 0 {
		return withExitCode(2, fmt.Errorf("%d documents failed: %v", rep.Failed, rep.FailedKeys))
	}
	return nil
}

func backfillConfig(cfg config.Config, continueOnError bool) backfill.Config {
	return backfill.Config{
		Index:             cfg.Search.IndexName,
		PrimaryKey:        cfg.Backfill.PrimaryKey,
		SourceField:       cfg.Backfill.SourceField,
		VectorField:       cfg.Migration.FieldName,
		PageSize:          cfg.Backfill.PageSize,
		ContinueOnError:   cfg.Backfill.ContinueOnError || continueOnError,
		RequestsPerSecond: cfg.Backfill.RequestsPerSecond,
		ReportInterval:    cfg.Backfill.ReportInterval,
	}
}

func (j *job) checkCommand(c *cli.Context) error {
	ctx, logger := logpkg.WithRun(c.Context, j.logger, "check")

	store, err := newStore(j.cfg)
	if err != nil {
		return exitErr("check", err)
	}
	defer store.Close()

	chain, err := buildEmbedder(j.cfg, logger)
	if err != nil {
		return exitErr("check", err)
	}
	defer chain.Close()

	report := health.New(store, j.cfg.Search.IndexName, chain).Check(ctx)
	printReport(c, report)

	if report.Status != health.Healthy {
		return fmt.Errorf("status: %s", report.Status)
	}
	return nil
}

func printReport(c *cli.Context, r health.Report) {
	names := make([]string, 0, len(r.Checks))
	for name := range r.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		line := fmt.Sprintf("%-10s %s", name, r.Checks[name])
		if msg, ok := r.Errors[name]; ok {
			line += "  " + msg
		}
		fmt.Fprintln(c.App.Writer, line)
	}
	fmt.Fprintf(c.App.Writer, "status     %s\n", r.Status)
}
