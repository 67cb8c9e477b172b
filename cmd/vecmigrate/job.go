package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecmigrate/internal/config"
	logpkg "github.com/kailas-cloud/vecmigrate/internal/logger"
	"github.com/kailas-cloud/vecmigrate/internal/metrics"
	"github.com/kailas-cloud/vecmigrate/internal/version"
)

// job holds what every command shares: config, logger and the metrics endpoint.
type job struct {
	env     string
	cfg     config.Config
	logger  *zap.Logger
	metrics *metrics.Server
}

// commandsWithoutConfig run before any config is loaded.
var commandsWithoutConfig = map[string]bool{"": true, "version": true, "help": true, "h": true}

func (j *job) setup(c *cli.Context) error {
	if commandsWithoutConfig[c.Args().First()] {
		return nil
	}

	if err := loadDotenv(c.String("dotenv")); err != nil {
		return err
	}

	j.env = c.String("env")
	var err error
	if path := c.String("config"); path != "" {
		j.cfg, err = config.LoadFile(path)
	} else {
		j.cfg, err = config.Load(j.env)
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	level := j.cfg.Logging.Level
	if c.IsSet("log-level") {
		level = c.String("log-level")
	}
	j.logger, err = logpkg.NewLogger(j.env, level)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}

	j.logger.Info("Starting vecmigrate",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", j.env),
		zap.String("search_driver", j.cfg.Search.Driver),
		zap.String("index", j.cfg.Search.IndexName),
		zap.String("embedding_provider", j.cfg.Embedding.Provider),
		zap.String("model", j.cfg.Embedding.Model),
	)

	metrics.Register()
	if addr := j.cfg.Metrics.Addr; addr != "" {
		j.metrics = metrics.NewServer(addr, j.cfg.Metrics.BearerTokens, j.logger)
		if err := j.metrics.Start(); err != nil {
			return fmt.Errorf("start metrics server: %w", err)
		}
	}
	return nil
}

func (j *job) teardown(_ *cli.Context) error {
	if j.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := j.metrics.Shutdown(ctx); err != nil {
			j.logger.Warn("Metrics server shutdown failed", zap.Error(err))
		}
	}
	if j.logger != nil {
		_ = j.logger.Sync()
	}
	return nil
}

// loadDotenv loads path into the environment. A missing file is not an error.
func loadDotenv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// exitError carries a process exit code to main, which exits once the After hook has run.
// It does not implement cli.ExitCoder, so the cli package never calls os.Exit on it.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func withExitCode(code int, err error) error {
	return &exitError{code: code, err: err}
}

// exitCode maps a command error to the process exit code: 0 on success, 1 unless tagged.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var e *exitError
	if errors.As(err, &e) {
		return e.code
	}
	return 1
}

func exitErr(msg string, err error) error {
	return fmt.Errorf("%s: %w", msg, err)
}

