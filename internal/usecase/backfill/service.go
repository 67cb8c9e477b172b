package backfill

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/vecmigrate/internal/db"
	"github.com/kailas-cloud/vecmigrate/internal/domain"
	"github.com/kailas-cloud/vecmigrate/internal/metrics"
)

// Defaults applied by New when a Config value is zero.
const (
	DefaultPageSize       = 50
	DefaultReportInterval = 10
)

// Config describes one backfill run.
type Config struct {
	Index       string
	PrimaryKey  string
	SourceField string
	VectorField string

	PageSize int

	// ContinueOnError records failed documents and moves on instead of aborting.
	ContinueOnError bool

	// RequestsPerSecond paces embedding calls. Zero disables pacing.
	RequestsPerSecond float64

	ReportInterval int
}

// Report summarizes a run. It is returned even when the run aborts.
type Report struct {
	Total      int
	Processed  int
	Updated    int
	Failed     int
	FailedKeys []string
	Elapsed    time.Duration
}

// Service embeds the source field of every document and writes the vector back.
type Service struct {
	scanner  DocumentScanner
	writer   DocumentWriter
	gen      Generator
	cfg      Config
	progress io.Writer
	logger   *zap.Logger
}

// New creates a backfill service. progress receives the progress line, typically os.Stderr.
func New(
	scanner DocumentScanner, writer DocumentWriter, gen Generator,
	cfg Config, progress io.Writer, logger *zap.Logger,
) *Service {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.ReportInterval <= 0 {
		cfg.ReportInterval = DefaultReportInterval
	}
	if progress == nil {
		progress = io.Discard
	}
	return &Service{
		scanner: scanner, writer: writer, gen: gen,
		cfg: cfg, progress: progress, logger: logger,
	}
}

// Run processes documents one at a time: embed, then a merge update carrying only
// the primary key and the vector field. There is no checkpoint; a rerun rewrites
// documents that were already updated.
func (s *Service) Run(ctx context.Context) (Report, error) {
	var rep Report

	total, err := s.scanner.CountDocuments(ctx, s.cfg.Index)
	if err != nil {
		return rep, fmt.Errorf("count documents in %s: %w", s.cfg.Index, err)
	}
	rep.Total = total

	s.logger.Info("Starting backfill",
		zap.String("index", s.cfg.Index),
		zap.Int("documents", total),
		zap.String("source_field", s.cfg.SourceField),
		zap.String("vector_field", s.cfg.VectorField),
		zap.Bool("continue_on_error", s.cfg.ContinueOnError),
	)

	var limiter *rate.Limiter
	if s.cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.cfg.RequestsPerSecond), 1)
	}

	tracker := NewProgressTracker(s.progress, total, s.cfg.ReportInterval)
	tracker.Start()

	q := db.ScanQuery{
		Index:     s.cfg.Index,
		KeyField:  s.cfg.PrimaryKey,
		TextField: s.cfg.SourceField,
		PageSize:  s.cfg.PageSize,
	}
	err = s.scanner.ScanDocuments(ctx, q, func(doc domain.Document) error {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return err
			}
		}

		rep.Processed++
		err := s.process(ctx, doc)
		tracker.Increment(1)
		if err == nil {
			rep.Updated++
			metrics.BackfillDocumentsTotal.WithLabelValues("updated").Inc()
			return nil
		}

		rep.Failed++
		metrics.BackfillDocumentsTotal.WithLabelValues("failed").Inc()
		if !s.cfg.ContinueOnError || ctx.Err() != nil {
			return err
		}
		rep.FailedKeys = append(rep.FailedKeys, doc.Key)
		s.logger.Warn("Document failed, continuing",
			zap.String("key", doc.Key),
			zap.Error(err),
		)
		return nil
	})
	tracker.Finish()
	rep.Elapsed = tracker.Elapsed()

	if err != nil {
		s.logger.Error("Backfill aborted",
			zap.Int("processed", rep.Processed),
			zap.Int("updated", rep.Updated),
			zap.Error(err),
		)
		return rep, fmt.Errorf("backfill %s: %w", s.cfg.Index, err)
	}

	s.logger.Info("Backfill complete",
		zap.Int("total", rep.Total),
		zap.Int("processed", rep.Processed),
		zap.Int("updated", rep.Updated),
		zap.Int("failed", rep.Failed),
		zap.Duration("elapsed", rep.Elapsed.Round(time.Millisecond)),
	)
	return rep, nil
}

func (s *Service) process(ctx context.Context, doc domain.Document) error {
	vec, err := s.gen.Generate(ctx, doc.Text)
	if err != nil {
		return fmt.Errorf("embed document %s: %w", doc.Key, err)
	}

	patch := domain.VectorPatch{Key: doc.Key, Field: s.cfg.VectorField, Vector: vec}
	start := time.Now()
	err = s.writer.MergeDocuments(ctx, s.cfg.Index, s.cfg.PrimaryKey, []domain.VectorPatch{patch})
	metrics.BackfillWriteDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("write document %s: %w", doc.Key, err)
	}
	return nil
}

// IsAborted reports whether err ended a run early because of cancellation.
func IsAborted(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
