package migration

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecmigrate/internal/domain"
	"github.com/kailas-cloud/vecmigrate/internal/domain/index"
	"github.com/kailas-cloud/vecmigrate/internal/metrics"
)

// Result describes what EnsureVectorField did.
type Result struct {
	Index      string
	Field      string
	Applied    bool
	FieldCount int
}

// Service adds a vector field to an existing index.
type Service struct {
	indexes IndexManager
	logger  *zap.Logger
}

// New creates a migration service.
func New(indexes IndexManager, logger *zap.Logger) *Service {
	return &Service{indexes: indexes, logger: logger}
}

// EnsureVectorField makes sure indexName has the vector field described by spec.
// When a field of that name exists nothing is written. Otherwise the full definition,
// with every existing field and suggester kept in order, is submitted in one update.
// A failed update is returned and not retried.
func (s *Service) EnsureVectorField(ctx context.Context, indexName string, spec index.VectorFieldSpec) (Result, error) {
	if err := spec.Validate(); err != nil {
		return Result{}, fmt.Errorf("vector field spec: %w: %w", domain.ErrInvalidSchema, err)
	}

	current, err := s.indexes.GetIndex(ctx, indexName)
	if err != nil {
		metrics.SchemaMigrationsTotal.WithLabelValues("error").Inc()
		return Result{}, fmt.Errorf("get index %s: %w", indexName, err)
	}

	field, vs := index.NewVectorField(spec)
	patched, added, err := index.WithVectorField(current, field, vs)
	if err != nil {
		metrics.SchemaMigrationsTotal.WithLabelValues("error").Inc()
		return Result{}, fmt.Errorf("patch index %s: %w: %w", indexName, domain.ErrInvalidSchema, err)
	}

	res := Result{Index: indexName, Field: spec.FieldName, FieldCount: len(current.Fields)}

	if !added {
		existing, _ := current.Field(spec.FieldName)
		if !existing.IsVector() || existing.Dimensions != spec.Dimensions {
			s.logger.Warn("Field exists but is not the expected vector field",
				zap.String("index", indexName),
				zap.String("field", spec.FieldName),
				zap.String("type", string(existing.Type)),
				zap.Int("dimensions", existing.Dimensions),
				zap.Int("expected_dimensions", spec.Dimensions),
			)
		}
		s.logger.Info("Vector field already present, skipping schema update",
			zap.String("index", indexName),
			zap.String("field", spec.FieldName),
		)
		metrics.SchemaMigrationsTotal.WithLabelValues("skipped").Inc()
		return res, nil
	}

	updated, err := s.indexes.CreateOrUpdateIndex(ctx, patched)
	if err != nil {
		metrics.SchemaMigrationsTotal.WithLabelValues("error").Inc()
		return Result{}, fmt.Errorf("update index %s: %w", indexName, err)
	}

	res.Applied = true
	res.FieldCount = len(patched.Fields)
	if len(updated.Fields) > 0 {
		res.FieldCount = len(updated.Fields)
	}

	metrics.SchemaMigrationsTotal.WithLabelValues("applied").Inc()
	s.logger.Info("Vector field added",
		zap.String("index", indexName),
		zap.String("field", spec.FieldName),
		zap.Int("dimensions", spec.Dimensions),
		zap.String("profile", spec.ProfileName),
		zap.Int("field_count", res.FieldCount),
	)
	return res, nil
}
