package embedding

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecmigrate/internal/domain"
	"github.com/kailas-cloud/vecmigrate/internal/metrics"
	"github.com/kailas-cloud/vecmigrate/internal/retry"
)

// Default retry settings: three attempts with a constant one minute pause.
const (
	DefaultMaxAttempts = 3
	DefaultBackoff     = 60 * time.Second
)

// DefaultPolicy returns the constant-backoff policy used when none is configured.
func DefaultPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts: DefaultMaxAttempts,
		Backoff:     retry.Constant(DefaultBackoff),
	}
}

// Generator turns text into a fixed-length vector, retrying transient provider failures.
type Generator struct {
	embedder   domain.Embedder
	policy     retry.Policy
	dimensions int
	logger     *zap.Logger
}

// NewGenerator creates a Generator. dimensions <= 0 disables the length check.
// The policy's Retryable and Notify hooks are replaced with the generator's own.
func NewGenerator(embedder domain.Embedder, policy retry.Policy, dimensions int, logger *zap.Logger) *Generator {
	g := &Generator{
		embedder:   embedder,
		dimensions: dimensions,
		logger:     logger,
	}
	policy.Retryable = domain.IsTransientEmbeddingError
	policy.Notify = g.onRetry
	g.policy = policy
	return g
}

// Generate returns the embedding for text. Empty text is sent unchanged.
// After the policy's attempts are spent the error matches retry.ErrExhausted.
func (g *Generator) Generate(ctx context.Context, text string) ([]float32, error) {
	var vec []float32

	err := g.policy.Do(ctx, func(ctx context.Context) error {
		res, err := g.embedder.Embed(ctx, text)
		if err != nil {
			return err
		}
		vec = res.Embedding
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("generate embedding: %w", err)
	}

	if g.dimensions > 0 && len(vec) != g.dimensions {
		return nil, fmt.Errorf("generate embedding: got %d values, want %d: %w",
			len(vec), g.dimensions, domain.ErrVectorDimMismatch)
	}
	return vec, nil
}

func (g *Generator) onRetry(err error, attempt int, wait time.Duration) {
	reason := domain.EmbeddingErrorReason(err)
	metrics.EmbeddingRetriesTotal.WithLabelValues(reason).Inc()

	g.logger.Warn("Embedding request failed, retrying",
		zap.String("reason", reason),
		zap.Int("attempt", attempt),
		zap.Int("max_attempts", g.policy.MaxAttempts),
		zap.Duration("retry_in", wait),
		zap.Error(err),
	)
}
