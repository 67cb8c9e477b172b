package health

import (
	"context"

	"github.com/kailas-cloud/vecmigrate/internal/domain/index"
)

// SearchBackend is the part of the search store the check command touches.
type SearchBackend interface {
	Ping(ctx context.Context) error
	GetIndex(ctx context.Context, name string) (index.Schema, error)
}

// EmbeddingChecker checks embedding provider availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}
