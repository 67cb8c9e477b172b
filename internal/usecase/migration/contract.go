package migration

import (
	"context"

	"github.com/kailas-cloud/vecmigrate/internal/domain/index"
)

// IndexManager reads and replaces index definitions.
type IndexManager interface {
	GetIndex(ctx context.Context, name string) (index.Schema, error)
	CreateOrUpdateIndex(ctx context.Context, schema index.Schema) (index.Schema, error)
}
