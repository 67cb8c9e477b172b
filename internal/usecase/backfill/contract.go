package backfill

import (
	"context"

	"github.com/kailas-cloud/vecmigrate/internal/db"
	"github.com/kailas-cloud/vecmigrate/internal/domain"
)

// DocumentScanner counts and iterates the documents of an index.
type DocumentScanner interface {
	CountDocuments(ctx context.Context, index string) (int, error)
	ScanDocuments(ctx context.Context, q db.ScanQuery, fn func(domain.Document) error) error
}

// DocumentWriter applies merge updates.
type DocumentWriter interface {
	MergeDocuments(ctx context.Context, index, keyField string, patches []domain.VectorPatch) error
}

// Generator turns text into a vector.
type Generator interface {
	Generate(ctx context.Context, text string) ([]float32, error)
}
