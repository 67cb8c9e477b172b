package db

import (
	"context"
	"time"

	"github.com/kailas-cloud/vecmigrate/internal/domain"
	"github.com/kailas-cloud/vecmigrate/internal/domain/index"
)

// Store is the search backend facade combining all sub-interfaces.
type Store interface {
	Pinger
	IndexManager
	DocumentScanner
	DocumentWriter
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks backend connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// IndexManager reads and replaces index definitions.
type IndexManager interface {
	// GetIndex returns the current definition or ErrIndexNotFound.
	GetIndex(ctx context.Context, name string) (index.Schema, error)
	// CreateOrUpdateIndex submits the full definition. A non-empty ETag is used
	// as a precondition where the backend supports one.
	CreateOrUpdateIndex(ctx context.Context, schema index.Schema) (index.Schema, error)
}

// ScanQuery selects the documents of an index for a full pass.
type ScanQuery struct {
	Index     string
	KeyField  string
	TextField string
	PageSize  int
}

// DocumentScanner iterates every document of an index.
type DocumentScanner interface {
	CountDocuments(ctx context.Context, index string) (int, error)
	// ScanDocuments calls fn once per document, projected to key and text.
	// A non-nil error from fn stops the scan and is returned as is.
	ScanDocuments(ctx context.Context, q ScanQuery, fn func(domain.Document) error) error
}

// DocumentWriter applies partial updates. Fields absent from a patch are left untouched.
type DocumentWriter interface {
	MergeDocuments(ctx context.Context, index, keyField string, patches []domain.VectorPatch) error
}

// KVStore provides simple key-value operations.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
