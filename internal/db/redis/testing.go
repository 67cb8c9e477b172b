package redis

import (
	"github.com/redis/rueidis"

	"github.com/kailas-cloud/vecmigrate/internal/db"
)

// NewStoreForTest creates a Store with the provided rueidis client (test-only).
// Storage follows each index's key_type.
func NewStoreForTest(c rueidis.Client) *Store {
	return &Store{client: c, layouts: make(map[string]db.StorageType)}
}
