package redis

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/vecmigrate/internal/db"
	"github.com/kailas-cloud/vecmigrate/internal/domain/index"
)

// Compile-time checks: Store serves both the search backend and the embedding cache.
var (
	_ db.Store   = (*Store)(nil)
	_ db.KVStore = (*Store)(nil)
)

// Config holds connection parameters for a Redis store.
type Config struct {
	Addrs    []string
	Username string
	Password string
	DB       int
	// Storage is the expected document layout (HASH or JSON). Empty follows
	// the index's key_type.
	Storage db.StorageType
}

// Store implements db.Store via rueidis for Redis 8+.
type Store struct {
	client  rueidis.Client
	storage db.StorageType

	mu      sync.Mutex
	layouts map[string]db.StorageType
}

// NewStore creates a Redis store via rueidis.
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}

	storage, err := parseStorage(cfg.Storage)
	if err != nil {
		return nil, err
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
		AlwaysRESP2:  true, // FT.INFO and FT.AGGREGATE parsing expects RESP2 array format
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return &Store{client: client, storage: storage, layouts: make(map[string]db.StorageType)}, nil
}

func parseStorage(st db.StorageType) (db.StorageType, error) {
	switch db.StorageType(strings.ToUpper(string(st))) {
	case "":
		return "", nil
	case db.StorageHash:
		return db.StorageHash, nil
	case db.StorageJSON:
		return db.StorageJSON, nil
	default:
		return "", fmt.Errorf("unsupported storage type %q", st)
	}
}

// Layout returns the document storage of idx, read once from FT.INFO key_type.
// A configured storage that disagrees with the index is db.ErrSchemaConflict.
func (s *Store) Layout(ctx context.Context, idx string) (db.StorageType, error) {
	s.mu.Lock()
	st, ok := s.layouts[idx]
	s.mu.Unlock()
	if ok {
		return st, nil
	}

	schema, err := s.GetIndex(ctx, idx)
	if err != nil {
		return "", err
	}
	st, err = s.resolveStorage(schema)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.layouts[idx] = st
	s.mu.Unlock()
	return st, nil
}

// resolveStorage prefers the index's key_type and falls back to the configured storage, then HASH.
func (s *Store) resolveStorage(schema index.Schema) (db.StorageType, error) {
	kt, _ := schema.Extra[extraKeyType].(string)
	indexed := db.StorageType(strings.ToUpper(kt))
	switch {
	case indexed == "" && s.storage == "":
		return db.StorageHash, nil
	case indexed == "":
		return s.storage, nil
	case s.storage != "" && s.storage != indexed:
		return "", fmt.Errorf("%w: index %s stores %s documents, storage is configured as %s",
			db.ErrSchemaConflict, schema.Name, indexed, s.storage)
	}
	return indexed, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	cmd := s.client.B().Ping().Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close shuts down the client.
func (s *Store) Close() {
	s.client.Close()
}

// WaitForReady polls Ping until the store responds or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for database: %w", ctx.Err())
		case <-ticker.C:
			if err := s.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}

func (s *Store) do(ctx context.Context, cmd rueidis.Completed) rueidis.RedisResult {
	return s.client.Do(ctx, cmd)
}

func (s *Store) b() rueidis.Builder {
	return s.client.B()
}

// isRedisErr checks if err is a Redis server error containing substr (case-insensitive).
func isRedisErr(err error, substr string) bool {
	re, ok := rueidis.IsRedisErr(err)
	if !ok {
		return false
	}
	return containsIgnoreCase(re.Error(), substr)
}

func isUnknownIndex(err error) bool {
	return isRedisErr(err, "unknown index name") || isRedisErr(err, "no such index")
}

func containsIgnoreCase(s, substr string) bool {
	ls := len(s)
	lsub := len(substr)
	if lsub > ls {
		return false
	}
	for i := 0; i <= ls-lsub; i++ {
		match := true
		for j := 0; j < lsub; j++ {
			sc := s[i+j]
			tc := substr[j]
			if sc >= 'A' && sc <= 'Z' {
				sc += 'a' - 'A'
			}
			if tc >= 'A' && tc <= 'Z' {
				tc += 'a' - 'A'
			}
			if sc != tc {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
