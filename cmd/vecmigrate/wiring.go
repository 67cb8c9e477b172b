package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecmigrate/internal/config"
	"github.com/kailas-cloud/vecmigrate/internal/db"
	dbAzure "github.com/kailas-cloud/vecmigrate/internal/db/azure"
	dbRedis "github.com/kailas-cloud/vecmigrate/internal/db/redis"
	"github.com/kailas-cloud/vecmigrate/internal/domain"
	"github.com/kailas-cloud/vecmigrate/internal/metrics"
	"github.com/kailas-cloud/vecmigrate/internal/repository/embcache"
	openaiEmb "github.com/kailas-cloud/vecmigrate/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/vecmigrate/internal/usecase/embedding"
)

// newStore creates the search backend selected by search.driver.
func newStore(cfg config.Config) (db.Store, error) {
	switch cfg.Search.Driver {
	case config.DriverAzure:
		return dbAzure.NewStore(dbAzure.Config{
			Endpoint:   cfg.Search.Endpoint,
			AdminKey:   cfg.Search.AdminKey,
			APIVersion: cfg.Search.APIVersion,
			Timeout:    cfg.SearchTimeout(),
		})
	case config.DriverRedis:
		return dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Search.Addrs,
			Username: cfg.Search.Username,
			Password: cfg.Search.Password,
			Storage:  db.StorageType(strings.ToUpper(cfg.Search.Storage)),
		})
	default:
		return nil, fmt.Errorf("unknown search driver %q", cfg.Search.Driver)
	}
}

// openStore creates the store and waits until it answers.
func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (db.Store, error) {
	store, err := newStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("create search store: %w", err)
	}
	if err := store.WaitForReady(ctx, cfg.ReadinessTimeout()); err != nil {
		store.Close()
		return nil, fmt.Errorf("search backend not ready: %w", err)
	}
	if err := checkLayout(ctx, store, cfg.Search.IndexName); err != nil {
		store.Close()
		return nil, err
	}
	logger.Info("Connected to search backend", zap.String("driver", cfg.Search.Driver))
	return store, nil
}

// layouter is a store whose documents have a per-index storage layout.
type layouter interface {
	Layout(ctx context.Context, idx string) (db.StorageType, error)
}

// checkLayout fails when the configured storage disagrees with an existing index.
func checkLayout(ctx context.Context, store db.Store, idx string) error {
	l, ok := store.(layouter)
	if !ok {
		return nil
	}
	if _, err := l.Layout(ctx, idx); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
		return fmt.Errorf("search storage: %w", err)
	}
	return nil
}

// embedderChain is the composed embedder plus whatever it holds open.
type embedderChain struct {
	domain.Embedder
	closers []func()
}

func (c *embedderChain) Close() {
	for _, fn := range c.closers {
		fn()
	}
}

// HealthCheck checks the provider through the chain.
func (c *embedderChain) HealthCheck(ctx context.Context) error {
	if hc, ok := c.Embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instruction.
// The instruction is outermost so cache keys include it.
func buildEmbedder(cfg config.Config, logger *zap.Logger) (*embedderChain, error) {
	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		Provider:   cfg.Embedding.Provider,
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		APIVersion: cfg.Embedding.APIVersion,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.RequestDimensions,
		Timeout:    time.Duration(cfg.Embedding.TimeoutSec) * time.Second,
		Logger:     logger,
	})

	chain := &embedderChain{Embedder: base}

	if cache := cfg.Embedding.Cache; len(cache.Addrs) > 0 {
		kv, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cache.Addrs,
			Password: cache.Password,
		})
		if err != nil {
			return nil, fmt.Errorf("create embedding cache: %w", err)
		}
		chain.closers = append(chain.closers, kv.Close)
		chain.Embedder = embcache.New(base, kv, embcache.Options{
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.RequestDimensions,
			TTL:        cfg.CacheTTL(),
		}, metrics.EmbeddingCacheTotal, logger)
		logger.Info("Embedding cache enabled",
			zap.Strings("addrs", cache.Addrs),
			zap.Duration("ttl", cfg.CacheTTL()),
		)
	}

	if cfg.Embedding.Instruction != "" {
		chain.Embedder = domain.NewInstructionEmbedder(chain.Embedder, cfg.Embedding.Instruction)
	}
	return chain, nil
}

// buildGenerator wraps the embedder chain with the configured retry policy.
func buildGenerator(cfg config.Config, emb domain.Embedder, logger *zap.Logger) *embeddinguc.Generator {
	return embeddinguc.NewGenerator(emb, cfg.RetryPolicy(), cfg.Embedding.Dimensions, logger)
}
