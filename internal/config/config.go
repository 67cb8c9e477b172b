package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/vecmigrate/internal/domain/index"
	"github.com/kailas-cloud/vecmigrate/internal/retry"
)

// Search drivers.
const (
	DriverAzure = "azure"
	DriverRedis = "redis"
)

// Retry strategies.
const (
	StrategyConstant    = "constant"
	StrategyExponential = "exponential"
)

// Config holds the vecmigrate job configuration.
type Config struct {
	Search    SearchConfig    `yaml:"search"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Retry     RetryConfig     `yaml:"retry"`
	Migration MigrationConfig `yaml:"migration"`
	Backfill  BackfillConfig  `yaml:"backfill"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// MetricsConfig holds the metrics endpoint settings. An empty Addr disables the endpoint.
type MetricsConfig struct {
	Addr         string   `yaml:"addr"`
	BearerTokens []string `yaml:"bearer_tokens"` // empty = no auth
}

// SearchConfig selects and configures the search backend.
type SearchConfig struct {
	Driver    string `yaml:"driver"` // azure, redis (default: azure)
	IndexName string `yaml:"index_name"`

	// azure
	Endpoint   string `yaml:"endpoint"`
	AdminKey   string `yaml:"admin_key"`
	APIVersion string `yaml:"api_version"`

	// redis
	Addrs    []string `yaml:"addrs"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	Storage  string   `yaml:"storage"` // hash, json (default: the index's key_type)

	TimeoutSec          int `yaml:"timeout_sec"`
	ReadinessTimeoutSec int `yaml:"readiness_timeout_sec"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"` // azure, openai (default: azure)
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	APIVersion string `yaml:"api_version"`
	// Model is the model name, or the deployment name for azure.
	Model string `yaml:"model"`
	// Dimensions is the expected vector length.
	Dimensions int `yaml:"dimensions"`
	// RequestDimensions is sent to the provider when positive (text-embedding-3 models only).
	RequestDimensions int         `yaml:"request_dimensions"`
	Instruction       string      `yaml:"instruction"`
	TimeoutSec        int         `yaml:"timeout_sec"`
	Cache             CacheConfig `yaml:"cache"`
}

// CacheConfig holds the embedding cache settings. No addrs means no cache.
type CacheConfig struct {
	Addrs    []string `yaml:"addrs"`
	Password string   `yaml:"password"`
	TTLHours int      `yaml:"ttl_hours"` // 0 = never expire
}

// RetryConfig holds the embedding retry policy.
type RetryConfig struct {
	MaxAttempts    int     `yaml:"max_attempts"`
	Strategy       string  `yaml:"strategy"`
	IntervalSec    float64 `yaml:"interval_sec"`
	MaxIntervalSec float64 `yaml:"max_interval_sec"`
	Multiplier     float64 `yaml:"multiplier"`
	Jitter         float64 `yaml:"jitter"`
}

// MigrationConfig describes the vector field to add.
type MigrationConfig struct {
	FieldName     string     `yaml:"field_name"`
	AlgorithmName string     `yaml:"algorithm_name"`
	ProfileName   string     `yaml:"profile_name"`
	HNSW          HNSWConfig `yaml:"hnsw"`
}

// HNSWConfig holds HNSW graph parameters.
type HNSWConfig struct {
	M              int    `yaml:"m"`
	EfConstruction int    `yaml:"ef_construction"`
	EfSearch       int    `yaml:"ef_search"`
	Metric         string `yaml:"metric"`
}

// BackfillConfig holds backfill settings.
type BackfillConfig struct {
	PrimaryKey        string  `yaml:"primary_key"`
	SourceField       string  `yaml:"source_field"`
	PageSize          int     `yaml:"page_size"`
	ContinueOnError   bool    `yaml:"continue_on_error"`
	RequestsPerSecond float64 `yaml:"requests_per_second"` // 0 = unpaced
	ReportInterval    int     `yaml:"report_interval"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit path.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse expands ${VAR} references, decodes YAML, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.Search.Driver == "" {
		c.Search.Driver = DriverAzure
	}
	if c.Search.TimeoutSec <= 0 {
		c.Search.TimeoutSec = 30
	}
	if c.Search.ReadinessTimeoutSec <= 0 {
		c.Search.ReadinessTimeoutSec = 10
	}

	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "azure"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-ada-002"
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 1536
	}
	if c.Embedding.TimeoutSec <= 0 {
		c.Embedding.TimeoutSec = 60
	}

	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = 3
	}
	if c.Retry.Strategy == "" {
		c.Retry.Strategy = StrategyConstant
	}
	if c.Retry.IntervalSec <= 0 {
		c.Retry.IntervalSec = 60
	}
	if c.Retry.MaxIntervalSec <= 0 {
		c.Retry.MaxIntervalSec = 300
	}
	if c.Retry.Multiplier <= 0 {
		c.Retry.Multiplier = 2
	}

	def := index.DefaultVectorFieldSpec()
	if c.Migration.FieldName == "" {
		c.Migration.FieldName = def.FieldName
	}
	if c.Migration.AlgorithmName == "" {
		c.Migration.AlgorithmName = def.AlgorithmName
	}
	if c.Migration.ProfileName == "" {
		c.Migration.ProfileName = def.ProfileName
	}
	if c.Migration.HNSW.M <= 0 {
		c.Migration.HNSW.M = def.HNSW.M
	}
	if c.Migration.HNSW.EfConstruction <= 0 {
		c.Migration.HNSW.EfConstruction = def.HNSW.EfConstruction
	}
	if c.Migration.HNSW.EfSearch <= 0 {
		c.Migration.HNSW.EfSearch = def.HNSW.EfSearch
	}
	if c.Migration.HNSW.Metric == "" {
		c.Migration.HNSW.Metric = string(def.HNSW.Metric)
	}

	if c.Backfill.PageSize <= 0 {
		c.Backfill.PageSize = 50
	}
	if c.Backfill.ReportInterval <= 0 {
		c.Backfill.ReportInterval = 10
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.Search.IndexName == "" {
		return fmt.Errorf("search.index_name is required")
	}
	switch c.Search.Driver {
	case DriverAzure:
		if c.Search.Endpoint == "" {
			return fmt.Errorf("search.endpoint is required for the azure driver")
		}
		if c.Search.AdminKey == "" {
			return fmt.Errorf("search.admin_key is required for the azure driver")
		}
	case DriverRedis:
		if len(c.Search.Addrs) == 0 {
			return fmt.Errorf("search.addrs is required for the redis driver")
		}
		switch strings.ToLower(c.Search.Storage) {
		case "", "hash", "json":
		default:
			return fmt.Errorf("search.storage must be empty, \"hash\" or \"json\", got %q", c.Search.Storage)
		}
	default:
		return fmt.Errorf("search.driver must be %q or %q, got %q", DriverAzure, DriverRedis, c.Search.Driver)
	}

	switch c.Embedding.Provider {
	case "azure":
		if c.Embedding.BaseURL == "" {
			return fmt.Errorf("embedding.base_url is required for the azure provider")
		}
	case "openai":
	default:
		return fmt.Errorf("embedding.provider must be \"azure\" or \"openai\", got %q", c.Embedding.Provider)
	}
	if c.Embedding.APIKey == "" {
		return fmt.Errorf("embedding.api_key is required")
	}
	if c.Embedding.RequestDimensions > 0 && c.Embedding.RequestDimensions != c.Embedding.Dimensions {
		return fmt.Errorf("embedding.request_dimensions (%d) must equal embedding.dimensions (%d)",
			c.Embedding.RequestDimensions, c.Embedding.Dimensions)
	}
	if c.Embedding.Cache.TTLHours < 0 {
		return fmt.Errorf("embedding.cache.ttl_hours must not be negative")
	}

	switch c.Retry.Strategy {
	case StrategyConstant, StrategyExponential:
	default:
		return fmt.Errorf("retry.strategy must be %q or %q, got %q", StrategyConstant, StrategyExponential, c.Retry.Strategy)
	}
	if c.Retry.Jitter < 0 || c.Retry.Jitter >= 1 {
		return fmt.Errorf("retry.jitter must be in [0, 1), got %v", c.Retry.Jitter)
	}

	if err := c.VectorFieldSpec().Validate(); err != nil {
		return fmt.Errorf("migration: %w", err)
	}

	if c.Backfill.PrimaryKey == "" {
		return fmt.Errorf("backfill.primary_key is required")
	}
	if c.Backfill.SourceField == "" {
		return fmt.Errorf("backfill.source_field is required")
	}
	if c.Backfill.RequestsPerSecond < 0 {
		return fmt.Errorf("backfill.requests_per_second must not be negative")
	}
	return nil
}

// VectorFieldSpec returns the vector field the migration adds.
func (c *Config) VectorFieldSpec() index.VectorFieldSpec {
	return index.VectorFieldSpec{
		FieldName:     c.Migration.FieldName,
		Dimensions:    c.Embedding.Dimensions,
		AlgorithmName: c.Migration.AlgorithmName,
		ProfileName:   c.Migration.ProfileName,
		HNSW: index.HNSWParameters{
			M:              c.Migration.HNSW.M,
			EfConstruction: c.Migration.HNSW.EfConstruction,
			EfSearch:       c.Migration.HNSW.EfSearch,
			Metric:         index.Metric(c.Migration.HNSW.Metric),
		},
	}
}

// RetryPolicy returns the embedding retry policy.
func (c *Config) RetryPolicy() retry.Policy {
	interval := seconds(c.Retry.IntervalSec)
	backoff := retry.Constant(interval)
	if c.Retry.Strategy == StrategyExponential {
		backoff = retry.Exponential(interval, seconds(c.Retry.MaxIntervalSec), c.Retry.Multiplier, c.Retry.Jitter)
	}
	return retry.Policy{MaxAttempts: c.Retry.MaxAttempts, Backoff: backoff}
}

// SearchTimeout returns the per-request timeout of the search backend.
func (c *Config) SearchTimeout() time.Duration {
	return time.Duration(c.Search.TimeoutSec) * time.Second
}

// ReadinessTimeout returns how long startup waits for the search backend.
func (c *Config) ReadinessTimeout() time.Duration {
	return time.Duration(c.Search.ReadinessTimeoutSec) * time.Second
}

// CacheTTL returns the embedding cache TTL; zero means entries never expire.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Embedding.Cache.TTLHours) * time.Hour
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
