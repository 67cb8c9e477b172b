package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kailas-cloud/vecmigrate/internal/domain/index"
)

func validConfig() Config {
	cfg := Config{
		Search: SearchConfig{
			Driver:    DriverAzure,
			IndexName: "listings",
			Endpoint:  "https://demo.search.windows.net",
			AdminKey:  "admin",
		},
		Embedding: EmbeddingConfig{
			Provider: "azure",
			APIKey:   "key",
			BaseURL:  "https://demo.openai.azure.com",
		},
		Backfill: BackfillConfig{
			PrimaryKey:  "listingId",
			SourceField: "description",
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestValidate_OK(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing index", func(c *Config) { c.Search.IndexName = "" }, "search.index_name is required"},
		{"unknown driver", func(c *Config) { c.Search.Driver = "elastic" }, "search.driver must be"},
		{"azure without endpoint", func(c *Config) { c.Search.Endpoint = "" }, "search.endpoint is required"},
		{"azure without key", func(c *Config) { c.Search.AdminKey = "" }, "search.admin_key is required"},
		{"redis without addrs", func(c *Config) { c.Search.Driver = DriverRedis }, "search.addrs is required"},
		{"redis bad storage", func(c *Config) {
			c.Search.Driver = DriverRedis
			c.Search.Addrs = []string{"localhost:6379"}
			c.Search.Storage = "stream"
		}, `search.storage must be empty, "hash" or "json"`},
		{"unknown provider", func(c *Config) { c.Embedding.Provider = "cohere" }, "embedding.provider must be"},
		{"azure embedding without base url", func(c *Config) { c.Embedding.BaseURL = "" }, "embedding.base_url is required"},
		{"missing api key", func(c *Config) { c.Embedding.APIKey = "" }, "embedding.api_key is required"},
		{"request dimensions mismatch", func(c *Config) { c.Embedding.RequestDimensions = 256 }, "embedding.request_dimensions"},
		{"negative cache ttl", func(c *Config) { c.Embedding.Cache.TTLHours = -1 }, "ttl_hours"},
		{"bad strategy", func(c *Config) { c.Retry.Strategy = "linear" }, "retry.strategy must be"},
		{"bad jitter", func(c *Config) { c.Retry.Jitter = 1.5 }, "retry.jitter"},
		{"bad metric", func(c *Config) { c.Migration.HNSW.Metric = "manhattan" }, "unsupported vector metric"},
		{"missing primary key", func(c *Config) { c.Backfill.PrimaryKey = "" }, "backfill.primary_key is required"},
		{"missing source field", func(c *Config) { c.Backfill.SourceField = "" }, "backfill.source_field is required"},
		{"negative rps", func(c *Config) { c.Backfill.RequestsPerSecond = -1 }, "requests_per_second"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.want)
			}
		})
	}
}

func TestValidate_OpenAIWithoutBaseURL(t *testing.T) {
	cfg := validConfig()
	cfg.Embedding.Provider = "openai"
	cfg.Embedding.BaseURL = ""
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.Search.Driver != DriverAzure {
		t.Errorf("expected driver azure, got %q", cfg.Search.Driver)
	}
	if cfg.Search.ReadinessTimeoutSec != 10 {
		t.Errorf("expected ReadinessTimeoutSec=10, got %d", cfg.Search.ReadinessTimeoutSec)
	}
	if cfg.Search.Storage != "" {
		t.Errorf("storage should follow the index, got %q", cfg.Search.Storage)
	}
	if cfg.Embedding.Dimensions != 1536 {
		t.Errorf("expected Dimensions=1536, got %d", cfg.Embedding.Dimensions)
	}
	if cfg.Retry.MaxAttempts != 3 || cfg.Retry.IntervalSec != 60 || cfg.Retry.Strategy != StrategyConstant {
		t.Errorf("retry defaults = %+v", cfg.Retry)
	}
	if cfg.Migration.FieldName != "contentVector" {
		t.Errorf("expected FieldName=contentVector, got %q", cfg.Migration.FieldName)
	}
	if cfg.Migration.HNSW.M != 4 || cfg.Migration.HNSW.EfConstruction != 400 || cfg.Migration.HNSW.EfSearch != 500 {
		t.Errorf("hnsw defaults = %+v", cfg.Migration.HNSW)
	}
	if cfg.Migration.HNSW.Metric != "cosine" {
		t.Errorf("expected metric cosine, got %q", cfg.Migration.HNSW.Metric)
	}
	if cfg.Backfill.PageSize != 50 || cfg.Backfill.ReportInterval != 10 {
		t.Errorf("backfill defaults = %+v", cfg.Backfill)
	}
	if cfg.Backfill.ContinueOnError {
		t.Error("continue_on_error must default to false")
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		Search:    SearchConfig{Driver: DriverRedis, ReadinessTimeoutSec: 15},
		Retry:     RetryConfig{MaxAttempts: 5, IntervalSec: 2},
		Migration: MigrationConfig{FieldName: "embedding", HNSW: HNSWConfig{M: 16}},
		Backfill:  BackfillConfig{PageSize: 200},
	}
	cfg.ApplyDefaults()

	if cfg.Search.Driver != DriverRedis {
		t.Errorf("expected driver redis, got %q", cfg.Search.Driver)
	}
	if cfg.Search.ReadinessTimeoutSec != 15 {
		t.Errorf("expected ReadinessTimeoutSec=15, got %d", cfg.Search.ReadinessTimeoutSec)
	}
	if cfg.Retry.MaxAttempts != 5 || cfg.Retry.IntervalSec != 2 {
		t.Errorf("retry = %+v", cfg.Retry)
	}
	if cfg.Migration.FieldName != "embedding" || cfg.Migration.HNSW.M != 16 {
		t.Errorf("migration = %+v", cfg.Migration)
	}
	if cfg.Backfill.PageSize != 200 {
		t.Errorf("expected PageSize=200, got %d", cfg.Backfill.PageSize)
	}
}

func TestVectorFieldSpec_DefaultsMatchDomain(t *testing.T) {
	cfg := validConfig()
	got := cfg.VectorFieldSpec()
	want := index.DefaultVectorFieldSpec()

	if got != want {
		t.Errorf("spec = %+v, want %+v", got, want)
	}
}

func TestRetryPolicy(t *testing.T) {
	cfg := validConfig()
	p := cfg.RetryPolicy()
	if p.MaxAttempts != 3 {
		t.Errorf("expected 3 attempts, got %d", p.MaxAttempts)
	}
	if d := p.Backoff().NextBackOff(); d != 60*time.Second {
		t.Errorf("expected constant 60s, got %v", d)
	}

	cfg.Retry.Strategy = StrategyExponential
	cfg.Retry.IntervalSec = 0.5
	p = cfg.RetryPolicy()
	b := p.Backoff()
	if d := b.NextBackOff(); d != 500*time.Millisecond {
		t.Errorf("expected first wait 500ms, got %v", d)
	}
	if d := b.NextBackOff(); d != time.Second {
		t.Errorf("expected second wait 1s, got %v", d)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("VECMIGRATE_TEST_KEY", "secret")

	got := string(expandEnvVars([]byte("a: ${VECMIGRATE_TEST_KEY}\nb: ${VECMIGRATE_TEST_UNSET:-fallback}\nc: ${VECMIGRATE_TEST_UNSET}")))
	want := "a: secret\nb: fallback\nc: "
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestLoadFile(t *testing.T) {
	t.Setenv("VECMIGRATE_TEST_ADMIN_KEY", "from-env")

	yml := `
search:
  driver: redis
  index_name: listings
  addrs: ["localhost:6379"]
  storage: json
embedding:
  provider: openai
  api_key: ${VECMIGRATE_TEST_ADMIN_KEY}
  model: text-embedding-3-small
retry:
  max_attempts: 4
backfill:
  primary_key: listingId
  source_field: description
  continue_on_error: true
metrics:
  addr: ":9090"
`
	path := filepath.Join(t.TempDir(), "test.yaml")
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Search.Storage != "json" || cfg.Search.Addrs[0] != "localhost:6379" {
		t.Errorf("search = %+v", cfg.Search)
	}
	if cfg.Embedding.APIKey != "from-env" {
		t.Errorf("expected expanded api key, got %q", cfg.Embedding.APIKey)
	}
	if cfg.Retry.MaxAttempts != 4 {
		t.Errorf("expected 4 attempts, got %d", cfg.Retry.MaxAttempts)
	}
	if !cfg.Backfill.ContinueOnError {
		t.Error("expected continue_on_error")
	}
	if cfg.Metrics.Addr != ":9090" {
		t.Errorf("expected metrics addr, got %q", cfg.Metrics.Addr)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte("search:\n  driver: azure\n"))
	if err == nil || !strings.Contains(err.Error(), "invalid config") {
		t.Fatalf("expected invalid config error, got %v", err)
	}
}
