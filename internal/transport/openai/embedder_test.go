package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecmigrate/internal/domain"
	"github.com/kailas-cloud/vecmigrate/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.Register()
	os.Exit(m.Run())
}

type embeddingData struct {
	Object    string    `json:"object"`
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

// openaiEmbeddingResponse mirrors the OpenAI-compatible API embedding response.
type openaiEmbeddingResponse struct {
	Object string          `json:"object"`
	Data   []embeddingData `json:"data"`
	Model  string          `json:"model"`
	Usage  struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

func writeEmbedding(w http.ResponseWriter, vec []float32) {
	resp := openaiEmbeddingResponse{Object: "list", Model: "text-embedding-ada-002"}
	if vec != nil {
		resp.Data = []embeddingData{{Object: "embedding", Embedding: vec}}
	}
	resp.Usage.PromptTokens = 7
	resp.Usage.TotalTokens = 7
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"message": message, "type": "error"},
	})
}

func TestEmbedder_Embed(t *testing.T) {
	expectedVec := []float32{0.1, 0.2, 0.3, 0.4}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("unexpected auth header: %s", r.Header.Get("Authorization"))
		}
		writeEmbedding(w, expectedVec)
	}))
	defer server.Close()

	emb := NewEmbedder(&Config{
		Provider: ProviderOpenAI,
		APIKey:   "test-key",
		BaseURL:  server.URL,
		Model:    "text-embedding-ada-002",
		Logger:   zap.NewNop(),
	})

	result, err := emb.Embed(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(result.Embedding) != len(expectedVec) {
		t.Fatalf("expected %d dimensions, got %d", len(expectedVec), len(result.Embedding))
	}
	for i, v := range result.Embedding {
		if v != expectedVec[i] {
			t.Errorf("vec[%d] = %f, expected %f", i, v, expectedVec[i])
		}
	}
	if result.TotalTokens != 7 {
		t.Errorf("expected 7 total tokens, got %d", result.TotalTokens)
	}
}

func TestEmbedder_AzureDeployment(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/openai/deployments/ada-prod/embeddings" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("api-version"); got != "2023-05-15" {
			t.Errorf("unexpected api-version: %q", got)
		}
		if r.Header.Get("api-key") != "azure-key" {
			t.Errorf("unexpected api-key header: %q", r.Header.Get("api-key"))
		}
		writeEmbedding(w, []float32{0.5, 0.5})
	}))
	defer server.Close()

	emb := NewEmbedder(&Config{
		Provider:   ProviderAzure,
		APIKey:     "azure-key",
		BaseURL:    server.URL,
		APIVersion: "2023-05-15",
		Model:      "ada-prod",
		Logger:     zap.NewNop(),
	})

	result, err := emb.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(result.Embedding) != 2 {
		t.Errorf("expected 2 dimensions, got %d", len(result.Embedding))
	}
}

func TestEmbedder_ErrorCategories(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		want      error
		transient bool
	}{
		{"rate limit", http.StatusTooManyRequests, domain.ErrEmbeddingRateLimited, true},
		{"server error", http.StatusInternalServerError, domain.ErrEmbeddingAPI, true},
		{"unavailable", http.StatusServiceUnavailable, domain.ErrEmbeddingAPI, true},
		{"bad request", http.StatusBadRequest, domain.ErrEmbeddingRejected, false},
		{"unauthorized", http.StatusUnauthorized, domain.ErrEmbeddingRejected, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				writeError(w, tc.status, tc.name)
			}))
			defer server.Close()

			emb := NewEmbedder(&Config{APIKey: "k", BaseURL: server.URL, Model: "m", Logger: zap.NewNop()})

			_, err := emb.Embed(context.Background(), "hello")
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if !errors.Is(err, domain.ErrEmbeddingProviderError) {
				t.Errorf("expected provider error wrap, got %v", err)
			}
			if domain.IsTransientEmbeddingError(err) != tc.transient {
				t.Errorf("transient = %v, want %v", !tc.transient, tc.transient)
			}
		})
	}
}

func TestEmbedder_ConnectionError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	emb := NewEmbedder(&Config{APIKey: "k", BaseURL: url, Model: "m", Logger: zap.NewNop()})

	_, err := emb.Embed(context.Background(), "hello")
	if !errors.Is(err, domain.ErrEmbeddingConnection) {
		t.Fatalf("expected connection error, got %v", err)
	}
}

func TestEmbedder_CanceledContextIsNotTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeEmbedding(w, []float32{1})
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	emb := NewEmbedder(&Config{APIKey: "k", BaseURL: server.URL, Model: "m", Logger: zap.NewNop()})

	_, err := emb.Embed(ctx, "hello")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if domain.IsTransientEmbeddingError(err) {
		t.Error("cancellation must not be retried")
	}
}

func TestEmbedder_EmptyResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeEmbedding(w, nil)
	}))
	defer server.Close()

	emb := NewEmbedder(&Config{APIKey: "k", BaseURL: server.URL, Model: "m", Logger: zap.NewNop()})

	_, err := emb.Embed(context.Background(), "")
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Fatalf("expected provider error, got %v", err)
	}
	if domain.IsTransientEmbeddingError(err) {
		t.Error("empty response must not be retried")
	}
}
