// Package azure implements db.Store over the Azure AI Search REST API.
package azure

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/kailas-cloud/vecmigrate/internal/db"
)

// DefaultAPIVersion is the first GA version with named vector profiles.
const DefaultAPIVersion = "2023-11-01"

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

// Config holds connection parameters for a search service.
type Config struct {
	Endpoint   string // https://<service>.search.windows.net
	AdminKey   string
	APIVersion string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Store talks to one search service.
type Store struct {
	endpoint   string
	adminKey   string
	apiVersion string
	client     *http.Client
}

// NewStore validates cfg and creates a Store.
func NewStore(cfg Config) (*Store, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("endpoint is required")
	}
	u, err := url.Parse(cfg.Endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid endpoint %q", cfg.Endpoint)
	}
	if cfg.AdminKey == "" {
		return nil, errors.New("admin key is required")
	}

	version := cfg.APIVersion
	if version == "" {
		version = DefaultAPIVersion
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	return &Store{
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		adminKey:   cfg.AdminKey,
		apiVersion: version,
		client:     client,
	}, nil
}

// APIError is a non-2xx response from the service.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("status %d: %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Message)
}

// Ping checks connectivity and credentials via the service statistics endpoint.
func (s *Store) Ping(ctx context.Context) error {
	if _, _, err := s.do(ctx, db.OpServiceStat, http.MethodGet, "/servicestats", nil, nil); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close releases idle connections.
func (s *Store) Close() {
	s.client.CloseIdleConnections()
}

// WaitForReady polls Ping until the service responds or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		if err := s.Ping(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for search service: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

func (s *Store) url(path string) string {
	return s.endpoint + path + "?api-version=" + url.QueryEscape(s.apiVersion)
}

// do sends one request. body is encoded with sonic; the raw response body is returned.
// 404 maps to db.ErrIndexNotFound and 412 to db.ErrPreconditionFailed.
func (s *Store) do(
	ctx context.Context, op, method, path string, body any, header http.Header,
) ([]byte, http.Header, error) {
	var reader io.Reader
	if body != nil {
		data, err := sonic.ConfigStd.Marshal(body)
		if err != nil {
			return nil, nil, fmt.Errorf("encode %s request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.url(path), reader)
	if err != nil {
		return nil, nil, &db.Error{Op: op, Err: err}
	}
	req.Header.Set("api-key", s.adminKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, nil, &db.Error{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, &db.Error{Op: op, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode >= http.StatusMultipleChoices {
		apiErr := parseAPIError(resp.StatusCode, data)
		switch resp.StatusCode {
		case http.StatusNotFound:
			return nil, resp.Header, &db.Error{Op: op, Err: fmt.Errorf("%w: %w", db.ErrIndexNotFound, apiErr)}
		case http.StatusPreconditionFailed:
			return nil, resp.Header, &db.Error{Op: op, Err: fmt.Errorf("%w: %w", db.ErrPreconditionFailed, apiErr)}
		default:
			return nil, resp.Header, &db.Error{Op: op, Err: apiErr}
		}
	}
	return data, resp.Header, nil
}

func parseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Message: http.StatusText(status)}
	var parsed struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if len(body) > 0 && sonic.ConfigStd.Unmarshal(body, &parsed) == nil && parsed.Error.Message != "" {
		apiErr.Code = parsed.Error.Code
		apiErr.Message = parsed.Error.Message
	}
	return apiErr
}
