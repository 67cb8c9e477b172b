package health

import (
	"context"
	"errors"
	"fmt"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
	// Unhealthy indicates every check failed.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Check names.
const (
	CheckSearch    = "search"
	CheckIndex     = "index"
	CheckEmbedding = "embedding"
)

// Report aggregates health check results. Errors holds the message of each failing check.
type Report struct {
	Status Status
	Checks map[string]CheckResult
	Errors map[string]string
}

// Service coordinates health checks.
type Service struct {
	search    SearchBackend
	indexName string
	embedding EmbeddingChecker
}

// New creates a Service. embedding can be nil; an empty indexName skips the index check.
func New(search SearchBackend, indexName string, embedding EmbeddingChecker) *Service {
	return &Service{search: search, indexName: indexName, embedding: embedding}
}

// Check pings the search backend, looks up the target index and calls the embedding provider.
func (s *Service) Check(ctx context.Context) Report {
	r := Report{Checks: make(map[string]CheckResult), Errors: make(map[string]string)}

	searchErr := s.search.Ping(ctx)
	r.record(CheckSearch, searchErr)

	if s.indexName != "" {
		if searchErr != nil {
			r.record(CheckIndex, errors.New("skipped: search backend unavailable"))
		} else {
			schema, err := s.search.GetIndex(ctx, s.indexName)
			if err == nil && len(schema.Fields) == 0 {
				err = fmt.Errorf("index %s has no fields", s.indexName)
			}
			r.record(CheckIndex, err)
		}
	}

	if s.embedding != nil {
		r.record(CheckEmbedding, s.embedding.HealthCheck(ctx))
	}

	failed := len(r.Errors)
	switch {
	case failed == 0:
		r.Status = Healthy
	case failed == len(r.Checks):
		r.Status = Unhealthy
	default:
		r.Status = Degraded
	}
	return r
}

func (r *Report) record(name string, err error) {
	if err != nil {
		r.Checks[name] = CheckError
		r.Errors[name] = err.Error()
		return
	}
	r.Checks[name] = CheckOK
}
