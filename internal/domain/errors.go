package domain

import "errors"

var (
	// ErrInvalidSchema signals an invalid index definition.
	ErrInvalidSchema = errors.New("invalid schema")
	// ErrVectorDimMismatch signals an embedding whose length differs from the vector field.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")

	// ErrEmbeddingProviderError signals any embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrEmbeddingAPI signals a server-side API error (5xx, 408, 409).
	ErrEmbeddingAPI = errors.New("embedding api error")
	// ErrEmbeddingConnection signals a transport failure before a response arrived.
	ErrEmbeddingConnection = errors.New("embedding connection error")
	// ErrEmbeddingRateLimited signals a 429 from the provider.
	ErrEmbeddingRateLimited = errors.New("embedding rate limited")
	// ErrEmbeddingRejected signals a request the provider refuses outright (4xx other than 408/409/429).
	ErrEmbeddingRejected = errors.New("embedding request rejected")
)

// IsTransientEmbeddingError reports whether err belongs to a category worth retrying.
func IsTransientEmbeddingError(err error) bool {
	return errors.Is(err, ErrEmbeddingAPI) ||
		errors.Is(err, ErrEmbeddingConnection) ||
		errors.Is(err, ErrEmbeddingRateLimited)
}

// EmbeddingErrorReason returns a short label for metrics and logs.
func EmbeddingErrorReason(err error) string {
	switch {
	case errors.Is(err, ErrEmbeddingRateLimited):
		return "rate_limit"
	case errors.Is(err, ErrEmbeddingConnection):
		return "connection"
	case errors.Is(err, ErrEmbeddingAPI):
		return "api_error"
	case errors.Is(err, ErrEmbeddingRejected):
		return "rejected"
	case errors.Is(err, ErrVectorDimMismatch):
		return "dimension_mismatch"
	default:
		return "other"
	}
}
