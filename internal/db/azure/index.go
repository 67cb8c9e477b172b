package azure

import (
	"context"
	"net/http"
	"net/url"

	"github.com/kailas-cloud/vecmigrate/internal/db"
	"github.com/kailas-cloud/vecmigrate/internal/domain/index"
)

// GetIndex fetches an index definition. The ETag comes from @odata.etag or the ETag header.
func (s *Store) GetIndex(ctx context.Context, name string) (index.Schema, error) {
	data, header, err := s.do(ctx, db.OpGetIndex, http.MethodGet, indexPath(name), nil, nil)
	if err != nil {
		return index.Schema{}, err
	}

	schema, err := decodeSchema(data)
	if err != nil {
		return index.Schema{}, &db.Error{Op: db.OpGetIndex, Err: err}
	}
	if schema.ETag == "" {
		schema.ETag = header.Get("ETag")
	}
	return schema, nil
}

// CreateOrUpdateIndex replaces the definition with a single PUT.
// A non-empty schema.ETag is sent as If-Match, so a concurrent change fails
// with db.ErrPreconditionFailed instead of being overwritten.
func (s *Store) CreateOrUpdateIndex(ctx context.Context, schema index.Schema) (index.Schema, error) {
	header := http.Header{}
	header.Set("Prefer", "return=representation")
	if schema.ETag != "" {
		header.Set("If-Match", schema.ETag)
	}

	data, respHeader, err := s.do(ctx, db.OpPutIndex, http.MethodPut, indexPath(schema.Name), schemaToMap(schema), header)
	if err != nil {
		return index.Schema{}, err
	}
	if len(data) == 0 {
		return s.GetIndex(ctx, schema.Name)
	}

	updated, err := decodeSchema(data)
	if err != nil {
		return index.Schema{}, &db.Error{Op: db.OpPutIndex, Err: err}
	}
	if updated.ETag == "" {
		updated.ETag = respHeader.Get("ETag")
	}
	return updated, nil
}

func indexPath(name string) string {
	return "/indexes/" + url.PathEscape(name)
}
