package azure

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"

	"github.com/kailas-cloud/vecmigrate/internal/db"
	"github.com/kailas-cloud/vecmigrate/internal/domain"
)

const (
	defaultPageSize = 50
	maxPageSize     = 1000
)

type searchRequest struct {
	Search  string `json:"search"`
	Select  string `json:"select,omitempty"`
	Filter  string `json:"filter,omitempty"`
	OrderBy string `json:"orderby,omitempty"`
	Top     int    `json:"top"`
	Skip    int    `json:"skip,omitempty"`
	Count   bool   `json:"count,omitempty"`
}

type searchResponse struct {
	Count *int64           `json:"@odata.count"`
	Value []map[string]any `json:"value"`
}

type indexBatch struct {
	Value []map[string]any `json:"value"`
}

type indexResult struct {
	Key          string `json:"key"`
	Status       bool   `json:"status"`
	ErrorMessage string `json:"errorMessage"`
	StatusCode   int    `json:"statusCode"`
}

type indexResponse struct {
	Value []indexResult `json:"value"`
}

// CountDocuments asks the service for the match count of "*".
func (s *Store) CountDocuments(ctx context.Context, idx string) (int, error) {
	resp, err := s.search(ctx, idx, searchRequest{Search: "*", Top: 0, Count: true})
	if err != nil {
		return 0, err
	}
	if resp.Count == nil {
		return 0, &db.Error{Op: db.OpSearchDocs, Err: errors.New("response has no @odata.count")}
	}
	return int(*resp.Count), nil
}

// ScanDocuments calls fn once per document, projected to the key and text fields.
// A null text field reads as empty text.
//
// Merging a vector re-indexes a document and moves it within an unordered "*"
// result, so offset paging is never interleaved with fn. When the key field is
// sortable and filterable the scan pages by key ($orderby key, $filter key gt last),
// which merges cannot disturb. Otherwise every pair is read before fn is first called.
func (s *Store) ScanDocuments(ctx context.Context, q db.ScanQuery, fn func(domain.Document) error) error {
	if q.KeyField == "" || q.TextField == "" {
		return errors.New("scan requires key and text fields")
	}
	pageSize := q.PageSize
	switch {
	case pageSize <= 0:
		pageSize = defaultPageSize
	case pageSize > maxPageSize:
		pageSize = maxPageSize
	}

	schema, err := s.GetIndex(ctx, q.Index)
	if err != nil {
		return err
	}
	key, ok := schema.Field(q.KeyField)
	if !ok {
		return &db.Error{Op: db.OpSearchDocs, Err: fmt.Errorf("index %s has no field %s", q.Index, q.KeyField)}
	}

	if isTrue(key.Sortable) && isTrue(key.Filterable) {
		return s.scanByKey(ctx, q, pageSize, fn)
	}

	docs, err := s.snapshot(ctx, q, pageSize)
	if err != nil {
		return err
	}
	for _, d := range docs {
		if err := fn(d); err != nil {
			return err
		}
	}
	return nil
}

// scanByKey pages in key order, resuming after the last key seen.
func (s *Store) scanByKey(ctx context.Context, q db.ScanQuery, pageSize int, fn func(domain.Document) error) error {
	req := searchRequest{
		Search:  "*",
		Select:  strings.Join([]string{q.KeyField, q.TextField}, ","),
		OrderBy: q.KeyField + " asc",
		Top:     pageSize,
	}
	for {
		resp, err := s.search(ctx, q.Index, req)
		if err != nil {
			return err
		}
		docs, err := toDocuments(resp.Value, q)
		if err != nil {
			return err
		}
		for _, d := range docs {
			if err := fn(d); err != nil {
				return err
			}
		}
		if len(docs) < pageSize {
			return nil
		}
		req.Filter = fmt.Sprintf("%s gt '%s'", q.KeyField, strings.ReplaceAll(docs[len(docs)-1].Key, "'", "''"))
	}
}

// snapshot reads every document by offset before anything is written.
func (s *Store) snapshot(ctx context.Context, q db.ScanQuery, pageSize int) ([]domain.Document, error) {
	req := searchRequest{
		Search: "*",
		Select: strings.Join([]string{q.KeyField, q.TextField}, ","),
		Top:    pageSize,
	}
	var all []domain.Document
	for {
		resp, err := s.search(ctx, q.Index, req)
		if err != nil {
			return nil, err
		}
		docs, err := toDocuments(resp.Value, q)
		if err != nil {
			return nil, err
		}
		all = append(all, docs...)
		if len(docs) < pageSize {
			return all, nil
		}
		req.Skip += len(docs)
	}
}

func toDocuments(values []map[string]any, q db.ScanQuery) ([]domain.Document, error) {
	docs := make([]domain.Document, 0, len(values))
	for _, v := range values {
		key := stringValue(v[q.KeyField])
		if key == "" {
			return nil, &db.Error{Op: db.OpSearchDocs, Err: fmt.Errorf("document without %s", q.KeyField)}
		}
		docs = append(docs, domain.Document{Key: key, Text: stringValue(v[q.TextField])})
	}
	return docs, nil
}

func isTrue(b *bool) bool {
	return b != nil && *b
}

func (s *Store) search(ctx context.Context, idx string, req searchRequest) (*searchResponse, error) {
	data, _, err := s.do(ctx, db.OpSearchDocs, http.MethodPost, indexPath(idx)+"/docs/search", req, nil)
	if err != nil {
		return nil, err
	}
	var resp searchResponse
	if err := sonic.ConfigStd.Unmarshal(data, &resp); err != nil {
		return nil, &db.Error{Op: db.OpSearchDocs, Err: fmt.Errorf("decode response: %w", err)}
	}
	return &resp, nil
}

// MergeDocuments sends one merge action per patch. Each action carries only the
// key and the vector field. A per-document failure in a 200/207 reply is an error.
func (s *Store) MergeDocuments(ctx context.Context, idx, keyField string, patches []domain.VectorPatch) error {
	if len(patches) == 0 {
		return nil
	}

	batch := indexBatch{Value: make([]map[string]any, len(patches))}
	for i, p := range patches {
		batch.Value[i] = map[string]any{
			"@search.action": "merge",
			keyField:         p.Key,
			p.Field:          p.Vector,
		}
	}

	data, _, err := s.do(ctx, db.OpIndexDocs, http.MethodPost, indexPath(idx)+"/docs/index", batch, nil)
	if err != nil {
		return err
	}

	var resp indexResponse
	if err := sonic.ConfigStd.Unmarshal(data, &resp); err != nil {
		return &db.Error{Op: db.OpIndexDocs, Err: fmt.Errorf("decode response: %w", err)}
	}
	var failed []string
	for _, r := range resp.Value {
		if !r.Status {
			failed = append(failed, fmt.Sprintf("%s (%d): %s", r.Key, r.StatusCode, r.ErrorMessage))
		}
	}
	if len(failed) > 0 {
		return &db.Error{Op: db.OpIndexDocs, Err: fmt.Errorf("merge failed for %s", strings.Join(failed, "; "))}
	}
	return nil
}

func stringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}
