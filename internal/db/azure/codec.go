package azure

import (
	"fmt"
	"maps"

	"github.com/bytedance/sonic"

	"github.com/kailas-cloud/vecmigrate/internal/domain/index"
)

// The service replaces the whole definition on PUT, so every property that is
// not modeled is kept in an Extra map on decode and written back on encode.

func decodeSchema(data []byte) (index.Schema, error) {
	var raw map[string]any
	if err := sonic.ConfigStd.Unmarshal(data, &raw); err != nil {
		return index.Schema{}, fmt.Errorf("decode index: %w", err)
	}
	return schemaFromMap(raw)
}

func schemaFromMap(raw map[string]any) (index.Schema, error) {
	s := index.Schema{Extra: make(map[string]any)}
	for k, v := range raw {
		switch k {
		case "name":
			s.Name, _ = v.(string)
		case "@odata.etag":
			s.ETag, _ = v.(string)
		case "@odata.context":
		case "fields":
			items, ok := v.([]any)
			if !ok {
				return index.Schema{}, fmt.Errorf("fields: expected array, got %T", v)
			}
			s.Fields = make([]index.Field, 0, len(items))
			for i, it := range items {
				m, ok := it.(map[string]any)
				if !ok {
					return index.Schema{}, fmt.Errorf("fields[%d]: expected object, got %T", i, it)
				}
				s.Fields = append(s.Fields, fieldFromMap(m))
			}
		case "suggesters":
			items, _ := v.([]any)
			s.Suggesters = make([]index.Suggester, 0, len(items))
			for _, it := range items {
				if m, ok := it.(map[string]any); ok {
					s.Suggesters = append(s.Suggesters, suggesterFromMap(m))
				}
			}
		case "vectorSearch":
			if m, ok := v.(map[string]any); ok {
				vs := vectorSearchFromMap(m)
				s.VectorSearch = &vs
			}
		default:
			s.Extra[k] = v
		}
	}
	return s, nil
}

func fieldFromMap(m map[string]any) index.Field {
	f := index.Field{Extra: make(map[string]any)}
	for k, v := range m {
		switch k {
		case "name":
			f.Name, _ = v.(string)
		case "type":
			t, _ := v.(string)
			f.Type = index.DataType(t)
		case "key":
			f.Key = boolPtr(v)
		case "searchable":
			f.Searchable = boolPtr(v)
		case "filterable":
			f.Filterable = boolPtr(v)
		case "retrievable":
			f.Retrievable = boolPtr(v)
		case "sortable":
			f.Sortable = boolPtr(v)
		case "facetable":
			f.Facetable = boolPtr(v)
		case "dimensions":
			f.Dimensions = toInt(v)
		case "vectorSearchProfile":
			f.VectorProfile, _ = v.(string)
		default:
			f.Extra[k] = v
		}
	}
	return f
}

func fieldToMap(f index.Field) map[string]any {
	m := cloneExtra(f.Extra)
	m["name"] = f.Name
	m["type"] = string(f.Type)
	putBool(m, "key", f.Key)
	putBool(m, "searchable", f.Searchable)
	putBool(m, "filterable", f.Filterable)
	putBool(m, "retrievable", f.Retrievable)
	putBool(m, "sortable", f.Sortable)
	putBool(m, "facetable", f.Facetable)
	if f.Dimensions > 0 {
		m["dimensions"] = f.Dimensions
	}
	if f.VectorProfile != "" {
		m["vectorSearchProfile"] = f.VectorProfile
	}
	return m
}

func suggesterFromMap(m map[string]any) index.Suggester {
	sg := index.Suggester{}
	sg.Name, _ = m["name"].(string)
	sg.SearchMode, _ = m["searchMode"].(string)
	if src, ok := m["sourceFields"].([]any); ok {
		for _, x := range src {
			if name, ok := x.(string); ok {
				sg.SourceFields = append(sg.SourceFields, name)
			}
		}
	}
	return sg
}

func vectorSearchFromMap(m map[string]any) index.VectorSearch {
	vs := index.VectorSearch{Extra: make(map[string]any)}
	for k, v := range m {
		switch k {
		case "algorithms":
			items, _ := v.([]any)
			for _, it := range items {
				if am, ok := it.(map[string]any); ok {
					vs.Algorithms = append(vs.Algorithms, algorithmFromMap(am))
				}
			}
		case "profiles":
			items, _ := v.([]any)
			for _, it := range items {
				if pm, ok := it.(map[string]any); ok {
					vs.Profiles = append(vs.Profiles, profileFromMap(pm))
				}
			}
		default:
			vs.Extra[k] = v
		}
	}
	return vs
}

func algorithmFromMap(m map[string]any) index.Algorithm {
	a := index.Algorithm{Extra: make(map[string]any)}
	for k, v := range m {
		switch k {
		case "name":
			a.Name, _ = v.(string)
		case "kind":
			kind, _ := v.(string)
			a.Kind = index.AlgorithmKind(kind)
		case "hnswParameters":
			p, ok := v.(map[string]any)
			if !ok {
				continue
			}
			metric, _ := p["metric"].(string)
			a.HNSW = &index.HNSWParameters{
				M:              toInt(p["m"]),
				EfConstruction: toInt(p["efConstruction"]),
				EfSearch:       toInt(p["efSearch"]),
				Metric:         index.Metric(metric),
			}
		case "exhaustiveKnnParameters":
			if p, ok := v.(map[string]any); ok {
				metric, _ := p["metric"].(string)
				a.Metric = index.Metric(metric)
			}
		default:
			a.Extra[k] = v
		}
	}
	return a
}

func profileFromMap(m map[string]any) index.Profile {
	p := index.Profile{Extra: make(map[string]any)}
	for k, v := range m {
		switch k {
		case "name":
			p.Name, _ = v.(string)
		case "algorithm":
			p.Algorithm, _ = v.(string)
		default:
			p.Extra[k] = v
		}
	}
	return p
}

func schemaToMap(s index.Schema) map[string]any {
	m := cloneExtra(s.Extra)
	m["name"] = s.Name

	fields := make([]any, len(s.Fields))
	for i, f := range s.Fields {
		fields[i] = fieldToMap(f)
	}
	m["fields"] = fields

	if s.Suggesters != nil {
		sgs := make([]any, len(s.Suggesters))
		for i, sg := range s.Suggesters {
			src := sg.SourceFields
			if src == nil {
				src = []string{}
			}
			sgs[i] = map[string]any{
				"name":         sg.Name,
				"searchMode":   sg.SearchMode,
				"sourceFields": src,
			}
		}
		m["suggesters"] = sgs
	}

	if s.VectorSearch != nil {
		m["vectorSearch"] = vectorSearchToMap(*s.VectorSearch)
	}
	return m
}

func vectorSearchToMap(vs index.VectorSearch) map[string]any {
	m := cloneExtra(vs.Extra)

	algs := make([]any, len(vs.Algorithms))
	for i, a := range vs.Algorithms {
		am := cloneExtra(a.Extra)
		am["name"] = a.Name
		am["kind"] = string(a.Kind)
		switch {
		case a.HNSW != nil:
			am["hnswParameters"] = map[string]any{
				"m":              a.HNSW.M,
				"efConstruction": a.HNSW.EfConstruction,
				"efSearch":       a.HNSW.EfSearch,
				"metric":         string(a.HNSW.Metric),
			}
		case a.Metric != "":
			am["exhaustiveKnnParameters"] = map[string]any{"metric": string(a.Metric)}
		}
		algs[i] = am
	}
	m["algorithms"] = algs

	profiles := make([]any, len(vs.Profiles))
	for i, p := range vs.Profiles {
		pm := cloneExtra(p.Extra)
		pm["name"] = p.Name
		pm["algorithm"] = p.Algorithm
		profiles[i] = pm
	}
	m["profiles"] = profiles
	return m
}

func cloneExtra(extra map[string]any) map[string]any {
	if extra == nil {
		return make(map[string]any)
	}
	return maps.Clone(extra)
}

func boolPtr(v any) *bool {
	b, ok := v.(bool)
	if !ok {
		return nil
	}
	return index.Bool(b)
}

func putBool(m map[string]any, key string, b *bool) {
	if b != nil {
		m[key] = *b
	}
}

func toInt(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	default:
		return 0
	}
}
