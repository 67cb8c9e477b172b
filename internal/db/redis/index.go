package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/vecmigrate/internal/db"
	"github.com/kailas-cloud/vecmigrate/internal/domain/index"
)

// Schema.Extra and Field.Extra keys written by GetIndex.
const (
	extraKeyType    = "key_type"
	extraPrefixes   = "prefixes"
	extraIdentifier = "identifier"
	extraRedisType  = "redis_type"
)

// GetIndex reads an FT index definition via FT.INFO.
func (s *Store) GetIndex(ctx context.Context, name string) (index.Schema, error) {
	cmd := s.b().Arbitrary("FT.INFO").Args(name).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		if isUnknownIndex(err) {
			return index.Schema{}, db.ErrIndexNotFound
		}
		return index.Schema{}, &db.Error{Op: db.OpIndexInfo, Err: err}
	}

	schema, err := parseInfo(raw)
	if err != nil {
		return index.Schema{}, &db.Error{Op: db.OpIndexInfo, Err: err}
	}
	if schema.Name == "" {
		schema.Name = name
	}
	return schema, nil
}

// CreateOrUpdateIndex creates the index with FT.CREATE when it is missing.
// Otherwise the existing fields must be an ordered prefix of schema.Fields and
// the remaining fields are appended with FT.ALTER. Redis has no index ETag, so
// schema.ETag is ignored.
func (s *Store) CreateOrUpdateIndex(ctx context.Context, schema index.Schema) (index.Schema, error) {
	current, err := s.GetIndex(ctx, schema.Name)
	switch {
	case errors.Is(err, db.ErrIndexNotFound):
		if err := s.createIndex(ctx, schema); err != nil {
			return index.Schema{}, err
		}
	case err != nil:
		return index.Schema{}, err
	default:
		added, err := appendedFields(current, schema)
		if err != nil {
			return index.Schema{}, err
		}
		if err := s.alterIndex(ctx, schema, added); err != nil {
			return index.Schema{}, err
		}
	}
	return s.GetIndex(ctx, schema.Name)
}

func (s *Store) createIndex(ctx context.Context, schema index.Schema) error {
	def, err := s.definition(schema, schema.Fields)
	if err != nil {
		return err
	}
	args, err := buildCreateArgs(def)
	if err != nil {
		return err
	}

	cmd := s.b().Arbitrary("FT.CREATE").Args(args...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "index already exists") {
			return db.ErrIndexExists
		}
		return &db.Error{Op: db.OpCreateIndex, Err: err}
	}
	return nil
}

func (s *Store) alterIndex(ctx context.Context, schema index.Schema, fields []index.Field) error {
	if len(fields) == 0 {
		return nil
	}
	def, err := s.definition(schema, fields)
	if err != nil {
		return err
	}

	for i := range def.Fields {
		fieldArgs, err := buildFieldArgs(&def.Fields[i])
		if err != nil {
			return err
		}
		args := append([]string{schema.Name, "SCHEMA", "ADD"}, fieldArgs...)

		cmd := s.b().Arbitrary("FT.ALTER").Args(args...).Build()
		if err := s.do(ctx, cmd).Error(); err != nil {
			return &db.Error{Op: db.OpAlterIndex, Err: fmt.Errorf("field %s: %w", fields[i].Name, err)}
		}
	}
	return nil
}

// appendedFields returns the fields of next beyond the current definition.
// FT.ALTER can only add attributes, so anything else is a conflict.
func appendedFields(current, next index.Schema) ([]index.Field, error) {
	if len(next.Fields) < len(current.Fields) {
		return nil, fmt.Errorf("%w: cannot remove fields from %s", db.ErrSchemaConflict, current.Name)
	}
	for i, f := range current.Fields {
		if next.Fields[i].Name != f.Name {
			return nil, fmt.Errorf("%w: field %d of %s is %s, got %s",
				db.ErrSchemaConflict, i, current.Name, f.Name, next.Fields[i].Name)
		}
	}
	return next.Fields[len(current.Fields):], nil
}

// definition translates fields of schema into FT schema attributes.
func (s *Store) definition(schema index.Schema, fields []index.Field) (*db.IndexDefinition, error) {
	storage, err := s.resolveStorage(schema)
	if err != nil {
		return nil, err
	}

	b := db.NewIndex(schema.Name).Prefix(stringList(schema.Extra[extraPrefixes])...)
	if storage == db.StorageJSON {
		b.OnJSON()
	}

	for _, f := range fields {
		path := f.Name
		if id, ok := f.Extra[extraIdentifier].(string); ok && id != "" {
			path = id
		} else if storage == db.StorageJSON {
			path = "$." + f.Name
		}

		switch redisType(f) {
		case "TEXT":
			b.Text(path)
		case "TAG":
			b.Tag(path)
		case "NUMERIC":
			b.Numeric(path)
		case "GEO":
			b.Geo(path)
		case "VECTOR":
			alg, ok := schema.ResolveAlgorithm(f.VectorProfile)
			if !ok {
				return nil, fmt.Errorf("vector field %s references unknown profile %q", f.Name, f.VectorProfile)
			}
			if alg.Kind == index.KindHNSW && alg.HNSW != nil {
				h := alg.HNSW
				b.VectorHNSW(path, f.Dimensions, distanceFor(h.Metric), h.M, h.EfConstruction, h.EfSearch)
			} else {
				b.VectorFlat(path, f.Dimensions, distanceFor(alg.Metric), 0)
			}
		default:
			return nil, fmt.Errorf("%w: field %s has type %s", db.ErrSchemaConflict, f.Name, f.Type)
		}

		if path != f.Name {
			b.As(f.Name)
		}
		if f.Sortable != nil && *f.Sortable {
			b.Sortable()
		}
	}
	return b.Build()
}

// redisType picks the FT attribute type for a field.
func redisType(f index.Field) string {
	if t, ok := f.Extra[extraRedisType].(string); ok && t != "" {
		return strings.ToUpper(t)
	}
	switch f.Type {
	case index.TypeString:
		if f.Searchable != nil && !*f.Searchable {
			return "TAG"
		}
		return "TEXT"
	case index.TypeStringList, index.TypeBoolean:
		return "TAG"
	case index.TypeInt32, index.TypeInt64, index.TypeDouble, index.TypeDateTimeOffset:
		return "NUMERIC"
	case index.TypeGeographyPoint:
		return "GEO"
	case index.TypeSingleVector:
		return "VECTOR"
	default:
		return ""
	}
}

func distanceFor(m index.Metric) db.DistanceMetric {
	switch m {
	case index.MetricEuclidean:
		return db.DistanceL2
	case index.MetricDotProduct:
		return db.DistanceIP
	default:
		return db.DistanceCosine
	}
}

func metricFor(d string) index.Metric {
	switch db.DistanceMetric(strings.ToUpper(d)) {
	case db.DistanceL2:
		return index.MetricEuclidean
	case db.DistanceIP:
		return index.MetricDotProduct
	default:
		return index.MetricCosine
	}
}

// --- FT.INFO parsing ---

// parseInfo reads the RESP2 FT.INFO reply: a flat list of name/value pairs.
func parseInfo(raw []rueidis.RedisMessage) (index.Schema, error) {
	schema := index.Schema{Extra: map[string]any{}}
	var vs index.VectorSearch

	for i := 0; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}
		switch strings.ToLower(key) {
		case "index_name":
			schema.Name, _ = raw[i+1].ToString()
		case "index_definition":
			def, err := raw[i+1].ToArray()
			if err != nil {
				return index.Schema{}, fmt.Errorf("parse index_definition: %w", err)
			}
			parseDefinition(def, schema.Extra)
		case "attributes":
			attrs, err := raw[i+1].ToArray()
			if err != nil {
				return index.Schema{}, fmt.Errorf("parse attributes: %w", err)
			}
			for _, a := range attrs {
				tokens, err := a.ToArray()
				if err != nil {
					continue
				}
				field, fragment := parseAttribute(tokens)
				if field.Name == "" {
					continue
				}
				schema.Fields = append(schema.Fields, field)
				if fragment != nil {
					if err := vs.Merge(*fragment); err != nil {
						return index.Schema{}, err
					}
				}
			}
		}
	}

	if len(vs.Algorithms) > 0 {
		schema.VectorSearch = &vs
	}
	return schema, nil
}

func parseDefinition(def []rueidis.RedisMessage, extra map[string]any) {
	for j := 0; j+1 < len(def); j += 2 {
		k, err := def[j].ToString()
		if err != nil {
			continue
		}
		switch strings.ToLower(k) {
		case "key_type":
			if v, err := def[j+1].ToString(); err == nil {
				extra[extraKeyType] = strings.ToUpper(v)
			}
		case "prefixes":
			items, err := def[j+1].ToArray()
			if err != nil {
				continue
			}
			prefixes := make([]string, 0, len(items))
			for _, it := range items {
				if p, err := it.ToString(); err == nil && p != "" {
					prefixes = append(prefixes, p)
				}
			}
			if len(prefixes) > 0 {
				extra[extraPrefixes] = prefixes
			}
		}
	}
}

// attributeOptions take a value; every other token is a flag such as SORTABLE or NOSTEM.
var attributeOptions = map[string]bool{
	"identifier": true, "attribute": true, "type": true, "weight": true,
	"separator": true, "phonetic": true, "algorithm": true, "data_type": true,
	"dim": true, "distance_metric": true, "m": true, "ef_construction": true,
	"ef_runtime": true, "epsilon": true, "initial_cap": true, "block_size": true,
}

// parseAttribute maps one FT.INFO attribute onto a Field. Vector attributes
// also yield an algorithm and profile named after the field.
func parseAttribute(msgs []rueidis.RedisMessage) (index.Field, *index.VectorSearch) {
	opts := make(map[string]string)
	flags := make(map[string]bool)
	for i := 0; i < len(msgs); {
		tok, err := msgs[i].ToString()
		if err != nil {
			i++
			continue
		}
		k := strings.ToLower(tok)
		if attributeOptions[k] && i+1 < len(msgs) {
			if v, err := msgs[i+1].ToString(); err == nil {
				opts[k] = v
			} else if n, err := msgs[i+1].AsInt64(); err == nil {
				opts[k] = strconv.FormatInt(n, 10)
			}
			i += 2
			continue
		}
		flags[k] = true
		i++
	}

	name := opts["attribute"]
	if name == "" {
		name = opts["identifier"]
	}
	redisT := strings.ToUpper(opts["type"])
	f := index.Field{
		Name:  name,
		Extra: map[string]any{extraRedisType: redisT},
	}
	if id := opts["identifier"]; id != "" && id != name {
		f.Extra[extraIdentifier] = id
	}
	if flags["sortable"] {
		f.Sortable = index.Bool(true)
	}

	switch redisT {
	case "TEXT":
		f.Type = index.TypeString
		f.Searchable = index.Bool(true)
	case "TAG":
		f.Type = index.TypeString
		f.Searchable = index.Bool(false)
		f.Filterable = index.Bool(true)
		f.Facetable = index.Bool(true)
	case "NUMERIC":
		f.Type = index.TypeDouble
		f.Filterable = index.Bool(true)
	case "GEO":
		f.Type = index.TypeGeographyPoint
		f.Filterable = index.Bool(true)
	case "VECTOR":
		f.Type = index.TypeSingleVector
		f.Searchable = index.Bool(true)
		f.Dimensions, _ = strconv.Atoi(opts["dim"])
		return f, vectorFragment(&f, opts)
	default:
		f.Type = index.DataType(redisT)
	}
	return f, nil
}

func vectorFragment(f *index.Field, opts map[string]string) *index.VectorSearch {
	algo := strings.ToUpper(opts["algorithm"])
	metric := metricFor(opts["distance_metric"])

	alg := index.Algorithm{Name: f.Name + "-" + strings.ToLower(algo)}
	if algo == string(db.VectorHNSW) {
		alg.Kind = index.KindHNSW
		alg.HNSW = &index.HNSWParameters{Metric: metric}
		alg.HNSW.M, _ = strconv.Atoi(opts["m"])
		alg.HNSW.EfConstruction, _ = strconv.Atoi(opts["ef_construction"])
		alg.HNSW.EfSearch, _ = strconv.Atoi(opts["ef_runtime"])
	} else {
		alg.Kind = index.KindExhaustiveKNN
		alg.Metric = metric
	}

	f.VectorProfile = f.Name + "-profile"
	return &index.VectorSearch{
		Algorithms: []index.Algorithm{alg},
		Profiles:   []index.Profile{{Name: f.VectorProfile, Algorithm: alg.Name}},
	}
}

func stringList(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, x := range t {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// --- FT.CREATE argument building ---

func buildCreateArgs(idx *db.IndexDefinition) ([]string, error) {
	if idx.Name == "" {
		return nil, errors.New("index name is required")
	}
	if len(idx.Fields) == 0 {
		return nil, errors.New("at least one field is required")
	}

	args := []string{idx.Name}

	storage := idx.StorageType
	if storage == "" {
		storage = db.StorageHash
	}
	args = append(args, "ON", string(storage))

	if len(idx.Prefixes) > 0 {
		args = append(args, "PREFIX", strconv.Itoa(len(idx.Prefixes)))
		args = append(args, idx.Prefixes...)
	}

	args = append(args, "SCHEMA")

	for i := range idx.Fields {
		fieldArgs, err := buildFieldArgs(&idx.Fields[i])
		if err != nil {
			return nil, err
		}
		args = append(args, fieldArgs...)
	}

	return args, nil
}

func buildFieldArgs(f *db.IndexField) ([]string, error) {
	if f.Name == "" {
		return nil, errors.New("field name is required")
	}

	args := []string{f.Name}

	if f.Alias != "" {
		args = append(args, "AS", f.Alias)
	}

	switch f.Type {
	case db.IndexFieldNumeric:
		args = append(args, "NUMERIC")

	case db.IndexFieldText:
		args = append(args, "TEXT")

	case db.IndexFieldGeo:
		args = append(args, "GEO")

	case db.IndexFieldTag:
		args = append(args, "TAG")
		if f.TagSeparator != "" {
			args = append(args, "SEPARATOR", f.TagSeparator)
		}
		if f.TagCaseSensitive {
			args = append(args, "CASESENSITIVE")
		}

	case db.IndexFieldVector:
		vectorArgs, err := buildVectorFieldArgs(f)
		if err != nil {
			return nil, err
		}
		args = append(args, vectorArgs...)

	default:
		return nil, errors.New("unknown field type")
	}

	if f.Sortable && f.Type != db.IndexFieldVector {
		args = append(args, "SORTABLE")
	}

	return args, nil
}

func buildVectorFieldArgs(f *db.IndexField) ([]string, error) {
	if f.VectorDim <= 0 {
		return nil, errors.New("vector DIM must be positive")
	}

	algo := f.VectorAlgo
	if algo == "" {
		algo = db.VectorFlat
	}

	distance := f.VectorDistance
	if distance == "" {
		distance = db.DistanceCosine
	}

	attrs := []string{
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(f.VectorDim),
		"DISTANCE_METRIC", string(distance),
	}

	switch algo {
	case db.VectorHNSW:
		if f.VectorM > 0 {
			attrs = append(attrs, "M", strconv.Itoa(f.VectorM))
		}
		if f.VectorEFConstruct > 0 {
			attrs = append(attrs, "EF_CONSTRUCTION", strconv.Itoa(f.VectorEFConstruct))
		}
		if f.VectorEFRuntime > 0 {
			attrs = append(attrs, "EF_RUNTIME", strconv.Itoa(f.VectorEFRuntime))
		}
	case db.VectorFlat:
		if f.VectorBlockSize > 0 {
			attrs = append(attrs, "BLOCK_SIZE", strconv.Itoa(f.VectorBlockSize))
		}
	}

	result := make([]string, 0, 3+len(attrs))
	result = append(result, "VECTOR", string(algo), strconv.Itoa(len(attrs)))
	result = append(result, attrs...)

	return result, nil
}
