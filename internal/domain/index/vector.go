package index

import (
	"errors"
	"fmt"
	"maps"
	"slices"
)

// AlgorithmKind selects the ANN algorithm.
type AlgorithmKind string

const (
	// KindHNSW is the hierarchical navigable small world graph.
	KindHNSW AlgorithmKind = "hnsw"
	// KindExhaustiveKNN is brute-force search.
	KindExhaustiveKNN AlgorithmKind = "exhaustiveKnn"
)

// Metric is the vector similarity metric.
type Metric string

const (
	// MetricCosine is cosine similarity.
	MetricCosine Metric = "cosine"
	// MetricEuclidean is L2 distance.
	MetricEuclidean Metric = "euclidean"
	// MetricDotProduct is inner product.
	MetricDotProduct Metric = "dotProduct"
)

// HNSWParameters are the build and query breadth settings of an HNSW graph.
type HNSWParameters struct {
	M              int
	EfConstruction int
	EfSearch       int
	Metric         Metric
}

// Algorithm is a named algorithm configuration.
type Algorithm struct {
	Name   string
	Kind   AlgorithmKind
	HNSW   *HNSWParameters
	Metric Metric // exhaustiveKnn only
	Extra  map[string]any
}

// Profile binds a name that fields reference to an algorithm configuration.
type Profile struct {
	Name      string
	Algorithm string
	Extra     map[string]any
}

// VectorSearch is the vector-search section of a schema.
type VectorSearch struct {
	Algorithms []Algorithm
	Profiles   []Profile
	Extra      map[string]any
}

// Algorithm looks up an algorithm configuration by name.
func (v *VectorSearch) Algorithm(name string) (Algorithm, bool) {
	for _, a := range v.Algorithms {
		if a.Name == name {
			return a, true
		}
	}
	return Algorithm{}, false
}

// Profile looks up a profile by name.
func (v *VectorSearch) Profile(name string) (Profile, bool) {
	for _, p := range v.Profiles {
		if p.Name == name {
			return p, true
		}
	}
	return Profile{}, false
}

// ErrVectorConfigConflict signals an algorithm or profile name already bound to other settings.
var ErrVectorConfigConflict = errors.New("conflicting vector search configuration")

// Merge adds algorithms and profiles from other that are not already present by name.
// A same-named entry with different settings is ErrVectorConfigConflict and leaves v unchanged.
func (v *VectorSearch) Merge(other VectorSearch) error {
	for _, a := range other.Algorithms {
		if cur, ok := v.Algorithm(a.Name); ok && !cur.sameSettings(a) {
			return fmt.Errorf("%w: algorithm %s already exists with other parameters", ErrVectorConfigConflict, a.Name)
		}
	}
	for _, p := range other.Profiles {
		if cur, ok := v.Profile(p.Name); ok && cur.Algorithm != p.Algorithm {
			return fmt.Errorf("%w: profile %s uses algorithm %s, not %s",
				ErrVectorConfigConflict, p.Name, cur.Algorithm, p.Algorithm)
		}
	}

	for _, a := range other.Algorithms {
		if _, ok := v.Algorithm(a.Name); !ok {
			v.Algorithms = append(v.Algorithms, a)
		}
	}
	for _, p := range other.Profiles {
		if _, ok := v.Profile(p.Name); !ok {
			v.Profiles = append(v.Profiles, p)
		}
	}
	return nil
}

// sameSettings compares kind and parameters, ignoring unmodeled attributes.
func (a Algorithm) sameSettings(b Algorithm) bool {
	if a.Kind != b.Kind || a.Metric != b.Metric {
		return false
	}
	if a.HNSW == nil || b.HNSW == nil {
		return a.HNSW == nil && b.HNSW == nil
	}
	return *a.HNSW == *b.HNSW
}

func (v *VectorSearch) clone() VectorSearch {
	out := VectorSearch{Extra: maps.Clone(v.Extra)}
	if v.Algorithms != nil {
		out.Algorithms = make([]Algorithm, len(v.Algorithms))
		for i, a := range v.Algorithms {
			if a.HNSW != nil {
				h := *a.HNSW
				a.HNSW = &h
			}
			a.Extra = maps.Clone(a.Extra)
			out.Algorithms[i] = a
		}
	}
	if v.Profiles != nil {
		out.Profiles = slices.Clone(v.Profiles)
		for i := range out.Profiles {
			out.Profiles[i].Extra = maps.Clone(out.Profiles[i].Extra)
		}
	}
	return out
}

// VectorFieldSpec describes the vector field a migration adds.
type VectorFieldSpec struct {
	FieldName     string
	Dimensions    int
	AlgorithmName string
	ProfileName   string
	HNSW          HNSWParameters
}

// DefaultVectorFieldSpec matches text-embedding-ada-002 output with a small HNSW graph.
func DefaultVectorFieldSpec() VectorFieldSpec {
	return VectorFieldSpec{
		FieldName:     "contentVector",
		Dimensions:    1536,
		AlgorithmName: "my-hnsw-config",
		ProfileName:   "my-vector-profile",
		HNSW: HNSWParameters{
			M:              4,
			EfConstruction: 400,
			EfSearch:       500,
			Metric:         MetricCosine,
		},
	}
}

// Validate checks s before any remote call is made.
func (s VectorFieldSpec) Validate() error {
	if s.FieldName == "" {
		return fmt.Errorf("vector field name is required")
	}
	if s.Dimensions <= 0 {
		return fmt.Errorf("vector dimensions must be positive, got %d", s.Dimensions)
	}
	if s.AlgorithmName == "" || s.ProfileName == "" {
		return fmt.Errorf("vector algorithm and profile names are required")
	}
	if s.HNSW.M <= 0 || s.HNSW.EfConstruction <= 0 || s.HNSW.EfSearch <= 0 {
		return fmt.Errorf("hnsw m, efConstruction and efSearch must be positive")
	}
	switch s.HNSW.Metric {
	case MetricCosine, MetricEuclidean, MetricDotProduct:
	default:
		return fmt.Errorf("unsupported vector metric %q", s.HNSW.Metric)
	}
	return nil
}

// NewVectorField builds the field and the named configuration it references.
func NewVectorField(spec VectorFieldSpec) (Field, VectorSearch) {
	params := spec.HNSW
	if params.Metric == "" {
		params.Metric = MetricCosine
	}

	field := Field{
		Name:          spec.FieldName,
		Type:          TypeSingleVector,
		Searchable:    Bool(true),
		Retrievable:   Bool(true),
		Dimensions:    spec.Dimensions,
		VectorProfile: spec.ProfileName,
	}
	vs := VectorSearch{
		Algorithms: []Algorithm{{
			Name: spec.AlgorithmName,
			Kind: KindHNSW,
			HNSW: &params,
		}},
		Profiles: []Profile{{
			Name:      spec.ProfileName,
			Algorithm: spec.AlgorithmName,
		}},
	}
	return field, vs
}

// WithVectorField returns s patched with field and the vector search configuration it needs.
// When a field of that name already exists s is returned unchanged with added=false.
// Existing fields, suggesters and extra attributes are carried through in order.
func WithVectorField(s Schema, field Field, vs VectorSearch) (patched Schema, added bool, err error) {
	if _, exists := s.Field(field.Name); exists {
		return s, false, nil
	}

	out := s.Clone()
	out.Fields = append(out.Fields, field.clone())

	if out.VectorSearch == nil {
		merged := vs.clone()
		out.VectorSearch = &merged
	} else if err := out.VectorSearch.Merge(vs.clone()); err != nil {
		return s, false, err
	}

	if err := out.validateNames(); err != nil {
		return s, false, fmt.Errorf("patched schema: %w", err)
	}
	if _, ok := out.ResolveAlgorithm(field.VectorProfile); field.Type == TypeSingleVector && !ok {
		return s, false, fmt.Errorf("vector field %s references unknown profile %q", field.Name, field.VectorProfile)
	}
	return out, true, nil
}
