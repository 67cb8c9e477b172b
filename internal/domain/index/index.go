// Package index models a search index definition independently of the backend that hosts it.
package index

import (
	"errors"
	"fmt"
	"maps"
	"slices"
)

// DataType is the backend-native type name of a field.
type DataType string

// Field type constants (Azure AI Search EDM names, also used as the canonical form for Redis).
const (
	TypeString         DataType = "Edm.String"
	TypeInt32          DataType = "Edm.Int32"
	TypeInt64          DataType = "Edm.Int64"
	TypeDouble         DataType = "Edm.Double"
	TypeBoolean        DataType = "Edm.Boolean"
	TypeDateTimeOffset DataType = "Edm.DateTimeOffset"
	TypeGeographyPoint DataType = "Edm.GeographyPoint"
	TypeSingleVector   DataType = "Collection(Edm.Single)"
	TypeStringList     DataType = "Collection(Edm.String)"
	TypeComplex        DataType = "Edm.ComplexType"
	TypeComplexList    DataType = "Collection(Edm.ComplexType)"
)

// Field is a single field definition. Nil attribute pointers mean "not set by the backend".
type Field struct {
	Name          string
	Type          DataType
	Key           *bool
	Searchable    *bool
	Filterable    *bool
	Retrievable   *bool
	Sortable      *bool
	Facetable     *bool
	Dimensions    int
	VectorProfile string

	// Extra holds backend attributes that are not modeled (analyzers, sub-fields, identifiers).
	Extra map[string]any
}

// IsVector reports whether the field stores embedding vectors.
func (f Field) IsVector() bool {
	return f.Type == TypeSingleVector && f.Dimensions > 0
}

// IsKey reports whether the field is the document key.
func (f Field) IsKey() bool {
	return f.Key != nil && *f.Key
}

// Suggester enables autocomplete over a set of source fields.
type Suggester struct {
	Name         string
	SearchMode   string
	SourceFields []string
}

// Schema is the full definition of an index.
type Schema struct {
	Name         string
	Fields       []Field
	VectorSearch *VectorSearch
	Suggesters   []Suggester
	ETag         string

	// Extra holds index-level backend attributes carried through updates unchanged.
	Extra map[string]any
}

// ErrDuplicateField signals two fields with the same name.
var ErrDuplicateField = errors.New("duplicate field name")

// Field returns the field with the given name.
func (s *Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// FieldNames returns field names in schema order.
func (s *Schema) FieldNames() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// ResolveAlgorithm follows a vector profile name to its algorithm configuration.
func (s *Schema) ResolveAlgorithm(profile string) (Algorithm, bool) {
	if s.VectorSearch == nil {
		return Algorithm{}, false
	}
	p, ok := s.VectorSearch.Profile(profile)
	if !ok {
		return Algorithm{}, false
	}
	return s.VectorSearch.Algorithm(p.Algorithm)
}

// Validate checks field name uniqueness and vector field references.
func (s *Schema) Validate() error {
	if err := s.validateNames(); err != nil {
		return err
	}
	for _, f := range s.Fields {
		if f.Type != TypeSingleVector {
			continue
		}
		if f.Dimensions <= 0 {
			return fmt.Errorf("vector field %s requires positive dimensions", f.Name)
		}
		if _, ok := s.ResolveAlgorithm(f.VectorProfile); !ok {
			return fmt.Errorf("vector field %s references unknown profile %q", f.Name, f.VectorProfile)
		}
	}
	return nil
}

func (s *Schema) validateNames() error {
	if s.Name == "" {
		return errors.New("index name is required")
	}
	seen := make(map[string]bool, len(s.Fields))
	for i, f := range s.Fields {
		if f.Name == "" {
			return fmt.Errorf("field name is required at position %d", i)
		}
		if seen[f.Name] {
			return fmt.Errorf("%w: %s", ErrDuplicateField, f.Name)
		}
		seen[f.Name] = true
	}
	return nil
}

// Clone returns a deep copy so callers can patch a schema without aliasing the original.
func (s *Schema) Clone() Schema {
	out := Schema{
		Name:  s.Name,
		ETag:  s.ETag,
		Extra: maps.Clone(s.Extra),
	}
	if s.Fields != nil {
		out.Fields = make([]Field, len(s.Fields))
		for i, f := range s.Fields {
			out.Fields[i] = f.clone()
		}
	}
	if s.Suggesters != nil {
		out.Suggesters = make([]Suggester, len(s.Suggesters))
		for i, sg := range s.Suggesters {
			sg.SourceFields = slices.Clone(sg.SourceFields)
			out.Suggesters[i] = sg
		}
	}
	if s.VectorSearch != nil {
		vs := s.VectorSearch.clone()
		out.VectorSearch = &vs
	}
	return out
}

func (f Field) clone() Field {
	f.Key = cloneBool(f.Key)
	f.Searchable = cloneBool(f.Searchable)
	f.Filterable = cloneBool(f.Filterable)
	f.Retrievable = cloneBool(f.Retrievable)
	f.Sortable = cloneBool(f.Sortable)
	f.Facetable = cloneBool(f.Facetable)
	f.Extra = maps.Clone(f.Extra)
	return f
}

func cloneBool(b *bool) *bool {
	if b == nil {
		return nil
	}
	v := *b
	return &v
}

// Bool returns a pointer to b.
func Bool(b bool) *bool { return &b }
