package features

import (
	"encoding/json"
	"fmt"

	"github.com/gyeh/claimrisk/internal/normalize"
)

// Schema is an ordered, named list of feature columns. Its Version is a
// digest of the names, so two schemas with the same columns in the same
// order share a version. Schemas are immutable.
type Schema struct {
	names   []string
	index   map[string]int
	version string
}

// NewSchema builds a schema from column names. Duplicate names are an error.
func NewSchema(names []string) (*Schema, error) {
	s := &Schema{
		names: append([]string(nil), names...),
		index: make(map[string]int, len(names)),
	}
	for i, n := range s.names {
		if _, dup := s.index[n]; dup {
			return nil, fmt.Errorf("duplicate feature name %q", n)
		}
		s.index[n] = i
	}
	s.version = normalize.NamesHash(s.names)[:12]
	return s, nil
}

// Names returns a copy of the column names in order.
func (s *Schema) Names() []string { return append([]string(nil), s.names...) }

// Name returns the i-th column name.
func (s *Schema) Name(i int) string { return s.names[i] }

// Len returns the number of columns.
func (s *Schema) Len() int { return len(s.names) }

// Index returns the position of a named column.
func (s *Schema) Index(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

// Version returns a short digest identifying the column list.
func (s *Schema) Version() string { return s.version }

// Equal reports whether both schemas have the same columns in the same order.
func (s *Schema) Equal(o *Schema) bool {
	if s == nil || o == nil || len(s.names) != len(o.names) {
		return false
	}
	for i := range s.names {
		if s.names[i] != o.names[i] {
			return false
		}
	}
	return true
}

type schemaJSON struct {
	Version string   `json:"version"`
	Names   []string `json:"names"`
}

func (s *Schema) MarshalJSON() ([]byte, error) {
	return json.Marshal(schemaJSON{Version: s.version, Names: s.names})
}

func (s *Schema) UnmarshalJSON(data []byte) error {
	var sj schemaJSON
	if err := json.Unmarshal(data, &sj); err != nil {
		return err
	}
	built, err := NewSchema(sj.Names)
	if err != nil {
		return err
	}
	if sj.Version != "" && sj.Version != built.version {
		return fmt.Errorf("schema version mismatch: stored %s, computed %s", sj.Version, built.version)
	}
	*s = *built
	return nil
}

// Row is one claim's feature values, aligned to a Schema.
type Row struct {
	ClaimID string
	Values  []float64
}

// Matrix is a set of rows sharing a schema.
type Matrix struct {
	Schema *Schema
	Rows   []Row
}

// Len returns the number of rows.
func (m *Matrix) Len() int { return len(m.Rows) }

// Values returns the row values as a dense [][]float64 sharing storage with m.
func (m *Matrix) Values() [][]float64 {
	out := make([][]float64, len(m.Rows))
	for i := range m.Rows {
		out[i] = m.Rows[i].Values
	}
	return out
}

// Value returns a named value of row i, or 0 when the column is unknown.
func (m *Matrix) Value(i int, name string) float64 {
	j, ok := m.Schema.Index(name)
	if !ok {
		return 0
	}
	return m.Rows[i].Values[j]
}

// Align projects m onto target: columns present in both are copied, columns
// only in target are 0, and columns only in m are dropped. When the schemas
// are equal m is returned unchanged.
func Align(m *Matrix, target *Schema) *Matrix {
	if m.Schema.Equal(target) {
		return m
	}
	src := make([]int, target.Len())
	for i, name := range target.names {
		if j, ok := m.Schema.Index(name); ok {
			src[i] = j
		} else {
			src[i] = -1
		}
	}
	out := &Matrix{Schema: target, Rows: make([]Row, len(m.Rows))}
	for r, row := range m.Rows {
		vals := make([]float64, target.Len())
		for i, j := range src {
			if j >= 0 {
				vals[i] = row.Values[j]
			}
		}
		out.Rows[r] = Row{ClaimID: row.ClaimID, Values: vals}
	}
	return out
}
