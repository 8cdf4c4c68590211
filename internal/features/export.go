package features

import (
	"github.com/gyeh/claimrisk/internal/parquetread"
)

// Value is one cell of a feature matrix in long (tidy) form.
type Value struct {
	ClaimID       string  `parquet:"claim_id"`
	Feature       string  `parquet:"feature"`
	Value         float64 `parquet:"value"`
	SchemaVersion string  `parquet:"schema_version"`
}

// Long flattens m into one Value per claim and feature.
func Long(m *Matrix) []Value {
	out := make([]Value, 0, m.Len()*m.Schema.Len())
	version := m.Schema.Version()
	for _, r := range m.Rows {
		for j, x := range r.Values {
			out = append(out, Value{ClaimID: r.ClaimID, Feature: m.Schema.Name(j), Value: x, SchemaVersion: version})
		}
	}
	return out
}

// WriteParquet writes m to path in long form.
func WriteParquet(path string, m *Matrix) error {
	return parquetread.WriteFile(path, Long(m))
}
