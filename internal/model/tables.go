package model

// Table describes one entity table of a claims dataset.
type Table struct {
	Name     string   // e.g. "claims"
	File     string   // parquet file name inside a dataset directory
	Required []string // columns that must be present
}

var (
	PatientsTable  = Table{Name: "patients", File: "patients.parquet", Required: []string{"patient_id"}}
	ProvidersTable = Table{Name: "providers", File: "providers.parquet", Required: []string{"provider_id"}}
	PoliciesTable  = Table{Name: "policies", File: "policies.parquet", Required: []string{"policy_id", "patient_id"}}
	ClaimsTable    = Table{Name: "claims", File: "claims.parquet", Required: []string{"claim_id", "patient_id", "provider_id", "claim_amount"}}
)

// AllTables lists the dataset tables in load order. Policies are optional.
var AllTables = []Table{PatientsTable, ProvidersTable, PoliciesTable, ClaimsTable}

// TableByName returns the Table with the given name, or ok=false.
func TableByName(name string) (Table, bool) {
	for _, t := range AllTables {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}
