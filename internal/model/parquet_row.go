package model

// PatientRow mirrors the patients table as stored in Parquet or Postgres.
// Dates stay as strings here; normalize parses them.
type PatientRow struct {
	PatientID   string  `parquet:"patient_id"`
	FirstName   *string `parquet:"first_name,optional"`
	LastName    *string `parquet:"last_name,optional"`
	DateOfBirth *string `parquet:"date_of_birth,optional"`
	Gender      *string `parquet:"gender,optional"`
	Address     *string `parquet:"address,optional"`
	City        *string `parquet:"city,optional"`
	State       *string `parquet:"state,optional"`
	ZipCode     *string `parquet:"zip_code,optional"`
	IsDeceased  bool    `parquet:"is_deceased"`
	DateOfDeath *string `parquet:"date_of_death,optional"`
}

// ProviderRow mirrors the providers table.
type ProviderRow struct {
	ProviderID      string  `parquet:"provider_id"`
	ProviderName    *string `parquet:"provider_name,optional"`
	ProviderType    *string `parquet:"provider_type,optional"`
	Specialty       *string `parquet:"specialty,optional"`
	State           *string `parquet:"state,optional"`
	YearsInPractice *int32  `parquet:"years_in_practice,optional"`
	IsInNetwork     bool    `parquet:"is_in_network"`
	FraudHistory    bool    `parquet:"fraud_history"`
}

// PolicyRow mirrors the policies table.
type PolicyRow struct {
	PolicyID      string  `parquet:"policy_id"`
	PatientID     string  `parquet:"patient_id"`
	PolicyType    *string `parquet:"policy_type,optional"`
	CoverageStart *string `parquet:"coverage_start,optional"`
	CoverageEnd   *string `parquet:"coverage_end,optional"`
	Status        *string `parquet:"status,optional"`
}

// ClaimRow mirrors the claims table. Label columns (is_fraudulent, fraud_type)
// are only present in training/evaluation extracts.
type ClaimRow struct {
	ClaimID               string   `parquet:"claim_id"`
	PatientID             string   `parquet:"patient_id"`
	ProviderID            string   `parquet:"provider_id"`
	PolicyID              *string  `parquet:"policy_id,optional"`
	SubmissionDate        *string  `parquet:"submission_date,optional"`
	ServiceDate           *string  `parquet:"service_date,optional"`
	DiagnosisCode         *string  `parquet:"diagnosis_code,optional"`
	ProcedureCode         *string  `parquet:"procedure_code,optional"`
	ClaimAmount           float64  `parquet:"claim_amount"`
	AllowedAmount         *float64 `parquet:"allowed_amount,optional"`
	PaidAmount            *float64 `parquet:"paid_amount,optional"`
	PatientResponsibility *float64 `parquet:"patient_responsibility,optional"`
	ClaimStatus           *string  `parquet:"claim_status,optional"`
	ClaimType             *string  `parquet:"claim_type,optional"`
	AdmissionType         *string  `parquet:"admission_type,optional"`
	LengthOfStay          *float64 `parquet:"length_of_stay,optional"`
	IsFraudulent          *bool    `parquet:"is_fraudulent,optional"`
	FraudType             *string  `parquet:"fraud_type,optional"`
}
