package model

import "time"

// Patient is a normalized patient record. Immutable once loaded.
type Patient struct {
	ID          string
	BirthDate   *time.Time // nil when the source value was missing or unparseable
	Gender      string
	Address     string
	City        string
	State       string
	ZipCode     string
	IsDeceased  bool
	DateOfDeath *time.Time
}

// Provider is a normalized provider record.
type Provider struct {
	ID              string
	Name            string
	Type            string
	Specialty       *string
	State           string
	YearsInPractice int
	InNetwork       bool
	FraudHistory    bool
}

// Policy is a normalized insurance policy.
type Policy struct {
	ID            string
	PatientID     string
	Type          string
	CoverageStart *time.Time
	CoverageEnd   *time.Time
	Status        string
}

// Claim is a normalized claim. Amounts are non-negative dollars.
type Claim struct {
	ID                    string
	PatientID             string
	ProviderID            string
	PolicyID              string
	ServiceDate           *time.Time
	SubmissionDate        *time.Time
	DiagnosisCode         string
	ProcedureCode         string
	ClaimAmount           float64
	AllowedAmount         float64
	PaidAmount            float64
	PatientResponsibility float64
	Status                string
	Type                  string
	AdmissionType         string
	LengthOfStay          *float64

	// Label fields; nil outside training/evaluation data.
	IsFraudulent *bool
	FraudType    *string
}

// Labeled reports whether the claim carries a fraud label.
func (c *Claim) Labeled() bool { return c.IsFraudulent != nil }

// Fraudulent reports whether the claim is labeled fraudulent.
func (c *Claim) Fraudulent() bool { return c.IsFraudulent != nil && *c.IsFraudulent }

// FraudStatistics aggregates fraud labels over the claim table.
type FraudStatistics struct {
	TotalClaims      int            `json:"total_claims"`
	FraudulentClaims int            `json:"fraudulent_claims"`
	NormalClaims     int            `json:"normal_claims"`
	FraudRate        float64        `json:"fraud_rate"`
	FraudByType      map[string]int `json:"fraud_by_type"`
}
