package normalize

import (
	"fmt"

	"github.com/gyeh/claimrisk/internal/model"
)

// ToPatient converts a raw patient row. Unparseable dates become nil rather
// than rejecting the row; feature extraction applies its own fallbacks.
func ToPatient(row *model.PatientRow) (*model.Patient, error) {
	id := ID(row.PatientID)
	if id == "" {
		return nil, fmt.Errorf("patient: missing patient_id")
	}
	return &model.Patient{
		ID:          id,
		BirthDate:   ParseOptDate(row.DateOfBirth),
		Gender:      Gender(row.Gender),
		Address:     Category(row.Address),
		City:        Category(row.City),
		State:       Category(row.State),
		ZipCode:     Category(row.ZipCode),
		IsDeceased:  row.IsDeceased,
		DateOfDeath: ParseOptDate(row.DateOfDeath),
	}, nil
}

// ToProvider converts a raw provider row.
func ToProvider(row *model.ProviderRow) (*model.Provider, error) {
	id := ID(row.ProviderID)
	if id == "" {
		return nil, fmt.Errorf("provider: missing provider_id")
	}
	p := &model.Provider{
		ID:           id,
		Name:         Category(row.ProviderName),
		Type:         Category(row.ProviderType),
		Specialty:    OptCategory(row.Specialty),
		State:        Category(row.State),
		InNetwork:    row.IsInNetwork,
		FraudHistory: row.FraudHistory,
	}
	if row.YearsInPractice != nil {
		p.YearsInPractice = int(*row.YearsInPractice)
	}
	return p, nil
}

// ToPolicy converts a raw policy row.
func ToPolicy(row *model.PolicyRow) (*model.Policy, error) {
	id := ID(row.PolicyID)
	if id == "" {
		return nil, fmt.Errorf("policy: missing policy_id")
	}
	return &model.Policy{
		ID:            id,
		PatientID:     ID(row.PatientID),
		Type:          Category(row.PolicyType),
		CoverageStart: ParseOptDate(row.CoverageStart),
		CoverageEnd:   ParseOptDate(row.CoverageEnd),
		Status:        Category(row.Status),
	}, nil
}

// ToClaim converts a raw claim row, rejecting rows without identifiers or
// with negative or non-finite amounts.
func ToClaim(row *model.ClaimRow) (*model.Claim, error) {
	c := &model.Claim{
		ID:            ID(row.ClaimID),
		PatientID:     ID(row.PatientID),
		ProviderID:    ID(row.ProviderID),
		ServiceDate:   ParseOptDate(row.ServiceDate),
		DiagnosisCode: NormalizeCode(row.DiagnosisCode),
		ProcedureCode: NormalizeCode(row.ProcedureCode),
		Status:        Category(row.ClaimStatus),
		Type:          Category(row.ClaimType),
		AdmissionType: Category(row.AdmissionType),
		IsFraudulent:  row.IsFraudulent,
		FraudType:     OptCategory(row.FraudType),
	}
	switch {
	case c.ID == "":
		return nil, fmt.Errorf("claim: missing claim_id")
	case c.PatientID == "":
		return nil, fmt.Errorf("claim %s: missing patient_id", c.ID)
	case c.ProviderID == "":
		return nil, fmt.Errorf("claim %s: missing provider_id", c.ID)
	}
	if row.PolicyID != nil {
		c.PolicyID = ID(*row.PolicyID)
	}
	c.SubmissionDate = ParseOptDate(row.SubmissionDate)

	var err error
	if c.ClaimAmount, err = Amount("claim_amount", row.ClaimAmount); err != nil {
		return nil, fmt.Errorf("claim %s: %w", c.ID, err)
	}
	if c.AllowedAmount, err = OptAmount("allowed_amount", row.AllowedAmount); err != nil {
		return nil, fmt.Errorf("claim %s: %w", c.ID, err)
	}
	if c.PaidAmount, err = OptAmount("paid_amount", row.PaidAmount); err != nil {
		return nil, fmt.Errorf("claim %s: %w", c.ID, err)
	}
	if c.PatientResponsibility, err = OptAmount("patient_responsibility", row.PatientResponsibility); err != nil {
		return nil, fmt.Errorf("claim %s: %w", c.ID, err)
	}
	if row.LengthOfStay != nil {
		los, err := Amount("length_of_stay", *row.LengthOfStay)
		if err != nil {
			return nil, fmt.Errorf("claim %s: %w", c.ID, err)
		}
		c.LengthOfStay = &los
	}
	return c, nil
}
