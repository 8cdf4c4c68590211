package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/gyeh/claimrisk/internal/engine"
	"github.com/gyeh/claimrisk/internal/exitcode"
	"github.com/gyeh/claimrisk/internal/logging"
	"github.com/gyeh/claimrisk/internal/model"
	"github.com/gyeh/claimrisk/internal/store"
)

const dateLayout = "2006-01-02"

var claimsOpts struct {
	limit     int
	offset    int
	fraudOnly bool
	patient   string
	provider  string
	from      string
	to        string
}

var claimsCmd = &cobra.Command{
	Use:   "claims",
	Short: "List loaded claims, optionally filtered",
	RunE:  runClaims,
}

func init() {
	f := claimsCmd.Flags()
	f.IntVar(&claimsOpts.limit, "limit", 100, "Claims per page (0 = all)")
	f.IntVar(&claimsOpts.offset, "offset", 0, "Skip this many matching claims")
	f.BoolVar(&claimsOpts.fraudOnly, "fraud-only", false, "Only claims labeled fraudulent")
	f.StringVar(&claimsOpts.patient, "patient", "", "Only claims filed for this patient id")
	f.StringVar(&claimsOpts.provider, "provider", "", "Only claims billed by this provider id")
	f.StringVar(&claimsOpts.from, "from", "", "Earliest service date, inclusive (YYYY-MM-DD)")
	f.StringVar(&claimsOpts.to, "to", "", "Latest service date, exclusive (YYYY-MM-DD)")
	rootCmd.AddCommand(claimsCmd)
}

type claimRow struct {
	ID           string     `json:"claim_id"`
	PatientID    string     `json:"patient_id"`
	ProviderID   string     `json:"provider_id"`
	ServiceDate  *time.Time `json:"service_date,omitempty"`
	ClaimAmount  float64    `json:"claim_amount"`
	Type         string     `json:"claim_type"`
	Status       string     `json:"claim_status"`
	IsFraudulent *bool      `json:"is_fraudulent,omitempty"`
	FraudType    *string    `json:"fraud_type,omitempty"`
}

type claimsOutput struct {
	Total  int        `json:"total"`
	Limit  int        `json:"limit"`
	Offset int        `json:"offset"`
	Claims []claimRow `json:"claims"`
}

func newClaimsOutput(p store.Page) claimsOutput {
	out := claimsOutput{Total: p.Total, Limit: p.Limit, Offset: p.Offset, Claims: make([]claimRow, len(p.Claims))}
	for i, c := range p.Claims {
		out.Claims[i] = toClaimRow(c)
	}
	return out
}

func toClaimRow(c *model.Claim) claimRow {
	return claimRow{
		ID:           c.ID,
		PatientID:    c.PatientID,
		ProviderID:   c.ProviderID,
		ServiceDate:  c.ServiceDate,
		ClaimAmount:  c.ClaimAmount,
		Type:         c.Type,
		Status:       c.Status,
		IsFraudulent: c.IsFraudulent,
		FraudType:    c.FraudType,
	}
}

// claimQuery turns the parsed flags into an engine query.
func claimQuery() (engine.ClaimQuery, error) {
	q := engine.ClaimQuery{
		Limit:      claimsOpts.limit,
		Offset:     claimsOpts.offset,
		FraudOnly:  claimsOpts.fraudOnly,
		PatientID:  claimsOpts.patient,
		ProviderID: claimsOpts.provider,
	}
	var err error
	if claimsOpts.from != "" {
		if q.From, err = time.Parse(dateLayout, claimsOpts.from); err != nil {
			return q, err
		}
	}
	if claimsOpts.to != "" {
		if q.To, err = time.Parse(dateLayout, claimsOpts.to); err != nil {
			return q, err
		}
	}
	return q, nil
}

func runClaims(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat, cfg.LogLevel)
	ctx := context.Background()

	q, err := claimQuery()
	if err != nil {
		fail(log, exitcode.UsageError, err, "invalid service date")
	}

	s := openSession(ctx, log, false)
	defer s.Close()

	page, err := s.eng.ListClaims(q)
	if err != nil {
		s.Close()
		fail(log, exitcode.LoadError, err, "claims unavailable")
	}
	return printJSON(newClaimsOutput(page))
}
