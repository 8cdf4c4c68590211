package loader

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/gyeh/claimrisk/internal/db"
	"github.com/gyeh/claimrisk/internal/model"
	"github.com/gyeh/claimrisk/internal/normalize"
	embedsql "github.com/gyeh/claimrisk/internal/sql"
	"github.com/gyeh/claimrisk/internal/store"
)

// FromPostgres loads the entity tables from the claimrisk schema.
func FromPostgres(ctx context.Context, pool *pgxpool.Pool, log zerolog.Logger) (*store.Store, *model.LoadSummary, error) {
	start := time.Now()
	b := store.NewBuilder()
	sum := &model.LoadSummary{Source: "postgres"}

	load := func(table model.Table, err error, tl model.TableLoad) error {
		if err != nil {
			return fmt.Errorf("load %s: %w", table.Name, err)
		}
		sum.Tables = append(sum.Tables, tl)
		return nil
	}

	tl := model.TableLoad{Table: model.PatientsTable.Name}
	err := queryRows(ctx, pool, embedsql.SelectPatients, func(r *model.PatientRow) {
		ingestRow(&tl, log, r, normalize.ToPatient, b.AddPatient)
	})
	if err := load(model.PatientsTable, err, tl); err != nil {
		return nil, nil, err
	}

	tl = model.TableLoad{Table: model.ProvidersTable.Name}
	err = queryRows(ctx, pool, embedsql.SelectProviders, func(r *model.ProviderRow) {
		ingestRow(&tl, log, r, normalize.ToProvider, b.AddProvider)
	})
	if err := load(model.ProvidersTable, err, tl); err != nil {
		return nil, nil, err
	}

	tl = model.TableLoad{Table: model.PoliciesTable.Name}
	err = queryRows(ctx, pool, embedsql.SelectPolicies, func(r *model.PolicyRow) {
		ingestRow(&tl, log, r, normalize.ToPolicy, b.AddPolicy)
	})
	if err := load(model.PoliciesTable, err, tl); err != nil {
		return nil, nil, err
	}

	tl = model.TableLoad{Table: model.ClaimsTable.Name}
	err = queryRows(ctx, pool, embedsql.SelectClaims, func(r *model.ClaimRow) {
		ingestRow(&tl, log, r, normalize.ToClaim, b.AddClaim)
	})
	if err := load(model.ClaimsTable, err, tl); err != nil {
		return nil, nil, err
	}

	s := b.Build()
	finish(s, sum, start, log)
	return s, sum, nil
}

// queryRows runs query and scans each result row positionally into R.
func queryRows[R any](ctx context.Context, pool *pgxpool.Pool, query string, fn func(*R)) error {
	rows, err := pool.Query(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		r, err := pgx.RowToStructByPos[R](rows)
		if err != nil {
			return err
		}
		fn(&r)
	}
	return rows.Err()
}

// Copy row adapters. Date columns are parsed here because COPY uses the
// binary protocol and needs typed values.

type patientCopy struct{ *model.PatientRow }

func (r patientCopy) CopyValues() []any {
	return []any{
		r.PatientID, r.FirstName, r.LastName, normalize.ParseOptDate(r.DateOfBirth), r.Gender,
		r.Address, r.City, r.State, r.ZipCode, r.IsDeceased, normalize.ParseOptDate(r.DateOfDeath),
	}
}

type providerCopy struct{ *model.ProviderRow }

func (r providerCopy) CopyValues() []any {
	return []any{
		r.ProviderID, r.ProviderName, r.ProviderType, r.Specialty, r.State,
		r.YearsInPractice, r.IsInNetwork, r.FraudHistory,
	}
}

type policyCopy struct{ *model.PolicyRow }

func (r policyCopy) CopyValues() []any {
	return []any{
		r.PolicyID, r.PatientID, r.PolicyType,
		normalize.ParseOptDate(r.CoverageStart), normalize.ParseOptDate(r.CoverageEnd), r.Status,
	}
}

type claimCopy struct{ *model.ClaimRow }

func (r claimCopy) CopyValues() []any {
	return []any{
		r.ClaimID, r.PatientID, r.ProviderID, r.PolicyID,
		normalize.ParseOptDate(r.SubmissionDate), normalize.ParseOptDate(r.ServiceDate),
		r.DiagnosisCode, r.ProcedureCode, r.ClaimAmount, r.AllowedAmount, r.PaidAmount,
		r.PatientResponsibility, r.ClaimStatus, r.ClaimType, r.AdmissionType, r.LengthOfStay,
		r.IsFraudulent, r.FraudType,
	}
}

var (
	patientColumns = []string{
		"patient_id", "first_name", "last_name", "date_of_birth", "gender",
		"address", "city", "state", "zip_code", "is_deceased", "date_of_death",
	}
	providerColumns = []string{
		"provider_id", "provider_name", "provider_type", "specialty", "state",
		"years_in_practice", "is_in_network", "fraud_history",
	}
	policyColumns = []string{
		"policy_id", "patient_id", "policy_type", "coverage_start", "coverage_end", "status",
	}
	claimColumns = []string{
		"claim_id", "patient_id", "provider_id", "policy_id", "submission_date", "service_date",
		"diagnosis_code", "procedure_code", "claim_amount", "allowed_amount", "paid_amount",
		"patient_responsibility", "claim_status", "claim_type", "admission_type", "length_of_stay",
		"is_fraudulent", "fraud_type",
	}
)

// ImportDataset copies a raw dataset into the claimrisk schema inside one
// transaction, replacing any existing entity rows.
func ImportDataset(ctx context.Context, pool *pgxpool.Pool, log zerolog.Logger, ds *Dataset) (*model.LoadSummary, error) {
	start := time.Now()
	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "TRUNCATE claimrisk.claims, claimrisk.policies, claimrisk.providers, claimrisk.patients"); err != nil {
		return nil, fmt.Errorf("truncate entity tables: %w", err)
	}

	sum := &model.LoadSummary{Source: "import"}
	steps := []struct {
		table string
		copy  func() (int64, error)
	}{
		{model.PatientsTable.Name, func() (int64, error) {
			return copyRows(ctx, tx, model.PatientsTable.Name, patientColumns, ds.Patients, func(r *model.PatientRow) patientCopy { return patientCopy{r} })
		}},
		{model.ProvidersTable.Name, func() (int64, error) {
			return copyRows(ctx, tx, model.ProvidersTable.Name, providerColumns, ds.Providers, func(r *model.ProviderRow) providerCopy { return providerCopy{r} })
		}},
		{model.PoliciesTable.Name, func() (int64, error) {
			return copyRows(ctx, tx, model.PoliciesTable.Name, policyColumns, ds.Policies, func(r *model.PolicyRow) policyCopy { return policyCopy{r} })
		}},
		{model.ClaimsTable.Name, func() (int64, error) {
			return copyRows(ctx, tx, model.ClaimsTable.Name, claimColumns, ds.Claims, func(r *model.ClaimRow) claimCopy { return claimCopy{r} })
		}},
	}
	for _, st := range steps {
		n, err := st.copy()
		if err != nil {
			return nil, fmt.Errorf("copy %s: %w", st.table, err)
		}
		log.Info().Str("table", st.table).Int64("rows", n).Msg("table imported")
		sum.Tables = append(sum.Tables, model.TableLoad{Table: st.table, RowsRead: n, RowsLoaded: n})
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit import: %w", err)
	}
	sum.Duration = time.Since(start)
	return sum, nil
}

// copyRows streams rows into claimrisk.<table> through a ChannelSource.
func copyRows[R any, C db.CopyRow](ctx context.Context, tx pgx.Tx, table string, columns []string, rows []R, wrap func(*R) C) (int64, error) {
	ch := make(chan C, 256)
	go func() {
		defer close(ch)
		for i := range rows {
			select {
			case ch <- wrap(&rows[i]):
			case <-ctx.Done():
				return
			}
		}
	}()
	n, err := tx.CopyFrom(ctx, pgx.Identifier{"claimrisk", table}, columns, db.NewChannelSource(ch))
	if err != nil {
		// Drain so the producer goroutine exits.
		for range ch {
		}
		return n, err
	}
	return n, ctx.Err()
}
