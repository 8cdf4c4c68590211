// Package loader builds entity stores from a Parquet dataset directory, from
// the claimrisk Postgres schema or from an in-memory dataset.
package loader

import (
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/gyeh/claimrisk/internal/model"
	"github.com/gyeh/claimrisk/internal/normalize"
	"github.com/gyeh/claimrisk/internal/store"
)

// ingestRow converts one raw row and adds it to the builder, counting the
// outcome on tl. Conversion or duplicate-id failures reject the row and are
// logged at debug level; they never fail the load.
func ingestRow[R, E any](tl *model.TableLoad, log zerolog.Logger, row *R, conv func(*R) (E, error), add func(E) error) {
	tl.RowsRead++
	e, err := conv(row)
	if err == nil {
		err = add(e)
	}
	if err != nil {
		tl.RowsRejected++
		log.Debug().Err(err).Str("table", tl.Table).Msg("row rejected")
		return
	}
	tl.RowsLoaded++
}

// finish logs per-table counts and warns about claims that reference
// patients or providers absent from the store.
func finish(s *store.Store, sum *model.LoadSummary, start time.Time, log zerolog.Logger) {
	sum.Duration = time.Since(start)

	dangling := 0
	for _, c := range s.Claims() {
		_, perr := s.GetPatient(c.PatientID)
		_, derr := s.GetProvider(c.ProviderID)
		if errors.Is(perr, store.ErrNotFound) || errors.Is(derr, store.ErrNotFound) {
			dangling++
		}
	}

	for _, tl := range sum.Tables {
		ev := log.Info()
		if tl.RowsRejected > 0 {
			ev = log.Warn()
		}
		ev.Str("table", tl.Table).
			Int64("rows_read", tl.RowsRead).
			Int64("rows_loaded", tl.RowsLoaded).
			Int64("rows_rejected", tl.RowsRejected).
			Msg("table loaded")
	}
	if dangling > 0 {
		log.Warn().Int("claims", dangling).Msg("claims reference unknown patients or providers; they will not be scored")
	}
	log.Info().
		Str("source", sum.Source).
		Int("claims", s.NumClaims()).
		Dur("duration", sum.Duration).
		Msg("entity store built")
}

// FromDataset normalizes an in-memory dataset into a store.
func FromDataset(ds *Dataset, log zerolog.Logger) (*store.Store, *model.LoadSummary) {
	start := time.Now()
	b := store.NewBuilder()
	sum := &model.LoadSummary{Source: "memory"}

	sum.Tables = append(sum.Tables,
		ingestAll(model.PatientsTable, ds.Patients, log, normalize.ToPatient, b.AddPatient),
		ingestAll(model.ProvidersTable, ds.Providers, log, normalize.ToProvider, b.AddProvider),
		ingestAll(model.PoliciesTable, ds.Policies, log, normalize.ToPolicy, b.AddPolicy),
		ingestAll(model.ClaimsTable, ds.Claims, log, normalize.ToClaim, b.AddClaim),
	)

	s := b.Build()
	finish(s, sum, start, log)
	return s, sum
}

func ingestAll[R, E any](table model.Table, rows []R, log zerolog.Logger, conv func(*R) (E, error), add func(E) error) model.TableLoad {
	tl := model.TableLoad{Table: table.Name}
	for i := range rows {
		ingestRow(&tl, log, &rows[i], conv, add)
	}
	return tl
}
