package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/gyeh/claimrisk/internal/model"
	"github.com/gyeh/claimrisk/internal/normalize"
	"github.com/gyeh/claimrisk/internal/parquetread"
	"github.com/gyeh/claimrisk/internal/store"
)

const readBatchSize = 1024

// FromParquetDir loads patients.parquet, providers.parquet, policies.parquet
// (optional) and claims.parquet from dir.
func FromParquetDir(ctx context.Context, dir string, log zerolog.Logger) (*store.Store, *model.LoadSummary, error) {
	start := time.Now()
	b := store.NewBuilder()
	sum := &model.LoadSummary{Source: dir}

	steps := []struct {
		table model.Table
		load  func(path string, tl *model.TableLoad) error
	}{
		{model.PatientsTable, func(path string, tl *model.TableLoad) error {
			return readTable(ctx, path, model.PatientsTable, func(r *model.PatientRow) {
				ingestRow(tl, log, r, normalize.ToPatient, b.AddPatient)
			})
		}},
		{model.ProvidersTable, func(path string, tl *model.TableLoad) error {
			return readTable(ctx, path, model.ProvidersTable, func(r *model.ProviderRow) {
				ingestRow(tl, log, r, normalize.ToProvider, b.AddProvider)
			})
		}},
		{model.PoliciesTable, func(path string, tl *model.TableLoad) error {
			return readTable(ctx, path, model.PoliciesTable, func(r *model.PolicyRow) {
				ingestRow(tl, log, r, normalize.ToPolicy, b.AddPolicy)
			})
		}},
		{model.ClaimsTable, func(path string, tl *model.TableLoad) error {
			return readTable(ctx, path, model.ClaimsTable, func(r *model.ClaimRow) {
				ingestRow(tl, log, r, normalize.ToClaim, b.AddClaim)
			})
		}},
	}

	var paths []string
	for _, st := range steps {
		path := filepath.Join(dir, st.table.File)
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) && st.table.Name == model.PoliciesTable.Name {
			log.Info().Str("table", st.table.Name).Msg("optional table not present, skipping")
			continue
		}
		tl := model.TableLoad{Table: st.table.Name}
		if err := st.load(path, &tl); err != nil {
			return nil, nil, err
		}
		sum.Tables = append(sum.Tables, tl)
		paths = append(paths, path)
	}

	fp, err := normalize.FilesHash(paths...)
	if err != nil {
		return nil, nil, err
	}
	sum.Fingerprint = fp

	s := b.Build()
	finish(s, sum, start, log)
	return s, sum, nil
}

// readTable streams a Parquet file through fn after validating its schema.
// Context cancellation is checked between batches.
func readTable[R any](ctx context.Context, path string, table model.Table, fn func(*R)) error {
	r, err := parquetread.Open[R](path)
	if err != nil {
		return fmt.Errorf("%s: %w", table.Name, err)
	}
	defer r.Close()

	if err := parquetread.ValidateSchema(r.Schema(), table); err != nil {
		return err
	}

	n := 0
	return r.Each(readBatchSize, func(row *R) error {
		n++
		if n%readBatchSize == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		fn(row)
		return nil
	})
}

// Dataset is a raw, unnormalized set of entity tables.
type Dataset struct {
	Patients  []model.PatientRow
	Providers []model.ProviderRow
	Policies  []model.PolicyRow
	Claims    []model.ClaimRow
}

// WriteParquetDir writes ds as a dataset directory readable by FromParquetDir.
// The policies file is omitted when ds has no policies.
func WriteParquetDir(dir string, ds *Dataset) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dataset dir: %w", err)
	}
	if err := parquetread.WriteFile(filepath.Join(dir, model.PatientsTable.File), ds.Patients); err != nil {
		return fmt.Errorf("patients: %w", err)
	}
	if err := parquetread.WriteFile(filepath.Join(dir, model.ProvidersTable.File), ds.Providers); err != nil {
		return fmt.Errorf("providers: %w", err)
	}
	if len(ds.Policies) > 0 {
		if err := parquetread.WriteFile(filepath.Join(dir, model.PoliciesTable.File), ds.Policies); err != nil {
			return fmt.Errorf("policies: %w", err)
		}
	}
	if err := parquetread.WriteFile(filepath.Join(dir, model.ClaimsTable.File), ds.Claims); err != nil {
		return fmt.Errorf("claims: %w", err)
	}
	return nil
}

// ReadParquetDir reads a dataset directory without normalizing it.
func ReadParquetDir(ctx context.Context, dir string) (*Dataset, error) {
	ds := &Dataset{}
	if err := readTable(ctx, filepath.Join(dir, model.PatientsTable.File), model.PatientsTable, func(r *model.PatientRow) {
		ds.Patients = append(ds.Patients, *r)
	}); err != nil {
		return nil, err
	}
	if err := readTable(ctx, filepath.Join(dir, model.ProvidersTable.File), model.ProvidersTable, func(r *model.ProviderRow) {
		ds.Providers = append(ds.Providers, *r)
	}); err != nil {
		return nil, err
	}
	policies := filepath.Join(dir, model.PoliciesTable.File)
	if _, err := os.Stat(policies); err == nil {
		if err := readTable(ctx, policies, model.PoliciesTable, func(r *model.PolicyRow) {
			ds.Policies = append(ds.Policies, *r)
		}); err != nil {
			return nil, err
		}
	}
	if err := readTable(ctx, filepath.Join(dir, model.ClaimsTable.File), model.ClaimsTable, func(r *model.ClaimRow) {
		ds.Claims = append(ds.Claims, *r)
	}); err != nil {
		return nil, err
	}
	return ds, nil
}
