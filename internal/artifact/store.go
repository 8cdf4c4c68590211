package artifact

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	embedsql "github.com/gyeh/claimrisk/internal/sql"
)

// Store persists artifacts by name. Load returns ErrModelUnavailable when
// nothing is stored under name.
type Store interface {
	Save(ctx context.Context, a *Artifact) error
	Load(ctx context.Context, name string) (*Artifact, error)
}

// FileExt is the extension of file-backed bundles.
const FileExt = ".model"

// FileStore keeps one bundle per name at <Dir>/<name>.model.
type FileStore struct {
	Dir string
}

func (s FileStore) path(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid model name %q", name)
	}
	return filepath.Join(s.Dir, name+FileExt), nil
}

// Save writes a to a temporary file and renames it into place, so readers
// never observe a partial bundle.
func (s FileStore) Save(_ context.Context, a *Artifact) error {
	path, err := s.path(a.Name)
	if err != nil {
		return err
	}
	data, err := Encode(a)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}
	tmp, err := os.CreateTemp(s.Dir, "."+a.Name+"-*")
	if err != nil {
		return fmt.Errorf("create temp model file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write model file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close model file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("install model file: %w", err)
	}
	return nil
}

// Load reads the bundle stored under name.
func (s FileStore) Load(_ context.Context, name string) (*Artifact, error) {
	path, err := s.path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: no model file %s", ErrModelUnavailable, path)
	}
	if err != nil {
		return nil, fmt.Errorf("read model file: %w", err)
	}
	a, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return a, nil
}

// PGStore keeps bundles in claimrisk.model_artifacts, one row per name.
type PGStore struct {
	Pool *pgxpool.Pool
}

// Save upserts a under its name.
func (s PGStore) Save(ctx context.Context, a *Artifact) error {
	data, err := Encode(a)
	if err != nil {
		return err
	}
	_, err = s.Pool.Exec(ctx, embedsql.UpsertModelArtifact,
		a.Name, a.ID, a.Schema.Version(), a.Report.TrainedAt, data)
	if err != nil {
		return fmt.Errorf("save model %s: %w", a.Name, err)
	}
	return nil
}

// Load fetches and decodes the bundle stored under name.
func (s PGStore) Load(ctx context.Context, name string) (*Artifact, error) {
	var data []byte
	err := s.Pool.QueryRow(ctx, embedsql.SelectModelArtifact, name).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: no stored model %q", ErrModelUnavailable, name)
	}
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", name, err)
	}
	return Decode(data)
}
