package sql

import (
	_ "embed"
)

//go:embed queries/select_patients.sql
var SelectPatients string

//go:embed queries/select_providers.sql
var SelectProviders string

//go:embed queries/select_policies.sql
var SelectPolicies string

//go:embed queries/select_claims.sql
var SelectClaims string

//go:embed queries/upsert_model_artifact.sql
var UpsertModelArtifact string

//go:embed queries/select_model_artifact.sql
var SelectModelArtifact string

//go:embed queries/insert_scoring_run.sql
var InsertScoringRun string

//go:embed queries/finish_scoring_run.sql
var FinishScoringRun string
