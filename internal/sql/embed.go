package sql

import "embed"

// Migrations holds the schema DDL applied by db.ApplyMigrations.
//
//go:embed migrations/*.sql
var Migrations embed.FS
