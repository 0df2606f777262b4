package postgres

import "embed"

// Migrations holds the goose SQL migrations, rooted at MigrationsDir.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory within Migrations that goose reads.
const MigrationsDir = "migrations"
