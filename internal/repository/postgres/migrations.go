package postgres

import "embed"

// Migrations holds the goose SQL migrations for the sites schema.
//
//go:embed migrations/*.sql
var Migrations embed.FS
