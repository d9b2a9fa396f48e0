// Package civic holds assets embedded into the binaries.
package civic

import "embed"

// Migrations contains the goose SQL migrations of the PostgreSQL backend.
//
//go:embed migrations/*.sql
var Migrations embed.FS
