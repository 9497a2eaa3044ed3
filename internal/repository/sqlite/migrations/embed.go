package migrations

import "embed"

// FS contains the embedded SQLite schema.
//
//go:embed *.sql
var FS embed.FS
