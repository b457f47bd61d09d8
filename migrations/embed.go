// Package migrations embeds the SQL schema migrations for the run history
// database.
package migrations

import "embed"

// FS holds the goose migration files
//
//go:embed *.sql
var FS embed.FS
