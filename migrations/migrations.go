// Package migrations embeds the SQL schema migrations applied at startup.
package migrations

import "embed"

// FS holds the migration files, one directory per database driver
//
//go:embed postgres/*.sql
var FS embed.FS
