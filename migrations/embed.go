// Package migrations embeds the SQL schema for every supported database dialect.
package migrations

import "embed"

// FS holds sqlite/*.sql, postgres/*.sql and mysql/*.sql.
//
//go:embed sqlite/*.sql postgres/*.sql mysql/*.sql
var FS embed.FS
