// Package migrations embeds the SQL schema migrations applied by
// infra.RunMigrations.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
