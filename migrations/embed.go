// Package migrations embeds the PostgreSQL schema of the ride lifecycle store.
package migrations

import "embed"

// FS holds the numbered up/down migrations.
//
//go:embed *.sql
var FS embed.FS
