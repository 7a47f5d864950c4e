// Package migrations embeds the SQL schema migrations.
// Files are applied in lexical order; each NNNNNN_name.up.sql has a matching
// .down.sql that reverses it.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
