// Package migrations carries the schema migration scripts for the
// document and conversation stores.
package migrations

import "embed"

// FS holds the numbered up/down SQL scripts embedded at compile time.
//
//go:embed *.sql
var FS embed.FS
