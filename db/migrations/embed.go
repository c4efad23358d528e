// Package dbmigrations exposes embedded SQL migrations for pipeline binaries.
package dbmigrations

import "embed"

// Files contains the embedded SQL migrations bundled into pipeline binaries.
//
//go:embed *.sql
var Files embed.FS
