// Package migrations embebe los SQL del identity store.
package migrations

import "embed"

// FS contiene los pares NNNN_name_up.sql / NNNN_name_down.sql.
//
//go:embed *.sql
var FS embed.FS
