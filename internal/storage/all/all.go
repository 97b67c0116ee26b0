// Package all registers every run store backend and the database drivers
// they need.
package all

import (
	_ "github.com/microsoft/go-mssqldb"

	_ "prefill/internal/storage/mssql"
	_ "prefill/internal/storage/postgres"
	_ "prefill/internal/storage/sqlite"
)
