//go:build !cgo_sqlite

package main

import (
	"database/sql"
	_ "modernc.org/sqlite"
)

// initDB opens the API-key store with the pure-Go sqlite driver, the
// default when building without the cgo_sqlite tag.
func initDB(dataSource string) (*sql.DB, error) {
	return sql.Open("sqlite", dataSource)
}
