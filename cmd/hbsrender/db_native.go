//go:build !cgo_sqlite

package main

import (
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

func openSQLite(dataSource string) (*sqlx.DB, error) {
	return sqlx.Open("sqlite", dataSource)
}
