//go:build cgo_sqlite

package main

import (
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

func openSQLite(dataSource string) (*sqlx.DB, error) {
	return sqlx.Open("sqlite3", dataSource)
}
