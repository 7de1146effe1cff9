// Package database opens the gateway's local sqlite storage.
package database

import (
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // sqlite driver
)

// Open connects to the sqlite file at path, creating it if absent. The
// file serves a single process; one writer connection avoids lock
// contention.
func Open(path string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return db, nil
}
