// Package ckptdb implements the optional database-backed checkpointer
// overlay (spec §4.4): an in-memory window cache backed by a SQL
// table once a window of snapshot-plus-deltas closes. Grounded on the
// teacher's internal/repository package for the SQL plumbing
// (dbConnection.go, hooks.go, migration.go), adapted to a purpose-
// built three-table schema instead of the teacher's job/tag/user
// schema.
package ckptdb

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/qustavo/sqlhooks/v2"

	"github.com/sparcians/map-checkpoint/pkg/log"
)

// registerDriverOnce guards the database/sql.Register call below:
// Register panics if the same driver name is registered twice in one
// process, and Connect may be called more than once per process (e.g.
// once per test), so registration must happen at most once. Grounded
// on the teacher's internal/repository/dbConnection.go:19-34 dbConnOnce
// pattern.
var registerDriverOnce sync.Once

// Connect opens a sqlite3 database at dsn, registering the driver
// wrapped with query-logging hooks exactly once per process, then
// brings the schema up to date via the embedded migrations.
func Connect(dsn string) (*sqlx.DB, error) {
	registerDriverOnce.Do(func() {
		sql.Register("ckptdb_sqlite3", sqlhooks.Wrap(&sqlite3.SQLiteDriver{}, &queryLogHooks{}))
	})
	db, err := sqlx.Open("ckptdb_sqlite3", fmt.Sprintf("%s?_foreign_keys=on", dsn))
	if err != nil {
		return nil, err
	}
	// sqlite3 does not support concurrent writers; the overlay's own
	// flush worker serializes writes, so one connection is enough and
	// avoids SQLITE_BUSY under concurrent reads.
	db.SetMaxOpenConns(1)

	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, err
	}
	log.Infof("ckptdb: connected to %s", dsn)
	return db, nil
}
