package database

import (
	"database/sql"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// connection options applied to every pooled connection; immediate
// transactions plus a busy timeout let concurrent writers queue instead of
// failing with SQLITE_BUSY
const dsnOptions = "_foreign_keys=on&_busy_timeout=10000&_txlock=immediate&_journal_mode=WAL"

// Open connects to the SQLite database at dsn and brings its schema up to date.
func Open(dsn string) (db *sql.DB, err error) {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}

	db, err = sql.Open("sqlite3", dsn+sep+dsnOptions)
	if err != nil {
		return
	}

	// db tuning options
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(2 * time.Hour)

	err = migrateDB(db)
	if err != nil {
		db.Close()
		return
	}

	return
}
