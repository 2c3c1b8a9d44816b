package database

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"edgelink/internal/platform/config"
)

// Open connects to the link store. SQLite keeps the edge deployment
// self-contained; the repository layer only depends on database/sql.
func Open(cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", cfg.Path+"?cache=shared&mode=rwc&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return db, nil
}
