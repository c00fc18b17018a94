package storage

import (
	"fmt"

	"ledger-socket/src/interfaces"
	"ledger-socket/src/logger"
	"ledger-socket/src/models"
)

// -----------------------------------------------------------------------------

// NewDatabase builds and initializes the backend selected by storage.db_type.
func NewDatabase(cfg *models.MConfig) (interfaces.IDatabase, error) {
	var db interfaces.IDatabase
	var err error

	switch cfg.Storage.DBType {
	case "postgres":
		db, err = NewPostgresDB(cfg, logger.NewLogger(cfg, "PostgresDB"))
	case "sqlite", "":
		db, err = NewSQLiteDB(cfg, logger.NewLogger(cfg, "SQLiteDB"))
	default:
		return nil, fmt.Errorf("unsupported database type %q", cfg.Storage.DBType)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to init db: %w", err)
	}

	if err := db.Initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate db: %w", err)
	}
	return db, nil
}
