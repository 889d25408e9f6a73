package store

import (
	"context"
	"database/sql"

	"codeberg.org/mutker/envsim/internal/errors"
	"codeberg.org/mutker/envsim/internal/logger"
)

const (
	SchemaVersion = 1

	createTablesSQL = `
	   CREATE TABLE IF NOT EXISTS schema_versions (
	       version     INTEGER PRIMARY KEY,
	       applied_at  TEXT NOT NULL
	   );
	   CREATE TABLE IF NOT EXISTS readings (
	       timestamp           INTEGER PRIMARY KEY,
	       temperature_current REAL NOT NULL,
	       temperature_min     REAL NOT NULL,
	       temperature_max     REAL NOT NULL,
	       humidity_current    REAL NOT NULL CHECK (humidity_current BETWEEN 0 AND 1),
	       humidity_min        REAL NOT NULL CHECK (humidity_min BETWEEN 0 AND 1),
	       humidity_max        REAL NOT NULL CHECK (humidity_max BETWEEN 0 AND 1)
	   );`

	insertReadingSQL = `
    INSERT INTO readings (
        timestamp,
        temperature_current, temperature_min, temperature_max,
        humidity_current, humidity_min, humidity_max
    ) VALUES (?, ?, ?, ?, ?, ?, ?)`

	selectColumns = `timestamp,
        temperature_current, temperature_min, temperature_max,
        humidity_current, humidity_min, humidity_max`

	latestReadingSQL   = `SELECT ` + selectColumns + ` FROM readings ORDER BY timestamp DESC LIMIT 1`
	earliestReadingSQL = `SELECT ` + selectColumns + ` FROM readings ORDER BY timestamp ASC LIMIT 1`

	existsAtSQL      = `SELECT EXISTS (SELECT 1 FROM readings WHERE timestamp = ?)`
	existsInRangeSQL = `SELECT EXISTS (SELECT 1 FROM readings WHERE timestamp >= ? AND timestamp < ?)`
	deleteRangeSQL   = `DELETE FROM readings WHERE timestamp >= ? AND timestamp < ?`
	countSQL         = `SELECT COUNT(*) FROM readings`
)

// InitSchema creates a new database schema with the current version
func InitSchema(ctx context.Context, db *sql.DB, log logger.Logger) error {
	errFactory := errors.New()

	log.Debug().Msg("Creating database...")

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}

	// Track transaction state
	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
				log.Debug().Err(err).Msg("Failed to rollback transaction")
			}
		}
	}()

	if _, err := tx.ExecContext(ctx, createTablesSQL); err != nil {
		return errFactory.WithData(ErrSchemaInitFailed, struct {
			Error string
			Phase string
		}{
			Error: err.Error(),
			Phase: "create_tables",
		})
	}

	if _, err := tx.ExecContext(ctx, `
        INSERT INTO schema_versions (version, applied_at)
        VALUES (?, datetime('now'))
    `, SchemaVersion); err != nil {
		return errFactory.WithData(ErrSchemaInitFailed, struct {
			Error string
			Phase string
		}{
			Error: err.Error(),
			Phase: "record_version",
		})
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}
	committed = true

	log.Info().
		Int("version", SchemaVersion).
		Msg("Schema initialized successfully")

	return nil
}

// GetSchemaVersion returns the current schema version, 0 for a new database.
func GetSchemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	errFactory := errors.New()

	exists, err := TableExists(ctx, db, "schema_versions")
	if err != nil {
		return 0, errFactory.Wrap(ErrSchemaValidationFailed, err)
	}
	if !exists {
		return 0, nil
	}

	var version int
	err = db.QueryRowContext(ctx, `
        SELECT version
        FROM schema_versions
        ORDER BY version DESC
        LIMIT 1
    `).Scan(&version)

	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, errFactory.WithData(ErrSchemaValidationFailed, struct {
			Phase string
			Error string
		}{
			Phase: "get_version",
			Error: err.Error(),
		})
	}

	return version, nil
}

// TableExists checks if a table exists
func TableExists(ctx context.Context, db *sql.DB, tableName string) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx, `
        SELECT EXISTS (
            SELECT 1 FROM sqlite_master
            WHERE type='table' AND name=?
        )
    `, tableName).Scan(&exists)
	if err != nil {
		return false, errors.New().WithData(ErrSchemaValidationFailed, struct {
			Phase string
			Table string
			Error string
		}{
			Phase: "check_table_exists",
			Table: tableName,
			Error: err.Error(),
		})
	}
	return exists, nil
}
