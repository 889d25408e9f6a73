package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"time"

	"codeberg.org/mutker/envsim/internal/errors"
	"codeberg.org/mutker/envsim/internal/logger"
	"codeberg.org/mutker/envsim/internal/measurement"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type queries struct {
	db  dbtx
	loc *time.Location
}

type sqliteStore struct {
	*queries
	db     *sql.DB
	logger logger.Logger
	cfg    Config
}

// Open opens (creating if needed) the SQLite store described by cfg and
// brings its schema up to date, unless cfg.NoMigrate is set.
func Open(ctx context.Context, cfg Config, log logger.Logger) (Store, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}

	if cfg.NoMigrate && !cfg.inMemory() {
		if _, err := os.Stat(cfg.filePath()); err != nil {
			return nil, errFactory.WithData(ErrStorageInit, struct {
				Phase string
				Path  string
				Error string
			}{
				Phase: "stat_database",
				Path:  cfg.DBPath,
				Error: err.Error(),
			})
		}
	}

	if !cfg.inMemory() && !cfg.NoMigrate {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), defaultDirPerm); err != nil {
			return nil, errFactory.WithData(ErrStorageInit, struct {
				Phase string
				Path  string
				Error string
			}{
				Phase: "create_directory",
				Path:  cfg.DBPath,
				Error: err.Error(),
			})
		}
	}

	db, err := sql.Open(cfg.Driver, cfg.dsn())
	if err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Error string
		}{
			Phase: "open_database",
			Error: err.Error(),
		})
	}

	// SQLite has a single writer. One connection also serialises concurrent
	// cycles, and keeps an in-memory database alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Error string
		}{
			Phase: "ping",
			Error: err.Error(),
		})
	}

	if cfg.NoMigrate {
		if err := VerifySchema(ctx, db); err != nil {
			db.Close()
			return nil, errFactory.Wrap(ErrStorageInit, err)
		}
	} else if err := migrate(ctx, db, cfg, log); err != nil {
		db.Close()
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Error string
		}{
			Phase: "schema_version",
			Error: err.Error(),
		})
	}

	log.Info().
		Str("path", cfg.DBPath).
		Str("driver", cfg.Driver).
		Str("location", cfg.Location.String()).
		Int("schema_version", SchemaVersion).
		Msg("Reading store initialized")

	return &sqliteStore{
		queries: &queries{db: db, loc: cfg.Location},
		db:      db,
		logger:  log,
		cfg:     cfg,
	}, nil
}

func migrate(ctx context.Context, db *sql.DB, cfg Config, log logger.Logger) error {
	backupDir := cfg.backupDir()
	if cfg.inMemory() {
		backupDir = ""
	}
	return ValidateAndUpdateSchema(ctx, db, backupDir, log)
}

func (s *sqliteStore) WithTransaction(ctx context.Context, fn func(q Querier) error) error {
	errFactory := errors.New()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errFactory.Wrap(ErrTransactionFailed, err)
	}

	// Track transaction state; also rolls back when fn panics.
	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
				s.logger.Error().Err(err).Msg("Failed to roll back transaction")
			}
		}
	}()

	if err := fn(&queries{db: tx, loc: s.loc}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(ErrTransactionFailed, err)
	}
	committed = true

	return nil
}

func (s *sqliteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return errors.New().Wrap(ErrStorageAccess, err)
	}

	var ok int
	if err := s.db.QueryRowContext(ctx, `SELECT 1`).Scan(&ok); err != nil {
		return errors.New().Wrap(ErrStorageAccess, err)
	}

	return nil
}

func (s *sqliteStore) Close() error {
	if !s.cfg.inMemory() {
		if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to checkpoint WAL")
		}
	}

	if err := s.db.Close(); err != nil {
		return errors.New().WithData(ErrStorageClose, struct {
			Phase string
			Error string
		}{
			Phase: "close_database",
			Error: err.Error(),
		})
	}

	s.logger.Info().Msg("Reading store closed gracefully")

	return nil
}

func (q *queries) Insert(ctx context.Context, r measurement.Reading) error {
	errFactory := errors.New()

	_, err := q.db.ExecContext(ctx, insertReadingSQL,
		r.Timestamp.Unix(),
		r.Temperature.Current,
		r.Temperature.Min,
		r.Temperature.Max,
		r.Humidity.Current,
		r.Humidity.Min,
		r.Humidity.Max,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return errFactory.WithData(ErrDuplicateReading, r.Timestamp.Format(time.RFC3339))
		}
		return errFactory.Wrap(ErrStorageAccess, err)
	}

	return nil
}

func (q *queries) ExistsAt(ctx context.Context, ts time.Time) (bool, error) {
	return q.exists(ctx, existsAtSQL, ts.Unix())
}

func (q *queries) ExistsInRange(ctx context.Context, start, end time.Time) (bool, error) {
	return q.exists(ctx, existsInRangeSQL, start.Unix(), end.Unix())
}

func (q *queries) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var exists bool
	if err := q.db.QueryRowContext(ctx, query, args...).Scan(&exists); err != nil {
		return false, errors.New().Wrap(ErrStorageAccess, err)
	}
	return exists, nil
}

func (q *queries) Latest(ctx context.Context) (measurement.Reading, bool, error) {
	return q.one(ctx, latestReadingSQL)
}

func (q *queries) Earliest(ctx context.Context) (measurement.Reading, bool, error) {
	return q.one(ctx, earliestReadingSQL)
}

func (q *queries) one(ctx context.Context, query string) (measurement.Reading, bool, error) {
	var (
		r  measurement.Reading
		ts int64
	)

	err := q.db.QueryRowContext(ctx, query).Scan(
		&ts,
		&r.Temperature.Current,
		&r.Temperature.Min,
		&r.Temperature.Max,
		&r.Humidity.Current,
		&r.Humidity.Min,
		&r.Humidity.Max,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return measurement.Reading{}, false, nil
	}
	if err != nil {
		return measurement.Reading{}, false, errors.New().Wrap(ErrStorageAccess, err)
	}

	r.Timestamp = time.Unix(ts, 0).In(q.loc)

	return r, true, nil
}

func (q *queries) DeleteInRange(ctx context.Context, start, end time.Time) (int64, error) {
	errFactory := errors.New()

	res, err := q.db.ExecContext(ctx, deleteRangeSQL, start.Unix(), end.Unix())
	if err != nil {
		return 0, errFactory.Wrap(ErrStorageAccess, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, errFactory.Wrap(ErrStorageAccess, err)
	}

	return n, nil
}

func (q *queries) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := q.db.QueryRowContext(ctx, countSQL).Scan(&n); err != nil {
		return 0, errors.New().Wrap(ErrStorageAccess, err)
	}
	return n, nil
}

// isUniqueViolation matches the constraint message both drivers surface.
func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "PRIMARY KEY must be unique")
}
