package store

import (
	"context"
	"time"

	"codeberg.org/mutker/envsim/internal/measurement"
)

// Querier holds the reading operations available both on the store and
// inside a transaction.
type Querier interface {
	// Insert persists a reading. A reading with the same timestamp fails
	// with ErrDuplicateReading.
	Insert(ctx context.Context, r measurement.Reading) error
	// ExistsAt reports whether a reading exists at exactly ts.
	ExistsAt(ctx context.Context, ts time.Time) (bool, error)
	// ExistsInRange reports whether any reading falls in [start, end).
	ExistsInRange(ctx context.Context, start, end time.Time) (bool, error)
	// Latest returns the most recent reading; false when the store is empty.
	Latest(ctx context.Context) (measurement.Reading, bool, error)
	// Earliest returns the oldest reading; false when the store is empty.
	Earliest(ctx context.Context) (measurement.Reading, bool, error)
	// DeleteInRange removes every reading in [start, end) and returns the count.
	DeleteInRange(ctx context.Context, start, end time.Time) (int64, error)
	// Count returns the number of stored readings.
	Count(ctx context.Context) (int64, error)
}

// Store is the time-series store shared between the simulator and its
// read-only consumers.
type Store interface {
	Querier

	// WithTransaction runs fn inside one transaction. Everything fn does
	// through q commits together, or is rolled back when fn returns an error.
	WithTransaction(ctx context.Context, fn func(q Querier) error) error

	// Ping checks database connectivity.
	Ping(ctx context.Context) error

	Close() error
}
