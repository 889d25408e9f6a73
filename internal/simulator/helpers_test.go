package simulator_test

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"codeberg.org/mutker/envsim/internal/errors"
	"codeberg.org/mutker/envsim/internal/logger"
	"codeberg.org/mutker/envsim/internal/measurement"
	"codeberg.org/mutker/envsim/internal/simulator"
	"codeberg.org/mutker/envsim/internal/store"
	"codeberg.org/mutker/envsim/internal/telemetry"
	"github.com/stretchr/testify/require"
)

func saoPaulo(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)
	return loc
}

func newStore(t *testing.T) store.Store {
	t.Helper()

	s, err := store.Open(context.Background(), store.Config{
		DBPath:   filepath.Join(t.TempDir(), "readings.db"),
		Driver:   store.DriverPure,
		Location: saoPaulo(t),
	}, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s
}

func cycleConfig(t *testing.T, dailyTimes []string, targetDays int) simulator.CycleConfig {
	t.Helper()

	return simulator.CycleConfig{
		DailyTimes:    dailyTimes,
		TargetDays:    targetDays,
		BootstrapDate: measurement.Date{Year: 2025, Month: time.January, Day: 1},
		Location:      saoPaulo(t),
		Limits:        measurement.DefaultLimits(),
	}
}

func newExecutor(t *testing.T, st store.Store, cfg simulator.CycleConfig, rec telemetry.Recorder) *simulator.Executor {
	t.Helper()

	gen, err := simulator.NewGenerator(simulator.DefaultParams(), simulator.NewSource(7))
	require.NoError(t, err)

	e, err := simulator.NewExecutor(st, gen, cfg, logger.Nop(), rec)
	require.NoError(t, err)

	return e
}

func count(t *testing.T, st store.Store) int64 {
	t.Helper()
	n, err := st.Count(context.Background())
	require.NoError(t, err)
	return n
}

func dayPresent(t *testing.T, st store.Store, loc *time.Location, d measurement.Date) bool {
	t.Helper()
	start, end := d.Range(loc)
	ok, err := st.ExistsInRange(context.Background(), start, end)
	require.NoError(t, err)
	return ok
}

// wrappedStore lets tests intercept the querier handed to transactions.
type wrappedStore struct {
	store.Store
	wrap func(q store.Querier) store.Querier
}

func (w *wrappedStore) WithTransaction(ctx context.Context, fn func(q store.Querier) error) error {
	return w.Store.WithTransaction(ctx, func(q store.Querier) error {
		return fn(w.wrap(q))
	})
}

// failingCount fails Count after the readings were inserted.
type failingCount struct {
	store.Querier
	calls atomic.Int32
}

func (f *failingCount) Count(context.Context) (int64, error) {
	f.calls.Add(1)
	return 0, errors.New().Wrap(store.ErrStorageAccess, context.DeadlineExceeded)
}

// staleLatest reports a fixed most recent reading.
type staleLatest struct {
	store.Querier
	latest measurement.Reading
}

func (s staleLatest) Latest(context.Context) (measurement.Reading, bool, error) {
	return s.latest, true, nil
}
