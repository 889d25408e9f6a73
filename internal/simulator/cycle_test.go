package simulator_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"codeberg.org/mutker/envsim/internal/errors"
	"codeberg.org/mutker/envsim/internal/logger"
	"codeberg.org/mutker/envsim/internal/measurement"
	"codeberg.org/mutker/envsim/internal/simulator"
	"codeberg.org/mutker/envsim/internal/store"
	"codeberg.org/mutker/envsim/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var twiceDaily = []string{"07:30", "16:30"}

func jan(day int) measurement.Date {
	return measurement.Date{Year: 2025, Month: time.January, Day: day}
}

func TestBootstrapInsertsFirstDay(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	loc := saoPaulo(t)
	e := newExecutor(t, st, cycleConfig(t, twiceDaily, 2), nil)

	res, err := e.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, jan(1), res.Day)
	assert.Equal(t, 2, res.Inserted)
	assert.Zero(t, res.Evicted)
	assert.EqualValues(t, 2, res.Total)
	assert.False(t, res.Skipped)
	assert.NotEmpty(t, res.CycleID)

	first, ok, err := st.Earliest(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, first.Timestamp.Equal(time.Date(2025, time.January, 1, 7, 30, 0, 0, loc)))

	last, ok, err := st.Latest(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, last.Timestamp.Equal(time.Date(2025, time.January, 1, 16, 30, 0, 0, loc)))

	// Min and max mirror the generated value.
	assert.Equal(t, last.Temperature.Current, last.Temperature.Min)
	assert.Equal(t, last.Temperature.Current, last.Temperature.Max)
	assert.Equal(t, last.Humidity.Current, last.Humidity.Min)
	assert.Equal(t, last.Humidity.Current, last.Humidity.Max)
}

func TestSteadyStateEviction(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	loc := saoPaulo(t)
	e := newExecutor(t, st, cycleConfig(t, twiceDaily, 2), nil)

	require.True(t, e.RunCycle(ctx))
	require.True(t, e.RunCycle(ctx))
	assert.EqualValues(t, 4, count(t, st))

	res, err := e.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, jan(3), res.Day)
	assert.Equal(t, 2, res.Inserted)
	assert.EqualValues(t, 2, res.Evicted)
	assert.EqualValues(t, 4, count(t, st))

	assert.False(t, dayPresent(t, st, loc, jan(1)))
	assert.True(t, dayPresent(t, st, loc, jan(2)))
	assert.True(t, dayPresent(t, st, loc, jan(3)))
}

func TestGrowthBoundAndEvictionGranularity(t *testing.T) {
	const (
		targetDays = 3
		k          = 2
	)
	ctx := context.Background()
	st := newStore(t)
	e := newExecutor(t, st, cycleConfig(t, twiceDaily, targetDays), nil)

	for n := 1; n <= 8; n++ {
		res, err := e.Run(ctx)
		require.NoError(t, err)

		assert.Equal(t, k, res.Inserted)
		assert.EqualValues(t, min(n, targetDays)*k, count(t, st), "after cycle %d", n)
		if n > targetDays {
			assert.EqualValues(t, k, res.Evicted, "after cycle %d", n)
		} else {
			assert.Zero(t, res.Evicted)
		}
	}
}

func TestReplayOfProcessedDayIsNoop(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	loc := saoPaulo(t)
	e := newExecutor(t, st, cycleConfig(t, twiceDaily, 2), nil)
	require.True(t, e.RunCycle(ctx))

	// A cycle that derived its target day before the first one committed
	// targets the same day again.
	stale := &wrappedStore{Store: st, wrap: func(q store.Querier) store.Querier {
		return staleLatest{
			Querier: q,
			latest:  measurement.NewReading(time.Date(2024, time.December, 31, 16, 30, 0, 0, loc), 18, 0.6),
		}
	}}
	replay := newExecutor(t, stale, cycleConfig(t, twiceDaily, 2), nil)

	for i := 0; i < 2; i++ {
		res, err := replay.Run(ctx)
		require.NoError(t, err)
		assert.True(t, res.Skipped)
		assert.Equal(t, jan(1), res.Day)
		assert.Zero(t, res.Inserted)
		assert.EqualValues(t, 2, count(t, st))
	}
}

func TestDuplicateDailyTimesInsertOnce(t *testing.T) {
	st := newStore(t)
	e := newExecutor(t, st, cycleConfig(t, []string{"07:30", "7:30", "16:30"}, 2), nil)

	res, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Inserted)
	assert.EqualValues(t, 2, count(t, st))
}

func TestMalformedDailyTimeAbortsCycle(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)

	for _, times := range [][]string{{"7:xx"}, {"07:30", "25:00"}, {}} {
		e := newExecutor(t, st, cycleConfig(t, times, 2), nil)

		assert.False(t, e.RunCycle(ctx), "daily times %q", times)

		_, err := e.Run(ctx)
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.ErrInvalidDailyTime))
		assert.Zero(t, count(t, st))
	}
}

func TestStorageFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)

	fc := &failingCount{}
	failing := &wrappedStore{Store: st, wrap: func(q store.Querier) store.Querier {
		fc.Querier = q
		return fc
	}}
	e := newExecutor(t, failing, cycleConfig(t, twiceDaily, 2), nil)

	_, err := e.Run(ctx)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCycle))
	assert.True(t, store.IsStorageError(err))
	assert.Positive(t, fc.calls.Load())

	assert.Zero(t, count(t, st), "inserted readings must be rolled back")

	// The next cycle on a healthy store starts from the same state.
	healthy := newExecutor(t, st, cycleConfig(t, twiceDaily, 2), nil)
	res, err := healthy.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, jan(1), res.Day)
}

func TestCountsViolations(t *testing.T) {
	st := newStore(t)
	cfg := cycleConfig(t, twiceDaily, 2)
	cfg.Limits = measurement.Limits{TemperatureLow: 100, TemperatureHigh: 200, HumidityPct: 100}
	e := newExecutor(t, st, cfg, nil)

	res, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Violations)
}

func TestConcurrentCyclesInsertDistinctDays(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	loc := saoPaulo(t)
	e := newExecutor(t, st, cycleConfig(t, twiceDaily, 10), nil)

	const workers = 4
	var wg sync.WaitGroup
	results := make(chan bool, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- e.RunCycle(ctx)
		}()
	}
	wg.Wait()
	close(results)

	for ok := range results {
		assert.True(t, ok)
	}
	assert.EqualValues(t, workers*2, count(t, st))
	for d := 1; d <= workers; d++ {
		assert.True(t, dayPresent(t, st, loc, jan(d)))
	}
}

func TestCycleMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := telemetry.NewService(telemetry.Config{Enabled: true, Namespace: "envsim"}, reg)
	require.NoError(t, err)

	st := newStore(t)
	e := newExecutor(t, st, cycleConfig(t, twiceDaily, 1), rec)
	require.True(t, e.RunCycle(context.Background()))
	require.True(t, e.RunCycle(context.Background()))

	expected := `
# HELP envsim_readings_inserted_total Readings generated and persisted.
# TYPE envsim_readings_inserted_total counter
envsim_readings_inserted_total 4
# HELP envsim_readings_evicted_total Readings removed by the retention policy.
# TYPE envsim_readings_evicted_total counter
envsim_readings_evicted_total 2
# HELP envsim_store_readings Readings currently held by the store.
# TYPE envsim_store_readings gauge
envsim_store_readings 2
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"envsim_readings_inserted_total", "envsim_readings_evicted_total", "envsim_store_readings"))
}

func TestNewExecutorValidation(t *testing.T) {
	st := newStore(t)
	gen, err := simulator.NewGenerator(simulator.DefaultParams(), simulator.NewSource(1))
	require.NoError(t, err)

	cfg := cycleConfig(t, twiceDaily, 0)
	_, err = simulator.NewExecutor(st, gen, cfg, logger.Nop(), nil)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidTargetDays))

	cfg = cycleConfig(t, twiceDaily, 2)
	cfg.Location = nil
	_, err = simulator.NewExecutor(st, gen, cfg, logger.Nop(), nil)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidTimezone))
}
