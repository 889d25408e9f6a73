package simulator_test

import (
	"context"
	"testing"
	"time"

	"codeberg.org/mutker/envsim/internal/errors"
	"codeberg.org/mutker/envsim/internal/measurement"
	"codeberg.org/mutker/envsim/internal/simulator"
	"codeberg.org/mutker/envsim/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedDays inserts readings at 07:30 and 16:30 for January 1..days.
func seedDays(t *testing.T, st store.Store, loc *time.Location, days int) {
	t.Helper()
	ctx := context.Background()

	for d := 1; d <= days; d++ {
		for _, hour := range []int{7, 16} {
			ts := time.Date(2025, time.January, d, hour, 30, 0, 0, loc)
			require.NoError(t, st.Insert(ctx, measurement.NewReading(ts, 18.4, 0.59)))
		}
	}
}

func TestEnforceUnderCapacity(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	loc := saoPaulo(t)
	seedDays(t, st, loc, 3)

	evicted, err := simulator.Enforce(ctx, st, loc, 3, 2)
	require.NoError(t, err)
	assert.Zero(t, evicted)
	assert.EqualValues(t, 6, count(t, st))
}

func TestEnforceEvictsOneOldestDay(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	loc := saoPaulo(t)
	seedDays(t, st, loc, 4)

	// Capacity of one day with a backlog of three: drained one day per call.
	for _, day := range []int{1, 2, 3} {
		evicted, err := simulator.Enforce(ctx, st, loc, 1, 2)
		require.NoError(t, err)
		assert.EqualValues(t, 2, evicted)
		assert.False(t, dayPresent(t, st, loc, measurement.Date{Year: 2025, Month: time.January, Day: day}))
		assert.True(t, dayPresent(t, st, loc, measurement.Date{Year: 2025, Month: time.January, Day: 4}))
	}

	evicted, err := simulator.Enforce(ctx, st, loc, 1, 2)
	require.NoError(t, err)
	assert.Zero(t, evicted)
	assert.EqualValues(t, 2, count(t, st))
}

func TestEnforceUsesLocalDay(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	loc := saoPaulo(t)

	// 22:30 local is already the next day in UTC; it belongs with the earlier day.
	for _, ts := range []time.Time{
		time.Date(2025, time.January, 1, 7, 30, 0, 0, loc),
		time.Date(2025, time.January, 1, 22, 30, 0, 0, loc),
		time.Date(2025, time.January, 2, 7, 30, 0, 0, loc),
	} {
		require.NoError(t, st.Insert(ctx, measurement.NewReading(ts, 18, 0.6)))
	}

	evicted, err := simulator.Enforce(ctx, st, loc, 1, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 2, evicted)
	assert.EqualValues(t, 1, count(t, st))
}

func TestEnforceRejectsInvalidArguments(t *testing.T) {
	st := newStore(t)

	_, err := simulator.Enforce(context.Background(), st, saoPaulo(t), 0, 2)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidArgument))
}
