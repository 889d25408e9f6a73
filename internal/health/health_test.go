package health_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"codeberg.org/mutker/envsim/internal/errors"
	"codeberg.org/mutker/envsim/internal/health"
	"codeberg.org/mutker/envsim/internal/measurement"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	pingErr   error
	latest    measurement.Reading
	hasLatest bool
	latestErr error
}

func (f fakeSource) Ping(context.Context) error { return f.pingErr }

func (f fakeSource) Latest(context.Context) (measurement.Reading, bool, error) {
	return f.latest, f.hasLatest, f.latestErr
}

var now = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

func TestCheck(t *testing.T) {
	storeErr := errors.New().New(errors.ErrUnavailable)

	tests := []struct {
		name     string
		src      fakeSource
		status   health.Level
		database health.Level
		recent   health.Level
	}{
		{
			name:     "fresh data",
			src:      fakeSource{latest: measurement.NewReading(now.Add(-time.Hour), 18, 0.6), hasLatest: true},
			status:   health.Healthy,
			database: health.Healthy,
			recent:   health.Healthy,
		},
		{
			name:     "stale data",
			src:      fakeSource{latest: measurement.NewReading(now.Add(-48*time.Hour), 18, 0.6), hasLatest: true},
			status:   health.Warning,
			database: health.Healthy,
			recent:   health.Warning,
		},
		{
			name:     "empty store",
			src:      fakeSource{},
			status:   health.Warning,
			database: health.Healthy,
			recent:   health.Warning,
		},
		{
			name:     "database down",
			src:      fakeSource{pingErr: storeErr},
			status:   health.Unhealthy,
			database: health.Unhealthy,
			recent:   health.NotChecked,
		},
		{
			name:     "query failure",
			src:      fakeSource{latestErr: storeErr},
			status:   health.Unhealthy,
			database: health.Healthy,
			recent:   health.Unhealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := health.Check(context.Background(), tt.src, now, 36*time.Hour)

			assert.Equal(t, tt.status, st.Status)
			assert.Equal(t, tt.database, st.Checks[health.CheckDatabase])
			assert.Equal(t, tt.recent, st.Checks[health.CheckRecentData])
			assert.Equal(t, tt.status != health.Unhealthy, st.OK())
		})
	}
}

func TestStatusJSON(t *testing.T) {
	ts := now.Add(-time.Hour)
	st := health.Check(context.Background(),
		fakeSource{latest: measurement.NewReading(ts, 18, 0.6), hasLatest: true}, now, time.Hour*2)

	data, err := json.Marshal(st)
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"status": "healthy",
		"timestamp": "2025-03-10T12:00:00Z",
		"checks": {"database_connection": "healthy", "recent_data_flow": "healthy"},
		"latest_reading": "2025-03-10T11:00:00Z"
	}`, string(data))
}

func TestUnreachable(t *testing.T) {
	st := health.Unreachable(now)

	assert.False(t, st.OK())
	assert.Nil(t, st.LatestReading)

	data, err := json.Marshal(st)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"status": "unhealthy",
		"timestamp": "2025-03-10T12:00:00Z",
		"checks": {"database_connection": "unhealthy", "recent_data_flow": "not_checked"}
	}`, string(data))
}
