// Package health reports database connectivity and data freshness of the
// reading store.
package health

import (
	"context"
	"time"

	"codeberg.org/mutker/envsim/internal/measurement"
)

type Level string

const (
	Healthy    Level = "healthy"
	Warning    Level = "warning"
	Unhealthy  Level = "unhealthy"
	NotChecked Level = "not_checked"
)

const (
	CheckDatabase   = "database_connection"
	CheckRecentData = "recent_data_flow"
)

// Source is the part of the store inspected by Check.
type Source interface {
	Ping(ctx context.Context) error
	Latest(ctx context.Context) (measurement.Reading, bool, error)
}

type Status struct {
	Status        Level            `json:"status"`
	Timestamp     time.Time        `json:"timestamp"`
	Checks        map[string]Level `json:"checks"`
	LatestReading *time.Time       `json:"latest_reading,omitempty"`
}

// OK reports whether the overall status is not unhealthy.
func (s Status) OK() bool {
	return s.Status != Unhealthy
}

// Check pings the store, then compares the newest reading against maxAge.
// A stale or empty store is a warning; a failing database is unhealthy.
func Check(ctx context.Context, src Source, now time.Time, maxAge time.Duration) Status {
	st := Status{
		Status:    Healthy,
		Timestamp: now,
		Checks:    map[string]Level{},
	}

	if err := src.Ping(ctx); err != nil {
		return Unreachable(now)
	}
	st.Checks[CheckDatabase] = Healthy

	latest, ok, err := src.Latest(ctx)
	switch {
	case err != nil:
		st.Checks[CheckRecentData] = Unhealthy
		st.Status = Unhealthy
	case !ok || now.Sub(latest.Timestamp) > maxAge:
		st.Checks[CheckRecentData] = Warning
		st.Status = Warning
	default:
		st.Checks[CheckRecentData] = Healthy
	}

	if ok {
		ts := latest.Timestamp
		st.LatestReading = &ts
	}

	return st
}

// Unreachable is the status of a store that cannot be opened or pinged.
func Unreachable(now time.Time) Status {
	return Status{
		Status:    Unhealthy,
		Timestamp: now,
		Checks: map[string]Level{
			CheckDatabase:   Unhealthy,
			CheckRecentData: NotChecked,
		},
	}
}
