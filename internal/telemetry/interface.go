package telemetry

import "time"

// Recorder receives scheduler observations.
type Recorder interface {
	ObserveCycle(outcome Outcome, duration time.Duration, inserted, evicted int64)
	SetStoreSize(n int64)
	SetRunning(running bool)
}

// Outcome classifies a finished cycle.
type Outcome string

const (
	OutcomeInserted     Outcome = "inserted"
	OutcomeNoop         Outcome = "noop"
	OutcomeConfigError  Outcome = "config_error"
	OutcomeStorageError Outcome = "storage_error"
	OutcomeError        Outcome = "error"
)
