package simulator

import (
	"context"
	"time"

	"codeberg.org/mutker/envsim/internal/logger"
)

// Cycler runs one rotation cycle and reports whether it succeeded.
type Cycler interface {
	RunCycle(ctx context.Context) bool
}

// Ticker delivers trigger loop wake-ups.
type Ticker interface {
	C() <-chan time.Time
	// Reset restarts the period and discards any pending tick.
	Reset(d time.Duration)
	Stop()
}

// TickerFunc creates a Ticker firing every d.
type TickerFunc func(d time.Duration) Ticker

type timeTicker struct {
	t *time.Ticker
}

// NewTicker is the default TickerFunc, backed by time.Ticker.
func NewTicker(d time.Duration) Ticker {
	return &timeTicker{t: time.NewTicker(d)}
}

func (t *timeTicker) C() <-chan time.Time   { return t.t.C }
func (t *timeTicker) Reset(d time.Duration) { t.t.Reset(d) }
func (t *timeTicker) Stop()                 { t.t.Stop() }

type loop struct {
	cycler    Cycler
	interval  time.Duration
	newTicker TickerFunc
	logger    logger.Logger
}

// run sleeps for one interval, then runs a cycle, until stop is closed.
// The interval is measured from the end of the previous cycle. A cycle that
// started always completes; stop is only observed between cycles.
func (l *loop) run(stop <-chan struct{}) {
	ticker := l.newTicker(l.interval)
	defer ticker.Stop()

	l.logger.Info().
		Dur("interval", l.interval).
		Msg("Trigger loop started")

	for {
		select {
		case <-stop:
			l.logger.Info().Msg("Trigger loop stopped")
			return
		case <-ticker.C():
		}

		select {
		case <-stop:
			l.logger.Info().Msg("Trigger loop stopped")
			return
		default:
		}

		l.tick()
		ticker.Reset(l.interval)
	}
}

func (l *loop) tick() {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error().Interface("panic", r).Msg("Recovered from panic in cycle")
		}
	}()

	// Cycles are never cancelled mid-transaction.
	if !l.cycler.RunCycle(context.Background()) {
		l.logger.Warn().Msg("Cycle failed, retrying on next tick")
	}
}
