package simulator

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"codeberg.org/mutker/envsim/internal/errors"
	"codeberg.org/mutker/envsim/internal/logger"
	"codeberg.org/mutker/envsim/internal/telemetry"
)

// Options configures the Controller.
type Options struct {
	Interval time.Duration
	// Enabled gates Start; a disabled controller still allows ForceCycle.
	Enabled bool
	// NewTicker overrides the ticker used by the trigger loop.
	NewTicker TickerFunc
}

// Controller owns the single background trigger loop.
type Controller struct {
	mu      sync.Mutex
	running atomic.Bool
	stop    chan struct{}
	done    chan struct{}

	cycler  Cycler
	opts    Options
	logger  logger.Logger
	metrics telemetry.Recorder
}

func NewController(cycler Cycler, opts Options, log logger.Logger, rec telemetry.Recorder) (*Controller, error) {
	if opts.Interval <= 0 {
		return nil, errors.New().WithData(errors.ErrInvalidInterval, opts.Interval.String())
	}
	if opts.NewTicker == nil {
		opts.NewTicker = NewTicker
	}
	if rec == nil {
		rec = telemetry.Noop()
	}

	return &Controller{
		cycler:  cycler,
		opts:    opts,
		logger:  log,
		metrics: rec,
	}, nil
}

// Start spawns the trigger loop. It returns false when the loop is already
// running or the controller is disabled.
func (c *Controller) Start() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running.Load() {
		c.logger.Debug().
			Str("error_code", string(errors.ErrAlreadyRunning)).
			Msg("Scheduler already running")
		return false
	}

	if !c.opts.Enabled {
		c.logger.Info().Msg("Scheduler disabled by configuration")
		return false
	}

	// A worker from the previous run may still be finishing its cycle.
	prev := c.done
	stop := make(chan struct{})
	done := make(chan struct{})
	c.stop, c.done = stop, done
	c.running.Store(true)
	c.metrics.SetRunning(true)

	l := &loop{
		cycler:    c.cycler,
		interval:  c.opts.Interval,
		newTicker: c.opts.NewTicker,
		logger:    c.logger,
	}
	go func() {
		defer close(done)
		if prev != nil {
			<-prev
		}
		l.run(stop)
	}()

	return true
}

// Stop signals the trigger loop to exit after any in-flight cycle. It does
// not wait; use Wait for that.
func (c *Controller) Stop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running.Load() {
		c.logger.Debug().
			Str("error_code", string(errors.ErrNotRunning)).
			Msg("Scheduler not running")
		return false
	}

	close(c.stop)
	c.running.Store(false)
	c.metrics.SetRunning(false)

	return true
}

// IsRunning reports the current run flag without locking.
func (c *Controller) IsRunning() bool {
	return c.running.Load()
}

// ForceCycle runs one cycle on the caller's goroutine, independent of the
// trigger loop.
func (c *Controller) ForceCycle(ctx context.Context) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().Interface("panic", r).Msg("Recovered from panic in forced cycle")
			ok = false
		}
	}()

	c.logger.Debug().Msg("Forced cycle requested")

	return c.cycler.RunCycle(ctx)
}

// Wait blocks until the most recently started worker has exited or ctx is
// done. Workers of earlier runs exit before the latest one does.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()

	if done == nil {
		return nil
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.New().Wrap(errors.ErrTimeout, ctx.Err())
	}
}
