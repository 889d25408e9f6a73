package simulator

import (
	"context"
	"time"

	"codeberg.org/mutker/envsim/internal/errors"
	"codeberg.org/mutker/envsim/internal/logger"
	"codeberg.org/mutker/envsim/internal/measurement"
	"codeberg.org/mutker/envsim/internal/store"
	"codeberg.org/mutker/envsim/internal/telemetry"
	"github.com/google/uuid"
)

// CycleConfig configures the Executor.
type CycleConfig struct {
	// DailyTimes are "HH:MM" wall clock times, parsed on every cycle.
	DailyTimes    []string
	TargetDays    int
	BootstrapDate measurement.Date
	Location      *time.Location
	Limits        measurement.Limits
}

func (c CycleConfig) Validate() error {
	errFactory := errors.New()

	if c.TargetDays <= 0 {
		return errFactory.WithData(errors.ErrInvalidTargetDays, c.TargetDays)
	}
	if c.Location == nil {
		return errFactory.WithMessage(errors.ErrInvalidTimezone, "location is required")
	}
	if c.BootstrapDate == (measurement.Date{}) {
		return errFactory.WithMessage(errors.ErrInvalidBootstrapDate, "bootstrap date is required")
	}

	return nil
}

// Result summarises one cycle.
type Result struct {
	CycleID    string
	Day        measurement.Date
	Inserted   int
	Evicted    int64
	Total      int64
	Violations int
	// Skipped is set when the target day was already present.
	Skipped bool
}

// Executor runs one rotation: insert the next pending day and apply the
// retention window, atomically.
type Executor struct {
	store   store.Store
	gen     *Generator
	cfg     CycleConfig
	logger  logger.Logger
	metrics telemetry.Recorder
}

func NewExecutor(st store.Store, gen *Generator, cfg CycleConfig, log logger.Logger, rec telemetry.Recorder) (*Executor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.New().Wrap(errors.ErrInvalidConfig, err)
	}
	if rec == nil {
		rec = telemetry.Noop()
	}

	return &Executor{
		store:   st,
		gen:     gen,
		cfg:     cfg,
		logger:  log,
		metrics: rec,
	}, nil
}

// Run executes one cycle. A failed cycle leaves the store untouched.
func (e *Executor) Run(ctx context.Context) (Result, error) {
	started := time.Now()
	res := Result{CycleID: uuid.NewString()}
	log := e.logger.With("cycle_id", res.CycleID)

	times, err := measurement.ParseClockTimes(e.cfg.DailyTimes)
	if err != nil {
		e.fail(log, res, started, err)
		return res, err
	}

	err = e.store.WithTransaction(ctx, func(q store.Querier) error {
		res = Result{CycleID: res.CycleID}
		return e.rotate(ctx, q, times, &res)
	})
	if err != nil {
		wrapped := errors.New().Wrap(errors.ErrCycle, err)
		e.fail(log, res, started, wrapped)
		return res, wrapped
	}

	if res.Skipped {
		e.metrics.ObserveCycle(telemetry.OutcomeNoop, time.Since(started), 0, 0)
		log.Debug().
			Str("day", res.Day.String()).
			Msg("Day already present, nothing to do")
	} else {
		e.metrics.ObserveCycle(telemetry.OutcomeInserted, time.Since(started), int64(res.Inserted), res.Evicted)
		log.Info().
			Str("day", res.Day.String()).
			Int("inserted", res.Inserted).
			Int64("evicted", res.Evicted).
			Int64("total", res.Total).
			Int("violations", res.Violations).
			Msg("Cycle completed")
	}
	e.metrics.SetStoreSize(res.Total)

	return res, nil
}

// RunCycle runs one cycle and reports whether it succeeded.
func (e *Executor) RunCycle(ctx context.Context) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().Interface("panic", r).Msg("Cycle panicked")
			e.metrics.ObserveCycle(telemetry.OutcomeError, 0, 0, 0)
			ok = false
		}
	}()

	_, err := e.Run(ctx)
	return err == nil
}

func (e *Executor) rotate(ctx context.Context, q store.Querier, times []measurement.ClockTime, res *Result) error {
	loc := e.cfg.Location

	day, err := e.targetDay(ctx, q)
	if err != nil {
		return err
	}
	res.Day = day

	start, end := day.Range(loc)
	present, err := q.ExistsInRange(ctx, start, end)
	if err != nil {
		return err
	}

	if present {
		res.Skipped = true
		res.Total, err = q.Count(ctx)
		return err
	}

	for _, c := range times {
		ts := day.At(c, loc)

		exists, err := q.ExistsAt(ctx, ts)
		if err != nil {
			return err
		}
		if exists {
			continue
		}

		temperature, humidity := e.gen.Generate()
		r := measurement.NewReading(ts, temperature, humidity)
		if err := q.Insert(ctx, r); err != nil {
			return err
		}

		res.Inserted++
		if e.cfg.Limits.Check(r).Any() {
			res.Violations++
		}
	}

	res.Evicted, err = Enforce(ctx, q, loc, e.cfg.TargetDays, len(times))
	if err != nil {
		return err
	}

	res.Total, err = q.Count(ctx)
	return err
}

// targetDay is the day after the newest reading, or the bootstrap date when
// the store is empty.
func (e *Executor) targetDay(ctx context.Context, q store.Querier) (measurement.Date, error) {
	latest, ok, err := q.Latest(ctx)
	if err != nil {
		return measurement.Date{}, err
	}
	if !ok {
		return e.cfg.BootstrapDate, nil
	}

	return measurement.DateOf(latest.Timestamp, e.cfg.Location).AddDays(1), nil
}

func (e *Executor) fail(log logger.Logger, res Result, started time.Time, err error) {
	outcome := telemetry.OutcomeError
	switch {
	case errors.HasCode(err, errors.ErrInvalidDailyTime):
		outcome = telemetry.OutcomeConfigError
	case store.IsStorageError(err):
		outcome = telemetry.OutcomeStorageError
	}
	e.metrics.ObserveCycle(outcome, time.Since(started), 0, 0)

	var appErr errors.Error
	if errors.As(err, &appErr) {
		log.ErrorWithCode(appErr).
			Str("day", res.Day.String()).
			Str("result", string(outcome)).
			Msg("Cycle failed")
		return
	}

	log.Error().Err(err).
		Str("day", res.Day.String()).
		Str("result", string(outcome)).
		Msg("Cycle failed")
}
