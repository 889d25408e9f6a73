package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"
	_ "time/tzdata"

	"codeberg.org/mutker/envsim/internal/config"
	"codeberg.org/mutker/envsim/internal/errors"
	"codeberg.org/mutker/envsim/internal/health"
	"codeberg.org/mutker/envsim/internal/logger"
	"codeberg.org/mutker/envsim/internal/measurement"
	"codeberg.org/mutker/envsim/internal/pid"
	"codeberg.org/mutker/envsim/internal/simulator"
	"codeberg.org/mutker/envsim/internal/store"
	"codeberg.org/mutker/envsim/internal/telemetry"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"
)

const (
	shutdownTimeout = 30 * time.Second
	metricsPath     = "/metrics"
)

type app struct {
	cfg        *config.Config
	log        logger.Logger
	store      store.Store
	controller *simulator.Controller
	registry   *prometheus.Registry
	server     *http.Server
	pidFile    *pid.File
	forced     sync.WaitGroup
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
		return 1
	}

	cfg, err := config.Load(args)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}

	level, _ := logger.ParseLevel(cfg.LogLevel.String())
	if cfg.Debug {
		level = logger.DebugLevel
	}
	logger.Init(level, logger.IsService())
	logger.Debug().Msg("Config loaded")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := openStore(ctx, cfg)
	if err != nil {
		logError(err, "Failed to open reading store")
		if cfg.Check {
			report(health.Unreachable(time.Now().In(cfg.Location())))
		}
		return 1
	}

	if cfg.Check {
		defer st.Close()
		return check(ctx, st, cfg)
	}

	a, err := newApp(ctx, cfg, st)
	if err != nil {
		logError(err, "Failed to initialize application")
		if err := st.Close(); err != nil {
			logError(err, "Failed to close reading store")
		}
		return 1
	}

	a.start()
	a.handleSignals(ctx, cancel)
	a.shutdown()

	return 0
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	storeCfg := store.DefaultConfig()
	storeCfg.DBPath = cfg.Database
	storeCfg.Driver = cfg.Driver
	storeCfg.Location = cfg.Location()
	storeCfg.NoMigrate = cfg.Check

	return store.Open(ctx, storeCfg, logger.Default())
}

func newApp(ctx context.Context, cfg *config.Config, st store.Store) (*app, error) {
	errFactory := errors.New()
	log := logger.Default()

	pidFile := pid.New(filepath.Dir(cfg.Database))
	if err := pidFile.Write(); err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	telemetryCfg := telemetry.DefaultConfig()
	telemetryCfg.Enabled = cfg.MetricsAddr != ""
	rec, err := telemetry.NewService(telemetryCfg, registry)
	if err != nil {
		_ = pidFile.Remove()
		return nil, errFactory.Wrap(errors.ErrInitApp, err)
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	gen, err := simulator.NewGenerator(generatorParams(cfg), simulator.NewSource(seed))
	if err != nil {
		_ = pidFile.Remove()
		return nil, errFactory.Wrap(errors.ErrInitApp, err)
	}

	executor, err := simulator.NewExecutor(st, gen, simulator.CycleConfig{
		DailyTimes:    cfg.DailyTimes,
		TargetDays:    cfg.TargetDays,
		BootstrapDate: cfg.Bootstrap(),
		Location:      cfg.Location(),
		Limits:        measurement.DefaultLimits(),
	}, log, rec)
	if err != nil {
		_ = pidFile.Remove()
		return nil, errFactory.Wrap(errors.ErrInitApp, err)
	}

	controller, err := simulator.NewController(executor, simulator.Options{
		Interval: cfg.IntervalDuration(),
		Enabled:  cfg.Enabled,
	}, log, rec)
	if err != nil {
		_ = pidFile.Remove()
		return nil, errFactory.Wrap(errors.ErrInitApp, err)
	}

	times, err := measurement.ParseClockTimes(cfg.DailyTimes)
	if err != nil {
		log.Warn().Err(err).
			Strs("daily_times", cfg.DailyTimes).
			Msg("Daily times do not parse, every cycle will fail until fixed")
	} else if dups := measurement.DuplicateClockTimes(times); len(dups) > 0 {
		names := make([]string, len(dups))
		for i, c := range dups {
			names[i] = c.String()
		}
		log.Warn().
			Strs("daily_times", cfg.DailyTimes).
			Strs("duplicates", names).
			Msg("Duplicate daily times are inserted once but still count toward the per-day sample target")
	}

	if n, err := st.Count(ctx); err == nil {
		rec.SetStoreSize(n)
	}

	return &app{
		cfg:        cfg,
		log:        log,
		store:      st,
		controller: controller,
		registry:   registry,
		pidFile:    pidFile,
	}, nil
}

func generatorParams(cfg *config.Config) simulator.Params {
	return simulator.Params{
		Temperature: simulator.Distribution(cfg.Temperature),
		Humidity:    simulator.Distribution(cfg.Humidity),
	}
}

func (a *app) start() {
	if a.cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle(metricsPath, telemetry.Handler(a.registry))
		a.server = &http.Server{
			Addr:              a.cfg.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		go func() {
			a.log.Info().Str("addr", a.cfg.MetricsAddr).Msg("Serving metrics")
			if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.log.Error().Err(err).Msg("Metrics server failed")
			}
		}()
	}

	if a.controller.Start() {
		a.log.Info().
			Int("interval", a.cfg.Interval).
			Strs("daily_times", a.cfg.DailyTimes).
			Int("target_days", a.cfg.TargetDays).
			Str("timezone", a.cfg.Timezone).
			Msg("Scheduler started")
	} else {
		a.log.Warn().Msg("Scheduler not started, enable it with --enabled or --debug")
	}
}

// handleSignals blocks until termination. SIGUSR1 forces one cycle.
func (a *app) handleSignals(ctx context.Context, cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1)
	defer signal.Stop(sigs)

	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigs:
			if sig == syscall.SIGUSR1 {
				a.log.Info().Msg("Received SIGUSR1, forcing a cycle")
				a.forced.Add(1)
				go func() {
					defer a.forced.Done()
					a.controller.ForceCycle(context.WithoutCancel(ctx))
				}()
				continue
			}
			a.log.Info().Str("signal", sig.String()).Msg("Received termination signal.")
			cancel()
			return
		}
	}
}

func (a *app) shutdown() {
	a.controller.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.controller.Wait(ctx); err != nil {
		logError(err, "Scheduler did not stop in time")
	}

	a.forced.Wait()

	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			a.log.Error().Err(err).Msg("Failed to stop metrics server")
		}
	}

	if err := a.store.Close(); err != nil {
		logError(err, "Failed to close reading store")
	}

	if err := a.pidFile.Remove(); err != nil {
		logError(err, "Failed to remove PID file")
	}

	a.log.Info().Msg("Exiting...")
}

func check(ctx context.Context, st store.Store, cfg *config.Config) int {
	status := health.Check(ctx, st, time.Now().In(cfg.Location()), cfg.MaxDataAge)
	if !report(status) || !status.OK() {
		return 1
	}
	return 0
}

func report(status health.Status) bool {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(status); err != nil {
		logger.Error().Err(err).Msg("Failed to encode health status")
		return false
	}
	return true
}

func logError(err error, msg string) {
	var appErr errors.Error
	if errors.As(err, &appErr) {
		logger.ErrorWithCode(appErr).Msg(msg)
		return
	}
	logger.Error().Err(err).Msg(msg)
}
