package config

import (
	"os"
	"strings"
	"time"

	"codeberg.org/mutker/envsim/internal/errors"
	"codeberg.org/mutker/envsim/internal/measurement"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultInterval      = 60
	DefaultTargetDays    = 365
	DefaultBootstrapDate = "2025-01-01"
	DefaultTimezone      = "America/Sao_Paulo"
	DefaultDatabase      = "/var/lib/envsim/readings.db"
	DefaultDriver        = "sqlite3"
	DefaultLogLevel      = LogLevelInfo
	DefaultMaxDataAge    = 36 * time.Hour

	defaultEnvPrefix = "ENVSIM"
	configName       = "envsim"
)

var DefaultDailyTimes = []string{"07:30", "16:30"}

// Range parameterises one generated quantity.
type Range struct {
	Mean   float64 `mapstructure:"mean"`
	StdDev float64 `mapstructure:"stddev"`
	Min    float64 `mapstructure:"min"`
	Max    float64 `mapstructure:"max"`
}

type Config struct {
	Interval      int           `mapstructure:"interval"`
	DailyTimes    []string      `mapstructure:"daily_times"`
	TargetDays    int           `mapstructure:"target_days"`
	Enabled       bool          `mapstructure:"enabled"`
	BootstrapDate string        `mapstructure:"bootstrap_date"`
	Timezone      string        `mapstructure:"timezone"`
	Database      string        `mapstructure:"database"`
	Driver        string        `mapstructure:"driver"`
	LogLevel      LogLevel      `mapstructure:"log_level"`
	Debug         bool          `mapstructure:"debug"`
	Seed          uint64        `mapstructure:"seed"`
	MetricsAddr   string        `mapstructure:"metrics_addr"`
	MaxDataAge    time.Duration `mapstructure:"max_data_age"`
	Temperature   Range         `mapstructure:"temperature"`
	// Humidity bounds are in percent.
	Humidity Range `mapstructure:"humidity"`

	// Check runs the health check and exits instead of starting the daemon.
	Check bool `mapstructure:"-"`

	location  *time.Location
	bootstrap measurement.Date
}

// Load reads configuration from the config file, ENVSIM_* environment
// variables and command line flags, in increasing order of precedence.
func Load(args []string, opts ...Option) (*Config, error) {
	errFactory := errors.New()

	o := options{
		configPath: os.Getenv(defaultEnvPrefix + "_CONFIG"),
		envPrefix:  defaultEnvPrefix,
		searchDirs: []string{"/etc/envsim", "."},
	}
	for _, opt := range opts {
		opt(&o)
	}

	fs := newFlagSet()
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil, err
		}
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(o.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path, _ := fs.GetString("config"); path != "" {
		o.configPath = path
	}
	if err := readConfigFile(v, o); err != nil {
		return nil, err
	}

	for key, name := range flagKeys {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrReadConfig, err)
	}

	// enabled follows debug unless set explicitly.
	if !v.IsSet("enabled") {
		cfg.Enabled = cfg.Debug
	}
	cfg.Check, _ = fs.GetBool("check")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("envsimd", pflag.ContinueOnError)

	fs.String("config", "", "Path to the configuration file")
	fs.Int("interval", DefaultInterval, "Seconds between rotation cycles")
	fs.StringSlice("daily-times", DefaultDailyTimes, "Clock times (HH:MM) of the daily readings")
	fs.Int("target-days", DefaultTargetDays, "Number of days kept in the store")
	fs.Bool("enabled", false, "Allow the background scheduler to start (defaults to --debug)")
	fs.String("bootstrap-date", DefaultBootstrapDate, "First day generated into an empty store")
	fs.String("timezone", DefaultTimezone, "IANA timezone used to bucket readings into days")
	fs.String("database", DefaultDatabase, "Path to the SQLite database")
	fs.String("driver", DefaultDriver, "SQLite driver: sqlite3 (cgo) or sqlite (pure Go)")
	fs.String("log-level", string(DefaultLogLevel), "Log level: debug, info, warning, error")
	fs.Bool("debug", false, "Enable debugging mode")
	fs.Uint64("seed", 0, "Random seed for generated values (0 seeds from the clock)")
	fs.String("metrics-addr", "", "Listen address for Prometheus metrics (empty disables)")
	fs.Duration("max-data-age", DefaultMaxDataAge, "Age after which the newest reading is reported stale")
	fs.Bool("check", false, "Run the health check, print the result and exit")

	return fs
}

var flagKeys = map[string]string{
	"interval":       "interval",
	"daily_times":    "daily-times",
	"target_days":    "target-days",
	"enabled":        "enabled",
	"bootstrap_date": "bootstrap-date",
	"timezone":       "timezone",
	"database":       "database",
	"driver":         "driver",
	"log_level":      "log-level",
	"debug":          "debug",
	"seed":           "seed",
	"metrics_addr":   "metrics-addr",
	"max_data_age":   "max-data-age",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("interval", DefaultInterval)
	v.SetDefault("daily_times", DefaultDailyTimes)
	v.SetDefault("target_days", DefaultTargetDays)
	v.SetDefault("bootstrap_date", DefaultBootstrapDate)
	v.SetDefault("timezone", DefaultTimezone)
	v.SetDefault("database", DefaultDatabase)
	v.SetDefault("driver", DefaultDriver)
	v.SetDefault("log_level", string(DefaultLogLevel))
	v.SetDefault("debug", false)
	v.SetDefault("seed", 0)
	v.SetDefault("metrics_addr", "")
	v.SetDefault("max_data_age", DefaultMaxDataAge)

	v.SetDefault("temperature.mean", 18.4)
	v.SetDefault("temperature.stddev", 0.4)
	v.SetDefault("temperature.min", 17.0)
	v.SetDefault("temperature.max", 19.5)
	v.SetDefault("humidity.mean", 59.0)
	v.SetDefault("humidity.stddev", 2.0)
	v.SetDefault("humidity.min", 56.0)
	v.SetDefault("humidity.max", 65.0)
}

func readConfigFile(v *viper.Viper, o options) error {
	errFactory := errors.New()

	v.SetConfigType("toml")
	if o.configPath != "" {
		v.SetConfigFile(o.configPath)
	} else {
		v.SetConfigName(configName)
		for _, dir := range o.searchDirs {
			v.AddConfigPath(dir)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return errFactory.Wrap(errors.ErrReadConfig, err)
	}

	return nil
}

// Validate checks the configuration and resolves the timezone and
// bootstrap date. daily_times is checked per cycle, not here.
func (c *Config) Validate() error {
	errFactory := errors.New()

	if c.Interval <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, c.Interval)
	}
	if c.TargetDays <= 0 {
		return errFactory.WithData(errors.ErrInvalidTargetDays, c.TargetDays)
	}
	if !c.LogLevel.IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}
	if c.Driver != "sqlite3" && c.Driver != "sqlite" {
		return errFactory.WithData(errors.ErrInvalidDriver, c.Driver)
	}
	if c.Database == "" {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "database path is required")
	}
	if c.MaxDataAge <= 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, "max_data_age must be positive")
	}

	for name, r := range map[string]Range{"temperature": c.Temperature, "humidity": c.Humidity} {
		if r.StdDev < 0 || r.Min > r.Max {
			return errFactory.WithData(errors.ErrInvalidRange, name)
		}
	}

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return errFactory.Wrap(errors.ErrInvalidTimezone, err)
	}

	date, err := measurement.ParseDate(c.BootstrapDate)
	if err != nil {
		return err
	}

	c.location = loc
	c.bootstrap = date

	return nil
}

// Location is the resolved timezone. Valid after Validate.
func (c *Config) Location() *time.Location {
	return c.location
}

// Bootstrap is the resolved bootstrap date. Valid after Validate.
func (c *Config) Bootstrap() measurement.Date {
	return c.bootstrap
}

// IntervalDuration returns the trigger loop interval.
func (c *Config) IntervalDuration() time.Duration {
	return time.Duration(c.Interval) * time.Second
}
