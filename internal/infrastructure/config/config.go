package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all ledger configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	Event     EventConfig
	Ledger    LedgerConfig
	Tax       TaxConfig
	Telemetry TelemetryConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

type AppConfig struct {
	Name string
	Env  string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings. An empty Host disables Redis
// and the ledger falls back to the relational stores.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// EventConfig holds outbox processing configuration
type EventConfig struct {
	ProcessorEnabled bool
	BatchSize        int
	PollInterval     time.Duration
	MaxRetries       int
	CleanupEnabled   bool
	CleanupRetention time.Duration
	IdempotencyTTL   time.Duration

	// Maintenance jobs; a zero interval disables the job
	HealthCheckInterval  time.Duration
	RequeueInterval      time.Duration
	AutoRequeueDead      bool
	BacklogWarnThreshold int64
}

// LedgerConfig holds event-sourcing and command handling settings
type LedgerConfig struct {
	SnapshotEvery        int
	RetryAttempts        int
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
	PastFiscalYearsOpen  int
	FutureDaysOpen       int
	DefaultCurrency      string
}

// TaxConfig holds the tunable Bangladesh tax rules
type TaxConfig struct {
	// NoTINMultiplier scales TDS/AIT for payees without a TIN
	NoTINMultiplier string
	RoundingPlaces  int32
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool
	MetricsEnabled    bool
	LogsEnabled       bool
	CollectorEndpoint string  // e.g. "localhost:4317"
	SamplingRatio     float64 // 0.0-1.0
	ServiceName       string
	Insecure          bool
	DBTraceEnabled    bool
	DBLogFullSQL      bool
	DBSlowQueryThresh time.Duration
}

// Load reads configuration. Priority (highest to lowest):
// 1. Environment variables with LEDGER_ prefix (e.g. LEDGER_DATABASE_PASSWORD)
// 2. config.toml in the working directory, ./ledger or /app
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./ledger")
	v.AddConfigPath("/app")
	return load(v)
}

// LoadFile reads configuration from an explicit TOML file plus the environment
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// zero is a meaningful open-period bound, so these cannot use applyDefaults
	v.SetDefault("ledger.past_fiscal_years_open", 1)
	v.SetDefault("ledger.future_days_open", 30)

	v.SetEnvPrefix("LEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Event: EventConfig{
			ProcessorEnabled: v.GetBool("event.processor_enabled"),
			BatchSize:        v.GetInt("event.batch_size"),
			PollInterval:     v.GetDuration("event.poll_interval"),
			MaxRetries:       v.GetInt("event.max_retries"),
			CleanupEnabled:   v.GetBool("event.cleanup_enabled"),
			CleanupRetention: v.GetDuration("event.cleanup_retention"),
			IdempotencyTTL:   v.GetDuration("event.idempotency_ttl"),

			HealthCheckInterval:  v.GetDuration("event.health_check_interval"),
			RequeueInterval:      v.GetDuration("event.requeue_interval"),
			AutoRequeueDead:      v.GetBool("event.auto_requeue_dead"),
			BacklogWarnThreshold: v.GetInt64("event.backlog_warn_threshold"),
		},
		Ledger: LedgerConfig{
			SnapshotEvery:        v.GetInt("ledger.snapshot_every"),
			RetryAttempts:        v.GetInt("ledger.retry_attempts"),
			RetryInitialInterval: v.GetDuration("ledger.retry_initial_interval"),
			RetryMaxInterval:     v.GetDuration("ledger.retry_max_interval"),
			PastFiscalYearsOpen:  v.GetInt("ledger.past_fiscal_years_open"),
			FutureDaysOpen:       v.GetInt("ledger.future_days_open"),
			DefaultCurrency:      v.GetString("ledger.default_currency"),
		},
		Tax: TaxConfig{
			NoTINMultiplier: v.GetString("tax.no_tin_multiplier"),
			RoundingPlaces:  v.GetInt32("tax.rounding_places"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			MetricsEnabled:    v.GetBool("telemetry.metrics_enabled"),
			LogsEnabled:       v.GetBool("telemetry.logs_enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:      v.GetBool("telemetry.db_log_full_sql"),
			DBSlowQueryThresh: v.GetDuration("telemetry.db_slow_query_threshold"),
		},
	}

	applyDefaults(cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "vextrus-ledger"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "ledger"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.Event.BatchSize == 0 {
		cfg.Event.BatchSize = 100
	}
	if cfg.Event.PollInterval == 0 {
		cfg.Event.PollInterval = 5 * time.Second
	}
	if cfg.Event.MaxRetries == 0 {
		cfg.Event.MaxRetries = 5
	}
	if cfg.Event.CleanupRetention == 0 {
		cfg.Event.CleanupRetention = 168 * time.Hour
	}
	if cfg.Event.IdempotencyTTL == 0 {
		cfg.Event.IdempotencyTTL = 24 * time.Hour
	}
	if cfg.Event.HealthCheckInterval == 0 {
		cfg.Event.HealthCheckInterval = time.Minute
	}
	if cfg.Event.BacklogWarnThreshold == 0 {
		cfg.Event.BacklogWarnThreshold = 1000
	}
	if cfg.Ledger.SnapshotEvery == 0 {
		cfg.Ledger.SnapshotEvery = 20
	}
	if cfg.Ledger.RetryAttempts == 0 {
		cfg.Ledger.RetryAttempts = 3
	}
	if cfg.Ledger.RetryInitialInterval == 0 {
		cfg.Ledger.RetryInitialInterval = 50 * time.Millisecond
	}
	if cfg.Ledger.RetryMaxInterval == 0 {
		cfg.Ledger.RetryMaxInterval = time.Second
	}
	if cfg.Ledger.DefaultCurrency == "" {
		cfg.Ledger.DefaultCurrency = "BDT"
	}
	if cfg.Tax.NoTINMultiplier == "" {
		cfg.Tax.NoTINMultiplier = "1.5"
	}
	if cfg.Tax.RoundingPlaces == 0 {
		cfg.Tax.RoundingPlaces = 2
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
	if cfg.Telemetry.DBSlowQueryThresh == 0 {
		cfg.Telemetry.DBSlowQueryThresh = 200 * time.Millisecond
	}
}

func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}
	if c.Ledger.SnapshotEvery < 0 {
		return fmt.Errorf("ledger.snapshot_every cannot be negative")
	}
	if c.Ledger.PastFiscalYearsOpen < 0 || c.Ledger.FutureDaysOpen < 0 {
		return fmt.Errorf("ledger.past_fiscal_years_open and ledger.future_days_open cannot be negative")
	}
	if c.Ledger.RetryAttempts < 1 {
		return fmt.Errorf("ledger.retry_attempts must be at least 1")
	}
	switch c.Ledger.DefaultCurrency {
	case "BDT", "USD", "EUR":
	default:
		return fmt.Errorf("ledger.default_currency %q is not supported", c.Ledger.DefaultCurrency)
	}
	m, err := decimal.NewFromString(c.Tax.NoTINMultiplier)
	if err != nil {
		return fmt.Errorf("tax.no_tin_multiplier: %w", err)
	}
	if m.LessThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("tax.no_tin_multiplier must be at least 1, got %s", m)
	}

	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}
	return nil
}

// NoTINMultiplierDecimal returns the parsed multiplier. Load has already validated it.
func (t TaxConfig) NoTINMultiplierDecimal() decimal.Decimal {
	return decimal.RequireFromString(t.NoTINMultiplier)
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns host:port for the Redis client
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// Enabled reports whether a Redis host is configured
func (r *RedisConfig) Enabled() bool {
	return r.Host != ""
}
