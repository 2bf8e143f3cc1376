package persistence

import (
	"fmt"
	"time"

	"github.com/vextrus/vextrus-erp-sub014/internal/infrastructure/config"
	"github.com/vextrus/vextrus-erp-sub014/internal/infrastructure/logger"
	"github.com/vextrus/vextrus-erp-sub014/internal/infrastructure/telemetry"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Database holds the database connection and provides methods for database operations
type Database struct {
	DB *gorm.DB
}

type databaseOptions struct {
	logger   *zap.Logger
	logLevel gormlogger.LogLevel
	slowSQL  time.Duration
	tracing  telemetry.DBTracingConfig
}

// DatabaseOption configures NewDatabase
type DatabaseOption func(*databaseOptions)

// WithDatabaseLogger routes GORM logging through zap at the given level
func WithDatabaseLogger(l *zap.Logger, level gormlogger.LogLevel, slowThreshold time.Duration) DatabaseOption {
	return func(o *databaseOptions) {
		o.logger = l
		o.logLevel = level
		o.slowSQL = slowThreshold
	}
}

// WithDatabaseTracing installs otelgorm spans when cfg.Enabled is set
func WithDatabaseTracing(cfg telemetry.DBTracingConfig) DatabaseOption {
	return func(o *databaseOptions) {
		o.tracing = cfg
	}
}

// NewDatabase opens a PostgreSQL connection pool and pings it
func NewDatabase(cfg *config.DatabaseConfig, opts ...DatabaseOption) (*Database, error) {
	o := databaseOptions{
		logger:   zap.NewNop(),
		logLevel: gormlogger.Silent,
		slowSQL:  200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(&o)
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.NewGormLogger(o.logger, o.logLevel,
			logger.WithSlowThreshold(o.slowSQL),
			logger.WithIgnoreRecordNotFoundError(true),
		),
		SkipDefaultTransaction: true,
		TranslateError:         true,
		PrepareStmt:            true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := telemetry.RegisterDBTracing(db, o.tracing, o.logger); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to register database tracing: %w", err)
	}

	return &Database{DB: db}, nil
}

// Close closes the database connection
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// Ping checks if the database connection is alive
func (d *Database) Ping() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Ping()
}

// Stats returns database connection pool statistics
func (d *Database) Stats() (ConnectionStats, error) {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return ConnectionStats{}, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	stats := sqlDB.Stats()
	return ConnectionStats{
		MaxOpenConnections: stats.MaxOpenConnections,
		OpenConnections:    stats.OpenConnections,
		InUse:              stats.InUse,
		Idle:               stats.Idle,
		WaitCount:          stats.WaitCount,
		WaitDuration:       stats.WaitDuration,
	}, nil
}

// ConnectionStats holds database connection pool statistics
type ConnectionStats struct {
	MaxOpenConnections int
	OpenConnections    int
	InUse              int
	Idle               int
	WaitCount          int64
	WaitDuration       time.Duration
}

// Transaction executes a function within a database transaction
func (d *Database) Transaction(fn func(tx *gorm.DB) error) error {
	return d.DB.Transaction(fn)
}
