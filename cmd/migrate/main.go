package main

import (
	"database/sql"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	_ "github.com/lib/pq"
	"github.com/vextrus/vextrus-erp-sub014/internal/infrastructure/config"
	"github.com/vextrus/vextrus-erp-sub014/internal/infrastructure/logger"
	"github.com/vextrus/vextrus-erp-sub014/internal/infrastructure/migration"
	"github.com/vextrus/vextrus-erp-sub014/migrations"
	"go.uber.org/zap"
)

const defaultMigrationsDir = "migrations"

func main() {
	var (
		migrationsPath string
		configPath     string
		logLevel       string
	)

	flag.StringVar(&migrationsPath, "path", "", "Read migrations from this directory instead of the embedded set")
	flag.StringVar(&configPath, "config", "", "Path to a TOML config file (default: search ./config.toml)")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}
	command := args[0]

	log, err := logger.New(logger.Config{
		Level:   logLevel,
		Format:  "console",
		Output:  "stdout",
		Service: "ledger-migrate",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = log.Sync()
	}()

	// create writes files and never touches the database
	if command == "create" {
		if len(args) < 2 {
			log.Fatal("Migration name required. Usage: migrate create <name> [description]")
		}
		dir := migrationsPath
		if dir == "" {
			dir = defaultMigrationsDir
		}
		description := ""
		if len(args) > 2 {
			description = args[2]
		}
		mf, err := migration.CreateMigration(dir, args[1], description)
		if err != nil {
			log.Fatal("Failed to create migration", zap.Error(err))
		}
		log.Info("Migration created",
			zap.String("version", mf.Version),
			zap.String("up_file", mf.UpPath),
			zap.String("down_file", mf.DownPath),
		)
		return
	}

	var source fs.FS = migrations.FS
	if migrationsPath != "" {
		source = os.DirFS(migrationsPath)
	}

	if command == "list" {
		names, err := migration.ListMigrations(source)
		if err != nil {
			log.Fatal("Failed to list migrations", zap.Error(err))
		}
		if len(names) == 0 {
			log.Info("No migrations found")
			return
		}
		log.Info("Available migrations", zap.Int("count", len(names)))
		for _, name := range names {
			fmt.Println("  -", name)
		}
		return
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		log.Fatal("Failed to open database", zap.Error(err))
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatal("Failed to ping database", zap.Error(err))
	}

	var m *migration.Migrator
	if migrationsPath != "" {
		m, err = migration.New(db, migrationsPath, log)
	} else {
		m, err = migration.NewEmbedded(db, migrations.FS, log)
	}
	if err != nil {
		log.Fatal("Failed to create migrator", zap.Error(err))
	}
	defer m.Close()

	log.Info("Migration CLI started",
		zap.String("command", command),
		zap.String("database", cfg.Database.DBName),
		zap.Bool("embedded", migrationsPath == ""),
	)

	switch command {
	case "up":
		if err := m.Up(); err != nil {
			log.Fatal("Migration up failed", zap.Error(err))
		}

	case "down":
		if !hasFlag(args[1:], "confirm") {
			log.Fatal("Rolling back every migration drops the event store. Use 'migrate down -confirm' to confirm.")
		}
		if err := m.Down(); err != nil {
			log.Fatal("Migration down failed", zap.Error(err))
		}

	case "step":
		if len(args) < 2 {
			log.Fatal("Step count required. Usage: migrate step <n>")
		}
		n, err := strconv.Atoi(args[1])
		if err != nil {
			log.Fatal("Invalid step count", zap.String("value", args[1]))
		}
		if err := m.Steps(n); err != nil {
			log.Fatal("Migration step failed", zap.Error(err))
		}

	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			log.Fatal("Failed to get version", zap.Error(err))
		}
		if version == 0 {
			log.Info("No migrations applied")
			return
		}
		log.Info("Current migration version",
			zap.Uint("version", version),
			zap.Bool("dirty", dirty),
		)

	case "force":
		if len(args) < 2 {
			log.Fatal("Version required. Usage: migrate force <version>")
		}
		version, err := strconv.Atoi(args[1])
		if err != nil {
			log.Fatal("Invalid version number", zap.String("value", args[1]))
		}
		log.Warn("Forcing migration version")
		if err := m.Force(version); err != nil {
			log.Fatal("Force version failed", zap.Error(err))
		}

	default:
		log.Error("Unknown command", zap.String("command", command))
		printUsage()
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

func hasFlag(args []string, name string) bool {
	for _, arg := range args {
		if arg == "-"+name || arg == "--"+name {
			return true
		}
	}
	return false
}

func printUsage() {
	fmt.Println(`Ledger Database Migration Tool

Usage:
  migrate [flags] <command> [arguments]

Commands:
  up                    Apply all pending migrations
  down -confirm         Roll back all migrations
  step <n>              Apply n migrations (positive=up, negative=down)
  version               Show current migration version
  force <version>       Force set migration version
  create <name> [desc]  Create a new migration file pair
  list                  List available migrations

Flags:
  -path string          Migrations directory (default: the embedded set; ./migrations for create)
  -config string        TOML config file (default: ./config.toml, ./ledger, /app)
  -log-level string     Log level: debug, info, warn, error (default: info)

Environment Variables:
  LEDGER_DATABASE_HOST, LEDGER_DATABASE_PORT, LEDGER_DATABASE_USER,
  LEDGER_DATABASE_PASSWORD, LEDGER_DATABASE_DBNAME, LEDGER_DATABASE_SSLMODE`)
}
