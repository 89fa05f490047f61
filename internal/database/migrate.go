package database

import (
	"database/sql"
	"fmt"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/shedgate/shedgate/pkg/config"
	"github.com/shedgate/shedgate/pkg/errors"
)

// Migrator handles database migrations
type Migrator struct {
	migrate *migrate.Migrate
	db      *sql.DB
}

// NewMigrator creates a new database migrator
func NewMigrator(cfg *config.DatabaseConfig, migrationsPath string) (*Migrator, error) {
	if cfg == nil {
		return nil, errors.NewValidationError("database configuration is required")
	}

	if migrationsPath == "" {
		migrationsPath = "migrations"
	}

	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, errors.NewStoreUnavailableError("open", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.NewStoreUnavailableError("ping", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		db.Close()
		return nil, errors.NewInternalError("failed to create postgres driver").WithCause(err)
	}

	absPath, err := filepath.Abs(migrationsPath)
	if err != nil {
		db.Close()
		return nil, errors.NewInternalError("failed to get absolute path for migrations").WithCause(err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", absPath),
		"postgres",
		driver,
	)
	if err != nil {
		db.Close()
		return nil, errors.NewInternalError("failed to create migrate instance").WithCause(err)
	}

	return &Migrator{
		migrate: m,
		db:      db,
	}, nil
}

// Up applies all pending migrations
func (m *Migrator) Up() error {
	if err := m.migrate.Up(); err != nil && err != migrate.ErrNoChange {
		return errors.NewInternalError("failed to apply migrations").WithCause(err)
	}
	return nil
}

// Down rolls back one migration
func (m *Migrator) Down() error {
	if err := m.migrate.Steps(-1); err != nil {
		return errors.NewInternalError("failed to roll back migration").WithCause(err)
	}
	return nil
}

// Version returns the current migration version
func (m *Migrator) Version() (uint, bool, error) {
	version, dirty, err := m.migrate.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return 0, false, errors.NewInternalError("failed to get migration version").WithCause(err)
	}
	return version, dirty, nil
}

// Close closes the migrator and its database connection
func (m *Migrator) Close() error {
	sourceErr, dbErr := m.migrate.Close()
	if sourceErr != nil {
		return sourceErr
	}
	if dbErr != nil {
		return dbErr
	}
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
