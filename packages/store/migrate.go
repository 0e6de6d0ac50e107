package store

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// Each driver has its own migration directory since column types differ.
//
//go:embed migrations/sqlite3/*.sql migrations/postgres/*.sql
var migrations embed.FS

// newMigrate wraps s.db in a migrate instance. The postgres driver holds a
// dedicated connection, so the instance is built once per Store and closed
// together with it.
func (s *Store) newMigrate() (*migrate.Migrate, error) {
	var (
		driver database.Driver
		name   string
		err    error
	)
	switch s.driverName {
	case driverPostgres:
		name = "postgres"
		driver, err = postgres.WithInstance(s.db, &postgres.Config{})
	default:
		name = "sqlite3"
		driver, err = sqlite3.WithInstance(s.db, &sqlite3.Config{})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s migrate driver: %w", name, err)
	}

	src, err := iofs.New(migrations, "migrations/"+name)
	if err != nil {
		_ = driver.Close()
		return nil, fmt.Errorf("failed to load migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, name, driver)
	if err != nil {
		_ = src.Close()
		_ = driver.Close()
		return nil, fmt.Errorf("failed to initialize migrate: %w", err)
	}
	return m, nil
}

// migrate applies pending schema migrations and keeps the instance for
// SchemaVersion
func (s *Store) migrate() error {
	m, err := s.newMigrate()
	if err != nil {
		return err
	}
	s.migrator = m

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up failed: %w", err)
	}
	return nil
}

// SchemaVersion returns the applied migration version
func (s *Store) SchemaVersion() (uint, error) {
	if s.migrator == nil {
		return 0, errors.New("store is not migrated")
	}

	version, dirty, err := s.migrator.Version()
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("schema version %d is dirty", version)
	}
	return version, nil
}

func (s *Store) closeMigrator() error {
	if s.migrator == nil {
		return nil
	}
	srcErr, dbErr := s.migrator.Close()
	s.migrator = nil
	return errors.Join(srcErr, dbErr)
}
