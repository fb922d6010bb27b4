// Package db is the optional SQL store for airports and proximity
// thresholds. PostgreSQL is the production backend; SQLite serves local
// setups and tests.
package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"  // PostgreSQL driver
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/unklstewy/ads-proximity/pkg/config"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// DB wraps a database connection with helper methods.
type DB struct {
	*sql.DB
	config config.DatabaseConfig
}

// Driver returns the configured driver name.
func (db *DB) Driver() string {
	return driverName(db.config)
}

func driverName(cfg config.DatabaseConfig) string {
	if cfg.Driver == "" {
		return "postgres"
	}
	return cfg.Driver
}

// dataSource builds the driver name and DSN for cfg.
func dataSource(cfg config.DatabaseConfig) (string, string, error) {
	switch driverName(cfg) {
	case "postgres":
		return "postgres", fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host,
			cfg.Port,
			cfg.Username,
			cfg.Password,
			cfg.Database,
			cfg.SSLMode,
		), nil
	case "sqlite":
		if cfg.Path == "" {
			return "", "", errors.New("sqlite database requires a path")
		}
		return "sqlite", cfg.Path, nil
	default:
		return "", "", fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// Connect opens and pings the configured database.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*DB, error) {
	driver, dsn, err := dataSource(cfg)
	if err != nil {
		return nil, err
	}

	sqlDB, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if driver == "sqlite" {
		// one writer; avoids SQLITE_BUSY between pooled connections
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(pingCtx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if driver == "sqlite" {
		if _, err := sqlDB.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("failed to configure sqlite: %w", err)
		}
	}

	return &DB{DB: sqlDB, config: cfg}, nil
}

// InitSchema applies pending migrations. This should be called once at
// application startup.
func (db *DB) InitSchema(ctx context.Context) error {
	m, err := db.newMigrate()
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// SchemaVersion returns the applied migration version, 0 when none.
func (db *DB) SchemaVersion() (uint, bool, error) {
	m, err := db.newMigrate()
	if err != nil {
		return 0, false, err
	}
	defer m.Close()

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

// newMigrate opens a separate handle for the migrator so closing it leaves
// db usable.
func (db *DB) newMigrate() (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open migrations: %w", err)
	}

	name, dsn, err := dataSource(db.config)
	if err != nil {
		return nil, err
	}
	conn, err := sql.Open(name, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open migration connection: %w", err)
	}

	var driver database.Driver
	switch name {
	case "sqlite":
		driver, err = sqlite.WithInstance(conn, &sqlite.Config{})
	default:
		driver, err = postgres.WithInstance(conn, &postgres.Config{})
	}
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create %s migration driver: %w", name, err)
	}

	m, err := migrate.NewWithInstance("iofs", src, name, driver)
	if err != nil {
		driver.Close()
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return m, nil
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (db *DB) rebind(query string) string {
	if db.Driver() != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ApplyTo replaces cfg's airports and thresholds with the stored ones.
// Empty tables leave the file configuration in place.
func (db *DB) ApplyTo(ctx context.Context, cfg *config.Config) error {
	airports, err := NewAirportRepository(db).List(ctx)
	if err != nil {
		return err
	}
	if len(airports) > 0 {
		cfg.Airports = airports
	}

	table, err := NewThresholdRepository(db).Load(ctx)
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		return err
	default:
		cfg.Thresholds = table
	}

	return cfg.Validate()
}

// Seed writes cfg's airports and thresholds into empty tables.
func (db *DB) Seed(ctx context.Context, cfg *config.Config) error {
	airports := NewAirportRepository(db)
	existing, err := airports.List(ctx)
	if err != nil {
		return err
	}
	if len(existing) == 0 {
		for _, a := range cfg.Airports {
			if err := airports.Upsert(ctx, a); err != nil {
				return err
			}
		}
	}

	thresholds := NewThresholdRepository(db)
	if _, err := thresholds.Load(ctx); errors.Is(err, ErrNotFound) {
		return thresholds.Save(ctx, cfg.Thresholds)
	} else if err != nil {
		return err
	}
	return nil
}

// GetStats returns row counts for the stored configuration.
func (db *DB) GetStats(ctx context.Context) (map[string]int, error) {
	stats := make(map[string]int)

	var airports int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM airports`).Scan(&airports); err != nil {
		return nil, err
	}
	stats["airports"] = airports

	var thresholds int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM proximity_thresholds`).Scan(&thresholds); err != nil {
		return nil, err
	}
	stats["threshold_categories"] = thresholds

	return stats, nil
}
