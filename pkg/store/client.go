// Package store is the Document Store: the Postgres-backed relational side
// of the system (embeddings live in Qdrant via pkg/vectorstore), using an
// embed+golang-migrate+iofs migration pattern on top of pgx/v5.
package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the pgx driver for database/sql, used only to drive migrate

	"github.com/quarryhq/quarry/pkg/config"
)

//go:embed migrations
var migrationsFS embed.FS

// Store wraps a pgx connection pool and exposes the Document Store
// operations (batched upsert, task log, health).
type Store struct {
	pool *pgxpool.Pool
}

// Open creates a pool against cfg.DSN, applies pending migrations, and
// returns a ready Store.
func Open(ctx context.Context, cfg config.StoreConfig) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("store: parse dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("store: new pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	migrationsPath := cfg.MigrationsPath
	if migrationsPath == "" {
		migrationsPath = "migrations"
	}
	if err := runMigrations(cfg.DSN, migrationsPath); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Pool exposes the underlying pool for packages (vectorstore's companion
// metadata lookups, health checks) that need direct query access.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// runMigrations applies pending embedded migrations through database/sql,
// since golang-migrate's postgres driver wants a *sql.DB rather than a pgx
// pool. This connection is closed once migrations finish; the pool above
// carries all subsequent traffic.
func runMigrations(dsn, migrationsPath string) error {
	hasMigrations, err := hasEmbeddedMigrations(migrationsPath)
	if err != nil {
		return fmt.Errorf("check embedded migrations: %w", err)
	}
	if !hasMigrations {
		return fmt.Errorf("no embedded migration files found under %q", migrationsPath)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("postgres driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrationsFS, migrationsPath)
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}
	defer sourceDriver.Close()

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "quarry", driver)
	if err != nil {
		return fmt.Errorf("migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func hasEmbeddedMigrations(migrationsPath string) (bool, error) {
	entries, err := fs.ReadDir(migrationsFS, migrationsPath)
	if err != nil {
		return false, fmt.Errorf("read embedded migrations: %w", err)
	}
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() && len(name) > 4 && name[len(name)-4:] == ".sql" {
			return true, nil
		}
	}
	return false, nil
}
