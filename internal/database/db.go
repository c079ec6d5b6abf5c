// Package database provides PostgreSQL persistence for the ledger: the
// append-only transaction table, period rows, and the apartment/booking
// registry the rollups draw on.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"rental-ledger/internal/logging"
)

// DB wraps the PostgreSQL connection pool
type DB struct {
	Pool *pgxpool.Pool
}

// Config holds database configuration
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// NewDB creates a new database connection
func NewDB(cfg Config) (*DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	logging.Default().Info().Str("database", cfg.Database).Msg("connected to PostgreSQL")

	return &DB{Pool: pool}, nil
}

// Close closes the database connection
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		logging.Default().Info().Msg("database connection closed")
	}
}

// RunMigrations executes database migrations
func (db *DB) RunMigrations(ctx context.Context) error {
	logging.Default().Info().Msg("running database migrations")

	migrations := []string{
		// Ledger entries. Rows are append-only: amount, type and identity
		// never change after insert; seq records insertion order for
		// deterministic tie-breaking.
		`CREATE TABLE IF NOT EXISTS ledger_transactions (
			id UUID PRIMARY KEY,
			seq BIGSERIAL,
			type VARCHAR(20) NOT NULL,
			category VARCHAR(30) NOT NULL,
			amount NUMERIC(14, 2) NOT NULL,
			currency VARCHAR(3) NOT NULL,
			description TEXT NOT NULL,
			reference UUID,
			effective_date DATE NOT NULL,
			apartment_id UUID,
			booking_id UUID,
			created_by VARCHAR(100) NOT NULL,
			metadata JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_transactions_date ON ledger_transactions(effective_date)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_transactions_apartment ON ledger_transactions(apartment_id)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_transactions_type ON ledger_transactions(type)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_transactions_reference ON ledger_transactions(reference)`,

		// Accounting periods. One row per (year, month), created lazily;
		// the row is the lock target for the period-open check.
		`CREATE TABLE IF NOT EXISTS ledger_periods (
			year INTEGER NOT NULL,
			month INTEGER NOT NULL,
			is_closed BOOLEAN NOT NULL DEFAULT FALSE,
			closed_at TIMESTAMPTZ,
			closed_by VARCHAR(100),
			reopened_at TIMESTAMPTZ,
			reopened_by VARCHAR(100),
			reopen_reason TEXT,
			snapshot JSONB,
			PRIMARY KEY (year, month)
		)`,

		// Apartment registry for labels and owner scoping.
		`CREATE TABLE IF NOT EXISTS apartments (
			id UUID PRIMARY KEY,
			title VARCHAR(200) NOT NULL,
			owner_id VARCHAR(100) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_apartments_owner ON apartments(owner_id)`,

		// Booking records: fee components feed entry synthesis, check-in
		// and status feed the per-apartment bookings count.
		`CREATE TABLE IF NOT EXISTS bookings (
			id UUID PRIMARY KEY,
			apartment_id UUID NOT NULL REFERENCES apartments(id),
			guest_name VARCHAR(200) NOT NULL DEFAULT '',
			check_in DATE NOT NULL,
			check_out DATE,
			status VARCHAR(20) NOT NULL DEFAULT 'CONFIRMED',
			base_price NUMERIC(14, 2) NOT NULL DEFAULT 0,
			cleaning_fee NUMERIC(14, 2) NOT NULL DEFAULT 0,
			service_fee NUMERIC(14, 2) NOT NULL DEFAULT 0,
			currency VARCHAR(3) NOT NULL DEFAULT 'EUR',
			cancellation_amount NUMERIC(14, 2) NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_apartment ON bookings(apartment_id)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_check_in ON bookings(check_in)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_status ON bookings(status)`,

		// Users for authentication; roles gate period close/reopen.
		`CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			email VARCHAR(200) NOT NULL UNIQUE,
			password_hash VARCHAR(200) NOT NULL,
			role VARCHAR(20) NOT NULL DEFAULT 'accountant',
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	logging.Default().Info().Int("count", len(migrations)).Msg("database migrations completed")
	return nil
}
