package database

import (
	"context"

	"rental-ledger/internal/ledger"
)

// Repository provides data access methods
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// Repository is the Postgres implementation of the ledger's storage and
// booking-count contracts.
var (
	_ ledger.Store          = (*Repository)(nil)
	_ ledger.BookingCounter = (*Repository)(nil)
)

// HealthCheck performs a database health check
func (r *Repository) HealthCheck(ctx context.Context) error {
	return r.db.Pool.Ping(ctx)
}
