package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"rental-ledger/internal/ledger"
)

// User is an authenticated actor. The role gates period close/reopen.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// CreateUser inserts a user.
func (r *Repository) CreateUser(ctx context.Context, u *User) error {
	err := r.db.Pool.QueryRow(ctx, `
		INSERT INTO users (id, email, password_hash, role)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		u.ID, u.Email, u.PasswordHash, u.Role).Scan(&u.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// GetUserByEmail returns a user by email.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := r.db.Pool.QueryRow(ctx,
		`SELECT id::text, email, password_hash, role, created_at FROM users WHERE email = $1`,
		email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &ledger.NotFoundError{Kind: "user", ID: email}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

// GetUser returns a user by id.
func (r *Repository) GetUser(ctx context.Context, id string) (*User, error) {
	var u User
	err := r.db.Pool.QueryRow(ctx,
		`SELECT id::text, email, password_hash, role, created_at FROM users WHERE id = $1`,
		id).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &ledger.NotFoundError{Kind: "user", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

// CountUsers returns the number of registered users; used by the admin
// seeder to decide whether a first admin is needed.
func (r *Repository) CountUsers(ctx context.Context) (int, error) {
	var n int
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}
