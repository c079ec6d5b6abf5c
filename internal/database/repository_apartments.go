package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"rental-ledger/internal/ledger"
)

// CreateApartment inserts a registry entry.
func (r *Repository) CreateApartment(ctx context.Context, a *ledger.Apartment) error {
	err := r.db.Pool.QueryRow(ctx, `
		INSERT INTO apartments (id, title, owner_id)
		VALUES ($1, $2, $3)
		RETURNING created_at`,
		a.ID, a.Title, a.OwnerID).Scan(&a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert apartment: %w", err)
	}
	return nil
}

// GetApartment returns one apartment by id.
func (r *Repository) GetApartment(ctx context.Context, id string) (*ledger.Apartment, error) {
	var a ledger.Apartment
	err := r.db.Pool.QueryRow(ctx,
		`SELECT id::text, title, owner_id, created_at FROM apartments WHERE id = $1`, id).
		Scan(&a.ID, &a.Title, &a.OwnerID, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &ledger.NotFoundError{Kind: "apartment", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get apartment: %w", err)
	}
	return &a, nil
}

// ListApartments returns all apartments, optionally scoped to one owner.
func (r *Repository) ListApartments(ctx context.Context, ownerID string) ([]ledger.Apartment, error) {
	query := `SELECT id::text, title, owner_id, created_at FROM apartments`
	args := []interface{}{}
	if ownerID != "" {
		query += ` WHERE owner_id = $1`
		args = append(args, ownerID)
	}
	query += ` ORDER BY title`

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list apartments: %w", err)
	}
	defer rows.Close()

	var out []ledger.Apartment
	for rows.Next() {
		var a ledger.Apartment
		if err := rows.Scan(&a.ID, &a.Title, &a.OwnerID, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan apartment: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read apartments: %w", err)
	}
	return out, nil
}

// UpdateApartmentTitle renames an apartment.
func (r *Repository) UpdateApartmentTitle(ctx context.Context, id, title string) error {
	tag, err := r.db.Pool.Exec(ctx, `UPDATE apartments SET title = $2 WHERE id = $1`, id, title)
	if err != nil {
		return fmt.Errorf("failed to update apartment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &ledger.NotFoundError{Kind: "apartment", ID: id}
	}
	return nil
}

// ApartmentTitles resolves a batch of apartment ids to titles in one
// query. Missing ids are simply absent from the result.
func (r *Repository) ApartmentTitles(ctx context.Context, ids []string) (map[string]string, error) {
	out := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.db.Pool.Query(ctx,
		`SELECT id::text, title FROM apartments WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve apartment titles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, title string
		if err := rows.Scan(&id, &title); err != nil {
			return nil, fmt.Errorf("failed to scan apartment title: %w", err)
		}
		out[id] = title
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read apartment titles: %w", err)
	}
	return out, nil
}

// OwnerApartmentIDs returns the ids of one owner's apartments, for
// owner-scoped summaries.
func (r *Repository) OwnerApartmentIDs(ctx context.Context, ownerID string) ([]string, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT id::text FROM apartments WHERE owner_id = $1`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list owner apartments: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan apartment id: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read apartment ids: %w", err)
	}
	return out, nil
}
