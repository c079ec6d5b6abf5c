package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"rental-ledger/internal/ledger"
)

const transactionColumns = `id::text, seq, type, category, amount::text, currency, description,
	reference::text, effective_date, apartment_id::text, booking_id::text, created_by,
	metadata::text, created_at`

// lockPeriod lazily creates the period row for (year, month) and takes a
// row lock on it for the rest of the surrounding transaction. Every
// mutating ledger operation goes through this lock, so a concurrent close
// cannot interleave between the open check and the write.
func lockPeriod(ctx context.Context, tx pgx.Tx, year, month int) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO ledger_periods (year, month) VALUES ($1, $2) ON CONFLICT (year, month) DO NOTHING`,
		year, month)
	if err != nil {
		return fmt.Errorf("failed to ensure period row: %w", err)
	}

	var closed bool
	err = tx.QueryRow(ctx,
		`SELECT is_closed FROM ledger_periods WHERE year = $1 AND month = $2 FOR UPDATE`,
		year, month).Scan(&closed)
	if err != nil {
		return fmt.Errorf("failed to lock period row: %w", err)
	}
	if closed {
		return &ledger.PeriodClosedError{Year: year, Month: month}
	}
	return nil
}

// Append inserts one ledger entry inside a transaction that holds the lock
// on the entry's period row. Fills in Seq and CreatedAt.
func (r *Repository) Append(ctx context.Context, t *ledger.Transaction) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := lockPeriod(ctx, tx, t.Date.Year(), int(t.Date.Month())); err != nil {
		return err
	}

	var metadata *string
	if t.Metadata != nil {
		b, err := json.Marshal(t.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
		s := string(b)
		metadata = &s
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO ledger_transactions (
			id, type, category, amount, currency, description,
			reference, effective_date, apartment_id, booking_id,
			created_by, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12::jsonb)
		RETURNING seq, created_at`,
		t.ID, string(t.Type), string(t.Category), t.Amount.String(), t.Currency, t.Description,
		t.Reference, t.Date, t.ApartmentID, t.BookingID,
		t.CreatedBy, metadata,
	).Scan(&t.Seq, &t.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert ledger transaction: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func scanTransaction(row pgx.Row) (*ledger.Transaction, error) {
	var (
		t        ledger.Transaction
		typ, cat string
		amount   string
		metadata *string
	)
	err := row.Scan(&t.ID, &t.Seq, &typ, &cat, &amount, &t.Currency, &t.Description,
		&t.Reference, &t.Date, &t.ApartmentID, &t.BookingID, &t.CreatedBy,
		&metadata, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	t.Type = ledger.TransactionType(typ)
	t.Category = ledger.Category(cat)
	t.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("failed to parse amount %q: %w", amount, err)
	}
	if metadata != nil {
		if err := json.Unmarshal([]byte(*metadata), &t.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	return &t, nil
}

// Get returns one entry by id.
func (r *Repository) Get(ctx context.Context, id string) (*ledger.Transaction, error) {
	row := r.db.Pool.QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM ledger_transactions WHERE id = $1`, id)
	t, err := scanTransaction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &ledger.NotFoundError{Kind: "transaction", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return t, nil
}

// List returns a page of entries matching the filter, ordered by date
// descending with insertion order as the tie-breaker, plus the total count.
func (r *Repository) List(ctx context.Context, f ledger.Filter) ([]ledger.Transaction, int, error) {
	where := []string{"TRUE"}
	args := []interface{}{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Type != "" {
		where = append(where, "type = "+arg(string(f.Type)))
	}
	if f.Category != "" {
		where = append(where, "category = "+arg(string(f.Category)))
	}
	if f.ApartmentID != "" {
		where = append(where, "apartment_id = "+arg(f.ApartmentID))
	}
	if f.BookingID != "" {
		where = append(where, "booking_id = "+arg(f.BookingID))
	}
	if !f.From.IsZero() {
		where = append(where, "effective_date >= "+arg(f.From))
	}
	if !f.To.IsZero() {
		where = append(where, "effective_date <= "+arg(f.To))
	}
	cond := strings.Join(where, " AND ")

	var total int
	err := r.db.Pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM ledger_transactions WHERE "+cond, args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	page, pageSize := f.Page, f.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 50
	}
	query := "SELECT " + transactionColumns + " FROM ledger_transactions WHERE " + cond +
		" ORDER BY effective_date DESC, seq DESC" +
		" LIMIT " + arg(pageSize) + " OFFSET " + arg((page-1)*pageSize)

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var out []ledger.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan transaction: %w", err)
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to read transactions: %w", err)
	}
	return out, total, nil
}

// Window returns all entries dated in [from, to] inclusive, optionally
// restricted to a set of apartments, in scan order (date, then insertion).
func (r *Repository) Window(ctx context.Context, from, to time.Time, apartmentIDs []string) ([]ledger.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM ledger_transactions
		WHERE effective_date >= $1 AND effective_date <= $2`
	args := []interface{}{from, to}
	if len(apartmentIDs) > 0 {
		query += ` AND apartment_id = ANY($3)`
		args = append(args, apartmentIDs)
	}
	query += ` ORDER BY effective_date ASC, seq ASC`

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query window: %w", err)
	}
	defer rows.Close()

	var out []ledger.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read window: %w", err)
	}
	return out, nil
}

// Patch corrects non-financial fields in place. Amount, type and identity
// are never touched here; there is deliberately no UPDATE of those columns
// anywhere in this package. The entry's current period is locked and
// checked, and when the date moves, the target period too.
func (r *Repository) Patch(ctx context.Context, id string, p ledger.Patch) (*ledger.Transaction, error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var current time.Time
	err = tx.QueryRow(ctx,
		`SELECT effective_date FROM ledger_transactions WHERE id = $1 FOR UPDATE`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &ledger.NotFoundError{Kind: "transaction", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock transaction: %w", err)
	}

	// Lock the affected period rows in a fixed order so two concurrent
	// patches cannot deadlock on each other.
	periods := [][2]int{{current.Year(), int(current.Month())}}
	if p.Date != nil && (p.Date.Year() != current.Year() || p.Date.Month() != current.Month()) {
		periods = append(periods, [2]int{p.Date.Year(), int(p.Date.Month())})
		if periods[1][0] < periods[0][0] || (periods[1][0] == periods[0][0] && periods[1][1] < periods[0][1]) {
			periods[0], periods[1] = periods[1], periods[0]
		}
	}
	for _, ym := range periods {
		if err := lockPeriod(ctx, tx, ym[0], ym[1]); err != nil {
			return nil, err
		}
	}

	set := []string{}
	args := []interface{}{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if p.Description != nil {
		set = append(set, "description = "+arg(*p.Description))
	}
	if p.Category != nil {
		set = append(set, "category = "+arg(string(*p.Category)))
	}
	if p.Date != nil {
		set = append(set, "effective_date = "+arg(*p.Date))
	}
	if p.ApartmentID != nil {
		set = append(set, "apartment_id = "+arg(*p.ApartmentID))
	}
	if p.Metadata != nil {
		b, err := json.Marshal(p.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal metadata: %w", err)
		}
		set = append(set, "metadata = COALESCE(metadata, '{}'::jsonb) || "+arg(string(b))+"::jsonb")
	}

	if len(set) > 0 {
		query := "UPDATE ledger_transactions SET " + strings.Join(set, ", ") +
			" WHERE id = " + arg(id)
		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return nil, fmt.Errorf("failed to patch transaction: %w", err)
		}
	}

	row := tx.QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM ledger_transactions WHERE id = $1`, id)
	t, err := scanTransaction(row)
	if err != nil {
		return nil, fmt.Errorf("failed to reload transaction: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return t, nil
}
