package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"rental-ledger/internal/ledger"
)

const bookingColumns = `id::text, apartment_id::text, guest_name, check_in, check_out, status,
	base_price::text, cleaning_fee::text, service_fee::text, currency, cancellation_amount::text`

func scanBooking(row pgx.Row) (*ledger.Booking, error) {
	var (
		b                             ledger.Booking
		checkOut                      *time.Time
		base, cleaning, service, canc string
	)
	err := row.Scan(&b.ID, &b.ApartmentID, &b.GuestName, &b.CheckIn, &checkOut, &b.Status,
		&base, &cleaning, &service, &b.Currency, &canc)
	if err != nil {
		return nil, err
	}
	if checkOut != nil {
		b.CheckOut = *checkOut
	}
	for _, f := range []struct {
		dst *decimal.Decimal
		src string
	}{
		{&b.BasePrice, base},
		{&b.CleaningFee, cleaning},
		{&b.ServiceFee, service},
		{&b.CancellationAmount, canc},
	} {
		d, err := decimal.NewFromString(f.src)
		if err != nil {
			return nil, fmt.Errorf("failed to parse booking amount %q: %w", f.src, err)
		}
		*f.dst = d
	}
	return &b, nil
}

// CreateBooking inserts a booking record.
func (r *Repository) CreateBooking(ctx context.Context, b *ledger.Booking) error {
	var checkOut *time.Time
	if !b.CheckOut.IsZero() {
		checkOut = &b.CheckOut
	}
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO bookings (
			id, apartment_id, guest_name, check_in, check_out, status,
			base_price, cleaning_fee, service_fee, currency, cancellation_amount
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		b.ID, b.ApartmentID, b.GuestName, b.CheckIn, checkOut, b.Status,
		b.BasePrice.String(), b.CleaningFee.String(), b.ServiceFee.String(),
		b.Currency, b.CancellationAmount.String())
	if err != nil {
		return fmt.Errorf("failed to insert booking: %w", err)
	}
	return nil
}

// GetBooking returns one booking by id.
func (r *Repository) GetBooking(ctx context.Context, id string) (*ledger.Booking, error) {
	row := r.db.Pool.QueryRow(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
	b, err := scanBooking(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &ledger.NotFoundError{Kind: "booking", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return b, nil
}

// UpdateBookingStatus moves a booking through its lifecycle; the ledger
// only reads the result, entry synthesis is driven by the caller.
func (r *Repository) UpdateBookingStatus(ctx context.Context, id, status string, cancellationAmount decimal.Decimal) error {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE bookings SET status = $2, cancellation_amount = $3 WHERE id = $1`,
		id, status, cancellationAmount.String())
	if err != nil {
		return fmt.Errorf("failed to update booking: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &ledger.NotFoundError{Kind: "booking", ID: id}
	}
	return nil
}

// CountBookings returns per-apartment counts of revenue bookings whose
// check-in falls in [from, to], optionally restricted to a set of
// apartments. A zero-fee booking still counts as one booking, which is why
// this is a query over booking rows, not ledger entries.
func (r *Repository) CountBookings(ctx context.Context, from, to time.Time, apartmentIDs []string) (map[string]int, error) {
	query := `SELECT apartment_id::text, COUNT(*) FROM bookings
		WHERE check_in >= $1 AND check_in <= $2 AND status = ANY($3)`
	args := []interface{}{from, to, ledger.RevenueStatuses}
	if len(apartmentIDs) > 0 {
		query += ` AND apartment_id = ANY($4)`
		args = append(args, apartmentIDs)
	}
	query += ` GROUP BY apartment_id`

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count bookings: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("failed to scan booking count: %w", err)
		}
		out[id] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read booking counts: %w", err)
	}
	return out, nil
}

// BookingRefs resolves a batch of booking ids to short human-readable
// labels ("guest, check-in date") in one query.
func (r *Repository) BookingRefs(ctx context.Context, ids []string) (map[string]string, error) {
	out := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.db.Pool.Query(ctx,
		`SELECT id::text, guest_name, check_in FROM bookings WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve booking labels: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, guest string
		var checkIn time.Time
		if err := rows.Scan(&id, &guest, &checkIn); err != nil {
			return nil, fmt.Errorf("failed to scan booking label: %w", err)
		}
		label := checkIn.Format("2006-01-02")
		if guest != "" {
			label = guest + ", " + label
		}
		out[id] = label
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read booking labels: %w", err)
	}
	return out, nil
}
