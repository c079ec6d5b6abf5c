package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"rental-ledger/internal/ledger"
)

const periodColumns = `year, month, is_closed, closed_at, closed_by,
	reopened_at, reopened_by, reopen_reason, snapshot::text`

func scanPeriod(row pgx.Row) (*ledger.Period, error) {
	var (
		p        ledger.Period
		snapshot *string
	)
	err := row.Scan(&p.Year, &p.Month, &p.IsClosed, &p.ClosedAt, &p.ClosedBy,
		&p.ReopenedAt, &p.ReopenedBy, &p.ReopenReason, &snapshot)
	if err != nil {
		return nil, err
	}
	if snapshot != nil {
		p.Snapshot = &ledger.FinancialSummary{}
		if err := json.Unmarshal([]byte(*snapshot), p.Snapshot); err != nil {
			return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
		}
	}
	return &p, nil
}

// Period returns the (year, month) row, creating it open when absent.
func (r *Repository) Period(ctx context.Context, year, month int) (*ledger.Period, error) {
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO ledger_periods (year, month) VALUES ($1, $2) ON CONFLICT (year, month) DO NOTHING`,
		year, month)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure period row: %w", err)
	}

	row := r.db.Pool.QueryRow(ctx,
		`SELECT `+periodColumns+` FROM ledger_periods WHERE year = $1 AND month = $2`,
		year, month)
	p, err := scanPeriod(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get period: %w", err)
	}
	return p, nil
}

// ListPeriods returns every known period, newest first.
func (r *Repository) ListPeriods(ctx context.Context) ([]ledger.Period, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+periodColumns+` FROM ledger_periods ORDER BY year DESC, month DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list periods: %w", err)
	}
	defer rows.Close()

	var out []ledger.Period
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan period: %w", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read periods: %w", err)
	}
	return out, nil
}

// Close flips (year, month) to closed and freezes the snapshot. The period
// row stays locked from the open check until commit, and the entries are
// read under that lock, so the snapshot covers exactly the rows that can
// ever be dated in the period.
func (r *Repository) Close(ctx context.Context, year, month int, closedBy string, summarize ledger.Summarizer) (*ledger.Period, error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO ledger_periods (year, month) VALUES ($1, $2) ON CONFLICT (year, month) DO NOTHING`,
		year, month)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure period row: %w", err)
	}

	var closed bool
	err = tx.QueryRow(ctx,
		`SELECT is_closed FROM ledger_periods WHERE year = $1 AND month = $2 FOR UPDATE`,
		year, month).Scan(&closed)
	if err != nil {
		return nil, fmt.Errorf("failed to lock period row: %w", err)
	}
	if closed {
		return nil, &ledger.AlreadyClosedError{Year: year, Month: month}
	}

	from, to := ledger.MonthWindow(year, month)
	rows, err := tx.Query(ctx, `SELECT `+transactionColumns+` FROM ledger_transactions
		WHERE effective_date >= $1 AND effective_date <= $2
		ORDER BY effective_date ASC, seq ASC`, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query period entries: %w", err)
	}
	var txs []ledger.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, *t)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to read period entries: %w", err)
	}
	rows.Close()

	summary, err := summarize(ctx, txs)
	if err != nil {
		return nil, fmt.Errorf("failed to compute closing snapshot: %w", err)
	}
	snapshot, err := json.Marshal(summary)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	row := tx.QueryRow(ctx, `UPDATE ledger_periods
		SET is_closed = TRUE, closed_at = CURRENT_TIMESTAMP, closed_by = $3, snapshot = $4::jsonb
		WHERE year = $1 AND month = $2
		RETURNING `+periodColumns,
		year, month, closedBy, string(snapshot))
	p, err := scanPeriod(row)
	if err != nil {
		return nil, fmt.Errorf("failed to close period: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return p, nil
}

// Reopen flips a closed period back to open, clearing the snapshot and
// keeping the reason on the row for the audit trail.
func (r *Repository) Reopen(ctx context.Context, year, month int, reopenedBy, reason string) (*ledger.Period, error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO ledger_periods (year, month) VALUES ($1, $2) ON CONFLICT (year, month) DO NOTHING`,
		year, month)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure period row: %w", err)
	}

	var closed bool
	err = tx.QueryRow(ctx,
		`SELECT is_closed FROM ledger_periods WHERE year = $1 AND month = $2 FOR UPDATE`,
		year, month).Scan(&closed)
	if err != nil {
		return nil, fmt.Errorf("failed to lock period row: %w", err)
	}
	if !closed {
		return nil, &ledger.NotClosedError{Year: year, Month: month}
	}

	row := tx.QueryRow(ctx, `UPDATE ledger_periods
		SET is_closed = FALSE, snapshot = NULL,
			reopened_at = CURRENT_TIMESTAMP, reopened_by = $3, reopen_reason = $4
		WHERE year = $1 AND month = $2
		RETURNING `+periodColumns,
		year, month, reopenedBy, reason)
	p, err := scanPeriod(row)
	if err != nil {
		return nil, fmt.Errorf("failed to reopen period: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return p, nil
}
