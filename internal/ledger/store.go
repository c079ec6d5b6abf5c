package ledger

import (
	"context"
	"time"
)

// Summarizer computes the frozen snapshot inside the store's close
// transaction, after the period row is locked, so the snapshot covers
// exactly the entries that exist at close time.
type Summarizer func(ctx context.Context, txs []Transaction) (*FinancialSummary, error)

// Store is the durable ledger. Implementations must make every mutating
// operation atomic with its period-open check: the period row for the
// effective date's (year, month) is locked for the duration of the write,
// so a concurrent close cannot interleave between check and write.
type Store interface {
	// Append persists a new entry, filling in Seq and CreatedAt. Fails
	// with PeriodClosedError when the entry's date falls in a closed
	// period. No other row is touched.
	Append(ctx context.Context, t *Transaction) error

	// Get returns one entry or NotFoundError.
	Get(ctx context.Context, id string) (*Transaction, error)

	// List returns matching entries ordered by date descending, ties
	// broken by insertion order, plus the total match count for paging.
	List(ctx context.Context, f Filter) ([]Transaction, int, error)

	// Patch corrects non-financial fields in place. Both the entry's
	// current period and, when the date moves, the target period must be
	// open.
	Patch(ctx context.Context, id string, p Patch) (*Transaction, error)

	// Window returns all entries with date in [from, to] inclusive,
	// optionally restricted to a set of apartment ids, ordered by date
	// then insertion order.
	Window(ctx context.Context, from, to time.Time, apartmentIDs []string) ([]Transaction, error)

	// Period returns the period row for (year, month), creating it open
	// if it does not exist yet.
	Period(ctx context.Context, year, month int) (*Period, error)

	// ListPeriods returns all known periods, newest first.
	ListPeriods(ctx context.Context) ([]Period, error)

	// Close flips (year, month) to closed, storing the snapshot produced
	// by summarize over the period's entries. Fails with
	// AlreadyClosedError when the period is closed.
	Close(ctx context.Context, year, month int, closedBy string, summarize Summarizer) (*Period, error)

	// Reopen flips a closed period back to open and clears its snapshot,
	// retaining the reason for the audit trail. Fails with NotClosedError
	// when the period is open.
	Reopen(ctx context.Context, year, month int, reopenedBy, reason string) (*Period, error)
}

// BookingCounter supplies per-apartment counts of revenue bookings whose
// check-in falls in a window. This comes from booking records, not from
// counting transactions.
type BookingCounter interface {
	CountBookings(ctx context.Context, from, to time.Time, apartmentIDs []string) (map[string]int, error)
}
