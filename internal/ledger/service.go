package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"rental-ledger/internal/logging"
)

// ServiceConfig tunes the ledger service.
type ServiceConfig struct {
	// DefaultCurrency is applied when input omits a currency code.
	DefaultCurrency string
	// SummaryTimeout bounds aggregation queries. Aggregation is read-only,
	// so a timeout fails the report and nothing else.
	SummaryTimeout time.Duration
}

// Service orchestrates the ledger: all writes funnel through a single
// tagged entry command so the immutability rules live in one place.
type Service struct {
	store    Store
	bookings BookingCounter
	cfg      ServiceConfig
	log      *logging.Logger
}

// NewService creates a ledger service.
func NewService(store Store, bookings BookingCounter, cfg ServiceConfig, log *logging.Logger) *Service {
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = "EUR"
	}
	if cfg.SummaryTimeout <= 0 {
		cfg.SummaryTimeout = 30 * time.Second
	}
	return &Service{store: store, bookings: bookings, cfg: cfg, log: log.WithComponent("ledger")}
}

// CreateTransactionInput is the caller-facing shape of a new entry.
type CreateTransactionInput struct {
	Type        TransactionType
	Category    Category
	Amount      decimal.Decimal
	Currency    string
	Description string
	Reference   *string
	Date        time.Time
	ApartmentID *string
	BookingID   *string
	Metadata    map[string]interface{}
}

type entryKind int

const (
	entryCreate entryKind = iota
	entryAdjust
	entryVoid
)

// entryCommand is the single write path: Create, Adjust and Void all reduce
// to one appended row, built here.
type entryCommand struct {
	kind      entryKind
	input     CreateTransactionInput // create
	original  *Transaction           // adjust, void
	newAmount *decimal.Decimal       // adjust re-price; nil means full void
	reason    string                 // adjust, void
	actor     string
}

func (s *Service) apply(ctx context.Context, cmd entryCommand) (*Transaction, error) {
	var t *Transaction

	switch cmd.kind {
	case entryCreate:
		in := cmd.input
		if strings.TrimSpace(in.Description) == "" {
			return nil, &ValidationError{Field: "description", Reason: "must not be empty"}
		}
		if !in.Type.Valid() {
			return nil, &ValidationError{Field: "type", Reason: fmt.Sprintf("unknown type %q", in.Type)}
		}
		if in.Category == "" {
			in.Category = CategoryOther
		}
		if in.Currency == "" {
			in.Currency = s.cfg.DefaultCurrency
		}
		date := in.Date
		if date.IsZero() {
			date = time.Now().UTC()
		}
		t = &Transaction{
			ID:          uuid.New().String(),
			Type:        in.Type,
			Category:    in.Category,
			Amount:      in.Amount,
			Currency:    in.Currency,
			Description: strings.TrimSpace(in.Description),
			Reference:   in.Reference,
			Date:        date,
			ApartmentID: in.ApartmentID,
			BookingID:   in.BookingID,
			CreatedBy:   cmd.actor,
			Metadata:    in.Metadata,
		}

	case entryAdjust, entryVoid:
		orig := cmd.original
		if strings.TrimSpace(cmd.reason) == "" {
			return nil, &ValidationError{Field: "reason", Reason: "must not be empty"}
		}
		// Full void offsets the whole original; re-price moves it to the
		// new amount. Either way the delta is what gets appended.
		target := decimal.Zero
		if cmd.newAmount != nil {
			target = *cmd.newAmount
		}
		delta := target.Sub(orig.Amount)

		meta := map[string]interface{}{
			"original_amount": orig.Amount.String(),
			"reason":          cmd.reason,
		}
		if cmd.newAmount != nil {
			meta["new_amount"] = cmd.newAmount.String()
		} else {
			meta["voided"] = true
		}

		ref := orig.ID
		desc := fmt.Sprintf("Adjustment of %s: %s", orig.ID, cmd.reason)
		if cmd.kind == entryVoid {
			desc = fmt.Sprintf("Void of %s: %s", orig.ID, cmd.reason)
		}
		t = &Transaction{
			ID:          uuid.New().String(),
			Type:        TypeAdjustment,
			Category:    orig.Category,
			Amount:      delta,
			Currency:    orig.Currency,
			Description: desc,
			Reference:   &ref,
			// Anchored to the original's effective date: closing a
			// period freezes it against amendment.
			Date:        orig.Date,
			ApartmentID: orig.ApartmentID,
			BookingID:   orig.BookingID,
			CreatedBy:   cmd.actor,
			Metadata:    meta,
		}
	}

	if err := s.store.Append(ctx, t); err != nil {
		return nil, err
	}
	s.log.Info().
		Str("transaction_id", t.ID).
		Str("type", string(t.Type)).
		Str("category", string(t.Category)).
		Str("amount", t.Amount.String()).
		Str("created_by", t.CreatedBy).
		Msg("ledger entry appended")
	return t, nil
}

// CreateTransaction appends a new entry. The entry's date decides its
// period; a date inside a closed period fails with PeriodClosedError.
func (s *Service) CreateTransaction(ctx context.Context, in CreateTransactionInput, actor string) (*Transaction, error) {
	return s.apply(ctx, entryCommand{kind: entryCreate, input: in, actor: actor})
}

// Adjust re-prices an existing entry to newAmount by appending an
// ADJUSTMENT whose amount is the delta. The original row is never touched.
// Two identical calls create two independent offsetting entries; each call
// is a discrete audit event, and de-duplication is the caller's concern.
func (s *Service) Adjust(ctx context.Context, originalID, reason string, newAmount decimal.Decimal, actor string) (*Transaction, error) {
	orig, err := s.store.Get(ctx, originalID)
	if err != nil {
		return nil, err
	}
	if orig.Type == TypeAdjustment {
		return nil, &ValidationError{Field: "id", Reason: "cannot adjust an adjustment; adjust the original entry"}
	}
	return s.apply(ctx, entryCommand{kind: entryAdjust, original: orig, newAmount: &newAmount, reason: reason, actor: actor})
}

// Void fully cancels an entry's net effect with an offsetting ADJUSTMENT.
func (s *Service) Void(ctx context.Context, id, reason, actor string) (*Transaction, error) {
	orig, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if orig.Type == TypeAdjustment {
		return nil, &ValidationError{Field: "id", Reason: "cannot void an adjustment; void the original entry"}
	}
	t, err := s.apply(ctx, entryCommand{kind: entryVoid, original: orig, reason: reason, actor: actor})
	if err != nil {
		return nil, err
	}
	// Advisory marker for UIs; the authoritative state is the sum of the
	// original plus all adjustments referencing it.
	if _, perr := s.store.Patch(ctx, id, Patch{Metadata: map[string]interface{}{
		"voided_by": t.ID,
		"voided_at": time.Now().UTC().Format(time.RFC3339),
	}}); perr != nil {
		s.log.Warn().Err(perr).Str("transaction_id", id).Msg("failed to annotate voided entry")
	}
	return t, nil
}

// GetTransaction returns one entry.
func (s *Service) GetTransaction(ctx context.Context, id string) (*Transaction, error) {
	return s.store.Get(ctx, id)
}

// ListTransactions returns a page of entries plus the total match count.
func (s *Service) ListTransactions(ctx context.Context, f Filter) ([]Transaction, int, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 || f.PageSize > 500 {
		f.PageSize = 50
	}
	return s.store.List(ctx, f)
}

// WindowTransactions returns every entry dated in [from, to] inclusive,
// optionally scoped to a set of apartments; used by exports.
func (s *Service) WindowTransactions(ctx context.Context, from, to time.Time, apartmentIDs []string) ([]Transaction, error) {
	return s.store.Window(ctx, from, to, apartmentIDs)
}

// PatchTransaction corrects non-financial fields of an entry. Financial
// corrections go through Adjust or Void.
func (s *Service) PatchTransaction(ctx context.Context, id string, p Patch) (*Transaction, error) {
	if p.Description != nil && strings.TrimSpace(*p.Description) == "" {
		return nil, &ValidationError{Field: "description", Reason: "must not be empty"}
	}
	return s.store.Patch(ctx, id, p)
}

// Summarize computes the financial summary of one period, optionally
// scoped to a set of apartments. Period-open status is never consulted or
// cached here: the summary reflects whatever entries exist at scan time.
func (s *Service) Summarize(ctx context.Context, year, month int, apartmentIDs []string) (*FinancialSummary, error) {
	if month < 1 || month > 12 {
		return nil, &ValidationError{Field: "month", Reason: "must be 1-12"}
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.SummaryTimeout)
	defer cancel()

	from, to := MonthWindow(year, month)
	txs, err := s.store.Window(ctx, from, to, apartmentIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load period window: %w", err)
	}
	counts, err := s.bookings.CountBookings(ctx, from, to, apartmentIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to count bookings: %w", err)
	}
	return Aggregate(year, month, txs, counts), nil
}

// GetPeriod returns the period row, creating it open if needed.
func (s *Service) GetPeriod(ctx context.Context, year, month int) (*Period, error) {
	if month < 1 || month > 12 {
		return nil, &ValidationError{Field: "month", Reason: "must be 1-12"}
	}
	return s.store.Period(ctx, year, month)
}

// ListPeriods returns all known periods, newest first.
func (s *Service) ListPeriods(ctx context.Context) ([]Period, error) {
	return s.store.ListPeriods(ctx)
}

// ClosePeriod freezes (year, month): the snapshot is computed inside the
// store's close transaction, after the period row is locked, so it covers
// exactly the entries that can ever exist in the period.
func (s *Service) ClosePeriod(ctx context.Context, year, month int, closedBy string) (*Period, error) {
	if month < 1 || month > 12 {
		return nil, &ValidationError{Field: "month", Reason: "must be 1-12"}
	}
	// Booking counts come from booking rows, which the period lock does
	// not cover; they are read up front so the summarizer never calls
	// back into the store while it holds the close lock.
	from, to := MonthWindow(year, month)
	counts, err := s.bookings.CountBookings(ctx, from, to, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to count bookings: %w", err)
	}
	p, err := s.store.Close(ctx, year, month, closedBy, func(ctx context.Context, txs []Transaction) (*FinancialSummary, error) {
		return Aggregate(year, month, txs, counts), nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Int("year", year).Int("month", month).Str("closed_by", closedBy).Msg("period closed")
	return p, nil
}

// ReopenPeriod flips a closed period back to open. Privileged and audited;
// the reason is retained on the period row.
func (s *Service) ReopenPeriod(ctx context.Context, year, month int, reopenedBy, reason string) (*Period, error) {
	if month < 1 || month > 12 {
		return nil, &ValidationError{Field: "month", Reason: "must be 1-12"}
	}
	if strings.TrimSpace(reason) == "" {
		return nil, &ValidationError{Field: "reason", Reason: "must not be empty"}
	}
	p, err := s.store.Reopen(ctx, year, month, reopenedBy, reason)
	if err != nil {
		return nil, err
	}
	s.log.Warn().Int("year", year).Int("month", month).
		Str("reopened_by", reopenedBy).Str("reason", reason).
		Msg("period reopened")
	return p, nil
}

// RecordBooking synthesizes the income entries of a confirmed booking:
// base price as BOOKING, plus CLEANING_FEE and SERVICE_FEE rows when those
// components are non-zero. Entries are dated at check-in.
func (s *Service) RecordBooking(ctx context.Context, b Booking, actor string) ([]Transaction, error) {
	if b.ID == "" {
		return nil, &ValidationError{Field: "booking_id", Reason: "must not be empty"}
	}
	type component struct {
		category Category
		amount   decimal.Decimal
		label    string
	}
	components := []component{
		{CategoryBooking, b.BasePrice, "Booking revenue"},
		{CategoryCleaningFee, b.CleaningFee, "Cleaning fee"},
		{CategoryServiceFee, b.ServiceFee, "Service fee"},
	}

	var out []Transaction
	for _, c := range components {
		if c.amount.IsZero() {
			continue
		}
		t, err := s.CreateTransaction(ctx, CreateTransactionInput{
			Type:        TypeIncome,
			Category:    c.category,
			Amount:      c.amount,
			Currency:    b.Currency,
			Description: fmt.Sprintf("%s for booking %s", c.label, b.ID),
			Date:        b.CheckIn,
			ApartmentID: &b.ApartmentID,
			BookingID:   &b.ID,
		}, actor)
		if err != nil {
			return out, err
		}
		out = append(out, *t)
	}
	return out, nil
}

// RecordCancellation synthesizes the REFUND entry of a cancelled booking.
func (s *Service) RecordCancellation(ctx context.Context, b Booking, actor string) (*Transaction, error) {
	if b.CancellationAmount.IsZero() {
		return nil, &ValidationError{Field: "cancellation_amount", Reason: "must not be zero"}
	}
	return s.CreateTransaction(ctx, CreateTransactionInput{
		Type:        TypeRefund,
		Category:    CategoryCancellation,
		Amount:      b.CancellationAmount.Abs(),
		Currency:    b.Currency,
		Description: fmt.Sprintf("Refund for cancelled booking %s", b.ID),
		Date:        b.CheckIn,
		ApartmentID: &b.ApartmentID,
		BookingID:   &b.ID,
	}, actor)
}
