// Package ledger implements the financial core of the rental platform:
// an append-only transaction store, monthly accounting periods with
// close/reopen, adjustment-based corrections and period aggregation.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType classifies a ledger entry.
type TransactionType string

const (
	TypeIncome     TransactionType = "INCOME"
	TypeExpense    TransactionType = "EXPENSE"
	TypeRefund     TransactionType = "REFUND"
	TypeCommission TransactionType = "COMMISSION"
	TypeTax        TransactionType = "TAX"
	TypeAdjustment TransactionType = "ADJUSTMENT"
)

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	switch t {
	case TypeIncome, TypeExpense, TypeRefund, TypeCommission, TypeTax, TypeAdjustment:
		return true
	}
	return false
}

// Category is the domain tag of a transaction. The set is advisory: the
// model does not strictly tie categories to types.
type Category string

const (
	CategoryBooking      Category = "BOOKING"
	CategoryCleaningFee  Category = "CLEANING_FEE"
	CategoryServiceFee   Category = "SERVICE_FEE"
	CategoryCancellation Category = "CANCELLATION"
	CategoryMaintenance  Category = "MAINTENANCE"
	CategoryUtilities    Category = "UTILITIES"
	CategoryAdvertising  Category = "ADVERTISING"
	CategoryOther        Category = "OTHER"
)

// incomeSide reports whether a category belongs to the income side of the
// summary. Adjustment deltas inherit the side of the category they adjust,
// so this single map is the canonical sign rule for the whole aggregator.
func incomeSide(c Category) bool {
	switch c {
	case CategoryBooking, CategoryCleaningFee, CategoryServiceFee, CategoryOther:
		return true
	}
	return false
}

// Transaction is a single immutable ledger entry. After creation only
// Description, Category, Date and ApartmentID may be patched, as
// non-financial metadata corrections; any financial change is a new
// ADJUSTMENT entry referencing this one.
type Transaction struct {
	ID          string                 `json:"id"`
	Type        TransactionType        `json:"type"`
	Category    Category               `json:"category"`
	Amount      decimal.Decimal        `json:"amount"`
	Currency    string                 `json:"currency"`
	Description string                 `json:"description"`
	Reference   *string                `json:"reference,omitempty"`
	Date        time.Time              `json:"date"`
	ApartmentID *string                `json:"apartment_id,omitempty"`
	BookingID   *string                `json:"booking_id,omitempty"`
	CreatedBy   string                 `json:"created_by"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`

	// Seq is the insertion order assigned by the store; used only as the
	// tie-breaker for display ordering.
	Seq       int64     `json:"seq"`
	CreatedAt time.Time `json:"created_at"`
}

// SignedAmount returns the entry's contribution to net profit: income
// positive, expense-like types negated, adjustments by the side of their
// category.
func (t *Transaction) SignedAmount() decimal.Decimal {
	switch t.Type {
	case TypeIncome:
		return t.Amount
	case TypeAdjustment:
		if incomeSide(t.Category) {
			return t.Amount
		}
		return t.Amount.Neg()
	default:
		return t.Amount.Abs().Neg()
	}
}

// Period is one accounting month. A period row is created lazily the first
// time it is queried or written through; it starts open.
type Period struct {
	Year     int  `json:"year"`
	Month    int  `json:"month"`
	IsClosed bool `json:"is_closed"`

	ClosedAt *time.Time `json:"closed_at,omitempty"`
	ClosedBy *string    `json:"closed_by,omitempty"`

	ReopenedAt   *time.Time `json:"reopened_at,omitempty"`
	ReopenedBy   *string    `json:"reopened_by,omitempty"`
	ReopenReason *string    `json:"reopen_reason,omitempty"`

	// Snapshot is the summary frozen at close time. Nil while the period
	// is open.
	Snapshot *FinancialSummary `json:"snapshot,omitempty"`
}

// Window returns the inclusive date range [first day, last day] of the
// period, in UTC.
func (p *Period) Window() (time.Time, time.Time) {
	return MonthWindow(p.Year, p.Month)
}

// MonthWindow returns the inclusive [first day, last day] range of a
// calendar month in UTC.
func MonthWindow(year, month int) (time.Time, time.Time) {
	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0).Add(-time.Nanosecond)
	return from, to
}

// IncomeBreakdown groups the income side of a summary by category.
type IncomeBreakdown struct {
	Total        decimal.Decimal `json:"total"`
	Bookings     decimal.Decimal `json:"bookings"`
	CleaningFees decimal.Decimal `json:"cleaning_fees"`
	ServiceFees  decimal.Decimal `json:"service_fees"`
	Other        decimal.Decimal `json:"other"`
}

// ExpenseBreakdown groups the expense side of a summary.
type ExpenseBreakdown struct {
	Total      decimal.Decimal `json:"total"`
	Refunds    decimal.Decimal `json:"refunds"`
	Commission decimal.Decimal `json:"commission"`
	Taxes      decimal.Decimal `json:"taxes"`
	Operating  decimal.Decimal `json:"operating"`
}

// ApartmentStats is the per-unit rollup inside a summary. BookingsCount is
// counted from booking records, not from transactions, so a zero-fee
// booking still counts as one booking.
type ApartmentStats struct {
	ApartmentID   string          `json:"apartment_id"`
	Title         string          `json:"title,omitempty"`
	Income        decimal.Decimal `json:"income"`
	Expenses      decimal.Decimal `json:"expenses"`
	Profit        decimal.Decimal `json:"profit"`
	BookingsCount int             `json:"bookings_count"`
}

// FinancialSummary is the aggregation result for one period. It is a pure
// function of the transaction set it was computed over, which is what makes
// freezing it at period close sound.
type FinancialSummary struct {
	Year             int              `json:"year"`
	Month            int              `json:"month"`
	Income           IncomeBreakdown  `json:"income"`
	Expenses         ExpenseBreakdown `json:"expenses"`
	NetProfit        decimal.Decimal  `json:"net_profit"`
	TransactionCount int              `json:"transaction_count"`
	ByApartment      []ApartmentStats `json:"by_apartment"`
	GeneratedAt      time.Time        `json:"generated_at"`
}

// Filter narrows List queries. Zero values mean "no constraint".
type Filter struct {
	Type        TransactionType
	Category    Category
	ApartmentID string
	BookingID   string
	From        time.Time
	To          time.Time

	Page     int
	PageSize int
}

// Patch carries the non-financial fields that may be corrected in place.
// Amount, type and existence are immutable; nil fields are left untouched.
type Patch struct {
	Description *string
	Category    *Category
	Date        *time.Time
	ApartmentID *string
	Metadata    map[string]interface{}
}

// Booking is the slice of a booking record the ledger cares about: fee
// components to synthesize entries from, and check-in/status for the
// per-apartment bookings count.
type Booking struct {
	ID                 string          `json:"id"`
	ApartmentID        string          `json:"apartment_id"`
	GuestName          string          `json:"guest_name"`
	CheckIn            time.Time       `json:"check_in"`
	CheckOut           time.Time       `json:"check_out"`
	Status             string          `json:"status"`
	BasePrice          decimal.Decimal `json:"base_price"`
	CleaningFee        decimal.Decimal `json:"cleaning_fee"`
	ServiceFee         decimal.Decimal `json:"service_fee"`
	Currency           string          `json:"currency"`
	CancellationAmount decimal.Decimal `json:"cancellation_amount"`
}

// Booking statuses that count toward a period's bookingsCount.
const (
	BookingStatusConfirmed = "CONFIRMED"
	BookingStatusCheckedIn = "CHECKED_IN"
	BookingStatusCompleted = "COMPLETED"
	BookingStatusCancelled = "CANCELLED"
)

// RevenueStatuses is the set of booking statuses that count as revenue for
// rollup purposes.
var RevenueStatuses = []string{BookingStatusConfirmed, BookingStatusCheckedIn, BookingStatusCompleted}

// Apartment is the registry entry used for labels and owner scoping.
type Apartment struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	OwnerID   string    `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
}
