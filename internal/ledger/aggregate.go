package ledger

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Aggregate folds a transaction set into a FinancialSummary. It is a pure
// function of its inputs: same entries and counts in, same summary out.
//
// Income accumulates INCOME entries into category buckets. Expenses
// accumulate the absolute value of EXPENSE, REFUND, COMMISSION and TAX
// entries. ADJUSTMENT deltas are folded into the side of the category they
// adjust, so netProfit computed as income.total - expenses.total equals the
// algebraic sum of every entry's SignedAmount.
func Aggregate(year, month int, txs []Transaction, bookingCounts map[string]int) *FinancialSummary {
	s := &FinancialSummary{
		Year:             year,
		Month:            month,
		TransactionCount: len(txs),
		GeneratedAt:      time.Now().UTC(),
	}

	perApartment := make(map[string]*ApartmentStats)
	unit := func(id string) *ApartmentStats {
		st, ok := perApartment[id]
		if !ok {
			st = &ApartmentStats{ApartmentID: id}
			perApartment[id] = st
		}
		return st
	}

	for i := range txs {
		t := &txs[i]
		var incomeDelta, expenseDelta decimal.Decimal

		switch t.Type {
		case TypeIncome:
			incomeDelta = t.Amount
			s.Income.Total = s.Income.Total.Add(incomeDelta)
			switch t.Category {
			case CategoryBooking:
				s.Income.Bookings = s.Income.Bookings.Add(incomeDelta)
			case CategoryCleaningFee:
				s.Income.CleaningFees = s.Income.CleaningFees.Add(incomeDelta)
			case CategoryServiceFee:
				s.Income.ServiceFees = s.Income.ServiceFees.Add(incomeDelta)
			default:
				s.Income.Other = s.Income.Other.Add(incomeDelta)
			}

		case TypeAdjustment:
			// Deltas carry their own sign; they land on the side of
			// the category they adjust.
			if incomeSide(t.Category) {
				incomeDelta = t.Amount
				s.Income.Total = s.Income.Total.Add(incomeDelta)
				switch t.Category {
				case CategoryBooking:
					s.Income.Bookings = s.Income.Bookings.Add(incomeDelta)
				case CategoryCleaningFee:
					s.Income.CleaningFees = s.Income.CleaningFees.Add(incomeDelta)
				case CategoryServiceFee:
					s.Income.ServiceFees = s.Income.ServiceFees.Add(incomeDelta)
				default:
					s.Income.Other = s.Income.Other.Add(incomeDelta)
				}
			} else {
				expenseDelta = t.Amount
				s.Expenses.Total = s.Expenses.Total.Add(expenseDelta)
				s.Expenses.Operating = s.Expenses.Operating.Add(expenseDelta)
			}

		case TypeRefund:
			expenseDelta = t.Amount.Abs()
			s.Expenses.Total = s.Expenses.Total.Add(expenseDelta)
			s.Expenses.Refunds = s.Expenses.Refunds.Add(expenseDelta)

		case TypeCommission:
			expenseDelta = t.Amount.Abs()
			s.Expenses.Total = s.Expenses.Total.Add(expenseDelta)
			s.Expenses.Commission = s.Expenses.Commission.Add(expenseDelta)

		case TypeTax:
			expenseDelta = t.Amount.Abs()
			s.Expenses.Total = s.Expenses.Total.Add(expenseDelta)
			s.Expenses.Taxes = s.Expenses.Taxes.Add(expenseDelta)

		default: // TypeExpense
			expenseDelta = t.Amount.Abs()
			s.Expenses.Total = s.Expenses.Total.Add(expenseDelta)
			s.Expenses.Operating = s.Expenses.Operating.Add(expenseDelta)
		}

		if t.ApartmentID != nil && *t.ApartmentID != "" {
			st := unit(*t.ApartmentID)
			st.Income = st.Income.Add(incomeDelta)
			st.Expenses = st.Expenses.Add(expenseDelta)
		}
	}

	for id, n := range bookingCounts {
		unit(id).BookingsCount = n
	}

	s.NetProfit = s.Income.Total.Sub(s.Expenses.Total)

	s.ByApartment = make([]ApartmentStats, 0, len(perApartment))
	for _, st := range perApartment {
		st.Profit = st.Income.Sub(st.Expenses)
		s.ByApartment = append(s.ByApartment, *st)
	}
	sort.Slice(s.ByApartment, func(i, j int) bool {
		a, b := &s.ByApartment[i], &s.ByApartment[j]
		if !a.Profit.Equal(b.Profit) {
			return a.Profit.GreaterThan(b.Profit)
		}
		return a.ApartmentID < b.ApartmentID
	})

	return s
}
