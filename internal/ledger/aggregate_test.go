package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func entry(typ TransactionType, cat Category, amount string, apartmentID string) Transaction {
	t := Transaction{
		Type:     typ,
		Category: cat,
		Amount:   d(amount),
		Currency: "EUR",
		Date:     time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC),
	}
	if apartmentID != "" {
		t.ApartmentID = &apartmentID
	}
	return t
}

func assertEq(t *testing.T, name string, got, want decimal.Decimal) {
	t.Helper()
	if !got.Equal(want) {
		t.Errorf("%s = %s, want %s", name, got, want)
	}
}

func TestAggregateBuckets(t *testing.T) {
	txs := []Transaction{
		entry(TypeIncome, CategoryBooking, "1000", "apt-1"),
		entry(TypeIncome, CategoryCleaningFee, "50", "apt-1"),
		entry(TypeIncome, CategoryServiceFee, "30", "apt-1"),
		entry(TypeIncome, CategoryOther, "20", ""),
		entry(TypeExpense, CategoryMaintenance, "200", "apt-1"),
		entry(TypeRefund, CategoryCancellation, "100", "apt-1"),
		entry(TypeCommission, CategoryOther, "40", "apt-1"),
		entry(TypeTax, CategoryOther, "60", ""),
	}

	s := Aggregate(2025, 6, txs, nil)

	assertEq(t, "income.total", s.Income.Total, d("1100"))
	assertEq(t, "income.bookings", s.Income.Bookings, d("1000"))
	assertEq(t, "income.cleaning_fees", s.Income.CleaningFees, d("50"))
	assertEq(t, "income.service_fees", s.Income.ServiceFees, d("30"))
	assertEq(t, "income.other", s.Income.Other, d("20"))

	assertEq(t, "expenses.total", s.Expenses.Total, d("400"))
	assertEq(t, "expenses.refunds", s.Expenses.Refunds, d("100"))
	assertEq(t, "expenses.commission", s.Expenses.Commission, d("40"))
	assertEq(t, "expenses.taxes", s.Expenses.Taxes, d("60"))
	assertEq(t, "expenses.operating", s.Expenses.Operating, d("200"))

	assertEq(t, "net_profit", s.NetProfit, d("700"))
	if s.TransactionCount != len(txs) {
		t.Errorf("transaction_count = %d, want %d", s.TransactionCount, len(txs))
	}
}

func TestAggregateExpenseSignNormalization(t *testing.T) {
	// Expense-like amounts count toward expenses regardless of stored sign.
	txs := []Transaction{
		entry(TypeExpense, CategoryUtilities, "-75", ""),
		entry(TypeRefund, CategoryCancellation, "-25", ""),
	}
	s := Aggregate(2025, 6, txs, nil)
	assertEq(t, "expenses.total", s.Expenses.Total, d("100"))
	assertEq(t, "net_profit", s.NetProfit, d("-100"))
}

func TestAggregateAdjustmentSides(t *testing.T) {
	t.Run("income side delta moves income", func(t *testing.T) {
		txs := []Transaction{
			entry(TypeIncome, CategoryBooking, "1000", "apt-1"),
			entry(TypeAdjustment, CategoryBooking, "-150", "apt-1"),
		}
		s := Aggregate(2025, 6, txs, nil)
		assertEq(t, "income.total", s.Income.Total, d("850"))
		assertEq(t, "income.bookings", s.Income.Bookings, d("850"))
		assertEq(t, "expenses.total", s.Expenses.Total, decimal.Zero)
		assertEq(t, "net_profit", s.NetProfit, d("850"))
	})

	t.Run("expense side delta moves expenses", func(t *testing.T) {
		txs := []Transaction{
			entry(TypeExpense, CategoryMaintenance, "200", "apt-1"),
			entry(TypeAdjustment, CategoryMaintenance, "50", "apt-1"),
		}
		s := Aggregate(2025, 6, txs, nil)
		assertEq(t, "expenses.total", s.Expenses.Total, d("250"))
		assertEq(t, "expenses.operating", s.Expenses.Operating, d("250"))
		assertEq(t, "net_profit", s.NetProfit, d("-250"))
	})

	t.Run("full void zeroes the net", func(t *testing.T) {
		txs := []Transaction{
			entry(TypeIncome, CategoryBooking, "1000", "apt-1"),
			entry(TypeAdjustment, CategoryBooking, "-1000", "apt-1"),
		}
		s := Aggregate(2025, 6, txs, nil)
		assertEq(t, "net_profit", s.NetProfit, decimal.Zero)
	})
}

// Net profit must equal the algebraic sum of every entry's signed amount,
// whatever mix of types and adjustments the period holds.
func TestAggregateConservation(t *testing.T) {
	txs := []Transaction{
		entry(TypeIncome, CategoryBooking, "1234.56", "apt-1"),
		entry(TypeIncome, CategoryCleaningFee, "80", "apt-2"),
		entry(TypeExpense, CategoryAdvertising, "99.99", "apt-2"),
		entry(TypeCommission, CategoryOther, "37.04", "apt-1"),
		entry(TypeTax, CategoryOther, "120", ""),
		entry(TypeRefund, CategoryCancellation, "200", "apt-1"),
		entry(TypeAdjustment, CategoryBooking, "-34.56", "apt-1"),
		entry(TypeAdjustment, CategoryMaintenance, "15", "apt-2"),
	}

	var signed decimal.Decimal
	for i := range txs {
		signed = signed.Add(txs[i].SignedAmount())
	}

	s := Aggregate(2025, 6, txs, nil)
	assertEq(t, "net_profit vs signed sum", s.NetProfit, signed)
}

func TestAggregatePerApartment(t *testing.T) {
	txs := []Transaction{
		entry(TypeIncome, CategoryBooking, "1000", "apt-1"),
		entry(TypeExpense, CategoryMaintenance, "300", "apt-1"),
		entry(TypeIncome, CategoryBooking, "900", "apt-2"),
		entry(TypeIncome, CategoryBooking, "500", "apt-3"),
		entry(TypeExpense, CategoryUtilities, "100", ""),
	}
	counts := map[string]int{"apt-1": 2, "apt-2": 1, "apt-4": 1}

	s := Aggregate(2025, 6, txs, counts)

	if len(s.ByApartment) != 4 {
		t.Fatalf("by_apartment has %d entries, want 4", len(s.ByApartment))
	}
	// Sorted by profit descending, apartment id ascending on ties.
	wantOrder := []string{"apt-2", "apt-1", "apt-3", "apt-4"}
	for i, want := range wantOrder {
		if s.ByApartment[i].ApartmentID != want {
			t.Fatalf("by_apartment[%d] = %s, want %s", i, s.ByApartment[i].ApartmentID, want)
		}
	}

	apt1 := s.ByApartment[1]
	assertEq(t, "apt-1 income", apt1.Income, d("1000"))
	assertEq(t, "apt-1 expenses", apt1.Expenses, d("300"))
	assertEq(t, "apt-1 profit", apt1.Profit, d("700"))
	if apt1.BookingsCount != 2 {
		t.Errorf("apt-1 bookings_count = %d, want 2", apt1.BookingsCount)
	}

	// apt-4 has bookings but no money movement this period.
	apt4 := s.ByApartment[3]
	assertEq(t, "apt-4 profit", apt4.Profit, decimal.Zero)
	if apt4.BookingsCount != 1 {
		t.Errorf("apt-4 bookings_count = %d, want 1", apt4.BookingsCount)
	}

	// The unattributed utilities entry still counts globally.
	assertEq(t, "expenses.total", s.Expenses.Total, d("400"))
}

func TestAggregateEmpty(t *testing.T) {
	s := Aggregate(2025, 6, nil, nil)
	assertEq(t, "net_profit", s.NetProfit, decimal.Zero)
	if s.TransactionCount != 0 {
		t.Errorf("transaction_count = %d, want 0", s.TransactionCount)
	}
	if len(s.ByApartment) != 0 {
		t.Errorf("by_apartment has %d entries, want 0", len(s.ByApartment))
	}
}
