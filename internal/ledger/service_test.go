package ledger

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"rental-ledger/internal/logging"
)

func newTestService(t *testing.T) (*Service, *MemStore) {
	t.Helper()
	store := NewMemStore()
	svc := NewService(store, store, ServiceConfig{}, logging.Nop())
	return svc, store
}

func TestCreateTransaction(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	t.Run("applies defaults", func(t *testing.T) {
		tx, err := svc.CreateTransaction(ctx, CreateTransactionInput{
			Type:        TypeIncome,
			Amount:      d("100"),
			Description: "  walk-in payment  ",
		}, "tester")
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if tx.Category != CategoryOther {
			t.Errorf("category = %s, want OTHER", tx.Category)
		}
		if tx.Currency != "EUR" {
			t.Errorf("currency = %s, want EUR", tx.Currency)
		}
		if tx.Date.IsZero() {
			t.Error("date was not defaulted")
		}
		if tx.Description != "walk-in payment" {
			t.Errorf("description = %q, not trimmed", tx.Description)
		}
		if tx.CreatedBy != "tester" {
			t.Errorf("created_by = %q, want tester", tx.CreatedBy)
		}
		if tx.Seq == 0 {
			t.Error("seq was not assigned")
		}
	})

	t.Run("rejects empty description", func(t *testing.T) {
		_, err := svc.CreateTransaction(ctx, CreateTransactionInput{
			Type:        TypeIncome,
			Amount:      d("10"),
			Description: "   ",
		}, "tester")
		if !IsValidation(err) {
			t.Fatalf("err = %v, want validation error", err)
		}
	})

	t.Run("rejects unknown type", func(t *testing.T) {
		_, err := svc.CreateTransaction(ctx, CreateTransactionInput{
			Type:        "TRANSFER",
			Amount:      d("10"),
			Description: "bad type",
		}, "tester")
		if !IsValidation(err) {
			t.Fatalf("err = %v, want validation error", err)
		}
	})
}

func TestCreateInClosedPeriod(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.ClosePeriod(ctx, 2025, 5, "admin"); err != nil {
		t.Fatalf("close: %v", err)
	}
	_, err := svc.CreateTransaction(ctx, CreateTransactionInput{
		Type:        TypeIncome,
		Amount:      d("100"),
		Description: "late entry",
		Date:        time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC),
	}, "tester")
	if !IsPeriodClosed(err) {
		t.Fatalf("err = %v, want period closed", err)
	}
	if !strings.Contains(err.Error(), "reopen") {
		t.Errorf("error message should point at reopen, got %q", err.Error())
	}
}

func TestAdjust(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	date := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)

	orig, err := svc.CreateTransaction(ctx, CreateTransactionInput{
		Type:        TypeIncome,
		Category:    CategoryBooking,
		Amount:      d("1000"),
		Description: "booking revenue",
		Date:        date,
	}, "tester")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	adj, err := svc.Adjust(ctx, orig.ID, "guest got a discount", d("850"), "tester")
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if adj.Type != TypeAdjustment {
		t.Errorf("type = %s, want ADJUSTMENT", adj.Type)
	}
	if !adj.Amount.Equal(d("-150")) {
		t.Errorf("delta = %s, want -150", adj.Amount)
	}
	if adj.Category != orig.Category {
		t.Errorf("category = %s, want %s", adj.Category, orig.Category)
	}
	if adj.Reference == nil || *adj.Reference != orig.ID {
		t.Error("adjustment does not reference the original")
	}
	if !adj.Date.Equal(orig.Date) {
		t.Error("adjustment not anchored to the original's date")
	}
	if adj.Metadata["original_amount"] != "1000" {
		t.Errorf("metadata original_amount = %v", adj.Metadata["original_amount"])
	}
	if adj.Metadata["new_amount"] != "850" {
		t.Errorf("metadata new_amount = %v", adj.Metadata["new_amount"])
	}

	// The original row is never rewritten.
	got, err := svc.GetTransaction(ctx, orig.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Amount.Equal(d("1000")) {
		t.Errorf("original amount = %s, must stay 1000", got.Amount)
	}

	t.Run("adjustment of adjustment is rejected", func(t *testing.T) {
		if _, err := svc.Adjust(ctx, adj.ID, "second thoughts", d("0"), "tester"); !IsValidation(err) {
			t.Fatalf("err = %v, want validation error", err)
		}
	})

	t.Run("reason is required", func(t *testing.T) {
		if _, err := svc.Adjust(ctx, orig.ID, "  ", d("900"), "tester"); !IsValidation(err) {
			t.Fatalf("err = %v, want validation error", err)
		}
	})

	t.Run("missing original", func(t *testing.T) {
		if _, err := svc.Adjust(ctx, "no-such-id", "whatever", d("1"), "tester"); !IsNotFound(err) {
			t.Fatalf("err = %v, want not found", err)
		}
	})
}

func TestVoid(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	orig, err := svc.CreateTransaction(ctx, CreateTransactionInput{
		Type:        TypeExpense,
		Category:    CategoryMaintenance,
		Amount:      d("250"),
		Description: "plumber visit",
		Date:        time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC),
	}, "tester")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	v, err := svc.Void(ctx, orig.ID, "duplicate entry", "tester")
	if err != nil {
		t.Fatalf("void: %v", err)
	}
	if !v.Amount.Equal(d("-250")) {
		t.Errorf("void delta = %s, want -250", v.Amount)
	}
	if v.Metadata["voided"] != true {
		t.Error("metadata voided flag missing")
	}

	// Advisory marker lands on the original.
	got, err := svc.GetTransaction(ctx, orig.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Metadata["voided_by"] != v.ID {
		t.Errorf("voided_by = %v, want %s", got.Metadata["voided_by"], v.ID)
	}

	// Net effect is zero.
	s, err := svc.Summarize(ctx, 2025, 6, nil)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if !s.NetProfit.Equal(decimal.Zero) {
		t.Errorf("net_profit = %s, want 0 after void", s.NetProfit)
	}
}

func TestPatchTransaction(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	orig, err := svc.CreateTransaction(ctx, CreateTransactionInput{
		Type:        TypeIncome,
		Category:    CategoryBooking,
		Amount:      d("300"),
		Description: "original",
		Date:        time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}, "tester")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	t.Run("corrects non-financial fields", func(t *testing.T) {
		desc := "corrected description"
		cat := CategoryOther
		got, err := svc.PatchTransaction(ctx, orig.ID, Patch{Description: &desc, Category: &cat})
		if err != nil {
			t.Fatalf("patch: %v", err)
		}
		if got.Description != desc || got.Category != cat {
			t.Errorf("patch not applied: %+v", got)
		}
		if !got.Amount.Equal(orig.Amount) {
			t.Error("amount must not change on patch")
		}
	})

	t.Run("rejects empty description", func(t *testing.T) {
		empty := " "
		if _, err := svc.PatchTransaction(ctx, orig.ID, Patch{Description: &empty}); !IsValidation(err) {
			t.Fatalf("err = %v, want validation error", err)
		}
	})

	t.Run("cannot move date into a closed period", func(t *testing.T) {
		if _, err := svc.ClosePeriod(ctx, 2025, 4, "admin"); err != nil {
			t.Fatalf("close: %v", err)
		}
		target := time.Date(2025, 4, 15, 0, 0, 0, 0, time.UTC)
		if _, err := svc.PatchTransaction(ctx, orig.ID, Patch{Date: &target}); !IsPeriodClosed(err) {
			t.Fatalf("err = %v, want period closed", err)
		}
	})
}

func TestClosedPeriodLifecycle(t *testing.T) {
	// The store doubles as the booking counter, the same wiring main
	// uses: closing must work when both sides share one backend.
	svc, store := newTestService(t)
	ctx := context.Background()

	apt := "apt-1"
	if _, err := svc.CreateTransaction(ctx, CreateTransactionInput{
		Type:        TypeIncome,
		Category:    CategoryBooking,
		Amount:      d("500"),
		Description: "june booking",
		Date:        time.Date(2025, 6, 12, 0, 0, 0, 0, time.UTC),
		ApartmentID: &apt,
	}, "tester"); err != nil {
		t.Fatalf("create: %v", err)
	}
	store.Bookings[apt] = 1

	p, err := svc.ClosePeriod(ctx, 2025, 6, "admin")
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if !p.IsClosed || p.Snapshot == nil {
		t.Fatal("closed period must carry a snapshot")
	}
	if !p.Snapshot.Income.Total.Equal(d("500")) {
		t.Errorf("snapshot income = %s, want 500", p.Snapshot.Income.Total)
	}
	if len(p.Snapshot.ByApartment) != 1 || p.Snapshot.ByApartment[0].BookingsCount != 1 {
		t.Errorf("snapshot missing booking counts: %+v", p.Snapshot.ByApartment)
	}
	if p.ClosedBy == nil || *p.ClosedBy != "admin" {
		t.Error("closed_by not recorded")
	}

	t.Run("double close fails", func(t *testing.T) {
		_, err := svc.ClosePeriod(ctx, 2025, 6, "admin")
		var already *AlreadyClosedError
		if !errors.As(err, &already) {
			t.Fatalf("err = %v, want already closed", err)
		}
	})

	t.Run("reopen requires a reason", func(t *testing.T) {
		if _, err := svc.ReopenPeriod(ctx, 2025, 6, "admin", ""); !IsValidation(err) {
			t.Fatalf("err = %v, want validation error", err)
		}
	})

	t.Run("reopen clears the snapshot", func(t *testing.T) {
		p, err := svc.ReopenPeriod(ctx, 2025, 6, "admin", "forgot the utility bill")
		if err != nil {
			t.Fatalf("reopen: %v", err)
		}
		if p.IsClosed || p.Snapshot != nil {
			t.Fatal("reopened period must be open with no snapshot")
		}
		if p.ReopenReason == nil || *p.ReopenReason != "forgot the utility bill" {
			t.Error("reopen reason not recorded")
		}
		// The last close stays on the row for the audit trail.
		if p.ClosedAt == nil || p.ClosedBy == nil || *p.ClosedBy != "admin" {
			t.Error("reopen must retain closed_at/closed_by")
		}

		// Entries are accepted again.
		if _, err := svc.CreateTransaction(ctx, CreateTransactionInput{
			Type:        TypeExpense,
			Category:    CategoryUtilities,
			Amount:      d("90"),
			Description: "utility bill",
			Date:        time.Date(2025, 6, 28, 0, 0, 0, 0, time.UTC),
		}, "tester"); err != nil {
			t.Fatalf("create after reopen: %v", err)
		}
	})

	t.Run("reopen of open period fails", func(t *testing.T) {
		_, err := svc.ReopenPeriod(ctx, 2025, 7, "admin", "nothing to reopen")
		var notClosed *NotClosedError
		if !errors.As(err, &notClosed) {
			t.Fatalf("err = %v, want not closed", err)
		}
	})
}

func TestSummarizeScoping(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	date := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)

	apt1, apt2 := "apt-1", "apt-2"
	for _, in := range []CreateTransactionInput{
		{Type: TypeIncome, Category: CategoryBooking, Amount: d("1000"), Description: "a", Date: date, ApartmentID: &apt1},
		{Type: TypeIncome, Category: CategoryBooking, Amount: d("700"), Description: "b", Date: date, ApartmentID: &apt2},
		{Type: TypeExpense, Category: CategoryMaintenance, Amount: d("100"), Description: "c", Date: date, ApartmentID: &apt1},
	} {
		if _, err := svc.CreateTransaction(ctx, in, "tester"); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	store.Bookings[apt1] = 1
	store.Bookings[apt2] = 1

	t.Run("unscoped", func(t *testing.T) {
		s, err := svc.Summarize(ctx, 2025, 6, nil)
		if err != nil {
			t.Fatalf("summarize: %v", err)
		}
		if !s.NetProfit.Equal(d("1600")) {
			t.Errorf("net_profit = %s, want 1600", s.NetProfit)
		}
	})

	t.Run("scoped to one apartment", func(t *testing.T) {
		s, err := svc.Summarize(ctx, 2025, 6, []string{apt1})
		if err != nil {
			t.Fatalf("summarize: %v", err)
		}
		if !s.NetProfit.Equal(d("900")) {
			t.Errorf("net_profit = %s, want 900", s.NetProfit)
		}
		if len(s.ByApartment) != 1 || s.ByApartment[0].ApartmentID != apt1 {
			t.Errorf("by_apartment = %+v, want only %s", s.ByApartment, apt1)
		}
	})

	t.Run("month out of range", func(t *testing.T) {
		if _, err := svc.Summarize(ctx, 2025, 13, nil); !IsValidation(err) {
			t.Fatalf("err = %v, want validation error", err)
		}
	})
}

func TestListTransactionsPaging(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		date := time.Date(2025, 6, 1+i, 0, 0, 0, 0, time.UTC)
		if _, err := svc.CreateTransaction(ctx, CreateTransactionInput{
			Type:        TypeIncome,
			Amount:      d("10"),
			Description: "entry",
			Date:        date,
		}, "tester"); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	txs, total, err := svc.ListTransactions(ctx, Filter{Page: 2, PageSize: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 5 {
		t.Errorf("total = %d, want 5", total)
	}
	if len(txs) != 2 {
		t.Fatalf("page has %d entries, want 2", len(txs))
	}
	// Newest first: page 2 of size 2 holds days 3 and 2.
	if txs[0].Date.Day() != 3 || txs[1].Date.Day() != 2 {
		t.Errorf("unexpected page order: %v, %v", txs[0].Date, txs[1].Date)
	}

	t.Run("page size is clamped", func(t *testing.T) {
		txs, _, err := svc.ListTransactions(ctx, Filter{Page: 1, PageSize: 10000})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(txs) != 5 {
			t.Errorf("got %d entries, want all 5", len(txs))
		}
	})
}

func TestRecordBooking(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	b := Booking{
		ID:          "bk-1",
		ApartmentID: "apt-1",
		GuestName:   "A. Guest",
		CheckIn:     time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
		CheckOut:    time.Date(2025, 7, 8, 0, 0, 0, 0, time.UTC),
		Status:      BookingStatusConfirmed,
		BasePrice:   d("840"),
		CleaningFee: d("60"),
		Currency:    "EUR",
	}

	txs, err := svc.RecordBooking(ctx, b, "importer")
	if err != nil {
		t.Fatalf("record booking: %v", err)
	}
	// Zero service fee produces no entry.
	if len(txs) != 2 {
		t.Fatalf("got %d entries, want 2", len(txs))
	}
	for _, tx := range txs {
		if tx.Type != TypeIncome {
			t.Errorf("type = %s, want INCOME", tx.Type)
		}
		if !tx.Date.Equal(b.CheckIn) {
			t.Error("entries must be dated at check-in")
		}
		if tx.BookingID == nil || *tx.BookingID != b.ID {
			t.Error("entries must reference the booking")
		}
	}
	if txs[0].Category != CategoryBooking || !txs[0].Amount.Equal(d("840")) {
		t.Errorf("base price entry wrong: %s %s", txs[0].Category, txs[0].Amount)
	}
	if txs[1].Category != CategoryCleaningFee || !txs[1].Amount.Equal(d("60")) {
		t.Errorf("cleaning fee entry wrong: %s %s", txs[1].Category, txs[1].Amount)
	}
}

func TestRecordCancellation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	b := Booking{
		ID:                 "bk-2",
		ApartmentID:        "apt-1",
		CheckIn:            time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
		Status:             BookingStatusCancelled,
		CancellationAmount: d("-420"),
		Currency:           "EUR",
	}

	tx, err := svc.RecordCancellation(ctx, b, "importer")
	if err != nil {
		t.Fatalf("record cancellation: %v", err)
	}
	if tx.Type != TypeRefund || tx.Category != CategoryCancellation {
		t.Errorf("got %s/%s, want REFUND/CANCELLATION", tx.Type, tx.Category)
	}
	// Stored magnitude is normalized.
	if !tx.Amount.Equal(d("420")) {
		t.Errorf("amount = %s, want 420", tx.Amount)
	}

	t.Run("zero amount rejected", func(t *testing.T) {
		b.CancellationAmount = decimal.Zero
		if _, err := svc.RecordCancellation(ctx, b, "importer"); !IsValidation(err) {
			t.Fatalf("err = %v, want validation error", err)
		}
	})
}
