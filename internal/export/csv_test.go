package export

import (
	"context"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"rental-ledger/internal/ledger"
	"rental-ledger/internal/logging"
)

type fakeLabels struct {
	apartments map[string]string
	bookings   map[string]string
}

func (f *fakeLabels) ApartmentTitles(ctx context.Context, ids []string) (map[string]string, error) {
	out := make(map[string]string)
	for _, id := range ids {
		if title, ok := f.apartments[id]; ok {
			out[id] = title
		}
	}
	return out, nil
}

func (f *fakeLabels) BookingRefs(ctx context.Context, ids []string) (map[string]string, error) {
	out := make(map[string]string)
	for _, id := range ids {
		if ref, ok := f.bookings[id]; ok {
			out[id] = ref
		}
	}
	return out, nil
}

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func newTestExporter(t *testing.T) (*Exporter, *ledger.Service, *fakeLabels) {
	t.Helper()
	store := ledger.NewMemStore()
	svc := ledger.NewService(store, store, ledger.ServiceConfig{}, logging.Nop())
	labels := &fakeLabels{
		apartments: map[string]string{"apt-1": "Seaside Loft"},
		bookings:   map[string]string{"bk-1": "A. Guest, 2025-07-01"},
	}
	return NewExporter(svc, labels), svc, labels
}

func TestFormatAmount(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"1234.5", "1234,50"},
		{"-7", "-7,00"},
		{"0", "0,00"},
		{"19.999", "20,00"},
	}
	for _, tc := range cases {
		if got := FormatAmount(d(tc.in)); got != tc.want {
			t.Errorf("FormatAmount(%s) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestEscapeField(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"has;separator", `"has;separator"`},
		{`she said "hi"`, `"she said ""hi"""`},
		{"line\nbreak", "\"line\nbreak\""},
	}
	for _, tc := range cases {
		if got := escapeField(tc.in); got != tc.want {
			t.Errorf("escapeField(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestDelimitedText(t *testing.T) {
	exp, svc, _ := newTestExporter(t)
	ctx := context.Background()

	apt, bk := "apt-1", "bk-1"
	if _, err := svc.CreateTransaction(ctx, ledger.CreateTransactionInput{
		Type:        ledger.TypeIncome,
		Category:    ledger.CategoryBooking,
		Amount:      d("840.5"),
		Description: "week stay; late check-out",
		Date:        time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
		ApartmentID: &apt,
		BookingID:   &bk,
	}, "importer"); err != nil {
		t.Fatalf("create: %v", err)
	}

	txs, err := svc.WindowTransactions(ctx, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, 7, 31, 0, 0, 0, 0, time.UTC), nil)
	if err != nil {
		t.Fatalf("window: %v", err)
	}
	out, err := exp.DelimitedText(ctx, txs)
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	if !strings.HasPrefix(out, "\uFEFF") {
		t.Error("output must start with a UTF-8 BOM")
	}
	if !strings.Contains(out, "\r\n") {
		t.Error("rows must end with CRLF")
	}

	lines := strings.Split(strings.TrimSuffix(strings.TrimPrefix(out, "\uFEFF"), "\r\n"), "\r\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want header plus one row", len(lines))
	}
	if !strings.HasPrefix(lines[0], "Date;Type;Category") {
		t.Errorf("unexpected header: %q", lines[0])
	}

	row := lines[1]
	if !strings.Contains(row, "01.07.2025") {
		t.Errorf("date not rendered day-first: %q", row)
	}
	if !strings.Contains(row, "840,50") {
		t.Errorf("amount not rendered with decimal comma: %q", row)
	}
	if !strings.Contains(row, `"week stay; late check-out"`) {
		t.Errorf("separator inside description must force quoting: %q", row)
	}
	if !strings.Contains(row, "Seaside Loft") {
		t.Errorf("apartment id not resolved to title: %q", row)
	}
	if !strings.Contains(row, "A. Guest, 2025-07-01") {
		t.Errorf("booking id not resolved to label: %q", row)
	}
}

// A standard CSV reader configured for the dialect must recover the exact
// field values, quoting and escaping included.
func TestDelimitedTextRoundTrip(t *testing.T) {
	exp, svc, _ := newTestExporter(t)
	ctx := context.Background()

	desc := `tricky; "quoted" and
multi-line`
	if _, err := svc.CreateTransaction(ctx, ledger.CreateTransactionInput{
		Type:        ledger.TypeExpense,
		Category:    ledger.CategoryMaintenance,
		Amount:      d("99.9"),
		Description: desc,
		Date:        time.Date(2025, 7, 5, 0, 0, 0, 0, time.UTC),
	}, "tester"); err != nil {
		t.Fatalf("create: %v", err)
	}

	txs, err := svc.WindowTransactions(ctx, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, 7, 31, 0, 0, 0, 0, time.UTC), nil)
	if err != nil {
		t.Fatalf("window: %v", err)
	}
	out, err := exp.DelimitedText(ctx, txs)
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	r := csv.NewReader(strings.NewReader(strings.TrimPrefix(out, "\uFEFF")))
	r.Comma = ';'
	records, err := r.ReadAll()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	got := records[1]
	if got[3] != desc {
		t.Errorf("description did not round-trip: %q", got[3])
	}
	if got[4] != "99,90" {
		t.Errorf("amount = %q, want 99,90", got[4])
	}
}

func TestCSVWindow(t *testing.T) {
	exp, svc, _ := newTestExporter(t)
	ctx := context.Background()

	apt1, apt2 := "apt-1", "apt-2"
	for _, in := range []ledger.CreateTransactionInput{
		{Type: ledger.TypeIncome, Amount: d("100"), Description: "in range", Date: time.Date(2025, 7, 10, 0, 0, 0, 0, time.UTC), ApartmentID: &apt1},
		{Type: ledger.TypeIncome, Amount: d("200"), Description: "other apartment", Date: time.Date(2025, 7, 12, 0, 0, 0, 0, time.UTC), ApartmentID: &apt2},
		{Type: ledger.TypeIncome, Amount: d("300"), Description: "out of range", Date: time.Date(2025, 8, 2, 0, 0, 0, 0, time.UTC), ApartmentID: &apt1},
	} {
		if _, err := svc.CreateTransaction(ctx, in, "tester"); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	from := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 7, 31, 23, 59, 59, 0, time.UTC)

	out, err := exp.CSV(ctx, from, to, []string{apt1})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.Contains(out, "in range") {
		t.Error("scoped entry missing from export")
	}
	if strings.Contains(out, "other apartment") || strings.Contains(out, "out of range") {
		t.Error("export leaked entries outside the scope or window")
	}
}

func TestReport(t *testing.T) {
	exp, svc, _ := newTestExporter(t)
	ctx := context.Background()

	apt, bk := "apt-1", "bk-1"
	if _, err := svc.CreateTransaction(ctx, ledger.CreateTransactionInput{
		Type:        ledger.TypeIncome,
		Category:    ledger.CategoryBooking,
		Amount:      d("500"),
		Description: "july booking",
		Date:        time.Date(2025, 7, 3, 0, 0, 0, 0, time.UTC),
		ApartmentID: &apt,
		BookingID:   &bk,
	}, "importer"); err != nil {
		t.Fatalf("create: %v", err)
	}

	report, err := exp.Report(ctx, 2025, 7)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if report.Summary == nil || !report.Summary.Income.Total.Equal(d("500")) {
		t.Fatalf("summary income wrong: %+v", report.Summary)
	}
	if len(report.Transactions) != 1 {
		t.Fatalf("got %d rows, want 1", len(report.Transactions))
	}
	row := report.Transactions[0]
	if row.ApartmentTitle != "Seaside Loft" {
		t.Errorf("apartment_title = %q", row.ApartmentTitle)
	}
	if row.BookingLabel != "A. Guest, 2025-07-01" {
		t.Errorf("booking_label = %q", row.BookingLabel)
	}
	if row.Date != "03.07.2025" {
		t.Errorf("date = %q, want 03.07.2025", row.Date)
	}
}
