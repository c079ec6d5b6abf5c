// Package export renders transaction sets for downstream consumers: a
// spreadsheet-compatible delimited text format and a structured report.
package export

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"rental-ledger/internal/ledger"
)

// The delimited format is fixed by its spreadsheet consumers and must not
// be "fixed" to look more conventional: UTF-8 byte-order mark up front,
// semicolon field separator, CRLF row separator, and a decimal comma in
// numeric fields.
const (
	bom       = "\uFEFF"
	separator = ";"
	rowEnd    = "\r\n"

	dateLayout = "02.01.2006"
)

var header = []string{
	"Date", "Type", "Category", "Description", "Amount", "Currency",
	"Apartment", "Booking", "Reference", "Created By",
}

// LabelSource resolves foreign ids to human-readable labels in batches;
// one call per export, never one per row.
type LabelSource interface {
	ApartmentTitles(ctx context.Context, ids []string) (map[string]string, error)
	BookingRefs(ctx context.Context, ids []string) (map[string]string, error)
}

// Exporter renders ledger data for external consumption.
type Exporter struct {
	svc    *ledger.Service
	labels LabelSource
}

// NewExporter creates an exporter over the ledger service.
func NewExporter(svc *ledger.Service, labels LabelSource) *Exporter {
	return &Exporter{svc: svc, labels: labels}
}

// FormatAmount renders a decimal with two places and a decimal comma.
func FormatAmount(d decimal.Decimal) string {
	return strings.Replace(d.StringFixed(2), ".", ",", 1)
}

// escapeField wraps fields containing the separator, quotes or line breaks
// in quotes, doubling internal quotes.
func escapeField(s string) string {
	if !strings.ContainsAny(s, separator+`"`+"\r\n") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// resolveLabels batch-resolves apartment and booking labels for a
// transaction set.
func (e *Exporter) resolveLabels(ctx context.Context, txs []ledger.Transaction) (map[string]string, map[string]string, error) {
	apartmentSet := map[string]struct{}{}
	bookingSet := map[string]struct{}{}
	for i := range txs {
		if txs[i].ApartmentID != nil && *txs[i].ApartmentID != "" {
			apartmentSet[*txs[i].ApartmentID] = struct{}{}
		}
		if txs[i].BookingID != nil && *txs[i].BookingID != "" {
			bookingSet[*txs[i].BookingID] = struct{}{}
		}
	}
	apartmentIDs := make([]string, 0, len(apartmentSet))
	for id := range apartmentSet {
		apartmentIDs = append(apartmentIDs, id)
	}
	bookingIDs := make([]string, 0, len(bookingSet))
	for id := range bookingSet {
		bookingIDs = append(bookingIDs, id)
	}

	apartments, err := e.labels.ApartmentTitles(ctx, apartmentIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve apartment labels: %w", err)
	}
	bookings, err := e.labels.BookingRefs(ctx, bookingIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve booking labels: %w", err)
	}
	return apartments, bookings, nil
}

// DelimitedText renders a transaction set as delimited text, one row per
// entry plus a header row.
func (e *Exporter) DelimitedText(ctx context.Context, txs []ledger.Transaction) (string, error) {
	apartments, bookings, err := e.resolveLabels(ctx, txs)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(bom)
	b.WriteString(strings.Join(header, separator))
	b.WriteString(rowEnd)

	for i := range txs {
		t := &txs[i]
		apartment := ""
		if t.ApartmentID != nil {
			apartment = apartments[*t.ApartmentID]
		}
		booking := ""
		if t.BookingID != nil {
			booking = bookings[*t.BookingID]
		}
		reference := ""
		if t.Reference != nil {
			reference = *t.Reference
		}
		fields := []string{
			t.Date.Format(dateLayout),
			string(t.Type),
			string(t.Category),
			t.Description,
			FormatAmount(t.Amount),
			t.Currency,
			apartment,
			booking,
			reference,
			t.CreatedBy,
		}
		for j, f := range fields {
			fields[j] = escapeField(f)
		}
		b.WriteString(strings.Join(fields, separator))
		b.WriteString(rowEnd)
	}
	return b.String(), nil
}

// CSV exports every entry in a date range, optionally scoped to a set of
// apartments.
func (e *Exporter) CSV(ctx context.Context, from, to time.Time, apartmentIDs []string) (string, error) {
	txs, err := e.svc.WindowTransactions(ctx, from, to, apartmentIDs)
	if err != nil {
		return "", fmt.Errorf("failed to load export window: %w", err)
	}
	return e.DelimitedText(ctx, txs)
}
