package export

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"rental-ledger/internal/ledger"
)

// Row is one transaction with its foreign ids resolved to labels.
type Row struct {
	ID             string                 `json:"id"`
	Type           ledger.TransactionType `json:"type"`
	Category       ledger.Category        `json:"category"`
	Amount         decimal.Decimal        `json:"amount"`
	Currency       string                 `json:"currency"`
	Description    string                 `json:"description"`
	Date           string                 `json:"date"`
	ApartmentTitle string                 `json:"apartment_title,omitempty"`
	BookingLabel   string                 `json:"booking_label,omitempty"`
	Reference      string                 `json:"reference,omitempty"`
	CreatedBy      string                 `json:"created_by"`
}

// Report is the structured report object for one period.
type Report struct {
	Summary      *ledger.FinancialSummary `json:"summary"`
	Transactions []Row                    `json:"transactions"`
}

// Report builds the structured report of one period: the live summary plus
// every entry dated in the period with labels resolved.
func (e *Exporter) Report(ctx context.Context, year, month int) (*Report, error) {
	summary, err := e.svc.Summarize(ctx, year, month, nil)
	if err != nil {
		return nil, err
	}

	from, to := ledger.MonthWindow(year, month)
	txs, err := e.svc.WindowTransactions(ctx, from, to, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load report window: %w", err)
	}
	apartments, bookings, err := e.resolveLabels(ctx, txs)
	if err != nil {
		return nil, err
	}

	rows := make([]Row, 0, len(txs))
	for i := range txs {
		t := &txs[i]
		row := Row{
			ID:          t.ID,
			Type:        t.Type,
			Category:    t.Category,
			Amount:      t.Amount,
			Currency:    t.Currency,
			Description: t.Description,
			Date:        t.Date.Format(dateLayout),
			CreatedBy:   t.CreatedBy,
		}
		if t.ApartmentID != nil {
			row.ApartmentTitle = apartments[*t.ApartmentID]
		}
		if t.BookingID != nil {
			row.BookingLabel = bookings[*t.BookingID]
		}
		if t.Reference != nil {
			row.Reference = *t.Reference
		}
		rows = append(rows, row)
	}

	return &Report{Summary: summary, Transactions: rows}, nil
}
