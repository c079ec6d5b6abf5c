package ledger

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemStore is a mutex-guarded in-memory Store and BookingCounter. It backs
// tests and local development without a database; the period-open check and
// the append share one lock, matching the transactional guarantee of the
// SQL store.
type MemStore struct {
	mu      sync.Mutex
	entries []Transaction
	periods map[[2]int]*Period
	// Bookings maps apartment id to its revenue bookings count, returned
	// verbatim by CountBookings.
	Bookings map[string]int
	nextSeq  int64
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		periods:  make(map[[2]int]*Period),
		Bookings: make(map[string]int),
		nextSeq:  1,
	}
}

func periodKey(t time.Time) [2]int {
	return [2]int{t.Year(), int(t.Month())}
}

// period returns the row for (year, month), creating it open when missing.
// Caller holds the lock.
func (m *MemStore) period(year, month int) *Period {
	key := [2]int{year, month}
	p, ok := m.periods[key]
	if !ok {
		p = &Period{Year: year, Month: month}
		m.periods[key] = p
	}
	return p
}

func (m *MemStore) Append(ctx context.Context, t *Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := periodKey(t.Date)
	if m.period(key[0], key[1]).IsClosed {
		return &PeriodClosedError{Year: key[0], Month: key[1]}
	}

	t.Seq = m.nextSeq
	m.nextSeq++
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	m.entries = append(m.entries, *t)
	return nil
}

func (m *MemStore) Get(ctx context.Context, id string) (*Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.entries {
		if m.entries[i].ID == id {
			t := m.entries[i]
			return &t, nil
		}
	}
	return nil, &NotFoundError{Kind: "transaction", ID: id}
}

func (m *MemStore) List(ctx context.Context, f Filter) ([]Transaction, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []Transaction
	for _, t := range m.entries {
		if f.Type != "" && t.Type != f.Type {
			continue
		}
		if f.Category != "" && t.Category != f.Category {
			continue
		}
		if f.ApartmentID != "" && (t.ApartmentID == nil || *t.ApartmentID != f.ApartmentID) {
			continue
		}
		if f.BookingID != "" && (t.BookingID == nil || *t.BookingID != f.BookingID) {
			continue
		}
		if !f.From.IsZero() && t.Date.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && t.Date.After(f.To) {
			continue
		}
		matched = append(matched, t)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].Date.Equal(matched[j].Date) {
			return matched[i].Date.After(matched[j].Date)
		}
		return matched[i].Seq > matched[j].Seq
	})

	total := len(matched)
	start := (f.Page - 1) * f.PageSize
	if start >= total {
		return nil, total, nil
	}
	end := start + f.PageSize
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (m *MemStore) Patch(ctx context.Context, id string, p Patch) (*Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.entries {
		if m.entries[i].ID != id {
			continue
		}
		t := &m.entries[i]

		cur := periodKey(t.Date)
		if m.period(cur[0], cur[1]).IsClosed {
			return nil, &PeriodClosedError{Year: cur[0], Month: cur[1]}
		}
		if p.Date != nil {
			target := periodKey(*p.Date)
			if target != cur && m.period(target[0], target[1]).IsClosed {
				return nil, &PeriodClosedError{Year: target[0], Month: target[1]}
			}
			t.Date = *p.Date
		}
		if p.Description != nil {
			t.Description = *p.Description
		}
		if p.Category != nil {
			t.Category = *p.Category
		}
		if p.ApartmentID != nil {
			t.ApartmentID = p.ApartmentID
		}
		if len(p.Metadata) > 0 {
			if t.Metadata == nil {
				t.Metadata = make(map[string]interface{}, len(p.Metadata))
			}
			for k, v := range p.Metadata {
				t.Metadata[k] = v
			}
		}
		out := *t
		return &out, nil
	}
	return nil, &NotFoundError{Kind: "transaction", ID: id}
}

func (m *MemStore) Window(ctx context.Context, from, to time.Time, apartmentIDs []string) ([]Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.window(from, to, apartmentIDs), nil
}

// caller holds the lock
func (m *MemStore) window(from, to time.Time, apartmentIDs []string) []Transaction {
	var out []Transaction
	for _, t := range m.entries {
		if t.Date.Before(from) || t.Date.After(to) {
			continue
		}
		if len(apartmentIDs) > 0 {
			if t.ApartmentID == nil {
				continue
			}
			found := false
			for _, id := range apartmentIDs {
				if *t.ApartmentID == id {
					found = true
					break
				}
			}
			if !found {
				continue
			}
		}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Seq < out[j].Seq
	})
	return out
}

func (m *MemStore) Period(ctx context.Context, year, month int) (*Period, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := *m.period(year, month)
	return &p, nil
}

func (m *MemStore) ListPeriods(ctx context.Context) ([]Period, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Period, 0, len(m.periods))
	for _, p := range m.periods {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year > out[j].Year
		}
		return out[i].Month > out[j].Month
	})
	return out, nil
}

func (m *MemStore) Close(ctx context.Context, year, month int, closedBy string, summarize Summarizer) (*Period, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.period(year, month)
	if p.IsClosed {
		return nil, &AlreadyClosedError{Year: year, Month: month}
	}

	from, to := MonthWindow(year, month)
	snapshot, err := summarize(ctx, m.window(from, to, nil))
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	p.IsClosed = true
	p.ClosedAt = &now
	p.ClosedBy = &closedBy
	p.Snapshot = snapshot
	out := *p
	return &out, nil
}

func (m *MemStore) Reopen(ctx context.Context, year, month int, reopenedBy, reason string) (*Period, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.period(year, month)
	if !p.IsClosed {
		return nil, &NotClosedError{Year: year, Month: month}
	}

	// closed_at/closed_by stay on the row as the record of the last
	// close; only the closed flag and the snapshot are cleared.
	now := time.Now().UTC()
	p.IsClosed = false
	p.Snapshot = nil
	p.ReopenedAt = &now
	p.ReopenedBy = &reopenedBy
	p.ReopenReason = &reason
	out := *p
	return &out, nil
}

func (m *MemStore) CountBookings(ctx context.Context, from, to time.Time, apartmentIDs []string) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]int, len(m.Bookings))
	for id, n := range m.Bookings {
		if len(apartmentIDs) > 0 {
			found := false
			for _, want := range apartmentIDs {
				if id == want {
					found = true
					break
				}
			}
			if !found {
				continue
			}
		}
		out[id] = n
	}
	return out, nil
}

var (
	_ Store          = (*MemStore)(nil)
	_ BookingCounter = (*MemStore)(nil)
)
