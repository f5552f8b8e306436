package rates

import (
	"sort"
	"time"

	"github.com/Checker-Finance/storefront/pkg/model"
)

// Table is an immutable snapshot of exchange rates to the base currency.
// A nil *Table is valid and holds no rates.
type Table struct {
	base      string
	rates     map[string]model.ExchangeRate
	fetchedAt time.Time
}

// NewTable copies rates into a new snapshot. Keys are taken from CurrencyCode
// when set, otherwise from the map key.
func NewTable(base string, rates map[string]model.ExchangeRate, fetchedAt time.Time) *Table {
	t := &Table{
		base:      base,
		rates:     make(map[string]model.ExchangeRate, len(rates)),
		fetchedAt: fetchedAt,
	}
	for code, r := range rates {
		if r.CurrencyCode == "" {
			r.CurrencyCode = code
		}
		t.rates[r.CurrencyCode] = r
	}
	return t
}

// FromSnapshot rebuilds a table from its serialized form.
func FromSnapshot(s model.RateSnapshot) *Table {
	return NewTable(s.Base, s.Rates, s.FetchedAt)
}

// Lookup returns the rate for an ISO code.
func (t *Table) Lookup(code string) (model.ExchangeRate, bool) {
	if t == nil {
		return model.ExchangeRate{}, false
	}
	r, ok := t.rates[code]
	return r, ok
}

// IsNil reports whether t is a nil table.
func (t *Table) IsNil() bool { return t == nil }

// Len returns the number of currencies in the table.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rates)
}

// Base returns the base currency code.
func (t *Table) Base() string {
	if t == nil {
		return model.BaseCurrency
	}
	return t.base
}

// FetchedAt is when the snapshot was taken from the source.
func (t *Table) FetchedAt() time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.fetchedAt
}

// Currencies returns the sorted list of codes in the table.
func (t *Table) Currencies() []string {
	if t == nil {
		return nil
	}
	out := make([]string, 0, len(t.rates))
	for code := range t.rates {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

// Snapshot returns a serializable copy of the table.
func (t *Table) Snapshot() model.RateSnapshot {
	s := model.RateSnapshot{
		Base:      t.Base(),
		Rates:     make(map[string]model.ExchangeRate, t.Len()),
		FetchedAt: t.FetchedAt(),
	}
	if t != nil {
		for code, r := range t.rates {
			s.Rates[code] = r
		}
	}
	return s
}
