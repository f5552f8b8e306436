package storefront

import (
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/Checker-Finance/storefront/pkg/model"
	"github.com/Checker-Finance/storefront/pkg/variant"
)

// indexMemo caches BuildGroups per product. An entry is reused only while the
// attribute payload fingerprint is unchanged.
type indexMemo struct {
	mu      sync.Mutex
	entries map[string]memoEntry
	builds  int
}

type memoEntry struct {
	fingerprint uint64
	index       variant.Index
}

func newIndexMemo() *indexMemo {
	return &indexMemo{entries: make(map[string]memoEntry)}
}

func fingerprint(attrs []model.Attribute) uint64 {
	d := xxhash.New()
	for _, a := range attrs {
		for _, s := range []string{a.PropertyID, a.PropertyName, a.ValueID, a.Value, a.ValueAlias, a.ImageURL} {
			_, _ = d.WriteString(s)
			_, _ = d.Write([]byte{0})
		}
		if a.IsConfigurator {
			_, _ = d.Write([]byte{1})
		} else {
			_, _ = d.Write([]byte{2})
		}
	}
	return d.Sum64()
}

func (m *indexMemo) get(p model.Product) variant.Index {
	fp := fingerprint(p.Attributes)

	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[p.ID]; ok && e.fingerprint == fp {
		return e.index
	}
	idx := variant.BuildGroups(p.Attributes)
	m.entries[p.ID] = memoEntry{fingerprint: fp, index: idx}
	m.builds++
	return idx
}

func (m *indexMemo) forget(productID string) {
	m.mu.Lock()
	delete(m.entries, productID)
	m.mu.Unlock()
}

func (m *indexMemo) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
