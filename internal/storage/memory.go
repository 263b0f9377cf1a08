package storage

import (
	"context"
	"sync"

	"github.com/bouwbuddy/bouwbuddy/internal/fieldreport"
)

// MemoryStore is a process-local record store. Nothing survives a restart.
type MemoryStore struct {
	mu      sync.RWMutex
	records []fieldreport.Record
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Append adds r to the store.
func (m *MemoryStore) Append(_ context.Context, r fieldreport.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, r)
	return nil
}

// Query returns a copy of the records submitted within tr, in insertion order.
func (m *MemoryStore) Query(_ context.Context, tr fieldreport.TimeRange) ([]fieldreport.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []fieldreport.Record
	for _, r := range m.records {
		if tr.Contains(r.SubmittedAt) {
			out = append(out, r)
		}
	}
	return out, nil
}

// CountReports returns the number of stored records.
func (m *MemoryStore) CountReports(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records), nil
}
