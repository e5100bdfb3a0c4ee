package db

import (
	"context"
	"sync"

	"github.com/Nixie-Tech-LLC/ekran/internal/model"
)

// MemoryStore keeps the newest entries in a fixed-size ring. It backs the
// journal when no database is configured.
type MemoryStore struct {
	mu      sync.Mutex
	entries []model.OperationRecord
	next    int
	size    int
	seq     int
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultListLimit
	}
	return &MemoryStore{entries: make([]model.OperationRecord, capacity)}
}

func (m *MemoryStore) RecordOperation(_ context.Context, rec model.OperationRecord) (model.OperationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	rec.ID = m.seq
	m.entries[m.next] = rec
	m.next = (m.next + 1) % len(m.entries)
	if m.size < len(m.entries) {
		m.size++
	}
	return rec, nil
}

func (m *MemoryStore) ListOperations(_ context.Context, limit int) ([]model.OperationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	limit = clampLimit(limit)
	if limit > m.size {
		limit = m.size
	}
	out := make([]model.OperationRecord, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (m.next - i + len(m.entries)) % len(m.entries)
		out = append(out, m.entries[idx])
	}
	return out, nil
}
