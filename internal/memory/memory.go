// Package memory defines the storage contract the coordination engine
// consumes. The engine tags every record with the phase that produced it and
// expects at-least-once persistence; it never depends on a particular backing
// store's identity.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Record is one stored payload with its phase tag and metadata.
type Record struct {
	ID       string
	Type     string
	Phase    string
	Payload  any
	Metadata map[string]any
}

// Store is the memory/trace collaborator contract.
type Store interface {
	// StoreWithPhase persists a payload tagged with a memory type and phase,
	// returning the record's ID.
	StoreWithPhase(ctx context.Context, payload any, memoryType, phase string, metadata map[string]any) (string, error)
	// RetrieveWithPhase returns the most recent payload matching the memory
	// type, phase and query metadata, or nil when nothing matches.
	RetrieveWithPhase(ctx context.Context, memoryType, phase string, query map[string]any) (any, error)
	// Flush forces any buffered writes to the backing store.
	Flush(ctx context.Context) error
}

// InMemory is a Store backed by a slice, safe for concurrent use. It is the
// default store for tests and for embedding the engine without persistence.
type InMemory struct {
	mu      sync.RWMutex
	records []Record
}

func NewInMemory() *InMemory {
	return &InMemory{}
}

func (m *InMemory) StoreWithPhase(ctx context.Context, payload any, memoryType, phase string, metadata map[string]any) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := Record{
		ID:       uuid.New().String(),
		Type:     memoryType,
		Phase:    phase,
		Payload:  payload,
		Metadata: metadata,
	}
	m.records = append(m.records, rec)
	return rec.ID, nil
}

func (m *InMemory) RetrieveWithPhase(ctx context.Context, memoryType, phase string, query map[string]any) (any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	// Latest match wins.
	for i := len(m.records) - 1; i >= 0; i-- {
		rec := m.records[i]
		if rec.Type != memoryType || rec.Phase != phase {
			continue
		}
		if matchesQuery(rec.Metadata, query) {
			return rec.Payload, nil
		}
	}
	return nil, nil
}

func (m *InMemory) Flush(ctx context.Context) error {
	return nil
}

// Records returns a snapshot of everything stored, oldest first.
func (m *InMemory) Records() []Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Record, len(m.records))
	copy(out, m.records)
	return out
}

// CountByType reports how many records carry the given memory type.
func (m *InMemory) CountByType(memoryType string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, rec := range m.records {
		if rec.Type == memoryType {
			n++
		}
	}
	return n
}

func matchesQuery(metadata, query map[string]any) bool {
	for k, want := range query {
		got, ok := metadata[k]
		if !ok || got != want {
			return false
		}
	}
	return true
}
