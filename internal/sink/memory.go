package sink

import (
	"context"
	"sync"

	"bhavcopy-ingest/internal/interfaces"
	"bhavcopy-ingest/internal/types"
)

// Memory keeps records in a map. A whole Apply happens under one lock.
type Memory struct {
	mu      sync.RWMutex
	records map[string]types.DailyRecord
}

var _ interfaces.Sink = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{records: make(map[string]types.DailyRecord)}
}

func (m *Memory) Apply(ctx context.Context, records []types.DailyRecord) (types.Counts, error) {
	if err := ctx.Err(); err != nil {
		return types.Counts{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var counts types.Counts
	for _, r := range records {
		if err := r.Validate(); err != nil {
			counts.Errored++
			continue
		}
		key := r.Key()
		if _, ok := m.records[key]; ok {
			counts.Updated++
		} else {
			counts.Created++
		}
		m.records[key] = r
	}
	return counts, nil
}

// Get returns the stored record for the natural key.
func (m *Memory) Get(r types.DailyRecord) (types.DailyRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	got, ok := m.records[r.Key()]
	return got, ok
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func (m *Memory) Close() error { return nil }
