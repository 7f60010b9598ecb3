package metadata

import (
	"context"
	"iter"
	"maps"
	"slices"
	"sync"

	"github.com/wmlabtx/imgmzx/model"
)

// Memory is an in-memory Store.
// Thread-safe for concurrent reads and writes.
type Memory struct {
	mu      sync.RWMutex
	records map[model.ContentHash]Record
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{records: make(map[model.ContentHash]Record)}
}

func (m *Memory) Get(_ context.Context, hash model.ContentHash) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[hash]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec.Clone(), nil
}

func (m *Memory) Put(_ context.Context, rec Record) error {
	if err := rec.Hash.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.Hash] = rec.Clone()
	return nil
}

func (m *Memory) SetNext(_ context.Context, hash, next model.ContentHash, distance float32) error {
	return m.update(hash, func(r *Record) {
		r.Next = next
		r.Distance = distance
	})
}

func (m *Memory) SetVector(_ context.Context, hash model.ContentHash, vec []float32) error {
	return m.update(hash, func(r *Record) {
		r.Vector = slices.Clone(vec)
	})
}

func (m *Memory) update(hash model.ContentHash, fn func(*Record)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[hash]
	if !ok {
		return ErrNotFound
	}
	fn(&rec)
	m.records[hash] = rec
	return nil
}

func (m *Memory) Delete(_ context.Context, hash model.ContentHash) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, hash)
	return nil
}

func (m *Memory) Scan(ctx context.Context) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		m.mu.RLock()
		keys := slices.Sorted(maps.Keys(m.records))
		m.mu.RUnlock()

		for _, k := range keys {
			if err := ctx.Err(); err != nil {
				yield(Record{}, err)
				return
			}
			m.mu.RLock()
			rec, ok := m.records[k]
			if ok {
				rec = rec.Clone()
			}
			m.mu.RUnlock()
			if !ok {
				continue
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}

// Len returns the number of records.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func (m *Memory) Close() error {
	return nil
}
