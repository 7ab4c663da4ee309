package store

import (
	"context"
	"region-sync/internal/region"
	"sort"
	"sync"
)

// Memory：进程内存储，用于测试与 REGION_STORE=memory
type Memory struct {
	mu   sync.RWMutex
	recs map[int64]region.Region
	next int64
}

func NewMemory() *Memory { return &Memory{recs: make(map[int64]region.Region)} }

func (m *Memory) Persist(ctx context.Context, r region.Region) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := m.next
	m.next++
	m.recs[idx] = r
	return idx, nil
}

func (m *Memory) FetchAll(ctx context.Context) ([]region.Region, error) {
	recs, err := m.List(ctx, 0)
	if err != nil {
		return nil, err
	}
	return regionsOf(recs), nil
}

func (m *Memory) List(ctx context.Context, limit int) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	out := make([]Record, 0, len(m.recs))
	for idx, r := range m.recs {
		out = append(out, Record{Index: idx, Region: r})
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) Get(ctx context.Context, idx int64) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.recs[idx]
	if !ok {
		return Record{}, ErrNotFound
	}
	return Record{Index: idx, Region: r}, nil
}

func (m *Memory) Delete(ctx context.Context, idx int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.recs[idx]; !ok {
		return ErrNotFound
	}
	delete(m.recs, idx)
	return nil
}

func (m *Memory) Count(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.recs)), nil
}

func (m *Memory) Close() error { return nil }
