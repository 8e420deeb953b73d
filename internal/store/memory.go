package store

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-process Store. Records are copied on the way in and
// out so callers never share slices with the map.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[Key]*Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[Key]*Record)}
}

func (s *MemoryStore) Put(ctx context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[rec.Key()]; exists {
		return ErrConflict
	}
	c := cloneRecord(rec)
	normalizeEmpty(c)
	s.records[rec.Key()] = c
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, key Key) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.records[key]
	if !exists {
		return nil, ErrNotFound
	}
	return s.out(rec), nil
}

func (s *MemoryStore) Latest(ctx context.Context, etaID string) (*Record, error) {
	records, _ := s.Query(ctx, etaID)
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return &records[0], nil
}

func (s *MemoryStore) Query(ctx context.Context, etaID string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Record
	for key, rec := range s.records {
		if key.EtaID == etaID {
			out = append(out, *s.out(rec))
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *MemoryStore) Scan(ctx context.Context, f Filter) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Record
	for _, rec := range s.records {
		if f.matches(rec) {
			out = append(out, *s.out(rec))
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *MemoryStore) Update(ctx context.Context, key Key, u Update) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.records[key]
	if !exists {
		return nil, ErrNotFound
	}
	updated := cloneRecord(rec)
	u.apply(updated)
	normalizeEmpty(updated)
	s.records[key] = updated
	return s.out(updated), nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) out(rec *Record) *Record {
	c := cloneRecord(rec)
	normalizeEmpty(c)
	return c
}

func sortNewestFirst(records []Record) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].UploadDate != records[j].UploadDate {
			return records[i].UploadDate > records[j].UploadDate
		}
		return records[i].EtaID < records[j].EtaID
	})
}
