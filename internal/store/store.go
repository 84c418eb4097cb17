// Package store keeps the tracked pull request state for a monitored repository.
package store

import (
	"sort"
	"sync"

	"pr-build-watcher/internal/entities"
)

// Store is a thread-safe mapping from pull request number to its tracked
// record, scoped to one monitored repository. The polling path and the
// webhook path touch it concurrently, possibly for the same id.
type Store struct {
	mu   sync.RWMutex
	recs map[int]*entities.PullRequestRecord
}

// New creates an empty store.
func New() *Store {
	return &Store{recs: make(map[int]*entities.PullRequestRecord)}
}

// Get returns a copy of the record for id.
func (s *Store) Get(id int) (entities.PullRequestRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.recs[id]
	if !ok {
		return entities.PullRequestRecord{}, false
	}
	return *rec, true
}

// GetOrCreate returns the record for id, creating it from make() when absent.
// Concurrent creators for the same id converge on a single surviving record;
// the loser observes the canonical one. The second return reports whether
// this call created the record.
func (s *Store) GetOrCreate(id int, make func() *entities.PullRequestRecord) (entities.PullRequestRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.recs[id]; ok {
		return *rec, false
	}
	rec := make()
	s.recs[id] = rec
	return *rec, true
}

// Update runs fn against the stored record under the store lock, giving
// linearizable per-id mutation. Returns false when the record is gone.
func (s *Store) Update(id int, fn func(*entities.PullRequestRecord)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[id]
	if !ok {
		return false
	}
	fn(rec)
	return true
}

// Remove deletes the record for id, reporting whether it existed.
func (s *Store) Remove(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.recs[id]
	delete(s.recs, id)
	return ok
}

// Keys returns a snapshot of tracked pull request numbers.
func (s *Store) Keys() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]int, 0, len(s.recs))
	for id := range s.recs {
		keys = append(keys, id)
	}
	sort.Ints(keys)
	return keys
}

// Len returns the number of tracked records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.recs)
}

// Records returns copies of all tracked records, ordered by id.
func (s *Store) Records() []entities.PullRequestRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]entities.PullRequestRecord, 0, len(s.recs))
	for _, rec := range s.recs {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Replace swaps the whole map for the given records, used when loading a
// persisted snapshot at job start.
func (s *Store) Replace(recs []entities.PullRequestRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = make(map[int]*entities.PullRequestRecord, len(recs))
	for i := range recs {
		rec := recs[i]
		s.recs[rec.ID] = &rec
	}
}
