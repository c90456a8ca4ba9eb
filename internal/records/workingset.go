package records

import "github.com/soundvine/discovery-indexer/internal/domain"

// WorkingSet accumulates the entity versions staged by one block before they
// are written. Later events in the same block read through it so they see
// versions staged earlier in the block, not the stale persisted rows.
//
// Every staged version is kept; Finalize decides which one per key ends up
// marked current.
type WorkingSet[T any] struct {
	keys   []domain.RecordKey
	staged map[domain.RecordKey][]T
}

// NewWorkingSet creates an empty working set
func NewWorkingSet[T any]() *WorkingSet[T] {
	return &WorkingSet[T]{
		staged: make(map[domain.RecordKey][]T),
	}
}

// Stage appends a new version for the key. Versions staged for the same key
// retain insertion order.
func (s *WorkingSet[T]) Stage(key domain.RecordKey, record T) {
	if _, ok := s.staged[key]; !ok {
		s.keys = append(s.keys, key)
	}
	s.staged[key] = append(s.staged[key], record)
}

// Latest returns the most recently staged version for the key, if any.
func (s *WorkingSet[T]) Latest(key domain.RecordKey) (T, bool) {
	versions, ok := s.staged[key]
	if !ok {
		var zero T
		return zero, false
	}
	return versions[len(versions)-1], true
}

// Has reports whether any version is staged for the key.
func (s *WorkingSet[T]) Has(key domain.RecordKey) bool {
	_, ok := s.staged[key]
	return ok
}

// Keys returns the staged keys in first-staged order.
func (s *WorkingSet[T]) Keys() []domain.RecordKey {
	return s.keys
}

// Len returns the number of staged versions across all keys.
func (s *WorkingSet[T]) Len() int {
	n := 0
	for _, versions := range s.staged {
		n += len(versions)
	}
	return n
}

// Finalize returns every staged version in deterministic order (keys in
// first-staged order, versions per key in staged order), invoking markCurrent
// on each with true only for the last version of each key. Intermediate
// versions persist as history rows.
func (s *WorkingSet[T]) Finalize(markCurrent func(record *T, current bool)) []T {
	out := make([]T, 0, s.Len())
	for _, key := range s.keys {
		versions := s.staged[key]
		for i := range versions {
			markCurrent(&versions[i], i == len(versions)-1)
			out = append(out, versions[i])
		}
	}
	return out
}
