package thread

import (
	"slices"

	"github.com/fragmede/threadline/internal/api"
)

// Store holds the raw records of a single fetch. It is never mutated; a
// refetch produces a new Store.
type Store struct {
	records []api.Comment
	index   map[string]int
}

// NewStore copies records into a new Store.
func NewStore(records []api.Comment) *Store {
	s := &Store{
		records: slices.Clone(records),
		index:   make(map[string]int, len(records)),
	}
	for i, r := range s.records {
		if r.ID != "" {
			s.index[r.ID] = i
		}
	}
	return s
}

// Len returns the number of records as fetched, duplicates included.
func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	return len(s.records)
}

// Records returns a copy of the fetched records in fetch order.
func (s *Store) Records() []api.Comment {
	if s == nil {
		return nil
	}
	return slices.Clone(s.records)
}

// Lookup returns the record for id. Duplicates resolve to the last one.
func (s *Store) Lookup(id string) (api.Comment, bool) {
	if s == nil {
		return api.Comment{}, false
	}
	i, ok := s.index[id]
	if !ok {
		return api.Comment{}, false
	}
	return s.records[i], true
}

// Forest builds the comment tree for this fetch.
func (s *Store) Forest() []*Node {
	if s == nil {
		return Build(nil)
	}
	return Build(s.records)
}
