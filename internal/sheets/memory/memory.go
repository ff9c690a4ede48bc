// Package memory is an in-process RowWriter used when no spreadsheet is
// configured and in tests.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"contas/internal/sheets"
)

type Store struct {
	mu   sync.Mutex
	rows map[string]sheets.Row
	// order keeps first-insert order, like appended sheet rows.
	order []string

	// FailUpsert is returned by Upsert when set.
	FailUpsert error
}

var _ sheets.RowWriter = (*Store)(nil)

func New() *Store {
	return &Store{rows: map[string]sheets.Row{}}
}

func (s *Store) Upsert(_ context.Context, row sheets.Row) error {
	if row.ID == "" {
		return errors.New("row without id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailUpsert != nil {
		return s.FailUpsert
	}
	if _, ok := s.rows[row.ID]; !ok {
		s.order = append(s.order, row.ID)
	}
	s.rows[row.ID] = row
	return nil
}

func (s *Store) Remove(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, id)
	return nil
}

// Get returns the row with id.
func (s *Store) Get(id string) (sheets.Row, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	return r, ok
}

// Rows returns the live rows in insertion order.
func (s *Store) Rows() []sheets.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]sheets.Row, 0, len(s.rows))
	for _, id := range s.order {
		if r, ok := s.rows[id]; ok {
			out = append(out, r)
		}
	}
	return out
}

// IDs returns the live ids sorted.
func (s *Store) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.rows))
	for id := range s.rows {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
