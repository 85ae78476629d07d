// Package memory holds the authoritative in-memory board state.
package memory

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/gosuda/zenboard/internal/domain"
)

type board struct {
	mu       sync.Mutex
	id       string
	name     string
	elements []domain.Element
}

// Store maps board ids to boards. The board index has its own lock; each
// board's element list is guarded by that board's mutex, so mutations on
// different boards never contend.
type Store struct {
	mu     sync.RWMutex
	boards map[string]*board
	order  []string
	newID  func() string
}

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator overrides board id generation (UUIDv4 by default).
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) {
		s.newID = fn
	}
}

// New creates a Store holding only the default board.
func New(defaultBoardName string, opts ...Option) *Store {
	s := &Store{
		boards: make(map[string]*board),
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if defaultBoardName == "" {
		defaultBoardName = domain.DefaultBoardName
	}
	s.insert(domain.DefaultBoardID, defaultBoardName)
	return s
}

func (s *Store) insert(id, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.boards[id] = &board{id: id, name: name}
	s.order = append(s.order, id)
}

// CreateBoard adds an empty board under a fresh id. It never fails.
func (s *Store) CreateBoard(name string) domain.BoardSummary {
	if name == "" {
		name = domain.DefaultBoardName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.newID()
	for id == "" || s.boards[id] != nil {
		id = uuid.NewString()
	}
	s.boards[id] = &board{id: id, name: name}
	s.order = append(s.order, id)

	return domain.BoardSummary{ID: id, Name: name}
}

// ListBoards returns every board in creation order.
func (s *Store) ListBoards() []domain.BoardSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.BoardSummary, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, domain.BoardSummary{ID: id, Name: s.boards[id].name})
	}
	return out
}

// Exists reports whether boardID is known.
func (s *Store) Exists(boardID string) bool {
	_, ok := s.lookup(boardID)
	return ok
}

// Len returns the number of boards.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

func (s *Store) lookup(boardID string) (*board, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.boards[boardID]
	return b, ok
}

// Do runs fn with exclusive access to one board. Everything fn does through
// tx, and anything else it does before returning, is ordered against every
// other Do on the same board. fn must not block.
func (s *Store) Do(boardID string, fn func(tx *Tx)) error {
	b, ok := s.lookup(boardID)
	if !ok {
		return fmt.Errorf("memory.Store.Do: board %q: %w", boardID, domain.ErrNotFound)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	tx := &Tx{b: b}
	fn(tx)
	tx.b = nil
	return nil
}

// Board returns a deep copy of a board.
func (s *Store) Board(boardID string) (*domain.Board, error) {
	var out *domain.Board
	err := s.Do(boardID, func(tx *Tx) {
		out = &domain.Board{ID: tx.ID(), Name: tx.Name(), Elements: tx.Elements()}
	})
	if err != nil {
		return nil, fmt.Errorf("memory.Store.Board: %w", domain.ErrNotFound)
	}
	return out, nil
}

// Elements returns a snapshot of a board's elements in order.
func (s *Store) Elements(boardID string) ([]domain.Element, error) {
	var out []domain.Element
	if err := s.Do(boardID, func(tx *Tx) { out = tx.Elements() }); err != nil {
		return nil, fmt.Errorf("memory.Store.Elements: %w", domain.ErrNotFound)
	}
	return out, nil
}

// Append adds el at the end of the board. Duplicate ids are not rejected.
func (s *Store) Append(boardID string, el domain.Element) error {
	if err := s.Do(boardID, func(tx *Tx) { tx.Append(el) }); err != nil {
		return fmt.Errorf("memory.Store.Append: %w", domain.ErrNotFound)
	}
	return nil
}

// Update patches the first element with elementID. It reports whether an
// element matched; a miss is not an error.
func (s *Store) Update(boardID, elementID string, patch domain.ElementPatch) (bool, error) {
	var found bool
	if err := s.Do(boardID, func(tx *Tx) { found = tx.Update(elementID, patch) }); err != nil {
		return false, fmt.Errorf("memory.Store.Update: %w", domain.ErrNotFound)
	}
	return found, nil
}

// Remove deletes every element with elementID and returns how many went.
func (s *Store) Remove(boardID, elementID string) (int, error) {
	var n int
	if err := s.Do(boardID, func(tx *Tx) { n = tx.Remove(elementID) }); err != nil {
		return 0, fmt.Errorf("memory.Store.Remove: %w", domain.ErrNotFound)
	}
	return n, nil
}

// Clear empties a board.
func (s *Store) Clear(boardID string) error {
	if err := s.Do(boardID, func(tx *Tx) { tx.Clear() }); err != nil {
		return fmt.Errorf("memory.Store.Clear: %w", domain.ErrNotFound)
	}
	return nil
}

// Tx is a locked view of one board, valid only inside Store.Do.
type Tx struct {
	b *board
}

// ID returns the board id.
func (tx *Tx) ID() string { return tx.b.id }

// Name returns the board name.
func (tx *Tx) Name() string { return tx.b.name }

// Len returns the number of elements.
func (tx *Tx) Len() int { return len(tx.b.elements) }

// Elements returns deep copies of the elements in order.
func (tx *Tx) Elements() []domain.Element {
	out := make([]domain.Element, len(tx.b.elements))
	for i, el := range tx.b.elements {
		out[i] = el.Clone()
	}
	return out
}

// Append stores a copy of el at the end.
func (tx *Tx) Append(el domain.Element) {
	tx.b.elements = append(tx.b.elements, el.Clone())
}

// Update patches the first element with elementID in place.
func (tx *Tx) Update(elementID string, patch domain.ElementPatch) bool {
	for i := range tx.b.elements {
		if tx.b.elements[i].ID == elementID {
			tx.b.elements[i].Apply(patch)
			return true
		}
	}
	return false
}

// Remove deletes every element with elementID, keeping the order of the rest.
func (tx *Tx) Remove(elementID string) int {
	kept := tx.b.elements[:0]
	removed := 0
	for _, el := range tx.b.elements {
		if el.ID == elementID {
			removed++
			continue
		}
		kept = append(kept, el)
	}
	clear(tx.b.elements[len(kept):])
	tx.b.elements = kept
	return removed
}

// Clear drops every element.
func (tx *Tx) Clear() {
	tx.b.elements = nil
}
