package layer

import (
	"errors"
	"fmt"
	"slices"
)

// Sentinel errors returned by [Store.Commit].
var (
	// ErrInvalidLayerID indicates a record with the zero id.
	ErrInvalidLayerID = errors.New("layer: invalid layer id")
	// ErrDuplicateLayer indicates a create for an id that already exists.
	ErrDuplicateLayer = errors.New("layer: duplicate layer id")
	// ErrUnknownLayer indicates a set or destroy for an id that does not exist.
	ErrUnknownLayer = errors.New("layer: unknown layer id")
	// ErrSelfReference indicates a record naming itself as parent,
	// relative parent, or mirror source.
	ErrSelfReference = errors.New("layer: layer cannot reference itself")
)

// Transaction is one batch of record mutations, applied atomically by
// [Store.Commit]: either every entry validates and the whole batch applies,
// or the store is left untouched.
type Transaction struct {
	Name    string  // optional label for logs and captures
	Create  []State // records to add
	Set     []State // full replacement state for existing records
	Destroy []ID    // records to remove
}

// Empty reports whether the transaction carries no mutations.
func (tx Transaction) Empty() bool {
	return len(tx.Create) == 0 && len(tx.Set) == 0 && len(tx.Destroy) == 0
}

// Delta reports which records a committed transaction touched, in the shape
// the hierarchy builder consumes: ids that were created or modified, and ids
// that were destroyed. An id created and destroyed by the same transaction
// appears in neither list: the record never outlived the commit, so the
// hierarchy has nothing to add or remove for it.
type Delta struct {
	Changed   []ID
	Destroyed []ID
}

// Store owns the flat, ordered collection of layer records. Record pointers
// handed out by [Store.Get] and [Store.All] stay valid across commits until
// the record is destroyed; [Store.Commit] mutates existing records in place
// so the hierarchy observes changes through the references it already holds.
type Store struct {
	byID  map[ID]*State
	order []ID
}

// NewStore creates a store holding the given initial records. It validates
// them exactly like a Create-only transaction.
func NewStore(initial []State) (*Store, error) {
	s := &Store{byID: make(map[ID]*State, len(initial))}
	if _, err := s.Commit(Transaction{Create: initial}); err != nil {
		return nil, err
	}
	return s, nil
}

// Get returns the record for id, or false if it does not exist.
func (s *Store) Get(id ID) (*State, bool) {
	rec, ok := s.byID[id]
	return rec, ok
}

// All returns every record in insertion order. The returned slice is fresh
// but the pointed-to records are the store's own; callers must not mutate
// them.
func (s *Store) All() []*State {
	out := make([]*State, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

// Len returns the number of live records.
func (s *Store) Len() int {
	return len(s.order)
}

// Commit validates and applies a transaction. Creates are applied first,
// then sets, then destroys, so a transaction may set or destroy a record it
// creates. On any validation error the store is unchanged.
func (s *Store) Commit(tx Transaction) (Delta, error) {
	if err := s.validate(tx); err != nil {
		return Delta{}, err
	}

	var delta Delta
	created := make(map[ID]bool, len(tx.Create))
	for _, rec := range tx.Create {
		cp := rec
		s.byID[rec.ID] = &cp
		s.order = append(s.order, rec.ID)
		delta.Changed = append(delta.Changed, rec.ID)
		created[rec.ID] = true
	}
	for _, rec := range tx.Set {
		// In-place assignment keeps the pointer identity that hierarchy
		// nodes and mirror clones share.
		*s.byID[rec.ID] = rec
		if !slices.Contains(delta.Changed, rec.ID) {
			delta.Changed = append(delta.Changed, rec.ID)
		}
	}
	for _, id := range tx.Destroy {
		delete(s.byID, id)
		s.order = slices.DeleteFunc(s.order, func(o ID) bool { return o == id })
		delta.Changed = slices.DeleteFunc(delta.Changed, func(c ID) bool { return c == id })
		if created[id] {
			continue
		}
		delta.Destroyed = append(delta.Destroyed, id)
	}
	return delta, nil
}

func (s *Store) validate(tx Transaction) error {
	// live tracks record existence as the batch would evolve.
	live := make(map[ID]bool, len(tx.Create))

	for _, rec := range tx.Create {
		if rec.ID == None {
			return fmt.Errorf("create: %w", ErrInvalidLayerID)
		}
		if _, exists := s.byID[rec.ID]; exists || live[rec.ID] {
			return fmt.Errorf("create layer %d: %w", rec.ID, ErrDuplicateLayer)
		}
		if err := checkSelfReference(rec); err != nil {
			return err
		}
		live[rec.ID] = true
	}
	for _, rec := range tx.Set {
		if rec.ID == None {
			return fmt.Errorf("set: %w", ErrInvalidLayerID)
		}
		if _, exists := s.byID[rec.ID]; !exists && !live[rec.ID] {
			return fmt.Errorf("set layer %d: %w", rec.ID, ErrUnknownLayer)
		}
		if err := checkSelfReference(rec); err != nil {
			return err
		}
	}
	for _, id := range tx.Destroy {
		if id == None {
			return fmt.Errorf("destroy: %w", ErrInvalidLayerID)
		}
		if _, exists := s.byID[id]; !exists && !live[id] {
			return fmt.Errorf("destroy layer %d: %w", id, ErrUnknownLayer)
		}
	}
	return nil
}

func checkSelfReference(rec State) error {
	if rec.Parent == rec.ID || rec.RelativeParent == rec.ID || rec.MirrorSource == rec.ID {
		return fmt.Errorf("layer %d: %w", rec.ID, ErrSelfReference)
	}
	return nil
}
