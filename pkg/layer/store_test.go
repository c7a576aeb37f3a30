package layer

import (
	"errors"
	"slices"
	"testing"
)

func TestNewStore(t *testing.T) {
	s, err := NewStore([]State{
		{ID: 1, Name: "root", Z: 0},
		{ID: 2, Name: "panel", Parent: 1, Z: 5},
	})
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	if s.Len() != 2 {
		t.Errorf("Len() = %d, want 2", s.Len())
	}
	rec, ok := s.Get(2)
	if !ok {
		t.Fatal("Get(2) not found")
	}
	if rec.Parent != 1 || rec.Z != 5 {
		t.Errorf("Get(2) = %+v, want Parent=1 Z=5", rec)
	}
}

func TestCommitValidation(t *testing.T) {
	tests := []struct {
		name    string
		tx      Transaction
		wantErr error
	}{
		{
			name:    "create zero id",
			tx:      Transaction{Create: []State{{ID: 0}}},
			wantErr: ErrInvalidLayerID,
		},
		{
			name:    "duplicate create",
			tx:      Transaction{Create: []State{{ID: 1}}},
			wantErr: ErrDuplicateLayer,
		},
		{
			name:    "duplicate create within batch",
			tx:      Transaction{Create: []State{{ID: 9}, {ID: 9}}},
			wantErr: ErrDuplicateLayer,
		},
		{
			name:    "self parent",
			tx:      Transaction{Create: []State{{ID: 9, Parent: 9}}},
			wantErr: ErrSelfReference,
		},
		{
			name:    "self relative parent",
			tx:      Transaction{Create: []State{{ID: 9, RelativeParent: 9}}},
			wantErr: ErrSelfReference,
		},
		{
			name:    "self mirror source",
			tx:      Transaction{Create: []State{{ID: 9, MirrorSource: 9}}},
			wantErr: ErrSelfReference,
		},
		{
			name:    "set unknown layer",
			tx:      Transaction{Set: []State{{ID: 42}}},
			wantErr: ErrUnknownLayer,
		},
		{
			name:    "destroy unknown layer",
			tx:      Transaction{Destroy: []ID{42}},
			wantErr: ErrUnknownLayer,
		},
		{
			name: "set created in same batch",
			tx:   Transaction{Create: []State{{ID: 9}}, Set: []State{{ID: 9, Z: 3}}},
		},
		{
			name: "destroy created in same batch",
			tx:   Transaction{Create: []State{{ID: 9}}, Destroy: []ID{9}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewStore([]State{{ID: 1}})
			if err != nil {
				t.Fatalf("NewStore() error = %v", err)
			}
			_, err = s.Commit(tt.tx)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Commit() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Commit() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCommitAtomicity(t *testing.T) {
	s, err := NewStore([]State{{ID: 1}})
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	// Second create is invalid; the first must not be applied either.
	_, err = s.Commit(Transaction{Create: []State{{ID: 2}, {ID: 1}}})
	if !errors.Is(err, ErrDuplicateLayer) {
		t.Fatalf("Commit() error = %v, want %v", err, ErrDuplicateLayer)
	}
	if _, ok := s.Get(2); ok {
		t.Error("failed commit applied a create")
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

func TestCommitSetKeepsPointerIdentity(t *testing.T) {
	s, err := NewStore([]State{{ID: 1, Z: 0}})
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	before, _ := s.Get(1)

	if _, err := s.Commit(Transaction{Set: []State{{ID: 1, Z: 7, Visible: true}}}); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	after, _ := s.Get(1)
	if before != after {
		t.Error("Set replaced the record pointer; hierarchy references would go stale")
	}
	if before.Z != 7 || !before.Visible {
		t.Errorf("record = %+v, want Z=7 Visible=true", before)
	}
}

func TestCommitDelta(t *testing.T) {
	s, err := NewStore([]State{{ID: 1}, {ID: 2}})
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	delta, err := s.Commit(Transaction{
		Create:  []State{{ID: 3}, {ID: 4}},
		Set:     []State{{ID: 2, Z: 1}, {ID: 3, Z: 2}},
		Destroy: []ID{1, 4},
	})
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	wantChanged := []ID{3, 2}
	if !slices.Equal(delta.Changed, wantChanged) {
		t.Errorf("Changed = %v, want %v", delta.Changed, wantChanged)
	}
	// 4 was created and destroyed by the same transaction, so it appears
	// in neither list.
	wantDestroyed := []ID{1}
	if !slices.Equal(delta.Destroyed, wantDestroyed) {
		t.Errorf("Destroyed = %v, want %v", delta.Destroyed, wantDestroyed)
	}
}

func TestCommitDelta_CreateDestroySameTransaction(t *testing.T) {
	s, err := NewStore([]State{{ID: 1}})
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	delta, err := s.Commit(Transaction{Create: []State{{ID: 7}}, Destroy: []ID{7}})
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if len(delta.Changed) != 0 || len(delta.Destroyed) != 0 {
		t.Errorf("delta = %+v, want empty: the record never outlived the commit", delta)
	}
	if _, ok := s.Get(7); ok {
		t.Error("Get(7) found a record destroyed by its own transaction")
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

func TestAllInsertionOrder(t *testing.T) {
	s, err := NewStore([]State{{ID: 5}, {ID: 2}, {ID: 9}})
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	if _, err := s.Commit(Transaction{Destroy: []ID{2}}); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if _, err := s.Commit(Transaction{Create: []State{{ID: 2}}}); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	var got []ID
	for _, rec := range s.All() {
		got = append(got, rec.ID)
	}
	want := []ID{5, 9, 2}
	if !slices.Equal(got, want) {
		t.Errorf("All() order = %v, want %v", got, want)
	}
}
