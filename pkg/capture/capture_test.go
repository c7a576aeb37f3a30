package capture

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/strata-gfx/strata/pkg/trace"
)

func tx(name string) trace.Transaction {
	return trace.Transaction{Name: name}
}

func TestRecorder_RingEviction(t *testing.T) {
	r := NewRecorder(3)
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		r.Record(tx(name))
	}

	got := r.Transactions()
	if len(got) != 3 {
		t.Fatalf("len(Transactions()) = %d, want 3", len(got))
	}
	want := []string{"c", "d", "e"}
	for i, tx := range got {
		if tx.Name != want[i] {
			t.Errorf("Transactions()[%d] = %q, want %q", i, tx.Name, want[i])
		}
	}
	if r.Dropped() != 2 {
		t.Errorf("Dropped() = %d, want 2", r.Dropped())
	}
}

func TestRecorder_Session(t *testing.T) {
	r := NewRecorder(0)
	r.Record(tx("boot"))
	r.Record(tx("open"))

	sess := r.Session("repro", trace.Snapshot{})
	if sess.ID == "" {
		t.Error("session id is empty")
	}
	if sess.Name != "repro" {
		t.Errorf("Name = %q, want repro", sess.Name)
	}
	if len(sess.Transactions) != 2 {
		t.Errorf("len(Transactions) = %d, want 2", len(sess.Transactions))
	}
	if sess.IsExpired() {
		t.Error("fresh session reports expired")
	}

	other := r.Session("repro", trace.Snapshot{})
	if other.ID == sess.ID {
		t.Error("two sessions share an id")
	}
}

func storeImpls(t *testing.T) map[string]Store {
	t.Helper()
	file, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	return map[string]Store{
		"memory": NewMemoryStore(),
		"file":   file,
	}
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, store := range storeImpls(t) {
		t.Run(name, func(t *testing.T) {
			sess := NewRecorder(0).Session("s1", trace.Snapshot{})
			sess.Transactions = []trace.Transaction{tx("boot")}

			if err := store.Set(ctx, sess); err != nil {
				t.Fatalf("Set() error = %v", err)
			}
			got, err := store.Get(ctx, sess.ID)
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if got == nil {
				t.Fatal("Get() = nil for stored session")
			}
			if got.Name != "s1" || len(got.Transactions) != 1 {
				t.Errorf("Get() = %+v, want name s1 with 1 transaction", got)
			}

			ids, err := store.List(ctx)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(ids) != 1 || ids[0] != sess.ID {
				t.Errorf("List() = %v, want [%s]", ids, sess.ID)
			}

			if err := store.Delete(ctx, sess.ID); err != nil {
				t.Fatalf("Delete() error = %v", err)
			}
			if got, _ := store.Get(ctx, sess.ID); got != nil {
				t.Error("Get() after delete returned a session")
			}
		})
	}
}

func TestStore_MissingSession(t *testing.T) {
	ctx := context.Background()
	for name, store := range storeImpls(t) {
		t.Run(name, func(t *testing.T) {
			got, err := store.Get(ctx, "does-not-exist")
			if err != nil || got != nil {
				t.Errorf("Get(missing) = %v, %v; want nil, nil", got, err)
			}
			if err := store.Delete(ctx, "does-not-exist"); err != nil {
				t.Errorf("Delete(missing) error = %v, want nil", err)
			}
		})
	}
}

func TestStore_Expiry(t *testing.T) {
	ctx := context.Background()
	for name, store := range storeImpls(t) {
		t.Run(name, func(t *testing.T) {
			sess := NewRecorder(0).Session("old", trace.Snapshot{})
			sess.ExpiresAt = time.Now().Add(-time.Hour)
			if err := store.Set(ctx, sess); err != nil {
				t.Fatalf("Set() error = %v", err)
			}

			if _, err := store.Get(ctx, sess.ID); !errors.Is(err, ErrExpired) {
				t.Errorf("Get(expired) error = %v, want ErrExpired", err)
			}

			if err := store.Cleanup(ctx); err != nil {
				t.Fatalf("Cleanup() error = %v", err)
			}
			ids, err := store.List(ctx)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(ids) != 0 {
				t.Errorf("List() after cleanup = %v, want empty", ids)
			}
		})
	}
}

func TestRetryWithBackoff(t *testing.T) {
	ctx := context.Background()

	calls := 0
	err := RetryWithBackoff(ctx, func() error {
		calls++
		if calls < 3 {
			return Retryable(errors.New("transient"))
		}
		return nil
	})
	if err != nil {
		t.Errorf("RetryWithBackoff() error = %v, want nil", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}

	calls = 0
	permanent := errors.New("permanent")
	err = RetryWithBackoff(ctx, func() error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) {
		t.Errorf("RetryWithBackoff() error = %v, want permanent", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d for non-retryable error, want 1", calls)
	}
}
