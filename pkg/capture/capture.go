// Package capture records engine activity for diagnostics and replay.
//
// A [Recorder] keeps a bounded ring of recent transactions on the commit
// path; [Recorder.Session] freezes the ring plus a final snapshot into a
// [Session] that can be persisted through a [Store]. Three store backends
// are provided:
//   - memory: for tests and short-lived tools
//   - file: JSON files under a local directory, for CLI use
//   - redis: shared storage for multi-instance deployments
//
// [MongoArchive] is a separate long-term sink for sessions worth keeping
// past their store TTL.
//
// Capture data is diagnostic, never authoritative: the engine does not read
// it back except during explicit replay.
package capture

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/strata-gfx/strata/pkg/trace"
)

// Sentinel errors for capture operations.
var (
	// ErrNotFound is returned when a session does not exist.
	ErrNotFound = errors.New("capture: session not found")

	// ErrExpired is returned when a session exists but exceeded its TTL.
	ErrExpired = errors.New("capture: session expired")
)

// DefaultTTL is how long stored sessions live unless the store is told
// otherwise.
const DefaultTTL = 24 * time.Hour

// Session is one persisted capture: a transaction stream and the snapshot
// the stream ends in.
type Session struct {
	ID           string              `json:"id" bson:"_id"`
	Name         string              `json:"name,omitempty" bson:"name,omitempty"`
	CreatedAt    time.Time           `json:"created_at" bson:"created_at"`
	ExpiresAt    time.Time           `json:"expires_at" bson:"expires_at"`
	Dropped      int                 `json:"dropped,omitempty" bson:"dropped,omitempty"`
	Transactions []trace.Transaction `json:"transactions" bson:"transactions"`
	Final        trace.Snapshot      `json:"final" bson:"final"`
}

// IsExpired reports whether the session passed its TTL.
func (s *Session) IsExpired() bool {
	return !s.ExpiresAt.IsZero() && time.Now().After(s.ExpiresAt)
}

// Store is the interface capture storage backends implement.
type Store interface {
	// Get retrieves a session by id. Returns nil, nil when the session
	// does not exist and nil, ErrExpired when it exists but expired.
	Get(ctx context.Context, id string) (*Session, error)

	// Set stores a session.
	Set(ctx context.Context, sess *Session) error

	// Delete removes a session. Deleting a missing session is a no-op.
	Delete(ctx context.Context, id string) error

	// List returns the ids of every live session.
	List(ctx context.Context) ([]string, error)

	// Cleanup removes expired sessions. May be a no-op for backends with
	// native expiry.
	Cleanup(ctx context.Context) error
}

// Recorder keeps the most recent transactions applied to an engine. It is
// safe for concurrent use, though the engine records from one goroutine.
type Recorder struct {
	mu      sync.Mutex
	limit   int
	txs     []trace.Transaction
	dropped int
}

// DefaultRingSize bounds a recorder when no limit is given.
const DefaultRingSize = 256

// NewRecorder creates a recorder keeping at most limit transactions;
// limit <= 0 means [DefaultRingSize].
func NewRecorder(limit int) *Recorder {
	if limit <= 0 {
		limit = DefaultRingSize
	}
	return &Recorder{limit: limit}
}

// Record appends one transaction, evicting the oldest when full.
func (r *Recorder) Record(tx trace.Transaction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.txs) == r.limit {
		copy(r.txs, r.txs[1:])
		r.txs = r.txs[:len(r.txs)-1]
		r.dropped++
	}
	r.txs = append(r.txs, tx)
}

// Transactions returns a copy of the recorded ring, oldest first.
func (r *Recorder) Transactions() []trace.Transaction {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]trace.Transaction, len(r.txs))
	copy(out, r.txs)
	return out
}

// Dropped returns how many transactions were evicted from the ring.
func (r *Recorder) Dropped() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Reset clears the ring.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.txs = nil
	r.dropped = 0
}

// Session freezes the ring into a new session ending in the given snapshot.
func (r *Recorder) Session(name string, final trace.Snapshot) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:           uuid.NewString(),
		Name:         name,
		CreatedAt:    now,
		ExpiresAt:    now.Add(DefaultTTL),
		Dropped:      r.Dropped(),
		Transactions: r.Transactions(),
		Final:        final,
	}
}
