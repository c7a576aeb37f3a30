// Package engine ties the record store and the hierarchy builder into one
// committing facade.
//
// An [Engine] owns a [layer.Store] and a [scene.Builder], applies
// transactions against both, re-validates the result, and pushes derived
// state (input window lists, capture records) to its collaborators. All
// methods are safe for concurrent use; internally every mutation and every
// consistent read happens under one lock, honoring the store's
// single-writer contract.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/strata-gfx/strata/pkg/capture"
	"github.com/strata-gfx/strata/pkg/errors"
	"github.com/strata-gfx/strata/pkg/input"
	"github.com/strata-gfx/strata/pkg/layer"
	"github.com/strata-gfx/strata/pkg/observability"
	"github.com/strata-gfx/strata/pkg/scene"
	"github.com/strata-gfx/strata/pkg/trace"
	"github.com/strata-gfx/strata/pkg/zorder"
)

// Engine owns the authoritative scene state: the flat record store and the
// hierarchy kept in sync with it.
type Engine struct {
	mu      sync.Mutex
	store   *layer.Store
	builder *scene.Builder

	logger     *log.Logger
	dispatcher input.Dispatcher
	recorder   *capture.Recorder

	strict bool
	repair bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithStrict makes hierarchy lookup misses fail the transaction instead of
// being skipped and logged.
func WithStrict(strict bool) Option {
	return func(e *Engine) { e.strict = strict }
}

// WithLoopRepair enables relative-loop repair: after every apply that leaves
// the hierarchy with a flagged loop, the engine detaches one offending
// relative edge per round until the graph validates clean. Off by default;
// the default policy keeps the graph faithful to the records and lets
// consumers skip flagged paths.
func WithLoopRepair(repair bool) Option {
	return func(e *Engine) { e.repair = repair }
}

// WithDispatcher registers the input dispatcher that receives per-display
// window lists after every apply.
func WithDispatcher(d input.Dispatcher) Option {
	return func(e *Engine) { e.dispatcher = d }
}

// WithRecorder registers a capture recorder; every successfully applied
// transaction is recorded.
func WithRecorder(r *capture.Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithLogger sets the engine's logger. Defaults to log.Default().
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New builds an engine from an initial record list.
func New(initial []layer.State, opts ...Option) (*Engine, error) {
	e := &Engine{logger: log.Default()}
	for _, opt := range opts {
		opt(e)
	}

	store, err := layer.NewStore(initial)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidLayer, err, "initial records")
	}
	e.store = store

	builder, err := scene.NewBuilder(store.All(),
		scene.WithStrict(e.strict),
		scene.WithMissHandler(e.onMiss))
	if err != nil {
		return nil, err
	}
	e.builder = builder

	if e.repair {
		if _, err := e.repairLoops(context.Background()); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func (e *Engine) onMiss(op string, id layer.ID) {
	e.logger.Warn("hierarchy lookup miss", "op", op, "layer", uint32(id))
	observability.Engine().OnLookupMiss(context.Background(), op, uint32(id))
}

// Result reports what one apply did.
type Result struct {
	// Changed and Destroyed count the records the transaction touched.
	Changed   int
	Destroyed int
	// Nodes is the total node count after the apply, clones included.
	Nodes int
	// Looped reports a flagged relative loop in the displayed hierarchy
	// after the apply, with LoopLayer naming the first flagged layer.
	// With loop repair enabled Looped is always false on success.
	Looped    bool
	LoopLayer layer.ID
	// Repaired lists the layers whose relative edge the loop-repair policy
	// detached this apply.
	Repaired []layer.ID
	Duration time.Duration
}

// Apply commits one transaction to the store, feeds the delta to the
// hierarchy builder, re-validates, and publishes the resulting input-window
// lists to the dispatcher. On a validation error neither the store nor the
// hierarchy changes.
func (e *Engine) Apply(ctx context.Context, tx layer.Transaction) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	observability.Engine().OnCommitStart(ctx, tx.Name)

	res, err := e.apply(ctx, tx)
	res.Duration = time.Since(start)
	observability.Engine().OnCommitComplete(ctx, tx.Name, res.Nodes, res.Duration, err)
	if err != nil {
		return res, err
	}

	if e.recorder != nil {
		e.recorder.Record(trace.FromLayerTransaction(tx))
	}
	if e.dispatcher != nil {
		// A failed publish leaves the commit intact; the next apply
		// republishes the full window set anyway.
		if perr := e.publishLocked(ctx); perr != nil {
			e.logger.Warn("input window publish failed", "err", perr)
		}
	}
	return res, nil
}

func (e *Engine) apply(ctx context.Context, tx layer.Transaction) (Result, error) {
	delta, err := e.store.Commit(tx)
	if err != nil {
		return Result{}, errors.Wrap(errors.ErrCodeInvalidTransaction, err, "commit %q", tx.Name)
	}

	added := make([]*layer.State, 0, len(delta.Changed))
	for _, id := range delta.Changed {
		if rec, ok := e.store.Get(id); ok {
			added = append(added, rec)
		}
	}
	if err := e.builder.Update(added, delta.Destroyed); err != nil {
		return Result{}, err
	}
	observability.Engine().OnUpdate(ctx, len(delta.Changed), len(delta.Destroyed))

	res := Result{
		Changed:   len(delta.Changed),
		Destroyed: len(delta.Destroyed),
	}
	if e.repair {
		repaired, err := e.repairLoops(ctx)
		if err != nil {
			return res, err
		}
		res.Repaired = repaired
	}
	if id, looped := e.builder.Hierarchy().DetectRelZLoop(); looped {
		res.Looped, res.LoopLayer = true, id
		e.logger.Warn("relative loop in hierarchy", "layer", uint32(id))
		observability.Engine().OnRelativeLoop(ctx, uint32(id))
	}
	res.Nodes = e.builder.Len()
	return res, nil
}

// repairLoops detaches one offending relative edge per detection round until
// the displayed hierarchy is loop-free. The record keeps declaring the
// relative parent, so a later record change may reintroduce the loop and be
// repaired again.
func (e *Engine) repairLoops(ctx context.Context) ([]layer.ID, error) {
	var repaired []layer.ID
	// Each round removes an edge, so the record count bounds the rounds.
	for range e.store.Len() + 1 {
		id, looped := e.builder.Hierarchy().DetectRelZLoop()
		if !looped {
			return repaired, nil
		}
		e.logger.Warn("repairing relative loop", "layer", uint32(id))
		observability.Engine().OnRelativeLoop(ctx, uint32(id))
		if err := e.builder.DetachRelative(id); err != nil {
			return repaired, err
		}
		repaired = append(repaired, id)
	}
	return repaired, errors.New(errors.ErrCodeRelativeLoop, "loop repair did not converge")
}

// PublishInputWindows derives the current per-display window lists and hands
// them to the dispatcher.
func (e *Engine) PublishInputWindows(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dispatcher == nil {
		return errors.New(errors.ErrCodeUnsupported, "no input dispatcher configured")
	}
	return e.publishLocked(ctx)
}

func (e *Engine) publishLocked(ctx context.Context) error {
	windows := zorder.InputWindows(e.builder.Hierarchy())
	return e.dispatcher.SetInputWindows(ctx, windows)
}

// Snapshot captures the full engine state: records, edges, paint order, and
// the loop flag.
func (e *Engine) Snapshot() trace.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return trace.Capture(e.store, e.builder)
}

// Validate re-checks the displayed hierarchy for relative loops.
func (e *Engine) Validate() (layer.ID, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.builder.Hierarchy().DetectRelZLoop()
}

// PaintOrder returns the current per-display paint lists, bottom-up.
func (e *Engine) PaintOrder() map[uint32][]zorder.Entry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return zorder.PaintOrder(e.builder.Hierarchy())
}

// Layer returns a copy of one record.
func (e *Engine) Layer(id layer.ID) (layer.State, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rec, ok := e.store.Get(id)
	if !ok {
		return layer.State{}, false
	}
	return *rec, true
}

// Records returns copies of every record, in store order.
func (e *Engine) Records() []layer.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	all := e.store.All()
	out := make([]layer.State, 0, len(all))
	for _, rec := range all {
		out = append(out, *rec)
	}
	return out
}

// Subtree returns a detached snapshot of the hierarchy below one layer,
// safe to walk without blocking later applies. With childrenOnly the
// snapshot root is synthetic and holds only the layer's children.
func (e *Engine) Subtree(id layer.ID, childrenOnly bool) (*scene.Graph, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.builder.PartialHierarchy(id, childrenOnly)
}

// View runs fn with the engine lock held, giving it consistent read access
// to the displayed and offscreen hierarchies. fn must not retain either
// graph or any node past its return, and must not call back into the
// engine.
func (e *Engine) View(fn func(hierarchy, offscreen *scene.Graph)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.builder.Hierarchy(), e.builder.OffscreenHierarchy())
}
