package scene

import (
	"slices"

	"github.com/strata-gfx/strata/pkg/errors"
	"github.com/strata-gfx/strata/pkg/layer"
)

// Builder owns the full node set (displayed tree, offscreen tree, and every
// mirror clone) and keeps it a faithful reflection of the record collection
// across full rebuilds and incremental deltas.
//
// Lookup discipline: by default the builder fails soft — an operation
// naming a layer with no node (a destroy for an id never seen, a stale
// delta) is skipped, and the optional miss handler is told. [WithStrict]
// turns those conditions into INTERNAL_ERROR returns from [Builder.Update]
// for callers that prefer an invariant violation to a silent no-op.
type Builder struct {
	arena  *arena
	strict bool
	onMiss func(op string, id layer.ID)

	// pending maps a missing parent id to the layers waiting to attach
	// under it; waiters re-resolve when the id shows up.
	pending map[layer.ID][]layer.ID
	// parked holds layers sent offscreen because their declared parent
	// would close a structural cycle. Any record change can break the
	// cycle, so every update retries them.
	parked map[layer.ID]struct{}
	// dirty collects nodes whose children need a z re-sort this update.
	dirty map[Key]struct{}
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithStrict makes lookup misses during updates fail fast with an
// INTERNAL_ERROR instead of skipping soft. Intended for tests and debug
// builds.
func WithStrict(strict bool) BuilderOption {
	return func(b *Builder) { b.strict = strict }
}

// WithMissHandler registers a callback invoked on every soft-skipped lookup
// miss. The handler runs on the committing goroutine and must not call back
// into the builder.
func WithMissHandler(fn func(op string, id layer.ID)) BuilderOption {
	return func(b *Builder) { b.onMiss = fn }
}

// NewBuilder constructs the hierarchy for the given record list. Records
// whose declared parent is missing or would create a structural cycle hang
// under the offscreen root.
func NewBuilder(records []*layer.State, opts ...BuilderOption) (*Builder, error) {
	b := &Builder{
		arena:   newArena(),
		pending: make(map[layer.ID][]layer.ID),
		parked:  make(map[layer.ID]struct{}),
		dirty:   make(map[Key]struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.arena.addSynthetic(RootKey)
	b.arena.addSynthetic(OffscreenKey)
	if err := b.Update(records, nil); err != nil {
		return nil, err
	}
	return b, nil
}

// Hierarchy returns the displayed tree rooted at the main root.
func (b *Builder) Hierarchy() *Graph {
	return &Graph{arena: b.arena, root: RootKey}
}

// OffscreenHierarchy returns the tree of layers not reachable from the main
// root.
func (b *Builder) OffscreenHierarchy() *Graph {
	return &Graph{arena: b.arena, root: OffscreenKey}
}

// Lookup returns the canonical node for a layer id. Callers decide how to
// treat a miss; the builder imposes no policy here.
func (b *Builder) Lookup(id layer.ID) (*Node, bool) {
	return b.arena.canonical(id)
}

// Len returns the number of nodes the builder owns, clones included,
// excluding the two synthetic roots.
func (b *Builder) Len() int {
	return b.arena.len()
}

// Update applies one record delta: added holds records that were created or
// changed this cycle, destroyed the ids that went away. Forward references
// inside the batch resolve because nodes for every added record exist
// before any edge does; references to layers from a later update attach
// offscreen and heal when the target arrives, and a parent link rejected
// for closing a cycle heals once a change elsewhere breaks the cycle.
// Mirror clones are rebuilt from current topology at the end of every
// update.
func (b *Builder) Update(added []*layer.State, destroyed []layer.ID) error {
	for _, rec := range added {
		if rec == nil || rec.ID == layer.None {
			continue
		}
		if n, ok := b.arena.canonical(rec.ID); ok {
			n.record = rec
			continue
		}
		b.arena.addCanonical(rec)
	}

	for _, id := range destroyed {
		if err := b.destroyLayer(id); err != nil {
			return err
		}
	}

	for _, rec := range added {
		if rec == nil || rec.ID == layer.None {
			continue
		}
		if err := b.resolveLayer(rec.ID); err != nil {
			return err
		}
	}

	if err := b.retryParked(); err != nil {
		return err
	}
	b.regenerateMirrors()
	b.sortDirty()
	return nil
}

// DetachRelative removes the relative-parent edge of the given layer,
// restoring it to plain structural attachment. The record keeps declaring
// the relative parent, so the edge returns on the layer's next record
// change; this is the repair primitive loop policies use, not a state
// change.
func (b *Builder) DetachRelative(id layer.ID) error {
	n, ok := b.arena.canonical(id)
	if !ok {
		return b.miss("detach-relative", id)
	}
	b.detachFromRelativeParent(n)
	b.regenerateMirrors()
	b.sortDirty()
	return nil
}

func (b *Builder) destroyLayer(id layer.ID) error {
	n, ok := b.arena.canonical(id)
	if !ok {
		return b.miss("destroy", id)
	}

	b.detachFromRelativeParent(n)
	b.detachFromParent(n)

	edges := n.children
	n.children = nil
	for _, e := range edges {
		child := b.arena.node(e.Child)
		if child == nil {
			continue
		}
		switch e.Kind {
		case KindAttached, KindDetached:
			// Structural children fall to the offscreen root. They keep
			// their detachment state and wait for the declared parent id
			// in case it is created again.
			b.arena.node(OffscreenKey).addChild(child.key, e.Kind)
			child.parent = OffscreenKey
			if child.record != nil {
				b.addPending(child.record.Parent, child.record.ID)
			}
			b.markDirty(OffscreenKey)
		case KindRelative:
			// Relative children of a destroyed relative parent return to
			// pure structural attachment until the parent id is recreated.
			child.relative = NoKey
			if p := b.arena.node(child.parent); p != nil {
				p.setStructuralChildKind(child.key, KindAttached)
				b.markDirty(p.key)
			}
			if child.record != nil {
				b.addPending(child.record.RelativeParent, child.record.ID)
			}
		case KindMirror:
			b.removeCloneSubtree(e.Child)
		}
	}

	b.arena.remove(n.key)
	b.dropWaiter(id)
	delete(b.parked, id)
	return nil
}

func (b *Builder) resolveLayer(id layer.ID) error {
	n, ok := b.arena.canonical(id)
	if !ok {
		return b.miss("update", id)
	}
	b.detachFromRelativeParent(n)
	b.detachFromParent(n)
	b.attachToParent(n)
	b.attachToRelativeParent(n)
	return b.drainPending(id)
}

func (b *Builder) attachToParent(n *Node) {
	target := RootKey
	delete(b.parked, n.record.ID)
	if want := n.record.Parent; want != layer.None {
		switch p, ok := b.arena.canonical(want); {
		case !ok:
			// Not created yet: park offscreen and re-resolve when the
			// parent arrives.
			target = OffscreenKey
			b.addPending(want, n.record.ID)
		case b.wouldCycle(n, p):
			// A parent inside the layer's own subtree is invalid. A
			// change to any record in the chain can break the cycle, so
			// the layer is parked and retried every update.
			target = OffscreenKey
			b.parked[n.record.ID] = struct{}{}
		default:
			target = p.key
		}
	}
	b.arena.node(target).addChild(n.key, KindAttached)
	n.parent = target
	b.markDirty(target)
}

func (b *Builder) attachToRelativeParent(n *Node) {
	want := n.record.RelativeParent
	if want == layer.None {
		return
	}
	rp, ok := b.arena.canonical(want)
	if !ok {
		// Dangling relative parent: the layer stays purely structural
		// until the target shows up.
		b.addPending(want, n.record.ID)
		return
	}
	rp.addChild(n.key, KindRelative)
	n.relative = rp.key
	if p := b.arena.node(n.parent); p != nil {
		p.setStructuralChildKind(n.key, KindDetached)
		b.markDirty(p.key)
	}
	b.markDirty(rp.key)
}

func (b *Builder) detachFromParent(n *Node) {
	if n.parent.IsNone() {
		return
	}
	if p := b.arena.node(n.parent); p != nil {
		p.removeChildEdge(n.key, isStructural)
		b.markDirty(p.key)
	}
	n.parent = NoKey
}

func (b *Builder) detachFromRelativeParent(n *Node) {
	if n.relative.IsNone() {
		return
	}
	if rp := b.arena.node(n.relative); rp != nil {
		rp.removeChildEdge(n.key, kindIs(KindRelative))
		b.markDirty(rp.key)
	}
	n.relative = NoKey
	if p := b.arena.node(n.parent); p != nil {
		p.setStructuralChildKind(n.key, KindAttached)
		b.markDirty(p.key)
	}
}

// wouldCycle reports whether attaching n under parent would close a
// structural cycle, by walking parent's ancestor chain.
func (b *Builder) wouldCycle(n, parent *Node) bool {
	for k := parent.key; !k.IsNone(); {
		if k == n.key {
			return true
		}
		pn := b.arena.node(k)
		if pn == nil {
			break
		}
		k = pn.parent
	}
	return false
}

func (b *Builder) addPending(parentID, childID layer.ID) {
	if parentID == layer.None || parentID == childID {
		return
	}
	if slices.Contains(b.pending[parentID], childID) {
		return
	}
	b.pending[parentID] = append(b.pending[parentID], childID)
}

// drainPending re-resolves the layers that were waiting for id to exist.
func (b *Builder) drainPending(id layer.ID) error {
	waiters := b.pending[id]
	if len(waiters) == 0 {
		return nil
	}
	delete(b.pending, id)
	for _, w := range waiters {
		if _, ok := b.arena.canonical(w); !ok {
			continue
		}
		if err := b.resolveLayer(w); err != nil {
			return err
		}
	}
	return nil
}

// retryParked re-resolves layers that were parked for a would-be structural
// cycle. Rounds continue until a full pass frees nobody; each successful
// re-attach can unblock the next layer in the rejected chain, so the node
// count bounds the rounds.
func (b *Builder) retryParked() error {
	for range b.arena.len() + 1 {
		ids := make([]layer.ID, 0, len(b.parked))
		for id := range b.parked {
			ids = append(ids, id)
		}
		slices.Sort(ids)

		progress := false
		for _, id := range ids {
			if _, ok := b.arena.canonical(id); !ok {
				delete(b.parked, id)
				continue
			}
			if err := b.resolveLayer(id); err != nil {
				return err
			}
			if _, still := b.parked[id]; !still {
				progress = true
			}
		}
		if !progress {
			break
		}
	}
	return nil
}

// dropWaiter removes a destroyed layer from every waiting list.
func (b *Builder) dropWaiter(id layer.ID) {
	for parentID, waiters := range b.pending {
		waiters = slices.DeleteFunc(waiters, func(w layer.ID) bool { return w == id })
		if len(waiters) == 0 {
			delete(b.pending, parentID)
			continue
		}
		b.pending[parentID] = waiters
	}
}

func (b *Builder) markDirty(k Key) {
	b.dirty[k] = struct{}{}
}

func (b *Builder) sortDirty() {
	for k := range b.dirty {
		if n := b.arena.node(k); n != nil {
			n.sortChildrenByZ(b.arena)
		}
	}
	clear(b.dirty)
}

func (b *Builder) miss(op string, id layer.ID) error {
	if b.onMiss != nil {
		b.onMiss(op, id)
	}
	if b.strict {
		return errors.New(errors.ErrCodeInternal, "%s: no hierarchy node for layer %d", op, id)
	}
	return nil
}
