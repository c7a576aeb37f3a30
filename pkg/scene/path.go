package scene

import (
	"fmt"
	"slices"
	"strings"

	"github.com/strata-gfx/strata/pkg/layer"
)

// Path identifies one visit instance of a node during a walk. Because a
// node can be reached through more than one chain of edges (mirrors,
// relative parents), the visited layer id alone is ambiguous; the path adds
// the ordered mirror roots crossed on the way, which together with the id
// form the visit identity ([Path.Equal]).
//
// Paths additionally accumulate the relative roots entered along the walk.
// These are diagnostic, not identity: they exist to detect relative-parent
// cycles ([Path.HasRelZLoop]) and are excluded from equality.
type Path struct {
	// Layer is the id of the visited layer, layer.None at a synthetic root.
	Layer layer.ID
	// Kind is the relationship by which the node was reached.
	Kind Kind

	mirrorRoots   []layer.ID
	relativeRoots []layer.ID
	loopLayer     layer.ID
}

// RootPath returns the path value a walk starts from.
func RootPath() Path {
	return Path{Layer: layer.None, Kind: KindAttached}
}

// MirrorRoots returns a copy of the mirror roots crossed on the way to the
// node, outermost first.
func (p Path) MirrorRoots() []layer.ID {
	return slices.Clone(p.mirrorRoots)
}

// IsRelative reports whether the node was reached through its relative
// parent.
func (p Path) IsRelative() bool {
	return p.Kind == KindRelative
}

// HasRelZLoop reports whether the walk crossed a relative edge whose target
// was already a relative root of this path. Flagged paths are visited once
// and never descended into; consumers assembling a paint order must exclude
// them.
func (p Path) HasRelZLoop() bool {
	return p.loopLayer != layer.None
}

// LoopLayer returns the relative root that repeated, or layer.None when the
// path is clean.
func (p Path) LoopLayer() layer.ID {
	return p.loopLayer
}

// Equal reports whether two paths identify the same visit instance: same
// layer reached through the same chain of mirror roots.
func (p Path) Equal(other Path) bool {
	return p.Layer == other.Layer && slices.Equal(p.mirrorRoots, other.mirrorRoots)
}

// Clone returns a path safe to retain after the visitor call returns. The
// path value passed to a visitor shares its stacks with the in-progress
// walk and is only valid during the call.
func (p Path) Clone() Path {
	p.mirrorRoots = slices.Clone(p.mirrorRoots)
	p.relativeRoots = slices.Clone(p.relativeRoots)
	return p
}

// String renders the path for logs and debug dumps.
func (p Path) String() string {
	var b strings.Builder
	if p.Layer == layer.None {
		b.WriteString("root")
	} else {
		fmt.Fprintf(&b, "%d", p.Layer)
	}
	if len(p.mirrorRoots) > 0 {
		fmt.Fprintf(&b, " via mirrors %v", p.mirrorRoots)
	}
	if p.IsRelative() {
		b.WriteString(" (relative)")
	}
	if p.HasRelZLoop() {
		fmt.Fprintf(&b, " [relative loop at %d]", p.loopLayer)
	}
	return b.String()
}

// pathMark captures everything needed to restore a path after one descent
// step.
type pathMark struct {
	layer       layer.ID
	kind        Kind
	mirrorLen   int
	relativeLen int
	loopLayer   layer.ID
}

// push extends the path by one (layer, kind) hop and returns a mark undoing
// it. Entering a mirror records a new mirror root; entering a relative
// parent records a relative root, and re-entering one already on the path
// flags the loop. The push still happens when a loop is flagged so the
// marked frame describes the offending edge.
//
// Every push pairs with exactly one pop on every exit from the descent, so
// a path threaded through a whole walk ends structurally identical to how
// it started.
func (p *Path) push(id layer.ID, kind Kind) pathMark {
	m := pathMark{
		layer:       p.Layer,
		kind:        p.Kind,
		mirrorLen:   len(p.mirrorRoots),
		relativeLen: len(p.relativeRoots),
		loopLayer:   p.loopLayer,
	}
	p.Layer = id
	p.Kind = kind
	switch kind {
	case KindMirror:
		p.mirrorRoots = append(p.mirrorRoots, id)
	case KindRelative:
		if slices.Contains(p.relativeRoots, id) {
			p.loopLayer = id
		}
		p.relativeRoots = append(p.relativeRoots, id)
	}
	return m
}

// pop restores the path to the state captured by the mark.
func (p *Path) pop(m pathMark) {
	p.Layer = m.layer
	p.Kind = m.kind
	p.mirrorRoots = p.mirrorRoots[:m.mirrorLen]
	p.relativeRoots = p.relativeRoots[:m.relativeLen]
	p.loopLayer = m.loopLayer
}
