package scene

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/strata-gfx/strata/pkg/layer"
)

// Key addresses one node in a builder's arena. Canonical nodes (the single
// graph position a record holds by itself) use ordinal 0; mirror clones and
// detached snapshots of the same layer get fresh ordinals. Keys are stable:
// they stay valid across updates until the node is destroyed, and edges
// reference keys rather than node pointers.
type Key struct {
	Layer   layer.ID
	Ordinal uint32
}

const (
	rootOrdinal      uint32 = 1
	offscreenOrdinal uint32 = 2
)

var (
	// NoKey is the zero Key, meaning "no reference".
	NoKey = Key{}
	// RootKey addresses the synthetic root the displayed hierarchy hangs
	// under.
	RootKey = Key{Layer: layer.None, Ordinal: rootOrdinal}
	// OffscreenKey addresses the synthetic root collecting layers that are
	// not reachable from the displayed root.
	OffscreenKey = Key{Layer: layer.None, Ordinal: offscreenOrdinal}
)

// IsNone reports whether the key references nothing.
func (k Key) IsNone() bool {
	return k == NoKey
}

// IsClone reports whether the key addresses a clone rather than a canonical
// node or a synthetic root. Empty clones share layer.None with the roots
// but sit above the reserved ordinals.
func (k Key) IsClone() bool {
	if k.Layer != layer.None {
		return k.Ordinal > 0
	}
	return k.Ordinal > offscreenOrdinal
}

// String renders the key for debug output.
func (k Key) String() string {
	switch k {
	case NoKey:
		return "none"
	case RootKey:
		return "root"
	case OffscreenKey:
		return "offscreen"
	}
	if k.Ordinal == 0 {
		return fmt.Sprintf("%d", k.Layer)
	}
	return fmt.Sprintf("%d#%d", k.Layer, k.Ordinal)
}

// Edge is one entry in a node's ordered child list.
type Edge struct {
	Child Key
	Kind  Kind
}

// Node is one vertex of the hierarchy: an owned topology position wrapping
// a shared, non-owned layer record. The two synthetic roots and empty
// mirror clones carry a nil record.
//
// Nodes are owned by their builder. References obtained during traversal
// are invalidated by the next update.
type Node struct {
	key      Key
	seq      uint64
	record   *layer.State
	parent   Key
	relative Key
	children []Edge
}

// Key returns the node's arena address.
func (n *Node) Key() Key {
	return n.key
}

// Record returns the shared layer record, or nil for synthetic nodes.
func (n *Node) Record() *layer.State {
	return n.record
}

// LayerID returns the id of the wrapped record, or layer.None for synthetic
// nodes.
func (n *Node) LayerID() layer.ID {
	if n.record == nil {
		return layer.None
	}
	return n.record.ID
}

// Z returns the record's z value, or 0 for synthetic nodes.
func (n *Node) Z() int32 {
	if n.record == nil {
		return 0
	}
	return n.record.Z
}

// Parent returns the key of the structural parent, NoKey if unattached.
func (n *Node) Parent() Key {
	return n.parent
}

// RelativeParent returns the key of the relative parent, NoKey if the layer
// is not relatively parented.
func (n *Node) RelativeParent() Key {
	return n.relative
}

// Children returns a copy of the ordered child edges.
func (n *Node) Children() []Edge {
	return slices.Clone(n.children)
}

func (n *Node) addChild(child Key, kind Kind) {
	n.children = append(n.children, Edge{Child: child, Kind: kind})
}

// isStructural reports whether a kind is a structural edge. A layer whose
// structural and relative parents are the same node holds two edges there,
// so edge removal and rewrites are always scoped by kind class.
func isStructural(k Kind) bool {
	return k == KindAttached || k == KindDetached
}

// kindIs returns a match predicate for exactly one kind.
func kindIs(want Kind) func(Kind) bool {
	return func(k Kind) bool { return k == want }
}

// removeChildEdge removes the first edge to child whose kind satisfies
// match, reporting whether one was found.
func (n *Node) removeChildEdge(child Key, match func(Kind) bool) bool {
	for i, e := range n.children {
		if e.Child == child && match(e.Kind) {
			n.children = slices.Delete(n.children, i, i+1)
			return true
		}
	}
	return false
}

// setStructuralChildKind rewrites the kind of the structural edge to child,
// flipping it between Attached and Detached as relative parenting comes and
// goes.
func (n *Node) setStructuralChildKind(child Key, kind Kind) bool {
	for i, e := range n.children {
		if e.Child == child && isStructural(e.Kind) {
			n.children[i].Kind = kind
			return true
		}
	}
	return false
}

// sortChildrenByZ sorts the child edges by the referenced record's z value;
// node creation order breaks ties. Re-resolving a changed record re-appends
// its edge, so ordering ties on the edge list would drift from what a
// scratch build of the same records produces; creation order does not.
func (n *Node) sortChildrenByZ(a *arena) {
	slices.SortStableFunc(n.children, func(x, y Edge) int {
		if c := cmp.Compare(a.z(x.Child), a.z(y.Child)); c != 0 {
			return c
		}
		return cmp.Compare(a.seqOf(x.Child), a.seqOf(y.Child))
	})
}

// arena is the single keyed collection owning every node of one builder.
type arena struct {
	nodes    map[Key]*Node
	ordinals map[layer.ID]uint32
	// nextSeq numbers nodes in creation order for z tie-breaking.
	nextSeq uint64
}

func newArena() *arena {
	return &arena{
		nodes: make(map[Key]*Node),
		// Reserve the synthetic ordinals so clones of record-less nodes
		// cannot collide with the roots.
		ordinals: map[layer.ID]uint32{layer.None: offscreenOrdinal},
	}
}

// addSynthetic installs a record-less node at a fixed key (the roots).
func (a *arena) addSynthetic(k Key) *Node {
	a.nextSeq++
	n := &Node{key: k, seq: a.nextSeq}
	a.nodes[k] = n
	return n
}

// addCanonical installs the ordinal-0 node for a record.
func (a *arena) addCanonical(rec *layer.State) *Node {
	a.nextSeq++
	n := &Node{key: Key{Layer: rec.ID}, seq: a.nextSeq, record: rec}
	a.nodes[n.key] = n
	return n
}

// addClone installs a node sharing rec (which may be nil for an empty
// clone) under a fresh ordinal. Ordinals are never reused, keeping clone
// keys stable for their whole lifetime.
func (a *arena) addClone(rec *layer.State) *Node {
	id := layer.None
	if rec != nil {
		id = rec.ID
	}
	a.ordinals[id]++
	a.nextSeq++
	n := &Node{key: Key{Layer: id, Ordinal: a.ordinals[id]}, seq: a.nextSeq, record: rec}
	a.nodes[n.key] = n
	return n
}

func (a *arena) node(k Key) *Node {
	return a.nodes[k]
}

// canonical returns the ordinal-0 node for a layer id.
func (a *arena) canonical(id layer.ID) (*Node, bool) {
	n, ok := a.nodes[Key{Layer: id}]
	return n, ok
}

func (a *arena) remove(k Key) {
	delete(a.nodes, k)
}

// z returns the z value of the node at k, 0 when missing.
func (a *arena) z(k Key) int32 {
	if n := a.nodes[k]; n != nil {
		return n.Z()
	}
	return 0
}

// seqOf returns the creation sequence of the node at k, 0 when missing.
func (a *arena) seqOf(k Key) uint64 {
	if n := a.nodes[k]; n != nil {
		return n.seq
	}
	return 0
}

// canonicalNodes returns every canonical node sorted by layer id, giving
// mutation passes a deterministic order.
func (a *arena) canonicalNodes() []*Node {
	var out []*Node
	for k, n := range a.nodes {
		if k.Ordinal == 0 && k.Layer != layer.None {
			out = append(out, n)
		}
	}
	slices.SortFunc(out, func(x, y *Node) int {
		return cmp.Compare(x.key.Layer, y.key.Layer)
	})
	return out
}

// len reports the number of nodes excluding the synthetic roots.
func (a *arena) len() int {
	n := len(a.nodes)
	if _, ok := a.nodes[RootKey]; ok {
		n--
	}
	if _, ok := a.nodes[OffscreenKey]; ok {
		n--
	}
	return n
}
