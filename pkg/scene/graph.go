package scene

import "github.com/strata-gfx/strata/pkg/layer"

// Graph is a read-only view of the hierarchy reachable from one root node.
// Views returned by [Builder.Hierarchy] and [Builder.OffscreenHierarchy]
// window the builder's own arena; views returned by
// [Builder.PartialHierarchy] own a detached copy.
type Graph struct {
	arena *arena
	root  Key
}

// Visitor receives the visited node and the path by which it was reached,
// and reports whether to descend into the node's children. Returning false
// prunes the subtree; siblings are still visited. Both references are valid
// only for the duration of the call ([Path.Clone] copies the path for
// retention).
type Visitor func(n *Node, p Path) bool

// Root returns the root node of the view, or nil for an empty view.
func (g *Graph) Root() *Node {
	if g == nil {
		return nil
	}
	return g.arena.node(g.root)
}

// Node returns the node a key addresses within this view, or nil when the
// key is unknown. Like all node references, the result is invalidated by
// the next mutation.
func (g *Graph) Node(k Key) *Node {
	if g == nil {
		return nil
	}
	return g.arena.node(k)
}

// Len returns the number of nodes reachable in this view, excluding the
// synthetic roots. A layer reachable through several edges (a relative
// layer, a mirror clone) counts once per node, like [Builder.Len] but
// scoped to the view's root.
func (g *Graph) Len() int {
	if g == nil || g.Root() == nil {
		return 0
	}
	count := 0
	seen := map[Key]bool{g.root: true}
	if g.root != RootKey && g.root != OffscreenKey {
		count++
	}
	stack := []Key{g.root}
	for len(stack) > 0 {
		k := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, e := range g.arena.node(k).children {
			if seen[e.Child] || g.arena.node(e.Child) == nil {
				continue
			}
			seen[e.Child] = true
			count++
			stack = append(stack, e.Child)
		}
	}
	return count
}

// Traverse walks the graph depth-first across every relationship kind,
// including Detached and Mirror edges, so each layer is visited from every
// graph position it holds. A path that flags a relative loop is delivered
// to the visitor once and not descended into.
func (g *Graph) Traverse(visit Visitor) {
	root := g.Root()
	if root == nil {
		return
	}
	path := startPath(root)
	g.walk(root, &path, visit)
}

func (g *Graph) walk(n *Node, path *Path, visit Visitor) {
	if n.record != nil && !visit(n, *path) {
		return
	}
	if path.HasRelZLoop() {
		return
	}
	for _, e := range n.children {
		child := g.arena.node(e.Child)
		if child == nil {
			continue
		}
		m := path.push(child.LayerID(), e.Kind)
		g.walk(child, path, visit)
		path.pop(m)
	}
}

// TraverseInZOrder walks the graph in paint order: Detached edges are
// skipped (a relatively parented layer draws only at its relative
// position), each node's Attached, Relative, and Mirror children form one
// z-sorted sibling set, and the node itself is emitted between its
// negative-z and non-negative-z children.
func (g *Graph) TraverseInZOrder(visit Visitor) {
	root := g.Root()
	if root == nil {
		return
	}
	path := startPath(root)
	g.walkZOrder(root, &path, visit)
}

func (g *Graph) walkZOrder(n *Node, path *Path, visit Visitor) {
	if path.HasRelZLoop() {
		if n.record != nil {
			visit(n, *path)
		}
		return
	}
	pending := n.record != nil
	for _, e := range n.children {
		child := g.arena.node(e.Child)
		if child == nil {
			continue
		}
		if pending && child.Z() >= 0 {
			pending = false
			if !visit(n, *path) {
				return
			}
		}
		if e.Kind == KindDetached {
			continue
		}
		m := path.push(child.LayerID(), e.Kind)
		g.walkZOrder(child, path, visit)
		path.pop(m)
	}
	if pending {
		visit(n, *path)
	}
}

// DetectRelZLoop walks the graph and reports one layer participating in a
// relative-parent cycle, if any. The walk itself is loop-safe; this entry
// point exists for offline validation and for callers that repair loops.
func (g *Graph) DetectRelZLoop() (layer.ID, bool) {
	looped := layer.None
	g.Traverse(func(_ *Node, p Path) bool {
		if looped == layer.None && p.HasRelZLoop() {
			looped = p.LoopLayer()
			return false
		}
		return true
	})
	return looped, looped != layer.None
}

// startPath builds the initial path for a walk. Detached partial views can
// be rooted at a real node, in which case the root is its own first visit.
func startPath(root *Node) Path {
	p := RootPath()
	if root.record != nil {
		p.Layer = root.record.ID
	}
	return p
}
