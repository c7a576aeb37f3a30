package scene

import (
	"slices"

	"github.com/strata-gfx/strata/pkg/errors"
	"github.com/strata-gfx/strata/pkg/layer"
)

// cloner copies a subtree's topology into a destination arena. Records are
// shared, topology nodes are fresh. The mapping memo keeps the copy
// faithful to DAG structure: a node reached by two edges (a relative layer
// is both Detached and Relative) is cloned once and referenced twice, and a
// cloned relative loop stays a loop instead of unrolling forever.
type cloner struct {
	src, dst *arena
	mapping  map[Key]Key
}

func (c *cloner) clone(srcKey Key) Key {
	if mapped, ok := c.mapping[srcKey]; ok {
		return mapped
	}
	src := c.src.node(srcKey)
	if src == nil {
		return c.dst.addClone(nil).key
	}
	cl := c.dst.addClone(src.record)
	c.mapping[srcKey] = cl.key
	for _, e := range src.children {
		childKey := c.clone(e.Child)
		cl.addChild(childKey, e.Kind)
		child := c.dst.node(childKey)
		switch e.Kind {
		case KindAttached, KindDetached, KindMirror:
			child.parent = cl.key
		case KindRelative:
			child.relative = cl.key
		}
	}
	return cl.key
}

// PartialHierarchy returns a detached snapshot of the subtree rooted at the
// given layer: fresh topology in its own arena, sharing records with the
// live graph. With childrenOnly the snapshot root is synthetic and only the
// layer's children are copied. The snapshot stays coherent while the
// builder keeps updating, so consumers can walk it without holding the
// commit path.
func (b *Builder) PartialHierarchy(id layer.ID, childrenOnly bool) (*Graph, error) {
	src, ok := b.arena.canonical(id)
	if !ok {
		return nil, errors.New(errors.ErrCodeLayerNotFound, "layer %d has no hierarchy node", id)
	}
	dst := newArena()
	c := &cloner{src: b.arena, dst: dst, mapping: make(map[Key]Key)}

	if !childrenOnly {
		return &Graph{arena: dst, root: c.clone(src.key)}, nil
	}

	root := dst.addSynthetic(RootKey)
	for _, e := range src.children {
		childKey := c.clone(e.Child)
		root.addChild(childKey, e.Kind)
		child := dst.node(childKey)
		if e.Kind == KindRelative {
			child.relative = root.key
		} else {
			child.parent = root.key
		}
	}
	return &Graph{arena: dst, root: root.key}, nil
}

// regenerateMirrors drops every mirror clone and rebuilds each mirror
// owner's content from the source's current topology. Owners are ordered
// so that one whose source subtree contains another owner clones after it,
// keeping nested mirrors current within a single update.
func (b *Builder) regenerateMirrors() {
	canon := b.arena.canonicalNodes()
	var owners []*Node
	for _, n := range canon {
		for _, e := range slices.Clone(n.children) {
			if e.Kind == KindMirror {
				n.removeChildEdge(e.Child, kindIs(KindMirror))
				b.removeCloneSubtree(e.Child)
				b.markDirty(n.key)
			}
		}
		if n.record.MirrorSource != layer.None {
			owners = append(owners, n)
		}
	}

	for _, owner := range b.orderMirrorOwners(owners) {
		contentKey := b.cloneMirrorContent(owner.record.MirrorSource)
		owner.addChild(contentKey, KindMirror)
		if content := b.arena.node(contentKey); content != nil {
			content.parent = owner.key
		}
		b.markDirty(owner.key)
		b.markSubtreeDirty(contentKey)
	}
}

// cloneMirrorContent clones the subtree of a mirror source into the
// builder's own arena. A missing source resolves to an empty clone, so the
// mirror edge exists with no content and heals on the update that creates
// the source.
func (b *Builder) cloneMirrorContent(sourceID layer.ID) Key {
	src, ok := b.arena.canonical(sourceID)
	if !ok {
		return b.arena.addClone(nil).key
	}
	c := &cloner{src: b.arena, dst: b.arena, mapping: make(map[Key]Key)}
	return c.clone(src.key)
}

// orderMirrorOwners sorts mirror owners so dependencies clone first. Owner
// X depends on owner Y when Y sits inside the subtree X mirrors; cloning Y
// first means X copies Y's fresh content. Mutually nested mirrors have no
// valid order and fall back to id order, materializing one nesting level
// per update.
func (b *Builder) orderMirrorOwners(owners []*Node) []*Node {
	if len(owners) < 2 {
		return owners
	}

	contains := make(map[layer.ID]map[layer.ID]bool, len(owners))
	for _, o := range owners {
		ids := make(map[layer.ID]bool)
		if src, ok := b.arena.canonical(o.record.MirrorSource); ok {
			view := &Graph{arena: b.arena, root: src.key}
			view.Traverse(func(n *Node, _ Path) bool {
				ids[n.LayerID()] = true
				return true
			})
		}
		contains[o.LayerID()] = ids
	}

	indegree := make(map[layer.ID]int, len(owners))
	dependents := make(map[layer.ID][]layer.ID)
	for _, x := range owners {
		for _, y := range owners {
			if x == y {
				continue
			}
			if contains[x.LayerID()][y.LayerID()] {
				indegree[x.LayerID()]++
				dependents[y.LayerID()] = append(dependents[y.LayerID()], x.LayerID())
			}
		}
	}

	byID := make(map[layer.ID]*Node, len(owners))
	var queue []layer.ID
	for _, o := range owners {
		byID[o.LayerID()] = o
		if indegree[o.LayerID()] == 0 {
			queue = append(queue, o.LayerID())
		}
	}

	ordered := make([]*Node, 0, len(owners))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		ordered = append(ordered, byID[id])
		for _, dep := range dependents[id] {
			indegree[dep]--
			if indegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	// Cyclic remainder, already in id order via owners.
	for _, o := range owners {
		if indegree[o.LayerID()] > 0 {
			ordered = append(ordered, o)
		}
	}
	return ordered
}

// removeCloneSubtree deletes a clone and everything beneath it from the
// arena. Clone subtrees are closed over clone keys, so canonical nodes are
// never touched.
func (b *Builder) removeCloneSubtree(k Key) {
	if !k.IsClone() {
		return
	}
	seen := make(map[Key]bool)
	var rm func(Key)
	rm = func(k Key) {
		if seen[k] {
			return
		}
		seen[k] = true
		n := b.arena.node(k)
		if n == nil {
			return
		}
		for _, e := range n.children {
			rm(e.Child)
		}
		b.arena.remove(k)
	}
	rm(k)
}

// markSubtreeDirty queues a freshly cloned subtree for the z sort pass.
func (b *Builder) markSubtreeDirty(k Key) {
	seen := make(map[Key]bool)
	var mark func(Key)
	mark = func(k Key) {
		if seen[k] {
			return
		}
		seen[k] = true
		n := b.arena.node(k)
		if n == nil {
			return
		}
		b.markDirty(k)
		for _, e := range n.children {
			mark(e.Child)
		}
	}
	mark(k)
}
