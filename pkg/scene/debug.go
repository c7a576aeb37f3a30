package scene

import (
	"fmt"
	"strings"
)

// DebugString renders the graph as an indented tree for diagnostics. Each
// line shows the node key, the layer name, the z value, and the
// relationship by which the node hangs under its parent. Relative loops are
// marked and not descended into.
func (g *Graph) DebugString() string {
	root := g.Root()
	if root == nil {
		return ""
	}
	var b strings.Builder
	path := startPath(root)
	g.dump(&b, root, &path, 0, KindAttached)
	return b.String()
}

func (g *Graph) dump(b *strings.Builder, n *Node, path *Path, depth int, kind Kind) {
	b.WriteString(strings.Repeat("  ", depth))
	b.WriteString(g.nodeLabel(n, kind, *path))
	b.WriteByte('\n')
	if path.HasRelZLoop() {
		return
	}
	for _, e := range n.children {
		child := g.arena.node(e.Child)
		if child == nil {
			continue
		}
		m := path.push(child.LayerID(), e.Kind)
		g.dump(b, child, path, depth+1, e.Kind)
		path.pop(m)
	}
}

func (g *Graph) nodeLabel(n *Node, kind Kind, path Path) string {
	if n.record == nil {
		switch n.key {
		case RootKey:
			return "root"
		case OffscreenKey:
			return "offscreen"
		default:
			return "(empty mirror)"
		}
	}

	var b strings.Builder
	b.WriteString(n.key.String())
	if n.record.Name != "" {
		b.WriteByte(' ')
		b.WriteString(n.record.Name)
	}
	fmt.Fprintf(&b, " z=%d", n.record.Z)
	if kind != KindAttached {
		fmt.Fprintf(&b, " [%s]", kind)
	}
	if path.HasRelZLoop() {
		fmt.Fprintf(&b, " [relative loop at %d]", path.LoopLayer())
	}
	return b.String()
}
