package cli

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/strata-gfx/strata/pkg/layer"
	"github.com/strata-gfx/strata/pkg/scene"
)

// treeRow is one hierarchy position, flattened for terminal display. A
// layer reached through a mirror appears once per position, matching what a
// traversal sees.
type treeRow struct {
	Depth   int
	Kind    scene.Kind
	Layer   layer.ID
	Name    string
	Z       int32
	Display uint32
	Visible bool
	// Loop marks the row where a relative-parent cycle closed; the walk
	// does not descend past it.
	Loop bool
}

// hierarchyRows flattens a graph depth-first across every relationship
// kind. Synthetic roots are omitted; their children start at depth 0.
func hierarchyRows(g *scene.Graph) []treeRow {
	root := g.Root()
	if root == nil {
		return nil
	}

	var rows []treeRow
	var relRoots []layer.ID
	var walk func(n *scene.Node, kind scene.Kind, depth int)
	walk = func(n *scene.Node, kind scene.Kind, depth int) {
		next := depth
		if rec := n.Record(); rec != nil {
			rows = append(rows, treeRow{
				Depth:   depth,
				Kind:    kind,
				Layer:   rec.ID,
				Name:    rec.Name,
				Z:       rec.Z,
				Display: rec.Display,
				Visible: rec.Visible,
			})
			next++
		}
		for _, e := range n.Children() {
			child := g.Node(e.Child)
			if child == nil {
				continue
			}
			if e.Kind == scene.KindRelative {
				if slices.Contains(relRoots, child.LayerID()) {
					rows = append(rows, treeRow{
						Depth: next,
						Kind:  e.Kind,
						Layer: child.LayerID(),
						Loop:  true,
					})
					continue
				}
				relRoots = append(relRoots, child.LayerID())
			}
			walk(child, e.Kind, next)
			if e.Kind == scene.KindRelative {
				relRoots = relRoots[:len(relRoots)-1]
			}
		}
	}
	walk(root, scene.KindAttached, 0)
	return rows
}

// renderRow formats one row for display, without indentation.
func renderRow(r treeRow) string {
	if r.Loop {
		return styleError.Render(fmt.Sprintf("%s relative loop at layer %d", iconLoop, r.Layer))
	}

	name := r.Name
	if name == "" {
		name = fmt.Sprintf("layer %d", r.Layer)
	}
	label := styleValue.Render(name)
	if !r.Visible {
		label = styleDim.Render(name)
	}

	meta := styleDim.Render(fmt.Sprintf("  id=%d z=%d", r.Layer, r.Z))
	if r.Display != 0 {
		meta += styleDim.Render(fmt.Sprintf(" display=%d", r.Display))
	}

	switch r.Kind {
	case scene.KindDetached:
		return styleDetached.Render("┄ ") + label + meta + styleDetached.Render(" (detached)")
	case scene.KindRelative:
		return styleRelative.Render("→ ") + label + meta + styleRelative.Render(" (relative)")
	case scene.KindMirror:
		return styleMirror.Render("▚ ") + label + meta + styleMirror.Render(" (mirror)")
	default:
		return label + meta
	}
}

// writeTree prints the rows of a graph, indented by depth.
func writeTree(w io.Writer, g *scene.Graph) {
	for _, r := range hierarchyRows(g) {
		fmt.Fprintln(w, strings.Repeat("  ", r.Depth)+renderRow(r))
	}
}
