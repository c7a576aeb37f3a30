// Package zorder flattens z-ordered hierarchy traversals into the linear
// lists downstream consumers want: bottom-up paint lists per display and
// top-down input-window lists for the dispatch boundary.
package zorder

import (
	"slices"

	"github.com/strata-gfx/strata/pkg/input"
	"github.com/strata-gfx/strata/pkg/layer"
	"github.com/strata-gfx/strata/pkg/scene"
)

// Entry is one visit of a z-ordered traversal, flattened.
type Entry struct {
	Layer   layer.ID
	Name    string
	Z       int32
	Display uint32
	Visible bool
	// Flagged marks an entry reached through a relative-parent loop.
	// Paint and input lists exclude flagged entries.
	Flagged bool
	// Path identifies the visit instance; retained via Path.Clone.
	Path scene.Path
}

// Options controls which entries a flatten keeps.
type Options struct {
	// IncludeInvisible keeps layers with Visible == false.
	IncludeInvisible bool
	// IncludeFlagged keeps entries on flagged loop paths. Paint and input
	// consumers must leave this off; diagnostic feeds may want it.
	IncludeFlagged bool
}

// Flatten walks the graph in z-order and returns one entry per visited
// layer, bottom-up. Synthetic nodes are skipped.
func Flatten(g *scene.Graph, opts Options) []Entry {
	var out []Entry
	g.TraverseInZOrder(func(n *scene.Node, p scene.Path) bool {
		rec := n.Record()
		if rec == nil {
			return true
		}
		if p.HasRelZLoop() && !opts.IncludeFlagged {
			return true
		}
		if !rec.Visible && !opts.IncludeInvisible {
			return true
		}
		out = append(out, Entry{
			Layer:   rec.ID,
			Name:    rec.Name,
			Z:       rec.Z,
			Display: rec.Display,
			Visible: rec.Visible,
			Flagged: p.HasRelZLoop(),
			Path:    p.Clone(),
		})
		return true
	})
	return out
}

// PaintOrder groups a flatten by display, keeping the bottom-up order
// within each display. Flagged and invisible entries are excluded.
func PaintOrder(g *scene.Graph) map[uint32][]Entry {
	out := make(map[uint32][]Entry)
	for _, e := range Flatten(g, Options{}) {
		out[e.Display] = append(out[e.Display], e)
	}
	return out
}

// TopDown returns a reversed copy of a paint list, front-most entry first.
func TopDown(entries []Entry) []Entry {
	out := slices.Clone(entries)
	slices.Reverse(out)
	return out
}

// InputWindows derives the per-display window lists the input dispatcher
// consumes: top-down, visible only, loop-free.
func InputWindows(g *scene.Graph) map[uint32][]input.WindowInfo {
	out := make(map[uint32][]input.WindowInfo)
	for display, entries := range PaintOrder(g) {
		ws := make([]input.WindowInfo, 0, len(entries))
		for _, e := range TopDown(entries) {
			ws = append(ws, input.WindowInfo{
				Layer:   e.Layer,
				Name:    e.Name,
				Display: e.Display,
				Z:       e.Z,
				Visible: e.Visible,
			})
		}
		out[display] = ws
	}
	return out
}
