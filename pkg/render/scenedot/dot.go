// Package scenedot renders layer hierarchies as Graphviz diagrams.
//
// [ToDOT] flattens a hierarchy into DOT source; [RenderSVG] and [RenderPNG]
// rasterize it. Because the hierarchy is a DAG, a layer reached through a
// mirror appears once per visit instance, each as its own diagram node, so
// the drawn picture matches what a traversal sees rather than the flat
// record list.
package scenedot

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"slices"
	"strconv"

	"github.com/goccy/go-graphviz"

	"github.com/strata-gfx/strata/pkg/errors"
	"github.com/strata-gfx/strata/pkg/layer"
	"github.com/strata-gfx/strata/pkg/scene"
)

// Options configures DOT generation.
type Options struct {
	// Detailed includes z values and record ids in node labels.
	Detailed bool
}

// ToDOT converts a hierarchy view to Graphviz DOT source. Edge styling
// follows relationship kind: attached edges are solid, detached edges
// dotted, relative edges dashed, mirror edges dashed and labelled. A
// relative loop is drawn once and annotated instead of unrolling.
func ToDOT(g *scene.Graph, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph hierarchy {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, margin=\"0.2,0.1\"];\n")
	buf.WriteString("\n")

	w := &dotWriter{g: g, buf: &buf, opts: opts}
	if root := g.Root(); root != nil {
		w.emit(root)
	}

	buf.WriteString("}\n")
	return buf.String()
}

type dotWriter struct {
	g       *scene.Graph
	buf     *bytes.Buffer
	opts    Options
	counter int
	// relRoots mirrors the traversal's relative-root stack so cloned
	// relative loops terminate.
	relRoots []layer.ID
}

func (w *dotWriter) emit(n *scene.Node) string {
	id := fmt.Sprintf("n%d", w.counter)
	w.counter++
	fmt.Fprintf(w.buf, "  %s [label=%q%s];\n", id, w.label(n), nodeAttrs(n))

	for _, e := range n.Children() {
		child := w.g.Node(e.Child)
		if child == nil {
			continue
		}
		if e.Kind == scene.KindRelative {
			if slices.Contains(w.relRoots, child.LayerID()) {
				// Close the loop visually instead of descending again.
				fmt.Fprintf(w.buf, "  %s -> %s [style=dashed, color=red, label=\"relative loop\"];\n", id, id)
				continue
			}
			w.relRoots = append(w.relRoots, child.LayerID())
		}
		childID := w.emit(child)
		fmt.Fprintf(w.buf, "  %s -> %s%s;\n", id, childID, edgeAttrs(e.Kind))
		if e.Kind == scene.KindRelative {
			w.relRoots = w.relRoots[:len(w.relRoots)-1]
		}
	}
	return id
}

func (w *dotWriter) label(n *scene.Node) string {
	rec := n.Record()
	if rec == nil {
		switch n.Key() {
		case scene.RootKey:
			return "root"
		case scene.OffscreenKey:
			return "offscreen"
		default:
			return "(empty mirror)"
		}
	}
	name := rec.Name
	if name == "" {
		name = fmt.Sprintf("layer %d", rec.ID)
	}
	if !w.opts.Detailed {
		return name
	}
	return fmt.Sprintf("%s\nid=%d z=%d", name, rec.ID, rec.Z)
}

func nodeAttrs(n *scene.Node) string {
	if n.Record() == nil {
		return ", style=\"rounded,filled,dashed\", fillcolor=lightgrey"
	}
	if !n.Record().Visible {
		return ", fillcolor=grey90, fontcolor=grey40"
	}
	return ""
}

func edgeAttrs(k scene.Kind) string {
	switch k {
	case scene.KindDetached:
		return " [style=dotted, color=grey50, label=\"detached\"]"
	case scene.KindRelative:
		return " [style=dashed, color=blue, label=\"relative\"]"
	case scene.KindMirror:
		return " [style=dashed, color=purple, label=\"mirror\"]"
	default:
		return ""
	}
}

// RenderSVG renders DOT source to SVG using Graphviz.
func RenderSVG(dot string) ([]byte, error) {
	return render(dot, graphviz.SVG, normalizeViewBox)
}

// RenderPNG renders DOT source to PNG using Graphviz.
func RenderPNG(dot string) ([]byte, error) {
	return render(dot, graphviz.PNG, nil)
}

func render(dot string, format graphviz.Format, post func([]byte) []byte) ([]byte, error) {
	ctx := context.Background()
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeRender, err, "init graphviz")
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeRender, err, "parse DOT")
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, format, &buf); err != nil {
		return nil, errors.Wrap(errors.ErrCodeRender, err, "render %s", format)
	}
	out := buf.Bytes()
	if post != nil {
		out = post(out)
	}
	return out, nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox rewrites the SVG root element so the diagram scales to
// its container.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	newSvg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(newSvg))
}
