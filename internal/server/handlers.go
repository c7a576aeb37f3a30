package server

import (
	"encoding/json"
	"net/http"
	"slices"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/strata-gfx/strata/pkg/errors"
	"github.com/strata-gfx/strata/pkg/layer"
	"github.com/strata-gfx/strata/pkg/render/scenedot"
	"github.com/strata-gfx/strata/pkg/scene"
	"github.com/strata-gfx/strata/pkg/trace"
)

// treeNode is the JSON shape of one hierarchy position. A layer reached
// through a mirror appears once per position, like a traversal sees it.
type treeNode struct {
	Layer   uint32 `json:"layer,omitempty"`
	Name    string `json:"name,omitempty"`
	Z       int32  `json:"z"`
	Display uint32 `json:"display,omitempty"`
	Visible bool   `json:"visible"`
	// Kind is the relationship by which this node hangs under its parent.
	Kind string `json:"kind,omitempty"`
	// RelativeLoop marks the position where a relative-parent cycle closed.
	RelativeLoop bool       `json:"relative_loop,omitempty"`
	Children     []treeNode `json:"children,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleHierarchy(w http.ResponseWriter, _ *http.Request) {
	var resp struct {
		Root      treeNode `json:"root"`
		Offscreen treeNode `json:"offscreen"`
	}
	s.engine.View(func(hierarchy, offscreen *scene.Graph) {
		resp.Root = buildTree(hierarchy, "root")
		resp.Offscreen = buildTree(offscreen, "offscreen")
	})
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSubtree(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		writeError(w, errors.New(errors.ErrCodeInvalidInput, "invalid layer id %q", raw))
		return
	}
	childrenOnly := r.URL.Query().Get("children_only") == "true"

	g, err := s.engine.Subtree(layer.ID(id), childrenOnly)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, buildTree(g, ""))
}

func (s *Server) handleZOrder(w http.ResponseWriter, r *http.Request) {
	paint := s.engine.PaintOrder()

	type entry struct {
		Layer uint32 `json:"layer"`
		Name  string `json:"name,omitempty"`
		Z     int32  `json:"z"`
	}
	type displayList struct {
		Display uint32  `json:"display"`
		Entries []entry `json:"entries"`
	}
	toList := func(display uint32) displayList {
		dl := displayList{Display: display, Entries: []entry{}}
		for _, e := range paint[display] {
			dl.Entries = append(dl.Entries, entry{Layer: uint32(e.Layer), Name: e.Name, Z: e.Z})
		}
		return dl
	}

	if raw := r.URL.Query().Get("display"); raw != "" {
		display, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			writeError(w, errors.New(errors.ErrCodeInvalidDisplay, "invalid display %q", raw))
			return
		}
		writeJSON(w, http.StatusOK, toList(uint32(display)))
		return
	}

	displays := make([]uint32, 0, len(paint))
	for d := range paint {
		displays = append(displays, d)
	}
	slices.Sort(displays)
	lists := make([]displayList, 0, len(displays))
	for _, d := range displays {
		lists = append(lists, toList(d))
	}
	writeJSON(w, http.StatusOK, map[string]any{"displays": lists})
}

func (s *Server) handleValidate(w http.ResponseWriter, _ *http.Request) {
	id, looped := s.engine.Validate()
	resp := map[string]any{"ok": !looped}
	if looped {
		resp["loop_layer"] = uint32(id)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRenderSVG(w http.ResponseWriter, r *http.Request) {
	opts := scenedot.Options{Detailed: r.URL.Query().Get("detailed") == "true"}
	var dot string
	s.engine.View(func(hierarchy, _ *scene.Graph) {
		dot = scenedot.ToDOT(hierarchy, opts)
	})

	svg, err := scenedot.RenderSVG(dot)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(svg)
}

func (s *Server) handleTransaction(w http.ResponseWriter, r *http.Request) {
	var tx trace.Transaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		writeError(w, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode transaction"))
		return
	}

	res, err := s.engine.Apply(r.Context(), tx.ToLayerTransaction())
	if err != nil {
		writeError(w, err)
		return
	}

	resp := struct {
		Changed    int      `json:"changed"`
		Destroyed  int      `json:"destroyed"`
		Nodes      int      `json:"nodes"`
		Looped     bool     `json:"looped"`
		LoopLayer  uint32   `json:"loop_layer,omitempty"`
		Repaired   []uint32 `json:"repaired,omitempty"`
		DurationMS float64  `json:"duration_ms"`
	}{
		Changed:    res.Changed,
		Destroyed:  res.Destroyed,
		Nodes:      res.Nodes,
		Looped:     res.Looped,
		LoopLayer:  uint32(res.LoopLayer),
		DurationMS: float64(res.Duration.Microseconds()) / 1000,
	}
	for _, id := range res.Repaired {
		resp.Repaired = append(resp.Repaired, uint32(id))
	}
	writeJSON(w, http.StatusOK, resp)
}

// buildTree serializes a graph into nested JSON nodes. rootName labels a
// synthetic root; real roots are labelled by their record.
func buildTree(g *scene.Graph, rootName string) treeNode {
	root := g.Root()
	if root == nil {
		return treeNode{Name: rootName}
	}
	b := treeBuilder{g: g}
	t := b.node(root, scene.KindAttached)
	if root.Record() == nil {
		t.Name = rootName
		t.Kind = ""
	}
	return t
}

type treeBuilder struct {
	g        *scene.Graph
	relRoots []layer.ID
}

func (b *treeBuilder) node(n *scene.Node, kind scene.Kind) treeNode {
	t := treeNode{Kind: kind.String()}
	if rec := n.Record(); rec != nil {
		t.Layer = uint32(rec.ID)
		t.Name = rec.Name
		t.Z = rec.Z
		t.Display = rec.Display
		t.Visible = rec.Visible
	}
	for _, e := range n.Children() {
		child := b.g.Node(e.Child)
		if child == nil {
			continue
		}
		if e.Kind == scene.KindRelative {
			if slices.Contains(b.relRoots, child.LayerID()) {
				t.RelativeLoop = true
				continue
			}
			b.relRoots = append(b.relRoots, child.LayerID())
		}
		t.Children = append(t.Children, b.node(child, e.Kind))
		if e.Kind == scene.KindRelative {
			b.relRoots = b.relRoots[:len(b.relRoots)-1]
		}
	}
	return t
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	code := errors.GetCode(err)
	status := http.StatusInternalServerError
	switch code {
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidLayer,
		errors.ErrCodeInvalidTransaction, errors.ErrCodeInvalidDisplay,
		errors.ErrCodeInvalidFormat, errors.ErrCodeInvalidScene:
		status = http.StatusBadRequest
	case errors.ErrCodeNotFound, errors.ErrCodeLayerNotFound,
		errors.ErrCodeFileNotFound, errors.ErrCodeSessionNotFound:
		status = http.StatusNotFound
	}

	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    string(code),
			"message": errors.UserMessage(err),
		},
	})
}
