package scene

import (
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/strata-gfx/strata/pkg/layer"
)

func rec(id, parent layer.ID, z int32) *layer.State {
	return &layer.State{ID: id, Name: fmt.Sprintf("layer-%d", id), Parent: parent, Z: z, Visible: true}
}

func relRec(id, parent, relParent layer.ID, z int32) *layer.State {
	r := rec(id, parent, z)
	r.RelativeParent = relParent
	return r
}

func mirrorRec(id, parent, source layer.ID, z int32) *layer.State {
	r := rec(id, parent, z)
	r.MirrorSource = source
	return r
}

func mustBuilder(t *testing.T, records ...*layer.State) *Builder {
	t.Helper()
	b, err := NewBuilder(records)
	if err != nil {
		t.Fatalf("NewBuilder() error = %v", err)
	}
	return b
}

// zOrderIDs flattens a z-order traversal into visited layer ids.
func zOrderIDs(g *Graph) []layer.ID {
	var out []layer.ID
	g.TraverseInZOrder(func(n *Node, _ Path) bool {
		out = append(out, n.LayerID())
		return true
	})
	return out
}

// visits flattens a plain traversal into "id/kind" strings.
func visits(g *Graph) []string {
	var out []string
	g.Traverse(func(n *Node, p Path) bool {
		out = append(out, fmt.Sprintf("%d/%s", n.LayerID(), p.Kind))
		return true
	})
	return out
}

func TestTraverseInZOrder_AscendingZ(t *testing.T) {
	// Children inserted as z=3, z=1, z=2; paint order must be ascending.
	b := mustBuilder(t,
		rec(1, layer.None, 0),
		rec(2, 1, 3),
		rec(3, 1, 1),
		rec(4, 1, 2),
	)

	got := zOrderIDs(b.Hierarchy())
	want := []layer.ID{1, 3, 4, 2}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("z-order = %v, want %v", got, want)
	}
}

func TestTraverseInZOrder_StableTies(t *testing.T) {
	b := mustBuilder(t,
		rec(1, layer.None, 0),
		rec(2, 1, 5),
		rec(3, 1, 5),
		rec(4, 1, 5),
	)

	got := zOrderIDs(b.Hierarchy())
	want := []layer.ID{1, 2, 3, 4}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("z-order = %v, want %v (insertion order on ties)", got, want)
	}
}

func TestTraverseInZOrder_NegativeZPaintsBelowParent(t *testing.T) {
	b := mustBuilder(t,
		rec(1, layer.None, 0),
		rec(2, 1, -1),
		rec(3, 1, 4),
	)

	got := zOrderIDs(b.Hierarchy())
	want := []layer.ID{2, 1, 3}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("z-order = %v, want %v", got, want)
	}
}

func TestTraverse_VisitsBothPositionsOfRelativeLayer(t *testing.T) {
	// Layer 3 nests under 2 but z-orders relative to 1.
	b := mustBuilder(t,
		rec(1, layer.None, 0),
		rec(2, layer.None, 1),
		relRec(3, 2, 1, 0),
	)

	got := visits(b.Hierarchy())
	var detached, relative bool
	for _, v := range got {
		switch v {
		case "3/detached":
			detached = true
		case "3/relative":
			relative = true
		}
	}
	if !detached || !relative {
		t.Errorf("visits = %v, want layer 3 seen as both detached and relative", got)
	}
}

func TestTraverseInZOrder_SkipsDetached(t *testing.T) {
	b := mustBuilder(t,
		rec(1, layer.None, 0),
		rec(2, layer.None, 1),
		relRec(3, 2, 1, 0),
	)

	var count int
	var kind Kind
	b.Hierarchy().TraverseInZOrder(func(n *Node, p Path) bool {
		if n.LayerID() == 3 {
			count++
			kind = p.Kind
		}
		return true
	})
	if count != 1 {
		t.Fatalf("layer 3 visited %d times in z-order, want 1", count)
	}
	if kind != KindRelative {
		t.Errorf("layer 3 reached as %v, want relative", kind)
	}
}

func TestTraverseInZOrder_RelativeInterleavesWithSiblings(t *testing.T) {
	// Layer 4 nests under 3 but interleaves into 1's children by z.
	b := mustBuilder(t,
		rec(1, layer.None, 0),
		rec(2, 1, 1),
		rec(3, 1, 5),
		relRec(4, 3, 1, 3),
	)

	got := zOrderIDs(b.Hierarchy())
	want := []layer.ID{1, 2, 4, 3}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("z-order = %v, want %v", got, want)
	}
}

func TestTraverse_PruneSkipsSubtreeNotSiblings(t *testing.T) {
	b := mustBuilder(t,
		rec(1, layer.None, 0),
		rec(2, 1, 0),
		rec(3, 2, 0), // grandchild under the pruned branch
		rec(4, 1, 1),
	)

	var got []layer.ID
	b.Hierarchy().Traverse(func(n *Node, _ Path) bool {
		got = append(got, n.LayerID())
		return n.LayerID() != 2
	})
	want := []layer.ID{1, 2, 4}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("visits = %v, want %v (3 pruned, 4 still visited)", got, want)
	}
}

func TestRelativeLoop_FlaggedAndBounded(t *testing.T) {
	// 2 and 3 are each other's relative parent.
	b := mustBuilder(t,
		rec(1, layer.None, 0),
		relRec(2, 1, 3, 0),
		relRec(3, 1, 2, 1),
	)

	var flagged []layer.ID
	var total int
	b.Hierarchy().Traverse(func(n *Node, p Path) bool {
		total++
		if p.HasRelZLoop() {
			flagged = append(flagged, p.LoopLayer())
		}
		return true
	})
	if len(flagged) == 0 {
		t.Fatal("no flagged paths for a relative-parent cycle")
	}
	for _, id := range flagged {
		if id != 2 && id != 3 {
			t.Errorf("loop layer = %d, want 2 or 3", id)
		}
	}
	if total > 20 {
		t.Errorf("traverse visited %d nodes, loop not bounded", total)
	}

	id, ok := b.Hierarchy().DetectRelZLoop()
	if !ok {
		t.Fatal("DetectRelZLoop() = false, want true")
	}
	if id != 2 && id != 3 {
		t.Errorf("DetectRelZLoop() = %d, want 2 or 3", id)
	}
}

func TestDetectRelZLoop_CleanGraph(t *testing.T) {
	b := mustBuilder(t,
		rec(1, layer.None, 0),
		relRec(2, 1, 1, 0),
	)
	if id, ok := b.Hierarchy().DetectRelZLoop(); ok {
		t.Errorf("DetectRelZLoop() = %d, true on a clean graph", id)
	}
}

func TestMirror_SharesRecordsNotTopology(t *testing.T) {
	source := rec(2, 1, 0)
	child := rec(3, 2, 1)
	b := mustBuilder(t,
		rec(1, layer.None, 0),
		source,
		child,
		mirrorRec(4, 1, 2, 5),
	)

	var original, mirrored *Node
	b.Hierarchy().Traverse(func(n *Node, p Path) bool {
		if n.LayerID() == 2 {
			if len(p.MirrorRoots()) == 0 {
				original = n
			} else {
				mirrored = n
			}
		}
		return true
	})
	if original == nil || mirrored == nil {
		t.Fatal("layer 2 not visited both directly and through the mirror")
	}
	if original.Key() == mirrored.Key() {
		t.Error("mirror clone shares the original's key")
	}
	if original.Record() != mirrored.Record() {
		t.Error("mirror clone does not share the original's record")
	}

	// A record change is observed through both positions.
	source.Z = 9
	if original.Z() != 9 || mirrored.Z() != 9 {
		t.Errorf("z after record change = %d/%d, want 9/9", original.Z(), mirrored.Z())
	}
}

func TestMirror_PathRecordsMirrorRoot(t *testing.T) {
	b := mustBuilder(t,
		rec(1, layer.None, 0),
		rec(2, 1, 0),
		rec(3, 2, 0),
		mirrorRec(4, 1, 2, 5),
	)

	var got []layer.ID
	b.Hierarchy().Traverse(func(n *Node, p Path) bool {
		if n.LayerID() == 3 && len(p.MirrorRoots()) > 0 {
			got = p.MirrorRoots()
		}
		return true
	})
	if !reflect.DeepEqual(got, []layer.ID{2}) {
		t.Errorf("mirror roots for mirrored grandchild = %v, want [2]", got)
	}
}

func TestLen_ScopedToView(t *testing.T) {
	b := mustBuilder(t,
		rec(1, layer.None, 0),
		rec(2, 1, 0),
		rec(3, 99, 0), // dangling parent, lands offscreen
		mirrorRec(4, 1, 2, 5),
	)

	// Main view: 1, 2, 4, and 4's clone of 2. The offscreen layer is not
	// reachable here and must not count.
	if got := b.Hierarchy().Len(); got != 4 {
		t.Errorf("Hierarchy().Len() = %d, want 4", got)
	}
	if got := b.OffscreenHierarchy().Len(); got != 1 {
		t.Errorf("OffscreenHierarchy().Len() = %d, want 1", got)
	}
	// The builder still owns everything: four canonical nodes plus the
	// mirror clone.
	if got := b.Len(); got != 5 {
		t.Errorf("Builder.Len() = %d, want 5", got)
	}
}

func TestDebugString(t *testing.T) {
	b := mustBuilder(t,
		rec(1, layer.None, 0),
		relRec(2, 1, 1, 3),
	)

	dump := b.Hierarchy().DebugString()
	for _, want := range []string{"layer-1", "layer-2", "z=3", "[relative]", "[detached]"} {
		if !strings.Contains(dump, want) {
			t.Errorf("DebugString() missing %q:\n%s", want, dump)
		}
	}
}
