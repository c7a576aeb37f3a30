package engine

import (
	"context"
	"testing"

	"github.com/strata-gfx/strata/pkg/capture"
	"github.com/strata-gfx/strata/pkg/errors"
	"github.com/strata-gfx/strata/pkg/input"
	"github.com/strata-gfx/strata/pkg/layer"
	"github.com/strata-gfx/strata/pkg/scene"
)

func baseScene() []layer.State {
	return []layer.State{
		{ID: 1, Name: "wallpaper", Z: 0, Visible: true},
		{ID: 2, Name: "app", Parent: 1, Z: 2, Visible: true},
		{ID: 3, Name: "status-bar", Parent: 1, Z: 1, Visible: true},
	}
}

func TestNew(t *testing.T) {
	e, err := New(baseScene())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	paint := e.PaintOrder()[0]
	want := []layer.ID{1, 3, 2}
	if len(paint) != len(want) {
		t.Fatalf("paint list = %v, want ids %v", paint, want)
	}
	for i, entry := range paint {
		if entry.Layer != want[i] {
			t.Errorf("paint[%d] = layer %d, want %d", i, entry.Layer, want[i])
		}
	}
}

func TestNew_InvalidRecords(t *testing.T) {
	_, err := New([]layer.State{{ID: 1, Parent: 1}})
	if !errors.Is(err, errors.ErrCodeInvalidLayer) {
		t.Errorf("New() error = %v, want %v", err, errors.ErrCodeInvalidLayer)
	}
}

func TestApply(t *testing.T) {
	e, err := New(baseScene())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	res, err := e.Apply(context.Background(), layer.Transaction{
		Name:    "open-dialog",
		Create:  []layer.State{{ID: 4, Name: "dialog", Parent: 2, Z: 1, Visible: true}},
		Set:     []layer.State{{ID: 3, Name: "status-bar", Parent: 1, Z: 5, Visible: true}},
		Destroy: []layer.ID{1},
	})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if res.Changed != 2 || res.Destroyed != 1 {
		t.Errorf("Result = changed %d destroyed %d, want 2 and 1", res.Changed, res.Destroyed)
	}
	if res.Looped {
		t.Error("Result.Looped = true for clean scene")
	}

	if _, ok := e.Layer(1); ok {
		t.Error("Layer(1) still present after destroy")
	}
	if rec, ok := e.Layer(3); !ok || rec.Z != 5 {
		t.Errorf("Layer(3) = %+v, %v; want z 5", rec, ok)
	}
}

func TestApply_InvalidTransactionLeavesStateIntact(t *testing.T) {
	e, err := New(baseScene())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = e.Apply(context.Background(), layer.Transaction{Destroy: []layer.ID{99}})
	if !errors.Is(err, errors.ErrCodeInvalidTransaction) {
		t.Fatalf("Apply() error = %v, want %v", err, errors.ErrCodeInvalidTransaction)
	}

	if got := len(e.Records()); got != 3 {
		t.Errorf("len(Records()) = %d after failed apply, want 3", got)
	}
}

func TestApply_CreateDestroySameTransaction(t *testing.T) {
	// A record that never outlives its own transaction reaches neither the
	// store nor the hierarchy; strict mode must not treat the destroy as a
	// lookup miss.
	e, err := New(nil, WithStrict(true))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	res, err := e.Apply(context.Background(), layer.Transaction{
		Name:    "flicker",
		Create:  []layer.State{{ID: 7, Name: "ghost", Visible: true}},
		Destroy: []layer.ID{7},
	})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if res.Changed != 0 || res.Destroyed != 0 {
		t.Errorf("Result = changed %d destroyed %d, want 0 and 0", res.Changed, res.Destroyed)
	}
	if _, ok := e.Layer(7); ok {
		t.Error("Layer(7) present after same-transaction destroy")
	}
}

func TestApply_PublishesInputWindows(t *testing.T) {
	fake := input.NewFake()
	e, err := New(baseScene(), WithDispatcher(fake))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := e.Apply(context.Background(), layer.Transaction{
		Create: []layer.State{{ID: 4, Name: "toast", Parent: 1, Z: 9, Visible: true}},
	}); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	ws := fake.Windows(0)
	want := []layer.ID{4, 2, 3, 1} // top-down
	if len(ws) != len(want) {
		t.Fatalf("Windows(0) = %v, want ids %v", ws, want)
	}
	for i, w := range ws {
		if w.Layer != want[i] {
			t.Errorf("Windows(0)[%d] = layer %d, want %d", i, w.Layer, want[i])
		}
	}
}

func TestApply_RecordsTransactions(t *testing.T) {
	rec := capture.NewRecorder(0)
	e, err := New(baseScene(), WithRecorder(rec))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := e.Apply(context.Background(), layer.Transaction{
		Name: "tweak",
		Set:  []layer.State{{ID: 2, Name: "app", Parent: 1, Z: 7, Visible: true}},
	}); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	txs := rec.Transactions()
	if len(txs) != 1 || txs[0].Name != "tweak" {
		t.Errorf("recorded = %+v, want one transaction named tweak", txs)
	}
}

func relativeLoop() layer.Transaction {
	// 4 and 5 name each other as relative parents; 6 mirrors 4 so the
	// loop is reachable in z-order.
	return layer.Transaction{
		Name: "introduce-loop",
		Create: []layer.State{
			{ID: 4, Name: "a", Parent: 1, RelativeParent: 5, Z: 1, Visible: true},
			{ID: 5, Name: "b", Parent: 1, RelativeParent: 4, Z: 2, Visible: true},
			{ID: 6, Name: "m", Parent: 1, MirrorSource: 4, Z: 3, Visible: true},
		},
	}
}

func TestApply_FlagsRelativeLoop(t *testing.T) {
	e, err := New(baseScene())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	res, err := e.Apply(context.Background(), relativeLoop())
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if !res.Looped {
		t.Fatal("Result.Looped = false, want true")
	}
	if res.LoopLayer != 4 && res.LoopLayer != 5 {
		t.Errorf("Result.LoopLayer = %d, want a loop member", res.LoopLayer)
	}
	if _, looped := e.Validate(); !looped {
		t.Error("Validate() reports clean graph")
	}
}

func TestApply_LoopRepair(t *testing.T) {
	e, err := New(baseScene(), WithLoopRepair(true))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	res, err := e.Apply(context.Background(), relativeLoop())
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if len(res.Repaired) == 0 {
		t.Error("Result.Repaired is empty, want at least one detached edge")
	}
	if res.Looped {
		t.Error("Result.Looped = true after repair")
	}
	if id, looped := e.Validate(); looped {
		t.Errorf("Validate() = %d, true after repair", id)
	}
}

func TestNew_LoopRepairOnInitialScene(t *testing.T) {
	records := append(baseScene(), relativeLoop().Create...)
	e, err := New(records, WithLoopRepair(true))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if id, looped := e.Validate(); looped {
		t.Errorf("Validate() = %d, true; want clean graph", id)
	}
}

func TestPublishInputWindows_NoDispatcher(t *testing.T) {
	e, err := New(baseScene())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := e.PublishInputWindows(context.Background()); !errors.Is(err, errors.ErrCodeUnsupported) {
		t.Errorf("PublishInputWindows() error = %v, want %v", err, errors.ErrCodeUnsupported)
	}
}

func TestSnapshot(t *testing.T) {
	e, err := New(baseScene())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	snap := e.Snapshot()
	if len(snap.Records) != 3 {
		t.Errorf("len(Records) = %d, want 3", len(snap.Records))
	}
	if len(snap.Paint) == 0 {
		t.Error("snapshot has no paint lists")
	}
}

func TestView(t *testing.T) {
	e, err := New(baseScene())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	var nodes int
	e.View(func(hierarchy, _ *scene.Graph) {
		hierarchy.Traverse(func(_ *scene.Node, _ scene.Path) bool {
			nodes++
			return true
		})
	})
	if nodes != 3 {
		t.Errorf("traversed %d nodes, want 3", nodes)
	}
}
