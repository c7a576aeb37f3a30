package trace

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/strata-gfx/strata/pkg/layer"
	"github.com/strata-gfx/strata/pkg/scene"
)

func testStore(t *testing.T) (*layer.Store, *scene.Builder) {
	t.Helper()
	store, err := layer.NewStore([]layer.State{
		{ID: 1, Name: "root", Z: 0, Visible: true},
		{ID: 2, Name: "app", Parent: 1, Z: 2, Visible: true},
		{ID: 3, Name: "bar", Parent: 1, Z: 1, Visible: true},
	})
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	b, err := scene.NewBuilder(store.All())
	if err != nil {
		t.Fatalf("NewBuilder() error = %v", err)
	}
	return store, b
}

func TestRecord_RoundTrip(t *testing.T) {
	in := layer.State{
		ID: 7, Name: "x", Parent: 1, RelativeParent: 2, MirrorSource: 3,
		Z: -4, Display: 1, Visible: true,
	}
	if got := FromState(in).ToState(); got != in {
		t.Errorf("round trip = %+v, want %+v", got, in)
	}
}

func TestTransaction_RoundTrip(t *testing.T) {
	in := layer.Transaction{
		Name:    "open",
		Create:  []layer.State{{ID: 5, Parent: 1, Z: 3, Visible: true}},
		Set:     []layer.State{{ID: 2, Parent: 1, Z: 9, Visible: true}},
		Destroy: []layer.ID{3},
	}
	got := FromLayerTransaction(in).ToLayerTransaction()
	if !reflect.DeepEqual(got, in) {
		t.Errorf("round trip = %+v, want %+v", got, in)
	}
}

func TestCapture(t *testing.T) {
	store, b := testStore(t)
	snap := Capture(store, b)

	if len(snap.Records) != 3 {
		t.Errorf("len(Records) = %d, want 3", len(snap.Records))
	}
	if len(snap.Edges) != 3 {
		t.Errorf("len(Edges) = %d, want 3 (root→1, 1→2, 1→3): %v", len(snap.Edges), snap.Edges)
	}
	if snap.LoopLayer != 0 {
		t.Errorf("LoopLayer = %d, want 0", snap.LoopLayer)
	}

	if len(snap.Paint) != 1 {
		t.Fatalf("len(Paint) = %d, want 1 display", len(snap.Paint))
	}
	var got []uint32
	for _, e := range snap.Paint[0].Entries {
		got = append(got, e.Layer)
	}
	if !reflect.DeepEqual(got, []uint32{1, 3, 2}) {
		t.Errorf("paint order = %v, want [1 3 2]", got)
	}
}

func TestCapture_ReportsLoop(t *testing.T) {
	store, err := layer.NewStore([]layer.State{
		{ID: 1, Z: 0, Visible: true},
		{ID: 2, Parent: 1, RelativeParent: 3, Z: 0, Visible: true},
		{ID: 3, Parent: 1, RelativeParent: 2, Z: 1, Visible: true},
	})
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	b, err := scene.NewBuilder(store.All())
	if err != nil {
		t.Fatalf("NewBuilder() error = %v", err)
	}

	snap := Capture(store, b)
	if snap.LoopLayer != 2 && snap.LoopLayer != 3 {
		t.Errorf("LoopLayer = %d, want 2 or 3", snap.LoopLayer)
	}
}

func TestDiffSnapshots(t *testing.T) {
	before := Snapshot{Records: []Record{
		{ID: 1, Z: 0}, {ID: 2, Z: 1}, {ID: 3, Z: 2},
	}}
	after := Snapshot{Records: []Record{
		{ID: 1, Z: 0}, {ID: 2, Z: 9}, {ID: 4, Z: 5},
	}}

	got := DiffSnapshots(before, after)
	want := Diff{Added: []uint32{4}, Changed: []uint32{2}, Destroyed: []uint32{3}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("DiffSnapshots() = %+v, want %+v", got, want)
	}
	if got.Empty() {
		t.Error("Empty() = true for a non-empty diff")
	}
	if d := DiffSnapshots(before, before); !d.Empty() {
		t.Errorf("DiffSnapshots(x, x) = %+v, want empty", d)
	}
}

func TestTransactionStream_RoundTrip(t *testing.T) {
	txs := []Transaction{
		{Name: "boot", Create: []Record{{ID: 1, Z: 0, Visible: true}}},
		{Name: "open", Create: []Record{{ID: 2, Parent: 1, Z: 1, Visible: true}}},
		{Name: "close", Destroy: []uint32{2}},
	}

	var buf bytes.Buffer
	if err := WriteTransactions(&buf, txs); err != nil {
		t.Fatalf("WriteTransactions() error = %v", err)
	}
	got, err := ReadTransactions(&buf)
	if err != nil {
		t.Fatalf("ReadTransactions() error = %v", err)
	}
	if !reflect.DeepEqual(got, txs) {
		t.Errorf("round trip = %+v, want %+v", got, txs)
	}
}

func TestReadTransactions_BadLine(t *testing.T) {
	_, err := ReadTransactions(bytes.NewBufferString("{\"name\":\"ok\"}\nnot-json\n"))
	if err == nil {
		t.Fatal("ReadTransactions() = nil error for malformed line")
	}
}
