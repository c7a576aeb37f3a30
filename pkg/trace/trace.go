// Package trace defines the serialization format for engine state and
// transaction streams.
//
// A [Snapshot] freezes the record collection, the resolved hierarchy edges,
// and the per-display paint lists at one commit; a [Transaction] is the wire
// form of one record delta. Both carry json and bson tags so the same
// structs serve API responses, capture files, and the archive collection.
// Round-trip fidelity is the design goal: record → Transaction → record
// loses nothing.
package trace

import (
	"slices"
	"time"

	"github.com/strata-gfx/strata/pkg/layer"
	"github.com/strata-gfx/strata/pkg/scene"
	"github.com/strata-gfx/strata/pkg/zorder"
)

// Record is the serialized form of one layer state record.
type Record struct {
	ID             uint32 `json:"id" bson:"id"`
	Name           string `json:"name,omitempty" bson:"name,omitempty"`
	Parent         uint32 `json:"parent,omitempty" bson:"parent,omitempty"`
	RelativeParent uint32 `json:"relative_parent,omitempty" bson:"relative_parent,omitempty"`
	MirrorSource   uint32 `json:"mirror_source,omitempty" bson:"mirror_source,omitempty"`
	Z              int32  `json:"z" bson:"z"`
	Display        uint32 `json:"display,omitempty" bson:"display,omitempty"`
	Visible        bool   `json:"visible" bson:"visible"`
}

// Edge is one resolved hierarchy edge, identified by builder keys.
type Edge struct {
	Parent string `json:"parent" bson:"parent"`
	Child  string `json:"child" bson:"child"`
	Kind   string `json:"kind" bson:"kind"`
}

// PaintEntry is one layer of a display's bottom-up paint list.
type PaintEntry struct {
	Layer uint32 `json:"layer" bson:"layer"`
	Name  string `json:"name,omitempty" bson:"name,omitempty"`
	Z     int32  `json:"z" bson:"z"`
}

// DisplayPaint is the paint list of one display.
type DisplayPaint struct {
	Display uint32       `json:"display" bson:"display"`
	Entries []PaintEntry `json:"entries" bson:"entries"`
}

// Snapshot is the full serialized engine state after one commit.
type Snapshot struct {
	TakenAt time.Time      `json:"taken_at" bson:"taken_at"`
	Records []Record       `json:"records" bson:"records"`
	Edges   []Edge         `json:"edges" bson:"edges"`
	Paint   []DisplayPaint `json:"paint,omitempty" bson:"paint,omitempty"`
	// LoopLayer is one layer participating in a relative loop, 0 if clean.
	LoopLayer uint32 `json:"loop_layer,omitempty" bson:"loop_layer,omitempty"`
}

// Transaction is the wire form of one record delta.
type Transaction struct {
	Name    string   `json:"name,omitempty" bson:"name,omitempty"`
	Create  []Record `json:"create,omitempty" bson:"create,omitempty"`
	Set     []Record `json:"set,omitempty" bson:"set,omitempty"`
	Destroy []uint32 `json:"destroy,omitempty" bson:"destroy,omitempty"`
}

// FromState converts a layer record to its serialized form.
func FromState(s layer.State) Record {
	return Record{
		ID:             uint32(s.ID),
		Name:           s.Name,
		Parent:         uint32(s.Parent),
		RelativeParent: uint32(s.RelativeParent),
		MirrorSource:   uint32(s.MirrorSource),
		Z:              s.Z,
		Display:        s.Display,
		Visible:        s.Visible,
	}
}

// ToState converts a serialized record back to a layer record.
func (r Record) ToState() layer.State {
	return layer.State{
		ID:             layer.ID(r.ID),
		Name:           r.Name,
		Parent:         layer.ID(r.Parent),
		RelativeParent: layer.ID(r.RelativeParent),
		MirrorSource:   layer.ID(r.MirrorSource),
		Z:              r.Z,
		Display:        r.Display,
		Visible:        r.Visible,
	}
}

// FromLayerTransaction converts a store transaction to its wire form.
func FromLayerTransaction(tx layer.Transaction) Transaction {
	out := Transaction{Name: tx.Name}
	for _, s := range tx.Create {
		out.Create = append(out.Create, FromState(s))
	}
	for _, s := range tx.Set {
		out.Set = append(out.Set, FromState(s))
	}
	for _, id := range tx.Destroy {
		out.Destroy = append(out.Destroy, uint32(id))
	}
	return out
}

// ToLayerTransaction converts a wire transaction to a store transaction.
func (tx Transaction) ToLayerTransaction() layer.Transaction {
	out := layer.Transaction{Name: tx.Name}
	for _, r := range tx.Create {
		out.Create = append(out.Create, r.ToState())
	}
	for _, r := range tx.Set {
		out.Set = append(out.Set, r.ToState())
	}
	for _, id := range tx.Destroy {
		out.Destroy = append(out.Destroy, layer.ID(id))
	}
	return out
}

// Capture freezes the current store and hierarchy into a snapshot. Records
// are kept in store order; edges cover the main and offscreen trees.
func Capture(store *layer.Store, builder *scene.Builder) Snapshot {
	snap := Snapshot{TakenAt: time.Now().UTC()}
	for _, rec := range store.All() {
		snap.Records = append(snap.Records, FromState(*rec))
	}

	main := builder.Hierarchy()
	snap.Edges = append(dumpEdges(main), dumpEdges(builder.OffscreenHierarchy())...)

	paint := zorder.PaintOrder(main)
	displays := make([]uint32, 0, len(paint))
	for d := range paint {
		displays = append(displays, d)
	}
	slices.Sort(displays)
	for _, d := range displays {
		dp := DisplayPaint{Display: d}
		for _, e := range paint[d] {
			dp.Entries = append(dp.Entries, PaintEntry{Layer: uint32(e.Layer), Name: e.Name, Z: e.Z})
		}
		snap.Paint = append(snap.Paint, dp)
	}

	if id, ok := main.DetectRelZLoop(); ok {
		snap.LoopLayer = uint32(id)
	}
	return snap
}

func dumpEdges(g *scene.Graph) []Edge {
	root := g.Root()
	if root == nil {
		return nil
	}
	var out []Edge
	var walk func(n *scene.Node)
	seen := make(map[scene.Key]bool)
	walk = func(n *scene.Node) {
		if seen[n.Key()] {
			return
		}
		seen[n.Key()] = true
		for _, e := range n.Children() {
			out = append(out, Edge{
				Parent: n.Key().String(),
				Child:  e.Child.String(),
				Kind:   e.Kind.String(),
			})
		}
		for _, e := range n.Children() {
			if child := g.Node(e.Child); child != nil {
				walk(child)
			}
		}
	}
	walk(root)
	return out
}

// Diff reports the record-level difference between two snapshots, in the
// same added/changed/destroyed shape updates use.
type Diff struct {
	Added     []uint32 `json:"added,omitempty" bson:"added,omitempty"`
	Changed   []uint32 `json:"changed,omitempty" bson:"changed,omitempty"`
	Destroyed []uint32 `json:"destroyed,omitempty" bson:"destroyed,omitempty"`
}

// Empty reports whether the two snapshots hold identical records.
func (d Diff) Empty() bool {
	return len(d.Added) == 0 && len(d.Changed) == 0 && len(d.Destroyed) == 0
}

// DiffSnapshots compares the records of two snapshots, before → after.
func DiffSnapshots(before, after Snapshot) Diff {
	old := make(map[uint32]Record, len(before.Records))
	for _, r := range before.Records {
		old[r.ID] = r
	}

	var d Diff
	seen := make(map[uint32]bool, len(after.Records))
	for _, r := range after.Records {
		seen[r.ID] = true
		prev, ok := old[r.ID]
		switch {
		case !ok:
			d.Added = append(d.Added, r.ID)
		case prev != r:
			d.Changed = append(d.Changed, r.ID)
		}
	}
	for _, r := range before.Records {
		if !seen[r.ID] {
			d.Destroyed = append(d.Destroyed, r.ID)
		}
	}
	slices.Sort(d.Added)
	slices.Sort(d.Changed)
	slices.Sort(d.Destroyed)
	return d
}
