// Package layer defines the flat collection of per-layer state records that
// the hierarchy builder turns into a scene graph.
//
// A [State] record declares everything the compositor needs to place one
// layer: its structural parent, an optional relative parent whose z-order it
// interleaves with, an optional mirror source whose subtree it duplicates,
// and its z value. Records are owned by a [Store]; the hierarchy holds
// non-owning references and observes field changes without copying.
//
// # Single-writer contract
//
// Store and the hierarchy built from it share one mutation discipline: all
// writes happen on one committing goroutine, and reads must not overlap a
// [Store.Commit]. The store performs no internal locking.
package layer

// ID identifies a layer record. IDs are assigned by the window manager and
// are never reused within a session.
type ID uint32

// None is the zero ID, meaning "no layer". A record with Parent == None is
// a top-level layer; RelativeParent == None means no relative parenting and
// MirrorSource == None means the layer mirrors nothing.
const None ID = 0

// State is one layer's requested state. The hierarchy never mutates a
// State; all changes go through [Store.Commit] so that the graph and the
// records cannot drift apart.
type State struct {
	ID             ID
	Name           string
	Parent         ID
	RelativeParent ID
	MirrorSource   ID
	Z              int32
	Display        uint32
	Visible        bool
}
