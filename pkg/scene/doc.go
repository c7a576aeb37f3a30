// Package scene builds and traverses the compositor's layer hierarchy: a
// directed acyclic graph over flat layer records that supports mirroring,
// relative z-ordering, and incremental updates.
//
// # Overview
//
// A compositor receives layers as a flat collection of independently
// updatable records ([github.com/strata-gfx/strata/pkg/layer.State]). This
// package resolves the parent, relative-parent, and mirror-source references
// those records declare into a traversable graph. The graph is a true DAG:
// a layer with a relative parent hangs under two parents at once, and a
// mirrored subtree appears in more than one place.
//
// # Basic Usage
//
// Create a [Builder] from the current record list, then apply record deltas
// each commit cycle with [Builder.Update]:
//
//	b, _ := scene.NewBuilder(store.All())
//	b.Update(changed, destroyed)
//	b.Hierarchy().TraverseInZOrder(func(n *scene.Node, p scene.Path) bool {
//	    paint(n, p)
//	    return true
//	})
//
// Layers whose declared parent cannot be resolved hang under the offscreen
// root, reachable via [Builder.OffscreenHierarchy], until the parent shows
// up in a later update.
//
// # Relationship Kinds
//
// Every edge carries a [Kind] that controls traversal:
//
//   - [KindAttached]: plain structural nesting
//   - [KindDetached]: the structural position of a layer that is relatively
//     parented elsewhere; skipped by z-order traversal
//   - [KindRelative]: a layer interleaved into this parent's z-order
//   - [KindMirror]: the root of a cloned subtree mirroring another layer
//
// A relatively parented layer keeps both edges at once: Detached under its
// structural parent, Relative under its relative parent.
//
// # Traversal Paths
//
// The same node can be visited several times in one walk (through mirrors),
// so visitors receive a [Path] identifying the visit instance: the layer id
// plus the chain of mirror roots crossed on the way. Paths also accumulate
// relative roots to flag relative-parent cycles: a walk that would re-enter
// a relative root marks the path ([Path.HasRelZLoop]) and stops descending
// that branch instead of looping. [Graph.DetectRelZLoop] reports one
// offending layer for offline validation.
//
// # Mirrors
//
// A mirror edge points at a clone of the source subtree: fresh topology
// nodes sharing the same layer records. Record changes are observed through
// both the original and the mirror; topology is independent. Clones are
// rebuilt from current topology on every update, so a mirror source that
// does not exist yet resolves to an empty clone and heals once the source
// appears.
//
// # Concurrency
//
// Builders are single-writer: all mutation happens on one committing
// goroutine. Traversal is read-only and may run concurrently with other
// traversals, but never with a mutation. Node and path references handed to
// a visitor are valid only for the duration of the visitor call.
package scene
