package scene

// Kind is the relationship an edge carries, determining how traversal
// treats the child.
type Kind uint8

const (
	// KindAttached is plain structural nesting.
	KindAttached Kind = iota
	// KindDetached marks the structural position of a layer that is
	// relatively parented elsewhere.
	KindDetached
	// KindRelative interleaves the child into the parent's z-order.
	KindRelative
	// KindMirror points at the root of a cloned subtree.
	KindMirror
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindAttached:
		return "attached"
	case KindDetached:
		return "detached"
	case KindRelative:
		return "relative"
	case KindMirror:
		return "mirror"
	default:
		return "unknown"
	}
}
