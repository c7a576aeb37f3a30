// Package input defines the boundary to the input-dispatch subsystem.
//
// The scene-graph engine produces per-display window lists from a z-ordered
// traversal and hands them to a [Dispatcher]; routing policy, focus
// decisions, and event queueing live on the other side of this interface and
// are not implemented here. [Fake] is an in-memory dispatcher for tests and
// dry runs.
package input

import (
	"context"

	"github.com/strata-gfx/strata/pkg/layer"
)

// WindowInfo describes one input target, derived from a z-ordered traversal
// of the hierarchy. Lists handed to [Dispatcher.SetInputWindows] are ordered
// top-down, matching hit-test order.
type WindowInfo struct {
	Layer   layer.ID
	Name    string
	Display uint32
	Z       int32
	Visible bool
	// FromFlaggedPath marks a window reached through a flagged relative
	// loop. The engine excludes such windows from published lists; the
	// field exists so diagnostic feeds can carry them anyway.
	FromFlaggedPath bool
}

// Outcome is the closed result set of an event injection.
type Outcome int

const (
	OutcomePending Outcome = iota
	OutcomeSucceeded
	OutcomePermissionDenied
	OutcomeFailed
	OutcomeTimedOut
)

// String returns the lowercase name of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomePending:
		return "pending"
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomePermissionDenied:
		return "permission-denied"
	case OutcomeFailed:
		return "failed"
	case OutcomeTimedOut:
		return "timed-out"
	default:
		return "unknown"
	}
}

// Event is one injected input event. The payload is opaque to this package;
// the dispatcher owns its wire format.
type Event struct {
	Display uint32
	Payload []byte
}

// Dispatcher is the input subsystem as the engine sees it. Implementations
// are expected to be safe for use from the committing goroutine; all calls
// accept a context because real dispatchers cross a process boundary.
type Dispatcher interface {
	// SetInputWindows replaces the per-display window lists used for
	// routing. Lists are top-down and cycle-free.
	SetInputWindows(ctx context.Context, windows map[uint32][]WindowInfo) error

	// SetFocusedApplication names the application that should receive
	// non-pointer events on a display.
	SetFocusedApplication(ctx context.Context, display uint32, name string) error

	// SetFocusedDisplay selects the display key events route to.
	SetFocusedDisplay(ctx context.Context, display uint32) error

	// SetInTouchMode toggles touch mode for the device.
	SetInTouchMode(ctx context.Context, inTouchMode bool) error

	// SetDispatchEnabled gates event dispatch globally.
	SetDispatchEnabled(ctx context.Context, enabled bool) error

	// RegisterChannel creates an input channel for a layer's window.
	RegisterChannel(ctx context.Context, id layer.ID) error

	// UnregisterChannel tears the layer's input channel down.
	UnregisterChannel(ctx context.Context, id layer.ID) error

	// PilferPointers redirects the in-progress pointer stream to the
	// layer's window.
	PilferPointers(ctx context.Context, id layer.ID) error

	// InjectEvent synthesizes an event and reports how dispatch went.
	InjectEvent(ctx context.Context, ev Event) Outcome
}
