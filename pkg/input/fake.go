package input

import (
	"context"
	"slices"
	"sync"

	"github.com/strata-gfx/strata/pkg/layer"
)

// Fake is an in-memory Dispatcher recording everything it is told. It is
// used by tests and by the engine's dry-run feed.
type Fake struct {
	mu sync.Mutex

	windows     map[uint32][]WindowInfo
	focusedApp  map[uint32]string
	focusedDisp uint32
	touchMode   bool
	enabled     bool
	channels    []layer.ID
	pilfered    []layer.ID
	injected    []Event

	// InjectOutcome is returned by InjectEvent; zero value is pending.
	InjectOutcome Outcome
}

// NewFake returns a Fake with dispatch enabled.
func NewFake() *Fake {
	return &Fake{enabled: true, InjectOutcome: OutcomeSucceeded}
}

func (f *Fake) SetInputWindows(_ context.Context, windows map[uint32][]WindowInfo) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.windows = make(map[uint32][]WindowInfo, len(windows))
	for d, ws := range windows {
		f.windows[d] = slices.Clone(ws)
	}
	return nil
}

func (f *Fake) SetFocusedApplication(_ context.Context, display uint32, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.focusedApp == nil {
		f.focusedApp = make(map[uint32]string)
	}
	f.focusedApp[display] = name
	return nil
}

func (f *Fake) SetFocusedDisplay(_ context.Context, display uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.focusedDisp = display
	return nil
}

func (f *Fake) SetInTouchMode(_ context.Context, inTouchMode bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touchMode = inTouchMode
	return nil
}

func (f *Fake) SetDispatchEnabled(_ context.Context, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enabled = enabled
	return nil
}

func (f *Fake) RegisterChannel(_ context.Context, id layer.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !slices.Contains(f.channels, id) {
		f.channels = append(f.channels, id)
	}
	return nil
}

func (f *Fake) UnregisterChannel(_ context.Context, id layer.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channels = slices.DeleteFunc(f.channels, func(c layer.ID) bool { return c == id })
	return nil
}

func (f *Fake) PilferPointers(_ context.Context, id layer.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pilfered = append(f.pilfered, id)
	return nil
}

func (f *Fake) InjectEvent(_ context.Context, ev Event) Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.injected = append(f.injected, ev)
	if !f.enabled {
		return OutcomeFailed
	}
	return f.InjectOutcome
}

// Windows returns the last window list set for a display.
func (f *Fake) Windows(display uint32) []WindowInfo {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.windows[display])
}

// Displays returns every display a window list was set for.
func (f *Fake) Displays() []uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]uint32, 0, len(f.windows))
	for d := range f.windows {
		out = append(out, d)
	}
	slices.Sort(out)
	return out
}

// Channels returns the registered channel layers in registration order.
func (f *Fake) Channels() []layer.ID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.channels)
}

// Injected returns every event passed to InjectEvent.
func (f *Fake) Injected() []Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.injected)
}

var _ Dispatcher = (*Fake)(nil)
