// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without adding hard dependencies
// on specific observability backends. Consumers can register hooks at startup
// to receive events about hierarchy updates, capture operations, and API calls.
//
// # Architecture
//
// The package uses a simple hooks pattern:
//   - Define hook interfaces for different event categories
//   - Provide no-op default implementations
//   - Allow registration of custom implementations at startup
//
// This approach:
//   - Avoids import cycles (hooks are registered by main, not by libraries)
//   - Keeps the core library dependency-free from observability frameworks
//   - Allows different backends (OpenTelemetry, Prometheus, DataDog, etc.)
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetEngineHooks(&myEngineHooks{})
//	    observability.SetCaptureHooks(&myCaptureHooks{})
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Engine().OnCommitStart(ctx, txName)
//	// ... apply transaction ...
//	observability.Engine().OnCommitComplete(ctx, txName, nodeCount, duration, err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Engine Hooks
// =============================================================================

// EngineHooks receives events from the scene-graph engine.
type EngineHooks interface {
	// Commit events
	OnCommitStart(ctx context.Context, tx string)
	OnCommitComplete(ctx context.Context, tx string, nodeCount int, duration time.Duration, err error)

	// Hierarchy events
	OnUpdate(ctx context.Context, added, destroyed int)
	OnRelativeLoop(ctx context.Context, layerID uint32)

	// OnLookupMiss records a soft-failed node lookup during an update.
	// op names the operation that missed ("detach", "destroy", ...).
	OnLookupMiss(ctx context.Context, op string, layerID uint32)
}

// =============================================================================
// Capture Hooks
// =============================================================================

// CaptureHooks receives events from capture store operations.
type CaptureHooks interface {
	// OnSave records a capture session write.
	OnSave(ctx context.Context, backend string, size int)

	// OnLoad records a capture session read.
	OnLoad(ctx context.Context, backend string, found bool)

	// OnArchive records an archive write to long-term storage.
	OnArchive(ctx context.Context, backend string, err error)
}

// =============================================================================
// Server Hooks
// =============================================================================

// ServerHooks receives events from the HTTP API.
type ServerHooks interface {
	// OnRequest records an incoming HTTP request.
	OnRequest(ctx context.Context, method, path string)

	// OnResponse records an HTTP response.
	OnResponse(ctx context.Context, method, path string, statusCode int, duration time.Duration)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopEngineHooks is a no-op implementation of EngineHooks.
type NoopEngineHooks struct{}

func (NoopEngineHooks) OnCommitStart(context.Context, string) {}
func (NoopEngineHooks) OnCommitComplete(context.Context, string, int, time.Duration, error) {
}
func (NoopEngineHooks) OnUpdate(context.Context, int, int)           {}
func (NoopEngineHooks) OnRelativeLoop(context.Context, uint32)       {}
func (NoopEngineHooks) OnLookupMiss(context.Context, string, uint32) {}

// NoopCaptureHooks is a no-op implementation of CaptureHooks.
type NoopCaptureHooks struct{}

func (NoopCaptureHooks) OnSave(context.Context, string, int)    {}
func (NoopCaptureHooks) OnLoad(context.Context, string, bool)   {}
func (NoopCaptureHooks) OnArchive(context.Context, string, error) {}

// NoopServerHooks is a no-op implementation of ServerHooks.
type NoopServerHooks struct{}

func (NoopServerHooks) OnRequest(context.Context, string, string)                      {}
func (NoopServerHooks) OnResponse(context.Context, string, string, int, time.Duration) {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	engineHooks  EngineHooks  = NoopEngineHooks{}
	captureHooks CaptureHooks = NoopCaptureHooks{}
	serverHooks  ServerHooks  = NoopServerHooks{}
	hooksMu      sync.RWMutex
)

// SetEngineHooks registers custom engine hooks.
// This should be called once at application startup before any engine operations.
func SetEngineHooks(h EngineHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		engineHooks = h
	}
}

// SetCaptureHooks registers custom capture hooks.
// This should be called once at application startup before any capture operations.
func SetCaptureHooks(h CaptureHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		captureHooks = h
	}
}

// SetServerHooks registers custom server hooks.
// This should be called once at application startup before serving requests.
func SetServerHooks(h ServerHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		serverHooks = h
	}
}

// Engine returns the registered engine hooks.
func Engine() EngineHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return engineHooks
}

// Capture returns the registered capture hooks.
func Capture() CaptureHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return captureHooks
}

// Server returns the registered server hooks.
func Server() ServerHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return serverHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	engineHooks = NoopEngineHooks{}
	captureHooks = NoopCaptureHooks{}
	serverHooks = NoopServerHooks{}
}
