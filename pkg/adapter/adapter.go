// Package adapter defines the contract between DittoServer and the protocol
// front ends that expose the configured mounts.
package adapter

import (
	"context"

	"github.com/marmos91/dittodav/pkg/registry"
)

// Adapter represents a protocol server that can be managed by DittoServer.
//
// An adapter serves the mounts held by the shared registry over one
// protocol. All adapters see the same trees, property stores and lock
// managers.
//
// Lifecycle:
//  1. Creation: Adapter is created with protocol-specific configuration
//  2. Registry injection: SetRegistry() provides the active mounts
//  3. Startup: Serve() starts the protocol server and blocks until shutdown
//  4. Shutdown: Stop() initiates graceful shutdown with timeout
//
// Thread safety:
// Implementations must be safe for concurrent use. SetRegistry() is called
// once before Serve(), but Stop() may be called concurrently with Serve().
type Adapter interface {
	// Serve starts the protocol server and blocks until the context is
	// cancelled or an unrecoverable error occurs.
	//
	// When the context is cancelled, Serve must stop accepting requests,
	// wait for in-flight ones (bounded by the adapter's shutdown timeout)
	// and return context.Canceled or nil.
	//
	// If Serve returns before context cancellation, DittoServer treats it as
	// a fatal error and stops all other adapters.
	Serve(ctx context.Context) error

	// SetRegistry injects the registry holding the active mounts.
	//
	// Called exactly once by DittoServer before Serve().
	SetRegistry(reg *registry.Registry)

	// Stop initiates graceful shutdown of the protocol server.
	//
	// Stop must be idempotent, safe to call concurrently with Serve(), and
	// must respect the context deadline.
	Stop(ctx context.Context) error

	// Protocol returns the human-readable protocol name for logging and
	// metrics (e.g. "WebDAV").
	Protocol() string

	// Port returns the TCP port the adapter listens on.
	Port() int
}
