// Package server runs the protocol adapters that expose the mounts of a
// shared registry.
package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/marmos91/dittodav/internal/logger"
	"github.com/marmos91/dittodav/pkg/adapter"
	"github.com/marmos91/dittodav/pkg/registry"
	"golang.org/x/sync/errgroup"
)

// DefaultShutdownTimeout bounds the Stop() calls issued during shutdown.
const DefaultShutdownTimeout = 30 * time.Second

// DittoServer manages the lifecycle of the protocol adapters serving the
// mounts of one registry.
//
// Lifecycle:
//  1. Creation: New() with the registry
//  2. Registration: AddAdapter() for each protocol
//  3. Startup: Serve() starts all adapters concurrently
//  4. Shutdown: Context cancellation or an adapter failure stops every
//     adapter, then the registry is closed
//
// Thread safety:
// DittoServer is safe for concurrent use. Serve() may only be called once.
//
// Example usage:
//
//	srv := server.New(reg, 30*time.Second)
//	if err := srv.AddAdapter(webdav.New(cfg, m)); err != nil {
//	    return err
//	}
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer stop()
//	return srv.Serve(ctx)
type DittoServer struct {
	registry        *registry.Registry
	shutdownTimeout time.Duration

	// mu protects adapters and served
	mu       sync.Mutex
	adapters []adapter.Adapter
	served   bool
}

// New creates a DittoServer over reg.
//
// Parameters:
//   - reg: Registry holding the active mounts (required)
//   - shutdownTimeout: Bound on adapter Stop() calls (0 = DefaultShutdownTimeout)
//
// Panics if reg is nil.
func New(reg *registry.Registry, shutdownTimeout time.Duration) *DittoServer {
	if reg == nil {
		panic("registry cannot be nil")
	}
	if shutdownTimeout <= 0 {
		shutdownTimeout = DefaultShutdownTimeout
	}

	return &DittoServer{
		registry:        reg,
		shutdownTimeout: shutdownTimeout,
	}
}

// AddAdapter injects the registry into a and registers it.
//
// Returns an error if an adapter for the same protocol or port is already
// registered, or if Serve() has been called.
func (s *DittoServer) AddAdapter(a adapter.Adapter) error {
	if a == nil {
		return fmt.Errorf("adapter cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.served {
		return fmt.Errorf("cannot add adapter after Serve() has been called")
	}

	protocol := a.Protocol()
	port := a.Port()

	for _, existing := range s.adapters {
		if existing.Protocol() == protocol {
			return fmt.Errorf("adapter for protocol %s already registered", protocol)
		}
		if existing.Port() == port {
			return fmt.Errorf("port %d already in use by %s adapter", port, existing.Protocol())
		}
	}

	a.SetRegistry(s.registry)
	s.adapters = append(s.adapters, a)

	logger.Info("Registered %s adapter on port %d", protocol, port)
	return nil
}

// Adapters returns a snapshot of the registered adapters.
func (s *DittoServer) Adapters() []adapter.Adapter {
	s.mu.Lock()
	defer s.mu.Unlock()

	adapters := make([]adapter.Adapter, len(s.adapters))
	copy(adapters, s.adapters)
	return adapters
}

// Serve starts all adapters and blocks until ctx is cancelled or one of
// them fails.
//
// Shutdown behavior:
//   - Every adapter receives Stop() in reverse registration order, bounded
//     by the shutdown timeout
//   - Serve waits for every adapter's Serve() to return
//   - The registry is closed last, flushing the property stores
//
// Returns:
//   - nil when shutdown was triggered by ctx
//   - the first adapter failure otherwise, joined with any close error
func (s *DittoServer) Serve(ctx context.Context) error {
	s.mu.Lock()
	if s.served {
		s.mu.Unlock()
		return fmt.Errorf("Serve() has already been called on this server instance")
	}
	s.served = true
	adapters := make([]adapter.Adapter, len(s.adapters))
	copy(adapters, s.adapters)
	s.mu.Unlock()

	if len(adapters) == 0 {
		return fmt.Errorf("no adapters registered; call AddAdapter() before Serve()")
	}

	logger.Info("Starting DittoServer with %d adapter(s) and %d mount(s)",
		len(adapters), s.registry.CountMounts())

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	g, gctx := errgroup.WithContext(runCtx)

	for _, a := range adapters {
		a := a // per-iteration copy (go 1.21 loop semantics)
		g.Go(func() error {
			// An adapter returning early takes the others down with it
			defer cancelRun()

			logger.Info("Starting %s adapter on port %d", a.Protocol(), a.Port())

			err := a.Serve(gctx)
			if err == nil || (errors.Is(err, context.Canceled) && gctx.Err() != nil) {
				logger.Debug("%s adapter stopped", a.Protocol())
				return nil
			}

			logger.Error("%s adapter failed: %v", a.Protocol(), err)
			return fmt.Errorf("%s adapter error: %w", a.Protocol(), err)
		})
	}

	// Once the group context ends, for either reason, stop everything
	g.Go(func() error {
		<-gctx.Done()
		s.stopAll(adapters)
		return nil
	})

	serveErr := g.Wait()

	if err := s.registry.Close(); err != nil {
		logger.Error("Failed to close registry: %v", err)
		serveErr = errors.Join(serveErr, err)
	}

	logger.Info("DittoServer stopped")
	return serveErr
}

// stopAll stops the adapters in reverse registration order.
func (s *DittoServer) stopAll(adapters []adapter.Adapter) {
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	logger.Info("Initiating graceful shutdown of %d adapter(s)", len(adapters))

	for i := len(adapters) - 1; i >= 0; i-- {
		a := adapters[i]
		if err := a.Stop(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Error stopping %s adapter: %v", a.Protocol(), err)
		}
	}
}
