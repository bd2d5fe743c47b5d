// Package webdav implements the WebDAV protocol adapter.
//
// The adapter owns the HTTP listener. It routes <prefix>/<mount>/... to the
// handler of the named mount and wraps every request with request IDs,
// logging, panic recovery, rate limiting and metrics.
package webdav

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/marmos91/dittodav/internal/logger"
	davproto "github.com/marmos91/dittodav/internal/protocol/webdav"
	"github.com/marmos91/dittodav/internal/ratelimiter"
	"github.com/marmos91/dittodav/pkg/metrics"
	"github.com/marmos91/dittodav/pkg/registry"
)

// methods chi does not route by default.
var davMethods = []string{
	"PROPFIND", "PROPPATCH", "MKCOL", "COPY", "MOVE", "LOCK", "UNLOCK",
}

func init() {
	for _, m := range davMethods {
		chi.RegisterMethod(m)
	}
}

// WebDAVAdapter implements the adapter.Adapter interface for WebDAV.
//
// Architecture:
// WebDAVAdapter -> chi router -> mount handler (internal/protocol/webdav)
// -> content tree / property store / lock manager
//
// Thread safety:
// All methods are safe for concurrent use. Mount handlers are created on
// first use and cached; the shutdown sequence uses sync.Once.
type WebDAVAdapter struct {
	config   WebDAVConfig
	metrics  metrics.WebDAVMetrics
	limiter  *ratelimiter.RateLimiter
	registry *registry.Registry

	// handlers caches one handler per mount name
	handlers sync.Map

	router http.Handler
	server *http.Server

	mu       sync.Mutex
	listener net.Listener

	// shutdownCtx is the base context of every request; cancelling it
	// aborts in-flight transfers once the shutdown timeout elapses
	shutdownCtx    context.Context
	cancelRequests context.CancelFunc

	shutdownOnce sync.Once
}

// New creates a new WebDAVAdapter with the specified configuration.
//
// The adapter is not started until Serve() is called, and it serves no
// mounts until SetRegistry() is called. Zero values in config are replaced
// with defaults.
//
// Parameters:
//   - config: Server configuration (zero values use defaults)
//   - metricsCollector: Optional metrics collector (nil for no metrics)
//
// Returns a configured but not yet started WebDAVAdapter.
//
// Panics if config validation fails.
func New(config WebDAVConfig, metricsCollector metrics.WebDAVMetrics) *WebDAVAdapter {
	config.applyDefaults()

	if err := config.validate(); err != nil {
		panic(fmt.Sprintf("invalid WebDAV config: %v", err))
	}

	if metricsCollector == nil {
		metricsCollector = metrics.NewNoopWebDAVMetrics()
	}

	shutdownCtx, cancelRequests := context.WithCancel(context.Background())

	a := &WebDAVAdapter{
		config:         config,
		metrics:        metricsCollector,
		limiter:        ratelimiter.New(config.RateLimit.RequestsPerSecond, config.RateLimit.Burst),
		shutdownCtx:    shutdownCtx,
		cancelRequests: cancelRequests,
	}
	a.router = a.newRouter()
	return a
}

// SetRegistry injects the registry holding the active mounts.
func (a *WebDAVAdapter) SetRegistry(reg *registry.Registry) {
	a.registry = reg
	logger.Debug("WebDAV adapter configured with %d mount(s)", reg.CountMounts())
}

// Handler returns the adapter's HTTP handler, middleware included.
func (a *WebDAVAdapter) Handler() http.Handler {
	return a.router
}

// ============================================================================
// Routing
// ============================================================================

func (a *WebDAVAdapter) newRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(a.limiter.Middleware(func(*http.Request) {
		a.metrics.RecordRateLimited()
	}))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "Not Found", http.StatusNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	})

	mountRoutes := func(r chi.Router) {
		r.Handle("/{mount}", http.HandlerFunc(a.serveMount))
		r.Handle("/{mount}/*", http.HandlerFunc(a.serveMount))
	}

	if a.config.Prefix == "" {
		mountRoutes(r)
	} else {
		r.Route(a.config.Prefix, mountRoutes)
	}

	return r
}

// serveMount dispatches a request to the handler of the mount named by the
// first path segment after the prefix.
func (a *WebDAVAdapter) serveMount(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "mount")

	h, mount := a.handlerFor(name)
	if h == nil {
		logger.Debug("WebDAV %s %s: no mount named %q", r.Method, r.URL.Path, name)
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	a.instrument(w, r, mount, h)
}

// handlerFor returns the cached handler of a mount, creating it on first
// use. It returns nil when no such mount is active.
func (a *WebDAVAdapter) handlerFor(name string) (http.Handler, *registry.ActiveMount) {
	if a.registry == nil || name == "" {
		return nil, nil
	}

	mount, err := a.registry.GetMount(name)
	if err != nil {
		return nil, nil
	}

	if cached, ok := a.handlers.Load(name); ok {
		entry := cached.(*mountHandler)
		// A mount removed and re-added gets a fresh handler
		if entry.mount == mount {
			return entry.handler, mount
		}
	}

	entry := &mountHandler{
		mount: mount,
		handler: davproto.NewHandler(davproto.HandlerConfig{
			Name:             mount.Name,
			Prefix:           a.config.Prefix + "/" + mount.Name,
			Tree:             mount.Tree,
			Props:            mount.Props,
			Locks:            mount.Locks,
			EnableBrowsing:   mount.EnableBrowsing,
			MaxPropfindDepth: a.config.MaxPropfindDepth,
		}),
	}
	a.handlers.Store(name, entry)
	return entry.handler, mount
}

type mountHandler struct {
	mount   *registry.ActiveMount
	handler http.Handler
}

// instrument serves one mount request and records its metrics.
func (a *WebDAVAdapter) instrument(w http.ResponseWriter, r *http.Request, mount *registry.ActiveMount, next http.Handler) {
	start := time.Now()
	a.metrics.RecordRequestStart(r.Method, mount.Name)
	defer a.metrics.RecordRequestEnd(r.Method, mount.Name)

	body := &countingReader{ReadCloser: r.Body}
	if r.Body != nil && r.Body != http.NoBody {
		r.Body = body
	}

	ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
	next.ServeHTTP(ww, r)

	status := ww.Status()
	if status == 0 {
		status = http.StatusOK
	}

	a.metrics.RecordRequest(r.Method, mount.Name, status, time.Since(start))
	a.metrics.RecordBytesTransferred(r.Method, mount.Name, "read", int64(ww.BytesWritten()))
	a.metrics.RecordBytesTransferred(r.Method, mount.Name, "write", body.n)

	switch r.Method {
	case "LOCK", "UNLOCK", http.MethodDelete, "MOVE":
		a.metrics.SetActiveLocks(mount.Name, mount.Locks.Count())
	}
}

// ============================================================================
// Lifecycle
// ============================================================================

// Serve starts the HTTP server and blocks until the context is cancelled or
// the server fails.
//
// Returns:
//   - nil on graceful shutdown
//   - context.Canceled if cancelled via context
//   - error if the listener cannot be created or the server fails
func (a *WebDAVAdapter) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", a.config.Port))
	if err != nil {
		return fmt.Errorf("failed to create WebDAV listener on port %d: %w", a.config.Port, err)
	}

	a.mu.Lock()
	a.listener = listener
	a.server = &http.Server{
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       a.config.ReadTimeout,
		WriteTimeout:      a.config.WriteTimeout,
		IdleTimeout:       a.config.IdleTimeout,
		BaseContext: func(net.Listener) context.Context {
			return a.shutdownCtx
		},
	}
	server := a.server
	a.mu.Unlock()

	logger.Info("WebDAV server listening on %s (prefix %q)", listener.Addr(), a.config.Prefix+"/")

	errChan := make(chan error, 1)
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		logger.Info("WebDAV shutdown signal received: %v", ctx.Err())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.config.ShutdownTimeout)
		defer cancel()
		if err := a.Stop(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()

	case err, ok := <-errChan:
		if ok && err != nil {
			return fmt.Errorf("WebDAV server error: %w", err)
		}
		return nil
	}
}

// Stop initiates graceful shutdown. In-flight requests get until the
// context deadline to complete; after that their contexts are cancelled and
// the server is closed.
//
// Stop is idempotent and safe to call concurrently with Serve.
func (a *WebDAVAdapter) Stop(ctx context.Context) error {
	var err error

	a.shutdownOnce.Do(func() {
		a.mu.Lock()
		server := a.server
		a.mu.Unlock()

		if server == nil {
			a.cancelRequests()
			return
		}

		logger.Info("WebDAV server shutting down")
		if shutdownErr := server.Shutdown(ctx); shutdownErr != nil {
			logger.Warn("WebDAV graceful shutdown incomplete: %v", shutdownErr)
			a.cancelRequests()
			_ = server.Close()
			err = fmt.Errorf("WebDAV shutdown: %w", shutdownErr)
			return
		}
		a.cancelRequests()
		logger.Info("WebDAV server stopped")
	})

	return err
}

// Protocol returns "WebDAV" for logging and metrics.
func (a *WebDAVAdapter) Protocol() string {
	return "WebDAV"
}

// Port returns the TCP port the adapter listens on. Once Serve has bound
// the listener this is the actual port.
func (a *WebDAVAdapter) Port() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.listener != nil {
		if addr, ok := a.listener.Addr().(*net.TCPAddr); ok {
			return addr.Port
		}
	}
	return a.config.Port
}
