// Package chi integrates activator with the Chi router.
//
// ScopeMiddleware gives every request its own scope. Handle resolves a
// controller from that scope, HandleActivated constructs a fresh one with
// arguments taken from the request:
//
//	r := activatorchi.NewRouter(provider)
//
//	r.Get("/users", activatorchi.Handle(UserController.List))
//	r.Get("/reports/{tenant}", activatorchi.HandleActivated(
//	    activatorchi.URLParams("tenant"),
//	    (*ReportController).Show,
//	))
package chi

import (
	"log/slog"
	"net/http"

	gochi "github.com/go-chi/chi/v5"

	"github.com/junioryono/activator"
)

// Config holds the configuration for the scope middleware.
type Config struct {
	// ErrorHandler is called when scope creation or a middleware fails.
	// If nil, a default handler returning 500 Internal Server Error is used.
	ErrorHandler func(http.ResponseWriter, *http.Request, error)

	// CloseErrorHandler is called when closing the request scope fails.
	// If nil, errors are logged.
	CloseErrorHandler func(error)

	// Middlewares run after scope creation, in order.
	Middlewares []func(activator.Scope, *http.Request) error

	// Logger receives the adapter's diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

// Option configures the scope middleware.
type Option func(*Config)

// WithErrorHandler sets the error handler for scope creation failures.
func WithErrorHandler(h func(http.ResponseWriter, *http.Request, error)) Option {
	return func(c *Config) {
		c.ErrorHandler = h
	}
}

// WithCloseErrorHandler sets the error handler for scope close failures.
func WithCloseErrorHandler(h func(error)) Option {
	return func(c *Config) {
		c.CloseErrorHandler = h
	}
}

// WithMiddleware adds a function that runs after scope creation.
func WithMiddleware(mw func(activator.Scope, *http.Request) error) Option {
	return func(c *Config) {
		c.Middlewares = append(c.Middlewares, mw)
	}
}

// WithLogger sets the logger used by the default handlers.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

func defaultConfig() *Config {
	cfg := &Config{Logger: slog.Default()}
	cfg.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
	cfg.CloseErrorHandler = func(err error) {
		cfg.Logger.Error("failed to close request scope", "error", err)
	}
	return cfg
}

func newConfig(opts []Option) *Config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return cfg
}

// ScopeMiddleware creates a middleware that opens a scope for each request
// and attaches it to the request context, where activator.FromContext finds
// it. The scope, and every instance activated in it, is disposed when the
// request completes.
func ScopeMiddleware(provider activator.Provider, opts ...Option) func(http.Handler) http.Handler {
	cfg := newConfig(opts)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scope, err := provider.CreateScope(r.Context())
			if err != nil {
				cfg.ErrorHandler(w, r, err)
				return
			}

			defer func() {
				if err := scope.Close(); err != nil {
					cfg.CloseErrorHandler(err)
				}
			}()

			r = r.WithContext(scope.Context())

			for _, mw := range cfg.Middlewares {
				if err := mw(scope, r); err != nil {
					cfg.ErrorHandler(w, r, err)
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// NewRouter returns a Chi router with ScopeMiddleware installed.
func NewRouter(provider activator.Provider, opts ...Option) gochi.Router {
	r := gochi.NewRouter()
	r.Use(ScopeMiddleware(provider, opts...))
	return r
}

// HandlerConfig holds configuration for the handler wrappers.
type HandlerConfig struct {
	// PanicRecovery enables panic recovery in the handler.
	PanicRecovery bool

	// PanicHandler is called when a panic occurs (if PanicRecovery is true).
	PanicHandler func(http.ResponseWriter, *http.Request, any)

	// ScopeErrorHandler is called when the request has no usable scope.
	ScopeErrorHandler func(http.ResponseWriter, *http.Request, error)

	// ResolutionErrorHandler is called when the controller cannot be
	// resolved or activated.
	ResolutionErrorHandler func(http.ResponseWriter, *http.Request, error)

	// Logger receives the default handlers' diagnostics.
	Logger *slog.Logger
}

// HandlerOption configures the handler wrappers.
type HandlerOption func(*HandlerConfig)

// WithPanicRecovery enables or disables panic recovery in the handler.
func WithPanicRecovery(enabled bool) HandlerOption {
	return func(c *HandlerConfig) {
		c.PanicRecovery = enabled
	}
}

// WithPanicHandler sets the handler for panics.
func WithPanicHandler(h func(http.ResponseWriter, *http.Request, any)) HandlerOption {
	return func(c *HandlerConfig) {
		c.PanicHandler = h
	}
}

// WithScopeErrorHandler sets the error handler for scope retrieval failures.
func WithScopeErrorHandler(h func(http.ResponseWriter, *http.Request, error)) HandlerOption {
	return func(c *HandlerConfig) {
		c.ScopeErrorHandler = h
	}
}

// WithResolutionErrorHandler sets the error handler for controller
// resolution failures.
func WithResolutionErrorHandler(h func(http.ResponseWriter, *http.Request, error)) HandlerOption {
	return func(c *HandlerConfig) {
		c.ResolutionErrorHandler = h
	}
}

// WithHandlerLogger sets the logger used by the default handlers.
func WithHandlerLogger(l *slog.Logger) HandlerOption {
	return func(c *HandlerConfig) {
		c.Logger = l
	}
}

func defaultHandlerConfig() *HandlerConfig {
	cfg := &HandlerConfig{Logger: slog.Default()}
	cfg.PanicHandler = func(w http.ResponseWriter, r *http.Request, v any) {
		cfg.Logger.Error("panic in handler", "panic", v, "path", r.URL.Path)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
	cfg.ScopeErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		cfg.Logger.Error("failed to get scope from context", "error", err, "path", r.URL.Path)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
	cfg.ResolutionErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		cfg.Logger.Error("failed to resolve controller", "error", err, "path", r.URL.Path)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
	return cfg
}

func newHandlerConfig(opts []HandlerOption) *HandlerConfig {
	cfg := defaultHandlerConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return cfg
}

// Handle wraps a controller method. The controller T is resolved from the
// scope attached to the request context.
//
//	r.Get("/users/{id}", activatorchi.Handle(UserController.GetByID))
func Handle[T any](method func(T, http.ResponseWriter, *http.Request), opts ...HandlerOption) http.HandlerFunc {
	return serve(func(scope activator.Scope, _ *http.Request) (T, error) {
		return activator.Resolve[T](scope)
	}, method, opts)
}

// HandleActivated wraps a controller method whose controller is constructed
// for each request. configure supplies the leading constructor arguments
// from the request; the remaining ones come from the request scope. The
// controller is disposed with the scope.
func HandleActivated[T any](
	configure func(*http.Request, *activator.Builder),
	method func(T, http.ResponseWriter, *http.Request),
	opts ...HandlerOption,
) http.HandlerFunc {
	return serve(func(scope activator.Scope, r *http.Request) (T, error) {
		return activator.ActivateIn[T](scope, func(b *activator.Builder) {
			if configure != nil {
				configure(r, b)
			}
		})
	}, method, opts)
}

// URLParams supplies the named Chi URL parameters, in order, as literal
// arguments.
func URLParams(names ...string) func(*http.Request, *activator.Builder) {
	return func(r *http.Request, b *activator.Builder) {
		for _, name := range names {
			b.Value(gochi.URLParam(r, name))
		}
	}
}

func serve[T any](
	get func(activator.Scope, *http.Request) (T, error),
	method func(T, http.ResponseWriter, *http.Request),
	opts []HandlerOption,
) http.HandlerFunc {
	cfg := newHandlerConfig(opts)

	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.PanicRecovery {
			defer func() {
				if v := recover(); v != nil {
					cfg.PanicHandler(w, r, v)
				}
			}()
		}

		scope, err := activator.FromContext(r.Context())
		if err != nil {
			cfg.ScopeErrorHandler(w, r, err)
			return
		}

		controller, err := get(scope, r)
		if err != nil {
			cfg.ResolutionErrorHandler(w, r, err)
			return
		}

		method(controller, w, r)
	}
}
