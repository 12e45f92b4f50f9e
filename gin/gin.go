// Package gin integrates activator with the Gin web framework.
//
// ScopeMiddleware gives every request its own scope. Handle resolves a
// controller from that scope, HandleActivated constructs a fresh one with
// arguments taken from the request:
//
//	g := gin.New()
//	g.Use(activatorgin.ScopeMiddleware(provider))
//
//	g.GET("/users", activatorgin.Handle(UserController.List))
//	g.GET("/reports/:tenant", activatorgin.HandleActivated(
//	    activatorgin.Params("tenant"),
//	    (*ReportController).Show,
//	))
package gin

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/junioryono/activator"
)

// Config holds the configuration for the scope middleware.
type Config struct {
	// ErrorHandler is called when scope creation or a middleware fails.
	// If nil, a default handler returning 500 Internal Server Error is used.
	ErrorHandler func(*gin.Context, error)

	// CloseErrorHandler is called when closing the request scope fails.
	// If nil, errors are logged.
	CloseErrorHandler func(error)

	// Middlewares run after scope creation, in order. They can be used to
	// seed request state, set user claims, etc.
	Middlewares []func(activator.Scope, *gin.Context) error

	// Logger receives the adapter's diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

// Option configures the scope middleware.
type Option func(*Config)

// WithErrorHandler sets the error handler for scope creation failures.
func WithErrorHandler(h func(*gin.Context, error)) Option {
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
//
//	activatorgin.ScopeMiddleware(provider,
//	    activatorgin.WithMiddleware(func(scope activator.Scope, c *gin.Context) error {
//	        scope.Activations().Track(newAuditLog(c.ClientIP()))
//	        return nil
//	    }),
//	)
func WithMiddleware(mw func(activator.Scope, *gin.Context) error) Option {
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

func abort(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
		"error": "Internal Server Error",
	})
}

func defaultConfig() *Config {
	cfg := &Config{Logger: slog.Default()}
	cfg.ErrorHandler = func(c *gin.Context, err error) {
		abort(c)
	}
	cfg.CloseErrorHandler = func(err error) {
		cfg.Logger.Error("failed to close request scope", "error", err)
	}
	return cfg
}

// ScopeMiddleware creates a gin.HandlerFunc that opens a scope for each
// request and attaches it to the request context, where
// activator.FromContext finds it. The scope, and every instance activated
// in it, is disposed when the request completes.
func ScopeMiddleware(provider activator.Provider, opts ...Option) gin.HandlerFunc {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return func(c *gin.Context) {
		scope, err := provider.CreateScope(c.Request.Context())
		if err != nil {
			cfg.ErrorHandler(c, err)
			return
		}

		defer func() {
			if err := scope.Close(); err != nil {
				cfg.CloseErrorHandler(err)
			}
		}()

		c.Request = c.Request.WithContext(scope.Context())

		for _, mw := range cfg.Middlewares {
			if err := mw(scope, c); err != nil {
				cfg.ErrorHandler(c, err)
				return
			}
		}

		c.Next()
	}
}

// HandlerConfig holds configuration for the handler wrappers.
type HandlerConfig struct {
	// PanicRecovery enables panic recovery in the handler.
	PanicRecovery bool

	// PanicHandler is called when a panic occurs (if PanicRecovery is true).
	PanicHandler func(*gin.Context, any)

	// ScopeErrorHandler is called when the request has no usable scope.
	ScopeErrorHandler func(*gin.Context, error)

	// ResolutionErrorHandler is called when the controller cannot be
	// resolved or activated.
	ResolutionErrorHandler func(*gin.Context, error)

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

// WithPanicHandler sets the handler for panics (requires WithPanicRecovery(true)).
func WithPanicHandler(h func(*gin.Context, any)) HandlerOption {
	return func(c *HandlerConfig) {
		c.PanicHandler = h
	}
}

// WithScopeErrorHandler sets the error handler for scope retrieval failures.
func WithScopeErrorHandler(h func(*gin.Context, error)) HandlerOption {
	return func(c *HandlerConfig) {
		c.ScopeErrorHandler = h
	}
}

// WithResolutionErrorHandler sets the error handler for controller
// resolution failures.
func WithResolutionErrorHandler(h func(*gin.Context, error)) HandlerOption {
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
	cfg.PanicHandler = func(c *gin.Context, r any) {
		cfg.Logger.Error("panic in handler", "panic", r, "route", c.FullPath())
		abort(c)
	}
	cfg.ScopeErrorHandler = func(c *gin.Context, err error) {
		cfg.Logger.Error("failed to get scope from context", "error", err, "route", c.FullPath())
		abort(c)
	}
	cfg.ResolutionErrorHandler = func(c *gin.Context, err error) {
		cfg.Logger.Error("failed to resolve controller", "error", err, "route", c.FullPath())
		abort(c)
	}
	return cfg
}

// Handle wraps a controller method. The controller T is resolved from the
// scope attached to the request context.
//
//	g.GET("/users/:id", activatorgin.Handle(UserController.GetByID))
func Handle[T any](method func(T, *gin.Context), opts ...HandlerOption) gin.HandlerFunc {
	return serve(func(scope activator.Scope, _ *gin.Context) (T, error) {
		return activator.Resolve[T](scope)
	}, method, opts)
}

// HandleActivated wraps a controller method whose controller is constructed
// for each request. configure supplies the leading constructor arguments
// from the request; the remaining ones come from the request scope. The
// controller is disposed with the scope.
func HandleActivated[T any](
	configure func(*gin.Context, *activator.Builder),
	method func(T, *gin.Context),
	opts ...HandlerOption,
) gin.HandlerFunc {
	return serve(func(scope activator.Scope, c *gin.Context) (T, error) {
		return activator.ActivateIn[T](scope, func(b *activator.Builder) {
			if configure != nil {
				configure(c, b)
			}
		})
	}, method, opts)
}

// Params supplies the named path parameters, in order, as literal
// arguments.
func Params(names ...string) func(*gin.Context, *activator.Builder) {
	return func(c *gin.Context, b *activator.Builder) {
		for _, name := range names {
			b.Value(c.Param(name))
		}
	}
}

// Query supplies the named query string values, in order, as literal
// arguments. Missing keys supply "".
func Query(names ...string) func(*gin.Context, *activator.Builder) {
	return func(c *gin.Context, b *activator.Builder) {
		for _, name := range names {
			b.Value(c.Query(name))
		}
	}
}

func serve[T any](
	get func(activator.Scope, *gin.Context) (T, error),
	method func(T, *gin.Context),
	opts []HandlerOption,
) gin.HandlerFunc {
	cfg := defaultHandlerConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return func(c *gin.Context) {
		if cfg.PanicRecovery {
			defer func() {
				if r := recover(); r != nil {
					cfg.PanicHandler(c, r)
				}
			}()
		}

		scope, err := activator.FromContext(c.Request.Context())
		if err != nil {
			cfg.ScopeErrorHandler(c, err)
			return
		}

		controller, err := get(scope, c)
		if err != nil {
			cfg.ResolutionErrorHandler(c, err)
			return
		}

		method(controller, c)
	}
}
