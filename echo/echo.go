// Package echo integrates activator with the Echo web framework.
//
// ScopeMiddleware gives every request its own scope. Handle resolves a
// controller from that scope, HandleActivated constructs a fresh one with
// arguments taken from the request:
//
//	e := echo.New()
//	e.Use(activatorecho.ScopeMiddleware(provider))
//
//	e.GET("/users", activatorecho.Handle(UserController.List))
//	e.POST("/invoices/:customer", activatorecho.HandleActivated(
//	    activatorecho.Args(activatorecho.Params("customer"), activatorecho.BindBody[InvoiceRequest]()),
//	    (*InvoiceController).Create,
//	))
package echo

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/junioryono/activator"
)

// Config holds the configuration for the scope middleware.
type Config struct {
	// ErrorHandler is called when scope creation or a middleware fails.
	// If nil, an *echo.HTTPError with status 500 is returned.
	ErrorHandler func(echo.Context, error) error

	// CloseErrorHandler is called when closing the request scope fails.
	// If nil, errors are logged.
	CloseErrorHandler func(error)

	// Middlewares run after scope creation, in order.
	Middlewares []func(activator.Scope, echo.Context) error

	// Logger receives the adapter's diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

// Option configures the scope middleware.
type Option func(*Config)

// WithErrorHandler sets the error handler for scope creation failures.
func WithErrorHandler(h func(echo.Context, error) error) Option {
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
func WithMiddleware(mw func(activator.Scope, echo.Context) error) Option {
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

func internalError() error {
	return echo.NewHTTPError(http.StatusInternalServerError, "Internal Server Error")
}

func defaultConfig() *Config {
	cfg := &Config{Logger: slog.Default()}
	cfg.ErrorHandler = func(c echo.Context, err error) error {
		return internalError()
	}
	cfg.CloseErrorHandler = func(err error) {
		cfg.Logger.Error("failed to close request scope", "error", err)
	}
	return cfg
}

// ScopeMiddleware creates an echo.MiddlewareFunc that opens a scope for
// each request and attaches it to the request context, where
// activator.FromContext finds it. The scope, and every instance activated
// in it, is disposed when the request completes.
func ScopeMiddleware(provider activator.Provider, opts ...Option) echo.MiddlewareFunc {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			scope, err := provider.CreateScope(c.Request().Context())
			if err != nil {
				return cfg.ErrorHandler(c, err)
			}

			defer func() {
				if err := scope.Close(); err != nil {
					cfg.CloseErrorHandler(err)
				}
			}()

			c.SetRequest(c.Request().WithContext(scope.Context()))

			for _, mw := range cfg.Middlewares {
				if err := mw(scope, c); err != nil {
					return cfg.ErrorHandler(c, err)
				}
			}

			return next(c)
		}
	}
}

// HandlerConfig holds configuration for the handler wrappers.
type HandlerConfig struct {
	// PanicRecovery enables panic recovery in the handler.
	PanicRecovery bool

	// PanicHandler is called when a panic occurs (if PanicRecovery is true).
	PanicHandler func(echo.Context, any) error

	// ScopeErrorHandler is called when the request has no usable scope.
	ScopeErrorHandler func(echo.Context, error) error

	// ResolutionErrorHandler is called when the controller cannot be
	// resolved or activated.
	ResolutionErrorHandler func(echo.Context, error) error

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
func WithPanicHandler(h func(echo.Context, any) error) HandlerOption {
	return func(c *HandlerConfig) {
		c.PanicHandler = h
	}
}

// WithScopeErrorHandler sets the error handler for scope retrieval failures.
func WithScopeErrorHandler(h func(echo.Context, error) error) HandlerOption {
	return func(c *HandlerConfig) {
		c.ScopeErrorHandler = h
	}
}

// WithResolutionErrorHandler sets the error handler for controller
// resolution failures.
func WithResolutionErrorHandler(h func(echo.Context, error) error) HandlerOption {
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
	cfg.PanicHandler = func(c echo.Context, v any) error {
		cfg.Logger.Error("panic in handler", "panic", v, "route", c.Path())
		return internalError()
	}
	cfg.ScopeErrorHandler = func(c echo.Context, err error) error {
		cfg.Logger.Error("failed to get scope from context", "error", err, "route", c.Path())
		return internalError()
	}
	cfg.ResolutionErrorHandler = func(c echo.Context, err error) error {
		cfg.Logger.Error("failed to resolve controller", "error", err, "route", c.Path())
		return internalError()
	}
	return cfg
}

// Handle wraps a controller method. The controller T is resolved from the
// scope attached to the request context.
//
//	e.GET("/users/:id", activatorecho.Handle(UserController.GetByID))
func Handle[T any](method func(T, echo.Context) error, opts ...HandlerOption) echo.HandlerFunc {
	return serve(func(scope activator.Scope, _ echo.Context) (T, error) {
		return activator.Resolve[T](scope)
	}, method, opts)
}

// Configure builds the leading constructor arguments of an activated
// controller from the request. An error is returned to Echo unchanged,
// so an *echo.HTTPError keeps its status.
type Configure func(echo.Context, *activator.Builder) error

// requestError marks a failure to build arguments from the request.
type requestError struct{ err error }

func (e requestError) Error() string { return e.err.Error() }
func (e requestError) Unwrap() error { return e.err }

// HandleActivated wraps a controller method whose controller is constructed
// for each request. configure supplies the leading constructor arguments
// from the request; the remaining ones come from the request scope. The
// controller is disposed with the scope.
func HandleActivated[T any](configure Configure, method func(T, echo.Context) error, opts ...HandlerOption) echo.HandlerFunc {
	return serve(func(scope activator.Scope, c echo.Context) (T, error) {
		b := activator.NewBuilder()
		if configure != nil {
			if err := configure(c, b); err != nil {
				var zero T
				return zero, requestError{err}
			}
		}

		spec := b.Build()
		return activator.ActivateIn[T](scope, func(nb *activator.Builder) {
			for _, p := range spec.All() {
				nb.Add(p)
			}
		})
	}, method, opts)
}

// Args combines several Configure functions, applied in order.
func Args(configures ...Configure) Configure {
	return func(c echo.Context, b *activator.Builder) error {
		for _, configure := range configures {
			if err := configure(c, b); err != nil {
				return err
			}
		}
		return nil
	}
}

// Params supplies the named path parameters, in order, as literal
// arguments.
func Params(names ...string) Configure {
	return func(c echo.Context, b *activator.Builder) error {
		for _, name := range names {
			b.Value(c.Param(name))
		}
		return nil
	}
}

// BindBody binds the request into a new B with Echo's binder and supplies
// it as a literal *B argument.
func BindBody[B any]() Configure {
	return func(c echo.Context, b *activator.Builder) error {
		body := new(B)
		if err := c.Bind(body); err != nil {
			return err
		}
		b.Value(body)
		return nil
	}
}

func serve[T any](
	get func(activator.Scope, echo.Context) (T, error),
	method func(T, echo.Context) error,
	opts []HandlerOption,
) echo.HandlerFunc {
	cfg := defaultHandlerConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return func(c echo.Context) (err error) {
		if cfg.PanicRecovery {
			defer func() {
				if v := recover(); v != nil {
					err = cfg.PanicHandler(c, v)
				}
			}()
		}

		scope, scopeErr := activator.FromContext(c.Request().Context())
		if scopeErr != nil {
			return cfg.ScopeErrorHandler(c, scopeErr)
		}

		controller, resolveErr := get(scope, c)
		if resolveErr != nil {
			var reqErr requestError
			if errors.As(resolveErr, &reqErr) {
				return reqErr.err
			}
			return cfg.ResolutionErrorHandler(c, resolveErr)
		}

		return method(controller, c)
	}
}
