// Package fiber integrates activator with the Fiber web framework.
//
// ScopeMiddleware gives every request its own scope, stored in
// fiber.Ctx.Locals and attached to the UserContext. Handle resolves a
// controller from that scope, HandleActivated constructs a fresh one with
// arguments taken from the request:
//
//	app := fiber.New()
//	app.Use(activatorfiber.ScopeMiddleware(provider))
//
//	app.Get("/users/:id", activatorfiber.Handle(UserController.GetByID))
//	app.Post("/tenants/:tenant/imports", activatorfiber.HandleActivated(
//	    activatorfiber.Args(activatorfiber.Params("tenant"), activatorfiber.BindBody[ImportRequest]()),
//	    (*ImportController).Start,
//	))
package fiber

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"github.com/junioryono/activator"
)

// scopeKey is the key used to store the scope in fiber.Ctx.Locals
const scopeKey = "activator_scope"

// Config holds the configuration for the scope middleware.
type Config struct {
	// ErrorHandler is called when scope creation or a middleware fails.
	// If nil, a 500 JSON response is sent.
	ErrorHandler func(*fiber.Ctx, error) error

	// CloseErrorHandler is called when closing the request scope fails.
	// If nil, errors are logged.
	CloseErrorHandler func(error)

	// Middlewares run after scope creation, in order.
	Middlewares []func(activator.Scope, *fiber.Ctx) error

	// Logger receives the adapter's diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

// Option configures the scope middleware.
type Option func(*Config)

// WithErrorHandler sets the error handler for scope creation failures.
func WithErrorHandler(h func(*fiber.Ctx, error) error) Option {
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
// Multiple middlewares are executed in the order they are added.
func WithMiddleware(mw func(activator.Scope, *fiber.Ctx) error) Option {
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

func internalError(c *fiber.Ctx) error {
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "Internal Server Error",
	})
}

func defaultConfig() *Config {
	cfg := &Config{Logger: slog.Default()}
	cfg.ErrorHandler = func(c *fiber.Ctx, err error) error {
		return internalError(c)
	}
	cfg.CloseErrorHandler = func(err error) {
		cfg.Logger.Error("failed to close request scope", "error", err)
	}
	return cfg
}

// ScopeMiddleware creates a Fiber middleware that opens a scope for each
// request. The scope is stored in fiber.Ctx.Locals and attached to the
// UserContext, and is disposed with every instance activated in it once
// the handler chain returns.
func ScopeMiddleware(provider activator.Provider, opts ...Option) fiber.Handler {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return func(c *fiber.Ctx) error {
		scope, err := provider.CreateScope(c.UserContext())
		if err != nil {
			return cfg.ErrorHandler(c, err)
		}

		// Fiber reuses the Ctx, so the scope must not outlive this call.
		defer func() {
			c.Locals(scopeKey, nil)
			if err := scope.Close(); err != nil {
				cfg.CloseErrorHandler(err)
			}
		}()

		c.SetUserContext(scope.Context())
		c.Locals(scopeKey, scope)

		for _, mw := range cfg.Middlewares {
			if err := mw(scope, c); err != nil {
				return cfg.ErrorHandler(c, err)
			}
		}

		return c.Next()
	}
}

// HandlerConfig holds configuration for the handler wrappers.
type HandlerConfig struct {
	// PanicRecovery enables panic recovery in the handler.
	PanicRecovery bool

	// PanicHandler is called when a panic occurs (if PanicRecovery is true).
	PanicHandler func(*fiber.Ctx, any) error

	// ScopeErrorHandler is called when the request has no usable scope.
	ScopeErrorHandler func(*fiber.Ctx, error) error

	// ResolutionErrorHandler is called when the controller cannot be
	// resolved or activated.
	ResolutionErrorHandler func(*fiber.Ctx, error) error

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
func WithPanicHandler(h func(*fiber.Ctx, any) error) HandlerOption {
	return func(c *HandlerConfig) {
		c.PanicHandler = h
	}
}

// WithScopeErrorHandler sets the error handler for scope retrieval failures.
func WithScopeErrorHandler(h func(*fiber.Ctx, error) error) HandlerOption {
	return func(c *HandlerConfig) {
		c.ScopeErrorHandler = h
	}
}

// WithResolutionErrorHandler sets the error handler for controller
// resolution failures.
func WithResolutionErrorHandler(h func(*fiber.Ctx, error) error) HandlerOption {
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
	cfg.PanicHandler = func(c *fiber.Ctx, v any) error {
		cfg.Logger.Error("panic in handler", "panic", v, "route", c.Route().Path)
		return internalError(c)
	}
	cfg.ScopeErrorHandler = func(c *fiber.Ctx, err error) error {
		cfg.Logger.Error("failed to get scope from context", "error", err, "route", c.Route().Path)
		return internalError(c)
	}
	cfg.ResolutionErrorHandler = func(c *fiber.Ctx, err error) error {
		cfg.Logger.Error("failed to resolve controller", "error", err, "route", c.Route().Path)
		return internalError(c)
	}
	return cfg
}

// Handle wraps a controller method. The controller T is resolved from the
// scope stored by ScopeMiddleware.
//
//	app.Get("/users/:id", activatorfiber.Handle(UserController.GetByID))
func Handle[T any](method func(T, *fiber.Ctx) error, opts ...HandlerOption) fiber.Handler {
	return serve(func(scope activator.Scope, _ *fiber.Ctx) (T, error) {
		return activator.Resolve[T](scope)
	}, method, opts)
}

// Configure builds the leading constructor arguments of an activated
// controller from the request. An error is returned to Fiber unchanged.
type Configure func(*fiber.Ctx, *activator.Builder) error

type requestError struct{ err error }

func (e requestError) Error() string { return e.err.Error() }
func (e requestError) Unwrap() error { return e.err }

// HandleActivated wraps a controller method whose controller is constructed
// for each request. configure supplies the leading constructor arguments
// from the request; the remaining ones come from the request scope. The
// controller is disposed with the scope.
func HandleActivated[T any](configure Configure, method func(T, *fiber.Ctx) error, opts ...HandlerOption) fiber.Handler {
	return serve(func(scope activator.Scope, c *fiber.Ctx) (T, error) {
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
	return func(c *fiber.Ctx, b *activator.Builder) error {
		for _, configure := range configures {
			if err := configure(c, b); err != nil {
				return err
			}
		}
		return nil
	}
}

// Params supplies the named route parameters, in order, as literal
// arguments. Values are copied out of Fiber's reusable buffers.
func Params(names ...string) Configure {
	return func(c *fiber.Ctx, b *activator.Builder) error {
		for _, name := range names {
			b.Value(utils.CopyString(c.Params(name)))
		}
		return nil
	}
}

// Query supplies the named query string values, in order, as literal
// arguments. Missing keys supply "". Values are copied like Params.
func Query(names ...string) Configure {
	return func(c *fiber.Ctx, b *activator.Builder) error {
		for _, name := range names {
			b.Value(utils.CopyString(c.Query(name)))
		}
		return nil
	}
}

// BindBody parses the request body into a new B and supplies it as a
// literal *B argument. Parse failures become 400 Bad Request unless Fiber
// already chose a status.
func BindBody[B any]() Configure {
	return func(c *fiber.Ctx, b *activator.Builder) error {
		body := new(B)
		if err := c.BodyParser(body); err != nil {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return fe
			}
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		b.Value(body)
		return nil
	}
}

func serve[T any](
	get func(activator.Scope, *fiber.Ctx) (T, error),
	method func(T, *fiber.Ctx) error,
	opts []HandlerOption,
) fiber.Handler {
	cfg := defaultHandlerConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return func(c *fiber.Ctx) (err error) {
		if cfg.PanicRecovery {
			defer func() {
				if v := recover(); v != nil {
					err = cfg.PanicHandler(c, v)
				}
			}()
		}

		scope := FromContext(c)
		if scope == nil {
			return cfg.ScopeErrorHandler(c, activator.ErrScopeNotInContext)
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

// FromContext retrieves the scope stored by ScopeMiddleware, or nil when
// the request has none.
//
//	scope := activatorfiber.FromContext(c)
//	users := activator.MustResolve[*UserService](scope)
func FromContext(c *fiber.Ctx) activator.Scope {
	scope, ok := c.Locals(scopeKey).(activator.Scope)
	if !ok {
		return nil
	}
	return scope
}
