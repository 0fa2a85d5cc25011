// Package vesselhttp integrates vessel with net/http servers.
//
// ScopeMiddleware creates one scope per request, attaches it to the
// request context, and closes it when the request completes. Handlers
// resolve request-scoped components through FromContext or Handle.
//
//	c := vessel.New()
//	// ... register definitions, c.Build(ctx)
//
//	mux := http.NewServeMux()
//	mux.Handle("/users", vesselhttp.Handle(c, "userController",
//	    func(ctrl *UserController) http.HandlerFunc { return ctrl.List }))
//
//	http.ListenAndServe(":8080", vesselhttp.ScopeMiddleware(c)(mux))
package vesselhttp

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/vesselframework/vessel"
)

type scopeContextKey struct{}

// Config holds the scope middleware configuration.
type Config struct {
	// ErrorHandler runs when request setup fails. Defaults to a plain 500.
	ErrorHandler func(http.ResponseWriter, *http.Request, error)

	// CloseErrorHandler runs when closing the request scope fails.
	// Defaults to slog logging.
	CloseErrorHandler func(error)

	// Setup functions run after scope creation, in order. They can seed
	// the scope with request-derived state.
	Setup []func(vessel.Scope, *http.Request) error
}

// Option configures the scope middleware.
type Option func(*Config)

// WithErrorHandler sets the handler for request setup failures.
func WithErrorHandler(h func(http.ResponseWriter, *http.Request, error)) Option {
	return func(c *Config) { c.ErrorHandler = h }
}

// WithCloseErrorHandler sets the handler for scope close failures.
func WithCloseErrorHandler(h func(error)) Option {
	return func(c *Config) { c.CloseErrorHandler = h }
}

// WithSetup adds a function that runs after scope creation.
func WithSetup(fn func(vessel.Scope, *http.Request) error) Option {
	return func(c *Config) { c.Setup = append(c.Setup, fn) }
}

func defaultConfig() *Config {
	return &Config{
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		},
		CloseErrorHandler: func(err error) {
			slog.Error("failed to close request scope", "error", err)
		},
	}
}

// ScopeMiddleware wraps a handler so every request gets its own scope,
// reachable via FromContext, closed when the request finishes.
func ScopeMiddleware(container *vessel.Container, opts ...Option) func(http.Handler) http.Handler {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scope := vessel.NewCachingScope()
			defer func() {
				if err := scope.Close(r.Context()); err != nil {
					cfg.CloseErrorHandler(err)
				}
			}()

			r = r.WithContext(NewContext(r.Context(), scope))

			for _, setup := range cfg.Setup {
				if err := setup(scope, r); err != nil {
					cfg.ErrorHandler(w, r, err)
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// NewContext attaches a scope to a context.
func NewContext(ctx context.Context, scope vessel.Scope) context.Context {
	return context.WithValue(ctx, scopeContextKey{}, scope)
}

// FromContext returns the request scope attached by ScopeMiddleware.
func FromContext(ctx context.Context) (vessel.Scope, bool) {
	scope, ok := ctx.Value(scopeContextKey{}).(vessel.Scope)
	return scope, ok
}

// Resolve resolves a component into the request scope carried by ctx.
// Without a scope on the context it falls back to plain resolution, so
// singleton components work either way.
func Resolve[T any](ctx context.Context, container *vessel.Container, name string) (T, error) {
	var zero T

	scope, ok := FromContext(ctx)
	if !ok {
		return vessel.ResolveNamed[T](container, name)
	}

	inst, err := container.GetInScope(scope, name)
	if err != nil {
		return zero, err
	}
	typed, ok := inst.(T)
	if !ok {
		return zero, &resolveTypeError{name: name, got: inst}
	}
	return typed, nil
}

// Handle builds an http.HandlerFunc that resolves a component into the
// request scope and delegates to one of its handler methods.
func Handle[T any](container *vessel.Container, name string, method func(T) http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctrl, err := Resolve[T](r.Context(), container, name)
		if err != nil {
			slog.Error("handler resolution failed", "component", name, "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		method(ctrl)(w, r)
	}
}

type resolveTypeError struct {
	name string
	got  any
}

func (e *resolveTypeError) Error() string {
	return "component " + e.name + " has unexpected type"
}
