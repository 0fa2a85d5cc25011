package vessel

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

// ContainerOption customizes container construction.
type ContainerOption func(*Container)

// WithLogger sets the structured logger. The default logger discards
// everything.
func WithLogger(logger *slog.Logger) ContainerOption {
	return func(c *Container) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRegistry replaces the container's registry with a pre-populated one.
func WithRegistry(registry *Registry) ContainerOption {
	return func(c *Container) {
		if registry != nil {
			c.registry = registry
		}
	}
}

// AllowCircularReferences enables early references: a property-binding
// cycle between singletons resolves against the constructed-but-unpopulated
// instance instead of failing. Constructor-argument cycles stay fatal.
func AllowCircularReferences(allow bool) ContainerOption {
	return func(c *Container) { c.allowCircular = allow }
}

// WithDefinitionOverriding lets later registrations replace earlier ones.
func WithDefinitionOverriding(allow bool) ContainerOption {
	return func(c *Container) { c.registry.allowOverriding = allow }
}

// WithMetrics registers container metrics on a prometheus registerer.
func WithMetrics(reg prometheus.Registerer) ContainerOption {
	return func(c *Container) {
		c.metrics = newMetrics(reg)
	}
}
