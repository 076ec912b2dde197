package plugin

import "context"

// Plugin is the lifecycle contract every plugin implementation satisfies.
// Yield-source plugins push opportunity records into the host sink during
// Start; processor plugins consume the records the host hands them.
type Plugin interface {
	// Info returns the static metadata for the plugin.
	Info() Info
	// Configure lets the plugin inspect its configuration block before Init.
	// Implementations may mutate the map to inject defaults.
	Configure(cfg map[string]any) error
	// Init prepares the plugin for use.
	Init(ctx *ExecutionContext) error
	// Start activates the plugin. Long running work belongs in goroutines
	// spawned here.
	Start(ctx *ExecutionContext) error
	// Stop halts the plugin and releases its resources.
	Stop(ctx *ExecutionContext) error
}

// ExecutionContext is handed to plugins at every lifecycle stage.
type ExecutionContext struct {
	// C carries cancellation and deadlines from the host.
	C context.Context
	// Config is the plugin specific configuration block merged with manager overrides.
	Config map[string]any
	// Resources exposes host services under the Resource* keys.
	Resources map[string]any
}

// Clone returns a shallow copy so a plugin can mutate the maps without
// affecting its siblings.
func (c *ExecutionContext) Clone() *ExecutionContext {
	if c == nil {
		return nil
	}
	dup := *c
	if c.Config != nil {
		dup.Config = make(map[string]any, len(c.Config))
		for k, v := range c.Config {
			dup.Config[k] = v
		}
	}
	if c.Resources != nil {
		dup.Resources = make(map[string]any, len(c.Resources))
		for k, v := range c.Resources {
			dup.Resources[k] = v
		}
	}
	return &dup
}

// Option modifies the behaviour of a plugin manager instance.
type Option func(*Manager)

// WithLoader overrides the default binary loader implementation.
func WithLoader(loader Loader) Option {
	return func(m *Manager) {
		if loader != nil {
			m.loader = loader
		}
	}
}

// WithIsolationStrategy sets a custom isolation policy enforcement strategy.
func WithIsolationStrategy(strategy IsolationStrategy) Option {
	return func(m *Manager) {
		if strategy != nil {
			m.isolation = strategy
		}
	}
}

// WithResource registers a shared resource exposed to every plugin.
func WithResource(key string, value any) Option {
	return func(m *Manager) {
		if key == "" || value == nil {
			return
		}
		if m.resources == nil {
			m.resources = make(map[string]any)
		}
		m.resources[key] = value
	}
}
