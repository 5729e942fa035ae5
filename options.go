package ebbsync

import (
	"github.com/rs/zerolog"

	"github.com/ebbworks/ebbsync/pkg/errors"
	"github.com/ebbworks/ebbsync/pkg/events"
	"github.com/ebbworks/ebbsync/pkg/logging"
	"github.com/ebbworks/ebbsync/pkg/schemas"
	"github.com/ebbworks/ebbsync/pkg/store"
)

// Option is a function that configures an Engine instance.
type Option func(*config) error

// config holds the engine's construction-time settings.
type config struct {
	store    store.Adapter
	sink     events.Sink
	registry *schemas.Registry
	logger   *zerolog.Logger
}

func defaultConfig() *config {
	return &config{
		logger: logging.Default(),
	}
}

// options applies the given options to the engine's config.
func (e *engine) options(opts ...Option) error {
	for _, opt := range opts {
		if err := opt(e.config); err != nil {
			return err
		}
	}
	return nil
}

// WithStore configures the storage adapter the engine reconciles into.
// An engine without a store reports every batch as adapter-unavailable.
func WithStore(adapter store.Adapter) Option {
	return func(c *config) error {
		c.store = adapter
		return nil
	}
}

// WithSink configures the event sink receiving outcome events.
func WithSink(sink events.Sink) Option {
	return func(c *config) error {
		if sink == nil {
			return errors.NewValidationError("sink", nil, "must not be nil")
		}
		c.sink = sink
		return nil
	}
}

// WithSchemas configures the schema registry used to validate remote
// bodies before they are applied. Without a registry, bodies are treated
// as opaque payloads.
func WithSchemas(registry *schemas.Registry) Option {
	return func(c *config) error {
		if registry == nil {
			return errors.NewValidationError("registry", nil, "must not be nil")
		}
		c.registry = registry
		return nil
	}
}

// WithLogger configures the engine's logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(c *config) error {
		if logger == nil {
			return errors.NewValidationError("logger", nil, "must not be nil")
		}
		c.logger = logger
		return nil
	}
}
