// Package app provides the application context and dependency management
// for the ebbsync CLI: configuration, logging, and access to the local
// store and reconciliation engine.
package app

import (
	"github.com/rs/zerolog"

	"github.com/ebbworks/ebbsync"
	"github.com/ebbworks/ebbsync/pkg/events"
	"github.com/ebbworks/ebbsync/pkg/store/sqlite"
)

// App represents the ebbsync application with all its dependencies.
type App struct {
	// Version information
	version string
	commit  string
	date    string

	// Configuration
	config *Config

	// Logger
	logger *zerolog.Logger
}

// New creates a new App instance with the given version information.
func New(version, commit, date string, opts ...Option) (*App, error) {
	a := &App{
		version: version,
		commit:  commit,
		date:    date,
	}

	config, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	a.config = config

	logger := NewLogger(config)
	a.logger = &logger

	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}

	return a, nil
}

// Version returns the version string.
func (a *App) Version() string {
	return a.version
}

// Config returns the application configuration.
func (a *App) Config() *Config {
	return a.config
}

// Logger returns the application logger.
func (a *App) Logger() *zerolog.Logger {
	return a.logger
}

// OpenStore opens the configured SQLite store. The caller closes it.
func (a *App) OpenStore() (*sqlite.Store, error) {
	return sqlite.Open(a.config.StorePath)
}

// Engine builds a reconciliation engine over the given store with the
// given event sink.
func (a *App) Engine(adapter *sqlite.Store, sink events.Sink) (ebbsync.Engine, error) {
	opts := []ebbsync.Option{
		ebbsync.WithStore(adapter),
		ebbsync.WithLogger(a.logger),
	}
	if sink != nil {
		opts = append(opts, ebbsync.WithSink(sink))
	}
	return ebbsync.New(opts...)
}

// Option is a functional option for configuring the App.
type Option func(*App) error

// WithConfig sets a custom configuration.
func WithConfig(config *Config) Option {
	return func(a *App) error {
		a.config = config
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(a *App) error {
		a.logger = logger
		return nil
	}
}
