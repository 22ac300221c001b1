package component

import (
	"log/slog"

	"github.com/google/uuid"
)

// Option configures a component definition.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	observer Observer
	keyFunc  func() string
}

func defaultOptions() *options {
	return &options{
		logger:   slog.Default(),
		observer: nopObserver{},
		keyFunc:  uuid.NewString,
	}
}

func buildOptions(opts []Option) *options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithLogger sets the logger used for lifecycle and insertion diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithObserver sets the observer notified of definitions, renders and
// insertion failures.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// WithKeyFunc replaces the generator for instance keys. Keys must be unique
// within a document.
func WithKeyFunc(fn func() string) Option {
	return func(o *options) {
		if fn != nil {
			o.keyFunc = fn
		}
	}
}
