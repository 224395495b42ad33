package engine

// This file defines functional options that configure the Engine during
// construction. Keeping them in a standalone file makes it easy to discover
// all available knobs at a glance.

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Mhmod1992/workshop-engine/internal/remote"
)

// Option configures an Engine during construction in New. Options must be
// deterministic and side-effect free.
type Option func(*Engine) error

// WithHooks installs the embedder's callbacks (reload, navigation reset,
// incoming request). Nil fields are ignored.
func WithHooks(h Hooks) Option {
	return func(e *Engine) error {
		e.hooks = h
		return nil
	}
}

// WithLogger replaces the default logger.
func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) error {
		e.log = log
		return nil
	}
}

// WithClock injects a time source. Intended for tests.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) error {
		if clock == nil {
			return fmt.Errorf("clock must not be nil")
		}
		e.clock = clock
		return nil
	}
}

// WithRemotes replaces the transport implementations. Intended for tests and
// for embedders that bring their own service clients.
func WithRemotes(data remote.DataAPI, auth remote.AuthAPI, feed remote.ChangeFeed) Option {
	return func(e *Engine) error {
		e.data = data
		e.auth = auth
		e.feed = feed
		return nil
	}
}

// WithBlobStore replaces the attachment storage client.
func WithBlobStore(blob remote.BlobAPI) Option {
	return func(e *Engine) error {
		e.blob = blob
		return nil
	}
}
