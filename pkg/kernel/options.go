package kernel

import (
	"log/slog"
	"time"

	"github.com/aretw0/mnb/pkg/domain"
)

// DefaultTimeout bounds a single handler call when no timeout is configured.
const DefaultTimeout = 2 * time.Minute

// Option defines a functional option for configuring the Kernel.
type Option func(*Kernel)

// WithTimeout bounds every handler call. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(k *Kernel) {
		if d > 0 {
			k.timeout = d
		}
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(k *Kernel) {
		k.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(k *Kernel) {
		k.hooks = k.hooks.Merge(hooks)
	}
}

// WithClock replaces the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(k *Kernel) {
		k.now = now
	}
}
