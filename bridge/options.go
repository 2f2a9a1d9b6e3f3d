package bridge

import (
	"log/slog"
)

// InterruptPolicy decides what Call does with a panic captured during
// conversion.
type InterruptPolicy int

const (
	// RepanicPolicy re-raises the original payload in the caller's goroutine.
	RepanicPolicy InterruptPolicy = iota
	// ErrorPolicy returns the payload wrapped in a *errors.PanicError.
	ErrorPolicy
)

func (p InterruptPolicy) String() string {
	switch p {
	case RepanicPolicy:
		return "repanic"
	case ErrorPolicy:
		return "error"
	default:
		return "unknown"
	}
}

// ParseInterruptPolicy maps "repanic" or "error" to its policy.
func ParseInterruptPolicy(s string) (InterruptPolicy, bool) {
	switch s {
	case "", "repanic":
		return RepanicPolicy, true
	case "error":
		return ErrorPolicy, true
	default:
		return RepanicPolicy, false
	}
}

// Option configures a bridged call.
type Option func(*config)

type config struct {
	logger *slog.Logger
	name   string
	policy InterruptPolicy
}

func newConfig(opts []Option) config {
	cfg := config{
		logger: slog.Default(),
		policy: RepanicPolicy,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithName labels the entry point in errors and log records.
func WithName(name string) Option {
	return func(c *config) {
		c.name = name
	}
}

// WithLogger sets the logger used for diagnostics (default: slog.Default()).
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithInterruptPolicy sets how Call surfaces a captured panic.
func WithInterruptPolicy(p InterruptPolicy) Option {
	return func(c *config) {
		c.policy = p
	}
}
