package executor

import (
	"log/slog"
	"time"

	"github.com/flowrun/flowengine/pkg/flow"
)

// Config controls dispatcher pacing, concurrency, and observability. Zero
// values are replaced with the documented defaults by New.
type Config struct {
	MaxConcurrent          int
	VisibilityTimeout      time.Duration
	DispatcherIdleInterval time.Duration
	DispatcherErrorBackoff time.Duration
	Observer               flow.Observer
	Logger                 *slog.Logger
}

const (
	defaultMaxConcurrent          = 5
	defaultVisibilityTimeout      = 30 * time.Second
	defaultDispatcherIdleInterval = 100 * time.Millisecond
	defaultDispatcherErrorBackoff = 1000 * time.Millisecond
)

func (c Config) withDefaults() Config {
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = defaultMaxConcurrent
	}
	if c.VisibilityTimeout <= 0 {
		c.VisibilityTimeout = defaultVisibilityTimeout
	}
	if c.DispatcherIdleInterval <= 0 {
		c.DispatcherIdleInterval = defaultDispatcherIdleInterval
	}
	if c.DispatcherErrorBackoff <= 0 {
		c.DispatcherErrorBackoff = defaultDispatcherErrorBackoff
	}
	if c.Observer == nil {
		c.Observer = flow.NoopObserver{}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Option configures a Config via New.
type Option func(*Config)

// WithMaxConcurrent sets the upper bound on simultaneous workers.
func WithMaxConcurrent(n int) Option {
	return func(c *Config) { c.MaxConcurrent = n }
}

// WithVisibilityTimeout sets the threshold RequeueExpired uses to decide a
// run is stuck.
func WithVisibilityTimeout(d time.Duration) Option {
	return func(c *Config) { c.VisibilityTimeout = d }
}

// WithDispatcherIdleInterval sets the dispatcher's idle poll interval.
func WithDispatcherIdleInterval(d time.Duration) Option {
	return func(c *Config) { c.DispatcherIdleInterval = d }
}

// WithDispatcherErrorBackoff sets the dispatcher's backoff after a
// transient internal error.
func WithDispatcherErrorBackoff(d time.Duration) Option {
	return func(c *Config) { c.DispatcherErrorBackoff = d }
}

// WithObserver attaches an Observer for logging/metrics callbacks.
func WithObserver(obs flow.Observer) Option {
	return func(c *Config) { c.Observer = obs }
}

// WithLogger attaches a structured logger for dispatcher-level diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) { c.Logger = logger }
}
