package segment

import (
	"fmt"
	"log/slog"
	"time"
)

// RetryPolicy bounds how long a mask request keeps trying.
//
// The service is slow to warm up, so failures are expected at startup.
// Delays grow from InitialDelay by Multiplier up to MaxDelay, which is
// required whenever InitialDelay is set. The request
// gives up after MaxAttempts attempts or MaxElapsed, whichever comes first.
// A zero InitialDelay retries immediately. When both MaxAttempts and
// MaxElapsed are zero the request retries until its context is cancelled.
type RetryPolicy struct {
	MaxAttempts  int           `yaml:"max_attempts" json:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay" json:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay" json:"max_delay"`
	Multiplier   float64       `yaml:"multiplier" json:"multiplier"`
	MaxElapsed   time.Duration `yaml:"max_elapsed" json:"max_elapsed"`
}

// DefaultRetryPolicy returns a policy sized for a 60 FPS loop: fast first
// retries, capped backoff and a few seconds of total patience per frame.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  20,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     500 * time.Millisecond,
		Multiplier:   2,
		MaxElapsed:   5 * time.Second,
	}
}

// Unbounded reports whether the policy never gives up on its own.
func (p RetryPolicy) Unbounded() bool {
	return p.MaxAttempts <= 0 && p.MaxElapsed <= 0
}

// Validate checks the policy.
func (p RetryPolicy) Validate() error {
	if p.InitialDelay < 0 || p.MaxDelay < 0 || p.MaxElapsed < 0 {
		return fmt.Errorf("%w: retry durations must be >= 0", ErrInvalidConfig)
	}
	if p.InitialDelay > 0 && p.Multiplier < 1 {
		return fmt.Errorf("%w: retry multiplier must be >= 1", ErrInvalidConfig)
	}
	if p.InitialDelay > 0 && p.MaxDelay == 0 {
		return fmt.Errorf("%w: max delay is required with an initial delay", ErrInvalidConfig)
	}
	if p.MaxDelay > 0 && p.MaxDelay < p.InitialDelay {
		return fmt.Errorf("%w: max delay below initial delay", ErrInvalidConfig)
	}
	return nil
}

// Config holds segmentation client configuration.
type Config struct {
	// BaseURL is the service endpoint frames are POSTed to.
	BaseURL string `yaml:"base_url" json:"base_url"`

	// Timeout bounds one attempt.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`

	// JPEGQuality is used when encoding the request body (1-100).
	JPEGQuality int `yaml:"jpeg_quality" json:"jpeg_quality"`

	Retry RetryPolicy `yaml:"retry" json:"retry"`

	// Logger is not part of the file format.
	Logger *slog.Logger `yaml:"-" json:"-"`
}

// Option is a functional option for configuring the client.
type Option func(*Config)

// WithBaseURL sets the service endpoint.
func WithBaseURL(url string) Option {
	return func(c *Config) { c.BaseURL = url }
}

// WithTimeout sets the per-attempt timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Timeout = d }
}

// WithJPEGQuality sets the request encoding quality.
func WithJPEGQuality(q int) Option {
	return func(c *Config) { c.JPEGQuality = q }
}

// WithRetry sets the retry policy.
func WithRetry(p RetryPolicy) Option {
	return func(c *Config) { c.Retry = p }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// DefaultConfig returns defaults for a bodypix service on localhost.
func DefaultConfig() Config {
	return Config{
		BaseURL:     "http://localhost:9000",
		Timeout:     2 * time.Second,
		JPEGQuality: 90,
		Retry:       DefaultRetryPolicy(),
		Logger:      slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate checks that required configuration is present.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return ErrNoBaseURL
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: timeout must be >= 0", ErrInvalidConfig)
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return fmt.Errorf("%w: jpeg quality must be between 1 and 100", ErrInvalidConfig)
	}
	return c.Retry.Validate()
}
