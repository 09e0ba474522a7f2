package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/teslashibe/go-holocam/pkg/camera"
	"github.com/teslashibe/go-holocam/pkg/mask"
	"github.com/teslashibe/go-holocam/pkg/segment"
	"github.com/teslashibe/go-holocam/pkg/stylize"
	"github.com/teslashibe/go-holocam/pkg/vcam"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("pipeline: invalid config")

// Fallback selects what a frame gets when no fresh mask is available.
type Fallback string

const (
	// FallbackPassthrough publishes the stylized frame without compositing.
	FallbackPassthrough Fallback = "passthrough"

	// FallbackLastMask reuses the most recent good mask, or passes
	// through when there is none yet.
	FallbackLastMask Fallback = "last-mask"
)

// Fallbacks lists the accepted fallback modes.
func Fallbacks() []Fallback {
	return []Fallback{FallbackPassthrough, FallbackLastMask}
}

// Config is the whole pipeline configuration. It is built once at startup
// and passed by value; nothing reads it through globals.
type Config struct {
	Capture camera.Config `yaml:"capture" json:"capture"`
	Output  vcam.Config   `yaml:"output" json:"output"`

	// Background is the image path placed behind the subject.
	Background string `yaml:"background" json:"background"`

	Stylize stylize.Config `yaml:"stylize" json:"stylize"`
	Mask    mask.Config    `yaml:"mask" json:"mask"`
	Segment segment.Config `yaml:"segment" json:"segment"`

	Fallback Fallback `yaml:"fallback" json:"fallback"`

	// CaptureRetryDelay is the pause after a failed capture read.
	CaptureRetryDelay time.Duration `yaml:"capture_retry_delay" json:"capture_retry_delay"`

	// MaxCaptureFailures stops the run after that many consecutive failed
	// reads. Zero keeps skipping forever.
	MaxCaptureFailures int `yaml:"max_capture_failures" json:"max_capture_failures"`

	// PreviewEvery hands every Nth published frame to the observer as a
	// JPEG. Zero disables previews.
	PreviewEvery int `yaml:"preview_every" json:"preview_every"`

	// StatsInterval is how often the observer receives stats.
	StatsInterval time.Duration `yaml:"stats_interval" json:"stats_interval"`
}

// DefaultConfig returns the stock configuration: 640x480 @ 60 FPS from
// /dev/video0 to /dev/video20.
func DefaultConfig() Config {
	return Config{
		Capture:           camera.DefaultConfig(),
		Output:            vcam.DefaultConfig(),
		Background:        "background.jpg",
		Stylize:           stylize.DefaultConfig(),
		Mask:              mask.DefaultConfig(),
		Segment:           segment.DefaultConfig(),
		Fallback:          FallbackPassthrough,
		CaptureRetryDelay: 10 * time.Millisecond,
		PreviewEvery:      15,
		StatsInterval:     time.Second,
	}
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := c.Capture.Validate(); err != nil {
		return err
	}
	if err := c.Output.Validate(); err != nil {
		return err
	}
	if c.Background == "" {
		return fmt.Errorf("%w: background is required", ErrInvalidConfig)
	}
	if err := c.Stylize.Validate(); err != nil {
		return err
	}
	if err := c.Mask.Validate(); err != nil {
		return err
	}
	if err := c.Segment.Validate(); err != nil {
		return err
	}
	switch c.Fallback {
	case FallbackPassthrough, FallbackLastMask:
	default:
		return fmt.Errorf("%w: unknown fallback %q", ErrInvalidConfig, c.Fallback)
	}
	if c.CaptureRetryDelay < 0 || c.StatsInterval < 0 {
		return fmt.Errorf("%w: durations must be >= 0", ErrInvalidConfig)
	}
	if c.MaxCaptureFailures < 0 || c.PreviewEvery < 0 {
		return fmt.Errorf("%w: counts must be >= 0", ErrInvalidConfig)
	}
	return nil
}
