// Package vcam publishes frames to a v4l2loopback virtual camera.
package vcam

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned by Publish after Close.
	ErrClosed = errors.New("vcam: sink closed")

	// ErrInvalidConfig is returned by Validate.
	ErrInvalidConfig = errors.New("vcam: invalid config")
)

// DefaultDevice is the loopback node created by
// `modprobe v4l2loopback video_nr=20`.
const DefaultDevice = "/dev/video20"

// Config holds virtual camera settings.
type Config struct {
	Device string `yaml:"device" json:"device"`
}

// DefaultConfig returns the default output configuration.
func DefaultConfig() Config {
	return Config{Device: DefaultDevice}
}

// Validate checks the output configuration.
func (c Config) Validate() error {
	if c.Device == "" {
		return fmt.Errorf("%w: device is required", ErrInvalidConfig)
	}
	return nil
}

// DeviceError reports an output device that could not be used.
type DeviceError struct {
	Device string
	Op     string
	Err    error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("vcam %s: %s: %v", e.Device, e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}
