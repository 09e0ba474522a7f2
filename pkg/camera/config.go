// Package camera reads frames from a physical capture device.
package camera

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/teslashibe/go-holocam/pkg/frame"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("camera: invalid config")

// Config holds capture settings.
type Config struct {
	// Device is a numeric index ("0") or a device path ("/dev/video0").
	Device string `yaml:"device" json:"device"`

	Width     int `yaml:"width" json:"width"`
	Height    int `yaml:"height" json:"height"`
	Framerate int `yaml:"framerate" json:"framerate"`
}

// DefaultConfig returns the 640x480 @ 60 FPS configuration.
func DefaultConfig() Config {
	return Config{
		Device:    "/dev/video0",
		Width:     frame.DefaultWidth,
		Height:    frame.DefaultHeight,
		Framerate: 60,
	}
}

// Validate checks if the config values are within valid ranges.
func (c Config) Validate() error {
	if c.Device == "" {
		return fmt.Errorf("%w: device is required", ErrInvalidConfig)
	}
	if c.Width < 16 || c.Width > 7680 {
		return fmt.Errorf("%w: width must be between 16 and 7680", ErrInvalidConfig)
	}
	if c.Height < 16 || c.Height > 4320 {
		return fmt.Errorf("%w: height must be between 16 and 4320", ErrInvalidConfig)
	}
	if c.Framerate < 1 || c.Framerate > 240 {
		return fmt.Errorf("%w: framerate must be between 1 and 240", ErrInvalidConfig)
	}
	return nil
}

// deviceID resolves Device into what gocv.OpenVideoCapture accepts:
// an int index for numeric ids, otherwise the string itself.
func (c Config) deviceID() interface{} {
	if id, err := strconv.Atoi(c.Device); err == nil && id >= 0 {
		return id
	}
	return c.Device
}

// DeviceError reports a capture device that could not be used.
type DeviceError struct {
	Device string
	Op     string
	Err    error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("camera %s: %s: %v", e.Device, e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}
