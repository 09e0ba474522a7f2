//go:build !linux

package vcam

import (
	"errors"
	"log/slog"
)

// Open is only supported on linux, where v4l2loopback exists.
func Open(cfg Config, width, height int, logger *slog.Logger) (*Loopback, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return nil, &DeviceError{Device: cfg.Device, Op: "open", Err: errors.ErrUnsupported}
}
