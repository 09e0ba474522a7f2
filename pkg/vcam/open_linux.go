//go:build linux

package vcam

import (
	"log/slog"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Open opens the loopback device and sets its output format to RGB24 at
// width x height.
func Open(cfg Config, width, height int, logger *slog.Logger) (*Loopback, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	fd, err := unix.Open(cfg.Device, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, &DeviceError{Device: cfg.Device, Op: "open", Err: err}
	}

	format := encodeFormat(width, height)
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), vidiocSFmt, uintptr(unsafe.Pointer(&format[0])))
	if errno != 0 {
		unix.Close(fd)
		return nil, &DeviceError{Device: cfg.Device, Op: "VIDIOC_S_FMT", Err: errno}
	}

	logger.With("component", "vcam").Info("virtual camera opened",
		"device", cfg.Device,
		"width", width,
		"height", height,
		"format", "RGB24",
	)

	return NewLoopback(os.NewFile(uintptr(fd), cfg.Device), cfg.Device, width, height), nil
}
