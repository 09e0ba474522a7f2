package vcam

import (
	"fmt"
	"io"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-holocam/pkg/frame"
)

// Sink receives finished RGB frames.
type Sink interface {
	Publish(f gocv.Mat) error
	Close() error
}

// Loopback writes raw RGB24 frames to an already configured device.
type Loopback struct {
	w      io.WriteCloser
	device string
	shape  frame.Shape

	mu     sync.Mutex
	closed bool
}

// NewLoopback wraps w. Every published frame must be width x height RGB.
func NewLoopback(w io.WriteCloser, device string, width, height int) *Loopback {
	return &Loopback{
		w:      w,
		device: device,
		shape:  frame.ColorShape(width, height),
	}
}

// Publish writes one frame.
func (l *Loopback) Publish(f gocv.Mat) error {
	if err := frame.CheckShape("output frame", l.shape, frame.ShapeOf(f)); err != nil {
		return err
	}
	if f.Type() != gocv.MatTypeCV8UC3 {
		return fmt.Errorf("vcam: output frame must be CV_8UC3, got %v", f.Type())
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}

	if _, err := l.w.Write(pixels(f)); err != nil {
		return &DeviceError{Device: l.device, Op: "write", Err: err}
	}
	return nil
}

// pixels returns the frame bytes without copying when the Mat is
// continuous. Region views are not, and get copied.
func pixels(f gocv.Mat) []byte {
	if f.IsContinuous() {
		if data, err := f.DataPtrUint8(); err == nil {
			return data
		}
	}
	return f.ToBytes()
}

// Close closes the device. Further Publish calls return ErrClosed.
func (l *Loopback) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return l.w.Close()
}
