package segment

import (
	"context"
	"sync"

	"gocv.io/x/gocv"
)

// Mock implements Provider for testing.
type Mock struct {
	// MaskFunc is called when Mask is invoked.
	MaskFunc func(ctx context.Context, f gocv.Mat) (gocv.Mat, error)

	mu    sync.Mutex
	calls int
}

// NewMock returns a mock that answers every frame with a full-foreground
// 0/1 mask of the frame's size.
func NewMock() *Mock {
	return &Mock{
		MaskFunc: func(ctx context.Context, f gocv.Mat) (gocv.Mat, error) {
			return Uniform(f.Cols(), f.Rows(), 1), nil
		},
	}
}

// Mask calls MaskFunc and records the call.
func (m *Mock) Mask(ctx context.Context, f gocv.Mat) (gocv.Mat, error) {
	m.mu.Lock()
	m.calls++
	fn := m.MaskFunc
	m.mu.Unlock()

	if fn == nil {
		return gocv.NewMat(), &TransportError{Op: "mock", Err: ErrDegraded}
	}
	return fn(ctx, f)
}

// Calls returns the number of Mask invocations.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Uniform returns a CV_8UC1 mask filled with v.
func Uniform(width, height int, v uint8) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(float64(v), 0, 0, 0), height, width, gocv.MatTypeCV8UC1)
}
