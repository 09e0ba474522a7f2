package pipeline

import (
	"context"
	"sync"

	"gocv.io/x/gocv"
)

// slot holds at most one frame. A put over an unconsumed frame closes the
// old one: the consumer always sees the newest capture.
type slot struct {
	mu    sync.Mutex
	frame gocv.Mat
	full  bool
	err   error
	ready chan struct{}
}

func newSlot() *slot {
	return &slot{ready: make(chan struct{}, 1)}
}

// put stores f and reports whether an unconsumed frame was dropped.
func (s *slot) put(f gocv.Mat) (dropped bool) {
	s.mu.Lock()
	if s.full {
		s.frame.Close()
		dropped = true
	}
	s.frame = f
	s.full = true
	s.mu.Unlock()

	s.signal()
	return dropped
}

// fail makes every following take return err once the slot is empty.
func (s *slot) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	s.signal()
}

func (s *slot) signal() {
	select {
	case s.ready <- struct{}{}:
	default:
	}
}

// take blocks until a frame is available, the producer failed or ctx is
// done. The caller owns the returned frame.
func (s *slot) take(ctx context.Context) (gocv.Mat, error) {
	for {
		s.mu.Lock()
		if s.full {
			f := s.frame
			s.full = false
			s.mu.Unlock()
			return f, nil
		}
		err := s.err
		s.mu.Unlock()
		if err != nil {
			return gocv.NewMat(), err
		}

		select {
		case <-ctx.Done():
			return gocv.NewMat(), ctx.Err()
		case <-s.ready:
		}
	}
}

// drain closes a frame left behind after the consumer stopped.
func (s *slot) drain() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.full {
		s.frame.Close()
		s.full = false
	}
}
