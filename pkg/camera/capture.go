package camera

import (
	"errors"
	"image"
	"log/slog"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-holocam/pkg/frame"
)

// Source yields BGR frames. Read returns false when no frame could be
// acquired; the caller skips that iteration.
type Source interface {
	Read(dst *gocv.Mat) bool
	Close() error
}

// grabber is the subset of *gocv.VideoCapture a Capture needs.
type grabber interface {
	Read(m *gocv.Mat) bool
	Close() error
}

// Capture is a Source backed by an OpenCV capture device. Frames that
// arrive at the wrong size or channel count are converted to the
// configured BGR resolution.
type Capture struct {
	cfg    Config
	dev    grabber
	logger *slog.Logger

	once     sync.Once
	closeErr error
	warned   bool
}

// Open opens the capture device named by cfg.Device and requests the
// configured resolution and frame rate.
func Open(cfg Config, logger *slog.Logger) (*Capture, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	vc, err := gocv.OpenVideoCapture(cfg.deviceID())
	if err != nil {
		return nil, &DeviceError{Device: cfg.Device, Op: "open", Err: err}
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, &DeviceError{Device: cfg.Device, Op: "open", Err: errors.New("device not opened")}
	}

	vc.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	vc.Set(gocv.VideoCaptureFPS, float64(cfg.Framerate))

	logger = logger.With("component", "camera", "device", cfg.Device)
	logger.Info("capture opened",
		"width", int(vc.Get(gocv.VideoCaptureFrameWidth)),
		"height", int(vc.Get(gocv.VideoCaptureFrameHeight)),
		"fps", vc.Get(gocv.VideoCaptureFPS),
	)

	return newCapture(cfg, vc, logger), nil
}

func newCapture(cfg Config, dev grabber, logger *slog.Logger) *Capture {
	return &Capture{cfg: cfg, dev: dev, logger: logger}
}

// Read grabs the next frame into dst.
func (c *Capture) Read(dst *gocv.Mat) bool {
	if !c.dev.Read(dst) || dst.Empty() {
		return false
	}

	switch dst.Channels() {
	case frame.Channels:
	case 1:
		gocv.CvtColor(*dst, dst, gocv.ColorGrayToBGR)
	case 4:
		gocv.CvtColor(*dst, dst, gocv.ColorBGRAToBGR)
	default:
		return false
	}

	if dst.Cols() != c.cfg.Width || dst.Rows() != c.cfg.Height {
		if !c.warned {
			c.warned = true
			c.logger.Warn("device ignored requested resolution, resizing",
				"got", frame.ShapeOf(*dst).String(),
				"want", frame.ColorShape(c.cfg.Width, c.cfg.Height).String(),
			)
		}
		resized := gocv.NewMat()
		gocv.Resize(*dst, &resized, image.Pt(c.cfg.Width, c.cfg.Height), 0, 0, gocv.InterpolationLinear)
		resized.CopyTo(dst)
		resized.Close()
	}
	return true
}

// Config returns the capture configuration.
func (c *Capture) Config() Config {
	return c.cfg
}

// Close releases the device. It is safe to call more than once.
func (c *Capture) Close() error {
	c.once.Do(func() {
		c.closeErr = c.dev.Close()
	})
	return c.closeErr
}
