// Package mask turns raw segmentation output into soft blend weights.
package mask

import (
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-holocam/pkg/frame"
)

// ErrInvalidConfig is returned by New when the configuration is unusable.
var ErrInvalidConfig = errors.New("mask: invalid config")

// Config holds post-processing parameters.
type Config struct {
	// DilateSize is the side of the square structuring element.
	// Zero disables dilation.
	DilateSize int `yaml:"dilate_size" json:"dilate_size"`

	// BlurSize is the side of the box blur kernel. Zero disables blurring.
	BlurSize int `yaml:"blur_size" json:"blur_size"`

	// Scale divides raw scores after dilation. The segmentation service
	// emits 0/1 so the default is 1; use 255 for a 0-255 probability map.
	Scale float64 `yaml:"scale" json:"scale"`
}

// DefaultConfig returns the stock post-processing parameters.
func DefaultConfig() Config {
	return Config{
		DilateSize: 10,
		BlurSize:   30,
		Scale:      1,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.DilateSize < 0 || c.BlurSize < 0 {
		return fmt.Errorf("%w: kernel sizes must be >= 0", ErrInvalidConfig)
	}
	if c.Scale <= 0 {
		return fmt.Errorf("%w: scale must be positive", ErrInvalidConfig)
	}
	return nil
}

// PostProcessor grows and softens a raw mask. Safe for concurrent use:
// the kernel is read-only after construction.
type PostProcessor struct {
	cfg    Config
	kernel gocv.Mat
}

// New validates cfg and builds a PostProcessor. Close releases the kernel.
func New(cfg Config) (*PostProcessor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &PostProcessor{cfg: cfg}
	if cfg.DilateSize > 0 {
		p.kernel = gocv.GetStructuringElement(gocv.MorphRect, image.Pt(cfg.DilateSize, cfg.DilateSize))
	}
	return p, nil
}

// Process returns a CV_32F mask of the same size as raw: dilated, scaled and
// box blurred. Values are left in the blurred range; the compositor clamps.
func (p *PostProcessor) Process(raw gocv.Mat) (gocv.Mat, error) {
	if raw.Empty() {
		return gocv.NewMat(), frame.ErrEmptyFrame
	}
	if raw.Channels() != 1 {
		return gocv.NewMat(), &frame.ShapeMismatchError{
			What: "raw mask",
			Want: frame.MaskShape(raw.Cols(), raw.Rows()),
			Got:  frame.ShapeOf(raw),
		}
	}

	grown := gocv.NewMat()
	defer grown.Close()
	if p.cfg.DilateSize > 0 {
		gocv.Dilate(raw, &grown, p.kernel)
	} else {
		raw.CopyTo(&grown)
	}

	weights := gocv.NewMat()
	grown.ConvertTo(&weights, gocv.MatTypeCV32F)
	if p.cfg.Scale != 1 {
		weights.DivideFloat(float32(p.cfg.Scale))
	}

	if p.cfg.BlurSize > 0 {
		blurred := gocv.NewMat()
		gocv.Blur(weights, &blurred, image.Pt(p.cfg.BlurSize, p.cfg.BlurSize))
		weights.Close()
		weights = blurred
	}

	return weights, nil
}

// Close releases the structuring element.
func (p *PostProcessor) Close() error {
	if p.cfg.DilateSize > 0 {
		return p.kernel.Close()
	}
	return nil
}
