// Package stylize renders camera frames as a flickering blue hologram.
//
// The effect is a colormap tint, random per-row scanline attenuation, two
// diagonal ghost copies and a final oversaturated blend with the input.
package stylize

import (
	"fmt"
	"image"
	"math/rand/v2"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-holocam/pkg/frame"
)

// Option configures a Hologram.
type Option func(*Hologram)

// WithRand sets the random source used for scanline attenuation.
// Without it every row draws from the unseeded process source.
func WithRand(r *rand.Rand) Option {
	return func(h *Hologram) { h.rng = r }
}

// Hologram is the stylize transform. It is not safe for concurrent use
// when a custom random source is set.
type Hologram struct {
	cfg      Config
	colormap gocv.ColormapTypes
	rng      *rand.Rand
}

// New validates cfg and builds a Hologram.
func New(cfg Config, opts ...Option) (*Hologram, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	h := &Hologram{
		cfg:      cfg,
		colormap: colormaps[cfg.Colormap],
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Apply returns a stylized copy of src. src is left untouched and the
// caller owns the returned Mat.
func (h *Hologram) Apply(src gocv.Mat) (gocv.Mat, error) {
	if src.Empty() {
		return gocv.NewMat(), frame.ErrEmptyFrame
	}
	shape := frame.ShapeOf(src)
	if err := frame.CheckShape("stylize input", frame.ColorShape(shape.Width, shape.Height), shape); err != nil {
		return gocv.NewMat(), err
	}

	holo := gocv.NewMat()
	defer holo.Close()
	gocv.ApplyColorMap(src, &holo, h.colormap)

	if err := h.band(&holo); err != nil {
		return gocv.NewMat(), err
	}

	ghosted := holo.Clone()
	defer ghosted.Close()
	for _, g := range h.cfg.Ghosts {
		shifted := Shift(holo, g.DX, g.DY)
		gocv.AddWeighted(ghosted, g.Alpha, shifted, g.Beta, 0, &ghosted)
		shifted.Close()
	}

	out := gocv.NewMat()
	gocv.AddWeighted(src, h.cfg.BaseWeight, ghosted, h.cfg.EffectWeight, 0, &out)
	return out, nil
}

// band attenuates the scanline rows in place.
func (h *Hologram) band(m *gocv.Mat) error {
	if h.cfg.BandLength == 0 {
		return nil
	}
	data, err := m.DataPtrUint8()
	if err != nil {
		return fmt.Errorf("stylize: access pixels: %w", err)
	}

	period := h.cfg.BandLength + h.cfg.BandGap
	stride := m.Cols() * m.Channels()
	span := h.cfg.BandMax - h.cfg.BandMin

	for y := 0; y < m.Rows(); y++ {
		if y%period >= h.cfg.BandLength {
			continue
		}
		factor := h.cfg.BandMin + span*h.draw()
		row := data[y*stride : (y+1)*stride]
		for i, v := range row {
			row[i] = uint8(float64(v) * factor)
		}
	}
	return nil
}

func (h *Hologram) draw() float64 {
	if h.rng != nil {
		return h.rng.Float64()
	}
	return rand.Float64()
}

// Shift returns a copy of src translated by (dx, dy) pixels. Positive dx moves
// content right, positive dy moves it down. Pixels uncovered by the shift are
// zero; nothing wraps around an edge.
func Shift(src gocv.Mat, dx, dy int) gocv.Mat {
	rows, cols := src.Rows(), src.Cols()
	dst := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), rows, cols, src.Type())

	if abs(dx) >= cols || abs(dy) >= rows {
		return dst
	}

	from := image.Rect(max(0, -dx), max(0, -dy), cols-max(0, dx), rows-max(0, dy))
	to := image.Rect(max(0, dx), max(0, dy), cols-max(0, -dx), rows-max(0, -dy))

	srcROI := src.Region(from)
	dstROI := dst.Region(to)
	srcROI.CopyTo(&dstROI)
	srcROI.Close()
	dstROI.Close()

	return dst
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
