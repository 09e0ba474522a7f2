package stylize

import (
	"bytes"
	"errors"
	"math/rand/v2"
	"strings"
	"testing"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-holocam/pkg/frame"
)

func gradient(width, height int) gocv.Mat {
	m := gocv.NewMatWithSize(height, width, gocv.MatTypeCV8UC3)
	data, _ := m.DataPtrUint8()
	for i := range data {
		data[i] = uint8((i * 7) % 251)
	}
	return m
}

func TestApplyPreservesShape(t *testing.T) {
	h, err := New(DefaultConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	sizes := []struct{ w, h int }{
		{640, 480},
		{64, 48},
		{7, 3},
		{1, 1},
	}
	for _, sz := range sizes {
		src := gradient(sz.w, sz.h)
		out, err := h.Apply(src)
		if err != nil {
			t.Fatalf("Apply(%dx%d): %v", sz.w, sz.h, err)
		}
		if frame.ShapeOf(out) != frame.ShapeOf(src) {
			t.Errorf("Apply(%dx%d) shape = %s", sz.w, sz.h, frame.ShapeOf(out))
		}
		if out.Type() != gocv.MatTypeCV8UC3 {
			t.Errorf("Apply(%dx%d) type = %v", sz.w, sz.h, out.Type())
		}
		out.Close()
		src.Close()
	}
}

func TestApplyLeavesInputUntouched(t *testing.T) {
	h, _ := New(DefaultConfig())
	src := gradient(32, 16)
	defer src.Close()
	before := src.ToBytes()

	out, err := h.Apply(src)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	out.Close()

	after := src.ToBytes()
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("input modified at byte %d", i)
		}
	}
}

func TestApplyRejectsBadInput(t *testing.T) {
	h, _ := New(DefaultConfig())

	empty := gocv.NewMat()
	defer empty.Close()
	out, err := h.Apply(empty)
	out.Close()
	if !errors.Is(err, frame.ErrEmptyFrame) {
		t.Errorf("empty input err = %v, want ErrEmptyFrame", err)
	}

	gray := gocv.NewMatWithSize(4, 4, gocv.MatTypeCV8UC1)
	defer gray.Close()
	out, err = h.Apply(gray)
	out.Close()
	var sme *frame.ShapeMismatchError
	if !errors.As(err, &sme) {
		t.Errorf("gray input err = %v, want ShapeMismatchError", err)
	}
}

func TestApplySeededIsReproducible(t *testing.T) {
	src := gradient(40, 30)
	defer src.Close()

	run := func() []byte {
		h, _ := New(DefaultConfig(), WithRand(rand.New(rand.NewPCG(1, 2))))
		out, err := h.Apply(src)
		if err != nil {
			t.Fatalf("Apply: %v", err)
		}
		defer out.Close()
		return out.ToBytes()
	}

	a, b := run(), run()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("seeded runs differ at byte %d", i)
		}
	}
}

func TestBanding(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Ghosts = nil
	cfg.BaseWeight = 0
	cfg.EffectWeight = 1
	h, err := New(cfg, WithRand(rand.New(rand.NewPCG(7, 7))))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	src := frame.Solid(16, 12, 200, 180, 160)
	defer src.Close()

	tinted := gocv.NewMat()
	defer tinted.Close()
	gocv.ApplyColorMap(src, &tinted, gocv.ColormapWinter)

	out, err := h.Apply(src)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	defer out.Close()

	period := cfg.BandLength + cfg.BandGap
	for y := 0; y < out.Rows(); y++ {
		for x := 0; x < out.Cols(); x++ {
			got := out.GetVecbAt(y, x)
			ref := tinted.GetVecbAt(y, x)
			for c := 0; c < 3; c++ {
				if y%period >= cfg.BandLength {
					if got[c] != ref[c] {
						t.Fatalf("gap row %d col %d ch %d = %d, want %d", y, x, c, got[c], ref[c])
					}
					continue
				}
				limit := float64(ref[c]) * cfg.BandMax
				if float64(got[c]) > limit {
					t.Fatalf("band row %d col %d ch %d = %d, above %g", y, x, c, got[c], limit)
				}
			}
		}
	}
}

// bandOnly returns a hologram that outputs the banded tint and nothing else.
func bandOnly(t *testing.T, opts ...Option) (*Hologram, Config) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Ghosts = nil
	cfg.BaseWeight = 0
	cfg.EffectWeight = 1
	h, err := New(cfg, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return h, cfg
}

// brightest returns the channel with the largest value in the tint of src.
func brightest(src gocv.Mat) int {
	tinted := gocv.NewMat()
	defer tinted.Close()
	gocv.ApplyColorMap(src, &tinted, gocv.ColormapWinter)
	v := tinted.GetVecbAt(0, 0)
	best := 0
	for c := 1; c < 3; c++ {
		if v[c] > v[best] {
			best = c
		}
	}
	return best
}

func TestBandingDrawsPerRow(t *testing.T) {
	h, cfg := bandOnly(t, WithRand(rand.New(rand.NewPCG(3, 9))))

	src := frame.Solid(8, 60, 200, 180, 160)
	defer src.Close()
	ch := brightest(src)

	out, err := h.Apply(src)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	defer out.Close()

	seen := map[uint8]bool{}
	period := cfg.BandLength + cfg.BandGap
	for y := 0; y < out.Rows(); y += period {
		seen[out.GetVecbAt(y, 0)[ch]] = true
	}
	if len(seen) < 2 {
		t.Errorf("all %d band rows share one attenuation %v; want a draw per row", out.Rows()/period, seen)
	}
}

func TestBandingDrawsPerFrame(t *testing.T) {
	h, _ := bandOnly(t)

	src := frame.Solid(8, 60, 200, 180, 160)
	defer src.Close()

	a, err := h.Apply(src)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	defer a.Close()
	b, err := h.Apply(src)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	defer b.Close()

	if bytes.Equal(a.ToBytes(), b.ToBytes()) {
		t.Error("two frames got identical banding; want fresh draws every frame")
	}
}

func TestShiftZeroFill(t *testing.T) {
	tests := []struct {
		name   string
		dx, dy int
	}{
		{"down right", 5, 5},
		{"up left", -5, -5},
		{"right only", 3, 0},
		{"up only", 0, -4},
		{"mixed", 2, -3},
	}

	const w, h = 20, 12
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			src := frame.Solid(w, h, 200, 200, 200)
			defer src.Close()

			out := Shift(src, tc.dx, tc.dy)
			defer out.Close()

			for y := 0; y < h; y++ {
				for x := 0; x < w; x++ {
					border := (tc.dx > 0 && x < tc.dx) || (tc.dx < 0 && x >= w+tc.dx) ||
						(tc.dy > 0 && y < tc.dy) || (tc.dy < 0 && y >= h+tc.dy)
					v := out.GetVecbAt(y, x)
					want := uint8(200)
					if border {
						want = 0
					}
					if v[0] != want || v[1] != want || v[2] != want {
						t.Fatalf("(%d,%d) = %v, want %d", x, y, v, want)
					}
				}
			}
		})
	}
}

func TestShiftMovesContent(t *testing.T) {
	src := frame.Solid(30, 20, 0, 0, 0)
	defer src.Close()
	src.SetUCharAt(10, 10*3+2, 255)

	out := Shift(src, 3, -2)
	defer out.Close()

	if v := out.GetVecbAt(8, 13); v[2] != 255 {
		t.Errorf("moved pixel = %v, want red channel 255", v)
	}
	if v := out.GetVecbAt(10, 10); v[2] != 0 {
		t.Errorf("original position = %v, want 0", v)
	}
}

func TestShiftBeyondFrame(t *testing.T) {
	src := frame.Solid(8, 8, 9, 9, 9)
	defer src.Close()

	for _, d := range [][2]int{{8, 0}, {0, -8}, {100, 100}} {
		out := Shift(src, d[0], d[1])
		if n := gocv.CountNonZero(out.Reshape(1, 0)); n != 0 {
			t.Errorf("Shift(%d,%d) left %d non-zero samples", d[0], d[1], n)
		}
		out.Close()
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"default", func(*Config) {}, true},
		{"no banding", func(c *Config) { c.BandLength = 0; c.BandGap = 0 }, true},
		{"unknown colormap", func(c *Config) { c.Colormap = "sepia" }, false},
		{"negative gap", func(c *Config) { c.BandGap = -1 }, false},
		{"inverted range", func(c *Config) { c.BandMin, c.BandMax = 0.5, 0.2 }, false},
		{"range above one", func(c *Config) { c.BandMax = 1.5 }, false},
		{"negative ghost weight", func(c *Config) { c.Ghosts[0].Beta = -1 }, false},
		{"negative final weight", func(c *Config) { c.EffectWeight = -0.1 }, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.ok && err != nil {
				t.Errorf("Validate: unexpected error %v", err)
			}
			if !tc.ok && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate: err = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestValidateListsColormaps(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Colormap = "sepia"
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, name := range Colormaps() {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("error %q does not mention %q", err, name)
		}
	}
}

func TestDefaultConfigWeights(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.BaseWeight+cfg.EffectWeight <= 1.0 {
		t.Errorf("final weights sum to %g, expected oversaturation", cfg.BaseWeight+cfg.EffectWeight)
	}
	if len(cfg.Ghosts) != 2 {
		t.Fatalf("expected 2 ghosts, got %d", len(cfg.Ghosts))
	}
}
