// Package composite blends the stylized subject over a static background.
package composite

import (
	"fmt"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-holocam/pkg/frame"
)

// Blend replaces dst with dst*m + bg*(1-m), per pixel and per channel, where
// m is the mask value clamped to [0,1]. dst must be CV_8UC3 and match the
// background; mask must be single channel of the same size. A CV_8U mask is
// read as raw 0/1 weights. Results are rounded to the nearest integer.
func Blend(dst *gocv.Mat, bg *Background, mask gocv.Mat) error {
	want := bg.Shape()
	if err := frame.CheckShape("foreground", want, frame.ShapeOf(*dst)); err != nil {
		return err
	}
	if err := frame.CheckShape("mask", frame.MaskShape(want.Width, want.Height), frame.ShapeOf(mask)); err != nil {
		return err
	}

	weights := mask
	if mask.Type() != gocv.MatTypeCV32F {
		weights = gocv.NewMat()
		defer weights.Close()
		mask.ConvertTo(&weights, gocv.MatTypeCV32F)
	}

	fg, err := dst.DataPtrUint8()
	if err != nil {
		return fmt.Errorf("composite: foreground pixels: %w", err)
	}
	bgMat := bg.Mat()
	back, err := bgMat.DataPtrUint8()
	if err != nil {
		return fmt.Errorf("composite: background pixels: %w", err)
	}
	m, err := weights.DataPtrFloat32()
	if err != nil {
		return fmt.Errorf("composite: mask weights: %w", err)
	}

	for i, w := range m {
		a := clamp(w)
		inv := 1 - a
		p := i * frame.Channels
		fg[p] = mix(fg[p], back[p], a, inv)
		fg[p+1] = mix(fg[p+1], back[p+1], a, inv)
		fg[p+2] = mix(fg[p+2], back[p+2], a, inv)
	}
	return nil
}

func clamp(v float32) float32 {
	switch {
	case v < 0 || v != v:
		return 0
	case v > 1:
		return 1
	}
	return v
}

func mix(f, b uint8, a, inv float32) uint8 {
	return uint8(float32(f)*a + float32(b)*inv + 0.5)
}
