package composite

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-holocam/pkg/frame"
)

// Background is the static image behind the subject. It is resized once
// when built and never written again, so any number of Blend calls may read
// it without locking.
type Background struct {
	mat   gocv.Mat
	shape frame.Shape
}

// LoadBackground reads an image file and resizes it to width x height.
func LoadBackground(path string, width, height int) (*Background, error) {
	img := gocv.IMRead(path, gocv.IMReadColor)
	if img.Empty() {
		img.Close()
		return nil, fmt.Errorf("composite: cannot read background %q", path)
	}
	defer img.Close()
	return NewBackground(img, width, height)
}

// NewBackground copies src into a Background of exactly width x height.
// src stays owned by the caller.
func NewBackground(src gocv.Mat, width, height int) (*Background, error) {
	if src.Empty() {
		return nil, frame.ErrEmptyFrame
	}
	want := frame.ColorShape(width, height)
	if src.Channels() != frame.Channels {
		return nil, &frame.ShapeMismatchError{What: "background", Want: want, Got: frame.ShapeOf(src)}
	}

	mat := gocv.NewMat()
	if src.Cols() == width && src.Rows() == height {
		src.CopyTo(&mat)
	} else {
		gocv.Resize(src, &mat, image.Pt(width, height), 0, 0, gocv.InterpolationLinear)
	}

	if err := frame.CheckShape("background", want, frame.ShapeOf(mat)); err != nil {
		mat.Close()
		return nil, err
	}
	return &Background{mat: mat, shape: want}, nil
}

// Shape returns the background geometry.
func (b *Background) Shape() frame.Shape {
	return b.shape
}

// Mat exposes the pixels. Callers must not modify or close it.
func (b *Background) Mat() gocv.Mat {
	return b.mat
}

// Close releases the pixels.
func (b *Background) Close() error {
	return b.mat.Close()
}
