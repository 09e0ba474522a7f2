// Package frame holds the shared vocabulary for pixel buffers flowing through
// the pipeline: shapes, shape checks and the BGR to RGB hand-off.
//
// Frames and masks are plain gocv.Mat values. Whoever holds a Mat owns it and
// must Close it; stages hand ownership forward instead of sharing buffers.
package frame

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"
)

// Default capture geometry.
const (
	DefaultWidth  = 640
	DefaultHeight = 480
	Channels      = 3
)

// ErrEmptyFrame is returned when a stage receives a Mat with no pixels.
var ErrEmptyFrame = errors.New("frame: empty")

// Shape describes the geometry of a Mat.
type Shape struct {
	Width    int `json:"width"`
	Height   int `json:"height"`
	Channels int `json:"channels"`
}

// String implements fmt.Stringer.
func (s Shape) String() string {
	return fmt.Sprintf("%dx%dx%d", s.Width, s.Height, s.Channels)
}

// SameSize reports whether two shapes have equal spatial dimensions,
// ignoring channel count.
func (s Shape) SameSize(o Shape) bool {
	return s.Width == o.Width && s.Height == o.Height
}

// ShapeOf returns the shape of m.
func ShapeOf(m gocv.Mat) Shape {
	return Shape{Width: m.Cols(), Height: m.Rows(), Channels: m.Channels()}
}

// ColorShape returns the shape of a 3-channel frame of the given size.
func ColorShape(width, height int) Shape {
	return Shape{Width: width, Height: height, Channels: Channels}
}

// MaskShape returns the shape of a single-channel mask of the given size.
func MaskShape(width, height int) Shape {
	return Shape{Width: width, Height: height, Channels: 1}
}

// ShapeMismatchError reports a buffer whose geometry does not match the
// live frame. It is fatal for the background at startup and degrades a
// single frame when it comes from the mask path.
type ShapeMismatchError struct {
	What string
	Want Shape
	Got  Shape
}

// Error implements the error interface.
func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("frame: %s shape mismatch: want %s, got %s", e.What, e.Want, e.Got)
}

// CheckShape returns a *ShapeMismatchError when got differs from want.
func CheckShape(what string, want, got Shape) error {
	if want != got {
		return &ShapeMismatchError{What: what, Want: want, Got: got}
	}
	return nil
}

// CheckSize is CheckShape restricted to width and height.
func CheckSize(what string, want, got Shape) error {
	if !want.SameSize(got) {
		return &ShapeMismatchError{What: what, Want: want, Got: got}
	}
	return nil
}

// ToRGB converts a BGR frame into a newly allocated RGB frame.
// The virtual camera expects RGB while capture and processing run in BGR.
func ToRGB(bgr gocv.Mat) (gocv.Mat, error) {
	if bgr.Empty() {
		return gocv.NewMat(), ErrEmptyFrame
	}
	if err := CheckShape("bgr frame", ColorShape(bgr.Cols(), bgr.Rows()), ShapeOf(bgr)); err != nil {
		return gocv.NewMat(), err
	}
	rgb := gocv.NewMat()
	gocv.CvtColor(bgr, &rgb, gocv.ColorBGRToRGB)
	return rgb, nil
}

// Solid returns a frame filled with a single BGR color.
func Solid(width, height int, b, g, r uint8) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(
		gocv.NewScalar(float64(b), float64(g), float64(r), 0),
		height, width, gocv.MatTypeCV8UC3)
}
