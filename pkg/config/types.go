// Package config holds the atomically-swappable configuration cell and
// the calibration types it carries. The core only ever reads the
// current snapshot; writing a new one is the HTTP config surface's job.
package config

import (
	"fmt"

	"go.uber.org/multierr"

	"github.com/intothevoid/saigo/pkg/boardgame"
)

// StoneSize is the per-intersection tile edge length, in pixels, used by
// the board extractor's output canvas.
const StoneSize = 16

// CameraCalibration maps the four corner intersections of the board to
// their projected positions within a camera frame.
type CameraCalibration struct {
	Device           string                    `json:"device"`
	ResolutionWidth  uint32                    `json:"resolution_width"`
	ResolutionHeight uint32                    `json:"resolution_height"`
	TopLeft          boardgame.NormalizedPoint `json:"top_left"`
	TopRight         boardgame.NormalizedPoint `json:"top_right"`
	BottomLeft       boardgame.NormalizedPoint `json:"bottom_left"`
	BottomRight      boardgame.NormalizedPoint `json:"bottom_right"`
}

// signedArea2 returns twice the signed area of the quadrilateral
// TopLeft->TopRight->BottomRight->BottomLeft (shoelace formula). Its sign
// indicates winding order; zero (or near-zero) means the quadrilateral is
// degenerate.
func (c CameraCalibration) signedArea2() float64 {
	pts := []boardgame.NormalizedPoint{c.TopLeft, c.TopRight, c.BottomRight, c.BottomLeft}
	var sum float64
	for i := range pts {
		j := (i + 1) % len(pts)
		sum += float64(pts[i].X)*float64(pts[j].Y) - float64(pts[j].X)*float64(pts[i].Y)
	}
	return sum
}

// Valid reports whether the calibration's quadrilateral is non-degenerate:
// the signed area must be nonzero in magnitude beyond floating point noise.
func (c CameraCalibration) Valid() bool {
	const epsilon = 1e-6
	area := c.signedArea2()
	return area > epsilon || area < -epsilon
}

// Resolution returns the configured camera capture resolution.
func (c CameraCalibration) Resolution() (width, height uint32) {
	return c.ResolutionWidth, c.ResolutionHeight
}

// DisplayCalibration defines the affine+perspective warp from a logical
// board-space image into the projector's framebuffer.
type DisplayCalibration struct {
	ImageResolutionWidth  uint32  `json:"image_resolution_w"`
	ImageResolutionHeight uint32  `json:"image_resolution_h"`
	Angle                 float32 `json:"angle"`
	X                     float32 `json:"x"`
	Y                     float32 `json:"y"`
	Width                 float32 `json:"width"`
	Height                float32 `json:"height"`
	PerspectiveX          float32 `json:"perspective_x"`
	PerspectiveY          float32 `json:"perspective_y"`
}

// Identity returns the display calibration for which the warp is the
// identity resize: angle, offsets and perspective all zero, scale one.
func Identity(width, height uint32) DisplayCalibration {
	return DisplayCalibration{
		ImageResolutionWidth:  width,
		ImageResolutionHeight: height,
		Angle:                 0,
		X:                     0,
		Y:                     0,
		Width:                 1,
		Height:                1,
		PerspectiveX:          0,
		PerspectiveY:          0,
	}
}

// ReferenceImage is an RGBA raster captured from the board extractor
// while the board is empty, at the board-extractor's output resolution
// for the owning profile.
type ReferenceImage struct {
	Width, Height uint32
	Pixels        []byte // RGBA, row-major, len == Width*Height*4
}

// ExtractorOutputSize returns the board-extractor output resolution for a
// board shape: width*StoneSize by height*StoneSize.
func ExtractorOutputSize(shape boardgame.BoardShape) (width, height uint32) {
	return uint32(shape.Width * StoneSize), uint32(shape.Height * StoneSize)
}

// Matches reports whether the reference image's resolution still
// matches the board-extractor output resolution of shape. A board-shape
// change invalidates any previously captured reference image.
func (r ReferenceImage) Matches(shape boardgame.BoardShape) bool {
	w, h := ExtractorOutputSize(shape)
	return r.Width == w && r.Height == h
}

// Snapshot bundles the four fields a reader observes atomically: board
// shape, camera calibration, display calibration and reference image.
// Cell swaps a whole Snapshot so readers never see a torn combination.
type Snapshot struct {
	Board     boardgame.BoardShape
	Camera    CameraCalibration
	Display   DisplayCalibration
	Reference ReferenceImage
}

// Validate checks the cross-field invariants a PUT must satisfy before a
// new Snapshot replaces the current one. Every failing field is
// reported, not just the first, so a rejected PUT's response body can
// list every problem at once.
func (s Snapshot) Validate() error {
	var err error
	if !s.Board.Valid() {
		err = multierr.Append(err, fmt.Errorf("config: board shape %+v out of range", s.Board))
	}
	if !s.Camera.Valid() {
		err = multierr.Append(err, fmt.Errorf("config: camera calibration quadrilateral is degenerate"))
	}
	return err
}
