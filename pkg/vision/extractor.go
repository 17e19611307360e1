// Package vision implements the board extractor, the learned vision
// model, and the board stabilizer. The perspective-warp and
// bilinear-sampling math in this file generalizes a fixed-corners
// perspective-transform-plus-grid-overlay approach (a 3x3 perspective
// transform into a fixed-size output canvas, then a per-tile grid) into
// a hand-rolled pure-Go routine rather than one handed to
// gocv.WarpPerspective: an exact, independently testable formula (inverse
// perspective divide, then bilinear sampling with edge-clamping) is
// needed so an identity warp round-trips exactly, which gocv's warp does
// not expose internals to verify. gocv remains the tool for camera
// capture and Mat<->image.Image conversions, which it already does well
// (see pkg/camera).
package vision

import (
	"errors"
	"image"
	"math"

	"gorgonia.org/tensor"

	"github.com/intothevoid/saigo/pkg/boardgame"
	"github.com/intothevoid/saigo/pkg/camera"
	"github.com/intothevoid/saigo/pkg/config"
)

// homography solves and evaluates the projective map
//
//	u = (A*x + B*y + C) / (G*x + H*y + 1)
//	v = (D*x + E*y + F) / (G*x + H*y + 1)
//
// the classic 8-parameter perspective transform used to map four
// corners of one quadrilateral onto four corners of another.
type homography struct {
	a, b, c, d, e, f, g, h float64
}

// solveHomography finds the homography mapping each dst[i] to src[i],
// i=0..3, by solving the 8x8 linear system via Gaussian elimination.
// Points are ordered top-left, top-right, bottom-right, bottom-left,
// matching the calibration corner ordering used throughout this package.
func solveHomography(dst, src [4][2]float64) (homography, error) {
	var m [8][9]float64
	for i := 0; i < 4; i++ {
		x, y := dst[i][0], dst[i][1]
		u, v := src[i][0], src[i][1]

		m[2*i] = [9]float64{x, y, 1, 0, 0, 0, -x * u, -y * u, u}
		m[2*i+1] = [9]float64{0, 0, 0, x, y, 1, -x * v, -y * v, v}
	}

	coeffs, err := solveLinear(m)
	if err != nil {
		return homography{}, err
	}
	return homography{
		a: coeffs[0], b: coeffs[1], c: coeffs[2],
		d: coeffs[3], e: coeffs[4], f: coeffs[5],
		g: coeffs[6], h: coeffs[7],
	}, nil
}

// solveLinear solves the 8x8 system whose augmented matrix is m (8 rows,
// 9 columns) via Gaussian elimination with partial pivoting.
func solveLinear(m [8][9]float64) ([8]float64, error) {
	const n = 8
	for col := 0; col < n; col++ {
		pivot := col
		for row := col + 1; row < n; row++ {
			if math.Abs(m[row][col]) > math.Abs(m[pivot][col]) {
				pivot = row
			}
		}
		if math.Abs(m[pivot][col]) < 1e-12 {
			return [8]float64{}, errors.New("vision: degenerate quadrilateral, cannot solve perspective transform")
		}
		m[col], m[pivot] = m[pivot], m[col]

		for row := 0; row < n; row++ {
			if row == col {
				continue
			}
			factor := m[row][col] / m[col][col]
			for k := col; k <= n; k++ {
				m[row][k] -= factor * m[col][k]
			}
		}
	}

	var out [8]float64
	for i := 0; i < n; i++ {
		out[i] = m[i][n] / m[i][i]
	}
	return out, nil
}

// apply evaluates the homography at (x,y).
func (h homography) apply(x, y float64) (u, v float64) {
	denom := h.g*x + h.h*y + 1
	if denom == 0 {
		return 0, 0
	}
	u = (h.a*x + h.b*y + h.c) / denom
	v = (h.d*x + h.e*y + h.f) / denom
	return u, v
}

// Extraction is the output of the board extractor: a board-framed RGBA
// preview image and the per-intersection tile batch derived from it.
type Extraction struct {
	Preview camera.RawFrame
	Tiles   *tensor.Dense // shape (n, 3, StoneSize, StoneSize), float32 in [0,1]
	Ok      bool          // false when the calibration quadrilateral was degenerate
}

// ExtractBoard takes a raw camera frame and the current camera
// calibration/board shape and produces a board-framed preview image and
// a tile batch ready for inference.
func ExtractBoard(frame camera.RawFrame, cal config.CameraCalibration, shape boardgame.BoardShape) Extraction {
	outW, outH := config.ExtractorOutputSize(shape)
	const s = config.StoneSize
	zeroTiles := tensor.New(tensor.WithShape(shape.Count(), 3, s, s),
		tensor.WithBacking(make([]float32, shape.Count()*3*s*s)))

	if !cal.Valid() {
		// Degenerate quadrilateral: publish a black preview and a zero
		// tile batch, propagate no inference result for this frame
		//.
		black := make([]byte, int(outW)*int(outH)*4)
		for i := 3; i < len(black); i += 4 {
			black[i] = 255 // opaque black
		}
		return Extraction{
			Preview: camera.RawFrame{Width: outW, Height: outH, Pixels: black},
			Tiles:   zeroTiles,
			Ok:      false,
		}
	}

	srcTL := toPixels(cal.TopLeft, frame.Width, frame.Height)
	srcTR := toPixels(cal.TopRight, frame.Width, frame.Height)
	srcBR := toPixels(cal.BottomRight, frame.Width, frame.Height)
	srcBL := toPixels(cal.BottomLeft, frame.Width, frame.Height)

	dstTL := tileCenter(0, 0)
	dstTR := tileCenter(shape.Width-1, 0)
	dstBR := tileCenter(shape.Width-1, shape.Height-1)
	dstBL := tileCenter(0, shape.Height-1)

	h, err := solveHomography(
		[4][2]float64{dstTL, dstTR, dstBR, dstBL},
		[4][2]float64{srcTL, srcTR, srcBR, srcBL},
	)
	if err != nil {
		black := make([]byte, int(outW)*int(outH)*4)
		for i := 3; i < len(black); i += 4 {
			black[i] = 255
		}
		return Extraction{
			Preview: camera.RawFrame{Width: outW, Height: outH, Pixels: black},
			Tiles:   zeroTiles,
			Ok:      false,
		}
	}

	preview := resample(frame, h, outW, outH)
	tiles := sliceTiles(preview, shape)

	return Extraction{Preview: preview, Tiles: tiles, Ok: true}
}

// toPixels converts a normalized point to frame pixel coordinates.
// Out-of-[0,1] values are allowed through unclamped here; clamping to
// the frame edge happens during sampling.
func toPixels(p boardgame.NormalizedPoint, width, height uint32) [2]float64 {
	return [2]float64{float64(p.X) * float64(width), float64(p.Y) * float64(height)}
}

// tileCenter returns the output-canvas pixel center of intersection
// (i,j): ((i+0.5)*StoneSize, (j+0.5)*StoneSize)
func tileCenter(i, j int) [2]float64 {
	return [2]float64{
		(float64(i) + 0.5) * config.StoneSize,
		(float64(j) + 0.5) * config.StoneSize,
	}
}

// resample builds the output canvas by, for every output pixel, mapping
// back through h into the source frame and bilinearly sampling with
// edge-clamping.
func resample(frame camera.RawFrame, h homography, outW, outH uint32) camera.RawFrame {
	out := make([]byte, int(outW)*int(outH)*4)
	for oy := 0; oy < int(outH); oy++ {
		for ox := 0; ox < int(outW); ox++ {
			sx, sy := h.apply(float64(ox)+0.5, float64(oy)+0.5)
			r, g, b, a := bilinearSample(frame, sx, sy)
			idx := (oy*int(outW) + ox) * 4
			out[idx] = r
			out[idx+1] = g
			out[idx+2] = b
			out[idx+3] = a
		}
	}
	return camera.RawFrame{Width: outW, Height: outH, Pixels: out}
}

// bilinearSample samples frame at fractional coordinates (x,y) with
// out-of-frame samples clamped to the nearest edge pixel
func bilinearSample(frame camera.RawFrame, x, y float64) (r, g, b, a byte) {
	w, hgt := int(frame.Width), int(frame.Height)
	if w == 0 || hgt == 0 {
		return 0, 0, 0, 255
	}

	x -= 0.5
	y -= 0.5

	x0 := int(math.Floor(x))
	y0 := int(math.Floor(y))
	fx := x - float64(x0)
	fy := y - float64(y0)

	sample := func(px, py int) (float64, float64, float64, float64) {
		px = clampInt(px, 0, w-1)
		py = clampInt(py, 0, hgt-1)
		idx := (py*w + px) * 4
		return float64(frame.Pixels[idx]), float64(frame.Pixels[idx+1]),
			float64(frame.Pixels[idx+2]), float64(frame.Pixels[idx+3])
	}

	r00, g00, b00, a00 := sample(x0, y0)
	r10, g10, b10, a10 := sample(x0+1, y0)
	r01, g01, b01, a01 := sample(x0, y0+1)
	r11, g11, b11, a11 := sample(x0+1, y0+1)

	lerp2 := func(v00, v10, v01, v11 float64) byte {
		top := v00*(1-fx) + v10*fx
		bottom := v01*(1-fx) + v11*fx
		return byte(clampFloat(top*(1-fy)+bottom*fy, 0, 255))
	}

	return lerp2(r00, r10, r01, r11), lerp2(g00, g10, g01, g11),
		lerp2(b00, b10, b01, b11), lerp2(a00, a10, a01, a11)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// sliceTiles slices the board-framed preview into width*height RGB tiles
// of StoneSize x StoneSize, normalized to [0,1] floats in channels-first
// layout, matching the tensor shape the vision model expects.
func sliceTiles(preview camera.RawFrame, shape boardgame.BoardShape) *tensor.Dense {
	const s = config.StoneSize
	n := shape.Count()
	data := make([]float32, n*3*s*s)

	for ty := 0; ty < shape.Height; ty++ {
		for tx := 0; tx < shape.Width; tx++ {
			tileIdx := shape.Index(tx, ty)
			base := tileIdx * 3 * s * s
			for py := 0; py < s; py++ {
				for px := 0; px < s; px++ {
					fx := tx*s + px
					fy := ty*s + py
					srcIdx := (fy*int(preview.Width) + fx) * 4
					r := float32(preview.Pixels[srcIdx]) / 255
					g := float32(preview.Pixels[srcIdx+1]) / 255
					b := float32(preview.Pixels[srcIdx+2]) / 255

					// channels-first: [tile][channel][row][col]
					data[base+0*s*s+py*s+px] = r
					data[base+1*s*s+py*s+px] = g
					data[base+2*s*s+py*s+px] = b
				}
			}
		}
	}

	return tensor.New(tensor.WithShape(n, 3, s, s), tensor.WithBacking(data))
}

// BoardFramedBounds returns the image.Rectangle of the output canvas for
// a board shape, a small convenience used by callers rendering debug
// overlays on the preview.
func BoardFramedBounds(shape boardgame.BoardShape) image.Rectangle {
	w, h := config.ExtractorOutputSize(shape)
	return image.Rect(0, 0, int(w), int(h))
}
