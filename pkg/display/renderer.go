// Package display implements warping a logical board-space image into a
// projector-space raster using a DisplayCalibration. The warp follows
// the same inverse-mapping-plus-bilinear-sample structure board
// extraction uses, but the formula here is an affine+perspective one
// rather than a 4-point homography solve, since a display calibration is
// parameterized directly by angle/translation/scale/perspective instead
// of four corner correspondences.
package display

import (
	"math"

	"github.com/intothevoid/saigo/pkg/camera"
	"github.com/intothevoid/saigo/pkg/config"
)

// Render warps logical into a raster of size cal.ImageResolutionWidth x
// cal.ImageResolutionHeight: for each output pixel, normalize to
// [-0.5,0.5], undo the perspective divide, undo the affine
// (rotate/translate/scale), then bilinearly sample the logical image.
// Out-of-bounds samples are black.
func Render(logical camera.RawFrame, cal config.DisplayCalibration) camera.RawFrame {
	outW, outH := cal.ImageResolutionWidth, cal.ImageResolutionHeight
	out := make([]byte, int(outW)*int(outH)*4)

	cosA := math.Cos(float64(-cal.Angle))
	sinA := math.Sin(float64(-cal.Angle))

	for py := 0; py < int(outH); py++ {
		for px := 0; px < int(outW); px++ {
			// Pixel (px,py)'s center, not its corner, is what the warp
			// normalizes (matching the board extractor's tile-center
			// convention rather than a literal corner-addressed px/W).
			u := (float64(px)+0.5)/float64(outW) - 0.5
			v := (float64(py)+0.5)/float64(outH) - 0.5

			w := 1 + float64(cal.PerspectiveX)*u + float64(cal.PerspectiveY)*v
			if w == 0 {
				w = 1e-9
			}
			up := u / w
			vp := v / w

			// Undo rotate by -angle, then undo translate, then undo scale,
			// then shift back to [0,1] logical-image space. This inverts
			// the forward rotate(angle)*translate(x,y) warp, so it applies
			// in the opposite order: rotate first, translate second.
			rotU := up*cosA - vp*sinA
			rotV := up*sinA + vp*cosA
			rx := rotU - float64(cal.X)
			ry := rotV - float64(cal.Y)

			width := float64(cal.Width)
			height := float64(cal.Height)
			if width == 0 {
				width = 1
			}
			if height == 0 {
				height = 1
			}
			lx := rx/width + 0.5
			ly := ry/height + 0.5

			sx := lx * float64(logical.Width)
			sy := ly * float64(logical.Height)

			r, g, b, a := sampleOrBlack(logical, sx, sy)
			idx := (py*int(outW) + px) * 4
			out[idx] = r
			out[idx+1] = g
			out[idx+2] = b
			out[idx+3] = a
		}
	}

	return camera.RawFrame{Width: outW, Height: outH, Pixels: out}
}

// sampleOrBlack bilinearly samples logical at (x,y), returning
// transparent black for any sample that falls outside the image.
func sampleOrBlack(logical camera.RawFrame, x, y float64) (r, g, b, a byte) {
	if x < 0 || y < 0 || x >= float64(logical.Width) || y >= float64(logical.Height) {
		return 0, 0, 0, 0
	}

	w, h := int(logical.Width), int(logical.Height)
	x -= 0.5
	y -= 0.5
	x0 := int(math.Floor(x))
	y0 := int(math.Floor(y))
	fx := x - float64(x0)
	fy := y - float64(y0)

	inBounds := func(px, py int) bool {
		return px >= 0 && px < w && py >= 0 && py < h
	}
	sample := func(px, py int) (float64, float64, float64, float64) {
		if !inBounds(px, py) {
			return 0, 0, 0, 0
		}
		idx := (py*w + px) * 4
		return float64(logical.Pixels[idx]), float64(logical.Pixels[idx+1]),
			float64(logical.Pixels[idx+2]), float64(logical.Pixels[idx+3])
	}

	r00, g00, b00, a00 := sample(x0, y0)
	r10, g10, b10, a10 := sample(x0+1, y0)
	r01, g01, b01, a01 := sample(x0, y0+1)
	r11, g11, b11, a11 := sample(x0+1, y0+1)

	lerp2 := func(v00, v10, v01, v11 float64) byte {
		top := v00*(1-fx) + v10*fx
		bottom := v01*(1-fx) + v11*fx
		val := top*(1-fy) + bottom*fy
		if val < 0 {
			val = 0
		}
		if val > 255 {
			val = 255
		}
		return byte(val)
	}

	return lerp2(r00, r10, r01, r11), lerp2(g00, g10, g01, g11),
		lerp2(b00, b10, b01, b11), lerp2(a00, a10, a01, a11)
}
