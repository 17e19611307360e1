package display

import (
	"math"
	"testing"

	"github.com/intothevoid/saigo/pkg/camera"
	"github.com/intothevoid/saigo/pkg/config"
)

func checkerboard(w, h uint32) camera.RawFrame {
	pixels := make([]byte, int(w)*int(h)*4)
	for y := 0; y < int(h); y++ {
		for x := 0; x < int(w); x++ {
			idx := (y*int(w) + x) * 4
			if (x+y)%2 == 0 {
				pixels[idx], pixels[idx+1], pixels[idx+2] = 255, 255, 255
			}
			pixels[idx+3] = 255
		}
	}
	return camera.RawFrame{Width: w, Height: h, Pixels: pixels}
}

// TestRenderIdentityIsDirectResize checks the display warp's
// idempotence property: with angle=0, x=0, y=0, width=1, height=1,
// perspective=0, the output is a direct resize of the input. With equal
// resolutions that resize is the identity, so every output pixel should
// match the corresponding input pixel closely (bilinear sampling at
// pixel centers is exact for matching resolutions).
func TestRenderIdentityIsDirectResize(t *testing.T) {
	logical := checkerboard(8, 8)
	cal := config.Identity(8, 8)

	out := Render(logical, cal)
	if out.Width != 8 || out.Height != 8 {
		t.Fatalf("output size = %dx%d, want 8x8", out.Width, out.Height)
	}

	for i := range logical.Pixels {
		// Allow a tolerance of 1 for rounding in the bilinear sampler.
		diff := int(logical.Pixels[i]) - int(out.Pixels[i])
		if diff < -1 || diff > 1 {
			t.Fatalf("pixel %d: logical=%d rendered=%d, want near-identical", i, logical.Pixels[i], out.Pixels[i])
		}
	}
}

// TestRenderRotationAppliesBeforeTranslation checks that the inverse warp
// undoes rotation before translation, matching the forward
// rotate(angle)*translate(x,y) warp it inverts. A 90 degree rotation
// combined with a nonzero X offset is chosen so that rotating first and
// translating first land on different logical samples; only the correct
// order samples the marker pixel exactly.
func TestRenderRotationAppliesBeforeTranslation(t *testing.T) {
	logical := camera.RawFrame{Width: 4, Height: 4, Pixels: make([]byte, 4*4*4)}
	for i := 0; i < len(logical.Pixels); i += 4 {
		logical.Pixels[i+3] = 255
	}
	markerIdx := 0 // logical pixel (0,0)
	logical.Pixels[markerIdx], logical.Pixels[markerIdx+1], logical.Pixels[markerIdx+2] = 255, 255, 255

	cal := config.DisplayCalibration{
		ImageResolutionWidth:  4,
		ImageResolutionHeight: 4,
		Angle:                 float32(math.Pi / 2),
		X:                     0.25,
		Width:                 1,
		Height:                1,
	}
	out := Render(logical, cal)

	// Output pixel (3,1) samples logical (0,0) exactly under the correct
	// rotate-then-translate inverse; the buggy translate-then-rotate order
	// samples a blend of unrelated background pixels instead.
	idx := (1*int(out.Width) + 3) * 4
	r, g, b := out.Pixels[idx], out.Pixels[idx+1], out.Pixels[idx+2]
	if r < 250 || g < 250 || b < 250 {
		t.Fatalf("pixel (3,1) = (%d,%d,%d), want the white marker sampled near-exactly", r, g, b)
	}
}

func TestRenderOutOfBoundsSamplesAreTransparentBlack(t *testing.T) {
	logical := checkerboard(4, 4)
	cal := config.DisplayCalibration{
		ImageResolutionWidth:  4,
		ImageResolutionHeight: 4,
		Width:                 0.1, // zoom far into the logical image's center
		Height:                0.1,
	}
	out := Render(logical, cal)
	// The corners of a heavily zoomed-in view should fall outside the
	// logical image and come back as transparent black.
	idx := 0
	if out.Pixels[idx] != 0 || out.Pixels[idx+1] != 0 || out.Pixels[idx+2] != 0 || out.Pixels[idx+3] != 0 {
		t.Fatalf("expected transparent black at corner, got %v", out.Pixels[idx:idx+4])
	}
}
