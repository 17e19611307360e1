package vision

import (
	"math"
	"testing"

	"github.com/intothevoid/saigo/pkg/boardgame"
	"github.com/intothevoid/saigo/pkg/camera"
	"github.com/intothevoid/saigo/pkg/config"
)

func approxEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestSolveHomographyIdentity(t *testing.T) {
	pts := [4][2]float64{{0, 0}, {10, 0}, {10, 10}, {0, 10}}
	h, err := solveHomography(pts, pts)
	if err != nil {
		t.Fatalf("solveHomography: %v", err)
	}
	for _, p := range pts {
		u, v := h.apply(p[0], p[1])
		if !approxEqual(u, p[0], 1e-6) || !approxEqual(v, p[1], 1e-6) {
			t.Errorf("apply(%v) = (%f,%f), want %v", p, u, v, p)
		}
	}
	// An interior point should also map to itself under the identity.
	u, v := h.apply(5, 5)
	if !approxEqual(u, 5, 1e-6) || !approxEqual(v, 5, 1e-6) {
		t.Errorf("apply(5,5) = (%f,%f), want (5,5)", u, v)
	}
}

func TestSolveHomographyMapsCorners(t *testing.T) {
	dst := [4][2]float64{{0, 0}, {100, 0}, {100, 100}, {0, 100}}
	src := [4][2]float64{{10, 20}, {90, 15}, {95, 85}, {5, 90}}
	h, err := solveHomography(dst, src)
	if err != nil {
		t.Fatalf("solveHomography: %v", err)
	}
	for i, d := range dst {
		u, v := h.apply(d[0], d[1])
		if !approxEqual(u, src[i][0], 1e-6) || !approxEqual(v, src[i][1], 1e-6) {
			t.Errorf("corner %d: apply(%v) = (%f,%f), want %v", i, d, u, v, src[i])
		}
	}
}

func TestSolveHomographyDegenerateReturnsError(t *testing.T) {
	pts := [4][2]float64{{5, 5}, {5, 5}, {5, 5}, {5, 5}}
	if _, err := solveHomography(pts, pts); err == nil {
		t.Fatal("expected error for degenerate quadrilateral")
	}
}

func TestBilinearSampleClampsOutOfFrame(t *testing.T) {
	frame := camera.RawFrame{
		Width:  2,
		Height: 2,
		Pixels: []byte{
			255, 0, 0, 255, 0, 255, 0, 255,
			0, 0, 255, 255, 255, 255, 255, 255,
		},
	}
	r, g, b, _ := bilinearSample(frame, -10, -10)
	if r != 255 || g != 0 || b != 0 {
		t.Errorf("expected clamp to top-left red pixel, got (%d,%d,%d)", r, g, b)
	}
	r, g, b, _ = bilinearSample(frame, 1000, 1000)
	if r != 255 || g != 255 || b != 255 {
		t.Errorf("expected clamp to bottom-right white pixel, got (%d,%d,%d)", r, g, b)
	}
}

func TestExtractBoardDegenerateCalibrationProducesBlackZeroBatch(t *testing.T) {
	shape := boardgame.BoardShape{Width: 3, Height: 3}
	cal := config.CameraCalibration{
		TopLeft:     boardgame.NormalizedPoint{X: 0.5, Y: 0.5},
		TopRight:    boardgame.NormalizedPoint{X: 0.5, Y: 0.5},
		BottomLeft:  boardgame.NormalizedPoint{X: 0.5, Y: 0.5},
		BottomRight: boardgame.NormalizedPoint{X: 0.5, Y: 0.5},
	}
	frame := camera.RawFrame{Width: 100, Height: 100, Pixels: make([]byte, 100*100*4)}

	ext := ExtractBoard(frame, cal, shape)
	if ext.Ok {
		t.Fatal("expected Ok=false for degenerate calibration")
	}
	w, h := config.ExtractorOutputSize(shape)
	if ext.Preview.Width != w || ext.Preview.Height != h {
		t.Fatalf("expected preview sized %dx%d, got %dx%d", w, h, ext.Preview.Width, ext.Preview.Height)
	}
	for i := 0; i < len(ext.Preview.Pixels); i += 4 {
		if ext.Preview.Pixels[i] != 0 || ext.Preview.Pixels[i+1] != 0 || ext.Preview.Pixels[i+2] != 0 {
			t.Fatalf("expected black preview pixel at %d", i)
		}
	}
}

func TestExtractBoardProducesExpectedTileCount(t *testing.T) {
	shape := boardgame.BoardShape{Width: 4, Height: 3}
	cal := config.CameraCalibration{
		TopLeft:     boardgame.NormalizedPoint{X: 0.1, Y: 0.1},
		TopRight:    boardgame.NormalizedPoint{X: 0.9, Y: 0.1},
		BottomLeft:  boardgame.NormalizedPoint{X: 0.1, Y: 0.9},
		BottomRight: boardgame.NormalizedPoint{X: 0.9, Y: 0.9},
	}
	frame := camera.RawFrame{Width: 200, Height: 150, Pixels: make([]byte, 200*150*4)}
	for i := 3; i < len(frame.Pixels); i += 4 {
		frame.Pixels[i] = 255
	}

	ext := ExtractBoard(frame, cal, shape)
	if !ext.Ok {
		t.Fatal("expected Ok=true for valid calibration")
	}
	wantShape := []int{shape.Count(), 3, config.StoneSize, config.StoneSize}
	got := []int(ext.Tiles.Shape())
	if len(got) != len(wantShape) {
		t.Fatalf("tile batch shape = %v, want %v", got, wantShape)
	}
	for i := range wantShape {
		if got[i] != wantShape[i] {
			t.Fatalf("tile batch shape = %v, want %v", got, wantShape)
		}
	}
}
