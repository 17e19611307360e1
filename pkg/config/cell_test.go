package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/intothevoid/saigo/pkg/boardgame"
)

func validCamera() CameraCalibration {
	return CameraCalibration{
		Device:           "/dev/video0",
		ResolutionWidth:  1280,
		ResolutionHeight: 720,
		TopLeft:          boardgame.NormalizedPoint{X: 0.1, Y: 0.1},
		TopRight:         boardgame.NormalizedPoint{X: 0.9, Y: 0.1},
		BottomLeft:       boardgame.NormalizedPoint{X: 0.1, Y: 0.9},
		BottomRight:      boardgame.NormalizedPoint{X: 0.9, Y: 0.9},
	}
}

func TestCellGetSet(t *testing.T) {
	shape := boardgame.BoardShape{Width: 19, Height: 19}
	c := NewCell(Snapshot{Board: shape, Camera: validCamera()})
	require.Equal(t, shape, c.Get().Board)

	next := shape
	next.Width = 9
	c.Set(Snapshot{Board: next, Camera: validCamera()})
	require.Equal(t, next, c.Get().Board)
}

func TestCellSubscribeNotifiesOnChange(t *testing.T) {
	c := NewCell(Snapshot{Board: boardgame.BoardShape{Width: 19, Height: 19}, Camera: validCamera()})
	ch := c.Subscribe()

	select {
	case <-ch:
		t.Fatal("should not be notified before any Set")
	default:
	}

	c.Set(Snapshot{Board: boardgame.BoardShape{Width: 9, Height: 9}, Camera: validCamera()})

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("expected notification after Set")
	}
}

func TestCameraCalibrationDegenerateRejected(t *testing.T) {
	degenerate := CameraCalibration{
		TopLeft:     boardgame.NormalizedPoint{X: 0.5, Y: 0.5},
		TopRight:    boardgame.NormalizedPoint{X: 0.5, Y: 0.5},
		BottomLeft:  boardgame.NormalizedPoint{X: 0.5, Y: 0.5},
		BottomRight: boardgame.NormalizedPoint{X: 0.5, Y: 0.5},
	}
	if degenerate.Valid() {
		t.Fatal("expected degenerate quadrilateral to be invalid")
	}

	snap := Snapshot{Board: boardgame.BoardShape{Width: 19, Height: 19}, Camera: degenerate}
	require.Error(t, snap.Validate())
}

func TestReferenceImageMatches(t *testing.T) {
	shape := boardgame.BoardShape{Width: 9, Height: 9}
	w, h := ExtractorOutputSize(shape)
	ref := ReferenceImage{Width: w, Height: h, Pixels: make([]byte, w*h*4)}
	if !ref.Matches(shape) {
		t.Fatal("expected reference image to match its own shape")
	}
	if ref.Matches(boardgame.BoardShape{Width: 19, Height: 19}) {
		t.Fatal("expected reference image to not match a different shape")
	}
}
