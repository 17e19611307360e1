package gameengine

import (
	"math/rand"

	"github.com/intothevoid/saigo/pkg/boardgame"
	"github.com/intothevoid/saigo/pkg/camera"
)

// DisplayScale is the per-intersection pixel size of the logical
// board-space image this package produces for the display package to
// warp: a small fixed per-intersection scale.
const DisplayScale = 9

// FrameRate is the assumed scheduler frame rate used to convert a
// 2 Hz / 50%-duty blink into a frame-counter period. It is not measured;
// the scheduler's actual loop rate may differ, in which case the blink
// rate scales with it. Blink timing is driven off the frame clock, not
// wall time, so this stays a simple divisor rather than a timer.
const FrameRate = 30

// blinkOn reports whether a blinking element is in its "on" half-cycle
// at the given frame counter: a 2 Hz signal at 50% duty over FrameRate
// frames/second.
func blinkOn(frame uint64) bool {
	framesPerHalfCycle := uint64(FrameRate) / 4
	if framesPerHalfCycle == 0 {
		framesPerHalfCycle = 1
	}
	return (frame/framesPerHalfCycle)%2 == 0
}

var (
	colorBlack   = [4]byte{0, 0, 0, 255}
	colorWhite   = [4]byte{255, 255, 255, 255}
	colorGreen   = [4]byte{0, 200, 0, 255}
	colorRed     = [4]byte{220, 0, 0, 255}
	colorYellow  = [4]byte{230, 200, 0, 255}
	colorBgEmpty = [4]byte{40, 40, 40, 255}
)

// newCanvas allocates a DisplayScale-per-intersection RGBA raster filled
// with colorBgEmpty.
func (e *Engine) newCanvas() camera.RawFrame {
	w := uint32(e.shape.Width * DisplayScale)
	h := uint32(e.shape.Height * DisplayScale)
	pixels := make([]byte, int(w)*int(h)*4)
	for i := 0; i < len(pixels); i += 4 {
		pixels[i+0] = colorBgEmpty[0]
		pixels[i+1] = colorBgEmpty[1]
		pixels[i+2] = colorBgEmpty[2]
		pixels[i+3] = colorBgEmpty[3]
	}
	return camera.RawFrame{Width: w, Height: h, Pixels: pixels}
}

func (f *canvasWriter) fillRect(px, py, w, h int, c [4]byte) {
	for yy := py; yy < py+h; yy++ {
		if yy < 0 || yy >= int(f.frame.Height) {
			continue
		}
		for xx := px; xx < px+w; xx++ {
			if xx < 0 || xx >= int(f.frame.Width) {
				continue
			}
			idx := (yy*int(f.frame.Width) + xx) * 4
			f.frame.Pixels[idx+0] = c[0]
			f.frame.Pixels[idx+1] = c[1]
			f.frame.Pixels[idx+2] = c[2]
			f.frame.Pixels[idx+3] = c[3]
		}
	}
}

func (f *canvasWriter) fillDot(x, y int, c [4]byte) {
	cx := x*DisplayScale + DisplayScale/2
	cy := y*DisplayScale + DisplayScale/2
	radius := DisplayScale/2 - 1
	if radius < 1 {
		radius = 1
	}
	f.fillRect(cx-radius, cy-radius, radius*2+1, radius*2+1, c)
}

// canvasWriter is a thin helper binding a RawFrame to the pixel-plotting
// primitives above.
type canvasWriter struct {
	frame camera.RawFrame
}

// LogicalImage renders the board-space image the engine owns for the
// current state. frame is the scheduler's monotonic frame counter, used
// only to drive blink timing.
func (e *Engine) LogicalImage(frame uint64) camera.RawFrame {
	e.mu.Lock()
	defer e.mu.Unlock()

	canvas := e.newCanvas()
	w := canvasWriter{canvas}

	switch e.phase {
	case PhaseCalibration:
		renderCalibrationPattern(&w, e.shape)
	case PhaseTraining:
		renderBoard(&w, e.pattern)
	case PhaseGame:
		renderGame(&w, e, frame)
	case PhaseGameOver:
		renderGameOver(&w, e.shape, e.winner)
	}
	return canvas
}

// renderCalibrationPattern draws a white dot at each intersection, a
// green dot at the top-left corner and a red dot at the top-right
// corner.
func renderCalibrationPattern(w *canvasWriter, shape boardgame.BoardShape) {
	for y := 0; y < shape.Height; y++ {
		for x := 0; x < shape.Width; x++ {
			w.fillDot(x, y, colorWhite)
		}
	}
	w.fillDot(0, 0, colorGreen)
	w.fillDot(shape.Width-1, 0, colorRed)
}

// renderBoard draws each intersection's cell as a dot of the
// corresponding color, leaving empty intersections as background.
func renderBoard(w *canvasWriter, b boardgame.Board) {
	for i, c := range b.Cells {
		x, y := b.Shape.XY(i)
		switch c {
		case boardgame.CellBlack:
			w.fillDot(x, y, colorBlack)
		case boardgame.CellWhite:
			w.fillDot(x, y, colorWhite)
		}
	}
}

// renderGame draws the expected board plus the turn stripe, pending
// highlight and mismatch blink
func renderGame(w *canvasWriter, e *Engine, frame uint64) {
	renderBoard(w, e.expected)

	shape := e.shape
	on := blinkOn(frame)

	switch {
	case e.turn == AwaitingUser && e.pending == nil:
		stripeRow(w, shape, e.userColor, colorWhite)
		if on {
			for _, idx := range e.mismatched {
				x, y := shape.XY(idx)
				w.fillDot(x, y, colorRed)
			}
		}
	case e.turn == AwaitingOpponent:
		stripeRow(w, shape, e.userColor.Opposite(), colorWhite)
	case e.turn == AwaitingUser && e.pending != nil:
		stripeRow(w, shape, e.userColor, colorYellow)
		if on {
			x, y := shape.XY(shape.Index(e.pending.Location.X, e.pending.Location.Y))
			w.fillDot(x, y, colorWhite)
		}
	}
}

// stripeRow paints a one-cell-wide stripe along the edge on the given
// color's side: row 0 for Black, row height-1 for White.
func stripeRow(w *canvasWriter, shape boardgame.BoardShape, side boardgame.Color, c [4]byte) {
	row := 0
	if side == boardgame.White {
		row = shape.Height - 1
	}
	w.fillRect(0, row*DisplayScale, shape.Width*DisplayScale, DisplayScale, c)
}

// renderGameOver paints the winner's half green and the loser's half
// red. The board is split top/bottom since turn stripes are
// also rows.
func renderGameOver(w *canvasWriter, shape boardgame.BoardShape, winner boardgame.Color) {
	winnerRow, loserRow := 0, shape.Height-1
	if winner == boardgame.White {
		winnerRow, loserRow = shape.Height-1, 0
	}
	half := shape.Height / 2
	if half == 0 {
		half = 1
	}
	topColor, bottomColor := colorRed, colorRed
	if winnerRow < loserRow {
		topColor = colorGreen
	} else {
		bottomColor = colorGreen
	}
	w.fillRect(0, 0, shape.Width*DisplayScale, half*DisplayScale, topColor)
	w.fillRect(0, half*DisplayScale, shape.Width*DisplayScale, (shape.Height-half)*DisplayScale, bottomColor)
}

// generateTrainingPattern builds a pseudorandom stone/empty pattern,
// seeded deterministically from seed so successive patterns differ
// without depending on wall-clock time.
func generateTrainingPattern(shape boardgame.BoardShape, seed int64) boardgame.Board {
	r := rand.New(rand.NewSource(seed))
	b := boardgame.NewBoard(shape)
	for i := range b.Cells {
		switch r.Intn(3) {
		case 0:
			b.Cells[i] = boardgame.CellEmpty
		case 1:
			b.Cells[i] = boardgame.CellBlack
		case 2:
			b.Cells[i] = boardgame.CellWhite
		}
	}
	return b
}
