package vision

import "github.com/intothevoid/saigo/pkg/boardgame"

// EMAAlpha and CommitThreshold are the tunable constants from 
// They are not load-bearing invariants; a different vision
// model might want different smoothing.
const (
	EMAAlpha        = 0.5
	CommitThreshold = 0.8
)

// obscuredClass is RawCellPrediction's class index for "obscured", the
// fourth component of (empty, black, white, obscured).
const obscuredClass = 3

// Stabilizer converts raw per-tile probabilities into a committed
// discrete board, absorbing per-frame jitter with an exponential moving
// average and a hysteresis threshold.
type Stabilizer struct {
	shape     boardgame.BoardShape
	smoothed  []RawCellPrediction
	committed boardgame.Board
	has       bool // false until the first Observe call
}

// NewStabilizer creates a fresh stabilizer for shape. A fresh stabilizer
// treats "previous committed" as empty
func NewStabilizer(shape boardgame.BoardShape) *Stabilizer {
	return &Stabilizer{
		shape:     shape,
		smoothed:  make([]RawCellPrediction, shape.Count()),
		committed: boardgame.NewBoard(shape),
	}
}

// Reset discards the EMA buffer and committed board. The scheduler calls
// it only when the configured board shape changes.
func (s *Stabilizer) Reset(shape boardgame.BoardShape) {
	s.shape = shape
	s.smoothed = make([]RawCellPrediction, shape.Count())
	s.committed = boardgame.NewBoard(shape)
	s.has = false
}

// Observe feeds one frame's raw predictions through the EMA and
// hysteresis commit rule. It returns the smoothed raw-board (published
// verbatim on the raw-board topic every call), the committed Board (with
// changed=true when it differs from the previous call's), and obscured,
// a per-intersection mask of cells the stabilizer currently has a
// confident Obscured reading for. obscured is reported independently of
// the commit rule above: it never mutates the committed board, since
// Obscured must never leak onto it, but callers that need to flag an
// unreadable intersection (e.g. a red blink) can't see that from board
// alone.
func (s *Stabilizer) Observe(raw []RawCellPrediction) (smoothed []RawCellPrediction, board boardgame.Board, obscured []bool, changed bool) {
	if len(raw) != len(s.smoothed) {
		// A shape mismatch should have gone through Reset first; treat it
		// defensively as a reset so a stray call never panics.
		s.Reset(boardgame.BoardShape{Width: s.shape.Width, Height: s.shape.Height})
	}

	if !s.has {
		copy(s.smoothed, raw)
		s.has = true
	} else {
		for i, r := range raw {
			for c := 0; c < NumClasses; c++ {
				s.smoothed[i][c] = float32(EMAAlpha)*s.smoothed[i][c] + float32(1-EMAAlpha)*r[c]
			}
		}
	}

	next := s.committed.Clone()
	obscured = make([]bool, len(s.smoothed))
	for i, pred := range s.smoothed {
		cls, prob := argmax(pred)
		if prob <= CommitThreshold {
			continue
		}
		if cls == obscuredClass {
			// Obscured never leaks onto the committed board: a
			// confident "obscured" verdict holds the previous value
			// instead of overwriting it, and is reported via obscured
			// instead.
			obscured[i] = true
			continue
		}
		next.Cells[i] = classToCell(cls)
	}

	changed = !next.Equal(s.committed)
	s.committed = next

	out := make([]RawCellPrediction, len(s.smoothed))
	copy(out, s.smoothed)
	return out, s.committed, obscured, changed
}

// argmax returns the index and value of the largest component of pred.
func argmax(pred RawCellPrediction) (index int, value float32) {
	index, value = 0, pred[0]
	for i := 1; i < NumClasses; i++ {
		if pred[i] > value {
			index, value = i, pred[i]
		}
	}
	return index, value
}

// classToCell maps the model's class index ordering (empty, black,
// white, obscured) to boardgame.Cell.
func classToCell(class int) boardgame.Cell {
	switch class {
	case 1:
		return boardgame.CellBlack
	case 2:
		return boardgame.CellWhite
	case 3:
		return boardgame.CellObscured
	default:
		return boardgame.CellEmpty
	}
}
