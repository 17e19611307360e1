package vision

import (
	"math"
	"testing"

	"github.com/intothevoid/saigo/pkg/boardgame"
)

func constantPrediction(class int, prob float32) RawCellPrediction {
	var pred RawCellPrediction
	rest := (1 - prob) / float32(NumClasses-1)
	for c := range pred {
		pred[c] = rest
	}
	pred[class] = prob
	return pred
}

func TestStabilizerStartsAllEmpty(t *testing.T) {
	shape := boardgame.BoardShape{Width: 2, Height: 2}
	s := NewStabilizer(shape)
	raw := make([]RawCellPrediction, shape.Count())
	for i := range raw {
		raw[i] = constantPrediction(int(boardgame.CellEmpty), 0.99)
	}
	_, board, _, changed := s.Observe(raw)
	if changed {
		t.Fatal("first observation of an already-empty board should not report a change")
	}
	for _, c := range board.Cells {
		if c != boardgame.CellEmpty {
			t.Fatalf("expected all-empty board, got %v", c)
		}
	}
}

// TestStabilizerMonotonicCommitConvergence checks the named convergence
// property: holding raw probabilities constant at p>0.8 for class c on a
// single cell, the commit happens within
// ceil(log_0.5((0.8-0.5)/(p-0.5))) frames.
func TestStabilizerMonotonicCommitConvergence(t *testing.T) {
	shape := boardgame.BoardShape{Width: 1, Height: 1}
	const p = 0.95
	bound := int(math.Ceil(math.Log((CommitThreshold-0.5)/(p-0.5)) / math.Log(0.5)))

	s := NewStabilizer(shape)
	raw := []RawCellPrediction{constantPrediction(int(boardgame.CellBlack), p)}

	committed := false
	for i := 0; i < bound; i++ {
		_, board, _, changed := s.Observe(raw)
		if changed && board.Cells[0] == boardgame.CellBlack {
			committed = true
			break
		}
	}
	if !committed {
		t.Fatalf("expected black to commit within %d frames", bound)
	}
}

func TestStabilizerNoCommitBelowThreshold(t *testing.T) {
	shape := boardgame.BoardShape{Width: 1, Height: 1}
	s := NewStabilizer(shape)
	raw := []RawCellPrediction{constantPrediction(int(boardgame.CellBlack), 0.7)}

	for i := 0; i < 50; i++ {
		_, board, _, _ := s.Observe(raw)
		if board.Cells[0] != boardgame.CellEmpty {
			t.Fatalf("frame %d: expected no commit below threshold, got %v", i, board.Cells[0])
		}
	}
}

func TestStabilizerSmoothedOutputAlwaysReturnedVerbatim(t *testing.T) {
	shape := boardgame.BoardShape{Width: 1, Height: 1}
	s := NewStabilizer(shape)
	raw := []RawCellPrediction{constantPrediction(int(boardgame.CellWhite), 0.99)}

	smoothed, _, _, _ := s.Observe(raw)
	if len(smoothed) != 1 {
		t.Fatalf("expected one smoothed prediction, got %d", len(smoothed))
	}
	if smoothed[0] != raw[0] {
		t.Fatalf("first observation should pass raw through unsmoothed, got %v want %v", smoothed[0], raw[0])
	}
}

func TestStabilizerResetClearsCommittedBoard(t *testing.T) {
	shape := boardgame.BoardShape{Width: 1, Height: 1}
	s := NewStabilizer(shape)
	raw := []RawCellPrediction{constantPrediction(int(boardgame.CellBlack), 0.99)}
	for i := 0; i < 10; i++ {
		s.Observe(raw)
	}
	_, board, _, _ := s.Observe(raw)
	if board.Cells[0] != boardgame.CellBlack {
		t.Fatal("setup failed: expected black to have committed")
	}

	s.Reset(shape)
	emptyRaw := []RawCellPrediction{constantPrediction(int(boardgame.CellEmpty), 0.99)}
	_, board, _, changed := s.Observe(emptyRaw)
	if changed {
		t.Fatal("reset board observing empty again should not report a change")
	}
	if board.Cells[0] != boardgame.CellEmpty {
		t.Fatalf("expected reset board to be empty, got %v", board.Cells[0])
	}
}

// TestStabilizerObscuredReportedWithoutChangingCommittedBoard checks the
// "Unreadable cell" scenario at the stabilizer layer: a confident
// obscured reading on an already-empty cell sets that cell's obscured
// flag but leaves the committed board at CellEmpty and reports no
// change, since Obscured must never leak onto the committed board.
func TestStabilizerObscuredReportedWithoutChangingCommittedBoard(t *testing.T) {
	shape := boardgame.BoardShape{Width: 1, Height: 1}
	s := NewStabilizer(shape)
	raw := []RawCellPrediction{constantPrediction(obscuredClass, 0.9)}

	var obscured []bool
	var board boardgame.Board
	var changed bool
	for i := 0; i < 10; i++ {
		_, board, obscured, changed = s.Observe(raw)
	}

	if changed {
		t.Fatal("a confidently-obscured cell must never change the committed board")
	}
	if board.Cells[0] != boardgame.CellEmpty {
		t.Fatalf("expected committed board to stay empty, got %v", board.Cells[0])
	}
	if !obscured[0] {
		t.Fatal("expected cell 0 to be reported obscured")
	}
}

func TestStabilizerChangedOnlyWhenCommittedBoardDiffers(t *testing.T) {
	shape := boardgame.BoardShape{Width: 1, Height: 1}
	s := NewStabilizer(shape)
	raw := []RawCellPrediction{constantPrediction(int(boardgame.CellBlack), 0.99)}

	var sawChange bool
	for i := 0; i < 10; i++ {
		_, _, _, changed := s.Observe(raw)
		if changed {
			sawChange = true
		}
	}
	if !sawChange {
		t.Fatal("expected at least one change while converging to black")
	}

	// Once committed, continuing to observe the same prediction must not
	// report further changes.
	for i := 0; i < 5; i++ {
		_, board, _, changed := s.Observe(raw)
		if changed {
			t.Fatalf("unexpected change after convergence at frame %d", i)
		}
		if board.Cells[0] != boardgame.CellBlack {
			t.Fatalf("expected board to stay black, got %v", board.Cells[0])
		}
	}
}
