// Package gameengine implements the state machine that reconciles an
// observed Board against an expected game and drives the projected
// feedback image. Its shape generalizes a GameState wrapper around a
// chess library (a struct owning the authoritative position, exposing
// IsGameOver/ApplyMove/ExpectedOccupancy-shaped methods, and an
// InferMove helper that finds the legal move whose resulting occupancy
// matches what the camera saw) into a from-scratch Go-board state
// machine, since no library implements Go rules the way chess libraries
// implement chess rules.
package gameengine

import (
	"sync"

	"github.com/intothevoid/saigo/pkg/boardgame"
)

// Phase is the coarse state of the game engine.
type Phase int

const (
	PhaseCalibration Phase = iota
	PhaseTraining
	PhaseGame
	PhaseGameOver
)

// Turn distinguishes whose physical action the engine is waiting on while
// PhaseGame is active.
type Turn int

const (
	AwaitingUser Turn = iota
	AwaitingOpponent
)

// Command is the decoded form of a control-channel message.
type Command struct {
	Type      string // "reset", "new_training_pattern", "new_game", "play_move"
	UserColor boardgame.Color
	Move      boardgame.PlayerMove
}

// Engine holds the current game state and the mutex that serializes
// transition work: every Handle/ObserveBoard call takes the lock only
// for the duration of the state transition itself.
type Engine struct {
	mu sync.Mutex

	shape boardgame.BoardShape

	phase Phase
	turn  Turn

	userColor boardgame.Color
	expected  boardgame.Board
	pending   *boardgame.PlayerMove
	winner    boardgame.Color

	pattern     boardgame.Board
	patternSeed int64

	mismatched []int // intersections currently blinking red
}

// NewEngine creates an engine for shape, starting in Calibration.
func NewEngine(shape boardgame.BoardShape) *Engine {
	return &Engine{
		shape:    shape,
		phase:    PhaseCalibration,
		expected: boardgame.NewBoard(shape),
		pattern:  boardgame.NewBoard(shape),
	}
}

// Snapshot is a read-only view of engine state sufficient to render a
// display frame and to answer API queries.
type Snapshot struct {
	Phase      Phase
	Turn       Turn
	UserColor  boardgame.Color
	Expected   boardgame.Board
	Pending    *boardgame.PlayerMove
	Winner     boardgame.Color
	Pattern    boardgame.Board
	Mismatched []int
}

// Snapshot returns the current state under the engine's mutex.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Snapshot{
		Phase:      e.phase,
		Turn:       e.turn,
		UserColor:  e.userColor,
		Expected:   e.expected.Clone(),
		Pending:    e.pending,
		Winner:     e.winner,
		Pattern:    e.pattern.Clone(),
		Mismatched: append([]int(nil), e.mismatched...),
	}
}

// Reset returns the engine to Calibration. In Calibration this is a
// no-op
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resetLocked()
}

func (e *Engine) resetLocked() {
	if e.phase == PhaseCalibration {
		return
	}
	e.phase = PhaseCalibration
	e.turn = AwaitingUser
	e.pending = nil
	e.expected = boardgame.NewBoard(e.shape)
	e.mismatched = nil
}

// NewTrainingPattern regenerates the training pattern and enters
// Training. The pattern's random source is seeded from a monotonic
// counter so successive patterns are distinct, never from
// wall-clock time.
func (e *Engine) NewTrainingPattern() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.patternSeed++
	e.pattern = generateTrainingPattern(e.shape, e.patternSeed)
	e.phase = PhaseTraining
	e.mismatched = nil
}

// NewGame starts a new game with the given user color, entering
// Game/Awaiting(user) with an empty expected board.
func (e *Engine) NewGame(user boardgame.Color) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.startGameLocked(user)
}

func (e *Engine) startGameLocked(user boardgame.Color) {
	e.phase = PhaseGame
	e.turn = AwaitingUser
	e.userColor = user
	e.expected = boardgame.NewBoard(e.shape)
	e.pending = nil
	e.mismatched = nil
}

// Handle applies a control command ("Any reset or new_game
// command is accepted in every state"). play_move is only meaningful in
// Game/Awaiting(opponent) with no pending incoming move; elsewhere it is
// silently ignored, since a stray or late command should not corrupt an
// unrelated state.
func (e *Engine) Handle(cmd Command) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch cmd.Type {
	case "reset":
		e.resetLocked()
	case "new_training_pattern":
		e.patternSeed++
		e.pattern = generateTrainingPattern(e.shape, e.patternSeed)
		e.phase = PhaseTraining
		e.mismatched = nil
	case "new_game":
		e.startGameLocked(cmd.UserColor)
	case "play_move":
		e.handleIncomingMoveLocked(cmd.Move)
	}
}

func (e *Engine) handleIncomingMoveLocked(move boardgame.PlayerMove) {
	if e.phase != PhaseGame || e.turn != AwaitingOpponent || e.pending != nil {
		return
	}
	opponent := e.userColor.Opposite()
	if move.Player != opponent {
		return
	}

	switch move.Kind {
	case boardgame.MoveKindPlay:
		pending := move
		e.pending = &pending
		e.turn = AwaitingUser
	case boardgame.MoveKindPass:
		e.turn = AwaitingUser
	case boardgame.MoveKindResign:
		e.phase = PhaseGameOver
		e.winner = e.userColor
	}
}

// ObserveBoard feeds a newly committed Board from the stabilizer into
// the engine, along with obscured, a per-intersection mask of cells the
// stabilizer currently has a confident Obscured reading for (independent
// of o, which never itself carries CellObscured — see
// boardgame.Cell.Glyph). It returns the PlayerMove events to publish on
// the game stream, in production order. It is a no-op outside
// Game/Awaiting(user).
func (e *Engine) ObserveBoard(o boardgame.Board, obscured []bool) []boardgame.PlayerMove {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.phase != PhaseGame || e.turn != AwaitingUser {
		e.mismatched = nil
		return nil
	}

	if e.pending != nil {
		return e.observePendingLocked(o)
	}
	return e.observeOwnTurnLocked(o, obscured)
}

// observePendingLocked handles the "user must physically place the
// opponent's relayed move" sub-state.
func (e *Engine) observePendingLocked(o boardgame.Board) []boardgame.PlayerMove {
	pending := *e.pending
	if pending.Kind != boardgame.MoveKindPlay {
		// Pass/resign never leave a pending physical placement.
		e.pending = nil
		e.turn = AwaitingUser
		return nil
	}

	idx := e.shape.Index(pending.Location.X, pending.Location.Y)
	candidate := boardgame.ApplyMove(e.expected, pending.Player, pending.Location)
	if candidate.Equal(o) {
		e.expected = candidate
		e.pending = nil
		e.mismatched = nil
		return nil
	}

	// Not yet placed correctly; nothing to blink about beyond the target
	// cell itself, which the renderer already highlights with the
	// blinking white dot.
	e.mismatched = []int{idx}
	return nil
}

// observeOwnTurnLocked implements the Game/Awaiting(user), pending=None
// reconciliation rules. An obscured intersection always blinks red here,
// even when it doesn't change the expected/observed diff (the camera
// losing sight of an empty point is itself the thing being reported; see
// the "Unreadable cell" scenario).
func (e *Engine) observeOwnTurnLocked(o boardgame.Board, obscured []bool) []boardgame.PlayerMove {
	u := e.userColor
	opp := u.Opposite()

	added, removed, mismatched := diffBoard(e.expected, o)
	defer func() { e.mismatched = mergeObscured(e.mismatched, obscured) }()
	e.mismatched = mismatched

	if len(added) == 0 && len(removed) == 0 {
		return nil
	}

	if len(added) == 1 && added[0].color == u {
		x, y := e.shape.XY(added[0].index)
		p := boardgame.SgfPoint{X: x, Y: y}
		candidate := boardgame.ApplyMove(e.expected, u, p)
		if candidate.Equal(o) {
			e.expected = candidate
			e.turn = AwaitingOpponent
			e.mismatched = nil
			return []boardgame.PlayerMove{boardgame.Move(p, u)}
		}
	}

	if len(added) == 2 && len(removed) == 0 && sameColor(added, u) {
		e.turn = AwaitingOpponent
		e.mismatched = nil
		return []boardgame.PlayerMove{boardgame.Pass(u)}
	}

	if len(added) == 2 && len(removed) == 0 && sameColor(added, opp) {
		e.phase = PhaseGameOver
		e.winner = opp
		e.mismatched = nil
		return []boardgame.PlayerMove{boardgame.Resign(u)}
	}

	// Ambiguous or incomplete; keep blinking, no transition (
	// "Ties/ambiguity").
	return nil
}

func sameColor(added []cellDiff, c boardgame.Color) bool {
	for _, a := range added {
		if a.color != c {
			return false
		}
	}
	return true
}

// cellDiff names one intersection where observed adds a stone not
// present in expected.
type cellDiff struct {
	index int
	color boardgame.Color
}

// mergeObscured folds every index the stabilizer currently reports as
// confidently Obscured into mismatched, deduplicating against indices
// diffBoard already found.
func mergeObscured(mismatched []int, obscured []bool) []int {
	for i, isObscured := range obscured {
		if !isObscured {
			continue
		}
		found := false
		for _, m := range mismatched {
			if m == i {
				found = true
				break
			}
		}
		if !found {
			mismatched = append(mismatched, i)
		}
	}
	return mismatched
}

// diffBoard computes, relative to expected E and observed O: stones O has
// that E doesn't (added), intersections E has a stone but O doesn't
// (removed), and the full set of mismatched intersections, including
// obscured/color-swap cases that don't cleanly classify as either.
func diffBoard(e, o boardgame.Board) (added []cellDiff, removed []int, mismatched []int) {
	for i, ec := range e.Cells {
		oc := o.Cells[i]
		if ec == oc {
			continue
		}
		mismatched = append(mismatched, i)
		switch {
		case ec == boardgame.CellEmpty && oc == boardgame.CellBlack:
			added = append(added, cellDiff{i, boardgame.Black})
		case ec == boardgame.CellEmpty && oc == boardgame.CellWhite:
			added = append(added, cellDiff{i, boardgame.White})
		case oc == boardgame.CellEmpty && (ec == boardgame.CellBlack || ec == boardgame.CellWhite):
			removed = append(removed, i)
		}
	}
	return added, removed, mismatched
}
