// Package scheduler implements the single cooperative frame loop that
// drives capture through display and publishes every topic on the
// broadcast fabric. Its structure generalizes a single goroutine looping
// on a capture read and publishing into a channel an ad hoc redraw timer
// drains, into the full multi-stage capture/extract/infer/stabilize/
// render/warp pipeline, with camera capture isolated behind its own
// reopenable FrameSource.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.uber.org/multierr"

	"github.com/intothevoid/saigo/pkg/boardgame"
	"github.com/intothevoid/saigo/pkg/broadcast"
	"github.com/intothevoid/saigo/pkg/camera"
	"github.com/intothevoid/saigo/pkg/config"
	"github.com/intothevoid/saigo/pkg/display"
	"github.com/intothevoid/saigo/pkg/gameengine"
	"github.com/intothevoid/saigo/pkg/vision"
)

// errExtractionDegenerate marks a frame whose calibration corners did
// not describe a usable quadrilateral; inference is skipped for it.
var errExtractionDegenerate = errors.New("scheduler: board extraction: degenerate calibration quadrilateral")

// maxConsecutiveCameraFailures is how many consecutive frame failures
// trigger the static error pattern on the display topic.
const maxConsecutiveCameraFailures = 30

// Scheduler owns the frame loop's mutable cross-iteration state: the
// currently open camera source (reopened on configuration change), the
// loaded vision model, the stabilizer (reset when the configured board
// shape changes; camera calibration changes and game resets do not reset
// it), and the monotonic frame counter driving blink timing.
type Scheduler struct {
	config  *config.Cell
	fabric  *broadcast.Fabric
	engine  *gameengine.Engine
	model   *vision.Model

	source       camera.FrameSource
	sourceDevice string
	sourceWidth  uint32
	sourceHeight uint32

	stabilizer  *vision.Stabilizer
	stableShape boardgame.BoardShape

	frameCounter        uint64
	consecutiveFailures int
}

// New creates a scheduler. model may be nil, in which case inference and
// stabilization are skipped every frame (useful for calibration-only
// operation without a loaded checkpoint).
func New(cfg *config.Cell, fabric *broadcast.Fabric, engine *gameengine.Engine, model *vision.Model) *Scheduler {
	shape := cfg.Get().Board
	return &Scheduler{
		config:      cfg,
		fabric:      fabric,
		engine:      engine,
		model:       model,
		stabilizer:  vision.NewStabilizer(shape),
		stableShape: shape,
	}
}

// Run executes the cooperative loop until ctx is canceled, at which
// point it exits at the next suspension point without draining anything
// further.
func (s *Scheduler) Run(ctx context.Context) error {
	defer func() {
		if s.source != nil {
			s.source.Close()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := s.ensureCamera(); err != nil {
			log.Error().Err(err).Msg("scheduler: camera unavailable")
			s.consecutiveFailures++
			s.maybeRenderErrorPattern()
			continue
		}

		frame, err := s.source.Next()
		if err != nil {
			log.Warn().Err(err).Msg("scheduler: frame read failed")
			s.consecutiveFailures++
			s.maybeRenderErrorPattern()
			continue
		}
		s.consecutiveFailures = 0

		s.runOneFrame(frame)
		s.frameCounter++
	}
}

// runOneFrame runs extraction, inference, stabilization, engine
// reconciliation and display rendering for a single captured frame.
func (s *Scheduler) runOneFrame(frame camera.RawFrame) {
	snapshot := s.config.Get()
	s.fabric.RawCamera.Publish(frame)

	s.reconcileStabilizerShape(snapshot.Board)

	needsVision := s.engine.Snapshot().Phase == gameengine.PhaseGame ||
		s.fabric.RawBoard.HasSubscribers() ||
		s.fabric.Board.HasSubscribers() ||
		s.fabric.BoardCamera.HasSubscribers()

	for _, cmd := range s.fabric.Control.Drain() {
		s.engine.Handle(cmd)
	}

	if needsVision {
		if err := s.runVisionPipeline(frame, snapshot); err != nil {
			log.Warn().Err(err).Msg("scheduler: vision pipeline reported errors")
		}
	}

	logical := s.engine.LogicalImage(s.frameCounter)
	out := display.Render(logical, snapshot.Display)
	s.fabric.Display.Publish(out)
}

// runVisionPipeline runs extraction, inference and stabilization in
// sequence and feeds the committed result into the game engine. A
// degenerate extraction (or a nil model) ends the frame's vision work
// before inference, and an inference error ends it before stabilization;
// the failure is returned for the caller to log.
func (s *Scheduler) runVisionPipeline(frame camera.RawFrame, snapshot config.Snapshot) error {
	var errs error

	ext := vision.ExtractBoard(frame, snapshot.Camera, snapshot.Board)
	s.fabric.BoardCamera.Publish(ext.Preview)
	if !ext.Ok {
		errs = multierr.Append(errs, errExtractionDegenerate)
	}
	if !ext.Ok || s.model == nil {
		return errs
	}

	predictions, err := s.model.Infer(ext.Tiles)
	if err != nil {
		return multierr.Append(errs, fmt.Errorf("scheduler: inference: %w", err))
	}

	smoothed, board, obscured, changed := s.stabilizer.Observe(predictions)
	s.fabric.RawBoard.Publish(broadcast.RawBoard{Shape: snapshot.Board, Cells: smoothed})

	if changed {
		s.fabric.Board.Publish(board)
	}

	// The engine is fed the committed board every frame, not only on
	// change: an obscured reading never changes the committed board (it
	// only ever holds the previous value there), but still has to reach
	// the engine so an unreadable intersection can blink.
	for _, event := range s.engine.ObserveBoard(board, obscured) {
		s.fabric.Game.Publish(event)
	}
	return errs
}

// reconcileStabilizerShape discards the EMA buffer when the board shape
// changes, since a buffer sized for the old shape can't be reused.
func (s *Scheduler) reconcileStabilizerShape(shape boardgame.BoardShape) {
	if shape == s.stableShape {
		return
	}
	s.stabilizer.Reset(shape)
	s.stableShape = shape
}

// ensureCamera (re)opens the capture device when the configured device
// or resolution changes. While no device is open (the last attempt
// failed), every call attempts the open again.
func (s *Scheduler) ensureCamera() error {
	cam := s.config.Get().Camera
	if s.source != nil && cam.Device == s.sourceDevice &&
		cam.ResolutionWidth == s.sourceWidth && cam.ResolutionHeight == s.sourceHeight {
		return nil
	}

	if s.source != nil {
		s.source.Close()
		s.source = nil
	}

	src, err := camera.Open(cam.Device, cam.ResolutionWidth, cam.ResolutionHeight)
	if err != nil {
		return err
	}
	s.source = src
	s.sourceDevice = cam.Device
	s.sourceWidth = cam.ResolutionWidth
	s.sourceHeight = cam.ResolutionHeight
	return nil
}

// maybeRenderErrorPattern publishes a static error pattern on the
// display topic once camera failures exceed the threshold, and backs
// off briefly so a persistently failing device doesn't spin the loop.
func (s *Scheduler) maybeRenderErrorPattern() {
	if s.consecutiveFailures == maxConsecutiveCameraFailures {
		log.Error().Int("failures", s.consecutiveFailures).Msg("scheduler: extended camera failure")
	}
	if s.consecutiveFailures >= maxConsecutiveCameraFailures {
		s.fabric.Display.Publish(errorPattern(s.config.Get().Display))
	}
	time.Sleep(10 * time.Millisecond)
}

// errorPattern renders a flat red raster at the configured display
// resolution: the static error pattern shown after sustained capture
// failure.
func errorPattern(cal config.DisplayCalibration) camera.RawFrame {
	w, h := cal.ImageResolutionWidth, cal.ImageResolutionHeight
	if w == 0 || h == 0 {
		w, h = 1, 1
	}
	pixels := make([]byte, int(w)*int(h)*4)
	for i := 0; i < len(pixels); i += 4 {
		pixels[i], pixels[i+3] = 200, 255
	}
	return camera.RawFrame{Width: w, Height: h, Pixels: pixels}
}
