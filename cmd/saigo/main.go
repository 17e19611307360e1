// Command saigo binds an HTTP/WebSocket listener and runs the frame
// scheduler until interrupted. Flag-based startup configuration follows
// a realMain() error wrapped by a thin main() with stdlib flag for
// options, generalized to build an initial config.Snapshot instead of
// dialing a remote robot.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/intothevoid/saigo/pkg/boardgame"
	"github.com/intothevoid/saigo/pkg/broadcast"
	"github.com/intothevoid/saigo/pkg/config"
	"github.com/intothevoid/saigo/pkg/gameengine"
	"github.com/intothevoid/saigo/pkg/scheduler"
	"github.com/intothevoid/saigo/pkg/vision"
	"github.com/intothevoid/saigo/pkg/wsapi"
)

func main() {
	if err := run(); err != nil {
		log.Error().Err(err).Msg("saigo: exiting")
		os.Exit(1)
	}
}

func run() error {
	var (
		addr        = flag.String("addr", "localhost:5410", "address to bind the HTTP/WebSocket server")
		modelDir    = flag.String("model-dir", "./model", "directory containing model.safetensors and model.txt")
		boardWidth  = flag.Int("board-width", 19, "board width in intersections")
		boardHeight = flag.Int("board-height", 19, "board height in intersections")
		device      = flag.String("camera-device", "/dev/video0", "capture device name")
		camWidth    = flag.Uint("camera-width", 1280, "capture resolution width")
		camHeight   = flag.Uint("camera-height", 720, "capture resolution height")
		displayW    = flag.Uint("display-width", 1280, "projector framebuffer width")
		displayH    = flag.Uint("display-height", 720, "projector framebuffer height")
		gpu         = flag.Bool("gpu", false, "run vision inference on GPU if available")
		verbose     = flag.Bool("verbose", false, "enable debug logging")
	)
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	shape := boardgame.BoardShape{Width: *boardWidth, Height: *boardHeight}
	if !shape.Valid() {
		return fmt.Errorf("saigo: invalid board shape %+v", shape)
	}

	dev := vision.DeviceCPU
	if *gpu {
		dev = vision.DeviceGPU
	}

	model, err := vision.LoadModel(*modelDir, dev)
	if err != nil {
		return fmt.Errorf("saigo: loading vision model: %w", err)
	}

	initial := config.Snapshot{
		Board: shape,
		Camera: config.CameraCalibration{
			Device:           *device,
			ResolutionWidth:  uint32(*camWidth),
			ResolutionHeight: uint32(*camHeight),
			TopLeft:          boardgame.NormalizedPoint{X: 0.1, Y: 0.1},
			TopRight:         boardgame.NormalizedPoint{X: 0.9, Y: 0.1},
			BottomLeft:       boardgame.NormalizedPoint{X: 0.1, Y: 0.9},
			BottomRight:      boardgame.NormalizedPoint{X: 0.9, Y: 0.9},
		},
		Display: config.Identity(uint32(*displayW), uint32(*displayH)),
	}
	if err := initial.Validate(); err != nil {
		return fmt.Errorf("saigo: invalid startup configuration: %w", err)
	}

	cfgCell := config.NewCell(initial)
	fabric := broadcast.NewFabric(32)
	engine := gameengine.NewEngine(shape)
	sched := scheduler.New(cfgCell, fabric, engine, model)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	schedulerDone := make(chan struct{})
	go func() {
		defer close(schedulerDone)
		if err := sched.Run(ctx); err != nil {
			log.Error().Err(err).Msg("saigo: scheduler exited with an error")
		}
	}()

	server := &http.Server{
		Addr:    *addr,
		Handler: wsapi.Mux(fabric),
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", *addr).Msg("saigo: listening")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && err != http.ErrServerClosed {
			stop()
			<-schedulerDone
			return fmt.Errorf("saigo: bind failed: %w", err)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("saigo: error during shutdown")
		}
	}

	<-schedulerDone
	return nil
}
