// Package camera implements device enumeration and a lazy infinite
// sequence of raw frames from an opened capture device, built on
// gocv.VideoCaptureDevice, a reusable gocv.Mat, and the Mat->image.Image
// conversion on read, generalized to multiple named devices and a
// requested resolution instead of one fixed index.
package camera

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"

	"github.com/intothevoid/saigo/pkg/saigoerr"
)

// RawFrame is an RGBA raster captured from a device or produced by a
// pipeline stage. Frames are ephemeral: callers should publish and
// discard them rather than retaining references.
type RawFrame struct {
	Width, Height uint32
	Pixels        []byte // RGBA, row-major, len == Width*Height*4
}

// probeRange bounds how many device indices ListDevices will try to open
// on platforms (Linux /dev/video*) that expose devices by small integer
// index rather than by name.
const probeRange = 16

// ListDevices enumerates capture devices by probing indices 0..probeRange
// and keeping every one that opens and yields at least one frame, rather
// than hardcoding a fixed device index.
func ListDevices() []string {
	var names []string
	for i := 0; i < probeRange; i++ {
		cam, err := gocv.VideoCaptureDevice(i)
		if err != nil {
			continue
		}
		mat := gocv.NewMat()
		ok := cam.Read(&mat)
		mat.Close()
		cam.Close()
		if ok {
			names = append(names, fmt.Sprintf("/dev/video%d", i))
		}
	}
	return names
}

// FrameSource yields a lazy infinite sequence of raw frames from an
// opened device.
type FrameSource interface {
	// Next blocks until a frame is available and returns it, or returns
	// an error if the device has failed.
	Next() (RawFrame, error)
	// Close releases the underlying device.
	Close() error
}

// deviceSource is the gocv-backed FrameSource implementation.
type deviceSource struct {
	name   string
	webcam *gocv.VideoCapture
	mat    gocv.Mat // reused across reads to avoid reallocating per frame
}

// Open opens the named device at the requested resolution. Opening is
// lazy in the sense that the scheduler re-attempts it whenever the
// camera section of the configuration cell changes; Open
// itself performs the actual device open eagerly.
func Open(name string, width, height uint32) (FrameSource, error) {
	index, err := deviceIndex(name)
	if err != nil {
		return nil, fmt.Errorf("camera: %w: %v", saigoerr.ErrNoSuchDevice, err)
	}

	cam, err := gocv.VideoCaptureDevice(index)
	if err != nil {
		return nil, fmt.Errorf("camera: opening %s: %w", name, saigoerr.ErrCameraOpenFailed)
	}

	cam.Set(gocv.VideoCaptureFrameWidth, float64(width))
	cam.Set(gocv.VideoCaptureFrameHeight, float64(height))

	mat := gocv.NewMat()
	src := &deviceSource{name: name, webcam: cam, mat: mat}

	// A device that opens but never yields a frame twice in a row is
	// treated as busy (held open by another process) rather than simply
	// misconfigured's Busy case.
	if _, err := src.Next(); err != nil {
		if _, err2 := src.Next(); err2 != nil {
			src.Close()
			return nil, fmt.Errorf("camera: %s: %w", name, saigoerr.ErrDeviceBusy)
		}
	}

	log.Info().Str("component", "camera").Str("device", name).
		Uint32("width", width).Uint32("height", height).Msg("opened capture device")
	return src, nil
}

// deviceIndex extracts the integer index from a "/dev/videoN"-shaped
// device name.
func deviceIndex(name string) (int, error) {
	var n int
	if _, err := fmt.Sscanf(name, "/dev/video%d", &n); err != nil {
		return 0, fmt.Errorf("unrecognized device name %q", name)
	}
	return n, nil
}

// Next implements FrameSource.
func (s *deviceSource) Next() (RawFrame, error) {
	if ok := s.webcam.Read(&s.mat); !ok {
		return RawFrame{}, fmt.Errorf("camera: %s: %w", s.name, saigoerr.ErrCameraOpenFailed)
	}
	if s.mat.Empty() {
		return RawFrame{}, fmt.Errorf("camera: %s: empty frame: %w", s.name, saigoerr.ErrCameraOpenFailed)
	}

	img, err := s.mat.ToImage()
	if err != nil {
		return RawFrame{}, fmt.Errorf("camera: %s: converting frame: %w", s.name, err)
	}

	bounds := img.Bounds()
	width, height := uint32(bounds.Dx()), uint32(bounds.Dy())
	pixels := make([]byte, int(width)*int(height)*4)
	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, a := img.At(x, y).RGBA()
			pixels[i+0] = byte(r >> 8)
			pixels[i+1] = byte(g >> 8)
			pixels[i+2] = byte(b >> 8)
			pixels[i+3] = byte(a >> 8)
			i += 4
		}
	}

	return RawFrame{Width: width, Height: height, Pixels: pixels}, nil
}

// Close implements FrameSource.
func (s *deviceSource) Close() error {
	s.mat.Close()
	return s.webcam.Close()
}
