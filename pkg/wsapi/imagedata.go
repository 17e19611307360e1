// Package wsapi implements the WebSocket surface: the imagedata binary
// codec and one handler per topic, each backed by a broadcast.Topic
// subscription. The per-connection push loop generalizes a redraw loop
// draining a channel of decoded frames into a network fan-out built on
// nhooyr.io/websocket.
package wsapi

import (
	"encoding/binary"
	"fmt"

	"github.com/intothevoid/saigo/pkg/camera"
)

// EncodeImagedata serializes frame: big-endian u32 width,
// big-endian u32 height, then width*height*4 RGBA bytes.
func EncodeImagedata(frame camera.RawFrame) []byte {
	out := make([]byte, 8+len(frame.Pixels))
	binary.BigEndian.PutUint32(out[0:4], frame.Width)
	binary.BigEndian.PutUint32(out[4:8], frame.Height)
	copy(out[8:], frame.Pixels)
	return out
}

// DecodeImagedata parses the wire format EncodeImagedata produces.
func DecodeImagedata(data []byte) (camera.RawFrame, error) {
	if len(data) < 8 {
		return camera.RawFrame{}, fmt.Errorf("wsapi: imagedata too short: %d bytes", len(data))
	}
	width := binary.BigEndian.Uint32(data[0:4])
	height := binary.BigEndian.Uint32(data[4:8])
	want := int(width) * int(height) * 4
	body := data[8:]
	if len(body) != want {
		return camera.RawFrame{}, fmt.Errorf("wsapi: imagedata body is %d bytes, want %d for %dx%d", len(body), want, width, height)
	}
	pixels := make([]byte, want)
	copy(pixels, body)
	return camera.RawFrame{Width: width, Height: height, Pixels: pixels}, nil
}
