package wsapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
	"nhooyr.io/websocket"

	"github.com/intothevoid/saigo/pkg/boardgame"
	"github.com/intothevoid/saigo/pkg/broadcast"
	"github.com/intothevoid/saigo/pkg/camera"
	"github.com/intothevoid/saigo/pkg/gameengine"
)

// Mux builds the http.ServeMux exposing every WebSocket endpoint.
func Mux(fabric *broadcast.Fabric) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/ws/board", serveJSONTopic(fabric.Board, func(b boardgame.Board) any { return boardToWire(b) }))
	mux.HandleFunc("/ws/raw-board", serveJSONTopic(fabric.RawBoard, func(rb broadcast.RawBoard) any { return rawBoardToWire(rb) }))
	mux.HandleFunc("/ws/game", serveJSONTopic(fabric.Game, func(m boardgame.PlayerMove) any {
		wire, err := moveToWire(m)
		if err != nil {
			return nil
		}
		return wire
	}))
	mux.HandleFunc("/ws/board-camera", serveBinaryTopic(fabric.BoardCamera))
	mux.HandleFunc("/ws/camera", serveBinaryTopic(fabric.RawCamera))
	mux.HandleFunc("/ws/display", serveBinaryTopic(fabric.Display))
	mux.HandleFunc("/ws/control", serveControl(fabric.Control))

	return mux
}

// serveJSONTopic builds a handler that streams topic's published values
// to the client as JSON text messages, encoded by toWire. It never reads
// from the client beyond what's needed to notice a close (:
// every path but /ws/control is server-to-client only).
func serveJSONTopic[T any](topic *broadcast.Topic[T], toWire func(T) any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, ok := accept(w, r)
		if !ok {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")
		ctx := conn.CloseRead(r.Context())

		wake, unsub := topic.Subscribe()
		defer unsub()

		if !pushOnce(ctx, conn, topic, toWire) {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-wake:
				if !pushOnce(ctx, conn, topic, toWire) {
					return
				}
			}
		}
	}
}

func pushOnce[T any](ctx context.Context, conn *websocket.Conn, topic *broadcast.Topic[T], toWire func(T) any) bool {
	v, ok := topic.Latest()
	if !ok {
		return true
	}
	payload, err := json.Marshal(toWire(v))
	if err != nil {
		log.Error().Err(err).Msg("wsapi: encoding topic payload")
		return true
	}
	if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
		return false
	}
	return true
}

// serveBinaryTopic streams a camera.RawFrame topic as imagedata binary
// frames.
func serveBinaryTopic(topic *broadcast.Topic[camera.RawFrame]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, ok := accept(w, r)
		if !ok {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")
		ctx := conn.CloseRead(r.Context())

		wake, unsub := topic.Subscribe()
		defer unsub()

		push := func() bool {
			frame, ok := topic.Latest()
			if !ok {
				return true
			}
			return conn.Write(ctx, websocket.MessageBinary, EncodeImagedata(frame)) == nil
		}

		if !push() {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-wake:
				if !push() {
					return
				}
			}
		}
	}
}

// serveControl implements the exclusive, client-to-server /ws/control
// endpoint: a second concurrent connection is rejected with a policy
// violation close.
func serveControl(control *broadcast.ControlChannel[gameengine.Command]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, ok := accept(w, r)
		if !ok {
			return
		}

		release, err := control.Acquire()
		if err != nil {
			conn.Close(websocket.StatusPolicyViolation, "control channel already in use")
			return
		}
		defer release()
		defer conn.Close(websocket.StatusNormalClosure, "")

		ctx := r.Context()
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			cmd, err := decodeCommand(data)
			if err != nil {
				log.Warn().Err(err).Msg("wsapi: rejecting malformed control command")
				continue
			}
			control.Send(cmd)
		}
	}
}

func accept(w http.ResponseWriter, r *http.Request) (*websocket.Conn, bool) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("wsapi: accepting websocket connection")
		return nil, false
	}
	return conn, true
}
