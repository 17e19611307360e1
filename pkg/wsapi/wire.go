package wsapi

import (
	"encoding/json"
	"fmt"

	"github.com/intothevoid/saigo/pkg/boardgame"
	"github.com/intothevoid/saigo/pkg/broadcast"
	"github.com/intothevoid/saigo/pkg/gameengine"
)

// boardToWire renders a Board as the JSON 2D array of glyphs §6.2 wants
// for /ws/board.
func boardToWire(b boardgame.Board) [][]string {
	return b.Grid()
}

// rawCellWire is one intersection's (empty, black, white, obscured)
// tuple on /ws/raw-board.
type rawCellWire [4]float32

func rawBoardToWire(rb broadcast.RawBoard) [][]rawCellWire {
	out := make([][]rawCellWire, rb.Shape.Height)
	for y := 0; y < rb.Shape.Height; y++ {
		row := make([]rawCellWire, rb.Shape.Width)
		for x := 0; x < rb.Shape.Width; x++ {
			row[x] = rawCellWire(rb.Cells[rb.Shape.Index(x, y)])
		}
		out[y] = row
	}
	return out
}

// moveWire is the JSON shape of a PlayerMove on /ws/game, and of the
// move field inside an inbound play_move control command.
type moveWire struct {
	Type     string `json:"type"`
	Location string `json:"location,omitempty"`
	Player   string `json:"player"`
}

func moveToWire(m boardgame.PlayerMove) (moveWire, error) {
	player := m.Player.String()
	switch m.Kind {
	case boardgame.MoveKindPlay:
		loc, err := boardgame.EncodeSgfPoint(m.Location)
		if err != nil {
			return moveWire{}, err
		}
		return moveWire{Type: "move", Location: loc, Player: player}, nil
	case boardgame.MoveKindPass:
		return moveWire{Type: "pass", Player: player}, nil
	case boardgame.MoveKindResign:
		return moveWire{Type: "resign", Player: player}, nil
	default:
		return moveWire{}, fmt.Errorf("wsapi: unknown move kind %v", m.Kind)
	}
}

func moveFromWire(w moveWire) (boardgame.PlayerMove, error) {
	player, err := boardgame.ParseColor(w.Player)
	if err != nil {
		return boardgame.PlayerMove{}, err
	}
	switch w.Type {
	case "move":
		loc, err := boardgame.DecodeSgfPoint(w.Location)
		if err != nil {
			return boardgame.PlayerMove{}, err
		}
		return boardgame.Move(loc, player), nil
	case "pass":
		return boardgame.Pass(player), nil
	case "resign":
		return boardgame.Resign(player), nil
	default:
		return boardgame.PlayerMove{}, fmt.Errorf("wsapi: unknown move type %q", w.Type)
	}
}

// commandWire is the JSON shape of an inbound /ws/control message.
type commandWire struct {
	Type      string    `json:"type"`
	UserColor string    `json:"user_color,omitempty"`
	Move      *moveWire `json:"move,omitempty"`
}

func decodeCommand(data []byte) (gameengine.Command, error) {
	var w commandWire
	if err := json.Unmarshal(data, &w); err != nil {
		return gameengine.Command{}, err
	}

	cmd := gameengine.Command{Type: w.Type}
	switch w.Type {
	case "reset", "new_training_pattern":
		return cmd, nil
	case "new_game":
		color, err := boardgame.ParseColor(w.UserColor)
		if err != nil {
			return gameengine.Command{}, err
		}
		cmd.UserColor = color
		return cmd, nil
	case "play_move":
		if w.Move == nil {
			return gameengine.Command{}, fmt.Errorf("wsapi: play_move missing move field")
		}
		move, err := moveFromWire(*w.Move)
		if err != nil {
			return gameengine.Command{}, err
		}
		cmd.Move = move
		return cmd, nil
	default:
		return gameengine.Command{}, fmt.Errorf("wsapi: unknown command type %q", w.Type)
	}
}
