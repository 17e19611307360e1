package broadcast

import (
	"github.com/intothevoid/saigo/pkg/boardgame"
	"github.com/intothevoid/saigo/pkg/camera"
	"github.com/intothevoid/saigo/pkg/gameengine"
	"github.com/intothevoid/saigo/pkg/vision"
)

// RawBoard is the wire shape of the raw-board topic: one RawCellPrediction
// per intersection, row-major.
type RawBoard struct {
	Shape boardgame.BoardShape
	Cells []vision.RawCellPrediction
}

// Fabric owns every named topic the pipeline publishes to and the
// scheduler reads from.
type Fabric struct {
	RawCamera   *Topic[camera.RawFrame]
	BoardCamera *Topic[camera.RawFrame]
	RawBoard    *Topic[RawBoard]
	Board       *Topic[boardgame.Board]
	Game        *Topic[boardgame.PlayerMove]
	Display     *Topic[camera.RawFrame]
	Control     *ControlChannel[gameengine.Command]
}

// NewFabric constructs a Fabric with every topic ready to publish to and
// subscribe from. controlBuffer sizes the inbound control-command queue.
func NewFabric(controlBuffer int) *Fabric {
	return &Fabric{
		RawCamera:   NewTopic[camera.RawFrame](),
		BoardCamera: NewTopic[camera.RawFrame](),
		RawBoard:    NewTopic[RawBoard](),
		Board:       NewTopic[boardgame.Board](),
		Game:        NewTopic[boardgame.PlayerMove](),
		Display:     NewTopic[camera.RawFrame](),
		Control:     NewControlChannel[gameengine.Command](controlBuffer),
	}
}
