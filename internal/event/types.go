package event

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

const (
	EventGrabStarted        = "grab.started"
	EventGrabReleased       = "grab.released"
	EventAnimation          = "gravitygun.animation"
	EventBlockStatesChanged = "entity.block_states"
	EventEntitySpawned      = "entity.spawned"
	EventEntityRemoved      = "entity.removed"
)

type Animation int

const (
	AnimationExtend Animation = iota
	AnimationRetract
)

func (a Animation) String() string {
	switch a {
	case AnimationExtend:
		return "extend"
	case AnimationRetract:
		return "retract"
	default:
		return "unknown"
	}
}

// AnimationEvent is the only thing the gravity gun hands to animation and
// network replication.
type AnimationEvent struct {
	Actor     uuid.UUID
	StackID   int64
	Animation Animation
}

type GrabEvent struct {
	Actor  uuid.UUID
	Target string
	// Forced is set when the session ended through ForceRelease.
	Forced   bool
	Velocity mgl64.Vec3
}

type BlockStatesEvent struct {
	EntityID int32
	States   []int32
	Encoded  []byte
}

type EntityEvent struct {
	EntityID int32
	Kind     string
}
