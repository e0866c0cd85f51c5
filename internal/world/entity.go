package world

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"

	"github.com/LeoCTH/gravity-guns/internal/physics"
)

const (
	KindPlayer      = "player"
	KindBlockEntity = "block_entity"
	KindCrate       = "crate"
)

type BlockPos struct {
	X, Y, Z int
}

// BlockPosOf returns the block containing p.
func BlockPosOf(p mgl64.Vec3) BlockPos {
	return BlockPos{
		X: int(math.Floor(p.X())),
		Y: int(math.Floor(p.Y())),
		Z: int(math.Floor(p.Z())),
	}
}

func (p BlockPos) Center() mgl64.Vec3 {
	return mgl64.Vec3{float64(p.X) + 0.5, float64(p.Y) + 0.5, float64(p.Z) + 0.5}
}

func (p BlockPos) Array() [3]int { return [3]int{p.X, p.Y, p.Z} }

func (p BlockPos) String() string {
	return fmt.Sprintf("(%d,%d,%d)", p.X, p.Y, p.Z)
}

// Entity is a world record. Physical entities own a rigid body; their
// position is the body's centre.
type Entity struct {
	ID     int32
	UUID   uuid.UUID
	Kind   string
	Width  float64
	Height float64

	body    *physics.RigidBody
	mu      sync.RWMutex
	pos     mgl64.Vec3
	removed atomic.Bool
}

func (e *Entity) Body() *physics.RigidBody { return e.body }

func (e *Entity) Position() mgl64.Vec3 {
	if e.body != nil {
		return e.body.Position()
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.pos
}

// SetPosition moves an entity without a body. Physical entities move
// through the physics space only.
func (e *Entity) SetPosition(p mgl64.Vec3) {
	if e.body != nil {
		return
	}
	e.mu.Lock()
	e.pos = p
	e.mu.Unlock()
}

func (e *Entity) Bounds() physics.AABB {
	if e.body != nil {
		return e.body.Bounds()
	}
	half := mgl64.Vec3{e.Width / 2, e.Height / 2, e.Width / 2}
	return physics.BoxAround(e.Position(), half)
}

func (e *Entity) Alive() bool { return !e.removed.Load() }
