package grab

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/LeoCTH/gravity-guns/internal/entity"
	"github.com/LeoCTH/gravity-guns/internal/physics"
	"github.com/LeoCTH/gravity-guns/internal/world"
)

// TargetKey identifies what is held: an entity id or a block position.
type TargetKey string

func EntityKey(id int32) TargetKey { return TargetKey(fmt.Sprintf("entity:%d", id)) }

func BlockKey(pos world.BlockPos) TargetKey {
	return TargetKey(fmt.Sprintf("block:%d,%d,%d", pos.X, pos.Y, pos.Z))
}

// Grabbable is anything a gravity gun can hold.
type Grabbable interface {
	Key() TargetKey
	Position() mgl64.Vec3
	Body() *physics.RigidBody
	// Valid reports whether the target still has a live body in the world.
	Valid() bool
	Kill()
}

// Pending targets only enter the world when a grab commits.
type Pending interface {
	Commit(actor string) error
}

// FreeFlight targets are told when a hold starts and ends.
type FreeFlight interface {
	Hold()
	Release()
}

type EntityGrabbable struct {
	world  *world.World
	entity *world.Entity
}

func NewEntityGrabbable(w *world.World, e *world.Entity) *EntityGrabbable {
	return &EntityGrabbable{world: w, entity: e}
}

func (g *EntityGrabbable) Entity() *world.Entity { return g.entity }

func (g *EntityGrabbable) Key() TargetKey { return EntityKey(g.entity.ID) }

func (g *EntityGrabbable) Position() mgl64.Vec3 { return g.entity.Position() }

func (g *EntityGrabbable) Body() *physics.RigidBody { return g.entity.Body() }

func (g *EntityGrabbable) Valid() bool {
	body := g.entity.Body()
	if body == nil || !g.entity.Alive() {
		return false
	}
	space := g.world.Space()
	return space == nil || space.Contains(body)
}

func (g *EntityGrabbable) Kill() { g.world.RemoveEntity(g.entity.ID) }

// BlockGrabbable wraps a block entity. Before Commit it only describes the
// block the selector found; the world is untouched.
type BlockGrabbable struct {
	be *entity.BlockEntity
}

func NewBlockGrabbable(be *entity.BlockEntity) *BlockGrabbable {
	return &BlockGrabbable{be: be}
}

func (g *BlockGrabbable) BlockEntity() *entity.BlockEntity { return g.be }

// Key is the source block until the entity is spawned, then the entity id.
func (g *BlockGrabbable) Key() TargetKey {
	if e := g.be.Entity(); e != nil {
		return EntityKey(e.ID)
	}
	return BlockKey(g.be.Source())
}

func (g *BlockGrabbable) Position() mgl64.Vec3 { return g.be.Position() }

func (g *BlockGrabbable) Body() *physics.RigidBody { return g.be.Body() }

func (g *BlockGrabbable) Valid() bool { return g.be.Alive() }

func (g *BlockGrabbable) Kill() { g.be.Kill() }

func (g *BlockGrabbable) Commit(actor string) error {
	if g.be.Spawned() {
		return nil
	}
	return g.be.Spawn(actor)
}

func (g *BlockGrabbable) Hold() { g.be.Hold() }

func (g *BlockGrabbable) Release() { g.be.Release() }
