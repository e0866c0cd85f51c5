package entity

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/LeoCTH/gravity-guns/internal/event"
	"github.com/LeoCTH/gravity-guns/internal/physics"
	"github.com/LeoCTH/gravity-guns/internal/world"
)

const (
	BlockEntityMass   = 5.0
	BlockEntityDrag   = 5e-4
	BlockEntityWidth  = 1.0
	BlockEntityHeight = 1.0
)

// LiftForce is applied to every live block entity each step. It roughly
// cancels gravity for the 5 kg body so held blocks do not sag.
var LiftForce = mgl64.Vec3{0, 9, 0}

var (
	ErrBlockChanged   = errors.New("source block changed since selection")
	ErrAlreadySpawned = errors.New("block entity already spawned")
	ErrNoSpace        = errors.New("world has no physics space")
)

// BlockEntity is a world block lifted out of the grid and simulated as a
// rigid unit cube.
type BlockEntity struct {
	world    *world.World
	tracker  *Tracker
	source   world.BlockPos
	states   CompactBlockStates
	body     *physics.RigidBody
	lifetime time.Duration

	spawnMu sync.Mutex

	mu          sync.Mutex
	entity      *world.Entity
	removeStep  func()
	held        bool
	freeSeconds float64
	killed      atomic.Bool
	log         *slog.Logger
}

type Options struct {
	// Lifetime is how long a released block entity stays in the world.
	// Zero keeps it until killed.
	Lifetime time.Duration
	Tracker  *Tracker
}

// Prepare builds a block entity for the block at pos without touching the
// world. It starts out held.
func Prepare(w *world.World, pos world.BlockPos, states CompactBlockStates, opts Options) *BlockEntity {
	center := pos.Center().Add(mgl64.Vec3{0, (1 - BlockEntityHeight) / 2, 0})
	half := mgl64.Vec3{BlockEntityWidth / 2, BlockEntityHeight / 2, BlockEntityWidth / 2}
	body := physics.NewRigidBody(center, half, BlockEntityMass)
	body.SetDragCoefficient(BlockEntityDrag)
	return &BlockEntity{
		world:    w,
		tracker:  opts.Tracker,
		source:   pos,
		states:   states,
		body:     body,
		lifetime: opts.Lifetime,
		held:     true,
		log:      slog.Default().With("component", "block_entity"),
	}
}

func (b *BlockEntity) Source() world.BlockPos { return b.source }

func (b *BlockEntity) States() CompactBlockStates { return b.states }

func (b *BlockEntity) Body() *physics.RigidBody { return b.body }

// Entity returns the world record, or nil before Spawn.
func (b *BlockEntity) Entity() *world.Entity {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.entity
}

func (b *BlockEntity) Spawned() bool { return b.Entity() != nil }

func (b *BlockEntity) Alive() bool { return b.Spawned() && !b.killed.Load() }

func (b *BlockEntity) Position() mgl64.Vec3 { return b.body.Position() }

// Spawn clears the source block and puts the entity into the world. The
// block must still hold the first carried state.
func (b *BlockEntity) Spawn(actor string) error {
	b.spawnMu.Lock()
	defer b.spawnMu.Unlock()
	if b.Spawned() || b.killed.Load() {
		return ErrAlreadySpawned
	}
	space := b.world.Space()
	if space == nil {
		return ErrNoSpace
	}

	current, ok := b.world.BlockState(b.source)
	if !ok || current.ID != b.states.First() {
		return fmt.Errorf("%w at %s", ErrBlockChanged, b.source)
	}
	if _, err := b.world.ClearBlock(b.source, actor, "gravity_gun"); err != nil {
		return err
	}

	e := b.world.SpawnEntity(world.KindBlockEntity, b.body.Position(), BlockEntityWidth, BlockEntityHeight, b.body)
	b.mu.Lock()
	b.entity = e
	b.mu.Unlock()
	if b.tracker != nil {
		b.tracker.add(e.ID, b)
	}
	remove := space.AddStepper(b)
	b.mu.Lock()
	if b.killed.Load() {
		b.mu.Unlock()
		remove()
	} else {
		b.removeStep = remove
		b.mu.Unlock()
	}

	b.world.Audit(world.AuditEntry{
		Actor:    actor,
		Action:   world.AuditSpawnBlockEntity,
		Pos:      b.source.Array(),
		From:     b.states.First(),
		EntityID: e.ID,
	})
	if bus := b.world.Bus(); bus != nil {
		bus.Publish(event.EventBlockStatesChanged, event.BlockStatesEvent{
			EntityID: e.ID,
			States:   b.states.States(),
			Encoded:  b.states.Encode(),
		})
	}
	b.log.Debug("Block entity spawned", "entity", e.ID, "source", b.source.String())
	return nil
}

// Hold stops the lifetime clock while an actor holds the entity.
func (b *BlockEntity) Hold() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.held = true
	b.freeSeconds = 0
}

// Release hands the entity over to free flight.
func (b *BlockEntity) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.held = false
	b.freeSeconds = 0
}

func (b *BlockEntity) Held() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.held
}

// Step runs on the physics goroutine.
func (b *BlockEntity) Step(tx *physics.Tx) {
	if b.killed.Load() {
		return
	}
	tx.ApplyCentralForce(b.body, LiftForce)

	b.mu.Lock()
	expired := false
	if !b.held && b.lifetime > 0 {
		b.freeSeconds += tx.Dt()
		expired = b.freeSeconds >= b.lifetime.Seconds()
	}
	b.mu.Unlock()

	if expired {
		b.Kill()
	}
}

// Kill removes the body and the world record. It is safe to call more than
// once and before Spawn.
func (b *BlockEntity) Kill() {
	if !b.killed.CompareAndSwap(false, true) {
		return
	}
	b.mu.Lock()
	entity := b.entity
	removeStep := b.removeStep
	b.removeStep = nil
	b.mu.Unlock()

	if removeStep != nil {
		removeStep()
	}
	if entity == nil {
		return
	}
	if b.tracker != nil {
		b.tracker.remove(entity.ID)
	}
	b.world.RemoveEntity(entity.ID)
	b.world.Audit(world.AuditEntry{
		Action:   world.AuditDespawnBlockEntity,
		Pos:      world.BlockPosOf(b.body.Position()).Array(),
		From:     b.states.First(),
		EntityID: entity.ID,
	})
	b.log.Debug("Block entity removed", "entity", entity.ID)
}

// Tracker maps entity ids to live block entities.
type Tracker struct {
	byID sync.Map // int32 -> *BlockEntity
}

func NewTracker() *Tracker { return &Tracker{} }

func (t *Tracker) Get(id int32) (*BlockEntity, bool) {
	v, ok := t.byID.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*BlockEntity), true
}

func (t *Tracker) Len() int {
	n := 0
	t.byID.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func (t *Tracker) add(id int32, b *BlockEntity) { t.byID.Store(id, b) }

func (t *Tracker) remove(id int32) { t.byID.Delete(id) }
