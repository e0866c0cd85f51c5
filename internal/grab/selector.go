package grab

import (
	"log/slog"
	"time"

	"github.com/LeoCTH/gravity-guns/internal/entity"
	"github.com/LeoCTH/gravity-guns/internal/world"
)

// HeldIndex answers whether a target is currently held. *Manager
// implements it.
type HeldIndex interface {
	IsBeingGrabbed(key TargetKey) bool
}

type SelectorConfig struct {
	World   *world.World
	Held    HeldIndex
	Tracker *entity.Tracker
	// BlockEntityLifetime is handed to block entities built from selected
	// blocks.
	BlockEntityLifetime time.Duration
}

// Selector picks what an actor's ray points at. It never mutates the world.
type Selector struct {
	cfg SelectorConfig
	log *slog.Logger
}

func NewSelector(cfg SelectorConfig) *Selector {
	return &Selector{cfg: cfg, log: slog.Default().With("component", "selector")}
}

// SelectGrabbable casts a ray from the actor's eye along its look vector.
// Physical entities within maxEntityReach win; otherwise the first block
// within maxBlockReach that blockPower can lift becomes a pending
// BlockGrabbable.
func (s *Selector) SelectGrabbable(actor Actor, maxEntityReach, maxBlockReach, blockPower float64) (Grabbable, bool) {
	w := s.cfg.World
	eye := actor.EyePosition()
	look := actor.LookVector()
	self := actor.UUID()

	hit, ok := w.RaycastEntities(eye, look, maxEntityReach, func(e *world.Entity) bool {
		if e.UUID == self || e.Body() == nil {
			return true
		}
		return s.held(EntityKey(e.ID))
	})
	if ok {
		if s.cfg.Tracker != nil {
			if be, found := s.cfg.Tracker.Get(hit.Entity.ID); found {
				return NewBlockGrabbable(be), true
			}
		}
		return NewEntityGrabbable(w, hit.Entity), true
	}

	block, ok := w.RaycastBlocks(eye, look, maxBlockReach, func(h world.BlockHit) bool {
		return h.State.Grabbable(blockPower) && !s.held(BlockKey(h.Pos))
	})
	if !ok {
		s.log.Debug("Nothing selected", "actor", self, "error", ErrNoTarget)
		return nil, false
	}

	states, err := entity.NewCompactBlockStates(block.State.ID)
	if err != nil {
		return nil, false
	}
	be := entity.Prepare(w, block.Pos, states, entity.Options{
		Lifetime: s.cfg.BlockEntityLifetime,
		Tracker:  s.cfg.Tracker,
	})
	return NewBlockGrabbable(be), true
}

func (s *Selector) held(key TargetKey) bool {
	return s.cfg.Held != nil && s.cfg.Held.IsBeingGrabbed(key)
}
