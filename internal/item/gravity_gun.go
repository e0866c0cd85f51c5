package item

import (
	"fmt"
	"log/slog"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/LeoCTH/gravity-guns/internal/event"
	"github.com/LeoCTH/gravity-guns/internal/grab"
	"github.com/LeoCTH/gravity-guns/internal/physics"
	"github.com/LeoCTH/gravity-guns/internal/world"
)

const (
	// MaxUseTime is how many ticks the trigger can be held.
	MaxUseTime = 20000
	// FullChargeTicks is how long the trigger must be held for a full
	// strength launch.
	FullChargeTicks = 20
	// MinCharge is the launch fraction of an instant release.
	MinCharge = 0.2
)

type UseResult int

const (
	ResultPass UseResult = iota
	ResultConsume
	ResultFail
)

func (r UseResult) String() string {
	switch r {
	case ResultPass:
		return "pass"
	case ResultConsume:
		return "consume"
	case ResultFail:
		return "fail"
	default:
		return "unknown"
	}
}

type Config struct {
	EntityReachDistance float64
	BlockReachDistance  float64
}

type GravityGun struct {
	cfg      Config
	world    *world.World
	selector *grab.Selector
	manager  *grab.Manager
	bus      *event.Bus
	log      *slog.Logger
}

func NewGravityGunItem(cfg Config, w *world.World, selector *grab.Selector, manager *grab.Manager, bus *event.Bus) *GravityGun {
	return &GravityGun{
		cfg:      cfg,
		world:    w,
		selector: selector,
		manager:  manager,
		bus:      bus,
		log:      slog.Default().With("component", "gravity_gun"),
	}
}

// Use is called when the trigger is pressed. On an authoritative world an
// idle actor tries to grab whatever it aims at.
func (g *GravityGun) Use(actor grab.Actor, stack *ItemStack) UseResult {
	if stack == nil || stack.Item != GravityGunID || !g.world.Authoritative() {
		return ResultPass
	}
	if g.manager.IsPlayerGrabbing(actor.UUID()) {
		return ResultPass
	}

	target, ok := g.selector.SelectGrabbable(actor, g.cfg.EntityReachDistance, g.cfg.BlockReachDistance, stack.Power())
	if !ok {
		return ResultFail
	}
	if !g.manager.TryGrab(actor, target) {
		return ResultFail
	}
	g.SyncAnimation(actor, stack, event.AnimationExtend)
	return ResultConsume
}

// StoppedUsing is called when the trigger is released with
// remainingUseTicks of MaxUseTime left.
func (g *GravityGun) StoppedUsing(actor grab.Actor, stack *ItemStack, remainingUseTicks int) {
	if stack == nil || stack.Item != GravityGunID || !g.world.Authoritative() {
		return
	}
	if !g.manager.IsPlayerGrabbing(actor.UUID()) {
		return
	}
	strength := LaunchStrength(MaxUseTime - remainingUseTicks)
	if g.manager.TryUngrab(actor, strength) {
		g.SyncAnimation(actor, stack, event.AnimationRetract)
	}
}

// SyncAnimation tells observers to play anim for the stack. It panics on a
// world that does not own the simulation.
func (g *GravityGun) SyncAnimation(actor grab.Actor, stack *ItemStack, anim event.Animation) {
	if !g.world.Authoritative() {
		panic(fmt.Errorf("sync animation %s on a client world: %w", anim, physics.ErrInvalidContext))
	}
	evt := event.AnimationEvent{Actor: actor.UUID(), StackID: stack.ID(), Animation: anim}
	g.log.Debug("Animation sync", "actor", evt.Actor, "stack", evt.StackID, "animation", anim)
	if g.bus != nil {
		g.bus.Publish(event.EventAnimation, evt)
	}
}

// LaunchStrength maps how long the trigger was held to a launch strength.
// A full charge gives grab.DefaultLaunchStrength.
func LaunchStrength(heldTicks int) float64 {
	charge := mgl64.Clamp(float64(heldTicks)/FullChargeTicks, MinCharge, 1)
	return grab.DefaultLaunchStrength * charge
}
