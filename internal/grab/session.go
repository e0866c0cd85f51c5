package grab

import (
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

// MinHoldDistance keeps held objects out of the actor's face.
const MinHoldDistance = 1.5

// Actor is whoever aims the gun.
type Actor interface {
	UUID() uuid.UUID
	EyePosition() mgl64.Vec3
	LookVector() mgl64.Vec3
}

// Session is one actor's hold on one target. Everything except the last
// pose is fixed when the grab starts.
type Session struct {
	Holder    uuid.UUID
	Actor     Actor
	Target    Grabbable
	Key       TargetKey
	StartedAt time.Time
	StartTick uint64

	// HoldDistance is how far along the look vector the target is held.
	HoldDistance float64
	// HoldOffset is the target's offset from the aim ray at grab time.
	HoldOffset mgl64.Vec3

	mu       sync.Mutex
	lastPose mgl64.Vec3
}

func newSession(actor Actor, target Grabbable, key TargetKey, now time.Time, tick uint64) *Session {
	eye := actor.EyePosition()
	look := actor.LookVector()
	pos := target.Position()

	rel := pos.Sub(eye)
	along := rel.Dot(look)
	offset := rel.Sub(look.Mul(along))
	distance := along
	if distance < MinHoldDistance {
		distance = MinHoldDistance
	}

	return &Session{
		Holder:       actor.UUID(),
		Actor:        actor,
		Target:       target,
		Key:          key,
		StartedAt:    now,
		StartTick:    tick,
		HoldDistance: distance,
		HoldOffset:   offset,
		lastPose:     pos,
	}
}

// HoldTarget is where the target should be given the actor's current aim.
func (s *Session) HoldTarget() mgl64.Vec3 {
	return s.Actor.EyePosition().
		Add(s.Actor.LookVector().Mul(s.HoldDistance)).
		Add(s.HoldOffset)
}

func (s *Session) LastPose() mgl64.Vec3 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastPose
}

func (s *Session) setPose(p mgl64.Vec3) {
	s.mu.Lock()
	s.lastPose = p
	s.mu.Unlock()
}

func (s *Session) HeldFor(now time.Time) time.Duration {
	return now.Sub(s.StartedAt)
}
