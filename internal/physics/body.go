package physics

import (
	"math"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
)

type BodyID uint64

// RigidBody is an axis-aligned box simulated by a Space. Reads are safe from
// any goroutine; writes to velocity, force or location after the body joined
// a space go through a Tx.
type RigidBody struct {
	mu sync.RWMutex

	id          BodyID
	space       *Space
	position    mgl64.Vec3
	velocity    mgl64.Vec3
	force       mgl64.Vec3
	halfExtents mgl64.Vec3
	mass        float64
	drag        float64
	onGround    bool
}

func NewRigidBody(position, halfExtents mgl64.Vec3, mass float64) *RigidBody {
	if mass <= 0 {
		mass = DefaultMass
	}
	return &RigidBody{
		position:    position,
		halfExtents: halfExtents,
		mass:        mass,
	}
}

func (b *RigidBody) ID() BodyID {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.id
}

func (b *RigidBody) Position() mgl64.Vec3 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.position
}

func (b *RigidBody) Velocity() mgl64.Vec3 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.velocity
}

func (b *RigidBody) Mass() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.mass
}

func (b *RigidBody) DragCoefficient() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.drag
}

func (b *RigidBody) HalfExtents() mgl64.Vec3 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.halfExtents
}

func (b *RigidBody) Bounds() AABB {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return BoxAround(b.position, b.halfExtents)
}

func (b *RigidBody) OnGround() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.onGround
}

// InSpace reports whether the body is currently simulated by s.
func (b *RigidBody) InSpace(s *Space) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return s != nil && b.space == s
}

// SetMass, SetDragCoefficient and SetPosition configure a body before it is
// added to a space.
func (b *RigidBody) SetMass(mass float64) {
	b.configure(func() {
		if mass > 0 {
			b.mass = mass
		}
	})
}

func (b *RigidBody) SetDragCoefficient(drag float64) {
	b.configure(func() { b.drag = math.Max(drag, 0) })
}

func (b *RigidBody) SetPosition(pos mgl64.Vec3) {
	b.configure(func() { b.position = pos })
}

func (b *RigidBody) configure(apply func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.space != nil {
		panic(ErrInvalidContext)
	}
	apply()
}

// integrate advances the body by dt. Caller holds no body lock.
func (b *RigidBody) integrate(gravity mgl64.Vec3, dt float64, blocks BlockStore) {
	b.mu.Lock()
	defer b.mu.Unlock()
	accel := gravity.Add(b.force.Mul(1 / b.mass))
	b.velocity = b.velocity.Add(accel.Mul(dt))
	if speed := b.velocity.Len(); b.drag > 0 && speed > 0 {
		// Quadratic drag, limited so it can at most stop the body.
		loss := math.Min(b.drag*speed*speed/b.mass*dt, speed)
		b.velocity = b.velocity.Mul((speed - loss) / speed)
	}

	moved, blocked := ResolveMovement(BoxAround(b.position, b.halfExtents), b.velocity.Mul(dt), blocks)
	b.position = b.position.Add(moved)
	b.onGround = blocked[1] && b.velocity[1] < 0
	for axis, hit := range blocked {
		if hit {
			b.velocity[axis] = 0
		}
	}
	zeroResidualVelocity(&b.velocity)
	b.force = mgl64.Vec3{}
}

func zeroResidualVelocity(v *mgl64.Vec3) {
	if v == nil {
		return
	}
	if math.Abs(v[0]) < MinimumResidualHorizontalSpeed {
		v[0] = 0
	}
	if math.Abs(v[2]) < MinimumResidualHorizontalSpeed {
		v[2] = 0
	}
	if math.Abs(v[1]) < MinimumResidualVerticalSpeed {
		v[1] = 0
	}
}
