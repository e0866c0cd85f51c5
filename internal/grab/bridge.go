package grab

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/LeoCTH/gravity-guns/internal/physics"
)

// Mutation is a change to a rigid body applied on the physics goroutine.
type Mutation interface {
	Apply(tx *physics.Tx, body *physics.RigidBody)
	String() string
}

type ApplyCentralForce struct {
	Force mgl64.Vec3
}

func (m ApplyCentralForce) Apply(tx *physics.Tx, body *physics.RigidBody) {
	tx.ApplyCentralForce(body, m.Force)
}

func (m ApplyCentralForce) String() string {
	return fmt.Sprintf("apply_central_force(%.3f, %.3f, %.3f)", m.Force[0], m.Force[1], m.Force[2])
}

type SetLinearVelocity struct {
	Velocity mgl64.Vec3
}

func (m SetLinearVelocity) Apply(tx *physics.Tx, body *physics.RigidBody) {
	tx.SetLinearVelocity(body, m.Velocity)
}

func (m SetLinearVelocity) String() string {
	return fmt.Sprintf("set_linear_velocity(%.3f, %.3f, %.3f)", m.Velocity[0], m.Velocity[1], m.Velocity[2])
}

// Bridge hands body mutations to the physics goroutine. Submit never blocks
// and preserves submission order.
type Bridge interface {
	Submit(body *physics.RigidBody, m Mutation) error
}

// PhysicsBridge submits through a physics space's task queue. Mutations of
// bodies that have left the space are dropped when they run.
type PhysicsBridge struct {
	space *physics.Space
}

func NewPhysicsBridge(space *physics.Space) *PhysicsBridge {
	return &PhysicsBridge{space: space}
}

func (b *PhysicsBridge) Submit(body *physics.RigidBody, m Mutation) error {
	if body == nil || m == nil {
		return nil
	}
	return b.space.Execute(func(tx *physics.Tx) {
		m.Apply(tx, body)
	})
}
