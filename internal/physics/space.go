package physics

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

// Stepper is invoked on the physics goroutine once per step, between the two
// task drains.
type Stepper interface {
	Step(tx *Tx)
}

type StepperFunc func(tx *Tx)

func (f StepperFunc) Step(tx *Tx) { f(tx) }

type SpaceConfig struct {
	Gravity   float64
	QueueSize int
	Blocks    BlockStore
}

// Space owns every rigid body added to it. Body state only changes inside
// Step, which runs on whichever goroutine drives the space (normally Run).
// Other goroutines hand work over with Execute.
type Space struct {
	gravity mgl64.Vec3
	blocks  BlockStore
	queue   chan func(tx *Tx)

	mu         sync.RWMutex
	bodies     map[BodyID]*RigidBody
	order      []BodyID
	steppers   map[uint64]Stepper
	stepperSeq []uint64

	stepMu sync.Mutex
	nextID atomic.Uint64
	tick   atomic.Uint64
	log    *slog.Logger
}

func NewSpace(cfg SpaceConfig) *Space {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	return &Space{
		gravity:  mgl64.Vec3{0, cfg.Gravity, 0},
		blocks:   cfg.Blocks,
		queue:    make(chan func(tx *Tx), cfg.QueueSize),
		bodies:   make(map[BodyID]*RigidBody),
		steppers: make(map[uint64]Stepper),
		log:      slog.Default().With("component", "physics"),
	}
}

func (s *Space) Tick() uint64 { return s.tick.Load() }

func (s *Space) Gravity() mgl64.Vec3 { return s.gravity }

// Execute queues task to run on the physics goroutine at the next drain.
// Tasks run in submission order. It never blocks: a full queue is reported
// as ErrQueueFull.
func (s *Space) Execute(task func(tx *Tx)) error {
	if task == nil {
		return nil
	}
	select {
	case s.queue <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// Pending returns the number of queued tasks.
func (s *Space) Pending() int { return len(s.queue) }

func (s *Space) AddBody(b *RigidBody) BodyID {
	b.mu.Lock()
	if b.space == s {
		id := b.id
		b.mu.Unlock()
		return id
	}
	b.id = BodyID(s.nextID.Add(1))
	b.space = s
	id := b.id
	b.mu.Unlock()

	s.mu.Lock()
	s.bodies[id] = b
	s.order = append(s.order, id)
	s.mu.Unlock()
	return id
}

// RemoveBody detaches b. Removing an unknown or already removed body is a
// no-op and reports false.
func (s *Space) RemoveBody(b *RigidBody) bool {
	if b == nil {
		return false
	}
	b.mu.Lock()
	if b.space != s {
		b.mu.Unlock()
		return false
	}
	id := b.id
	b.space = nil
	b.velocity = mgl64.Vec3{}
	b.force = mgl64.Vec3{}
	b.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.bodies, id)
	for i, other := range s.order {
		if other == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

func (s *Space) Contains(b *RigidBody) bool {
	return b != nil && b.InSpace(s)
}

func (s *Space) BodyCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bodies)
}

// AddStepper registers st and returns a func that unregisters it.
func (s *Space) AddStepper(st Stepper) (remove func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID.Add(1)
	s.steppers[id] = st
	s.stepperSeq = append(s.stepperSeq, id)
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.steppers, id)
		for i, other := range s.stepperSeq {
			if other == id {
				s.stepperSeq = append(s.stepperSeq[:i], s.stepperSeq[i+1:]...)
				break
			}
		}
	}
}

// Step advances the simulation by dt seconds: queued tasks, steppers, tasks
// queued by the steppers, then integration.
func (s *Space) Step(dt float64) {
	s.stepMu.Lock()
	defer s.stepMu.Unlock()

	tx := &Tx{space: s, tick: s.tick.Add(1), dt: dt}
	defer tx.closed.Store(true)

	s.drain(tx)
	for _, st := range s.stepperSnapshot() {
		s.runSafely(func() { st.Step(tx) })
	}
	s.drain(tx)

	for _, b := range s.bodySnapshot() {
		b.integrate(s.gravity, dt, s.blocks)
	}
}

// Run steps the space at hz until ctx is cancelled.
func (s *Space) Run(ctx context.Context, hz int) error {
	if hz <= 0 {
		return fmt.Errorf("physics tick rate must be > 0, got %d", hz)
	}
	interval := time.Second / time.Duration(hz)
	dt := interval.Seconds()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Info("Physics loop started", "hz", hz)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("Physics loop stopped", "tick", s.Tick())
			return nil
		case <-ticker.C:
			s.Step(dt)
		}
	}
}

func (s *Space) drain(tx *Tx) {
	for n := len(s.queue); n > 0; n-- {
		select {
		case task := <-s.queue:
			s.runSafely(func() { task(tx) })
		default:
			return
		}
	}
}

func (s *Space) runSafely(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("Physics task panicked", "tick", s.Tick(), "panic", r)
		}
	}()
	fn()
}

func (s *Space) stepperSnapshot() []Stepper {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Stepper, 0, len(s.stepperSeq))
	for _, id := range s.stepperSeq {
		out = append(out, s.steppers[id])
	}
	return out
}

func (s *Space) bodySnapshot() []*RigidBody {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*RigidBody, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.bodies[id])
	}
	return out
}

// Tx is the write handle of one physics step. It is only valid while that
// step runs; any use afterwards panics with ErrInvalidContext.
type Tx struct {
	space  *Space
	tick   uint64
	dt     float64
	closed atomic.Bool
}

func (tx *Tx) Tick() uint64 { return tx.tick }

func (tx *Tx) Dt() float64 { return tx.dt }

func (tx *Tx) Space() *Space { return tx.space }

// ApplyCentralForce accumulates f on b for the current step. Bodies that are
// no longer in the space are ignored.
func (tx *Tx) ApplyCentralForce(b *RigidBody, f mgl64.Vec3) {
	tx.mutate(b, func() { b.force = b.force.Add(f) })
}

func (tx *Tx) SetLinearVelocity(b *RigidBody, v mgl64.Vec3) {
	tx.mutate(b, func() { b.velocity = v })
}

func (tx *Tx) mutate(b *RigidBody, apply func()) {
	if tx == nil || tx.closed.Load() {
		panic(ErrInvalidContext)
	}
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.space != tx.space {
		return
	}
	apply()
}
