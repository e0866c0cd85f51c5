package grab

import (
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"

	"github.com/LeoCTH/gravity-guns/internal/event"
	"github.com/LeoCTH/gravity-guns/internal/physics"
)

const (
	// DefaultLaunchStrength releases at exactly the configured multiplier.
	DefaultLaunchStrength = 5.0

	DefaultLaunchInitialVelocityMultiplier = 2.0
	// DefaultHoldResponsiveness is the fraction of the remaining gap, per
	// second, the held body is asked to close. Each step is capped at the
	// whole gap so slow tick rates cannot overshoot.
	DefaultHoldResponsiveness = 10.0
	DefaultMaxHoldSpeed       = 20.0

	stripeCount = 64
)

type ManagerConfig struct {
	// LaunchInitialVelocityMultiplier is used as given; zero drops released
	// targets without throwing them.
	LaunchInitialVelocityMultiplier float64
	HoldResponsiveness              float64
	MaxHoldSpeed                    float64

	Bridge Bridge
	Bus    *event.Bus
	// Tick reports the current physics tick for new sessions. Optional.
	Tick func() uint64
	Now  func() time.Time
}

// Manager owns the actor -> session registry. Transitions for one actor are
// serialized on that actor's stripe; unrelated actors never share a lock
// except by stripe collision.
type Manager struct {
	cfg    ManagerConfig
	bridge Bridge
	bus    *event.Bus
	log    *slog.Logger

	stripes  [stripeCount]sync.Mutex
	sessions sync.Map // uuid.UUID -> *Session
	holders  sync.Map // TargetKey -> uuid.UUID
}

func NewManager(cfg ManagerConfig) *Manager {
	if cfg.HoldResponsiveness <= 0 {
		cfg.HoldResponsiveness = DefaultHoldResponsiveness
	}
	if cfg.MaxHoldSpeed <= 0 {
		cfg.MaxHoldSpeed = DefaultMaxHoldSpeed
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Manager{
		cfg:    cfg,
		bridge: cfg.Bridge,
		bus:    cfg.Bus,
		log:    slog.Default().With("component", "grab"),
	}
}

func (m *Manager) stripe(actor uuid.UUID) *sync.Mutex {
	h := uint32(actor[0]) | uint32(actor[7])<<8 | uint32(actor[15])<<16
	return &m.stripes[h%stripeCount]
}

// TryGrab starts a session for actor on target. It fails without side
// effects when the actor already holds something or the target is held by
// someone else. A pending block target is converted into an entity here.
func (m *Manager) TryGrab(actor Actor, target Grabbable) bool {
	if actor == nil || target == nil {
		return false
	}
	id := actor.UUID()
	key, ok := m.claim(actor, target)
	if !ok {
		return false
	}
	m.publish(event.EventGrabStarted, event.GrabEvent{Actor: id, Target: string(key)})
	return true
}

func (m *Manager) claim(actor Actor, target Grabbable) (TargetKey, bool) {
	id := actor.UUID()
	mu := m.stripe(id)
	mu.Lock()
	defer mu.Unlock()

	if _, ok := m.sessions.Load(id); ok {
		m.log.Debug("Grab rejected", "actor", id, "error", ErrAlreadyGrabbing)
		return "", false
	}

	key := target.Key()
	if holder, loaded := m.holders.LoadOrStore(key, id); loaded && holder.(uuid.UUID) != id {
		m.log.Debug("Grab rejected", "actor", id, "target", key, "holder", holder, "error", ErrTargetHeld)
		return "", false
	}

	// Commit spawns into the world, so its bus handlers run under this
	// stripe and must not call back into the manager.
	if p, ok := target.(Pending); ok {
		if err := p.Commit(id.String()); err != nil {
			m.holders.CompareAndDelete(key, id)
			m.log.Warn("Grab commit failed", "actor", id, "target", key, "error", err)
			return "", false
		}
		if committed := target.Key(); committed != key {
			m.holders.Store(committed, id)
			m.holders.CompareAndDelete(key, id)
			key = committed
		}
	}
	if !target.Valid() {
		m.holders.CompareAndDelete(key, id)
		m.log.Debug("Grab rejected", "actor", id, "target", key, "error", ErrTargetInvalid)
		return "", false
	}
	if f, ok := target.(FreeFlight); ok {
		f.Hold()
	}

	var tick uint64
	if m.cfg.Tick != nil {
		tick = m.cfg.Tick()
	}
	s := newSession(actor, target, key, m.cfg.Now(), tick)
	m.sessions.Store(id, s)

	m.log.Info("Grab started", "actor", id, "target", key, "hold_distance", s.HoldDistance)
	return key, true
}

func (m *Manager) IsPlayerGrabbing(actor uuid.UUID) bool {
	_, ok := m.sessions.Load(actor)
	return ok
}

// TryUngrab ends actor's session and launches the target along the actor's
// aim. launchStrength scales the configured multiplier relative to
// DefaultLaunchStrength.
func (m *Manager) TryUngrab(actor Actor, launchStrength float64) bool {
	if actor == nil {
		return false
	}
	id := actor.UUID()
	mu := m.stripe(id)
	mu.Lock()
	s, ok := m.loadSession(id)
	if !ok {
		mu.Unlock()
		m.log.Debug("Release rejected", "actor", id, "error", ErrNothingToRelease)
		return false
	}

	velocity := m.LaunchVelocity(actor.LookVector(), launchStrength)
	if err := m.submit(s.Target.Body(), SetLinearVelocity{Velocity: velocity}); err != nil {
		m.log.Warn("Launch dropped", "actor", id, "target", s.Key, "error", err)
	}
	m.endLocked(s)
	mu.Unlock()

	m.log.Info("Grab released", "actor", id, "target", s.Key, "strength", launchStrength, "held", s.HeldFor(m.cfg.Now()))
	m.publish(event.EventGrabReleased, event.GrabEvent{Actor: id, Target: string(s.Key), Velocity: velocity})
	return true
}

// OnPhysicsStep steers actor's target toward its hold position for a step
// of dt seconds. A target that left the world ends the session.
func (m *Manager) OnPhysicsStep(actor uuid.UUID, dt float64) {
	mu := m.stripe(actor)
	mu.Lock()
	s, ok := m.loadSession(actor)
	if !ok {
		mu.Unlock()
		return
	}
	if !s.Target.Valid() {
		m.log.Info("Held target vanished", "actor", actor, "target", s.Key)
		m.forceReleaseLocked(s)
		mu.Unlock()
		s.Target.Kill()
		m.publishForced(s)
		return
	}
	defer mu.Unlock()

	target := s.HoldTarget()
	velocity := target.Sub(s.Target.Position()).Mul(m.holdGain(dt))
	if speed := velocity.Len(); speed > m.cfg.MaxHoldSpeed {
		velocity = velocity.Mul(m.cfg.MaxHoldSpeed / speed)
	}
	if err := m.submit(s.Target.Body(), SetLinearVelocity{Velocity: velocity}); err != nil {
		m.log.Debug("Hold command dropped", "actor", actor, "error", err)
		return
	}
	s.setPose(target)
}

// StepAll runs OnPhysicsStep for every active session.
func (m *Manager) StepAll(dt float64) {
	for _, id := range m.actors() {
		m.OnPhysicsStep(id, dt)
	}
}

// Step lets the manager run as a physics stepper.
func (m *Manager) Step(tx *physics.Tx) { m.StepAll(tx.Dt()) }

// holdGain never asks for more than the remaining gap in one step.
func (m *Manager) holdGain(dt float64) float64 {
	if dt <= 0 {
		return m.cfg.HoldResponsiveness
	}
	return math.Min(m.cfg.HoldResponsiveness, 1/dt)
}

// ForceRelease ends actor's session without a launch. It is a no-op when
// nothing is held and tolerates targets the physics space no longer knows.
func (m *Manager) ForceRelease(actor uuid.UUID) {
	mu := m.stripe(actor)
	mu.Lock()
	s, ok := m.loadSession(actor)
	if !ok {
		mu.Unlock()
		return
	}
	vanished := !s.Target.Valid()
	m.forceReleaseLocked(s)
	mu.Unlock()
	if vanished {
		s.Target.Kill()
	}
	m.publishForced(s)
}

func (m *Manager) ForceReleaseAll() {
	for _, id := range m.actors() {
		m.ForceRelease(id)
	}
}

// forceReleaseLocked only drops the session. Killing a vanished target
// publishes world events, so callers do it after unlocking.
func (m *Manager) forceReleaseLocked(s *Session) {
	m.endLocked(s)
	m.log.Info("Grab force released", "actor", s.Holder, "target", s.Key)
}

func (m *Manager) publishForced(s *Session) {
	m.publish(event.EventGrabReleased, event.GrabEvent{Actor: s.Holder, Target: string(s.Key), Forced: true})
}

func (m *Manager) endLocked(s *Session) {
	m.sessions.Delete(s.Holder)
	m.holders.CompareAndDelete(s.Key, s.Holder)
	if f, ok := s.Target.(FreeFlight); ok {
		f.Release()
	}
}

func (m *Manager) Session(actor uuid.UUID) (*Session, bool) {
	return m.loadSession(actor)
}

// Sessions returns the active sessions ordered by start time.
func (m *Manager) Sessions() []*Session {
	var out []*Session
	m.sessions.Range(func(_, v any) bool {
		out = append(out, v.(*Session))
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

func (m *Manager) HolderOf(key TargetKey) (uuid.UUID, bool) {
	v, ok := m.holders.Load(key)
	if !ok {
		return uuid.Nil, false
	}
	return v.(uuid.UUID), true
}

func (m *Manager) IsBeingGrabbed(key TargetKey) bool {
	_, ok := m.holders.Load(key)
	return ok
}

func (m *Manager) loadSession(actor uuid.UUID) (*Session, bool) {
	v, ok := m.sessions.Load(actor)
	if !ok {
		return nil, false
	}
	return v.(*Session), true
}

func (m *Manager) actors() []uuid.UUID {
	var ids []uuid.UUID
	m.sessions.Range(func(k, _ any) bool {
		ids = append(ids, k.(uuid.UUID))
		return true
	})
	return ids
}

func (m *Manager) submit(body *physics.RigidBody, mut Mutation) error {
	if m.bridge == nil || body == nil {
		return nil
	}
	return m.bridge.Submit(body, mut)
}

func (m *Manager) publish(name string, evt any) {
	if m.bus != nil {
		m.bus.Publish(name, evt)
	}
}

// LaunchVelocity is the velocity TryUngrab gives a target for a look
// vector and strength.
func (m *Manager) LaunchVelocity(look mgl64.Vec3, launchStrength float64) mgl64.Vec3 {
	return look.Mul(m.cfg.LaunchInitialVelocityMultiplier * launchStrength / DefaultLaunchStrength)
}
