package grab

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"

	"github.com/LeoCTH/gravity-guns/internal/entity"
	"github.com/LeoCTH/gravity-guns/internal/event"
	"github.com/LeoCTH/gravity-guns/internal/physics"
	"github.com/LeoCTH/gravity-guns/internal/world"
)

type testActor struct {
	mu   sync.Mutex
	id   uuid.UUID
	eye  mgl64.Vec3
	look mgl64.Vec3
}

func newTestActor(eye, look mgl64.Vec3) *testActor {
	return &testActor{id: uuid.New(), eye: eye, look: look.Normalize()}
}

func (a *testActor) UUID() uuid.UUID { return a.id }

func (a *testActor) EyePosition() mgl64.Vec3 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.eye
}

func (a *testActor) LookVector() mgl64.Vec3 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.look
}

func (a *testActor) aim(eye, look mgl64.Vec3) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.eye = eye
	a.look = look.Normalize()
}

type submission struct {
	body *physics.RigidBody
	mut  Mutation
}

type recordingBridge struct {
	mu   sync.Mutex
	subs []submission
	err  error
}

func (b *recordingBridge) Submit(body *physics.RigidBody, m Mutation) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.subs = append(b.subs, submission{body: body, mut: m})
	return nil
}

func (b *recordingBridge) take() []submission {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.subs
	b.subs = nil
	return out
}

type fixture struct {
	space    *physics.Space
	world    *world.World
	bus      *event.Bus
	bridge   *recordingBridge
	manager  *Manager
	selector *Selector
	tracker  *entity.Tracker

	mu       sync.Mutex
	released []event.GrabEvent
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		space:   physics.NewSpace(physics.SpaceConfig{}),
		bus:     event.NewBus(),
		bridge:  &recordingBridge{},
		tracker: entity.NewTracker(),
	}
	f.world = world.New(world.Config{Space: f.space, Bus: f.bus})
	f.world.Blocks().EnsureChunk(0, 0)
	f.manager = NewManager(ManagerConfig{
		LaunchInitialVelocityMultiplier: 2,
		Bridge:                          f.bridge,
		Bus:                             f.bus,
		Tick:                            f.space.Tick,
	})
	f.selector = NewSelector(SelectorConfig{World: f.world, Held: f.manager, Tracker: f.tracker})
	f.bus.Subscribe(event.EventGrabReleased, func(raw any) {
		f.mu.Lock()
		f.released = append(f.released, raw.(event.GrabEvent))
		f.mu.Unlock()
	})
	return f
}

func (f *fixture) releasedEvents() []event.GrabEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]event.GrabEvent(nil), f.released...)
}

func (f *fixture) spawnCrate(pos mgl64.Vec3) *world.Entity {
	body := physics.NewRigidBody(pos, mgl64.Vec3{0.5, 0.5, 0.5}, 1)
	return f.world.SpawnEntity(world.KindCrate, pos, 1, 1, body)
}

func (f *fixture) setBlock(t *testing.T, pos world.BlockPos, name string) int32 {
	t.Helper()
	id, ok := f.world.Catalog().ByName(name)
	if !ok {
		t.Fatalf("catalog has no %q", name)
	}
	if err := f.world.SetBlock(pos, id, "test", "setup"); err != nil {
		t.Fatalf("SetBlock: %v", err)
	}
	return id
}

var (
	testEye  = mgl64.Vec3{0.5, 1.5, 0.5}
	lookAtZ  = mgl64.Vec3{0, 0, 1}
	crateAtZ = mgl64.Vec3{0.5, 1.5, 3.5}
)

func vecNear(a, b mgl64.Vec3, tol float64) bool {
	return a.Sub(b).Len() <= tol
}

func TestIsPlayerGrabbingMatchesRegistry(t *testing.T) {
	f := newFixture(t)
	a := newTestActor(testEye, lookAtZ)
	crate := NewEntityGrabbable(f.world, f.spawnCrate(crateAtZ))

	if f.manager.IsPlayerGrabbing(a.UUID()) {
		t.Fatal("idle actor reported as grabbing")
	}
	if !f.manager.TryGrab(a, crate) {
		t.Fatal("TryGrab failed")
	}
	s, ok := f.manager.Session(a.UUID())
	if !ok || !f.manager.IsPlayerGrabbing(a.UUID()) {
		t.Fatal("grabbing actor has no session")
	}
	if s.Holder != a.UUID() || s.Target != crate {
		t.Fatalf("session = %+v", s)
	}
	if len(f.manager.Sessions()) != 1 {
		t.Fatalf("Sessions() = %d, want 1", len(f.manager.Sessions()))
	}
}

func TestTryGrabTwiceKeepsOriginalSession(t *testing.T) {
	f := newFixture(t)
	a := newTestActor(testEye, lookAtZ)
	first := NewEntityGrabbable(f.world, f.spawnCrate(crateAtZ))
	second := NewEntityGrabbable(f.world, f.spawnCrate(mgl64.Vec3{3.5, 1.5, 0.5}))

	if !f.manager.TryGrab(a, first) {
		t.Fatal("first TryGrab failed")
	}
	if f.manager.TryGrab(a, second) {
		t.Fatal("second TryGrab should fail")
	}
	s, _ := f.manager.Session(a.UUID())
	if s.Target != first {
		t.Fatal("original session target changed")
	}
	if f.manager.IsBeingGrabbed(second.Key()) {
		t.Fatal("rejected target should not be claimed")
	}
}

func TestSecondActorCannotGrabHeldEntity(t *testing.T) {
	f := newFixture(t)
	a := newTestActor(testEye, lookAtZ)
	b := newTestActor(mgl64.Vec3{0.5, 1.5, 6.5}, mgl64.Vec3{0, 0, -1})
	crate := NewEntityGrabbable(f.world, f.spawnCrate(crateAtZ))

	if !f.manager.TryGrab(a, crate) {
		t.Fatal("TryGrab(A) failed")
	}
	if f.manager.TryGrab(b, NewEntityGrabbable(f.world, crate.Entity())) {
		t.Fatal("TryGrab(B) on held entity should fail")
	}
	if holder, ok := f.manager.HolderOf(crate.Key()); !ok || holder != a.UUID() {
		t.Fatalf("holder = %v, want A", holder)
	}
	if f.manager.IsPlayerGrabbing(b.UUID()) {
		t.Fatal("B should not be grabbing")
	}
}

func TestTryUngrabWithoutSession(t *testing.T) {
	f := newFixture(t)
	a := newTestActor(testEye, lookAtZ)

	if f.manager.TryUngrab(a, DefaultLaunchStrength) {
		t.Fatal("TryUngrab without session should fail")
	}
	if subs := f.bridge.take(); len(subs) != 0 {
		t.Fatalf("bridge received %d submissions, want 0", len(subs))
	}
	if len(f.releasedEvents()) != 0 {
		t.Fatal("no release event expected")
	}
}

func TestTryUngrabLaunchesAlongLook(t *testing.T) {
	f := newFixture(t)
	a := newTestActor(testEye, lookAtZ)
	crate := NewEntityGrabbable(f.world, f.spawnCrate(crateAtZ))

	if !f.manager.TryGrab(a, crate) {
		t.Fatal("TryGrab failed")
	}
	f.bridge.take()

	if !f.manager.TryUngrab(a, 5.0) {
		t.Fatal("TryUngrab failed")
	}
	subs := f.bridge.take()
	if len(subs) != 1 {
		t.Fatalf("bridge received %d submissions, want 1", len(subs))
	}
	set, ok := subs[0].mut.(SetLinearVelocity)
	if !ok || subs[0].body != crate.Body() {
		t.Fatalf("submission = %+v, want SetLinearVelocity on the held body", subs[0])
	}
	if want := lookAtZ.Mul(2); !vecNear(set.Velocity, want, 1e-9) {
		t.Fatalf("launch velocity = %v, want %v", set.Velocity, want)
	}

	if f.manager.IsPlayerGrabbing(a.UUID()) || f.manager.IsBeingGrabbed(crate.Key()) {
		t.Fatal("registry should be empty after release")
	}
	if events := f.releasedEvents(); len(events) != 1 || events[0].Forced {
		t.Fatalf("release events = %+v", events)
	}
}

func TestLaunchVelocityScalesWithStrength(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		strength float64
		want     float64
	}{
		{0, 0},
		{2.5, 1},
		{5, 2},
		{10, 4},
	}
	for _, tt := range tests {
		got := f.manager.LaunchVelocity(lookAtZ, tt.strength)
		if !vecNear(got, lookAtZ.Mul(tt.want), 1e-9) {
			t.Errorf("LaunchVelocity(%v) = %v, want %v", tt.strength, got, lookAtZ.Mul(tt.want))
		}
	}
}

func TestLaunchDroppedWhenQueueFullStillReleases(t *testing.T) {
	f := newFixture(t)
	a := newTestActor(testEye, lookAtZ)
	crate := NewEntityGrabbable(f.world, f.spawnCrate(crateAtZ))
	if !f.manager.TryGrab(a, crate) {
		t.Fatal("TryGrab failed")
	}

	f.bridge.err = physics.ErrQueueFull
	if !f.manager.TryUngrab(a, DefaultLaunchStrength) {
		t.Fatal("TryUngrab should succeed when the launch is dropped")
	}
	if f.manager.IsPlayerGrabbing(a.UUID()) {
		t.Fatal("session should be gone")
	}
}

func TestForceReleaseIsIdempotent(t *testing.T) {
	f := newFixture(t)
	a := newTestActor(testEye, lookAtZ)
	crate := NewEntityGrabbable(f.world, f.spawnCrate(crateAtZ))
	if !f.manager.TryGrab(a, crate) {
		t.Fatal("TryGrab failed")
	}

	f.manager.ForceRelease(a.UUID())
	f.manager.ForceRelease(a.UUID())

	if f.manager.IsPlayerGrabbing(a.UUID()) {
		t.Fatal("session should be gone")
	}
	events := f.releasedEvents()
	if len(events) != 1 || !events[0].Forced {
		t.Fatalf("release events = %+v, want one forced release", events)
	}
	if subs := f.bridge.take(); len(subs) != 0 {
		t.Fatalf("force release submitted %d mutations, want 0", len(subs))
	}
	if !crate.Valid() {
		t.Fatal("a live target should survive a force release")
	}
}

func TestForceReleaseWithStaleBody(t *testing.T) {
	f := newFixture(t)
	a := newTestActor(testEye, lookAtZ)
	crate := NewEntityGrabbable(f.world, f.spawnCrate(crateAtZ))
	if !f.manager.TryGrab(a, crate) {
		t.Fatal("TryGrab failed")
	}
	f.space.RemoveBody(crate.Body())

	f.manager.ForceRelease(a.UUID())

	if f.manager.IsPlayerGrabbing(a.UUID()) {
		t.Fatal("session should be gone")
	}
	if _, ok := f.world.Entity(crate.Entity().ID); ok {
		t.Fatal("entity without a body should be cleaned up")
	}
}

func TestRemovalHandlersMayCallManager(t *testing.T) {
	for _, tt := range []struct {
		name    string
		release func(f *fixture, a *testActor)
	}{
		{"force release", func(f *fixture, a *testActor) { f.manager.ForceRelease(a.UUID()) }},
		{"physics step", func(f *fixture, a *testActor) { f.manager.StepAll(1.0 / 60) }},
	} {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			a := newTestActor(testEye, lookAtZ)
			crate := NewEntityGrabbable(f.world, f.spawnCrate(crateAtZ))
			if !f.manager.TryGrab(a, crate) {
				t.Fatal("TryGrab failed")
			}
			var handled atomic.Bool
			f.bus.Subscribe(event.EventEntityRemoved, func(any) {
				f.manager.ForceRelease(a.UUID())
				handled.Store(true)
			})
			f.space.RemoveBody(crate.Body())

			done := make(chan struct{})
			go func() {
				tt.release(f, a)
				close(done)
			}()
			select {
			case <-done:
			case <-time.After(2 * time.Second):
				t.Fatal("release deadlocked on the actor's stripe")
			}
			if !handled.Load() {
				t.Fatal("removal handler did not run")
			}
			if f.manager.IsPlayerGrabbing(a.UUID()) {
				t.Fatal("session should be gone")
			}
		})
	}
}

func TestOnPhysicsStepSteersTowardHoldTarget(t *testing.T) {
	f := newFixture(t)
	a := newTestActor(testEye, lookAtZ)
	crate := NewEntityGrabbable(f.world, f.spawnCrate(crateAtZ))
	if !f.manager.TryGrab(a, crate) {
		t.Fatal("TryGrab failed")
	}
	s, _ := f.manager.Session(a.UUID())
	if s.HoldDistance != 3 || s.HoldOffset.Len() > 1e-9 {
		t.Fatalf("hold geometry = %v / %v, want 3 / 0", s.HoldDistance, s.HoldOffset)
	}

	f.manager.OnPhysicsStep(a.UUID(), 1.0/60)
	subs := f.bridge.take()
	if len(subs) != 1 {
		t.Fatalf("submissions = %d, want 1", len(subs))
	}
	if v := subs[0].mut.(SetLinearVelocity).Velocity; v.Len() > 1e-9 {
		t.Fatalf("velocity at rest = %v, want zero", v)
	}

	// Turning to +X puts the hold point far away: the command is capped.
	a.aim(testEye, mgl64.Vec3{1, 0, 0})
	f.manager.StepAll(1.0 / 60)
	subs = f.bridge.take()
	v := subs[0].mut.(SetLinearVelocity).Velocity
	if diff := v.Len() - DefaultMaxHoldSpeed; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("speed = %v, want %v", v.Len(), DefaultMaxHoldSpeed)
	}
	want := mgl64.Vec3{1, 0, -1}.Normalize()
	if !vecNear(v.Normalize(), want, 1e-9) {
		t.Fatalf("direction = %v, want %v", v.Normalize(), want)
	}
	if !vecNear(s.LastPose(), mgl64.Vec3{3.5, 1.5, 0.5}, 1e-9) {
		t.Fatalf("last pose = %v", s.LastPose())
	}
}

func TestHoldConvergesWithoutOvershoot(t *testing.T) {
	tests := []struct {
		name  string
		hz    float64
		steps int
	}{
		{"60hz", 60, 120},
		{"20hz", 20, 40},
		{"5hz", 5, 10},
		{"1hz", 1, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.manager = NewManager(ManagerConfig{Bridge: NewPhysicsBridge(f.space)})
			a := newTestActor(testEye, lookAtZ)
			crate := NewEntityGrabbable(f.world, f.spawnCrate(crateAtZ))
			if !f.manager.TryGrab(a, crate) {
				t.Fatal("TryGrab failed")
			}
			f.space.AddStepper(f.manager)

			a.aim(mgl64.Vec3{0.5, 1.5, -0.5}, lookAtZ)
			dt := 1 / tt.hz
			prev := crate.Position().Z()
			for i := 0; i < tt.steps; i++ {
				f.space.Step(dt)
				z := crate.Position().Z()
				if z > prev+1e-12 || z < 2.5-1e-9 {
					t.Fatalf("step %d: z = %v (prev %v), want monotonic approach to 2.5", i, z, prev)
				}
				prev = z
			}
			if d := prev - 2.5; d > 1e-3 {
				t.Fatalf("z = %v after %d steps, want ~2.5", prev, tt.steps)
			}
		})
	}
}

func TestVanishedTargetEndsSession(t *testing.T) {
	f := newFixture(t)
	a := newTestActor(testEye, lookAtZ)
	e := f.spawnCrate(crateAtZ)
	if !f.manager.TryGrab(a, NewEntityGrabbable(f.world, e)) {
		t.Fatal("TryGrab failed")
	}
	f.world.RemoveEntity(e.ID)

	f.manager.StepAll(1.0 / 60)

	if f.manager.IsPlayerGrabbing(a.UUID()) {
		t.Fatal("session should end when the target vanishes")
	}
	if events := f.releasedEvents(); len(events) != 1 || !events[0].Forced {
		t.Fatalf("release events = %+v", events)
	}
	if subs := f.bridge.take(); len(subs) != 0 {
		t.Fatalf("submissions = %d, want 0", len(subs))
	}
}

func TestTryGrabRejectsInvalidTarget(t *testing.T) {
	f := newFixture(t)
	a := newTestActor(testEye, lookAtZ)
	e := f.spawnCrate(crateAtZ)
	g := NewEntityGrabbable(f.world, e)
	f.world.RemoveEntity(e.ID)

	if f.manager.TryGrab(a, g) {
		t.Fatal("TryGrab on removed entity should fail")
	}
	if f.manager.IsBeingGrabbed(g.Key()) {
		t.Fatal("failed grab left a claim behind")
	}
}

func TestConcurrentGrabsOfOneTarget(t *testing.T) {
	f := newFixture(t)
	e := f.spawnCrate(crateAtZ)

	var wg sync.WaitGroup
	var wins atomic.Int32
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a := newTestActor(testEye, lookAtZ)
			if f.manager.TryGrab(a, NewEntityGrabbable(f.world, e)) {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Fatalf("successful grabs = %d, want 1", wins.Load())
	}
}

func TestBlockGrabCommitsAndReleases(t *testing.T) {
	f := newFixture(t)
	a := newTestActor(testEye, lookAtZ)
	pos := world.BlockPos{X: 0, Y: 1, Z: 3}
	f.setBlock(t, pos, "dirt")

	target, ok := f.selector.SelectGrabbable(a, 5, 5, 1)
	if !ok {
		t.Fatal("selection found nothing")
	}
	bg, ok := target.(*BlockGrabbable)
	if !ok {
		t.Fatalf("selected %T, want *BlockGrabbable", target)
	}
	if bg.BlockEntity().Source() != pos || target.Key() != BlockKey(pos) {
		t.Fatalf("selected %s, want block %s", target.Key(), pos)
	}
	if st, _ := f.world.BlockState(pos); st.Name != "dirt" {
		t.Fatal("selection must not clear the block")
	}

	if !f.manager.TryGrab(a, target) {
		t.Fatal("TryGrab failed")
	}
	if st, _ := f.world.BlockState(pos); st.ID != world.AirState {
		t.Fatal("block should be cleared after a successful grab")
	}
	e := bg.BlockEntity().Entity()
	if e == nil {
		t.Fatal("block entity was not spawned")
	}
	if holder, ok := f.manager.HolderOf(EntityKey(e.ID)); !ok || holder != a.UUID() {
		t.Fatal("holder index should follow the spawned entity")
	}
	if f.manager.IsBeingGrabbed(BlockKey(pos)) {
		t.Fatal("source block key should be released after commit")
	}
	if !bg.BlockEntity().Held() {
		t.Fatal("block entity should be held")
	}

	if !f.manager.TryUngrab(a, DefaultLaunchStrength) {
		t.Fatal("TryUngrab failed")
	}
	if bg.BlockEntity().Held() || !bg.Valid() {
		t.Fatal("released block entity should be in free flight")
	}
}

func TestBlockGrabFailsWhenBlockMined(t *testing.T) {
	f := newFixture(t)
	a := newTestActor(testEye, lookAtZ)
	pos := world.BlockPos{X: 0, Y: 1, Z: 3}
	f.setBlock(t, pos, "dirt")

	target, ok := f.selector.SelectGrabbable(a, 5, 5, 1)
	if !ok {
		t.Fatal("selection found nothing")
	}
	if _, err := f.world.ClearBlock(pos, "other", "mined"); err != nil {
		t.Fatalf("ClearBlock: %v", err)
	}

	if f.manager.TryGrab(a, target) {
		t.Fatal("grab of a vanished block should fail")
	}
	if f.manager.IsPlayerGrabbing(a.UUID()) || f.manager.IsBeingGrabbed(BlockKey(pos)) {
		t.Fatal("failed commit must leave no state")
	}
	if len(f.world.Entities()) != 0 {
		t.Fatal("failed commit must not spawn entities")
	}
}

func TestManagerDefaults(t *testing.T) {
	m := NewManager(ManagerConfig{})
	if m.cfg.HoldResponsiveness != DefaultHoldResponsiveness || m.cfg.MaxHoldSpeed != DefaultMaxHoldSpeed {
		t.Fatalf("defaults = %+v", m.cfg)
	}
	if m.TryGrab(nil, nil) || m.TryUngrab(nil, 1) {
		t.Fatal("nil actor must be rejected")
	}
	m.ForceRelease(uuid.New())
	m.ForceReleaseAll()
}

func TestLaunchMultiplierUsedAsConfigured(t *testing.T) {
	look := mgl64.Vec3{0, 0, 1}
	tests := []struct {
		multiplier float64
		want       mgl64.Vec3
	}{
		{0, mgl64.Vec3{}},
		{0.5, mgl64.Vec3{0, 0, 0.5}},
		{DefaultLaunchInitialVelocityMultiplier, mgl64.Vec3{0, 0, 2}},
	}
	for _, tt := range tests {
		m := NewManager(ManagerConfig{LaunchInitialVelocityMultiplier: tt.multiplier})
		if got := m.LaunchVelocity(look, DefaultLaunchStrength); got != tt.want {
			t.Errorf("multiplier %v: LaunchVelocity() = %v, want %v", tt.multiplier, got, tt.want)
		}
	}
}

func TestZeroMultiplierDropsTarget(t *testing.T) {
	f := newFixture(t)
	f.manager.cfg.LaunchInitialVelocityMultiplier = 0
	a := newTestActor(testEye, lookAtZ)
	if !f.manager.TryGrab(a, NewEntityGrabbable(f.world, f.spawnCrate(crateAtZ))) {
		t.Fatal("TryGrab failed")
	}
	if !f.manager.TryUngrab(a, DefaultLaunchStrength) {
		t.Fatal("TryUngrab failed")
	}
	subs := f.bridge.take()
	if len(subs) != 1 {
		t.Fatalf("submissions = %d, want 1", len(subs))
	}
	if v := subs[0].mut.(SetLinearVelocity).Velocity; v != (mgl64.Vec3{}) {
		t.Fatalf("launch velocity = %v, want zero", v)
	}
}

func TestSessionHoldsClock(t *testing.T) {
	f := newFixture(t)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f.manager.cfg.Now = func() time.Time { return start }
	a := newTestActor(testEye, lookAtZ)
	if !f.manager.TryGrab(a, NewEntityGrabbable(f.world, f.spawnCrate(crateAtZ))) {
		t.Fatal("TryGrab failed")
	}
	s, _ := f.manager.Session(a.UUID())
	if got := s.HeldFor(start.Add(3 * time.Second)); got != 3*time.Second {
		t.Fatalf("HeldFor = %v, want 3s", got)
	}
}

func TestPhysicsBridgeDropsMutationsOfRemovedBodies(t *testing.T) {
	space := physics.NewSpace(physics.SpaceConfig{QueueSize: 1})
	bridge := NewPhysicsBridge(space)
	body := physics.NewRigidBody(mgl64.Vec3{}, mgl64.Vec3{0.5, 0.5, 0.5}, 1)
	space.AddBody(body)

	if err := bridge.Submit(body, SetLinearVelocity{Velocity: mgl64.Vec3{1, 0, 0}}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := bridge.Submit(body, ApplyCentralForce{Force: mgl64.Vec3{1, 0, 0}}); !errors.Is(err, physics.ErrQueueFull) {
		t.Fatalf("Submit on full queue = %v, want ErrQueueFull", err)
	}
	space.RemoveBody(body)
	space.Step(0.1)
	if body.Velocity() != (mgl64.Vec3{}) {
		t.Fatalf("removed body velocity = %v, want zero", body.Velocity())
	}
}
