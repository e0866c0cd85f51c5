package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/LeoCTH/gravity-guns/internal/grab"
	"github.com/LeoCTH/gravity-guns/internal/item"
	"github.com/LeoCTH/gravity-guns/internal/physics"
	"github.com/LeoCTH/gravity-guns/internal/world"
)

var ErrInboxFull = errors.New("intent inbox is full")

type Config struct {
	TickRateHz        int
	PhysicsTickRateHz int
	InboxSize         int
}

type Deps struct {
	World   *world.World
	Space   *physics.Space
	Manager *grab.Manager
	Gun     *item.GravityGun
}

type useState struct {
	stack     *item.ItemStack
	startTick uint64
}

// PlayerStatus is a read-only view for consoles and tests.
type PlayerStatus struct {
	Grabbing  bool
	Target    grab.TargetKey
	UseTicks  uint64
	HoldPoint [3]float64
}

// Server drives the input tick loop and the physics loop.
type Server struct {
	cfg     Config
	world   *world.World
	space   *physics.Space
	manager *grab.Manager
	gun     *item.GravityGun
	inbox   chan Intent
	log     *slog.Logger

	tick atomic.Uint64

	mu    sync.Mutex
	using map[uuid.UUID]useState
}

func NewServer(cfg Config, deps Deps) *Server {
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = 256
	}
	s := &Server{
		cfg:     cfg,
		world:   deps.World,
		space:   deps.Space,
		manager: deps.Manager,
		gun:     deps.Gun,
		inbox:   make(chan Intent, cfg.InboxSize),
		log:     slog.Default().With("component", "server"),
		using:   make(map[uuid.UUID]useState),
	}
	deps.Space.AddStepper(deps.Manager)
	return s
}

func (s *Server) World() *world.World { return s.world }

func (s *Server) Manager() *grab.Manager { return s.manager }

func (s *Server) Tick() uint64 { return s.tick.Load() }

// Submit queues an intent for the next input tick without blocking.
func (s *Server) Submit(in Intent) error {
	select {
	case s.inbox <- in:
		return nil
	default:
		return ErrInboxFull
	}
}

// Run blocks until ctx is cancelled or a loop fails. Every session is force
// released on the way out.
func (s *Server) Run(ctx context.Context) error {
	if s.cfg.TickRateHz <= 0 {
		return fmt.Errorf("input tick rate must be > 0, got %d", s.cfg.TickRateHz)
	}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.space.Run(ctx, s.cfg.PhysicsTickRateHz) })
	g.Go(func() error { return s.runInput(ctx) })

	err := g.Wait()
	s.manager.ForceReleaseAll()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	return err
}

func (s *Server) runInput(ctx context.Context) error {
	interval := time.Second / time.Duration(s.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Info("Input loop started", "hz", s.cfg.TickRateHz)
	var pending []Intent
	for {
		select {
		case <-ctx.Done():
			s.log.Info("Input loop stopped", "tick", s.Tick())
			return nil
		case in := <-s.inbox:
			pending = append(pending, in)
		case <-ticker.C:
			s.step(pending)
			pending = pending[:0]
		}
	}
}

// Step processes everything queued so far as one input tick.
func (s *Server) Step() {
	var pending []Intent
	for {
		select {
		case in := <-s.inbox:
			pending = append(pending, in)
		default:
			s.step(pending)
			return
		}
	}
}

func (s *Server) step(pending []Intent) {
	tick := s.tick.Add(1)
	for _, in := range pending {
		s.apply(tick, in)
	}
	s.expireUses(tick)
}

func (s *Server) apply(tick uint64, in Intent) {
	p, ok := s.world.Player(in.Player)
	if !ok {
		s.log.Debug("Intent for unknown player", "player", in.Player, "kind", in.Kind)
		return
	}
	switch in.Kind {
	case IntentUse:
		res := s.gun.Use(p, in.Stack)
		if res == item.ResultConsume {
			s.mu.Lock()
			s.using[p.UUID()] = useState{stack: in.Stack, startTick: tick}
			s.mu.Unlock()
		}
		s.log.Debug("Use", "player", p.Name(), "result", res)
	case IntentRelease:
		s.stopUsing(p, tick)
	case IntentAim:
		p.SetRotation(in.Yaw, in.Pitch)
	case IntentMove:
		p.SetPosition(in.Position)
	case IntentLeave:
		s.manager.ForceRelease(p.UUID())
		s.mu.Lock()
		delete(s.using, p.UUID())
		s.mu.Unlock()
		s.world.RemovePlayer(p.UUID())
	}
}

func (s *Server) stopUsing(p *world.Player, tick uint64) {
	s.mu.Lock()
	st, ok := s.using[p.UUID()]
	delete(s.using, p.UUID())
	s.mu.Unlock()
	if !ok {
		return
	}
	held := int(tick - st.startTick)
	remaining := item.MaxUseTime - held
	if remaining < 0 {
		remaining = 0
	}
	s.gun.StoppedUsing(p, st.stack, remaining)
}

// expireUses releases triggers held for the whole use time.
func (s *Server) expireUses(tick uint64) {
	var expired []uuid.UUID
	s.mu.Lock()
	for id, st := range s.using {
		if tick-st.startTick >= item.MaxUseTime {
			expired = append(expired, id)
		}
	}
	s.mu.Unlock()
	for _, id := range expired {
		if p, ok := s.world.Player(id); ok {
			s.stopUsing(p, tick)
		}
	}
}

func (s *Server) Status(player uuid.UUID) PlayerStatus {
	var st PlayerStatus
	if sess, ok := s.manager.Session(player); ok {
		st.Grabbing = true
		st.Target = sess.Key
		pose := sess.LastPose()
		st.HoldPoint = [3]float64{pose.X(), pose.Y(), pose.Z()}
	}
	s.mu.Lock()
	if u, ok := s.using[player]; ok {
		st.UseTicks = s.Tick() - u.startTick
	}
	s.mu.Unlock()
	return st
}

const (
	CrateSize = 0.8
	CrateMass = 2.0
)

// Join adds a player to the world. Players are not physical bodies.
func (s *Server) Join(name string, feet mgl64.Vec3) *world.Player {
	p := s.world.AddPlayer(name, feet)
	s.log.Info("Player joined", "name", name, "uuid", p.UUID())
	return p
}

// SpawnCrate drops a free physical crate centred on pos.
func (s *Server) SpawnCrate(pos mgl64.Vec3) *world.Entity {
	half := CrateSize / 2
	body := physics.NewRigidBody(pos, mgl64.Vec3{half, half, half}, CrateMass)
	return s.world.SpawnEntity(world.KindCrate, pos, CrateSize, CrateSize, body)
}
