package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-gl/mathgl/mgl64"
	"golang.org/x/sync/errgroup"

	"github.com/LeoCTH/gravity-guns/internal/audit"
	"github.com/LeoCTH/gravity-guns/internal/config"
	"github.com/LeoCTH/gravity-guns/internal/debug"
	"github.com/LeoCTH/gravity-guns/internal/entity"
	"github.com/LeoCTH/gravity-guns/internal/event"
	"github.com/LeoCTH/gravity-guns/internal/grab"
	"github.com/LeoCTH/gravity-guns/internal/item"
	"github.com/LeoCTH/gravity-guns/internal/logger"
	"github.com/LeoCTH/gravity-guns/internal/physics"
	"github.com/LeoCTH/gravity-guns/internal/sim"
	"github.com/LeoCTH/gravity-guns/internal/world"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	headless := flag.Bool("headless", false, "run without the terminal console")
	playerName := flag.String("player", "steve", "name of the console player")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Config file not found, using defaults", "path", *configPath)
		cfg, err = config.Default(), nil
	}
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
	}); err != nil {
		slog.Error("Failed to init logger", "error", err)
		os.Exit(1)
	}
	defer logger.Close()

	if err := run(cfg, *headless, *playerName); err != nil {
		slog.Error("Server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, headless bool, playerName string) error {
	log := logger.Component("main")
	catalog := world.DefaultCatalog()
	if cfg.World.Blocks != "" {
		c, err := world.LoadCatalog(cfg.World.Blocks)
		if err != nil {
			return err
		}
		catalog = c
	}

	bus := event.NewBus()
	blocks := world.NewBlockStore(catalog)
	space := physics.NewSpace(physics.SpaceConfig{
		Gravity:   cfg.Physics.Gravity,
		QueueSize: cfg.Physics.QueueSize,
		Blocks:    blocks,
	})

	var auditLog world.AuditLogger
	if cfg.Audit.Dir != "" {
		l := audit.NewLogger(cfg.Audit.Dir)
		defer l.Close()
		auditLog = l
		journal := audit.NewGrabJournal(cfg.Audit.Dir, bus)
		defer journal.Close()
	}

	w := world.New(world.Config{
		Blocks: blocks,
		Side:   world.SideServer,
		Space:  space,
		Bus:    bus,
		Audit:  auditLog,
	})

	manager := grab.NewManager(grab.ManagerConfig{
		LaunchInitialVelocityMultiplier: cfg.GravityGun.LaunchInitialVelocityMultiplier,
		Bridge:                          grab.NewPhysicsBridge(space),
		Bus:                             bus,
		Tick:                            space.Tick,
	})
	selector := grab.NewSelector(grab.SelectorConfig{
		World:               w,
		Held:                manager,
		Tracker:             entity.NewTracker(),
		BlockEntityLifetime: cfg.GravityGun.BlockEntityLifetime,
	})
	gun := item.NewGravityGunItem(item.Config{
		EntityReachDistance: cfg.GravityGun.EntityReachDistance,
		BlockReachDistance:  cfg.GravityGun.BlockReachDistance,
	}, w, selector, manager, bus)

	server := sim.NewServer(sim.Config{
		TickRateHz:        cfg.Server.TickRateHz,
		PhysicsTickRateHz: cfg.Physics.TickRateHz,
		InboxSize:         cfg.Server.InboxSize,
	}, sim.Deps{World: w, Space: space, Manager: manager, Gun: gun})

	if err := server.BuildArena(); err != nil {
		return err
	}
	player := server.Join(playerName, mgl64.Vec3{0.5, sim.ArenaFloorY + 1, 0.5})

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Run(ctx) })
	if !headless {
		console := debug.NewConsole(server, player, item.NewGravityGun(cfg.GravityGun.DefaultPower))
		// Not part of the group: a console blocked on stdin must not hold up
		// shutdown.
		go func() {
			defer cancel()
			if err := console.Start(ctx); err != nil {
				log.Error("Console stopped", "error", err)
			}
		}()
	} else {
		log.Info("Running headless", "player", player.Name())
	}
	err := g.Wait()
	log.Info("Shutdown complete", "tick", server.Tick(), "physics_tick", space.Tick())
	return err
}
