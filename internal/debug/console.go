package debug

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"golang.org/x/term"

	"github.com/LeoCTH/gravity-guns/internal/item"
	"github.com/LeoCTH/gravity-guns/internal/sim"
	"github.com/LeoCTH/gravity-guns/internal/world"
)

const (
	defaultRenderInterval = 100 * time.Millisecond
	yawStep               = 5.0
	pitchStep             = 5.0
	moveStep              = 0.5
	crateSpawnDistance    = 3.0
)

// Console drives one local player from a raw terminal.
type Console struct {
	server *sim.Server
	player *world.Player
	stack  *item.ItemStack
	out    io.Writer

	renderInterval time.Duration
	quit           context.CancelFunc

	mu          sync.Mutex
	trigger     bool
	commandMode bool
	commandBuf  []rune
	statusWidth int
}

func NewConsole(server *sim.Server, player *world.Player, stack *item.ItemStack) *Console {
	return &Console{
		server:         server,
		player:         player,
		stack:          stack,
		out:            os.Stdout,
		renderInterval: defaultRenderInterval,
	}
}

func (c *Console) Start(ctx context.Context) error {
	if c == nil {
		return fmt.Errorf("console is nil")
	}
	if c.server == nil {
		return fmt.Errorf("console server is nil")
	}
	if c.player == nil {
		return fmt.Errorf("console player is nil")
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return fmt.Errorf("stdin is not a terminal")
	}
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("set terminal raw mode: %w", err)
	}
	var restoreOnce sync.Once
	restore := func() {
		restoreOnce.Do(func() {
			_ = term.Restore(fd, oldState)
			c.printf("\r\n")
		})
	}
	defer restore()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.quit = cancel

	// ReadByte cannot be interrupted, so the terminal is restored as soon as
	// ctx ends rather than on the next key press.
	go func() {
		<-ctx.Done()
		restore()
	}()

	c.printf("[debug] console started (arrows aim, W/A/S/D move, G trigger, X release, : commands, Q quit)\r\n")
	c.renderStatusLine()

	go c.renderLoop(ctx)

	reader := bufio.NewReader(os.Stdin)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		b, err := reader.ReadByte()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read console input: %w", err)
		}
		c.handleKey(reader, b)
	}
}

func (c *Console) renderLoop(ctx context.Context) {
	ticker := time.NewTicker(c.renderInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.syncTrigger()
			c.renderStatusLine()
		}
	}
}

// syncTrigger drops the trigger flag once the server has ended the grab on
// its own, e.g. when the target vanished.
func (c *Console) syncTrigger() {
	if c.server.Manager().IsPlayerGrabbing(c.player.UUID()) {
		return
	}
	c.mu.Lock()
	c.trigger = false
	c.mu.Unlock()
}

func (c *Console) handleKey(reader *bufio.Reader, b byte) {
	if c.isCommandMode() {
		c.handleCommandByte(b)
		return
	}

	switch b {
	case ':':
		c.enterCommandMode()
		return
	case 3, 'q', 'Q': // Ctrl-C does not raise SIGINT in raw mode
		if c.quit != nil {
			c.quit()
		}
		return
	case 'g', 'G':
		c.toggleTrigger()
	case 'x', 'X':
		c.releaseTrigger()
	case 'w', 'W':
		c.move(0)
	case 's', 'S':
		c.move(180)
	case 'a', 'A':
		c.move(-90)
	case 'd', 'D':
		c.move(90)
	case 27: // ESC + arrow sequence
		next, err := reader.ReadByte()
		if err != nil || next != '[' {
			return
		}
		arrow, err := reader.ReadByte()
		if err != nil {
			return
		}
		switch arrow {
		case 'D': // left
			c.adjustAim(-yawStep, 0)
		case 'C': // right
			c.adjustAim(yawStep, 0)
		case 'A': // up
			c.adjustAim(0, -pitchStep)
		case 'B': // down
			c.adjustAim(0, pitchStep)
		}
	}
	c.renderStatusLine()
}

func (c *Console) enterCommandMode() {
	c.mu.Lock()
	c.commandMode = true
	c.commandBuf = c.commandBuf[:0]
	c.mu.Unlock()
	c.printf("\r\n:")
}

func (c *Console) handleCommandByte(b byte) {
	switch b {
	case 13, 10: // Enter
		c.mu.Lock()
		cmd := strings.TrimSpace(string(c.commandBuf))
		c.commandMode = false
		c.commandBuf = c.commandBuf[:0]
		c.mu.Unlock()

		c.printf("\r\n")
		if cmd != "" {
			c.executeCommand(cmd)
		}
		c.renderStatusLine()
		return
	case 27: // ESC
		c.mu.Lock()
		c.commandMode = false
		c.commandBuf = c.commandBuf[:0]
		c.mu.Unlock()
		c.printf("\r\n[debug] command cancelled\r\n")
		c.renderStatusLine()
		return
	case 8, 127: // Backspace
		c.mu.Lock()
		if len(c.commandBuf) > 0 {
			c.commandBuf = c.commandBuf[:len(c.commandBuf)-1]
		}
		buf := string(c.commandBuf)
		c.mu.Unlock()
		c.printf("\r:%s ", buf)
		c.printf("\r:%s", buf)
		return
	default:
		if b < 32 || b > 126 {
			return
		}
		c.mu.Lock()
		c.commandBuf = append(c.commandBuf, rune(b))
		buf := string(c.commandBuf)
		c.mu.Unlock()
		c.printf("\r:%s", buf)
	}
}

func (c *Console) executeCommand(cmd string) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return
	}

	switch parts[0] {
	case "help":
		c.printHelp()
	case "state":
		c.printState()
	case "entities":
		for _, e := range c.server.World().Entities() {
			p := e.Position()
			c.printf("[debug] entity %d %s (%.2f,%.2f,%.2f)\r\n", e.ID, e.Kind, p.X(), p.Y(), p.Z())
		}
	case "tp":
		pos, ok := c.parseVec(parts, "tp")
		if !ok {
			return
		}
		c.submit(sim.Move(c.player.UUID(), pos))
		c.printf("[debug] tp to (%.3f, %.3f, %.3f)\r\n", pos.X(), pos.Y(), pos.Z())
	case "look":
		c.handleLookCommand(parts)
	case "block":
		c.handleBlockCommand(parts)
	case "setblock":
		c.handleSetBlockCommand(parts)
	case "power":
		if len(parts) != 2 {
			c.printf("[debug] usage: :power <value>\r\n")
			return
		}
		power, err := strconv.ParseFloat(parts[1], 64)
		if err != nil || power < 0 {
			c.printf("[debug] invalid power\r\n")
			return
		}
		c.stack.SetPower(power)
		c.printf("[debug] gun power set to %.2f\r\n", power)
	case "chunks":
		c.printChunks()
	case "unload":
		c.handleUnloadCommand(parts)
	case "regen":
		if err := c.server.BuildTerrain(); err != nil {
			c.printf("[debug] regen failed: %v\r\n", err)
			return
		}
		c.printf("[debug] terrain rebuilt (%d chunks)\r\n", c.server.World().Blocks().LoadedChunkCount())
	case "spawn":
		pos := c.player.EyePosition().Add(c.player.LookVector().Mul(crateSpawnDistance))
		e := c.server.SpawnCrate(pos)
		c.printf("[debug] spawned crate %d at (%.2f,%.2f,%.2f)\r\n", e.ID, pos.X(), pos.Y(), pos.Z())
	default:
		c.printf("[debug] unknown command: %s\r\n", parts[0])
	}
}

func (c *Console) handleLookCommand(parts []string) {
	if len(parts) == 2 {
		id, err := strconv.ParseInt(parts[1], 10, 32)
		if err != nil {
			c.printf("[debug] invalid entity id\r\n")
			return
		}
		e, ok := c.server.World().Entity(int32(id))
		if !ok {
			c.printf("[debug] entity %d not found\r\n", id)
			return
		}
		c.lookAt(e.Position())
		c.printf("[debug] look at entity %d\r\n", id)
		return
	}
	if len(parts) == 4 {
		pos, ok := c.parseVec(parts, "look")
		if !ok {
			return
		}
		c.lookAt(pos)
		c.printf("[debug] look at (%.3f, %.3f, %.3f)\r\n", pos.X(), pos.Y(), pos.Z())
		return
	}
	c.printf("[debug] usage: :look <entity_id> or :look <x> <y> <z>\r\n")
}

func (c *Console) handleBlockCommand(parts []string) {
	pos, ok := c.parseBlockPos(parts, 4, "block <x> <y> <z>")
	if !ok {
		return
	}
	st, loaded := c.server.World().BlockState(pos)
	if !loaded {
		c.printf("[debug] block %s: unloaded\r\n", pos)
		return
	}
	c.printf("[debug] block %s: %s state_id=%d hardness=%.2f\r\n", pos, st.Name, st.ID, st.Hardness)
}

func (c *Console) handleSetBlockCommand(parts []string) {
	pos, ok := c.parseBlockPos(parts, 5, "setblock <x> <y> <z> <name>")
	if !ok {
		return
	}
	id, found := c.server.World().Catalog().ByName(parts[4])
	if !found {
		c.printf("[debug] unknown block %q\r\n", parts[4])
		return
	}
	if err := c.server.World().SetBlock(pos, id, c.player.Name(), "console"); err != nil {
		c.printf("[debug] setblock failed: %v\r\n", err)
		return
	}
	c.printf("[debug] block %s set to %s\r\n", pos, parts[4])
}

func (c *Console) printChunks() {
	blocks := c.server.World().Blocks()
	pos := c.player.Position()
	here := world.ChunkOf(int(math.Floor(pos.X())), int(math.Floor(pos.Z())))
	c.printf("[debug] loaded chunks=%d here=(%d,%d) loaded=%v\r\n",
		blocks.LoadedChunkCount(), here.X, here.Z, blocks.IsLoaded(here.X, here.Z))
}

func (c *Console) handleUnloadCommand(parts []string) {
	if len(parts) != 3 {
		c.printf("[debug] usage: :unload <chunk_x> <chunk_z>\r\n")
		return
	}
	cx, err1 := strconv.ParseInt(parts[1], 10, 32)
	cz, err2 := strconv.ParseInt(parts[2], 10, 32)
	if err1 != nil || err2 != nil {
		c.printf("[debug] invalid unload args\r\n")
		return
	}
	blocks := c.server.World().Blocks()
	if !blocks.IsLoaded(int32(cx), int32(cz)) {
		c.printf("[debug] chunk (%d,%d) is not loaded\r\n", cx, cz)
		return
	}
	blocks.UnloadChunk(int32(cx), int32(cz))
	c.printf("[debug] chunk (%d,%d) unloaded\r\n", cx, cz)
}

func (c *Console) parseBlockPos(parts []string, n int, usage string) (world.BlockPos, bool) {
	if len(parts) != n {
		c.printf("[debug] usage: :%s\r\n", usage)
		return world.BlockPos{}, false
	}
	x, err1 := strconv.Atoi(parts[1])
	y, err2 := strconv.Atoi(parts[2])
	z, err3 := strconv.Atoi(parts[3])
	if err1 != nil || err2 != nil || err3 != nil {
		c.printf("[debug] invalid %s args\r\n", parts[0])
		return world.BlockPos{}, false
	}
	return world.BlockPos{X: x, Y: y, Z: z}, true
}

func (c *Console) parseVec(parts []string, name string) (mgl64.Vec3, bool) {
	if len(parts) != 4 {
		c.printf("[debug] usage: :%s <x> <y> <z>\r\n", name)
		return mgl64.Vec3{}, false
	}
	x, err1 := strconv.ParseFloat(parts[1], 64)
	y, err2 := strconv.ParseFloat(parts[2], 64)
	z, err3 := strconv.ParseFloat(parts[3], 64)
	if err1 != nil || err2 != nil || err3 != nil {
		c.printf("[debug] invalid %s args\r\n", name)
		return mgl64.Vec3{}, false
	}
	return mgl64.Vec3{x, y, z}, true
}

func (c *Console) lookAt(target mgl64.Vec3) {
	yaw, pitch := yawPitchTo(c.player.EyePosition(), target)
	c.submit(sim.Aim(c.player.UUID(), yaw, pitch))
}

// yawPitchTo returns the rotation that points from eye at target.
func yawPitchTo(eye, target mgl64.Vec3) (yaw, pitch float64) {
	d := target.Sub(eye)
	yaw = mgl64.RadToDeg(math.Atan2(-d.X(), d.Z()))
	horizontal := math.Hypot(d.X(), d.Z())
	pitch = -mgl64.RadToDeg(math.Atan2(d.Y(), horizontal))
	return yaw, pitch
}

func (c *Console) adjustAim(dyaw, dpitch float64) {
	yaw, pitch := c.player.Rotation()
	c.submit(sim.Aim(c.player.UUID(), yaw+dyaw, pitch+dpitch))
}

// move steps the player horizontally, relative to its yaw.
func (c *Console) move(relYaw float64) {
	yaw, _ := c.player.Rotation()
	dir := world.DirectionFromYawPitch(yaw+relYaw, 0)
	c.submit(sim.Move(c.player.UUID(), c.player.Position().Add(dir.Mul(moveStep))))
}

func (c *Console) toggleTrigger() {
	c.mu.Lock()
	c.trigger = !c.trigger
	pressed := c.trigger
	c.mu.Unlock()
	if pressed {
		c.submit(sim.Use(c.player.UUID(), c.stack))
		return
	}
	c.submit(sim.Release(c.player.UUID()))
}

func (c *Console) releaseTrigger() {
	c.mu.Lock()
	c.trigger = false
	c.mu.Unlock()
	c.submit(sim.Release(c.player.UUID()))
}

func (c *Console) submit(in sim.Intent) {
	if err := c.server.Submit(in); err != nil {
		slog.Debug("debug intent dropped", "kind", in.Kind, "error", err)
	}
}

func (c *Console) printState() {
	pos := c.player.Position()
	yaw, pitch := c.player.Rotation()
	st := c.server.Status(c.player.UUID())
	c.printf("[debug] player pos=(%.3f,%.3f,%.3f) yaw=%.1f pitch=%.1f power=%.2f\r\n",
		pos.X(), pos.Y(), pos.Z(), yaw, pitch, c.stack.Power())
	if !st.Grabbing {
		c.printf("[debug] not grabbing\r\n")
		return
	}
	c.printf("[debug] grabbing %s hold=(%.2f,%.2f,%.2f) use_ticks=%d\r\n",
		st.Target, st.HoldPoint[0], st.HoldPoint[1], st.HoldPoint[2], st.UseTicks)
}

func (c *Console) printHelp() {
	c.printf("[debug] keys:\r\n")
	c.printf("  Arrow Left/Right: yaw +/-5\r\n")
	c.printf("  Arrow Up/Down: pitch +/-5\r\n")
	c.printf("  W/S/A/D: step 0.5 blocks\r\n")
	c.printf("  G: toggle trigger (grab / launch)\r\n")
	c.printf("  X: release trigger\r\n")
	c.printf("  : enter command mode\r\n")
	c.printf("  Q / Ctrl-C: quit\r\n")
	c.printf("[debug] commands:\r\n")
	c.printf("  :state\r\n")
	c.printf("  :entities\r\n")
	c.printf("  :look <entity_id>\r\n")
	c.printf("  :look <x> <y> <z>\r\n")
	c.printf("  :block <x> <y> <z>\r\n")
	c.printf("  :setblock <x> <y> <z> <name>\r\n")
	c.printf("  :tp <x> <y> <z>\r\n")
	c.printf("  :power <value>\r\n")
	c.printf("  :spawn\r\n")
	c.printf("  :chunks\r\n")
	c.printf("  :unload <chunk_x> <chunk_z>\r\n")
	c.printf("  :regen\r\n")
	c.printf("  :help\r\n")
}

func (c *Console) renderStatusLine() {
	c.mu.Lock()
	if c.commandMode {
		c.mu.Unlock()
		return
	}
	trigger := c.trigger
	width := c.statusWidth
	c.mu.Unlock()

	pos := c.player.Position()
	yaw, pitch := c.player.Rotation()
	st := c.server.Status(c.player.UUID())
	target := "-"
	if st.Grabbing {
		target = string(st.Target)
	}

	line := fmt.Sprintf(
		"[TRG:%s | YAW:%.1f PIT:%.1f | X:%.2f Y:%.2f Z:%.2f | HOLD:%s T:%d]",
		boolLabel(trigger), yaw, pitch, pos.X(), pos.Y(), pos.Z(), target, c.server.Tick(),
	)

	padding := ""
	if width > len(line) {
		padding = strings.Repeat(" ", width-len(line))
	}
	c.printf("\r%s%s", line, padding)

	c.mu.Lock()
	if len(line) > c.statusWidth {
		c.statusWidth = len(line)
	}
	c.mu.Unlock()
}

func (c *Console) isCommandMode() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.commandMode
}

func (c *Console) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}

func boolLabel(v bool) string {
	if v {
		return "on"
	}
	return "off"
}
