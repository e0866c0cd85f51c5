package world

import (
	"errors"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"

	"github.com/LeoCTH/gravity-guns/internal/event"
	"github.com/LeoCTH/gravity-guns/internal/physics"
)

type Side int

const (
	SideServer Side = iota
	SideClient
)

const (
	AuditSetBlock           = "SET_BLOCK"
	AuditClearBlock         = "CLEAR_BLOCK"
	AuditSpawnBlockEntity   = "SPAWN_BLOCK_ENTITY"
	AuditDespawnBlockEntity = "DESPAWN_BLOCK_ENTITY"
)

var ErrNotLoaded = errors.New("block is not in a loaded chunk")

type AuditEntry struct {
	Tick     uint64 `json:"tick"`
	Time     string `json:"time"`
	Actor    string `json:"actor"`
	Action   string `json:"action"`
	Pos      [3]int `json:"pos"`
	From     int32  `json:"from"`
	To       int32  `json:"to"`
	EntityID int32  `json:"entity_id,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

type Config struct {
	Catalog *BlockCatalog
	// Blocks shares an existing store, e.g. the one the physics space
	// collides against. It wins over Catalog.
	Blocks *BlockStore
	Side   Side
	// Space receives the bodies of spawned entities. Optional.
	Space *physics.Space
	Bus   *event.Bus
	Audit AuditLogger
}

// World holds blocks, entities and players. All methods are safe for
// concurrent use.
type World struct {
	blocks *BlockStore
	side   Side
	space  *physics.Space
	bus    *event.Bus
	audit  AuditLogger
	log    *slog.Logger

	mu       sync.RWMutex
	entities map[int32]*Entity
	players  map[uuid.UUID]*Player
	nextID   atomic.Int32
}

func New(cfg Config) *World {
	blocks := cfg.Blocks
	if blocks == nil {
		blocks = NewBlockStore(cfg.Catalog)
	}
	return &World{
		blocks:   blocks,
		side:     cfg.Side,
		space:    cfg.Space,
		bus:      cfg.Bus,
		audit:    cfg.Audit,
		log:      slog.Default().With("component", "world"),
		entities: make(map[int32]*Entity),
		players:  make(map[uuid.UUID]*Player),
	}
}

// Authoritative reports whether this world owns the simulation. Client
// worlds only mirror state.
func (w *World) Authoritative() bool { return w.side == SideServer }

func (w *World) Blocks() *BlockStore { return w.blocks }

func (w *World) Catalog() *BlockCatalog { return w.blocks.catalog }

func (w *World) Space() *physics.Space { return w.space }

func (w *World) Bus() *event.Bus { return w.bus }

func (w *World) BlockState(pos BlockPos) (BlockState, bool) {
	id, ok := w.blocks.GetBlockState(pos.X, pos.Y, pos.Z)
	if !ok {
		return BlockState{}, false
	}
	return w.Catalog().State(id)
}

// SetBlock writes stateID at pos and records the change.
func (w *World) SetBlock(pos BlockPos, stateID int32, actor, reason string) error {
	prev, ok := w.blocks.SwapBlockState(pos.X, pos.Y, pos.Z, stateID)
	if !ok {
		return ErrNotLoaded
	}
	action := AuditSetBlock
	if stateID == AirState {
		action = AuditClearBlock
	}
	w.Audit(AuditEntry{Actor: actor, Action: action, Pos: pos.Array(), From: prev, To: stateID, Reason: reason})
	return nil
}

// ClearBlock replaces the block at pos with air and returns the old state.
func (w *World) ClearBlock(pos BlockPos, actor, reason string) (int32, error) {
	prev, ok := w.blocks.SwapBlockState(pos.X, pos.Y, pos.Z, AirState)
	if !ok {
		return 0, ErrNotLoaded
	}
	w.Audit(AuditEntry{Actor: actor, Action: AuditClearBlock, Pos: pos.Array(), From: prev, To: AirState, Reason: reason})
	return prev, nil
}

// Audit stamps entry and hands it to the audit logger, if any.
func (w *World) Audit(entry AuditEntry) {
	if w.audit == nil {
		return
	}
	if w.space != nil && entry.Tick == 0 {
		entry.Tick = w.space.Tick()
	}
	if entry.Time == "" {
		entry.Time = time.Now().UTC().Format(time.RFC3339Nano)
	}
	if err := w.audit.WriteAudit(entry); err != nil {
		w.log.Warn("Audit write failed", "action", entry.Action, "error", err)
	}
}

// SpawnEntity registers a new entity. A non-nil body is added to the world's
// physics space and removed again together with the entity.
func (w *World) SpawnEntity(kind string, position mgl64.Vec3, width, height float64, body *physics.RigidBody) *Entity {
	e := &Entity{
		ID:     w.nextID.Add(1),
		UUID:   uuid.New(),
		Kind:   kind,
		Width:  width,
		Height: height,
		body:   body,
		pos:    position,
	}
	if body != nil && w.space != nil {
		w.space.AddBody(body)
	}

	w.mu.Lock()
	w.entities[e.ID] = e
	w.mu.Unlock()

	w.publish(event.EventEntitySpawned, event.EntityEvent{EntityID: e.ID, Kind: kind})
	return e
}

// RemoveEntity drops the entity and its body. Unknown ids report false.
func (w *World) RemoveEntity(id int32) bool {
	w.mu.Lock()
	e, ok := w.entities[id]
	if ok {
		delete(w.entities, id)
	}
	w.mu.Unlock()
	if !ok {
		return false
	}

	e.removed.Store(true)
	if e.body != nil && w.space != nil {
		w.space.RemoveBody(e.body)
	}
	w.publish(event.EventEntityRemoved, event.EntityEvent{EntityID: e.ID, Kind: e.Kind})
	return true
}

func (w *World) Entity(id int32) (*Entity, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	e, ok := w.entities[id]
	return e, ok
}

// Entities returns a snapshot ordered by ascending id.
func (w *World) Entities() []*Entity {
	w.mu.RLock()
	out := make([]*Entity, 0, len(w.entities))
	for _, e := range w.entities {
		out = append(out, e)
	}
	w.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (w *World) AddPlayer(name string, feet mgl64.Vec3) *Player {
	p := &Player{uuid: uuid.New(), name: name, feet: feet}
	p.entity = w.SpawnEntity(KindPlayer, feet.Add(mgl64.Vec3{0, PlayerHeight / 2, 0}), PlayerWidth, PlayerHeight, nil)
	p.entity.UUID = p.uuid

	w.mu.Lock()
	w.players[p.uuid] = p
	w.mu.Unlock()
	w.log.Info("Player joined", "name", name, "uuid", p.uuid)
	return p
}

func (w *World) RemovePlayer(id uuid.UUID) bool {
	w.mu.Lock()
	p, ok := w.players[id]
	if ok {
		delete(w.players, id)
	}
	w.mu.Unlock()
	if !ok {
		return false
	}
	w.RemoveEntity(p.entity.ID)
	w.log.Info("Player left", "name", p.name, "uuid", id)
	return true
}

func (w *World) Player(id uuid.UUID) (*Player, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	p, ok := w.players[id]
	return p, ok
}

func (w *World) Players() []*Player {
	w.mu.RLock()
	out := make([]*Player, 0, len(w.players))
	for _, p := range w.players {
		out = append(out, p)
	}
	w.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].entity.ID < out[j].entity.ID })
	return out
}

func (w *World) publish(name string, evt any) {
	if w.bus != nil {
		w.bus.Publish(name, evt)
	}
}
