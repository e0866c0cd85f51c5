package world

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// AirState is the state id of empty space in every catalog.
const AirState int32 = 0

// Unbreakable marks a block no power level can lift.
const Unbreakable = -1.0

var ErrEmptyCatalog = errors.New("block catalog has no blocks")

// BlockState describes one block state id.
type BlockState struct {
	ID    int32  `yaml:"-"`
	Name  string `yaml:"name"`
	Solid bool   `yaml:"solid"`
	Fluid bool   `yaml:"fluid"`
	// Hardness is the power a gravity gun needs to lift the block.
	Hardness float64 `yaml:"hardness"`
}

// Grabbable reports whether a tool with the given power may lift the block.
func (s BlockState) Grabbable(power float64) bool {
	if !s.Solid || s.Fluid || s.ID == AirState {
		return false
	}
	if s.Hardness < 0 {
		return false
	}
	return s.Hardness <= power
}

type BlockCatalog struct {
	states []BlockState
	byName map[string]int32
}

type catalogFile struct {
	Blocks []BlockState `yaml:"blocks"`
}

func DefaultCatalog() *BlockCatalog {
	c, _ := NewCatalog([]BlockState{
		{Name: "air"},
		{Name: "stone", Solid: true, Hardness: 1.5},
		{Name: "dirt", Solid: true, Hardness: 0.5},
		{Name: "grass_block", Solid: true, Hardness: 0.6},
		{Name: "sand", Solid: true, Hardness: 0.5},
		{Name: "oak_planks", Solid: true, Hardness: 2},
		{Name: "cobblestone", Solid: true, Hardness: 2},
		{Name: "obsidian", Solid: true, Hardness: 50},
		{Name: "bedrock", Solid: true, Hardness: Unbreakable},
		{Name: "water", Fluid: true, Hardness: 100},
		{Name: "glass", Solid: true, Hardness: 0.3},
	})
	return c
}

// NewCatalog assigns state ids in order. The first entry must be air.
func NewCatalog(states []BlockState) (*BlockCatalog, error) {
	if len(states) == 0 {
		return nil, ErrEmptyCatalog
	}
	c := &BlockCatalog{
		states: make([]BlockState, len(states)),
		byName: make(map[string]int32, len(states)),
	}
	for i, st := range states {
		name := normalizeBlockName(st.Name)
		if name == "" {
			return nil, fmt.Errorf("block %d has no name", i)
		}
		if _, dup := c.byName[name]; dup {
			return nil, fmt.Errorf("duplicate block name %q", name)
		}
		st.ID = int32(i)
		st.Name = name
		c.states[i] = st
		c.byName[name] = st.ID
	}
	if c.states[0].Name != "air" {
		return nil, fmt.Errorf("first block must be air, got %q", c.states[0].Name)
	}
	c.states[0].Solid = false
	return c, nil
}

func LoadCatalog(path string) (*BlockCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read block catalog: %w", err)
	}
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse block catalog: %w", err)
	}
	return NewCatalog(f.Blocks)
}

func (c *BlockCatalog) State(id int32) (BlockState, bool) {
	if c == nil || id < 0 || int(id) >= len(c.states) {
		return BlockState{}, false
	}
	return c.states[id], true
}

func (c *BlockCatalog) ByName(name string) (int32, bool) {
	if c == nil {
		return 0, false
	}
	id, ok := c.byName[normalizeBlockName(name)]
	return id, ok
}

func (c *BlockCatalog) Name(id int32) string {
	if st, ok := c.State(id); ok {
		return st.Name
	}
	return fmt.Sprintf("state_%d", id)
}

func (c *BlockCatalog) IsSolid(id int32) bool {
	st, ok := c.State(id)
	return ok && st.Solid
}

func (c *BlockCatalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.states)
}

func normalizeBlockName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.TrimPrefix(name, "minecraft:")
}
