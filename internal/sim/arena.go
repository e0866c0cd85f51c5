package sim

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/LeoCTH/gravity-guns/internal/world"
)

const (
	ArenaFloorY       = 0
	ArenaRadiusChunks = 2
	arenaBedrockY     = -1
)

var arenaRow = []string{"dirt", "sand", "glass", "stone", "cobblestone", "oak_planks", "obsidian"}

// BuildTerrain replaces the loaded terrain with a flat arena: bedrock under a
// grass floor, a row of one block per hardness class in front of spawn and a
// water source behind it. Entities are left alone.
func (s *Server) BuildTerrain() error {
	blocks := s.world.Blocks()
	catalog := s.world.Catalog()

	id := func(name string) int32 {
		v, ok := catalog.ByName(name)
		if !ok {
			s.log.Warn("Arena block missing from catalog", "name", name)
		}
		return v
	}

	chunks, err := blocks.GenerateFlat(ArenaRadiusChunks, []world.FlatLayer{
		{MinY: arenaBedrockY, MaxY: arenaBedrockY, State: id("bedrock")},
		{MinY: ArenaFloorY, MaxY: ArenaFloorY, State: id("grass_block")},
	})
	if err != nil {
		return fmt.Errorf("generate arena: %w", err)
	}

	for i, name := range arenaRow {
		x := i*2 - len(arenaRow)
		blocks.SetBlockState(x, ArenaFloorY+1, 5, id(name))
	}
	blocks.Fill(
		world.BlockPos{X: 4, Y: ArenaFloorY + 1, Z: -4},
		world.BlockPos{X: 5, Y: ArenaFloorY + 2, Z: -3},
		id("sand"),
	)
	blocks.SetBlockState(0, ArenaFloorY+1, -5, id("water"))

	s.log.Info("Arena terrain ready", "chunks", chunks)
	return nil
}

// BuildArena lays out the terrain and drops three crates in front of spawn.
func (s *Server) BuildArena() error {
	if err := s.BuildTerrain(); err != nil {
		return err
	}
	for i := 0; i < 3; i++ {
		s.SpawnCrate(mgl64.Vec3{float64(i*2) - 1.5, ArenaFloorY + 1.5, 3.5})
	}
	s.log.Info("Arena ready", "entities", len(s.world.Entities()))
	return nil
}
