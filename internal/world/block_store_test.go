package world

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blocks.yaml")
	content := `blocks:
  - name: air
  - name: minecraft:Stone
    solid: true
    hardness: 1.5
  - name: water
    fluid: true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp catalog failed: %v", err)
	}

	catalog, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("LoadCatalog failed: %v", err)
	}
	if catalog.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", catalog.Len())
	}
	id, ok := catalog.ByName("stone")
	if !ok || id != 1 {
		t.Fatalf("ByName(stone) = (%d,%v), want (1,true)", id, ok)
	}
	st, _ := catalog.State(id)
	if !st.Solid || st.Hardness != 1.5 || st.Name != "stone" {
		t.Fatalf("stone state = %+v", st)
	}
	if catalog.IsSolid(2) {
		t.Fatalf("water should not be solid")
	}
	if got := catalog.Name(99); got != "state_99" {
		t.Fatalf("Name(99) = %q, want state_99", got)
	}
}

func TestNewCatalogValidation(t *testing.T) {
	tests := []struct {
		name   string
		states []BlockState
	}{
		{"empty", nil},
		{"first not air", []BlockState{{Name: "stone", Solid: true}}},
		{"missing name", []BlockState{{Name: "air"}, {Name: " "}}},
		{"duplicate", []BlockState{{Name: "air"}, {Name: "dirt"}, {Name: "DIRT"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewCatalog(tt.states); err == nil {
				t.Fatalf("NewCatalog should fail")
			}
		})
	}
}

func TestBlockStateGrabbable(t *testing.T) {
	catalog := DefaultCatalog()
	tests := []struct {
		block string
		power float64
		want  bool
	}{
		{"air", 100, false},
		{"dirt", 1, true},
		{"stone", 1, false},
		{"stone", 1.5, true},
		{"water", 1000, false},
		{"bedrock", 1000, false},
	}
	for _, tt := range tests {
		id, ok := catalog.ByName(tt.block)
		if !ok {
			t.Fatalf("default catalog has no %q", tt.block)
		}
		st, _ := catalog.State(id)
		if got := st.Grabbable(tt.power); got != tt.want {
			t.Errorf("%s.Grabbable(%v) = %v, want %v", tt.block, tt.power, got, tt.want)
		}
	}
}

func TestBlockStoreStoreGetAndUnloadChunk(t *testing.T) {
	bs := NewBlockStore(DefaultCatalog())

	sections := makeFilledSections(0)

	// Global (2,70,3) belongs to chunk (0,0), section index 8, localY 6.
	sectionIndex := (70 - ChunkMinY) / ChunkSectionHeight
	localY := (70 - ChunkMinY) % ChunkSectionHeight
	index := localY*16*16 + 3*16 + 2
	sections[sectionIndex].BlockStates[index] = 1

	if err := bs.StoreChunk(0, 0, sections); err != nil {
		t.Fatalf("StoreChunk failed: %v", err)
	}

	if !bs.IsLoaded(0, 0) {
		t.Fatalf("chunk (0,0) should be loaded")
	}
	if bs.LoadedChunkCount() != 1 {
		t.Fatalf("LoadedChunkCount = %d, want 1", bs.LoadedChunkCount())
	}

	state, ok := bs.GetBlockState(2, 70, 3)
	if !ok {
		t.Fatalf("GetBlockState returned not loaded for existing chunk")
	}
	if state != 1 {
		t.Fatalf("GetBlockState = %d, want 1", state)
	}
	if !bs.IsSolid(2, 70, 3) {
		t.Fatalf("IsSolid should be true for state 1")
	}

	bs.UnloadChunk(0, 0)
	if bs.IsLoaded(0, 0) {
		t.Fatalf("chunk (0,0) should be unloaded")
	}
	if _, ok := bs.GetBlockState(2, 70, 3); ok {
		t.Fatalf("GetBlockState should return false after unload")
	}
}

func TestBlockStoreNegativeCoordinatesAndSolidEdgeCases(t *testing.T) {
	bs := NewBlockStore(DefaultCatalog())

	sections := makeFilledSections(0)
	// Global (-1,-64,-1) belongs to chunk (-1,-1), local (15,0,15).
	index := 0*16*16 + 15*16 + 15
	sections[0].BlockStates[index] = 1
	if err := bs.StoreChunk(-1, -1, sections); err != nil {
		t.Fatalf("StoreChunk failed: %v", err)
	}

	state, ok := bs.GetBlockState(-1, -64, -1)
	if !ok || state != 1 {
		t.Fatalf("GetBlockState(-1,-64,-1) = (%d,%v), want (1,true)", state, ok)
	}
	if !bs.IsSolid(-1, -64, -1) {
		t.Fatalf("IsSolid should be true at (-1,-64,-1)")
	}

	if bs.IsSolid(-1, ChunkMinY-1, -1) {
		t.Fatalf("IsSolid should be false when Y is below minimum")
	}
	if bs.IsSolid(-1, ChunkMaxY+1, -1) {
		t.Fatalf("IsSolid should be false when Y is above maximum")
	}
	if bs.IsSolid(0, 64, 0) {
		t.Fatalf("IsSolid should be false for unloaded chunk")
	}
}

func TestBlockStoreStoreChunkValidation(t *testing.T) {
	bs := NewBlockStore(nil)

	if err := bs.StoreChunk(0, 0, make([]ChunkSection, ChunkSectionCount-1)); err == nil {
		t.Fatalf("expected error when section count is invalid")
	}

	sections := makeFilledSections(0)
	sections[3].BlockStates = make([]int32, BlocksPerSection-1)
	if err := bs.StoreChunk(0, 0, sections); err == nil {
		t.Fatalf("expected error when section block-state count is invalid")
	}
}

func TestSwapBlockState(t *testing.T) {
	bs := NewBlockStore(nil)
	bs.EnsureChunk(0, 0)

	if ok := bs.SetBlockState(2, 70, 3, 1); !ok {
		t.Fatalf("SetBlockState should return true for loaded block")
	}
	prev, ok := bs.SwapBlockState(2, 70, 3, 4)
	if !ok || prev != 1 {
		t.Fatalf("SwapBlockState = (%d,%v), want (1,true)", prev, ok)
	}
	if got, _ := bs.GetBlockState(2, 70, 3); got != 4 {
		t.Fatalf("GetBlockState = %d, want 4", got)
	}
	if ok := bs.SetBlockState(40, 70, 3, 1); ok {
		t.Fatalf("SetBlockState should return false for unloaded chunk")
	}
}

func TestFillLoadsChunks(t *testing.T) {
	bs := NewBlockStore(nil)

	n := bs.Fill(BlockPos{X: 15, Y: 0, Z: -1}, BlockPos{X: 16, Y: 1, Z: 0}, 1)
	if n != 8 {
		t.Fatalf("Fill wrote %d blocks, want 8", n)
	}
	if bs.LoadedChunkCount() != 4 {
		t.Fatalf("LoadedChunkCount = %d, want 4", bs.LoadedChunkCount())
	}
	for _, p := range [][3]int{{15, 0, -1}, {16, 1, 0}, {16, 0, -1}} {
		if !bs.IsSolid(p[0], p[1], p[2]) {
			t.Fatalf("block %v should be solid after Fill", p)
		}
	}
	if bs.IsSolid(15, 2, 0) {
		t.Fatalf("block above the filled box should be air")
	}

	bs.Clear()
	if bs.LoadedChunkCount() != 0 {
		t.Fatalf("LoadedChunkCount after Clear = %d, want 0", bs.LoadedChunkCount())
	}
}

func makeFilledSections(fill int32) []ChunkSection {
	sections := make([]ChunkSection, ChunkSectionCount)
	for i := range sections {
		states := make([]int32, BlocksPerSection)
		for j := range states {
			states[j] = fill
		}
		sections[i] = ChunkSection{BlockStates: states}
	}
	return sections
}
