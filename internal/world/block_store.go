package world

import (
	"fmt"
	"sync"
)

const (
	ChunkMinY          = -64
	ChunkMaxY          = 319
	ChunkSectionCount  = 24
	ChunkSectionHeight = 16
	BlocksPerSection   = 16 * 16 * 16
)

type ChunkPos struct {
	X int32
	Z int32
}

type ChunkSection struct {
	BlockStates []int32
}

type Chunk struct {
	Sections []ChunkSection
}

// BlockStore holds block states in 16x16 column chunks. It is safe for
// concurrent use and satisfies physics.BlockStore.
type BlockStore struct {
	mu      sync.RWMutex
	chunks  map[ChunkPos]*Chunk
	catalog *BlockCatalog
}

func NewBlockStore(catalog *BlockCatalog) *BlockStore {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &BlockStore{
		chunks:  make(map[ChunkPos]*Chunk),
		catalog: catalog,
	}
}

func (bs *BlockStore) Catalog() *BlockCatalog { return bs.catalog }

func (bs *BlockStore) StoreChunk(chunkX, chunkZ int32, sections []ChunkSection) error {
	if len(sections) != ChunkSectionCount {
		return fmt.Errorf("invalid section count: got %d, want %d", len(sections), ChunkSectionCount)
	}

	chunk := &Chunk{
		Sections: make([]ChunkSection, ChunkSectionCount),
	}

	for i := range sections {
		if len(sections[i].BlockStates) != BlocksPerSection {
			return fmt.Errorf(
				"invalid section %d block state count: got %d, want %d",
				i,
				len(sections[i].BlockStates),
				BlocksPerSection,
			)
		}

		copied := make([]int32, BlocksPerSection)
		copy(copied, sections[i].BlockStates)
		chunk.Sections[i] = ChunkSection{BlockStates: copied}
	}

	bs.mu.Lock()
	defer bs.mu.Unlock()
	if bs.chunks == nil {
		bs.chunks = make(map[ChunkPos]*Chunk)
	}
	bs.chunks[ChunkPos{X: chunkX, Z: chunkZ}] = chunk
	return nil
}

// EnsureChunk creates an all-air chunk if none is loaded at the position.
func (bs *BlockStore) EnsureChunk(chunkX, chunkZ int32) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	bs.ensureChunkLocked(ChunkPos{X: chunkX, Z: chunkZ})
}

func (bs *BlockStore) ensureChunkLocked(pos ChunkPos) *Chunk {
	if bs.chunks == nil {
		bs.chunks = make(map[ChunkPos]*Chunk)
	}
	if chunk, ok := bs.chunks[pos]; ok {
		return chunk
	}
	chunk := &Chunk{Sections: make([]ChunkSection, ChunkSectionCount)}
	for i := range chunk.Sections {
		chunk.Sections[i] = ChunkSection{BlockStates: make([]int32, BlocksPerSection)}
	}
	bs.chunks[pos] = chunk
	return chunk
}

// Fill sets every block in the inclusive box to stateID, loading chunks as
// needed. It returns the number of blocks written.
func (bs *BlockStore) Fill(min, max BlockPos, stateID int32) int {
	if min.X > max.X {
		min.X, max.X = max.X, min.X
	}
	if min.Y > max.Y {
		min.Y, max.Y = max.Y, min.Y
	}
	if min.Z > max.Z {
		min.Z, max.Z = max.Z, min.Z
	}

	bs.mu.Lock()
	defer bs.mu.Unlock()

	n := 0
	for x := min.X; x <= max.X; x++ {
		for z := min.Z; z <= max.Z; z++ {
			chunk := bs.ensureChunkLocked(ChunkPos{X: int32(floorDiv16(x)), Z: int32(floorDiv16(z))})
			for y := min.Y; y <= max.Y; y++ {
				sectionIndex, blockIndex, ok := blockIndexOf(x, y, z)
				if !ok {
					continue
				}
				chunk.Sections[sectionIndex].BlockStates[blockIndex] = stateID
				n++
			}
		}
	}
	return n
}

func (bs *BlockStore) UnloadChunk(chunkX, chunkZ int32) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	delete(bs.chunks, ChunkPos{X: chunkX, Z: chunkZ})
}

func (bs *BlockStore) Clear() {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	bs.chunks = make(map[ChunkPos]*Chunk)
}

func (bs *BlockStore) SetBlockState(x, y, z int, stateID int32) bool {
	_, ok := bs.SwapBlockState(x, y, z, stateID)
	return ok
}

// SwapBlockState writes stateID and returns the state it replaced.
func (bs *BlockStore) SwapBlockState(x, y, z int, stateID int32) (int32, bool) {
	sectionIndex, blockIndex, ok := blockIndexOf(x, y, z)
	if !ok {
		return 0, false
	}

	bs.mu.Lock()
	defer bs.mu.Unlock()

	chunk, ok := bs.chunks[ChunkPos{X: int32(floorDiv16(x)), Z: int32(floorDiv16(z))}]
	if !ok {
		return 0, false
	}
	states := chunk.Sections[sectionIndex].BlockStates
	prev := states[blockIndex]
	states[blockIndex] = stateID
	return prev, true
}

func (bs *BlockStore) IsLoaded(chunkX, chunkZ int32) bool {
	bs.mu.RLock()
	defer bs.mu.RUnlock()
	_, ok := bs.chunks[ChunkPos{X: chunkX, Z: chunkZ}]
	return ok
}

func (bs *BlockStore) LoadedChunkCount() int {
	bs.mu.RLock()
	defer bs.mu.RUnlock()
	return len(bs.chunks)
}

func (bs *BlockStore) GetBlockState(x, y, z int) (int32, bool) {
	sectionIndex, blockIndex, ok := blockIndexOf(x, y, z)
	if !ok {
		return 0, false
	}

	bs.mu.RLock()
	defer bs.mu.RUnlock()

	chunk, ok := bs.chunks[ChunkPos{X: int32(floorDiv16(x)), Z: int32(floorDiv16(z))}]
	if !ok {
		return 0, false
	}
	return chunk.Sections[sectionIndex].BlockStates[blockIndex], true
}

func (bs *BlockStore) IsSolid(x, y, z int) bool {
	stateID, ok := bs.GetBlockState(x, y, z)
	if !ok {
		return false
	}
	return bs.catalog.IsSolid(stateID)
}

func blockIndexOf(x, y, z int) (sectionIndex, blockIndex int, ok bool) {
	if y < ChunkMinY || y > ChunkMaxY {
		return 0, 0, false
	}
	localX := floorMod16(x)
	localZ := floorMod16(z)
	sectionIndex = (y - ChunkMinY) / ChunkSectionHeight
	localY := (y - ChunkMinY) % ChunkSectionHeight
	blockIndex = localY*16*16 + localZ*16 + localX
	return sectionIndex, blockIndex, true
}

func floorDiv16(v int) int {
	q := v / 16
	if v < 0 && v%16 != 0 {
		q--
	}
	return q
}

func floorMod16(v int) int {
	m := v % 16
	if m < 0 {
		m += 16
	}
	return m
}
