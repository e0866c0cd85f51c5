package world

import "fmt"

// FlatLayer fills world heights MinY..MaxY (inclusive) with one state.
type FlatLayer struct {
	MinY  int
	MaxY  int
	State int32
}

// FlatSections builds the sections of one chunk column made of layers. Later
// layers overwrite earlier ones where they overlap.
func FlatSections(layers []FlatLayer) ([]ChunkSection, error) {
	sections := make([]ChunkSection, ChunkSectionCount)
	for i := range sections {
		sections[i] = ChunkSection{BlockStates: make([]int32, BlocksPerSection)}
	}
	for _, l := range layers {
		if l.MinY > l.MaxY || l.MinY < ChunkMinY || l.MaxY > ChunkMaxY {
			return nil, fmt.Errorf("flat layer %d..%d outside world height", l.MinY, l.MaxY)
		}
		for y := l.MinY; y <= l.MaxY; y++ {
			for z := 0; z < 16; z++ {
				for x := 0; x < 16; x++ {
					sectionIndex, blockIndex, _ := blockIndexOf(x, y, z)
					sections[sectionIndex].BlockStates[blockIndex] = l.State
				}
			}
		}
	}
	return sections, nil
}

// GenerateFlat drops every loaded chunk and stores a square of flat chunks
// centred on chunk 0,0. It returns the number of chunks stored.
func (bs *BlockStore) GenerateFlat(radiusChunks int32, layers []FlatLayer) (int, error) {
	if radiusChunks < 0 {
		return 0, fmt.Errorf("invalid flat radius %d", radiusChunks)
	}
	sections, err := FlatSections(layers)
	if err != nil {
		return 0, err
	}

	bs.Clear()
	n := 0
	for cx := -radiusChunks; cx <= radiusChunks; cx++ {
		for cz := -radiusChunks; cz <= radiusChunks; cz++ {
			if err := bs.StoreChunk(cx, cz, sections); err != nil {
				return n, fmt.Errorf("store chunk %d,%d: %w", cx, cz, err)
			}
			n++
		}
	}
	return n, nil
}

// ChunkOf returns the chunk column containing the block column x,z.
func ChunkOf(x, z int) ChunkPos {
	return ChunkPos{X: int32(floorDiv16(x)), Z: int32(floorDiv16(z))}
}
