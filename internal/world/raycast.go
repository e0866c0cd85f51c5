package world

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

type BlockHit struct {
	Pos      BlockPos
	State    BlockState
	Distance float64
}

type EntityHit struct {
	Entity   *Entity
	Distance float64
}

// RaycastBlocks walks the voxels along the ray (DDA) and returns the first
// non-air block that accept approves. Rejected blocks are passed through.
// A nil accept takes the first non-air block.
func (w *World) RaycastBlocks(origin, dir mgl64.Vec3, maxDist float64, accept func(BlockHit) bool) (BlockHit, bool) {
	if maxDist <= 0 || isZeroVec(dir) {
		return BlockHit{}, false
	}
	dir = dir.Normalize()
	catalog := w.Catalog()

	x := int(math.Floor(origin.X()))
	y := int(math.Floor(origin.Y()))
	z := int(math.Floor(origin.Z()))

	stepX, tMaxX, tDeltaX := ddaAxis(origin.X(), dir.X(), x)
	stepY, tMaxY, tDeltaY := ddaAxis(origin.Y(), dir.Y(), y)
	stepZ, tMaxZ, tDeltaZ := ddaAxis(origin.Z(), dir.Z(), z)

	distance := 0.0
	for distance <= maxDist {
		if stateID, ok := w.blocks.GetBlockState(x, y, z); ok && stateID != AirState {
			st, _ := catalog.State(stateID)
			st.ID = stateID
			hit := BlockHit{Pos: BlockPos{X: x, Y: y, Z: z}, State: st, Distance: distance}
			if accept == nil || accept(hit) {
				return hit, true
			}
		}

		switch {
		case tMaxX <= tMaxY && tMaxX <= tMaxZ:
			x += stepX
			distance = tMaxX
			tMaxX += tDeltaX
		case tMaxY <= tMaxX && tMaxY <= tMaxZ:
			y += stepY
			distance = tMaxY
			tMaxY += tDeltaY
		default:
			z += stepZ
			distance = tMaxZ
			tMaxZ += tDeltaZ
		}
	}
	return BlockHit{}, false
}

// RaycastEntities returns the entity whose bounds the ray enters first
// within maxDist. Entities are tested in ascending id order and only a
// strictly nearer hit replaces the current one. exclude may be nil.
func (w *World) RaycastEntities(origin, dir mgl64.Vec3, maxDist float64, exclude func(*Entity) bool) (EntityHit, bool) {
	if maxDist <= 0 || isZeroVec(dir) {
		return EntityHit{}, false
	}
	dir = dir.Normalize()

	var best EntityHit
	found := false
	for _, e := range w.Entities() {
		if !e.Alive() || (exclude != nil && exclude(e)) {
			continue
		}
		t, ok := e.Bounds().RayIntersection(origin, dir)
		if !ok || t > maxDist {
			continue
		}
		if !found || t < best.Distance {
			best = EntityHit{Entity: e, Distance: t}
			found = true
		}
	}
	return best, found
}

func ddaAxis(origin, dir float64, cell int) (step int, tMax float64, tDelta float64) {
	if math.Abs(dir) < 1e-9 {
		return 0, math.Inf(1), math.Inf(1)
	}
	if dir > 0 {
		step = 1
		tMax = (float64(cell+1) - origin) / dir
		tDelta = 1.0 / dir
		return
	}
	step = -1
	inv := -dir
	tMax = (origin - float64(cell)) / inv
	tDelta = 1.0 / inv
	return
}

func isZeroVec(v mgl64.Vec3) bool {
	return v.Len() < 1e-9
}
