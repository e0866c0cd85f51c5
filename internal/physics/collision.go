package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

type BlockStore interface {
	IsSolid(x, y, z int) bool
}

type AABB struct {
	Min mgl64.Vec3
	Max mgl64.Vec3
}

// BoxAround returns the box of the given half extents centred on center.
func BoxAround(center, halfExtents mgl64.Vec3) AABB {
	return AABB{
		Min: center.Sub(halfExtents),
		Max: center.Add(halfExtents),
	}
}

func (a AABB) Intersects(b AABB) bool {
	return a.Min[0] < b.Max[0] &&
		a.Max[0] > b.Min[0] &&
		a.Min[1] < b.Max[1] &&
		a.Max[1] > b.Min[1] &&
		a.Min[2] < b.Max[2] &&
		a.Max[2] > b.Min[2]
}

// RayIntersection returns the smallest t >= 0 with origin+dir*t inside the
// box (slab method).
func (a AABB) RayIntersection(origin, dir mgl64.Vec3) (float64, bool) {
	tMin := 0.0
	tMax := math.Inf(1)
	for axis := 0; axis < 3; axis++ {
		if nearlyZero(dir[axis]) {
			if origin[axis] < a.Min[axis] || origin[axis] > a.Max[axis] {
				return 0, false
			}
			continue
		}
		inv := 1.0 / dir[axis]
		t1 := (a.Min[axis] - origin[axis]) * inv
		t2 := (a.Max[axis] - origin[axis]) * inv
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tMin = math.Max(tMin, t1)
		tMax = math.Min(tMax, t2)
		if tMin > tMax {
			return 0, false
		}
	}
	return tMin, true
}

func CollidesWithBlock(aabb AABB, blockStore BlockStore) bool {
	if blockStore == nil {
		return false
	}

	minX, maxX := floorForMin(aabb.Min[0]), floorForMax(aabb.Max[0])
	minY, maxY := floorForMin(aabb.Min[1]), floorForMax(aabb.Max[1])
	minZ, maxZ := floorForMin(aabb.Min[2]), floorForMax(aabb.Max[2])

	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			for z := minZ; z <= maxZ; z++ {
				if blockStore.IsSolid(x, y, z) {
					return true
				}
			}
		}
	}
	return false
}

// ResolveMovement moves box by delta one axis at a time (Y, X, Z), stopping
// each axis at the first solid block. It returns the displacement actually
// applied and which axes were blocked.
func ResolveMovement(box AABB, delta mgl64.Vec3, blockStore BlockStore) (mgl64.Vec3, [3]bool) {
	var moved mgl64.Vec3
	var blocked [3]bool
	for _, axis := range [3]int{1, 0, 2} {
		allowed := sweepAxis(box, axis, delta[axis], blockStore)
		if !nearlyEqual(allowed, delta[axis]) {
			blocked[axis] = true
		}
		moved[axis] = allowed
		box.Min[axis] += allowed
		box.Max[axis] += allowed
	}
	return moved, blocked
}

func sweepAxis(box AABB, axis int, delta float64, blockStore BlockStore) float64 {
	if blockStore == nil || nearlyZero(delta) {
		return delta
	}

	a1, a2 := (axis+1)%3, (axis+2)%3
	lo1, hi1 := floorForMin(box.Min[a1]), floorForMax(box.Max[a1])
	lo2, hi2 := floorForMin(box.Min[a2]), floorForMax(box.Max[a2])

	solidAt := func(c, i, j int) bool {
		var cell [3]int
		cell[axis], cell[a1], cell[a2] = c, i, j
		return blockStore.IsSolid(cell[0], cell[1], cell[2])
	}
	layerSolid := func(c int) bool {
		for i := lo1; i <= hi1; i++ {
			for j := lo2; j <= hi2; j++ {
				if solidAt(c, i, j) {
					return true
				}
			}
		}
		return false
	}

	allowed := delta
	if delta > 0 {
		start := int(math.Floor(box.Max[axis]))
		end := int(math.Floor(box.Max[axis] + delta))
		for c := start; c <= end; c++ {
			if layerSolid(c) {
				allowed = math.Min(allowed, float64(c)-box.Max[axis])
				break
			}
		}
		return math.Max(allowed, 0)
	}

	start := int(math.Floor(box.Min[axis] + delta))
	end := int(math.Floor(box.Min[axis] - CollisionAxisTolerance))
	for c := end; c >= start; c-- {
		if layerSolid(c) {
			allowed = math.Max(allowed, float64(c+1)-box.Min[axis])
			break
		}
	}
	return math.Min(allowed, 0)
}

func floorForMin(v float64) int {
	return int(math.Floor(v + CollisionAxisTolerance))
}

func floorForMax(v float64) int {
	return int(math.Floor(v - CollisionAxisTolerance))
}

func nearlyZero(v float64) bool {
	return math.Abs(v) <= CollisionAxisTolerance
}

func nearlyEqual(a, b float64) bool {
	return math.Abs(a-b) <= CollisionAxisTolerance
}
