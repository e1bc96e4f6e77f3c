// Package systems implements the per-tick machinery of the engine: the
// uniform grid neighbor index, the integrator, and the four steering
// algorithms with their parameter records.
package systems

import "github.com/pthm-cable/swarm/vmath"

// bruteForceThreshold is the agent count below which radius queries scan
// all agents directly. Cell bookkeeping costs more than it saves there.
const bruteForceThreshold = 32

// cellKey addresses one grid cell at coordinates floor(x/h).
type cellKey struct {
	X, Y, Z int32
}

// Neighbor holds a nearby agent with precomputed spatial data, so
// callers do not recompute deltas and distances in their inner loops.
type Neighbor struct {
	J      int
	Delta  vmath.Vec3 // x_j - query point
	DistSq float64
}

// SpatialGrid provides expected O(k) neighbor lookups over R^3 using a
// hash of uniform cells. The cell side equals the largest radius the
// active algorithm queries with, so any query touches at most 27 cells.
// Rebuild is not incremental; the engine rebuilds every tick.
type SpatialGrid struct {
	cellSize float64
	cells    map[cellKey][]int
	points   []vmath.Vec3
}

// NewSpatialGrid creates a grid with the given cell side.
func NewSpatialGrid(cellSize float64) *SpatialGrid {
	if cellSize <= 0 {
		cellSize = 1
	}
	return &SpatialGrid{
		cellSize: cellSize,
		cells:    make(map[cellKey][]int),
	}
}

// CellSize returns the current cell side.
func (g *SpatialGrid) CellSize() float64 {
	return g.cellSize
}

// SetCellSize changes the cell side. The grid must be rebuilt before
// the next query.
func (g *SpatialGrid) SetCellSize(h float64) {
	if h > 0 {
		g.cellSize = h
	}
}

// Rebuild clears the grid and reinserts all points in O(N). Cell slices
// are retained across rebuilds to avoid steady-state allocation.
func (g *SpatialGrid) Rebuild(points []vmath.Vec3) {
	for k := range g.cells {
		g.cells[k] = g.cells[k][:0]
	}
	g.points = points
	if len(points) < bruteForceThreshold {
		return
	}
	for i, p := range points {
		k := g.keyFor(p)
		g.cells[k] = append(g.cells[k], i)
	}
}

// ForEachNeighbor calls fn for every index j with ||x_j - p|| <= r.
// Ties at exactly r are included. The index self is skipped when >= 0.
// Visit order is deterministic for a fixed point set.
func (g *SpatialGrid) ForEachNeighbor(p vmath.Vec3, r float64, self int, fn func(n Neighbor)) {
	rsq := r * r
	if len(g.points) < bruteForceThreshold {
		for j, q := range g.points {
			if j == self {
				continue
			}
			d := q.Sub(p)
			dsq := d.NormSq()
			if dsq <= rsq {
				fn(Neighbor{J: j, Delta: d, DistSq: dsq})
			}
		}
		return
	}

	span := int32(1)
	if r > g.cellSize {
		span = int32(r/g.cellSize) + 1
	}
	center := g.keyFor(p)
	for dx := -span; dx <= span; dx++ {
		for dy := -span; dy <= span; dy++ {
			for dz := -span; dz <= span; dz++ {
				k := cellKey{center.X + dx, center.Y + dy, center.Z + dz}
				for _, j := range g.cells[k] {
					if j == self {
						continue
					}
					d := g.points[j].Sub(p)
					dsq := d.NormSq()
					if dsq <= rsq {
						fn(Neighbor{J: j, Delta: d, DistSq: dsq})
					}
				}
			}
		}
	}
}

// QueryInto appends all neighbors of p within r to dst and returns the
// updated slice. Reuse dst across calls to avoid allocations.
func (g *SpatialGrid) QueryInto(dst []Neighbor, p vmath.Vec3, r float64, self int) []Neighbor {
	g.ForEachNeighbor(p, r, self, func(n Neighbor) {
		dst = append(dst, n)
	})
	return dst
}

func (g *SpatialGrid) keyFor(p vmath.Vec3) cellKey {
	return cellKey{
		X: int32(floorDiv(p.X, g.cellSize)),
		Y: int32(floorDiv(p.Y, g.cellSize)),
		Z: int32(floorDiv(p.Z, g.cellSize)),
	}
}

// floorDiv returns floor(x/h) as an integer, correct for negative x.
func floorDiv(x, h float64) int64 {
	q := x / h
	i := int64(q)
	if q < 0 && float64(i) != q {
		i--
	}
	return i
}
