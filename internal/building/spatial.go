package building

import "math"

// estimatedPointsPerCell sizes the initial grid allocation.
const estimatedPointsPerCell = 4

// gridIndex provides radius queries over a subset of arena points using a
// regular grid. Cell size matches the query radius so a 3x3 cell
// neighbourhood covers every possible neighbour.
type gridIndex struct {
	arena    *PointArena
	cellSize float64
	grid     map[int64][]int32
}

// newGridIndex builds a grid over the given arena indices.
func newGridIndex(arena *PointArena, subset []int32, cellSize float64) *gridIndex {
	gi := &gridIndex{
		arena:    arena,
		cellSize: cellSize,
		grid:     make(map[int64][]int32, len(subset)/estimatedPointsPerCell+1),
	}
	for _, idx := range subset {
		p := arena.At(idx)
		key := gi.cellKey(cellOf(p.X, cellSize), cellOf(p.Y, cellSize))
		gi.grid[key] = append(gi.grid[key], idx)
	}
	return gi
}

func cellOf(v, cellSize float64) int64 {
	return int64(math.Floor(v / cellSize))
}

// cellKey maps a signed cell coordinate pair to a unique key using zigzag
// encoding followed by Szudzik's pairing function.
func (gi *gridIndex) cellKey(cx, cy int64) int64 {
	var a, b int64
	if cx >= 0 {
		a = 2 * cx
	} else {
		a = -2*cx - 1
	}
	if cy >= 0 {
		b = 2 * cy
	} else {
		b = -2*cy - 1
	}
	if a >= b {
		return a*a + a + b
	}
	return a + b*b
}

// neighbors appends to dst the indexed points adjacent to point idx under
// the policy: horizontal distance <= Radius and, when VerticalTolerance
// is positive, |dz| <= VerticalTolerance. The queried point itself is
// included when indexed.
func (gi *gridIndex) neighbors(idx int32, policy AdjacencyPolicy, dst []int32) []int32 {
	p := gi.arena.At(idx)
	r2 := policy.Radius * policy.Radius
	cx := cellOf(p.X, gi.cellSize)
	cy := cellOf(p.Y, gi.cellSize)

	for dx := int64(-1); dx <= 1; dx++ {
		for dy := int64(-1); dy <= 1; dy++ {
			for _, cand := range gi.grid[gi.cellKey(cx+dx, cy+dy)] {
				q := gi.arena.At(cand)
				ddx := q.X - p.X
				ddy := q.Y - p.Y
				if ddx*ddx+ddy*ddy > r2 {
					continue
				}
				if policy.VerticalTolerance > 0 && math.Abs(q.Z-p.Z) > policy.VerticalTolerance {
					continue
				}
				dst = append(dst, cand)
			}
		}
	}
	return dst
}
