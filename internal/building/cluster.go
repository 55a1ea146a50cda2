package building

import (
	"fmt"
	"math"
	"sort"
)

// AdjacencyPolicy defines when two points are adjacent for the purposes
// of connected-component clustering. Radius is the maximum horizontal
// distance in meters. VerticalTolerance, when positive, additionally
// requires |dz| to stay within it; zero means z is ignored.
type AdjacencyPolicy struct {
	Radius            float64
	VerticalTolerance float64
}

// Validate rejects malformed policies before any clustering begins.
func (p AdjacencyPolicy) Validate() error {
	if math.IsNaN(p.Radius) || p.Radius <= 0 {
		return fmt.Errorf("adjacency radius must be positive, got %v", p.Radius)
	}
	if math.IsNaN(p.VerticalTolerance) || p.VerticalTolerance < 0 {
		return fmt.Errorf("vertical tolerance must be non-negative, got %v", p.VerticalTolerance)
	}
	return nil
}

// Group is a spatially connected component of points sharing one
// aggregated decision. Members are arena indices in ascending order.
type Group struct {
	ID      int32
	Members []int32

	// Proportions derived from member points, filled by DecideGroup.
	ConfirmedRatio   float64
	RefutedRatio     float64
	OverlayRatio     float64
	HighEntropyRatio float64

	Decision Label
	Detail   DetailCode
}

// Size returns the number of member points.
func (g *Group) Size() int { return len(g.Members) }

// Cluster partitions the subset of arena points into connected components
// under the adjacency policy, using a grid spatial index and breadth-first
// expansion. The partition is a function of geometry only: components are
// sorted by centroid (X, then Y) and members by arena index, so the output
// is invariant to the order of the input subset. Singleton components are
// returned as valid groups; callers decide whether to act on them.
func Cluster(arena *PointArena, subset []int32, policy AdjacencyPolicy) ([]Group, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if len(subset) == 0 {
		return nil, nil
	}

	index := newGridIndex(arena, subset, policy.Radius)

	// component id per arena index; only subset members are present.
	component := make(map[int32]int32, len(subset))
	var componentCount int32

	var queue []int32
	var scratch []int32
	for _, seed := range subset {
		if _, visited := component[seed]; visited {
			continue
		}
		componentCount++
		cid := componentCount
		component[seed] = cid
		queue = append(queue[:0], seed)
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			scratch = index.neighbors(cur, policy, scratch[:0])
			for _, nb := range scratch {
				if _, visited := component[nb]; visited {
					continue
				}
				component[nb] = cid
				queue = append(queue, nb)
			}
		}
	}

	members := make([][]int32, componentCount)
	for _, idx := range subset {
		cid := component[idx] - 1
		members[cid] = append(members[cid], idx)
	}

	groups := make([]Group, 0, componentCount)
	for _, m := range members {
		sort.Slice(m, func(i, j int) bool { return m[i] < m[j] })
		groups = append(groups, Group{Members: m})
	}

	// Deterministic ordering by centroid so downstream group IDs do not
	// depend on input order or map iteration.
	type centroid struct{ x, y float64 }
	centroids := make([]centroid, len(groups))
	for i := range groups {
		var sx, sy float64
		for _, idx := range groups[i].Members {
			p := arena.At(idx)
			sx += p.X
			sy += p.Y
		}
		n := float64(len(groups[i].Members))
		centroids[i] = centroid{sx / n, sy / n}
	}
	order := make([]int, len(groups))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool {
		a, b := centroids[order[i]], centroids[order[j]]
		if a.x != b.x {
			return a.x < b.x
		}
		if a.y != b.y {
			return a.y < b.y
		}
		// Identical centroids: break ties by first member index.
		return groups[order[i]].Members[0] < groups[order[j]].Members[0]
	})

	sorted := make([]Group, len(groups))
	for rank, gi := range order {
		sorted[rank] = groups[gi]
		sorted[rank].ID = int32(rank + 1)
	}
	return sorted, nil
}
