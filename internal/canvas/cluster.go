package canvas

import (
	"math"

	"github.com/google/uuid"
)

// ComputeAreas partitions the canvas blocks into idea areas and is the only
// code path allowed to assign Block.AreaID.
//
// Blocks with blank content are excluded from clustering and get their area
// reference cleared. The remaining blocks form connected components under
// "center distance <= ClusterDistance" adjacency, discovered by breadth-first
// expansion. Each component reuses the most frequent prior area label among
// its members that no other component has claimed in this pass; equal counts
// break toward the label first encountered in traversal order. Components
// with no reusable label mint a fresh UUID.
//
// The returned blocks are normalized copies of the input with area references
// rewritten; the returned areas carry member identities in traversal order
// and the arithmetic mean of member centers.
func ComputeAreas(in []Block) ([]Block, []Area) {
	blocks := NormalizeBlocks(in, nowFn())

	var nonEmpty []Block
	for _, b := range blocks {
		if !b.Empty() {
			nonEmpty = append(nonEmpty, b)
		}
	}

	byID := make(map[string]int, len(blocks))
	for i, b := range blocks {
		byID[b.ID] = i
	}

	if len(nonEmpty) == 0 {
		for i := range blocks {
			blocks[i].AreaID = ""
		}
		return blocks, []Area{}
	}

	visited := make(map[string]bool, len(nonEmpty))
	var components [][]Block

	for _, seed := range nonEmpty {
		if visited[seed.ID] {
			continue
		}

		queue := []Block{seed}
		visited[seed.ID] = true
		var component []Block

		for len(queue) > 0 {
			current := queue[0]
			queue = queue[1:]
			component = append(component, current)

			for _, candidate := range nonEmpty {
				if visited[candidate.ID] {
					continue
				}
				if centerDistance(current, candidate) <= ClusterDistance {
					visited[candidate.ID] = true
					queue = append(queue, candidate)
				}
			}
		}

		components = append(components, component)
	}

	claimed := make(map[string]bool)
	areas := make([]Area, 0, len(components))

	for _, component := range components {
		areaID := reuseAreaID(component, claimed)
		if areaID == "" {
			areaID = uuid.NewString()
		}
		claimed[areaID] = true

		var sumX, sumY float64
		blockIDs := make([]string, 0, len(component))
		for _, b := range component {
			c := b.Center()
			sumX += c.X
			sumY += c.Y
			blockIDs = append(blockIDs, b.ID)
			blocks[byID[b.ID]].AreaID = areaID
		}

		n := float64(len(component))
		areas = append(areas, Area{
			ID:       areaID,
			BlockIDs: blockIDs,
			Centroid: Point{X: sumX / n, Y: sumY / n},
		})
	}

	for i := range blocks {
		if blocks[i].Empty() {
			blocks[i].AreaID = ""
		}
	}

	return blocks, areas
}

// reuseAreaID picks the unclaimed prior area label carried by the most member
// blocks. Labels are scanned in first-encounter order so equal counts resolve
// deterministically. Returns "" when no prior label is reusable.
func reuseAreaID(component []Block, claimed map[string]bool) string {
	counts := make(map[string]int)
	var order []string
	for _, b := range component {
		if b.AreaID == "" {
			continue
		}
		if _, seen := counts[b.AreaID]; !seen {
			order = append(order, b.AreaID)
		}
		counts[b.AreaID]++
	}

	best := ""
	bestCount := 0
	for _, label := range order {
		if claimed[label] {
			continue
		}
		if counts[label] > bestCount {
			best = label
			bestCount = counts[label]
		}
	}
	return best
}

func centerDistance(a, b Block) float64 {
	ac, bc := a.Center(), b.Center()
	return math.Hypot(ac.X-bc.X, ac.Y-bc.Y)
}
