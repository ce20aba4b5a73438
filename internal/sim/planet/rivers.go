package planet

import (
	"fmt"

	"worldforge.ai/internal/sim/catalogs"
	"worldforge.ai/internal/sim/mathx"
)

// traceRivers starts up to maxRivers rivers on landblocks above the hills
// threshold and follows steepest descent until water, a local minimum, or
// maxSteps.
func traceRivers(p *Planet, rng *mathx.RNG, maxRivers, maxSteps int) {
	var sources []int
	for i := range p.Landblocks {
		if p.Landblocks[i].Height > p.HillsHeight {
			sources = append(sources, i)
		}
	}

	used := map[int]bool{}
	for len(p.Rivers) < maxRivers && len(sources) > 0 {
		pick := rng.Choose(len(sources))
		start := sources[pick]
		sources[pick] = sources[len(sources)-1]
		sources = sources[:len(sources)-1]
		if used[start] {
			continue
		}

		river := River{
			Name:  fmt.Sprintf("River %d", len(p.Rivers)+1),
			Start: p.Dims.PlanetLocationOf(start),
		}
		visited := map[int]bool{start: true}
		cur := start
		for step := 0; step < maxSteps; step++ {
			next := lowestNeighbor(p, cur, visited)
			if next < 0 || p.Landblocks[next].Height > p.Landblocks[cur].Height {
				break
			}
			visited[next] = true
			river.Steps = append(river.Steps, RiverStep{Position: p.Dims.PlanetLocationOf(next)})
			cur = next
			if p.Landblocks[cur].Class == catalogs.BiomeWater {
				break
			}
		}
		if len(river.Steps) == 0 {
			continue
		}
		for k := range visited {
			used[k] = true
		}
		p.Rivers = append(p.Rivers, river)
	}
}

func lowestNeighbor(p *Planet, idx int, visited map[int]bool) int {
	best := -1
	for _, n := range p.Landblocks[idx].Neighbors {
		if !n.Valid() || visited[n.Index] {
			continue
		}
		if best < 0 || p.Landblocks[n.Index].Height < p.Landblocks[best].Height {
			best = n.Index
		}
	}
	return best
}

