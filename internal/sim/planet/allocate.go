package planet

import "worldforge.ai/internal/sim/catalogs"

// allocateTypes picks the water/plains/hills thresholds so that the share of
// landblocks at or below each matches the configured divisors, then assigns
// every landblock its coarse class.
func allocateTypes(p *Planet, params Params) {
	n := len(p.Landblocks)
	if n == 0 {
		return
	}
	waterTarget := n / max(params.WaterDivisor, 1)
	plainsTarget := n/max(params.PlainsDivisor, 1) + waterTarget
	hillsTarget := n/max(params.HillsDivisor, 1) + plainsTarget

	var maxHeight uint32
	for i := range p.Landblocks {
		maxHeight = max(maxHeight, p.Landblocks[i].Height)
	}
	// atOrBelow[h] = number of landblocks with height <= h.
	atOrBelow := make([]int, maxHeight+1)
	for i := range p.Landblocks {
		atOrBelow[p.Landblocks[i].Height]++
	}
	for h := 1; h < len(atOrBelow); h++ {
		atOrBelow[h] += atOrBelow[h-1]
	}

	var candidate uint32
	p.WaterHeight = determineProportion(atOrBelow, &candidate, waterTarget)
	p.PlainsHeight = determineProportion(atOrBelow, &candidate, plainsTarget)
	p.HillsHeight = determineProportion(atOrBelow, &candidate, hillsTarget)

	for i := range p.Landblocks {
		lb := &p.Landblocks[i]
		h, v := int(lb.Height), int(lb.Variance)
		switch {
		case lb.Height <= p.WaterHeight:
			lb.Class = catalogs.BiomeWater
			if h+v/2 > int(p.WaterHeight) {
				lb.Class = catalogs.BiomeSaltMarsh
			}
		case lb.Height <= p.PlainsHeight:
			lb.Class = catalogs.BiomePlains
			if h-v < int(p.WaterHeight) {
				lb.Class = catalogs.BiomeMarsh
			}
		case lb.Height <= p.HillsHeight:
			lb.Class = catalogs.BiomeHills
			if v < 2 {
				lb.Class = catalogs.BiomeHighlands
			}
		default:
			lb.Class = catalogs.BiomeMountains
			if v < 3 {
				lb.Class = catalogs.BiomePlateau
			}
		}
	}
}

// determineProportion advances candidate one height at a time until at least
// target landblocks sit at or below it. The scan stops at the highest height
// present, which always satisfies any target up to the landblock count.
func determineProportion(atOrBelow []int, candidate *uint32, target int) uint32 {
	top := uint32(len(atOrBelow) - 1)
	for *candidate < top {
		if atOrBelow[*candidate] >= target {
			return *candidate
		}
		*candidate++
	}
	return top
}
