package planet

import "worldforge.ai/internal/sim/catalogs"

// coastlines reclassifies every non-water landblock that borders water.
func coastlines(p *Planet) {
	water := make([]bool, len(p.Landblocks))
	for i := range p.Landblocks {
		water[i] = p.Landblocks[i].Class == catalogs.BiomeWater
	}
	for i := range p.Landblocks {
		if water[i] {
			continue
		}
		lb := &p.Landblocks[i]
		for _, n := range lb.Neighbors {
			if n.Valid() && water[n.Index] {
				lb.Class = catalogs.BiomeCoastal
				break
			}
		}
	}
}
