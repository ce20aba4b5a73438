package planet

import (
	"fmt"

	"worldforge.ai/internal/sim/catalogs"
	"worldforge.ai/internal/sim/mathx"
)

// assignBiomes picks a biome for every landblock uniformly among the catalog
// entries that accept its class and climate. An empty candidate set means the
// catalog cannot cover the generated planet and panics.
func assignBiomes(p *Planet, cat *catalogs.Catalog, rng *mathx.RNG) {
	for i := range p.Landblocks {
		lb := &p.Landblocks[i]
		candidates := cat.BiomesFor(lb.Class, lb.TemperatureC, lb.RainfallMM)
		if len(candidates) == 0 {
			x, y := p.Dims.PlanetXY(i)
			panic(fmt.Sprintf("no biome for landblock (%d,%d): class=%s temp=%.1f rain=%d",
				x, y, lb.Class, lb.TemperatureC, lb.RainfallMM))
		}
		lb.BiomeIdx = candidates[rng.Choose(len(candidates))]
	}
}
