package region

import (
	"worldforge.ai/internal/sim/catalogs"
	"worldforge.ai/internal/sim/mathx"
	"worldforge.ai/internal/sim/planet"
	"worldforge.ai/internal/sim/spatial"
	"worldforge.ai/internal/sim/tile"
)

// growPlants seeds ground cover on the soil and sand of freshly populated
// chunks. A tile gets a plant when d(planting) <= its soil quality and at
// least one species tolerates the landblock temperature on that soil.
func growPlants(r *Region, p *planet.Planet, cat *catalogs.Catalog, params Params) int {
	lbIdx := p.Dims.RegionIndex(r.Location)
	temp := int(p.Landblocks[lbIdx].TemperatureC)
	rng := mathx.NewRNG(p.NoiseSeed + uint64(lbIdx))
	d := r.dims

	placed := 0
	for y := 0; y < d.RegionHeight; y++ {
		for x := 0; x < d.RegionWidth; x++ {
			idx := d.RegionTileIndex(x, y)
			t := r.Tiles[idx]
			if !t.Vegetable() || !r.Fresh(x, y) {
				continue
			}
			quality := 1
			if t.Kind == tile.Soil {
				quality = cat.Material(r.Material[idx]).SoilQuality()
			}
			plants := cat.PlantsFor(temp, quality)
			if len(plants) == 0 || rng.RollDice(1, params.PlantingChance) > quality {
				continue
			}
			r.Tiles[idx] = tile.PlantOf(plants[rng.Choose(len(plants))].Kind)
			placed++
		}
	}
	return placed
}

// plantTrees places trees away from the region border and outside the
// clearing around the landing point. Deciduous is tried before evergreen,
// each against its own d(tree_chance) roll.
func plantTrees(r *Region, p *planet.Planet, cat *catalogs.Catalog, params Params, landing spatial.RegionTileLocation) int {
	lbIdx := p.Dims.RegionIndex(r.Location)
	rng := mathx.NewRNG(p.NoiseSeed + uint64(lbIdx))
	deciduous, evergreen := cat.Biome(p.Landblocks[lbIdx].BiomeIdx).TreeChances()
	d := r.dims
	clear2 := params.ClearingRadius * params.ClearingRadius

	placed := 0
	for y := params.TreeBorder; y < d.RegionHeight-params.TreeBorder; y++ {
		for x := params.TreeBorder; x < d.RegionWidth-params.TreeBorder; x++ {
			dx, dy := x-landing.X, y-landing.Y
			if dx*dx+dy*dy <= clear2 {
				continue
			}
			idx := d.RegionTileIndex(x, y)
			t := r.Tiles[idx]
			if !t.Vegetable() || !r.Fresh(x, y) {
				continue
			}
			quality := 2
			if t.Kind == tile.Soil {
				quality = cat.Material(r.Material[idx]).SoilQuality()
			}
			if rng.RollDice(1, 10) >= quality {
				continue
			}
			switch {
			case rng.RollDice(1, params.TreeChance) < deciduous:
				r.Tiles[idx] = tile.TreeOf(tile.Deciduous)
			case rng.RollDice(1, params.TreeChance) < evergreen:
				r.Tiles[idx] = tile.TreeOf(tile.Evergreen)
			default:
				continue
			}
			placed++
		}
	}
	return placed
}
