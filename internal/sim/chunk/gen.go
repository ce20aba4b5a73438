package chunk

import (
	"worldforge.ai/internal/sim/catalogs"
	"worldforge.ai/internal/sim/mathx"
	"worldforge.ai/internal/sim/noise"
	"worldforge.ai/internal/sim/planet"
	"worldforge.ai/internal/sim/spatial"
	"worldforge.ai/internal/sim/tile"
)

// riverHalfWidth is the channel half width in tiles.
const riverHalfWidth = 1

// Generator fills chunks from the planet's noise fields. It only reads shared
// state and may be used from many goroutines.
type Generator struct {
	planet        *planet.Planet
	field         *noise.Field
	cat           *catalogs.Catalog
	outcropMargin uint32

	// channels maps a landblock index to the directions its river runs.
	channels map[int][]planet.Direction
}

func NewGenerator(p *planet.Planet, f *noise.Field, cat *catalogs.Catalog, outcropMargin int) *Generator {
	return &Generator{
		planet:        p,
		field:         f,
		cat:           cat,
		outcropMargin: uint32(max(outcropMargin, 0)),
		channels:      riverChannels(p),
	}
}

func (g *Generator) Dims() spatial.Dims { return g.planet.Dims }
func (g *Generator) Planet() *planet.Planet { return g.planet }
func (g *Generator) Catalog() *catalogs.Catalog { return g.cat }

// Seed is the population RNG seed for one chunk of one region.
func (g *Generator) Seed(region spatial.PlanetLocation, loc spatial.ChunkLocation) uint64 {
	d := g.planet.Dims
	off := region.Y*d.RegionWidth*d.ChunksPerRegion() +
		region.X*d.RegionWidth*d.ChunksWide() +
		loc.Y*d.ChunkSize + loc.X
	return g.planet.NoiseSeed + uint64(off)
}

// Populate builds a chunk from noise: soil, sand or floor by the biome's d100
// thresholds, then water below the water line, river channels and rock
// outcrops on high ground.
func (g *Generator) Populate(region spatial.PlanetLocation, loc spatial.ChunkLocation) *Chunk {
	d := g.planet.Dims
	c := New(d.ChunkSize, region, loc)
	lbIdx := d.RegionIndex(region)
	lb := &g.planet.Landblocks[lbIdx]
	biome := g.cat.Biome(lb.BiomeIdx)
	strata := &g.cat.Strata
	rng := mathx.NewRNG(g.Seed(region, loc))
	dirs := g.channels[lbIdx]

	it := d.TilesOf(loc)
	for rt, i, ok := it.Next(); ok; rt, i, ok = it.Next() {
		n := g.field.CellMaterial(region.X, region.Y, rt.X, rt.Y)
		t, mat := tile.FloorTile, 0
		if len(strata.Sedimentary) > 0 {
			mat = catalogs.PickMaterial(strata.Sedimentary, n)
		}
		if rng.RollDice(1, 100) < biome.Soils.Soil && len(strata.Soils) > 0 {
			t, mat = tile.SoilTile, catalogs.PickMaterial(strata.Soils, n)
		} else if rng.RollDice(1, 100) < biome.Soils.Sand && len(strata.Sand) > 0 {
			t, mat = tile.SandTile, catalogs.PickMaterial(strata.Sand, n)
		}

		alt := g.field.CellAltitude(region.X, region.Y, rt.X, rt.Y)
		switch {
		case alt <= g.planet.WaterHeight, inChannel(d, dirs, rt):
			t = tile.WaterTile
		case g.outcropMargin > 0 && alt > g.planet.HillsHeight+g.outcropMargin:
			layer := strata.Sedimentary
			if alt > g.planet.HillsHeight+2*g.outcropMargin && len(strata.Igneous) > 0 {
				layer = strata.Igneous
			}
			if len(layer) > 0 {
				t, mat = tile.WallTile, catalogs.PickMaterial(layer, n)
			}
		}
		c.Tiles[i] = t
		c.Material[i] = mat
	}
	return c
}

// riverChannels records, for every landblock a river touches, the
// directions toward the previous and next step.
func riverChannels(p *planet.Planet) map[int][]planet.Direction {
	out := map[int][]planet.Direction{}
	for _, r := range p.Rivers {
		path := make([]int, 0, len(r.Steps)+1)
		path = append(path, p.Dims.RegionIndex(r.Start))
		for _, s := range r.Steps {
			path = append(path, p.Dims.RegionIndex(s.Position))
		}
		for i, idx := range path {
			if i > 0 {
				out[idx] = appendDir(out[idx], directionTo(p, idx, path[i-1]))
			}
			if i+1 < len(path) {
				out[idx] = appendDir(out[idx], directionTo(p, idx, path[i+1]))
			}
		}
	}
	return out
}

func appendDir(dirs []planet.Direction, d planet.Direction) []planet.Direction {
	if d == planet.None {
		return dirs
	}
	for _, e := range dirs {
		if e == d {
			return dirs
		}
	}
	return append(dirs, d)
}

func directionTo(p *planet.Planet, from, to int) planet.Direction {
	for _, n := range p.Landblocks[from].Neighbors {
		if n.Valid() && n.Index == to {
			return n.Dir
		}
	}
	return planet.None
}

// inChannel reports whether t lies on a straight channel from the region
// center toward one of dirs.
func inChannel(d spatial.Dims, dirs []planet.Direction, t spatial.RegionTileLocation) bool {
	cx, cy := d.RegionWidth/2, d.RegionHeight/2
	for _, dir := range dirs {
		switch dir {
		case planet.North:
			if mathx.AbsInt(t.X-cx) <= riverHalfWidth && t.Y <= cy+riverHalfWidth {
				return true
			}
		case planet.South:
			if mathx.AbsInt(t.X-cx) <= riverHalfWidth && t.Y >= cy-riverHalfWidth {
				return true
			}
		case planet.East:
			if mathx.AbsInt(t.Y-cy) <= riverHalfWidth && t.X >= cx-riverHalfWidth {
				return true
			}
		case planet.West:
			if mathx.AbsInt(t.Y-cy) <= riverHalfWidth && t.X <= cx+riverHalfWidth {
				return true
			}
		}
	}
	return false
}
