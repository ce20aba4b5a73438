package planet

import "worldforge.ai/internal/sim/spatial"

// zeroFill allocates the landblocks and fixes the neighbor graph. Longitude
// wraps; latitude stops at the poles with an invalid neighbor.
func zeroFill(p *Planet) {
	d := p.Dims
	p.Landblocks = make([]Landblock, d.WorldTiles())
	for y := 0; y < d.WorldHeight; y++ {
		for x := 0; x < d.WorldWidth; x++ {
			lb := &p.Landblocks[d.PlanetIndex(x, y)]
			lb.BiomeIdx = -1
			lb.Neighbors = neighborsOf(d, x, y)
		}
	}
}

func neighborsOf(d spatial.Dims, x, y int) [4]Neighbor {
	invalid := Neighbor{Dir: None, Index: -1}
	n := [4]Neighbor{invalid, invalid, invalid, invalid}
	if y > 0 {
		n[0] = Neighbor{Dir: North, Index: d.PlanetIndex(x, y-1)}
	}
	if y < d.WorldHeight-1 {
		n[1] = Neighbor{Dir: South, Index: d.PlanetIndex(x, y+1)}
	}
	if d.WorldWidth > 1 {
		n[2] = Neighbor{Dir: East, Index: d.PlanetIndex((x+1)%d.WorldWidth, y)}
		n[3] = Neighbor{Dir: West, Index: d.PlanetIndex((x+d.WorldWidth-1)%d.WorldWidth, y)}
	}
	return n
}
