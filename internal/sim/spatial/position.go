package spatial

// Position places an entity on a tile of a particular region.
type Position struct {
	Region PlanetLocation     `json:"region"`
	Tile   RegionTileLocation `json:"tile"`
}

// Chunk is the chunk origin the position currently falls in.
func (d Dims) Chunk(p Position) ChunkLocation { return d.ChunkOf(p.Tile) }

// Offset moves p by (dx,dy) tiles. Leaving the region moves into the
// neighboring landblock, with longitude wrapping around the planet and
// latitude clamped at the poles. changed reports whether the chunk or region
// differs from p's.
func (d Dims) Offset(p Position, dx, dy int) (out Position, changed bool) {
	x, y := p.Tile.X+dx, p.Tile.Y+dy
	region := p.Region
	for x < 0 {
		region.X--
		x += d.RegionWidth
	}
	for x >= d.RegionWidth {
		region.X++
		x -= d.RegionWidth
	}
	for y < 0 {
		region.Y--
		y += d.RegionHeight
	}
	for y >= d.RegionHeight {
		region.Y++
		y -= d.RegionHeight
	}
	region.X = ((region.X % d.WorldWidth) + d.WorldWidth) % d.WorldWidth
	if region.Y < 0 {
		region.Y, y = 0, 0
	}
	if region.Y >= d.WorldHeight {
		region.Y, y = d.WorldHeight-1, d.RegionHeight-1
	}
	out = Position{Region: region, Tile: RegionTileLocation{X: x, Y: y}}
	changed = out.Region != p.Region || d.Chunk(out) != d.Chunk(p)
	return out, changed
}
