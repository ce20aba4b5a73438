package spatial

import (
	"fmt"

	"worldforge.ai/internal/sim/mathx"
)

// PlanetLocation is a landblock coordinate.
type PlanetLocation struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (p PlanetLocation) String() string { return fmt.Sprintf("%d,%d", p.X, p.Y) }

// RegionIndex is the row-major landblock index, also used as the region key.
func (d Dims) RegionIndex(p PlanetLocation) int { return d.PlanetIndex(p.X, p.Y) }

func (d Dims) PlanetLocationOf(idx int) PlanetLocation {
	x, y := d.PlanetXY(idx)
	return PlanetLocation{X: x, Y: y}
}

// WorldOrigin is the global tile coordinate of the region's (0,0) tile.
func (d Dims) WorldOrigin(p PlanetLocation) (x, y int) {
	return p.X * d.RegionWidth, p.Y * d.RegionHeight
}

// RegionTileLocation is a tile coordinate local to one region.
type RegionTileLocation struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// ChunkLocation is the region-local tile coordinate of a chunk's origin.
// Always a multiple of the chunk size.
type ChunkLocation struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (c ChunkLocation) String() string { return fmt.Sprintf("%d_%d", c.X, c.Y) }

// ChunkOf returns the origin of the chunk containing t.
func (d Dims) ChunkOf(t RegionTileLocation) ChunkLocation {
	return ChunkLocation{X: t.X - t.X%d.ChunkSize, Y: t.Y - t.Y%d.ChunkSize}
}

// Local converts a region tile to chunk-local coordinates within the chunk
// that contains it.
func (d Dims) Local(t RegionTileLocation) (cx, cy int) {
	return t.X % d.ChunkSize, t.Y % d.ChunkSize
}

// ChunkKeyOffset shifts a chunk key by (dx,dy) key units. Each axis clamps to
// [0, 2*chunks_per_region).
func (d Dims) ChunkKeyOffset(c ChunkLocation, dx, dy int) ChunkLocation {
	limit := 2*d.ChunksPerRegion() - 1
	return ChunkLocation{X: mathx.ClampInt(c.X+dx, 0, limit), Y: mathx.ClampInt(c.Y+dy, 0, limit)}
}

// MaxChunkOrigin is the largest valid origin on each axis.
func (d Dims) MaxChunkOrigin() ChunkLocation {
	return ChunkLocation{X: d.RegionWidth - d.ChunkSize, Y: d.RegionHeight - d.ChunkSize}
}

// ClampChunk aligns (x,y) to the chunk grid and keeps it inside the region.
func (d Dims) ClampChunk(x, y int) ChunkLocation {
	m := d.MaxChunkOrigin()
	x = mathx.ClampInt(x, 0, m.X)
	y = mathx.ClampInt(y, 0, m.Y)
	return ChunkLocation{X: x - x%d.ChunkSize, Y: y - y%d.ChunkSize}
}
