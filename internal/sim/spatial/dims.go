// Package spatial holds the coordinate frames shared by the generator, the
// region builder and the streaming manager: planet tiles (landblocks),
// region-local tiles, chunk origins and chunk-local tiles.
package spatial

import "fmt"

// Dims fixes the size of every coordinate frame. All fields must be positive
// and the region extent must be a multiple of ChunkSize.
type Dims struct {
	WorldWidth   int `yaml:"width"`
	WorldHeight  int `yaml:"height"`
	RegionWidth  int `yaml:"region_width"`
	RegionHeight int `yaml:"region_height"`
	ChunkSize    int `yaml:"chunk_size"`
}

func DefaultDims() Dims {
	return Dims{
		WorldWidth:   180,
		WorldHeight:  90,
		RegionWidth:  256,
		RegionHeight: 256,
		ChunkSize:    32,
	}
}

func (d Dims) Validate() error {
	if d.WorldWidth <= 0 || d.WorldHeight <= 0 {
		return fmt.Errorf("world dims must be positive: %dx%d", d.WorldWidth, d.WorldHeight)
	}
	if d.RegionWidth <= 0 || d.RegionHeight <= 0 {
		return fmt.Errorf("region dims must be positive: %dx%d", d.RegionWidth, d.RegionHeight)
	}
	if d.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive: %d", d.ChunkSize)
	}
	if d.RegionWidth%d.ChunkSize != 0 || d.RegionHeight%d.ChunkSize != 0 {
		return fmt.Errorf("region %dx%d not divisible by chunk_size %d", d.RegionWidth, d.RegionHeight, d.ChunkSize)
	}
	return nil
}

func (d Dims) WorldTiles() int  { return d.WorldWidth * d.WorldHeight }
func (d Dims) RegionTiles() int { return d.RegionWidth * d.RegionHeight }
func (d Dims) ChunkTiles() int  { return d.ChunkSize * d.ChunkSize }

func (d Dims) ChunksWide() int { return d.RegionWidth / d.ChunkSize }
func (d Dims) ChunksHigh() int { return d.RegionHeight / d.ChunkSize }

// ChunksPerRegion is the exact number of chunk origins covering one region.
func (d Dims) ChunksPerRegion() int { return d.ChunksWide() * d.ChunksHigh() }

func (d Dims) PlanetIndex(x, y int) int { return y*d.WorldWidth + x }

func (d Dims) PlanetXY(idx int) (x, y int) { return idx % d.WorldWidth, idx / d.WorldWidth }

func (d Dims) InWorld(x, y int) bool {
	return x >= 0 && y >= 0 && x < d.WorldWidth && y < d.WorldHeight
}

func (d Dims) RegionTileIndex(x, y int) int { return y*d.RegionWidth + x }

func (d Dims) InRegion(x, y int) bool {
	return x >= 0 && y >= 0 && x < d.RegionWidth && y < d.RegionHeight
}

func (d Dims) ChunkTileIndex(x, y int) int { return y*d.ChunkSize + x }

// ChunkIndex is the row-major ordinal of a chunk origin inside its region.
func (d Dims) ChunkIndex(c ChunkLocation) int {
	return (c.Y/d.ChunkSize)*d.ChunksWide() + c.X/d.ChunkSize
}
