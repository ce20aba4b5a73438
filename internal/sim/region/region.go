// Package region materializes the full-resolution terrain of a visited
// landblock and keeps the process-wide table of active regions.
package region

import (
	"fmt"

	"worldforge.ai/internal/sim/chunk"
	"worldforge.ai/internal/sim/spatial"
	"worldforge.ai/internal/sim/tile"
)

type Status int

const (
	NotLoaded Status = iota
	CreatingTiles
	CreatedTiles
	Done
)

func (s Status) String() string {
	switch s {
	case NotLoaded:
		return "not_loaded"
	case CreatingTiles:
		return "creating_tiles"
	case CreatedTiles:
		return "created_tiles"
	case Done:
		return "done"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Region is guarded by the Table it lives in.
type Region struct {
	Location     spatial.PlanetLocation
	Tiles        []tile.Type
	Material     []int
	ChunksLoaded []bool
	Status       Status
	// Err is set when a chunk job failed; the status does not advance.
	Err error

	// fresh marks chunks populated from noise rather than read from disk.
	fresh []bool
	dims  spatial.Dims
}

func New(d spatial.Dims, loc spatial.PlanetLocation) *Region {
	r := &Region{
		Location:     loc,
		Tiles:        make([]tile.Type, d.RegionTiles()),
		Material:     make([]int, d.RegionTiles()),
		ChunksLoaded: make([]bool, d.ChunksPerRegion()),
		fresh:        make([]bool, d.ChunksPerRegion()),
		dims:         d,
	}
	for i := range r.Tiles {
		r.Tiles[i] = tile.FloorTile
	}
	return r
}

func (r *Region) Dims() spatial.Dims { return r.dims }

func (r *Region) LoadedCount() int {
	n := 0
	for _, ok := range r.ChunksLoaded {
		if ok {
			n++
		}
	}
	return n
}

// Apply copies a chunk's tiles into the region and marks it loaded. It
// reports whether every chunk is now loaded, in which case the status moves to
// CreatedTiles.
func (r *Region) Apply(c *chunk.Chunk, fresh bool) bool {
	if c.Region != r.Location {
		panic(fmt.Sprintf("region %s: applying chunk of region %s", r.Location, c.Region))
	}
	d := r.dims
	it := d.TilesOf(c.Location)
	for rt, i, ok := it.Next(); ok; rt, i, ok = it.Next() {
		idx := d.RegionTileIndex(rt.X, rt.Y)
		r.Tiles[idx] = c.Tiles[i]
		r.Material[idx] = c.Material[i]
	}
	ci := d.ChunkIndex(c.Location)
	r.ChunksLoaded[ci] = true
	r.fresh[ci] = fresh
	if r.LoadedCount() == len(r.ChunksLoaded) && r.Status < CreatedTiles {
		r.Status = CreatedTiles
		return true
	}
	return false
}

// Fresh reports whether the chunk holding region tile (x,y) came from noise.
func (r *Region) Fresh(x, y int) bool {
	return r.fresh[r.dims.ChunkIndex(r.dims.ChunkOf(spatial.RegionTileLocation{X: x, Y: y}))]
}

// Chunk slices a chunk out of the region.
func (r *Region) Chunk(loc spatial.ChunkLocation) *chunk.Chunk {
	d := r.dims
	c := chunk.New(d.ChunkSize, r.Location, loc)
	it := d.TilesOf(loc)
	for rt, i, ok := it.Next(); ok; rt, i, ok = it.Next() {
		idx := d.RegionTileIndex(rt.X, rt.Y)
		c.Tiles[i] = r.Tiles[idx]
		c.Material[i] = r.Material[idx]
	}
	return c
}

func (r *Region) TileAt(x, y int) (tile.Type, int) {
	idx := r.dims.RegionTileIndex(x, y)
	return r.Tiles[idx], r.Material[idx]
}

func (r *Region) Density() tile.Density {
	var d tile.Density
	for _, t := range r.Tiles {
		d.Add(t)
	}
	return d
}
