package spatial

// ChunkIter walks every chunk origin of one region in row-major order.
// A fresh iterator is returned on every call to AllChunks.
type ChunkIter struct {
	d    Dims
	next int
}

func (d Dims) AllChunks() *ChunkIter { return &ChunkIter{d: d} }

// Len is the total element count, independent of progress.
func (it *ChunkIter) Len() int { return it.d.ChunksPerRegion() }

func (it *ChunkIter) Next() (ChunkLocation, bool) {
	if it.next >= it.d.ChunksPerRegion() {
		return ChunkLocation{}, false
	}
	i := it.next
	it.next++
	w := it.d.ChunksWide()
	return ChunkLocation{X: (i % w) * it.d.ChunkSize, Y: (i / w) * it.d.ChunkSize}, true
}

// Collect drains the iterator.
func (it *ChunkIter) Collect() []ChunkLocation {
	out := make([]ChunkLocation, 0, it.Len())
	for c, ok := it.Next(); ok; c, ok = it.Next() {
		out = append(out, c)
	}
	return out
}

// TileIter walks the region tiles covered by one chunk in row-major order.
type TileIter struct {
	origin ChunkLocation
	size   int
	next   int
}

func (d Dims) TilesOf(origin ChunkLocation) *TileIter {
	return &TileIter{origin: origin, size: d.ChunkSize}
}

func (it *TileIter) Len() int { return it.size * it.size }

// Next returns the region tile and its chunk-local index.
func (it *TileIter) Next() (RegionTileLocation, int, bool) {
	if it.next >= it.size*it.size {
		return RegionTileLocation{}, 0, false
	}
	i := it.next
	it.next++
	return RegionTileLocation{X: it.origin.X + i%it.size, Y: it.origin.Y + i/it.size}, i, true
}
