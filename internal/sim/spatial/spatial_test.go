package spatial

import "testing"

func smallDims() Dims {
	return Dims{WorldWidth: 4, WorldHeight: 4, RegionWidth: 4, RegionHeight: 4, ChunkSize: 2}
}

func TestAllChunks_SmallExample(t *testing.T) {
	d := smallDims()
	if got := d.ChunksPerRegion(); got != 4 {
		t.Fatalf("ChunksPerRegion=%d want 4", got)
	}
	got := d.AllChunks().Collect()
	want := []ChunkLocation{{0, 0}, {2, 0}, {0, 2}, {2, 2}}
	if len(got) != len(want) {
		t.Fatalf("len=%d want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("chunk %d: got %v want %v", i, got[i], want[i])
		}
	}
}

func TestAllChunks_PartitionsRegion(t *testing.T) {
	d := DefaultDims()
	it := d.AllChunks()
	if it.Len() != 64 {
		t.Fatalf("Len=%d want 64", it.Len())
	}
	seenChunk := map[ChunkLocation]bool{}
	covered := make([]int, d.RegionTiles())
	n := 0
	for c, ok := it.Next(); ok; c, ok = it.Next() {
		n++
		if c.X%d.ChunkSize != 0 || c.Y%d.ChunkSize != 0 {
			t.Fatalf("unaligned chunk %v", c)
		}
		if seenChunk[c] {
			t.Fatalf("duplicate chunk %v", c)
		}
		seenChunk[c] = true
		tiles := d.TilesOf(c)
		for rt, _, ok := tiles.Next(); ok; rt, _, ok = tiles.Next() {
			covered[d.RegionTileIndex(rt.X, rt.Y)]++
		}
	}
	if n != d.ChunksPerRegion() {
		t.Fatalf("iterated %d chunks want %d", n, d.ChunksPerRegion())
	}
	for i, c := range covered {
		if c != 1 {
			t.Fatalf("tile %d covered %d times", i, c)
		}
	}

	// Restartable: a second walk yields the same count.
	if again := len(d.AllChunks().Collect()); again != n {
		t.Fatalf("second walk=%d want %d", again, n)
	}
}

func TestChunkTiles_CountAndBounds(t *testing.T) {
	d := DefaultDims()
	origin := ChunkLocation{X: 64, Y: 96}
	it := d.TilesOf(origin)
	if it.Len() != d.ChunkSize*d.ChunkSize {
		t.Fatalf("Len=%d", it.Len())
	}
	seen := map[RegionTileLocation]bool{}
	lastIdx := -1
	for rt, idx, ok := it.Next(); ok; rt, idx, ok = it.Next() {
		if rt.X < origin.X || rt.X >= origin.X+d.ChunkSize || rt.Y < origin.Y || rt.Y >= origin.Y+d.ChunkSize {
			t.Fatalf("tile %v outside chunk %v", rt, origin)
		}
		if seen[rt] {
			t.Fatalf("duplicate tile %v", rt)
		}
		seen[rt] = true
		if idx != lastIdx+1 {
			t.Fatalf("local index %d not row-major after %d", idx, lastIdx)
		}
		lastIdx = idx
		lx, ly := d.Local(rt)
		if d.ChunkTileIndex(lx, ly) != idx {
			t.Fatalf("local index mismatch for %v", rt)
		}
	}
	if len(seen) != d.ChunkSize*d.ChunkSize {
		t.Fatalf("distinct=%d want %d", len(seen), d.ChunkSize*d.ChunkSize)
	}
}

func TestChunkOfAndIndexes(t *testing.T) {
	d := DefaultDims()
	if c := d.ChunkOf(RegionTileLocation{X: 33, Y: 95}); c != (ChunkLocation{X: 32, Y: 64}) {
		t.Fatalf("ChunkOf=%v", c)
	}
	if idx := d.RegionIndex(PlanetLocation{X: 3, Y: 2}); idx != 2*180+3 {
		t.Fatalf("RegionIndex=%d", idx)
	}
	if p := d.PlanetLocationOf(2*180 + 3); p != (PlanetLocation{X: 3, Y: 2}) {
		t.Fatalf("PlanetLocationOf=%v", p)
	}
	if x, y := d.WorldOrigin(PlanetLocation{X: 2, Y: 1}); x != 512 || y != 256 {
		t.Fatalf("WorldOrigin=%d,%d", x, y)
	}
	if got := d.ChunkIndex(ChunkLocation{X: 64, Y: 32}); got != 8+2 {
		t.Fatalf("ChunkIndex=%d", got)
	}
}

func TestChunkKeyOffset_Clamps(t *testing.T) {
	d := smallDims()
	if c := d.ChunkKeyOffset(ChunkLocation{X: 0, Y: 1}, -3, 100); c != (ChunkLocation{X: 0, Y: 7}) {
		t.Fatalf("ChunkKeyOffset=%v", c)
	}
}

func TestClampChunk(t *testing.T) {
	d := DefaultDims()
	if c := d.ClampChunk(-40, 300); c != (ChunkLocation{X: 0, Y: 224}) {
		t.Fatalf("ClampChunk=%v", c)
	}
}

func TestOffset_WrapsRegions(t *testing.T) {
	d := DefaultDims()
	p := Position{Region: PlanetLocation{X: 0, Y: 5}, Tile: RegionTileLocation{X: 1, Y: 255}}

	out, changed := d.Offset(p, -2, 1)
	if !changed {
		t.Fatalf("expected change")
	}
	if out.Region != (PlanetLocation{X: 179, Y: 6}) {
		t.Fatalf("region=%v", out.Region)
	}
	if out.Tile != (RegionTileLocation{X: 255, Y: 0}) {
		t.Fatalf("tile=%v", out.Tile)
	}

	same, changed := d.Offset(out, -1, 1)
	if changed {
		t.Fatalf("move within chunk reported change: %v", same)
	}
}
