package indexdb

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"worldforge.ai/internal/sim/catalogs"
	"worldforge.ai/internal/sim/events"
	"worldforge.ai/internal/sim/tuning"
)

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqPlanet}

	s.Emit(events.New(events.KindPlanetSaved, "w"))
	s.Emit(events.New(events.KindChunkSaved, "w").WithRegion(0, 0).WithChunk(1, 1))
	// Not indexed, so not counted as a drop.
	s.Emit(events.New(events.KindChunkLoaded, "w").WithRegion(0, 0).WithChunk(1, 1))
	// Chunk save without coordinates is ignored.
	s.Emit(events.New(events.KindChunkSaved, "w"))

	st := s.Stats()
	if st.DropTotal != 2 {
		t.Fatalf("DropTotal=%d want=2", st.DropTotal)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func TestSQLiteIndex_RecordsGenerationOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}

	p := events.New(events.KindPlanetSaved, "world_1")
	p.RunID = "run-1"
	p.Path, p.Bytes, p.SHA256 = "/w/world.dat", 1234, "abc"
	p.Data = map[string]any{"seed": "hello", "water_height": uint32(100), "plains_height": uint32(200), "hills_height": uint32(300), "rivers": 4}
	idx.Emit(p)

	r := events.New(events.KindRegionStatus, "world_1").WithRegion(2, 3)
	r.Stage = "Vegetation"
	idx.Emit(r)
	f := events.New(events.KindRegionFailed, "world_1").WithRegion(2, 3).WithChunk(0, 0)
	f.Error = "disk full"
	idx.Emit(f)

	for i := 0; i < 2; i++ {
		c := events.New(events.KindChunkSaved, "world_1").WithRegion(2, 3).WithChunk(8, 16)
		c.Path, c.Bytes, c.SHA256 = "/w/chunks/2_3/8_16.chunk", 99, "def"
		c.Data = map[string]any{"trees": 3, "plants": 7}
		idx.Emit(c)
	}

	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if st := idx.Stats(); st.WrittenTotal != 5 {
		t.Fatalf("WrittenTotal=%d want=5", st.WrittenTotal)
	}

	db, err := OpenReadOnly(path)
	if err != nil {
		t.Fatalf("OpenReadOnly: %v", err)
	}
	defer db.Close()
	ctx := context.Background()

	planets, err := ListPlanets(ctx, db, "")
	if err != nil {
		t.Fatalf("ListPlanets: %v", err)
	}
	if len(planets) != 1 {
		t.Fatalf("planets=%d want=1", len(planets))
	}
	if got := planets[0]; got.Seed != "hello" || got.WaterHeight != 100 || got.Rivers != 4 || got.Bytes != 1234 || got.RunID != "run-1" {
		t.Fatalf("planet row mismatch: %+v", got)
	}

	regions, err := ListRegions(ctx, db, "world_1")
	if err != nil {
		t.Fatalf("ListRegions: %v", err)
	}
	if len(regions) != 1 || regions[0].Stage != "Vegetation" || regions[0].Error != "disk full" {
		t.Fatalf("region rows mismatch: %+v", regions)
	}

	chunks, err := ListChunks(ctx, db, "world_1", &[2]int{2, 3})
	if err != nil {
		t.Fatalf("ListChunks: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("chunks=%d want=1", len(chunks))
	}
	if got := chunks[0]; got.CX != 8 || got.CY != 16 || got.Saves != 2 || got.Trees != 3 || got.Plants != 7 {
		t.Fatalf("chunk row mismatch: %+v", got)
	}
	other, err := ListChunks(ctx, db, "world_1", &[2]int{0, 0})
	if err != nil || len(other) != 0 {
		t.Fatalf("other region: rows=%d err=%v", len(other), err)
	}
}

func TestSQLiteIndex_UpsertCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	cat, err := catalogs.New(catalogs.Bundle{
		Materials: []catalogs.Material{{Name: "granite"}},
	})
	if err != nil {
		t.Fatalf("catalogs.New: %v", err)
	}
	if err := idx.UpsertCatalog(cat, tuning.Defaults()); err != nil {
		t.Fatalf("UpsertCatalog: %v", err)
	}
	// Second upsert replaces rather than duplicates.
	if err := idx.UpsertCatalog(cat, tuning.Defaults()); err != nil {
		t.Fatalf("UpsertCatalog again: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM catalogs`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 5 {
		t.Fatalf("catalog rows=%d want=5", n)
	}
	var digest string
	if err := db.QueryRow(`SELECT digest FROM catalogs WHERE name='bundles'`).Scan(&digest); err != nil {
		t.Fatalf("bundles row: %v", err)
	}
	if digest != cat.Digest {
		t.Fatalf("bundles digest=%q want=%q", digest, cat.Digest)
	}
}
