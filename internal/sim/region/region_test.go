package region

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"worldforge.ai/internal/sim/catalogs"
	"worldforge.ai/internal/sim/chunk"
	"worldforge.ai/internal/sim/noise"
	"worldforge.ai/internal/sim/planet"
	"worldforge.ai/internal/sim/spatial"
	"worldforge.ai/internal/sim/tasks"
	"worldforge.ai/internal/sim/tile"
)

type genFunc func() (*chunk.Generator, error)

func (f genFunc) Generator() (*chunk.Generator, error) { return f() }

func testDims() spatial.Dims {
	return spatial.Dims{WorldWidth: 12, WorldHeight: 6, RegionWidth: 32, RegionHeight: 32, ChunkSize: 8}
}

func testGenerators(t *testing.T) Generators {
	t.Helper()
	cat, err := catalogs.Load("../../../configs/raws/index.txt")
	if err != nil {
		t.Fatalf("load raws: %v", err)
	}
	params := planet.DefaultParams()
	p := planet.Build("regions", 2, testDims(), params, cat, nil)
	g := chunk.NewGenerator(p, noise.New(p.Dims, p.NoiseSeed, p.Lacunarity, params.Noise), cat, 20)
	return genFunc(func() (*chunk.Generator, error) { return g, nil })
}

func tickUntil(t *testing.T, l *Loader, done func() bool) {
	t.Helper()
	deadline := time.Now().Add(20 * time.Second)
	for !done() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for loader")
		}
		l.Tick()
		time.Sleep(time.Millisecond)
	}
}

func TestRegion_ApplyAndSlice(t *testing.T) {
	d := spatial.Dims{WorldWidth: 4, WorldHeight: 4, RegionWidth: 4, RegionHeight: 4, ChunkSize: 2}
	loc := spatial.PlanetLocation{X: 1, Y: 1}
	r := New(d, loc)
	chunks := d.AllChunks().Collect()
	for i, cl := range chunks {
		c := chunk.New(2, loc, cl)
		c.Set(1, 1, tile.WaterTile, i+1)
		complete := r.Apply(c, i%2 == 0)
		if complete != (i == len(chunks)-1) {
			t.Fatalf("chunk %d complete=%v", i, complete)
		}
	}
	if r.Status != CreatedTiles || r.LoadedCount() != 4 {
		t.Fatalf("status=%s loaded=%d", r.Status, r.LoadedCount())
	}
	if tt, m := r.TileAt(3, 3); tt != tile.WaterTile || m != 4 {
		t.Fatalf("tile (3,3)=%v,%d", tt, m)
	}
	if !r.Fresh(0, 0) || r.Fresh(2, 0) {
		t.Fatalf("fresh flags wrong")
	}
	c := r.Chunk(spatial.ChunkLocation{X: 2, Y: 2})
	if got, m := c.Get(1, 1); got != tile.WaterTile || m != 4 {
		t.Fatalf("slice (1,1)=%v,%d", got, m)
	}
}

func TestRegion_ApplyForeignChunkPanics(t *testing.T) {
	d := testDims()
	r := New(d, spatial.PlanetLocation{X: 1})
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	r.Apply(chunk.New(d.ChunkSize, spatial.PlanetLocation{X: 2}, spatial.ChunkLocation{}), true)
}

func TestLoader_FillsRegion(t *testing.T) {
	d := testDims()
	table := NewTable(d)
	pool := tasks.NewPool(4, nil)
	l := NewLoader("w1", table, testGenerators(t), nil, pool, nil, nil)
	loc := spatial.PlanetLocation{X: 3, Y: 2}
	if !table.Activate(loc) || table.Activate(loc) {
		t.Fatalf("Activate should insert once")
	}
	rep := l.Tick()
	if rep.Spawned != d.ChunksPerRegion() {
		t.Fatalf("spawned=%d want %d", rep.Spawned, d.ChunksPerRegion())
	}
	if st, _ := table.Status(loc); st != CreatingTiles {
		t.Fatalf("status after spawn=%s", st)
	}
	tickUntil(t, l, func() bool { st, _ := table.Status(loc); return st == CreatedTiles })
	if l.Pending() != 0 {
		t.Fatalf("pending=%d", l.Pending())
	}
	// A second tick must not respawn anything.
	if rep := l.Tick(); rep.Spawned != 0 {
		t.Fatalf("respawned %d", rep.Spawned)
	}
	sums := table.Summaries()
	if len(sums) != 1 || sums[0].ChunksLoaded != sums[0].ChunksTotal {
		t.Fatalf("summaries=%+v", sums)
	}
}

func TestLoader_PrefersDisk(t *testing.T) {
	d := testDims()
	disk := chunk.NewDiskStore(t.TempDir(), "w1", d.ChunkSize, nil, nil)
	loc := spatial.PlanetLocation{X: 1, Y: 1}
	saved := chunk.New(d.ChunkSize, loc, spatial.ChunkLocation{})
	for i := range saved.Tiles {
		saved.Tiles[i] = tile.WallTile
	}
	if err := disk.Save(saved); err != nil {
		t.Fatalf("save: %v", err)
	}
	table := NewTable(d)
	l := NewLoader("w1", table, testGenerators(t), disk, tasks.NewPool(2, nil), nil, nil)
	table.Activate(loc)
	tickUntil(t, l, func() bool { st, _ := table.Status(loc); return st == CreatedTiles })
	table.Read(loc, func(r *Region) {
		if tt, _ := r.TileAt(0, 0); tt != tile.WallTile {
			t.Fatalf("disk chunk not used: %v", tt)
		}
		if r.Fresh(0, 0) || !r.Fresh(d.ChunkSize, 0) {
			t.Fatalf("fresh flags wrong")
		}
	})
}

func TestLoader_FailureRecorded(t *testing.T) {
	table := NewTable(testDims())
	boom := errors.New("no planet")
	l := NewLoader("w1", table, genFunc(func() (*chunk.Generator, error) { return nil, boom }), nil, tasks.NewPool(2, nil), nil, nil)
	loc := spatial.PlanetLocation{}
	table.Activate(loc)
	tickUntil(t, l, func() bool { return table.Failure(loc) != nil })
	if st, _ := table.Status(loc); st != CreatingTiles {
		t.Fatalf("failed region should stay creating, got %s", st)
	}
}

func TestBuilder_RunsAllStages(t *testing.T) {
	d := testDims()
	gens := testGenerators(t)
	table := NewTable(d)
	disk := chunk.NewDiskStore(t.TempDir(), "w1", d.ChunkSize, nil, nil)
	l := NewLoader("w1", table, gens, disk, tasks.NewPool(4, nil), nil, nil)

	params := DefaultParams()
	params.TreeBorder = 2
	params.ClearingRadius = 4
	params.PlantingChance = 2
	params.PollIntervalMS = 1
	loc := spatial.PlanetLocation{X: 4, Y: 3}
	b := NewBuilder(BuilderConfig{WorldID: "w1", Location: loc, Params: params}, table, gens, disk, nil, nil)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				l.Tick()
				time.Sleep(time.Millisecond)
			}
		}
	}()
	defer func() { close(stop); wg.Wait() }()

	f := b.Generate()
	if b.Generate() != f {
		t.Fatalf("second Generate started another run")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	res, err := f.Wait(ctx)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !b.Done() || b.Status() != "Done" {
		t.Fatalf("status=%q", b.Status())
	}
	if res.ChunksSaved != d.ChunksPerRegion() {
		t.Fatalf("saved=%d want %d", res.ChunksSaved, d.ChunksPerRegion())
	}
	if st, _ := table.Status(loc); st != Done {
		t.Fatalf("region status=%s", st)
	}
	cx, cy := d.RegionWidth/2, d.RegionHeight/2
	table.Read(loc, func(r *Region) {
		den := r.Density()
		if den.Trees() != res.Trees || den.Plants() > res.Plants {
			t.Fatalf("density=%+v result=%+v", den, res)
		}
		for y := 0; y < d.RegionHeight; y++ {
			for x := 0; x < d.RegionWidth; x++ {
				tt, _ := r.TileAt(x, y)
				if _, ok := tt.Tree(); !ok {
					continue
				}
				if x < 2 || y < 2 || x >= d.RegionWidth-2 || y >= d.RegionHeight-2 {
					t.Fatalf("tree in border at (%d,%d)", x, y)
				}
				if (x-cx)*(x-cx)+(y-cy)*(y-cy) <= 16 {
					t.Fatalf("tree in clearing at (%d,%d)", x, y)
				}
			}
		}
	})
	// A rerun on the same disk finds every chunk saved.
	locs, err := disk.List(loc)
	if err != nil || len(locs) != d.ChunksPerRegion() {
		t.Fatalf("chunk files=%d err=%v", len(locs), err)
	}
}

func TestBuilder_FailureFreezesStatus(t *testing.T) {
	boom := errors.New("no planet")
	b := NewBuilder(BuilderConfig{Location: spatial.PlanetLocation{}, Params: DefaultParams()}, NewTable(testDims()),
		genFunc(func() (*chunk.Generator, error) { return nil, boom }), nil, nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := b.Generate().Wait(ctx); !errors.Is(err, boom) {
		t.Fatalf("err=%v", err)
	}
	if b.Done() || !errors.Is(b.Err(), boom) || b.Status() != "Initializing" {
		t.Fatalf("done=%v err=%v status=%q", b.Done(), b.Err(), b.Status())
	}
}

func TestPlantTrees_SpeciesRolledIndependently(t *testing.T) {
	d := spatial.Dims{WorldWidth: 2, WorldHeight: 1, RegionWidth: 32, RegionHeight: 32, ChunkSize: 8}
	cases := []struct {
		name                 string
		deciduous, evergreen float64
		wantDeciduous        bool
		wantEvergreen        bool
	}{
		// Evergreen below deciduous still places evergreens: a shared roll
		// that failed deciduous could never pass evergreen.
		{"evergreen under deciduous", 500, 400, true, true},
		{"only evergreen", 0, 1001, false, true},
		{"only deciduous", 1001, 0, true, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cat, err := catalogs.New(catalogs.Bundle{Biomes: []catalogs.Biome{{
				Name: "grove", MinTemp: -10, MaxTemp: 40, MaxRain: 100,
				Occurs: []catalogs.BiomeType{catalogs.BiomePlains},
				Trees:  []catalogs.BiomeTree{{Tree: "d", Freq: tc.deciduous}, {Tree: "e", Freq: tc.evergreen}},
			}}})
			if err != nil {
				t.Fatalf("catalog: %v", err)
			}
			p := &planet.Planet{Dims: d, NoiseSeed: 11, Landblocks: make([]planet.Landblock, d.WorldTiles())}
			r := New(d, spatial.PlanetLocation{})
			for i := range r.Tiles {
				r.Tiles[i] = tile.SandTile
			}
			for i := range r.fresh {
				r.fresh[i] = true
			}
			params := DefaultParams()
			params.TreeBorder, params.ClearingRadius, params.TreeChance = 0, 0, 1000

			placed := plantTrees(r, p, cat, params, spatial.RegionTileLocation{})
			den := r.Density()
			if placed == 0 || den.Trees() != placed {
				t.Fatalf("placed=%d density=%+v", placed, den)
			}
			if (den.Deciduous > 0) != tc.wantDeciduous || (den.Evergreen > 0) != tc.wantEvergreen {
				t.Fatalf("deciduous=%d evergreen=%d", den.Deciduous, den.Evergreen)
			}
		})
	}
}

func TestTable_RemoveIfDone(t *testing.T) {
	d := testDims()
	tab := NewTable(d)
	loc := spatial.PlanetLocation{X: 3, Y: 1}
	if tab.RemoveIfDone(loc) {
		t.Fatalf("removed a region that was never active")
	}
	tab.Activate(loc)
	if tab.RemoveIfDone(loc) {
		t.Fatalf("removed a NotLoaded region")
	}
	tab.Update(loc, func(r *Region) { r.Status = Done })
	if !tab.RemoveIfDone(loc) {
		t.Fatalf("Done region not removed")
	}
	if _, ok := tab.Status(loc); ok {
		t.Fatalf("region still in the table")
	}
	if !tab.Activate(loc) {
		t.Fatalf("removed region could not be activated again")
	}
}
