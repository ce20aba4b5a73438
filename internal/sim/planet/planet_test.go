package planet

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"worldforge.ai/internal/persistence/archive"
	"worldforge.ai/internal/sim/catalogs"
	"worldforge.ai/internal/sim/events"
	"worldforge.ai/internal/sim/mathx"
	"worldforge.ai/internal/sim/noise"
	"worldforge.ai/internal/sim/spatial"
)

func testDims() spatial.Dims {
	return spatial.Dims{WorldWidth: 24, WorldHeight: 12, RegionWidth: 16, RegionHeight: 16, ChunkSize: 8}
}

func loadCatalog(t *testing.T) *catalogs.Catalog {
	t.Helper()
	c, err := catalogs.Load("../../../configs/raws/index.txt")
	if err != nil {
		t.Fatalf("load raws: %v", err)
	}
	return c
}

func TestBuild_ProducesValidPlanet(t *testing.T) {
	cat := loadCatalog(t)
	var stages []Stage
	p := Build("test-seed", 2, testDims(), DefaultParams(), cat, func(s Status) {
		if len(stages) == 0 || stages[len(stages)-1] != s.Stage {
			stages = append(stages, s.Stage)
		}
	})
	if err := p.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if len(p.Landblocks) != 24*12 {
		t.Fatalf("landblocks=%d", len(p.Landblocks))
	}
	for i, lb := range p.Landblocks {
		if lb.BiomeIdx < 0 || lb.BiomeIdx >= len(cat.Biomes) {
			t.Fatalf("landblock %d has biome %d", i, lb.BiomeIdx)
		}
		if !cat.Biome(lb.BiomeIdx).Accepts(lb.Class, lb.TemperatureC, lb.RainfallMM) {
			t.Fatalf("landblock %d biome %s does not accept class=%s", i, cat.Biome(lb.BiomeIdx).Name, lb.Class)
		}
		if lb.TemperatureC < -100 || lb.TemperatureC > 100 {
			t.Fatalf("landblock %d temperature %v", i, lb.TemperatureC)
		}
	}
	if stages[0] != StageInitializing || stages[len(stages)-1] != StageRivers {
		t.Fatalf("stage order: %v", stages)
	}
	for i := 1; i < len(stages); i++ {
		if stages[i] <= stages[i-1] {
			t.Fatalf("stages went backwards: %v", stages)
		}
	}
}

func TestAllocateTypes_ThresholdsOrderedForAllSeeds(t *testing.T) {
	params := DefaultParams()
	for _, seed := range []string{"", "a", "test-seed", "zz top", "1234567890", "ocean?", "hills"} {
		for _, lac := range []float64{1.5, 2, 3.5} {
			noiseSeed, _ := SeedsFor(seed)
			p := &Planet{Seed: seed, NoiseSeed: noiseSeed, Lacunarity: lac, Dims: testDims()}
			zeroFill(p)
			altitudes(p, noise.New(p.Dims, noiseSeed, lac, params.Noise), params.AltitudeSamples)
			allocateTypes(p, params)
			if p.WaterHeight > p.PlainsHeight || p.PlainsHeight > p.HillsHeight {
				t.Fatalf("seed %q lacunarity %v: water=%d plains=%d hills=%d", seed, lac, p.WaterHeight, p.PlainsHeight, p.HillsHeight)
			}
		}
	}
}

func TestBuild_DeterministicPerSeed(t *testing.T) {
	cat := loadCatalog(t)
	a := Build("same", 2, testDims(), DefaultParams(), cat, nil)
	b := Build("same", 2, testDims(), DefaultParams(), cat, nil)
	if a.WaterHeight != b.WaterHeight || a.HillsHeight != b.HillsHeight || len(a.Rivers) != len(b.Rivers) {
		t.Fatalf("thresholds differ: %d/%d vs %d/%d", a.WaterHeight, a.HillsHeight, b.WaterHeight, b.HillsHeight)
	}
	for i := range a.Landblocks {
		if a.Landblocks[i].Height != b.Landblocks[i].Height || a.Landblocks[i].BiomeIdx != b.Landblocks[i].BiomeIdx {
			t.Fatalf("landblock %d differs", i)
		}
	}
}

func TestSeedsFor(t *testing.T) {
	n, r := SeedsFor("ab")
	if n != 97+98 || r != n+1 {
		t.Fatalf("SeedsFor(ab)=%d,%d", n, r)
	}
}

func TestZeroFill_NeighborsWrapAndStopAtPoles(t *testing.T) {
	p := &Planet{Dims: spatial.Dims{WorldWidth: 4, WorldHeight: 3, RegionWidth: 8, RegionHeight: 8, ChunkSize: 4}}
	zeroFill(p)
	corner := p.Landblocks[0]
	if corner.Neighbors[0].Valid() || corner.Neighbors[0].Dir != None {
		t.Fatalf("north of row 0 should be invalid: %+v", corner.Neighbors[0])
	}
	if corner.Neighbors[1].Index != 4 || corner.Neighbors[2].Index != 1 || corner.Neighbors[3].Index != 3 {
		t.Fatalf("neighbors of 0: %+v", corner.Neighbors)
	}
	if p.Landblocks[11].Neighbors[1].Valid() {
		t.Fatalf("south of last row should be invalid")
	}
	if p.Landblocks[5].BiomeIdx != -1 {
		t.Fatalf("biome not reset")
	}
}

func TestDetermineProportion_CapsAtTop(t *testing.T) {
	// heights: 0,0,1,3 -> atOrBelow = [2,3,3,4]
	atOrBelow := []int{2, 3, 3, 4}
	var c uint32
	if got := determineProportion(atOrBelow, &c, 2); got != 0 {
		t.Fatalf("target 2 => %d", got)
	}
	if got := determineProportion(atOrBelow, &c, 3); got != 1 {
		t.Fatalf("target 3 => %d", got)
	}
	if got := determineProportion(atOrBelow, &c, 99); got != 3 {
		t.Fatalf("target past count => %d", got)
	}
}

func TestCoastlines_SingleWaterCenter(t *testing.T) {
	p := &Planet{Dims: spatial.Dims{WorldWidth: 3, WorldHeight: 3, RegionWidth: 8, RegionHeight: 8, ChunkSize: 4}}
	zeroFill(p)
	for i := range p.Landblocks {
		p.Landblocks[i].Class = catalogs.BiomePlains
	}
	p.Landblocks[4].Class = catalogs.BiomeWater
	coastlines(p)
	for i, lb := range p.Landblocks {
		want := catalogs.BiomePlains
		switch i {
		case 4:
			want = catalogs.BiomeWater
		case 1, 3, 5, 7:
			want = catalogs.BiomeCoastal
		}
		if lb.Class != want {
			t.Fatalf("landblock %d class=%s want %s", i, lb.Class, want)
		}
	}
}

func TestRainfall_TerminatesWithinCap(t *testing.T) {
	d := spatial.Dims{WorldWidth: 6, WorldHeight: 4, RegionWidth: 8, RegionHeight: 8, ChunkSize: 4}
	rng := mathx.NewRNG(7)
	layouts := []struct {
		name     string
		pressure func(x, y int) float64
	}{
		{"modulo", func(x, y int) float64 { return float64((y*d.WorldWidth + x) % 5) }},
		{"flat", func(x, y int) float64 { return 1 }},
		{"rising east", func(x, y int) float64 { return float64(x) }},
		{"falling east", func(x, y int) float64 { return float64(-x) }},
		{"rising south", func(x, y int) float64 { return float64(y) }},
		{"checkerboard", func(x, y int) float64 { return float64((x + y) % 2) }},
		{"random", func(x, y int) float64 { return rng.Float64() * 100 }},
	}
	capCycles := d.WorldWidth * DefaultParams().Rain.CycleCapFactor
	for _, lay := range layouts {
		for _, water := range []int{0, 7, d.WorldTiles() - 1} {
			t.Run(fmt.Sprintf("%s/water@%d", lay.name, water), func(t *testing.T) {
				p := &Planet{Dims: d}
				zeroFill(p)
				for y := 0; y < d.WorldHeight; y++ {
					for x := 0; x < d.WorldWidth; x++ {
						lb := &p.Landblocks[d.PlanetIndex(x, y)]
						lb.Class = catalogs.BiomePlains
						lb.AirPressureKPA = lay.pressure(x, y)
					}
				}
				p.Landblocks[water].Class = catalogs.BiomeWater
				p.Landblocks[(water+9)%d.WorldTiles()].Class = catalogs.BiomeMountains
				prevailingWinds(p)

				last := -1
				rounds := rainfall(p, DefaultParams().Rain, func(pct int) {
					if pct < last || pct > 100 {
						t.Fatalf("progress %d after %d", pct, last)
					}
					last = pct
				})
				if rounds < 1 || rounds > capCycles {
					t.Fatalf("rounds=%d cap=%d", rounds, capCycles)
				}
				if last != 100 {
					t.Fatalf("final progress=%d", last)
				}
			})
		}
	}
}

func TestPrevailingWinds_TiesKeepFirst(t *testing.T) {
	p := &Planet{Dims: spatial.Dims{WorldWidth: 3, WorldHeight: 3, RegionWidth: 8, RegionHeight: 8, ChunkSize: 4}}
	zeroFill(p)
	prevailingWinds(p)
	if got := p.Landblocks[4].PrevailingWind; got != North {
		t.Fatalf("equal pressure should pick north, got %s", got)
	}
	if got := p.Landblocks[0].PrevailingWind; got != South {
		t.Fatalf("row 0 should skip the pole, got %s", got)
	}
}

func TestAssignBiomes_PanicsWithoutCandidate(t *testing.T) {
	cat, err := catalogs.New(catalogs.Bundle{Biomes: []catalogs.Biome{{
		Name: "OnlyPlains", MinTemp: -100, MaxTemp: 100, MinRain: 0, MaxRain: 1 << 30,
		Occurs: []catalogs.BiomeType{catalogs.BiomePlains},
	}}})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	p := &Planet{Dims: spatial.Dims{WorldWidth: 2, WorldHeight: 1, RegionWidth: 8, RegionHeight: 8, ChunkSize: 4}}
	zeroFill(p)
	p.Landblocks[0].Class = catalogs.BiomePlains
	p.Landblocks[1].Class = catalogs.BiomeMountains

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for uncovered class")
		}
	}()
	assignBiomes(p, cat, mathx.NewRNG(1))
}

func TestTraceRivers_DescendAndStop(t *testing.T) {
	p := &Planet{Dims: spatial.Dims{WorldWidth: 5, WorldHeight: 1, RegionWidth: 8, RegionHeight: 8, ChunkSize: 4}}
	zeroFill(p)
	// The row wraps, so 4 borders both 3 and 0.
	heights := []uint32{10, 8, 6, 4, 12}
	for i, h := range heights {
		p.Landblocks[i].Height = h
		p.Landblocks[i].Class = catalogs.BiomeHills
	}
	p.Landblocks[3].Class = catalogs.BiomeWater
	p.HillsHeight = 9
	traceRivers(p, mathx.NewRNG(7), 3, 10)
	if len(p.Rivers) != 2 {
		t.Fatalf("rivers=%d", len(p.Rivers))
	}
	for i, r := range p.Rivers {
		if want := fmt.Sprintf("River %d", i+1); r.Name != want {
			t.Fatalf("name=%q want %q", r.Name, want)
		}
		last := r.Steps[len(r.Steps)-1].Position
		if p.Landblocks[p.Dims.RegionIndex(last)].Class != catalogs.BiomeWater {
			t.Fatalf("%s should end in water, ended at %v", r.Name, last)
		}
	}
	if tiles := p.RiverTiles(); !tiles[0] || !tiles[4] || !tiles[3] {
		t.Fatalf("RiverTiles=%v", tiles)
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	cat := loadCatalog(t)
	p := Build("roundtrip", 2, testDims(), DefaultParams(), cat, nil)
	path := filepath.Join(t.TempDir(), "world.dat")
	info, err := SaveFile(path, "w1", p)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if info.Bytes == 0 || len(info.SHA256) != 64 {
		t.Fatalf("info=%+v", info)
	}
	got, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Seed != p.Seed || got.Dims != p.Dims || got.WaterHeight != p.WaterHeight || len(got.Rivers) != len(p.Rivers) {
		t.Fatalf("header mismatch")
	}
	for i := range p.Landblocks {
		if got.Landblocks[i] != p.Landblocks[i] {
			t.Fatalf("landblock %d: %+v != %+v", i, got.Landblocks[i], p.Landblocks[i])
		}
	}
}

func TestBuilder_GenerateIsIdempotent(t *testing.T) {
	cats := catalogs.NewStore(loadCatalog(t))
	store := NewStore(DefaultParams().Noise)
	dir := t.TempDir()

	var saved int
	sink := events.Func(func(e events.Event) {
		if e.Kind == events.KindPlanetSaved {
			saved++
		}
	})
	b := NewBuilder(BuilderConfig{WorldID: "w1", WorldDir: dir, Dims: testDims(), Params: DefaultParams()}, cats, store, sink, nil)

	f1 := b.Generate("abc", 2)
	f2 := b.Generate("other", 3)
	if f1 != f2 {
		t.Fatalf("second Generate started a new run")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	p, err := f1.Wait(ctx)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if p.Seed != "abc" || !b.Done() || b.Status() != "Planet Gen Done" {
		t.Fatalf("seed=%q done=%v status=%q", p.Seed, b.Done(), b.Status())
	}
	if got, _, err := store.Get(); err != nil || got != p {
		t.Fatalf("store not updated: %v", err)
	}
	if saved != 1 {
		t.Fatalf("saved events=%d", saved)
	}
	if _, err := os.Stat(WorldFile(dir)); err != nil {
		t.Fatalf("world file: %v", err)
	}
}

func TestBuilder_RegenArchivesOldChunks(t *testing.T) {
	dir := t.TempDir()
	stale := filepath.Join(dir, "chunks", "3_2", "8_8.chunk")
	if err := os.MkdirAll(filepath.Dir(stale), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(stale, []byte("previous planet"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	b := NewBuilder(BuilderConfig{WorldID: "w1", WorldDir: dir, Dims: testDims(), Params: DefaultParams()},
		catalogs.NewStore(loadCatalog(t)), NewStore(DefaultParams().Noise), nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := b.Generate("fresh", 2).Wait(ctx); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatalf("old chunk still streamable: %v", err)
	}
	if gens := archive.Generations(dir); len(gens) != 1 {
		t.Fatalf("generations=%v", gens)
	}
	if _, err := os.Stat(filepath.Join(dir, "archives", "gen_001", "chunks", "3_2", "8_8.chunk")); err != nil {
		t.Fatalf("archived chunk: %v", err)
	}
}

func TestBuilder_FailureFreezesStatus(t *testing.T) {
	b := NewBuilder(BuilderConfig{WorldID: "w1", Dims: testDims(), Params: DefaultParams()}, catalogs.NewStore(nil), NewStore(DefaultParams().Noise), nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := b.Generate("x", 2).Wait(ctx); !errors.Is(err, catalogs.ErrNotLoaded) {
		t.Fatalf("err=%v", err)
	}
	if b.Done() || b.Err() == nil {
		t.Fatalf("done=%v err=%v", b.Done(), b.Err())
	}
	if b.Status() != "Building a giant ball of mud" {
		t.Fatalf("status=%q", b.Status())
	}
}

func TestStatusStrings(t *testing.T) {
	if got := (Status{Stage: StageRainfall, Percent: 42}).String(); got != "Spinning the barometer 42%" {
		t.Fatalf("rainfall status=%q", got)
	}
}
