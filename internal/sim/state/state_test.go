package state

import (
	"errors"
	"testing"

	"worldforge.ai/internal/sim/catalogs"
	"worldforge.ai/internal/sim/planet"
	"worldforge.ai/internal/sim/spatial"
)

func TestProcess_GeneratorFollowsPlanet(t *testing.T) {
	cat, err := catalogs.Load("../../../configs/raws/index.txt")
	if err != nil {
		t.Fatalf("load raws: %v", err)
	}
	dims := spatial.Dims{WorldWidth: 8, WorldHeight: 4, RegionWidth: 16, RegionHeight: 16, ChunkSize: 8}
	params := planet.DefaultParams()
	p := New(dims, cat, params.Noise, 20)

	if _, err := p.Generator(); !errors.Is(err, planet.ErrNoPlanet) {
		t.Fatalf("want ErrNoPlanet, got %v", err)
	}

	a := planet.Build("a", 2, dims, params, cat, nil)
	p.Planets.Set(a)
	g1, err := p.Generator()
	if err != nil {
		t.Fatalf("generator: %v", err)
	}
	if g2, _ := p.Generator(); g2 != g1 {
		t.Fatalf("generator rebuilt without a planet change")
	}

	b := planet.Build("b", 2, dims, params, cat, nil)
	p.Planets.Set(b)
	g3, err := p.Generator()
	if err != nil || g3 == g1 || g3.Planet() != b {
		t.Fatalf("generator did not follow the new planet: %v", err)
	}
}
