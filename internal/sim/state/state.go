// Package state bundles the process-wide stores that are shared by the
// generators, the loader and the streaming manager.
package state

import (
	"sync"

	"worldforge.ai/internal/sim/catalogs"
	"worldforge.ai/internal/sim/chunk"
	"worldforge.ai/internal/sim/noise"
	"worldforge.ai/internal/sim/planet"
	"worldforge.ai/internal/sim/region"
	"worldforge.ai/internal/sim/spatial"
)

type Process struct {
	Catalogs *catalogs.Store
	Planets  *planet.Store
	Regions  *region.Table

	outcropMargin int

	mu     sync.Mutex
	gen    *chunk.Generator
	genFor *planet.Planet
	genCat *catalogs.Catalog
}

func New(dims spatial.Dims, cat *catalogs.Catalog, noiseParams noise.Params, outcropMargin int) *Process {
	return &Process{
		Catalogs:      catalogs.NewStore(cat),
		Planets:       planet.NewStore(noiseParams),
		Regions:       region.NewTable(dims),
		outcropMargin: outcropMargin,
	}
}

// Generator returns a chunk generator for the active planet and catalog. It
// is rebuilt when either changes.
func (p *Process) Generator() (*chunk.Generator, error) {
	cat, err := p.Catalogs.Get()
	if err != nil {
		return nil, err
	}
	pl, field, err := p.Planets.Get()
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.gen == nil || p.genFor != pl || p.genCat != cat {
		p.gen = chunk.NewGenerator(pl, field, cat, p.outcropMargin)
		p.genFor, p.genCat = pl, cat
	}
	return p.gen, nil
}
