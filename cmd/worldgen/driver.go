package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"worldforge.ai/internal/sim/chunk"
	"worldforge.ai/internal/sim/events"
	"worldforge.ai/internal/sim/planet"
	"worldforge.ai/internal/sim/region"
	"worldforge.ai/internal/sim/spatial"
	"worldforge.ai/internal/sim/state"
	"worldforge.ai/internal/sim/stream"
	"worldforge.ai/internal/sim/tasks"
)

// driver owns the main-loop side of generation: it ticks the region loader
// and the streaming manager, starts region builders on request and evicts
// finished regions nothing references any more.
type driver struct {
	worldID      string
	proc         *state.Process
	loader       *region.Loader
	stream       *stream.Manager
	disk         *chunk.DiskStore
	regionParams region.Params
	sink         events.Sink
	logger       *log.Logger

	mu         sync.Mutex
	builders   map[spatial.PlanetLocation]*region.Builder
	ticks      uint64
	lastLoader region.LoaderReport
}

func newDriver(worldID string, proc *state.Process, disk *chunk.DiskStore, pool *tasks.Pool, loadRadius int, regionParams region.Params, sink events.Sink, logger *log.Logger) *driver {
	dims := proc.Regions.Dims()
	return &driver{
		worldID:      worldID,
		proc:         proc,
		loader:       region.NewLoader(worldID, proc.Regions, proc, disk, pool, sink, nil),
		stream:       stream.NewManager(stream.Config{WorldID: worldID, LoadRadius: loadRadius}, dims, disk, proc.Regions, proc, pool, sink, nil),
		disk:         disk,
		regionParams: regionParams,
		sink:         events.OrDiscard(sink),
		logger:       logger,
		builders:     map[spatial.PlanetLocation]*region.Builder{},
	}
}

func (d *driver) planetReady() bool {
	_, _, err := d.proc.Planets.Get()
	return err == nil
}

// BuildRegion starts (or returns) the builder for one landblock.
func (d *driver) BuildRegion(loc spatial.PlanetLocation, landing *spatial.RegionTileLocation) (*region.Builder, error) {
	dims := d.proc.Regions.Dims()
	if !dims.InWorld(loc.X, loc.Y) {
		return nil, fmt.Errorf("region %s outside world %dx%d", loc, dims.WorldWidth, dims.WorldHeight)
	}
	if landing != nil && !dims.InRegion(landing.X, landing.Y) {
		return nil, fmt.Errorf("landing %d,%d outside region", landing.X, landing.Y)
	}
	if !d.planetReady() {
		return nil, planet.ErrNoPlanet
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if b, ok := d.builders[loc]; ok {
		return b, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := d.stream.PrepareRegion(ctx, loc); err != nil {
		return nil, fmt.Errorf("prepare region %s: %w", loc, err)
	}
	b := region.NewBuilder(region.BuilderConfig{
		WorldID:  d.worldID,
		Location: loc,
		Landing:  landing,
		Params:   d.regionParams,
	}, d.proc.Regions, d.proc, d.disk, d.sink, nil)
	d.builders[loc] = b
	b.Generate()
	return b, nil
}

func (d *driver) Builder(loc spatial.PlanetLocation) (*region.Builder, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.builders[loc]
	return b, ok
}

// Tick advances the loader every time, and the stream and region eviction
// once a planet exists.
func (d *driver) Tick() {
	rep := d.loader.Tick()
	if d.planetReady() {
		d.stream.Tick()
		d.evictRegions()
	}
	d.mu.Lock()
	d.ticks++
	d.lastLoader = rep
	d.mu.Unlock()
}

// evictRegions drops finished regions that neither the viewer nor any chunk
// job references. Their chunks are on disk by then.
func (d *driver) evictRegions() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for loc, b := range d.builders {
		if !b.Done() || d.stream.References(loc) {
			continue
		}
		if !d.proc.Regions.RemoveIfDone(loc) {
			continue
		}
		delete(d.builders, loc)
		d.logger.Printf("region %s evicted", loc)
		e := events.New(events.KindRegionStatus, d.worldID).WithRegion(loc.X, loc.Y)
		e.Stage = "evicted"
		d.sink.Emit(e)
	}
}

func (d *driver) Stats() (ticks uint64, loader region.LoaderReport) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ticks, d.lastLoader
}

// Run ticks at hz until ctx is done.
func (d *driver) Run(ctx context.Context, hz int) {
	if hz <= 0 {
		hz = 30
	}
	ticker := time.NewTicker(time.Second / time.Duration(hz))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Tick()
		}
	}
}

// Shutdown saves every changed resident chunk.
func (d *driver) Shutdown(ctx context.Context) error {
	n, err := d.stream.FlushAll(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		d.logger.Printf("flush: saved=%d err=%v", n, err)
		return err
	}
	d.logger.Printf("flushed %d chunks", n)
	return nil
}
