package region

import (
	"fmt"
	"log"
	"os"

	"worldforge.ai/internal/sim/chunk"
	"worldforge.ai/internal/sim/events"
	"worldforge.ai/internal/sim/spatial"
	"worldforge.ai/internal/sim/tasks"
)

// Generators yields the chunk generator for the active planet.
type Generators interface {
	Generator() (*chunk.Generator, error)
}

type loaded struct {
	chunk *chunk.Chunk
	fresh bool
}

type loadJob struct {
	region spatial.PlanetLocation
	loc    spatial.ChunkLocation
	fut    *tasks.Future[loaded]
}

// Loader fills NotLoaded regions with one pool job per chunk and applies the
// results on the driver's tick.
type Loader struct {
	worldID string
	table   *Table
	gens    Generators
	disk    *chunk.DiskStore
	pool    *tasks.Pool
	sink    events.Sink
	logger  *log.Logger

	pending []loadJob
}

func NewLoader(worldID string, table *Table, gens Generators, disk *chunk.DiskStore, pool *tasks.Pool, sink events.Sink, logger *log.Logger) *Loader {
	if logger == nil {
		logger = log.New(os.Stdout, "[region] ", log.LstdFlags|log.Lmicroseconds)
	}
	return &Loader{
		worldID: worldID,
		table:   table,
		gens:    gens,
		disk:    disk,
		pool:    pool,
		sink:    events.OrDiscard(sink),
		logger:  logger,
	}
}

type LoaderReport struct {
	Spawned int
	Applied int
	Pending int
}

// Tick never blocks on a job.
func (l *Loader) Tick() LoaderReport {
	var rep LoaderReport
	for _, loc := range l.table.claimNotLoaded() {
		it := l.table.Dims().AllChunks()
		for c, ok := it.Next(); ok; c, ok = it.Next() {
			l.pending = append(l.pending, loadJob{region: loc, loc: c, fut: l.spawn(loc, c)})
			rep.Spawned++
		}
	}

	kept := l.pending[:0]
	for _, j := range l.pending {
		if !j.fut.Ready() {
			kept = append(kept, j)
			continue
		}
		res, err := j.fut.Result()
		if err != nil {
			l.fail(j, err)
			continue
		}
		l.apply(j, res)
		rep.Applied++
	}
	l.pending = kept
	rep.Pending = len(l.pending)
	return rep
}

func (l *Loader) Pending() int { return len(l.pending) }

func (l *Loader) spawn(region spatial.PlanetLocation, loc spatial.ChunkLocation) *tasks.Future[loaded] {
	name := fmt.Sprintf("region %s chunk %s", region, loc)
	return tasks.Go(l.pool, name, func() (loaded, error) {
		if l.disk != nil {
			if c, ok := l.disk.Load(region, loc); ok {
				return loaded{chunk: c}, nil
			}
		}
		g, err := l.gens.Generator()
		if err != nil {
			return loaded{}, err
		}
		c := g.Populate(region, loc)
		e := events.New(events.KindChunkGenerate, l.worldID).WithRegion(region.X, region.Y).WithChunk(loc.X, loc.Y)
		l.sink.Emit(e)
		return loaded{chunk: c, fresh: true}, nil
	})
}

func (l *Loader) apply(j loadJob, res loaded) {
	var complete bool
	found := l.table.Update(j.region, func(r *Region) {
		complete = r.Apply(res.chunk, res.fresh)
	})
	if !found {
		// The region was removed while the job ran.
		return
	}
	if complete {
		l.logger.Printf("region %s tiles created", j.region)
		e := events.New(events.KindRegionStatus, l.worldID).WithRegion(j.region.X, j.region.Y)
		e.Stage = CreatedTiles.String()
		l.sink.Emit(e)
	}
}

func (l *Loader) fail(j loadJob, err error) {
	l.logger.Printf("region %s chunk %s: %v", j.region, j.loc, err)
	l.table.Update(j.region, func(r *Region) {
		if r.Err == nil {
			r.Err = err
		}
	})
	e := events.New(events.KindRegionFailed, l.worldID).WithRegion(j.region.X, j.region.Y).WithChunk(j.loc.X, j.loc.Y)
	e.Error = err.Error()
	l.sink.Emit(e)
}
