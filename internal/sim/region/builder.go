package region

import (
	"errors"
	"fmt"
	"log"
	"os"
	"runtime/debug"
	"sync"
	"time"

	"worldforge.ai/internal/sim/chunk"
	"worldforge.ai/internal/sim/events"
	"worldforge.ai/internal/sim/spatial"
	"worldforge.ai/internal/sim/tasks"
)

var ErrRegionRemoved = errors.New("region: removed while building")

type Stage int

const (
	StageInitializing Stage = iota
	StageChunking
	StageLoaded
	StageVegetation
	StageTrees
	StageDividing
	StageDone
)

func (s Stage) Name() string {
	switch s {
	case StageInitializing:
		return "initializing"
	case StageChunking:
		return "chunking"
	case StageLoaded:
		return "loaded"
	case StageVegetation:
		return "vegetation"
	case StageTrees:
		return "trees"
	case StageDividing:
		return "dividing"
	case StageDone:
		return "done"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

func (s Stage) String() string {
	switch s {
	case StageInitializing:
		return "Initializing"
	case StageChunking:
		return "Dividing & Conquering"
	case StageLoaded:
		return "Region activated, making it pretty"
	case StageVegetation:
		return "Re-seeding the lawn"
	case StageTrees:
		return "Planting trees"
	case StageDividing:
		return "Dividing into chunks..."
	case StageDone:
		return "Done"
	default:
		return s.Name()
	}
}

type BuilderConfig struct {
	WorldID  string
	Location spatial.PlanetLocation
	// Landing is the arrival tile kept clear of trees. Nil means the region
	// center.
	Landing *spatial.RegionTileLocation
	Params  Params
}

// Result summarizes a finished region.
type Result struct {
	Location    spatial.PlanetLocation
	Plants      int
	Trees       int
	ChunksSaved int
}

// Builder runs the region stages on its own goroutine. Tile creation itself
// is done by the Loader on the driver's tick; the builder waits for it by
// polling the region status.
type Builder struct {
	cfg    BuilderConfig
	table  *Table
	gens   Generators
	disk   *chunk.DiskStore
	sink   events.Sink
	logger *log.Logger

	mu    sync.Mutex
	fut   *tasks.Future[Result]
	stage Stage
	err   error
}

func NewBuilder(cfg BuilderConfig, table *Table, gens Generators, disk *chunk.DiskStore, sink events.Sink, logger *log.Logger) *Builder {
	if logger == nil {
		logger = log.New(os.Stdout, "[region] ", log.LstdFlags|log.Lmicroseconds)
	}
	return &Builder{cfg: cfg, table: table, gens: gens, disk: disk, sink: events.OrDiscard(sink), logger: logger}
}

// Generate starts the builder once. Later calls return the same future.
func (b *Builder) Generate() *tasks.Future[Result] {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fut != nil {
		return b.fut
	}
	name := "region " + b.cfg.Location.String()
	b.fut = tasks.Spawn(name, b.logger, func() (res Result, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = &tasks.PanicError{Task: name, Value: r, Stack: debug.Stack()}
			}
			if err != nil {
				b.fail(err)
			}
		}()
		return b.run()
	})
	return b.fut
}

func (b *Builder) run() (Result, error) {
	loc := b.cfg.Location
	d := b.table.Dims()
	res := Result{Location: loc}
	landing := spatial.RegionTileLocation{X: d.RegionWidth / 2, Y: d.RegionHeight / 2}
	if b.cfg.Landing != nil {
		landing = *b.cfg.Landing
	}

	g, err := b.gens.Generator()
	if err != nil {
		return res, err
	}

	b.setStage(StageChunking)
	if b.table.Activate(loc) {
		b.logger.Printf("region %s activated", loc)
	}
	// Cross-goroutine handoff: the Loader advances the status on the
	// driver's tick.
	for {
		st, ok := b.table.Status(loc)
		if !ok {
			return res, ErrRegionRemoved
		}
		if err := b.table.Failure(loc); err != nil {
			return res, err
		}
		if st >= CreatedTiles {
			break
		}
		time.Sleep(b.cfg.Params.PollInterval())
	}
	b.setStage(StageLoaded)

	p, cat := g.Planet(), g.Catalog()
	b.setStage(StageVegetation)
	b.table.Update(loc, func(r *Region) { res.Plants = growPlants(r, p, cat, b.cfg.Params) })

	b.setStage(StageTrees)
	b.table.Update(loc, func(r *Region) { res.Trees = plantTrees(r, p, cat, b.cfg.Params, landing) })

	b.setStage(StageDividing)
	var toSave []*chunk.Chunk
	found := b.table.Read(loc, func(r *Region) {
		it := d.AllChunks()
		for c, ok := it.Next(); ok; c, ok = it.Next() {
			if b.disk != nil && !b.disk.Exists(loc, c) {
				toSave = append(toSave, r.Chunk(c))
			}
		}
	})
	if !found {
		return res, ErrRegionRemoved
	}
	for _, c := range toSave {
		if err := b.disk.Save(c); err != nil {
			b.logger.Printf("divide: %v", err)
			continue
		}
		res.ChunksSaved++
	}

	b.table.Update(loc, func(r *Region) { r.Status = Done })
	b.setStage(StageDone)
	b.logger.Printf("region %s done: plants=%d trees=%d saved=%d", loc, res.Plants, res.Trees, res.ChunksSaved)
	return res, nil
}

func (b *Builder) setStage(s Stage) {
	b.mu.Lock()
	b.stage = s
	b.mu.Unlock()
	e := events.New(events.KindRegionStatus, b.cfg.WorldID).WithRegion(b.cfg.Location.X, b.cfg.Location.Y)
	e.Stage = s.Name()
	b.sink.Emit(e)
}

func (b *Builder) fail(err error) {
	b.mu.Lock()
	b.err = err
	stage := b.stage
	b.mu.Unlock()
	b.logger.Printf("region %s failed at %q: %v", b.cfg.Location, stage, err)
	e := events.New(events.KindRegionFailed, b.cfg.WorldID).WithRegion(b.cfg.Location.X, b.cfg.Location.Y)
	e.Stage = stage.Name()
	e.Error = err.Error()
	b.sink.Emit(e)
}

func (b *Builder) Location() spatial.PlanetLocation { return b.cfg.Location }

func (b *Builder) Stage() Stage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stage
}

// Status is the display string of the current stage. It freezes on failure.
func (b *Builder) Status() string { return b.Stage().String() }

func (b *Builder) Done() bool { return b.Stage() == StageDone }

func (b *Builder) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}
