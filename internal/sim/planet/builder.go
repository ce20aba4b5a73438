package planet

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"

	"github.com/google/uuid"

	"worldforge.ai/internal/persistence/archive"
	"worldforge.ai/internal/sim/catalogs"
	"worldforge.ai/internal/sim/events"
	"worldforge.ai/internal/sim/mathx"
	"worldforge.ai/internal/sim/noise"
	"worldforge.ai/internal/sim/spatial"
	"worldforge.ai/internal/sim/tasks"
)

type Stage int

const (
	StageInitializing Stage = iota
	StageFlattening
	StageAltitudes
	StageDividing
	StageCoast
	StageRainfall
	StageBiomes
	StageRivers
	StageSaving
	StageDone
)

func (s Stage) Name() string {
	switch s {
	case StageInitializing:
		return "initializing"
	case StageFlattening:
		return "flattening"
	case StageAltitudes:
		return "altitudes"
	case StageDividing:
		return "dividing"
	case StageCoast:
		return "coast"
	case StageRainfall:
		return "rainfall"
	case StageBiomes:
		return "biomes"
	case StageRivers:
		return "rivers"
	case StageSaving:
		return "saving"
	case StageDone:
		return "done"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Status is a copyable progress value.
type Status struct {
	Stage   Stage
	Percent int
}

func (s Status) String() string {
	switch s.Stage {
	case StageInitializing:
		return "Building a giant ball of mud"
	case StageFlattening:
		return "Smoothing out the corners"
	case StageAltitudes:
		return "Squishing out some topology"
	case StageDividing:
		return "Dividing the heaven and hearth"
	case StageCoast:
		return "Crinkling up the coastlines"
	case StageRainfall:
		return fmt.Sprintf("Spinning the barometer %d%%", s.Percent)
	case StageBiomes:
		return "Zooming on on details"
	case StageRivers:
		return "Digging the rivers!"
	case StageSaving:
		return "Saving the World"
	case StageDone:
		return "Planet Gen Done"
	default:
		return s.Stage.Name()
	}
}

// Build runs the whole pipeline synchronously. report is called at the start
// of every stage and on rainfall progress. A catalog that cannot cover the
// generated climate panics.
func Build(seed string, lacunarity float64, dims spatial.Dims, params Params, cat *catalogs.Catalog, report func(Status)) *Planet {
	if report == nil {
		report = func(Status) {}
	}
	noiseSeed, rngSeed := SeedsFor(seed)
	report(Status{Stage: StageInitializing})
	p := &Planet{
		Seed:       seed,
		RNGSeed:    rngSeed,
		NoiseSeed:  noiseSeed,
		Lacunarity: lacunarity,
		Dims:       dims,
	}
	field := noise.New(dims, noiseSeed, lacunarity, params.Noise)

	report(Status{Stage: StageFlattening})
	zeroFill(p)

	report(Status{Stage: StageAltitudes})
	altitudes(p, field, params.AltitudeSamples)

	report(Status{Stage: StageDividing})
	allocateTypes(p, params)

	report(Status{Stage: StageCoast})
	coastlines(p)

	report(Status{Stage: StageRainfall})
	climate(p, field)
	prevailingWinds(p)
	rainfall(p, params.Rain, func(pct int) { report(Status{Stage: StageRainfall, Percent: pct}) })

	rng := mathx.NewRNG(rngSeed)
	report(Status{Stage: StageBiomes})
	assignBiomes(p, cat, rng)

	report(Status{Stage: StageRivers})
	traceRivers(p, rng, params.RiverMax, params.RiverMaxSteps)
	return p
}

type BuilderConfig struct {
	WorldID string
	// WorldDir holds world.dat and its archives. Empty skips saving.
	WorldDir string
	Dims     spatial.Dims
	Params   Params
}

// WorldFile is the planet's path under a world directory.
func WorldFile(worldDir string) string { return filepath.Join(worldDir, "world.dat") }

// Builder runs the pipeline on its own goroutine and exposes progress.
type Builder struct {
	cfg    BuilderConfig
	cats   *catalogs.Store
	store  *Store
	sink   events.Sink
	logger *log.Logger

	mu     sync.Mutex
	fut    *tasks.Future[*Planet]
	runID  string
	status Status
	err    error
}

func NewBuilder(cfg BuilderConfig, cats *catalogs.Store, store *Store, sink events.Sink, logger *log.Logger) *Builder {
	if logger == nil {
		logger = log.New(os.Stdout, "[planet] ", log.LstdFlags|log.Lmicroseconds)
	}
	return &Builder{cfg: cfg, cats: cats, store: store, sink: events.OrDiscard(sink), logger: logger}
}

// Generate starts the pipeline. Later calls return the same future and start
// nothing new.
func (b *Builder) Generate(seed string, lacunarity float64) *tasks.Future[*Planet] {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fut != nil {
		return b.fut
	}
	b.runID = uuid.NewString()
	b.fut = tasks.Spawn("planet:"+seed, b.logger, func() (*Planet, error) {
		p, err := b.run(seed, lacunarity)
		if err != nil {
			b.fail(err)
		}
		return p, err
	})
	return b.fut
}

func (b *Builder) run(seed string, lacunarity float64) (p *Planet, err error) {
	defer func() {
		if r := recover(); r != nil {
			p, err = nil, &tasks.PanicError{Task: "planet", Value: r, Stack: debug.Stack()}
		}
	}()
	cat, err := b.cats.Get()
	if err != nil {
		return nil, err
	}
	b.logger.Printf("generating planet seed=%q lacunarity=%.2f run=%s", seed, lacunarity, b.runID)
	p = Build(seed, lacunarity, b.cfg.Dims, b.cfg.Params, cat, b.setStatus)

	b.setStatus(Status{Stage: StageSaving})
	if b.cfg.WorldDir != "" {
		if err := b.save(p); err != nil {
			// A failed save loses the file, not the planet.
			b.logger.Printf("save planet: %v", err)
		}
	}
	b.store.Set(p)
	b.setStatus(Status{Stage: StageDone})
	b.logger.Printf("planet done: water=%d plains=%d hills=%d rivers=%d", p.WaterHeight, p.PlainsHeight, p.HillsHeight, len(p.Rivers))
	return p, nil
}

func (b *Builder) save(p *Planet) error {
	path := WorldFile(b.cfg.WorldDir)
	if _, archived, ok, err := archive.ArchiveWorldFile(b.cfg.WorldDir, path, p.Seed); err != nil {
		b.logger.Printf("archive previous world: %v", err)
	} else if ok {
		b.logger.Printf("archived previous world to %s", archived)
	}
	info, err := SaveFile(path, b.cfg.WorldID, p)
	if err != nil {
		return err
	}
	e := b.event(events.KindPlanetSaved)
	e.Path, e.Bytes, e.SHA256 = path, info.Bytes, info.SHA256
	e.Data = map[string]any{
		"seed":          p.Seed,
		"water_height":  p.WaterHeight,
		"plains_height": p.PlainsHeight,
		"hills_height":  p.HillsHeight,
		"rivers":        len(p.Rivers),
	}
	b.sink.Emit(e)
	return nil
}

func (b *Builder) setStatus(s Status) {
	b.mu.Lock()
	prev := b.status
	b.status = s
	b.mu.Unlock()
	if prev.Stage != s.Stage {
		e := b.event(events.KindPlanetStage)
		e.Stage = s.Stage.Name()
		b.sink.Emit(e)
	}
}

func (b *Builder) fail(err error) {
	b.mu.Lock()
	b.err = err
	b.mu.Unlock()
	b.logger.Printf("planet generation failed at %q: %v", b.Status(), err)
	e := b.event(events.KindPlanetFailed)
	e.Error = err.Error()
	b.sink.Emit(e)
}

func (b *Builder) event(kind string) events.Event {
	e := events.New(kind, b.cfg.WorldID)
	e.RunID = b.runID
	return e
}

// Status is the display string for the current stage. It freezes on failure.
func (b *Builder) Status() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status.String()
}

func (b *Builder) Progress() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

func (b *Builder) Done() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status.Stage == StageDone
}

func (b *Builder) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}
