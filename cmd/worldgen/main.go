package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"worldforge.ai/internal/observerproto"
	persistlog "worldforge.ai/internal/persistence/log"
	"worldforge.ai/internal/sim/catalogs"
	"worldforge.ai/internal/sim/chunk"
	"worldforge.ai/internal/sim/events"
	"worldforge.ai/internal/sim/planet"
	"worldforge.ai/internal/sim/spatial"
	"worldforge.ai/internal/sim/state"
	"worldforge.ai/internal/sim/tasks"
	"worldforge.ai/internal/sim/tuning"
	"worldforge.ai/internal/transport/observer"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address (empty to disable)")
		worldID    = flag.String("world", "world_1", "world id")
		seed       = flag.String("seed", "worldforge", "planet seed string (used only when generating)")
		lacunarity = flag.Float64("lacunarity", 0, "height noise lacunarity (0: tuning value)")
		rawsPath   = flag.String("raws", "./configs/raws/index.txt", "raw catalog index file")
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		disableDB  = flag.Bool("disable_db", false, "disable the world index")
		regen      = flag.Bool("regen", false, "generate a new planet even if world.dat exists")

		regionFlag  = flag.String("region", "", "landblock to build once the planet exists, as x,y")
		landingFlag = flag.String("landing", "", "landing tile inside -region kept clear of trees, as x,y")
		viewerFlag  = flag.String("viewer", "", "initial viewer tile inside -region, as x,y (enables streaming)")
		once        = flag.Bool("once", false, "exit after the planet (and -region) are built")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[worldgen] ", log.LstdFlags|log.Lmicroseconds)

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", *tuningPath)
		tune = tuning.Defaults()
	}
	if *lacunarity <= 0 {
		*lacunarity = tune.Planet.Lacunarity
	}

	cat, err := catalogs.Load(*rawsPath)
	if err != nil {
		logger.Fatalf("load raws: %v", err)
	}
	logger.Printf("raws loaded: biomes=%d materials=%d plants=%d digest=%s", len(cat.Biomes), len(cat.Materials), len(cat.Plants), cat.Digest[:12])

	var regionLoc *spatial.PlanetLocation
	var landing, viewer *spatial.RegionTileLocation
	if *regionFlag != "" {
		x, y, err := parsePair(*regionFlag)
		if err != nil {
			logger.Fatalf("-region: %v", err)
		}
		regionLoc = &spatial.PlanetLocation{X: x, Y: y}
	}
	for _, f := range []struct {
		raw string
		dst **spatial.RegionTileLocation
		nm  string
	}{{*landingFlag, &landing, "-landing"}, {*viewerFlag, &viewer, "-viewer"}} {
		if f.raw == "" {
			continue
		}
		if regionLoc == nil {
			logger.Fatalf("%s requires -region", f.nm)
		}
		x, y, err := parsePair(f.raw)
		if err != nil {
			logger.Fatalf("%s: %v", f.nm, err)
		}
		*f.dst = &spatial.RegionTileLocation{X: x, Y: y}
	}

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	if err := os.MkdirAll(worldDir, 0o755); err != nil {
		logger.Fatalf("mkdir %s: %v", worldDir, err)
	}

	mirror, err := buildR2MirrorRuntime(*dataDir, logger)
	if err != nil {
		logger.Fatalf("init r2 mirror: %v", err)
	}
	defer mirror.Close()

	idx, err := openRuntimeIndex(worldDir, *worldID, *disableDB, logger)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if ci, ok := idx.(catalogIndex); ok {
			if err := ci.UpsertCatalog(cat, tune); err != nil {
				logger.Printf("index backend: upsert catalog: %v", err)
			}
		}
	}

	eventLog := persistlog.NewEventLogger(worldDir, persistlog.Options{
		RotateLayout: mirror.rotateLayout,
		OnClose:      mirror.Enqueue,
	}, logger)
	defer eventLog.Close()

	sinks := events.Multi{eventLog, mirror.Sink()}
	if idx != nil {
		sinks = append(sinks, idx)
	}

	proc := state.New(tune.World, cat, tune.Planet.Noise, tune.Region.OutcropMargin)
	pool := tasks.NewPool(tune.Stream.Workers, logger)
	disk := chunk.NewDiskStore(worldDir, *worldID, tune.World.ChunkSize, sinks, nil)
	dr := newDriver(*worldID, proc, disk, pool, tune.Stream.LoadRadius, tune.Region, sinks, logger)

	// Planet: resume from world.dat unless asked to regenerate.
	var pb *planet.Builder
	worldFile := planet.WorldFile(worldDir)
	if _, statErr := os.Stat(worldFile); statErr == nil && !*regen {
		p, err := planet.LoadFile(worldFile)
		if err != nil {
			logger.Fatalf("load planet: %v", err)
		}
		if p.Dims != tune.World {
			logger.Fatalf("planet dims %+v do not match tuning %+v; rerun with -regen", p.Dims, tune.World)
		}
		proc.Planets.Set(p)
		logger.Printf("resumed planet seed=%q from %s", p.Seed, worldFile)
	} else {
		pb = planet.NewBuilder(planet.BuilderConfig{
			WorldID:  *worldID,
			WorldDir: worldDir,
			Dims:     tune.World,
			Params:   tune.Planet,
		}, proc.Catalogs, proc.Planets, sinks, nil)
		pb.Generate(*seed, *lacunarity)
		logger.Printf("generating planet seed=%q lacunarity=%.2f", *seed, *lacunarity)
	}

	planetState := func() observerproto.PlanetState {
		if pb == nil {
			return observerproto.PlanetState{Status: planet.Status{Stage: planet.StageDone}.String(), Done: true}
		}
		st := observerproto.PlanetState{Status: pb.Status(), Done: pb.Done()}
		if err := pb.Err(); err != nil {
			st.Error = err.Error()
		}
		return st
	}
	obs := observer.NewServer(observer.Config{
		WorldID: *worldID,
		Dims:    tune.World,
		PushHz:  tune.Stream.ObserverHz,
	}, dr.stream, proc.Regions, planetState, nil)

	ctx, cancel := signalContext()
	defer cancel()

	driverDone := make(chan struct{})
	go func() {
		defer close(driverDone)
		dr.Run(ctx, tune.Stream.TickRateHz)
	}()

	// Wait for the planet, then start the requested region and viewer.
	go func() {
		if pb != nil {
			if _, err := pb.Generate(*seed, *lacunarity).Wait(ctx); err != nil {
				if !errors.Is(err, context.Canceled) {
					logger.Printf("planet generation failed: %v", err)
				}
				if *once {
					cancel()
				}
				return
			}
		}
		if regionLoc == nil {
			if *once {
				cancel()
			}
			return
		}
		if viewer != nil {
			dr.stream.SetViewer(spatial.Position{Region: *regionLoc, Tile: *viewer})
		}
		b, err := dr.BuildRegion(*regionLoc, landing)
		if err != nil {
			logger.Printf("build region: %v", err)
			if *once {
				cancel()
			}
			return
		}
		res, err := b.Generate().Wait(ctx)
		if err == nil {
			logger.Printf("region %s done: plants=%d trees=%d chunks_saved=%d", res.Location, res.Plants, res.Trees, res.ChunksSaved)
		}
		if *once {
			cancel()
		}
	}()

	var srv *http.Server
	if strings.TrimSpace(*addr) != "" {
		srv = &http.Server{
			Addr: *addr,
			Handler: newMux(httpDeps{
				worldID:  *worldID,
				driver:   dr,
				observer: obs,
				pool:     pool,
				index:    idx,
				mirror:   mirror,
				admin:    envBool("WF_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()),
				pprof:    envBool("WF_ENABLE_PPROF_HTTP", false),
				rawsPath: *rawsPath,
			}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Printf("listening on %s", *addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Fatalf("ListenAndServe: %v", err)
			}
		}()
	}

	<-ctx.Done()
	<-driverDone
	if srv != nil {
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(ctx2)
		cancel2()
	}
	flushCtx, flushCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer flushCancel()
	_ = dr.Shutdown(flushCtx)
	pool.Wait()
	logger.Printf("stopped")
}

func parsePair(s string) (int, int, error) {
	a, b, ok := strings.Cut(s, ",")
	if !ok {
		return 0, 0, fmt.Errorf("want x,y, got %q", s)
	}
	x, err := strconv.Atoi(strings.TrimSpace(a))
	if err != nil {
		return 0, 0, err
	}
	y, err := strconv.Atoi(strings.TrimSpace(b))
	if err != nil {
		return 0, 0, err
	}
	return x, y, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}
