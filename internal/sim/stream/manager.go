// Package stream keeps the resident chunk set in step with a moving viewer.
// Chunk creation and eviction run as pool jobs; the driver's Tick polls them
// and is the only place the resident set changes.
package stream

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"sync"

	"worldforge.ai/internal/sim/chunk"
	"worldforge.ai/internal/sim/events"
	"worldforge.ai/internal/sim/region"
	"worldforge.ai/internal/sim/spatial"
	"worldforge.ai/internal/sim/tasks"
	"worldforge.ai/internal/sim/tile"
)

// Key names a chunk across regions.
type Key struct {
	Region spatial.PlanetLocation `json:"region"`
	Chunk  spatial.ChunkLocation  `json:"chunk"`
}

func (k Key) String() string { return k.Region.String() + "/" + k.Chunk.String() }

type Config struct {
	WorldID string
	// LoadRadius is in chunks.
	LoadRadius int
}

// TickReport is published after every Tick for renderers and the observer.
type TickReport struct {
	Tick          uint64 `json:"tick"`
	Resident      []Key  `json:"resident"`
	Dirty         []Key  `json:"dirty"`
	Created       int    `json:"created"`
	Destroyed     int    `json:"destroyed"`
	QueuedCreate  int    `json:"queued_create"`
	QueuedDestroy int    `json:"queued_destroy"`
	InFlight      int    `json:"in_flight"`
	Failed        int    `json:"failed"`
}

// origin records where a resident chunk's content came from.
type origin uint8

const (
	fromNoise origin = iota
	fromDisk
	fromRegion
)

type built struct {
	c    *chunk.Chunk
	from origin
}

type Manager struct {
	cfg    Config
	dims   spatial.Dims
	disk   *chunk.DiskStore
	table  *region.Table
	gens   region.Generators
	pool   *tasks.Pool
	sink   events.Sink
	logger *log.Logger

	mu       sync.RWMutex
	viewer   spatial.Position
	radius   int
	changed  bool
	resident map[Key]*chunk.Chunk
	origins  map[Key]origin
	dirty    map[Key]struct{}

	createQ    []Key
	destroyQ   []Key
	queued     map[Key]bool
	creating   map[Key]*tasks.Future[built]
	destroying map[Key]*tasks.Future[struct{}]

	tick uint64
	last TickReport
}

func NewManager(cfg Config, dims spatial.Dims, disk *chunk.DiskStore, table *region.Table, gens region.Generators, pool *tasks.Pool, sink events.Sink, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.New(os.Stdout, "[stream] ", log.LstdFlags|log.Lmicroseconds)
	}
	return &Manager{
		cfg:        cfg,
		dims:       dims,
		disk:       disk,
		table:      table,
		gens:       gens,
		pool:       pool,
		sink:       events.OrDiscard(sink),
		logger:     logger,
		radius:     cfg.LoadRadius,
		changed:    true,
		resident:   map[Key]*chunk.Chunk{},
		origins:    map[Key]origin{},
		dirty:      map[Key]struct{}{},
		queued:     map[Key]bool{},
		creating:   map[Key]*tasks.Future[built]{},
		destroying: map[Key]*tasks.Future[struct{}]{},
	}
}

// SetViewer moves the viewpoint. Only a change of region or chunk triggers
// a view update on the next Tick.
func (m *Manager) SetViewer(p spatial.Position) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.Region != m.viewer.Region || m.dims.Chunk(p) != m.dims.Chunk(m.viewer) {
		m.changed = true
	}
	m.viewer = p
}

// Move offsets the viewer by whole tiles, crossing into neighboring regions
// as needed, and returns the new position.
func (m *Manager) Move(dx, dy int) spatial.Position {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, changed := m.dims.Offset(m.viewer, dx, dy)
	if changed {
		m.changed = true
	}
	m.viewer = p
	return p
}

func (m *Manager) SetLoadRadius(r int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r != m.radius {
		m.radius = r
		m.changed = true
	}
}

func (m *Manager) Viewer() spatial.Position {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.viewer
}

// Tick polls finished jobs, recomputes the view when it changed, drains both
// queues into jobs and clears the dirty set. It never blocks on a job.
func (m *Manager) Tick() TickReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tick++
	rep := TickReport{Tick: m.tick}

	m.pollLocked(&rep)
	m.refreshLocked()
	if m.changed {
		m.updateViewLocked()
		m.changed = false
	}
	rep.QueuedCreate, rep.QueuedDestroy = len(m.createQ), len(m.destroyQ)
	m.drainLocked()

	rep.InFlight = len(m.creating) + len(m.destroying)
	rep.Resident = sortedKeys(m.resident)
	rep.Dirty = sortedKeys(m.dirty)
	// Dirty marks live for exactly one tick, after creation and destruction.
	clear(m.dirty)
	m.last = rep
	return rep
}

// LastReport is safe to call from any goroutine.
func (m *Manager) LastReport() TickReport {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last
}

// updateViewLocked queues creation for every chunk inside the load circle
// around the viewer and destruction for resident chunks outside it.
func (m *Manager) updateViewLocked() {
	cs := m.dims.ChunkSize
	r := m.radius
	center := m.dims.Chunk(m.viewer)

	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if dx*dx+dy*dy >= r*r {
				continue
			}
			k := Key{Region: m.viewer.Region, Chunk: m.dims.ClampChunk(center.X+dx*cs, center.Y+dy*cs)}
			if m.busyLocked(k) {
				continue
			}
			if _, ok := m.resident[k]; ok {
				continue
			}
			m.queued[k] = true
			m.createQ = append(m.createQ, k)
		}
	}

	limit := r * cs
	limit2 := limit * limit
	for k := range m.resident {
		if m.busyLocked(k) {
			continue
		}
		if k.Region == m.viewer.Region {
			dx, dy := k.Chunk.X-center.X, k.Chunk.Y-center.Y
			if dx*dx < limit2 && dy*dy < limit2 {
				continue
			}
		}
		m.queued[k] = true
		m.destroyQ = append(m.destroyQ, k)
	}

	sort.SliceStable(m.createQ, func(i, j int) bool {
		return distance2(m.createQ[i].Chunk, center) < distance2(m.createQ[j].Chunk, center)
	})
	sort.Slice(m.destroyQ, func(i, j int) bool { return keyLess(m.destroyQ[i], m.destroyQ[j]) })
}

// busyLocked reports whether k already has a queued or running job.
func (m *Manager) busyLocked(k Key) bool {
	if m.queued[k] {
		return true
	}
	if _, ok := m.creating[k]; ok {
		return true
	}
	_, ok := m.destroying[k]
	return ok
}

func (m *Manager) drainLocked() {
	for _, k := range m.createQ {
		delete(m.queued, k)
		m.creating[k] = tasks.Go(m.pool, "create "+k.String(), func() (built, error) { return m.build(k) })
	}
	m.createQ = m.createQ[:0]

	for _, k := range m.destroyQ {
		delete(m.queued, k)
		c, from := m.resident[k], m.origins[k]
		m.destroying[k] = tasks.Go(m.pool, "destroy "+k.String(), func() (struct{}, error) {
			_, err := m.persist(c, from)
			return struct{}{}, err
		})
	}
	m.destroyQ = m.destroyQ[:0]
}

func (m *Manager) pollLocked(rep *TickReport) {
	for k, f := range m.creating {
		if !f.Ready() {
			continue
		}
		delete(m.creating, k)
		b, err := f.Result()
		if err != nil {
			m.logger.Printf("create %s: %v", k, err)
			rep.Failed++
			// Let the next view update retry.
			m.changed = true
			continue
		}
		m.resident[k] = b.c
		m.origins[k] = b.from
		m.dirty[k] = struct{}{}
		rep.Created++
	}
	for k, f := range m.destroying {
		if !f.Ready() {
			continue
		}
		delete(m.destroying, k)
		if _, err := f.Result(); err != nil {
			// Save failures lose the write; the chunk is evicted anyway.
			m.logger.Printf("destroy %s: %v", k, err)
			rep.Failed++
		}
		delete(m.resident, k)
		delete(m.origins, k)
		rep.Destroyed++
	}
	// The view may have moved while jobs ran; recheck it once they settle.
	if rep.Created > 0 || rep.Destroyed > 0 {
		m.changed = true
	}
}

// refreshLocked swaps unedited noise chunks for the region's copy once that
// region is Done, so resident chunks show its vegetation.
func (m *Manager) refreshLocked() {
	if m.table == nil {
		return
	}
	done := map[spatial.PlanetLocation]bool{}
	for k, from := range m.origins {
		if from != fromNoise {
			continue
		}
		if _, evicting := m.destroying[k]; evicting {
			continue
		}
		c := m.resident[k]
		if c.Changed() {
			continue
		}
		isDone, seen := done[k.Region]
		if !seen {
			st, ok := m.table.Status(k.Region)
			isDone = ok && st == region.Done
			done[k.Region] = isDone
		}
		if !isDone {
			continue
		}
		fresh := m.regionSlice(k)
		if fresh == nil {
			continue
		}
		if fresh.Digest() != c.Digest() {
			m.dirty[k] = struct{}{}
		}
		m.resident[k] = fresh
		m.origins[k] = fromRegion
	}
}

// build loads a chunk from disk, slices it from a finished region, or
// populates it from noise, in that order.
func (m *Manager) build(k Key) (built, error) {
	if m.disk != nil {
		if c, ok := m.disk.Load(k.Region, k.Chunk); ok {
			return built{c: c, from: fromDisk}, nil
		}
	}
	if c := m.regionSlice(k); c != nil {
		return built{c: c, from: fromRegion}, nil
	}
	g, err := m.gens.Generator()
	if err != nil {
		return built{}, err
	}
	c := g.Populate(k.Region, k.Chunk)
	e := events.New(events.KindChunkGenerate, m.cfg.WorldID).WithRegion(k.Region.X, k.Region.Y).WithChunk(k.Chunk.X, k.Chunk.Y)
	m.sink.Emit(e)
	return built{c: c, from: fromNoise}, nil
}

// regionSlice returns k's chunk from the active table once its region is
// Done. Slices taken before then lack vegetation.
func (m *Manager) regionSlice(k Key) *chunk.Chunk {
	if m.table == nil {
		return nil
	}
	var c *chunk.Chunk
	m.table.Read(k.Region, func(r *region.Region) {
		if r.Status == region.Done {
			c = r.Chunk(k.Chunk)
		}
	})
	return c
}

// persist writes c when it holds edits. An unedited chunk is written only
// when it came from noise, its region is not in the table and no file
// exists yet; regions in the table write their own chunks when they finish.
func (m *Manager) persist(c *chunk.Chunk, from origin) (bool, error) {
	if m.disk == nil || c == nil {
		return false, nil
	}
	if !c.Changed() {
		if from != fromNoise {
			return false, nil
		}
		if m.table != nil {
			if _, active := m.table.Status(c.Region); active {
				return false, nil
			}
		}
		if m.disk.Exists(c.Region, c.Location) {
			return false, nil
		}
	}
	if err := m.disk.Save(c); err != nil {
		return false, err
	}
	return true, nil
}

// PrepareRegion readies loc for a region build: it waits out pending
// evictions in loc, saves its edited resident chunks and activates loc in
// the region table. SetTile refuses edits in loc from then until the region
// is Done, so the builder reads every edit from disk.
func (m *Manager) PrepareRegion(ctx context.Context, loc spatial.PlanetLocation) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, f := range m.destroying {
		if k.Region != loc {
			continue
		}
		f.Wait(ctx)
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
	}
	saved := 0
	for _, k := range sortedKeys(m.resident) {
		c := m.resident[k]
		if m.disk == nil || k.Region != loc || !c.Changed() {
			continue
		}
		if _, evicting := m.destroying[k]; evicting {
			continue
		}
		if err := m.disk.Save(c); err != nil {
			return saved, err
		}
		m.origins[k] = fromDisk
		saved++
	}
	if m.table != nil && m.table.Activate(loc) {
		m.logger.Printf("region %s activated (%d edited chunks saved)", loc, saved)
	}
	return saved, nil
}

// References reports whether the viewer stands in loc or any chunk of loc is
// resident, queued or has a running job.
func (m *Manager) References(loc spatial.PlanetLocation) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.viewer.Region == loc ||
		inRegion(m.resident, loc) ||
		inRegion(m.queued, loc) ||
		inRegion(m.creating, loc) ||
		inRegion(m.destroying, loc)
}

// TileAt returns the tile at a position if its chunk is resident.
func (m *Manager) TileAt(p spatial.Position) (tile.Type, int, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.resident[Key{Region: p.Region, Chunk: m.dims.Chunk(p)}]
	if !ok {
		return tile.Type{}, 0, false
	}
	x, y := m.dims.Local(p.Tile)
	t, mat := c.Get(x, y)
	return t, mat, true
}

// SetTile mutates a resident chunk. It fails when the chunk is not resident,
// is being evicted, or belongs to a region that is still being built.
func (m *Manager) SetTile(p spatial.Position, t tile.Type, material int) error {
	if err := t.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := Key{Region: p.Region, Chunk: m.dims.Chunk(p)}
	c, ok := m.resident[k]
	if !ok {
		return fmt.Errorf("chunk %s not resident", k)
	}
	if _, evicting := m.destroying[k]; evicting {
		return fmt.Errorf("chunk %s is being evicted", k)
	}
	if m.table != nil {
		if st, ok := m.table.Status(k.Region); ok && st != region.Done {
			return fmt.Errorf("region %s is still building", k.Region)
		}
	}
	x, y := m.dims.Local(p.Tile)
	if c.Set(x, y, t, material) {
		m.dirty[k] = struct{}{}
	}
	return nil
}

// ChunkView returns the packed tiles and content digest of a resident chunk
// that is not being evicted.
func (m *Manager) ChunkView(k Key) ([]uint16, [32]byte, bool) {
	// Digest caches inside the chunk, so this takes the write lock.
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.resident[k]
	if !ok {
		return nil, [32]byte{}, false
	}
	if _, evicting := m.destroying[k]; evicting {
		return nil, [32]byte{}, false
	}
	return c.Codes(), c.Digest(), true
}

// FlushAll waits for running jobs, then persists every resident chunk the
// way eviction would. Used at shutdown; the resident set is left in place.
func (m *Manager) FlushAll(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, f := range m.creating {
		b, err := f.Wait(ctx)
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		delete(m.creating, k)
		if err == nil {
			m.resident[k] = b.c
			m.origins[k] = b.from
		}
	}
	for k, f := range m.destroying {
		if _, err := f.Wait(ctx); ctx.Err() != nil {
			return 0, ctx.Err()
		} else if err != nil {
			m.logger.Printf("destroy %s: %v", k, err)
		}
		delete(m.destroying, k)
		delete(m.resident, k)
		delete(m.origins, k)
	}
	saved := 0
	var firstErr error
	for _, k := range sortedKeys(m.resident) {
		ok, err := m.persist(m.resident[k], m.origins[k])
		if err != nil {
			m.logger.Printf("flush %s: %v", k, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if ok {
			saved++
		}
	}
	return saved, firstErr
}

func distance2(a, b spatial.ChunkLocation) int {
	dx, dy := a.X-b.X, a.Y-b.Y
	return dx*dx + dy*dy
}

func keyLess(a, b Key) bool {
	if a.Region != b.Region {
		if a.Region.Y != b.Region.Y {
			return a.Region.Y < b.Region.Y
		}
		return a.Region.X < b.Region.X
	}
	if a.Chunk.Y != b.Chunk.Y {
		return a.Chunk.Y < b.Chunk.Y
	}
	return a.Chunk.X < b.Chunk.X
}

func inRegion[V any](m map[Key]V, loc spatial.PlanetLocation) bool {
	for k := range m {
		if k.Region == loc {
			return true
		}
	}
	return false
}

func sortedKeys[V any](m map[Key]V) []Key {
	out := make([]Key, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return keyLess(out[i], out[j]) })
	return out
}
