package region

import (
	"sort"
	"sync"

	"worldforge.ai/internal/sim/spatial"
)

// Table holds the active regions keyed by landblock index. Readers share the
// lock; insertion, removal and every region mutation take it exclusively.
type Table struct {
	mu      sync.RWMutex
	dims    spatial.Dims
	regions map[int]*Region
}

func NewTable(d spatial.Dims) *Table {
	return &Table{dims: d, regions: map[int]*Region{}}
}

func (t *Table) Dims() spatial.Dims { return t.dims }

// Activate inserts a NotLoaded region for loc unless one is present. It
// reports whether a region was inserted.
func (t *Table) Activate(loc spatial.PlanetLocation) bool {
	key := t.dims.RegionIndex(loc)
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.regions[key]; ok {
		return false
	}
	t.regions[key] = New(t.dims, loc)
	return true
}

// RemoveIfDone drops loc from the table when its region is Done and reports
// whether it did.
func (t *Table) RemoveIfDone(loc spatial.PlanetLocation) bool {
	key := t.dims.RegionIndex(loc)
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.regions[key]
	if !ok || r.Status != Done {
		return false
	}
	delete(t.regions, key)
	return true
}

// Read runs fn under the read lock. fn must not retain r.
func (t *Table) Read(loc spatial.PlanetLocation, fn func(r *Region)) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.regions[t.dims.RegionIndex(loc)]
	if ok {
		fn(r)
	}
	return ok
}

// Update runs fn under the write lock.
func (t *Table) Update(loc spatial.PlanetLocation, fn func(r *Region)) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.regions[t.dims.RegionIndex(loc)]
	if ok {
		fn(r)
	}
	return ok
}

func (t *Table) Status(loc spatial.PlanetLocation) (Status, bool) {
	var st Status
	ok := t.Read(loc, func(r *Region) { st = r.Status })
	return st, ok
}

// Failure returns the error recorded by a failed chunk job, if any.
func (t *Table) Failure(loc spatial.PlanetLocation) error {
	var err error
	t.Read(loc, func(r *Region) { err = r.Err })
	return err
}

// claimNotLoaded moves every NotLoaded region to CreatingTiles and returns
// their locations in key order.
func (t *Table) claimNotLoaded() []spatial.PlanetLocation {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []spatial.PlanetLocation
	for _, k := range t.keysLocked() {
		r := t.regions[k]
		if r.Status == NotLoaded {
			r.Status = CreatingTiles
			out = append(out, r.Location)
		}
	}
	return out
}

func (t *Table) keysLocked() []int {
	keys := make([]int, 0, len(t.regions))
	for k := range t.regions {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// Summary is a copyable view of one region for status reporting.
type Summary struct {
	Location     spatial.PlanetLocation `json:"location"`
	Status       string                 `json:"status"`
	ChunksLoaded int                    `json:"chunks_loaded"`
	ChunksTotal  int                    `json:"chunks_total"`
	Error        string                 `json:"error,omitempty"`
}

func (t *Table) Summaries() []Summary {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Summary, 0, len(t.regions))
	for _, k := range t.keysLocked() {
		r := t.regions[k]
		s := Summary{
			Location:     r.Location,
			Status:       r.Status.String(),
			ChunksLoaded: r.LoadedCount(),
			ChunksTotal:  len(r.ChunksLoaded),
		}
		if r.Err != nil {
			s.Error = r.Err.Error()
		}
		out = append(out, s)
	}
	return out
}
