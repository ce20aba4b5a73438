package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"strconv"
	"strings"

	"worldforge.ai/internal/persistence/indexdb"
	"worldforge.ai/internal/persistence/r2s3"
	"worldforge.ai/internal/sim/planet"
	"worldforge.ai/internal/sim/spatial"
	"worldforge.ai/internal/sim/tasks"
	"worldforge.ai/internal/transport/observer"
)

type httpDeps struct {
	worldID  string
	driver   *driver
	observer *observer.Server
	pool     *tasks.Pool
	index    runtimeIndex
	mirror   *r2MirrorRuntime
	admin    bool
	pprof    bool
	// rawsPath is reread by the catalog reload endpoint.
	rawsPath string
}

func newMux(d httpDeps) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMetrics(rw, d)
	})
	mux.HandleFunc("/v1/status", d.observer.StatusHandler())
	mux.HandleFunc("/v1/observer/bootstrap", d.observer.BootstrapHandler())
	mux.HandleFunc("/v1/observer/ws", d.observer.WSHandler())
	mux.HandleFunc("/v1/tile", tileHandler(d.driver))

	if d.admin {
		mux.HandleFunc("/admin/v1/viewer", localOnly(viewerHandler(d.driver)))
		mux.HandleFunc("/admin/v1/regions", localOnly(regionHandler(d.driver)))
		mux.HandleFunc("/admin/v1/catalogs/reload", localOnly(catalogReloadHandler(d.driver, d.rawsPath)))
	}
	if d.pprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	return mux
}

type viewerReq struct {
	Region [2]int `json:"region"`
	Tile   [2]int `json:"tile"`
	// Move, when set, offsets the current viewer by (dx,dy) tiles instead of
	// placing it at Region/Tile.
	Move *[2]int `json:"move,omitempty"`
	// Radius, when positive, replaces the load radius.
	Radius int `json:"radius,omitempty"`
}

func viewerHandler(dr *driver) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var req viewerReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(rw, err.Error(), http.StatusBadRequest)
			return
		}
		dims := dr.proc.Regions.Dims()
		var pos spatial.Position
		if req.Move != nil {
			pos = dr.stream.Move(req.Move[0], req.Move[1])
		} else {
			pos = spatial.Position{
				Region: spatial.PlanetLocation{X: req.Region[0], Y: req.Region[1]},
				Tile:   spatial.RegionTileLocation{X: req.Tile[0], Y: req.Tile[1]},
			}
			if !dims.InWorld(pos.Region.X, pos.Region.Y) || !dims.InRegion(pos.Tile.X, pos.Tile.Y) {
				http.Error(rw, "position out of range", http.StatusBadRequest)
				return
			}
			dr.stream.SetViewer(pos)
		}
		if req.Radius > 0 {
			dr.stream.SetLoadRadius(req.Radius)
		}
		writeJSON(rw, http.StatusOK, map[string]any{"ok": true, "position": pos, "chunk": dims.Chunk(pos)})
	}
}

type regionReq struct {
	Region  [2]int  `json:"region"`
	Landing *[2]int `json:"landing,omitempty"`
}

func regionHandler(dr *driver) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeJSON(rw, http.StatusOK, dr.proc.Regions.Summaries())
		case http.MethodPost:
			var req regionReq
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(rw, err.Error(), http.StatusBadRequest)
				return
			}
			loc := spatial.PlanetLocation{X: req.Region[0], Y: req.Region[1]}
			var landing *spatial.RegionTileLocation
			if req.Landing != nil {
				landing = &spatial.RegionTileLocation{X: req.Landing[0], Y: req.Landing[1]}
			}
			b, err := dr.BuildRegion(loc, landing)
			switch {
			case errors.Is(err, planet.ErrNoPlanet):
				writeJSON(rw, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": err.Error()})
			case err != nil:
				writeJSON(rw, http.StatusBadRequest, map[string]any{"ok": false, "error": err.Error()})
			default:
				writeJSON(rw, http.StatusAccepted, map[string]any{"ok": true, "region": loc, "status": b.Status()})
			}
		default:
			rw.WriteHeader(http.StatusMethodNotAllowed)
		}
	}
}

// catalogReloadHandler swaps in a freshly loaded catalog. A failed load keeps
// the current one.
func catalogReloadHandler(dr *driver, rawsPath string) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if err := dr.proc.Catalogs.Reload(rawsPath); err != nil {
			writeJSON(rw, http.StatusUnprocessableEntity, map[string]any{"ok": false, "error": err.Error()})
			return
		}
		cat := dr.proc.Catalogs.MustGet()
		dr.logger.Printf("raws reloaded: digest=%s", cat.Digest)
		writeJSON(rw, http.StatusOK, map[string]any{"ok": true, "digest": cat.Digest})
	}
}

// tileHandler answers ?rx=&ry=&x=&y= from the resident set.
func tileHandler(dr *driver) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var v [4]int
		for i, k := range []string{"rx", "ry", "x", "y"} {
			n, err := strconv.Atoi(q.Get(k))
			if err != nil {
				http.Error(rw, "bad "+k, http.StatusBadRequest)
				return
			}
			v[i] = n
		}
		pos := spatial.Position{
			Region: spatial.PlanetLocation{X: v[0], Y: v[1]},
			Tile:   spatial.RegionTileLocation{X: v[2], Y: v[3]},
		}
		if !dr.proc.Regions.Dims().InRegion(pos.Tile.X, pos.Tile.Y) {
			http.Error(rw, "tile out of range", http.StatusBadRequest)
			return
		}
		t, mat, ok := dr.stream.TileAt(pos)
		if !ok {
			writeJSON(rw, http.StatusNotFound, map[string]any{"ok": false, "error": "chunk not resident"})
			return
		}
		resp := map[string]any{"ok": true, "tile": t.String(), "code": t.Code(), "glyph": string(t.Glyph()), "material": mat}
		if cat, err := dr.proc.Catalogs.Get(); err == nil && mat >= 0 && mat < len(cat.Materials) {
			resp["material_name"] = cat.Materials[mat].Name
		}
		writeJSON(rw, http.StatusOK, resp)
	}
}

func writeMetrics(rw http.ResponseWriter, d httpDeps) {
	ticks, lrep := d.driver.Stats()
	srep := d.driver.stream.LastReport()
	w := d.worldID

	fmt.Fprintf(rw, "# HELP worldforge_driver_ticks Driver ticks since start.\n")
	fmt.Fprintf(rw, "# TYPE worldforge_driver_ticks counter\n")
	fmt.Fprintf(rw, "worldforge_driver_ticks{world=%q} %d\n", w, ticks)

	fmt.Fprintf(rw, "# HELP worldforge_loader_pending Chunk load jobs not yet applied.\n")
	fmt.Fprintf(rw, "# TYPE worldforge_loader_pending gauge\n")
	fmt.Fprintf(rw, "worldforge_loader_pending{world=%q} %d\n", w, lrep.Pending)

	fmt.Fprintf(rw, "# HELP worldforge_stream_chunks Streaming manager chunk counts.\n")
	fmt.Fprintf(rw, "# TYPE worldforge_stream_chunks gauge\n")
	fmt.Fprintf(rw, "worldforge_stream_chunks{world=%q,set=%q} %d\n", w, "resident", len(srep.Resident))
	fmt.Fprintf(rw, "worldforge_stream_chunks{world=%q,set=%q} %d\n", w, "queued_create", srep.QueuedCreate)
	fmt.Fprintf(rw, "worldforge_stream_chunks{world=%q,set=%q} %d\n", w, "queued_destroy", srep.QueuedDestroy)
	fmt.Fprintf(rw, "worldforge_stream_chunks{world=%q,set=%q} %d\n", w, "in_flight", srep.InFlight)

	regions := map[string]int{}
	for _, s := range d.driver.proc.Regions.Summaries() {
		regions[s.Status]++
	}
	fmt.Fprintf(rw, "# HELP worldforge_regions Active regions by status.\n")
	fmt.Fprintf(rw, "# TYPE worldforge_regions gauge\n")
	for _, st := range []string{"not_loaded", "creating_tiles", "created_tiles", "done"} {
		fmt.Fprintf(rw, "worldforge_regions{world=%q,status=%q} %d\n", w, st, regions[st])
	}

	if d.pool != nil {
		ps := d.pool.Stats()
		fmt.Fprintf(rw, "# HELP worldforge_pool_jobs Worker pool job counters.\n")
		fmt.Fprintf(rw, "# TYPE worldforge_pool_jobs counter\n")
		fmt.Fprintf(rw, "worldforge_pool_jobs{world=%q,state=%q} %d\n", w, "started", ps.Started)
		fmt.Fprintf(rw, "worldforge_pool_jobs{world=%q,state=%q} %d\n", w, "finished", ps.Finished)
		fmt.Fprintf(rw, "worldforge_pool_jobs{world=%q,state=%q} %d\n", w, "panicked", ps.Panicked)
		fmt.Fprintf(rw, "# HELP worldforge_pool_running Jobs currently holding a worker slot.\n")
		fmt.Fprintf(rw, "# TYPE worldforge_pool_running gauge\n")
		fmt.Fprintf(rw, "worldforge_pool_running{world=%q} %d\n", w, ps.Running)
	}

	if d.observer != nil {
		fmt.Fprintf(rw, "# HELP worldforge_observer_sessions Connected observer sessions.\n")
		fmt.Fprintf(rw, "# TYPE worldforge_observer_sessions gauge\n")
		fmt.Fprintf(rw, "worldforge_observer_sessions{world=%q} %d\n", w, d.observer.Sessions())
	}

	switch idx := d.index.(type) {
	case *indexdb.SQLiteIndex:
		st := idx.Stats()
		fmt.Fprintf(rw, "# HELP worldforge_index_queue_depth Index writer backlog.\n")
		fmt.Fprintf(rw, "# TYPE worldforge_index_queue_depth gauge\n")
		fmt.Fprintf(rw, "worldforge_index_queue_depth{world=%q} %d\n", w, st.QueueDepth)
		fmt.Fprintf(rw, "# HELP worldforge_index_dropped_total Index events dropped on a full queue.\n")
		fmt.Fprintf(rw, "# TYPE worldforge_index_dropped_total counter\n")
		fmt.Fprintf(rw, "worldforge_index_dropped_total{world=%q} %d\n", w, st.DropTotal)
	case *indexdb.D1Index:
		st := idx.Stats()
		fmt.Fprintf(rw, "# HELP worldforge_index_queue_depth Index writer backlog.\n")
		fmt.Fprintf(rw, "# TYPE worldforge_index_queue_depth gauge\n")
		fmt.Fprintf(rw, "worldforge_index_queue_depth{world=%q} %d\n", w, st.QueueDepth)
		fmt.Fprintf(rw, "# HELP worldforge_index_dropped_total Index events dropped on a full queue.\n")
		fmt.Fprintf(rw, "# TYPE worldforge_index_dropped_total counter\n")
		fmt.Fprintf(rw, "worldforge_index_dropped_total{world=%q} %d\n", w, st.DropTotal)
		fmt.Fprintf(rw, "# HELP worldforge_index_flush_fail_total Remote index flushes that exhausted retries.\n")
		fmt.Fprintf(rw, "# TYPE worldforge_index_flush_fail_total counter\n")
		fmt.Fprintf(rw, "worldforge_index_flush_fail_total{world=%q} %d\n", w, st.FlushFailTotal)
	}

	writeMirrorMetrics(rw, d.mirror.Stats())
}

func writeMirrorMetrics(rw http.ResponseWriter, s r2s3.Stats) {
	if s.QueueCapacity == 0 {
		return
	}
	fmt.Fprintf(rw, "# HELP worldforge_mirror_queue_depth Current backup mirror queue depth.\n")
	fmt.Fprintf(rw, "# TYPE worldforge_mirror_queue_depth gauge\n")
	fmt.Fprintf(rw, "worldforge_mirror_queue_depth %d\n", s.QueueDepth)

	fmt.Fprintf(rw, "# HELP worldforge_mirror_files_total Backup mirror file counters.\n")
	fmt.Fprintf(rw, "# TYPE worldforge_mirror_files_total counter\n")
	fmt.Fprintf(rw, "worldforge_mirror_files_total{result=%q} %d\n", "enqueued", s.EnqueuedTotal)
	fmt.Fprintf(rw, "worldforge_mirror_files_total{result=%q} %d\n", "coalesced", s.CoalescedTotal)
	fmt.Fprintf(rw, "worldforge_mirror_files_total{result=%q} %d\n", "dropped", s.DroppedTotal)
	fmt.Fprintf(rw, "worldforge_mirror_files_total{result=%q} %d\n", "uploaded", s.UploadSuccessTotal)
	fmt.Fprintf(rw, "worldforge_mirror_files_total{result=%q} %d\n", "failed", s.UploadFailTotal)

	fmt.Fprintf(rw, "# HELP worldforge_mirror_last_success_unix Unix timestamp of last successful upload.\n")
	fmt.Fprintf(rw, "# TYPE worldforge_mirror_last_success_unix gauge\n")
	fmt.Fprintf(rw, "worldforge_mirror_last_success_unix %d\n", s.LastSuccessUnix)
}

func writeJSON(rw http.ResponseWriter, code int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(code)
	_ = json.NewEncoder(rw).Encode(v)
}

func localOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		h(rw, r)
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
