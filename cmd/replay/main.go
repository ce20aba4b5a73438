package main

import (
	"crypto/sha256"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"worldforge.ai/internal/persistence/indexdb"
	wflog "worldforge.ai/internal/persistence/log"
	"worldforge.ai/internal/sim/events"
)

// replay walks a world's event log. It checks every saved planet and chunk
// file against the hash recorded when it was written, and can rebuild the
// index database from the log alone.
func main() {
	var (
		dataDir = flag.String("data", "./data", "runtime data directory")
		worldID = flag.String("world", "world_1", "world id")
		verify  = flag.Bool("verify", true, "hash saved files and compare with the log")
		reindex = flag.String("reindex", "", "write a fresh sqlite index to this path (must not exist)")
	)
	flag.Parse()

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	segs, err := wflog.Segments(worldDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list events:", err)
		os.Exit(1)
	}
	if len(segs) == 0 {
		fmt.Fprintln(os.Stderr, "no event segments in", filepath.Join(worldDir, "events"))
		os.Exit(1)
	}

	var idx *indexdb.SQLiteIndex
	if *reindex != "" {
		if _, err := os.Stat(*reindex); err == nil {
			fmt.Fprintln(os.Stderr, "refusing to overwrite", *reindex)
			os.Exit(2)
		}
		idx, err = indexdb.OpenSQLite(*reindex)
		if err != nil {
			fmt.Fprintln(os.Stderr, "open index:", err)
			os.Exit(1)
		}
	}

	r := newReplayer(*verify, idx)
	for _, path := range segs {
		if err := wflog.ReadSegment(path, r.apply); err != nil {
			fmt.Fprintln(os.Stderr, "replay:", err)
			os.Exit(1)
		}
	}
	if idx != nil {
		_ = idx.Close()
		st := idx.Stats()
		fmt.Printf("index rebuilt: %s written=%d dropped=%d\n", *reindex, st.WrittenTotal, st.DropTotal)
	}
	r.report(os.Stdout, len(segs))
	if len(r.mismatches) > 0 {
		os.Exit(1)
	}
}

type replayer struct {
	verify bool
	sink   events.Sink

	byKind     map[string]int
	checked    int
	missing    []string
	mismatches []string
	// latest maps a path to the hash of its most recent save; a chunk is
	// rewritten in place, so only the last save describes the file on disk.
	latest map[string]string
	order  []string
}

func newReplayer(verify bool, idx *indexdb.SQLiteIndex) *replayer {
	r := &replayer{
		verify: verify,
		byKind: map[string]int{},
		latest: map[string]string{},
	}
	if idx != nil {
		r.sink = idx
	}
	return r
}

func (r *replayer) apply(e events.Event) error {
	r.byKind[e.Kind]++
	if r.sink != nil {
		r.sink.Emit(e)
	}
	switch e.Kind {
	case events.KindPlanetSaved, events.KindChunkSaved:
		if e.Path == "" || e.SHA256 == "" {
			return nil
		}
		if _, seen := r.latest[e.Path]; !seen {
			r.order = append(r.order, e.Path)
		}
		r.latest[e.Path] = e.SHA256
	}
	return nil
}

// finish hashes every file the log says was saved.
func (r *replayer) finish() {
	if !r.verify {
		return
	}
	for _, path := range r.order {
		got, err := fileSHA256(path)
		if os.IsNotExist(err) {
			r.missing = append(r.missing, path)
			continue
		}
		if err != nil {
			r.mismatches = append(r.mismatches, fmt.Sprintf("%s: %v", path, err))
			continue
		}
		r.checked++
		if want := r.latest[path]; got != want {
			r.mismatches = append(r.mismatches, fmt.Sprintf("%s: sha256 %s want %s", path, got[:12], want[:min(12, len(want))]))
		}
	}
}

func (r *replayer) report(w io.Writer, segments int) {
	r.finish()
	total := 0
	for _, n := range r.byKind {
		total += n
	}
	fmt.Fprintf(w, "segments=%d events=%d planets_saved=%d chunks_saved=%d region_failures=%d\n",
		segments, total, r.byKind[events.KindPlanetSaved], r.byKind[events.KindChunkSaved], r.byKind[events.KindRegionFailed])
	if !r.verify {
		return
	}
	fmt.Fprintf(w, "files checked=%d missing=%d mismatched=%d\n", r.checked, len(r.missing), len(r.mismatches))
	for _, m := range r.missing {
		fmt.Fprintln(w, "missing:", m)
	}
	for _, m := range r.mismatches {
		fmt.Fprintln(w, "mismatch:", m)
	}
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
