package log

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"

	"worldforge.ai/internal/sim/events"
)

func TestEventLogger_WritesReadableSegment(t *testing.T) {
	dir := t.TempDir()
	var closed []string
	l := NewEventLogger(dir, Options{OnClose: func(p string) { closed = append(closed, p) }}, nil)
	l.Emit(events.New(events.KindPlanetStage, "w1"))
	l.Emit(events.New(events.KindChunkSaved, "w1").WithChunk(0, 32))
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if len(closed) != 1 {
		t.Fatalf("OnClose calls=%d", len(closed))
	}

	matches, err := filepath.Glob(filepath.Join(dir, "events", "events-*.jsonl.zst"))
	if err != nil || len(matches) != 1 {
		t.Fatalf("segments=%v err=%v", matches, err)
	}
	f, err := os.Open(matches[0])
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		t.Fatalf("zstd: %v", err)
	}
	defer dec.Close()

	var got []events.Event
	sc := bufio.NewScanner(dec)
	for sc.Scan() {
		var e events.Event
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("decode line: %v", err)
		}
		got = append(got, e)
	}
	if len(got) != 2 || got[1].Kind != events.KindChunkSaved || got[1].Chunk == nil || got[1].Chunk[1] != 32 {
		t.Fatalf("events=%+v", got)
	}
}

func TestSegmentsAndReadSegment(t *testing.T) {
	dir := t.TempDir()
	l := NewEventLogger(dir, Options{}, nil)
	l.Emit(events.New(events.KindRegionStatus, "w1").WithRegion(3, 4))
	l.Emit(events.New(events.KindChunkSaved, "w1").WithRegion(3, 4).WithChunk(8, 0))
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	// Stray files are ignored.
	if err := os.WriteFile(filepath.Join(dir, "events", "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	segs, err := Segments(dir)
	if err != nil || len(segs) != 1 {
		t.Fatalf("segments=%v err=%v", segs, err)
	}
	var kinds []string
	if err := ReadSegment(segs[0], func(e events.Event) error {
		kinds = append(kinds, e.Kind)
		return nil
	}); err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(kinds) != 2 || kinds[0] != events.KindRegionStatus || kinds[1] != events.KindChunkSaved {
		t.Fatalf("kinds=%v", kinds)
	}

	stop := errors.New("stop")
	n := 0
	err = ReadSegment(segs[0], func(events.Event) error {
		n++
		return stop
	})
	if !errors.Is(err, stop) || n != 1 {
		t.Fatalf("early stop: n=%d err=%v", n, err)
	}
}

func TestSegments_MissingDir(t *testing.T) {
	if _, err := Segments(t.TempDir()); !os.IsNotExist(err) {
		t.Fatalf("want not-exist, got %v", err)
	}
}
