package main

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"worldforge.ai/internal/sim/events"
)

func sum(b []byte) string {
	s := sha256.Sum256(b)
	return hex.EncodeToString(s[:])
}

func TestReplayer_VerifiesLatestSave(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.dat")
	bad := filepath.Join(dir, "bad.dat")
	gone := filepath.Join(dir, "gone.dat")
	if err := os.WriteFile(good, []byte("v2"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(bad, []byte("tampered"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	var seen []string
	r := newReplayer(true, nil)
	r.sink = events.Func(func(e events.Event) { seen = append(seen, e.Kind) })

	save := func(kind, path string, body []byte) {
		e := events.New(kind, "w1")
		e.Path, e.SHA256 = path, sum(body)
		if err := r.apply(e); err != nil {
			t.Fatalf("apply: %v", err)
		}
	}
	save(events.KindChunkSaved, good, []byte("v1"))
	save(events.KindChunkSaved, good, []byte("v2"))
	save(events.KindPlanetSaved, bad, []byte("original"))
	save(events.KindChunkSaved, gone, []byte("x"))
	_ = r.apply(events.New(events.KindRegionStatus, "w1").WithRegion(1, 1))

	var out bytes.Buffer
	r.report(&out, 1)
	if r.checked != 2 || len(r.missing) != 1 || len(r.mismatches) != 1 {
		t.Fatalf("checked=%d missing=%v mismatches=%v", r.checked, r.missing, r.mismatches)
	}
	if !strings.Contains(r.mismatches[0], "bad.dat") {
		t.Fatalf("mismatch=%q", r.mismatches[0])
	}
	if !strings.Contains(out.String(), "events=5 planets_saved=1 chunks_saved=3") {
		t.Fatalf("report=%s", out.String())
	}
	if len(seen) != 5 {
		t.Fatalf("sink saw %d events", len(seen))
	}
}

func TestReplayer_NoVerify(t *testing.T) {
	r := newReplayer(false, nil)
	e := events.New(events.KindChunkSaved, "w1")
	e.Path, e.SHA256 = filepath.Join(t.TempDir(), "missing"), sum(nil)
	_ = r.apply(e)
	var out bytes.Buffer
	r.report(&out, 1)
	if r.checked != 0 || len(r.missing) != 0 || strings.Contains(out.String(), "files checked") {
		t.Fatalf("verify disabled but got %s", out.String())
	}
}
