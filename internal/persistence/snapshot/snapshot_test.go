package snapshot

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestChunk_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chunks", "32_64.chunk")
	in := ChunkV1{
		Header:   Header{WorldID: "w1", CreatedUnix: 1700000000},
		Region:   [2]int{3, 7},
		Origin:   [2]int{32, 64},
		Size:     2,
		Tiles:    []uint16{0, 4 << 8, 5<<8 | 1, 6 << 8},
		Material: []uint32{0, 3, 3, 9},
	}
	info, err := WriteChunk(path, in)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if info.Bytes == 0 || len(info.SHA256) != 64 {
		t.Fatalf("info=%+v", info)
	}
	out, err := ReadChunk(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	in.Header.Version, in.Header.Kind = Version, KindChunk
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("round trip mismatch:\n in=%+v\nout=%+v", in, out)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind: %v", err)
	}
}

func TestPlanet_RoundTripAndKindCheck(t *testing.T) {
	path := filepath.Join(t.TempDir(), "world.dat")
	in := PlanetV1{
		Header:      Header{WorldID: "w1"},
		Seed:        "abc",
		RNGSeed:     295,
		NoiseSeed:   294,
		Lacunarity:  2,
		Dims:        DimsV1{WorldWidth: 2, WorldHeight: 1, RegionWidth: 4, RegionHeight: 4, ChunkSize: 2},
		WaterHeight: 10, PlainsHeight: 20, HillsHeight: 30,
		Landblocks: []LandblockV1{
			{Height: 5, Class: 1, BiomeIdx: 0, Neighbors: [4]NeighborV1{{0, -1}, {0, -1}, {3, 1}, {4, 1}}},
			{Height: 25, Class: 3, BiomeIdx: 2, TemperatureC: 12.5, RainfallMM: 40},
		},
		Rivers: []RiverV1{{Name: "River 1", Start: [2]int{1, 0}, Steps: [][2]int{{0, 0}}}},
	}
	before := time.Now().Unix()
	if _, err := WritePlanet(path, in); err != nil {
		t.Fatalf("write: %v", err)
	}
	out, err := ReadPlanet(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if out.Header.CreatedUnix < before {
		t.Fatalf("created_unix=%d not stamped (before=%d)", out.Header.CreatedUnix, before)
	}
	in.Header.Version, in.Header.Kind, in.Header.CreatedUnix = Version, KindPlanet, out.Header.CreatedUnix
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("round trip mismatch")
	}
	h, err := ReadHeader(path)
	if err != nil || h.Kind != KindPlanet || h.WorldID != "w1" || h.CreatedUnix != out.Header.CreatedUnix {
		t.Fatalf("header=%+v err=%v", h, err)
	}
	if _, err := ReadChunk(path); !errors.Is(err, ErrKindMismatch) {
		t.Fatalf("expected kind mismatch, got %v", err)
	}
}

func TestRead_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.chunk")
	if err := os.WriteFile(path, []byte("not deflate at all"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := ReadChunk(path); err == nil {
		t.Fatalf("expected error on corrupt file")
	}
	if _, err := ReadChunk(filepath.Join(t.TempDir(), "missing.chunk")); !os.IsNotExist(err) {
		t.Fatalf("expected not-exist, got %v", err)
	}
}
