package tuning

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_ShippedTuning(t *testing.T) {
	tun, err := Load("../../../configs/tuning.yaml")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tun.World != Defaults().World {
		t.Fatalf("shipped world dims differ from defaults: %+v", tun.World)
	}
	if tun.World.ChunksPerRegion() != 64 {
		t.Fatalf("chunks per region=%d", tun.World.ChunksPerRegion())
	}
	if tun.Planet.Rain.OceanAbsorb != 20 || tun.Region.TreeChance != 1000 {
		t.Fatalf("unexpected values: %+v %+v", tun.Planet.Rain, tun.Region)
	}
}

func TestLoad_PartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(path, []byte("stream:\n  load_radius: 7\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	tun, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tun.Stream.LoadRadius != 7 || tun.Stream.Workers != Defaults().Stream.Workers {
		t.Fatalf("stream=%+v", tun.Stream)
	}
	if tun.Planet.RiverMax != Defaults().Planet.RiverMax {
		t.Fatalf("planet defaults lost")
	}
}

func TestLoad_RejectsBadDims(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(path, []byte("world:\n  region_width: 250\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for region not divisible by chunk size")
	}
}

func TestValidate_Defaults(t *testing.T) {
	if err := Defaults().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}
