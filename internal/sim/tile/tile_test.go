package tile

import "testing"

func TestCode_RoundTripsEveryVariant(t *testing.T) {
	all := []Type{
		FloorTile, WallTile, WaterTile, SandTile, SoilTile,
		TreeOf(Evergreen), TreeOf(Deciduous),
		PlantOf(Grass), PlantOf(Daisy), PlantOf(Heather),
	}
	seen := map[uint16]bool{}
	for _, tt := range all {
		c := tt.Code()
		if seen[c] {
			t.Fatalf("duplicate code %d for %s", c, tt)
		}
		seen[c] = true
		back, err := FromCode(c)
		if err != nil {
			t.Fatalf("FromCode(%d): %v", c, err)
		}
		if back != tt {
			t.Fatalf("round trip %s -> %s", tt, back)
		}
		if tt.Glyph() == '?' {
			t.Fatalf("missing glyph for %s", tt)
		}
	}
}

func TestFromCode_RejectsGarbage(t *testing.T) {
	bad := []uint16{uint16(Floor)<<8 | 1, uint16(Tree)<<8 | 9, uint16(Plant)<<8 | 3, 200 << 8}
	for _, c := range bad {
		if _, err := FromCode(c); err == nil {
			t.Fatalf("expected error for code %#x", c)
		}
	}
}

func TestAccessors(t *testing.T) {
	if k, ok := TreeOf(Deciduous).Tree(); !ok || k != Deciduous {
		t.Fatalf("Tree accessor")
	}
	if _, ok := SoilTile.Tree(); ok {
		t.Fatalf("soil is not a tree")
	}
	if k, ok := PlantOf(Heather).Plant(); !ok || k != Heather {
		t.Fatalf("Plant accessor")
	}
	if !SandTile.Vegetable() || WaterTile.Vegetable() || TreeOf(Evergreen).Vegetable() {
		t.Fatalf("Vegetable gate wrong")
	}
	if s := PlantOf(Daisy).String(); s != "Plant(Daisy)" {
		t.Fatalf("String=%q", s)
	}
}

func TestDensity(t *testing.T) {
	var d Density
	for _, tt := range []Type{SoilTile, SoilTile, TreeOf(Evergreen), PlantOf(Grass), PlantOf(Daisy)} {
		d.Add(tt)
	}
	if d.Soil != 2 || d.Trees() != 1 || d.Plants() != 2 {
		t.Fatalf("density=%+v", d)
	}
}

func TestParsePlant(t *testing.T) {
	if k, err := ParsePlant("Heather"); err != nil || k != Heather {
		t.Fatalf("ParsePlant: %v %v", k, err)
	}
	if _, err := ParsePlant("Cactus"); err == nil {
		t.Fatalf("expected error")
	}
}
