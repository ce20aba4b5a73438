package mathx

import "testing"

func TestRNG_Deterministic(t *testing.T) {
	a := NewRNG(42)
	b := NewRNG(42)
	for i := 0; i < 100; i++ {
		x, y := a.RollDice(1, 100), b.RollDice(1, 100)
		if x != y {
			t.Fatalf("roll %d diverged: %d vs %d", i, x, y)
		}
		if x < 1 || x > 100 {
			t.Fatalf("roll out of range: %d", x)
		}
	}
}

func TestRNG_Choose(t *testing.T) {
	g := NewRNG(7)
	for i := 0; i < 200; i++ {
		if v := g.Choose(6); v < 0 || v >= 6 {
			t.Fatalf("Choose out of bounds: %d", v)
		}
	}
	if g.Choose(0) != -1 {
		t.Fatalf("Choose(0) should be -1")
	}
	if got := g.RollDice(0, 6); got != 0 {
		t.Fatalf("RollDice(0,6)=%d", got)
	}
}

func TestUnit_Range(t *testing.T) {
	for x := -50; x < 50; x++ {
		u := Unit(Hash2(9, x, -x))
		if u < 0 || u >= 1 {
			t.Fatalf("Unit out of range at %d: %f", x, u)
		}
	}
}

func TestClampAndAbs(t *testing.T) {
	if ClampInt(-3, 0, 10) != 0 || ClampInt(12, 0, 10) != 10 || ClampInt(4, 0, 10) != 4 {
		t.Fatalf("ClampInt wrong")
	}
	if AbsInt(-7) != 7 || AbsInt(7) != 7 {
		t.Fatalf("AbsInt wrong")
	}
}
