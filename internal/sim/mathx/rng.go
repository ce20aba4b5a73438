package mathx

import "math/rand/v2"

// RNG is a seeded PCG source with dice helpers. Not safe for concurrent use.
type RNG struct {
	seed uint64
	r    *rand.Rand
}

func NewRNG(seed uint64) *RNG {
	return &RNG{seed: seed, r: rand.New(rand.NewPCG(seed, 0))}
}

func (g *RNG) Seed() uint64 { return g.seed }

// RollDice rolls n dice with the given number of faces and returns the sum.
func (g *RNG) RollDice(n, faces int) int {
	if n <= 0 || faces <= 0 {
		return 0
	}
	total := 0
	for i := 0; i < n; i++ {
		total += g.r.IntN(faces) + 1
	}
	return total
}

func (g *RNG) Float64() float64 { return g.r.Float64() }

// Choose returns a uniformly chosen index in [0,n), or -1 when n is zero.
func (g *RNG) Choose(n int) int {
	if n <= 0 {
		return -1
	}
	return g.r.IntN(n)
}
