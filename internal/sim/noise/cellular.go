package noise

import (
	"math"

	"worldforge.ai/internal/sim/mathx"
)

// Material is cellular value noise with Manhattan distance: every point takes
// the value of the nearest jittered feature point. The result is in [-1,1].
func (f *Field) Material(x, y float64) float64 {
	x *= f.params.MaterialFrequency
	y *= f.params.MaterialFrequency
	cx := int(math.Floor(x))
	cy := int(math.Floor(y))

	best := math.Inf(1)
	var bestHash uint64
	for oy := -1; oy <= 1; oy++ {
		for ox := -1; ox <= 1; ox++ {
			gx, gy := cx+ox, cy+oy
			h := mathx.Hash2(f.cellSeed, gx, gy)
			// Feature point jitter comes from two independent halves of the hash.
			px := float64(gx) + float64(h&0xffff)/65536
			py := float64(gy) + float64((h>>16)&0xffff)/65536
			d := math.Abs(px-x) + math.Abs(py-y)
			if d < best {
				best = d
				bestHash = h
			}
		}
	}
	return mathx.Unit(mathx.Hash2(f.cellSeed^0x5bd1e995, int(bestHash>>32), int(bestHash&0xffffffff)))*2 - 1
}
