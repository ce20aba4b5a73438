package planet

import "worldforge.ai/internal/sim/noise"

// altitudes samples a samples×samples grid of points inside every landblock.
// Height is the mean sample and variance the spread between the extremes.
func altitudes(p *Planet, f *noise.Field, samples int) {
	if samples <= 0 {
		samples = 1
	}
	d := p.Dims
	for y := 0; y < d.WorldHeight; y++ {
		for x := 0; x < d.WorldWidth; x++ {
			var sum uint64
			lo, hi := ^uint32(0), uint32(0)
			for sy := 0; sy < samples; sy++ {
				ry := sy*d.RegionHeight/samples + d.RegionHeight/(2*samples)
				for sx := 0; sx < samples; sx++ {
					rx := sx*d.RegionWidth/samples + d.RegionWidth/(2*samples)
					h := f.CellAltitude(x, y, rx, ry)
					sum += uint64(h)
					lo = min(lo, h)
					hi = max(hi, h)
				}
			}
			lb := &p.Landblocks[d.PlanetIndex(x, y)]
			lb.Height = uint32(sum / uint64(samples*samples))
			lb.Variance = hi - lo
		}
	}
}
