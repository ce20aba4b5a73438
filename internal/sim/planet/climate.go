package planet

import (
	"math"

	"worldforge.ai/internal/sim/noise"
)

const (
	equatorTempC   = 35.0
	poleTempC      = -30.0
	lapsePerHeight = 0.25
	metersPerUnit  = 30.0
	seaLevelKPA    = 101.325
	scaleHeightM   = 8434.0
)

// climate derives temperature and air pressure for every landblock from its
// latitude and its height above water level.
func climate(p *Planet, f *noise.Field) {
	d := p.Dims
	for y := 0; y < d.WorldHeight; y++ {
		lat := f.Lat(y, d.RegionHeight/2)
		band := equatorTempC + (poleTempC-equatorTempC)*math.Abs(lat)/90
		// Three circulation cells per hemisphere.
		cells := 0.5 * math.Cos(3*lat*math.Pi/180)
		for x := 0; x < d.WorldWidth; x++ {
			lb := &p.Landblocks[d.PlanetIndex(x, y)]
			above := 0.0
			if lb.Height > p.WaterHeight {
				above = float64(lb.Height - p.WaterHeight)
			}
			lb.TemperatureC = math.Max(-100, math.Min(100, band-above*lapsePerHeight))
			lb.AirPressureKPA = seaLevelKPA*math.Exp(-above*metersPerUnit/scaleHeightM) + cells
		}
	}
}
