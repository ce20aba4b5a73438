package planet

import (
	"fmt"
	"time"

	"worldforge.ai/internal/persistence/snapshot"
	"worldforge.ai/internal/sim/catalogs"
	"worldforge.ai/internal/sim/spatial"
)

func (p *Planet) ToSnapshot(worldID string) snapshot.PlanetV1 {
	out := snapshot.PlanetV1{
		Header:     snapshot.Header{WorldID: worldID, CreatedUnix: time.Now().Unix()},
		Seed:       p.Seed,
		RNGSeed:    p.RNGSeed,
		NoiseSeed:  p.NoiseSeed,
		Lacunarity: p.Lacunarity,
		Dims: snapshot.DimsV1{
			WorldWidth:   p.Dims.WorldWidth,
			WorldHeight:  p.Dims.WorldHeight,
			RegionWidth:  p.Dims.RegionWidth,
			RegionHeight: p.Dims.RegionHeight,
			ChunkSize:    p.Dims.ChunkSize,
		},
		WaterHeight:  p.WaterHeight,
		PlainsHeight: p.PlainsHeight,
		HillsHeight:  p.HillsHeight,
		Landblocks:   make([]snapshot.LandblockV1, len(p.Landblocks)),
		Rivers:       make([]snapshot.RiverV1, 0, len(p.Rivers)),
	}
	for i, lb := range p.Landblocks {
		v := snapshot.LandblockV1{
			Height:         lb.Height,
			Variance:       lb.Variance,
			Class:          uint8(lb.Class),
			TemperatureC:   lb.TemperatureC,
			RainfallMM:     lb.RainfallMM,
			BiomeIdx:       lb.BiomeIdx,
			AirPressureKPA: lb.AirPressureKPA,
			PrevailingWind: uint8(lb.PrevailingWind),
		}
		for k, n := range lb.Neighbors {
			v.Neighbors[k] = snapshot.NeighborV1{Dir: uint8(n.Dir), Index: n.Index}
		}
		out.Landblocks[i] = v
	}
	for _, r := range p.Rivers {
		rv := snapshot.RiverV1{Name: r.Name, Start: [2]int{r.Start.X, r.Start.Y}}
		for _, s := range r.Steps {
			rv.Steps = append(rv.Steps, [2]int{s.Position.X, s.Position.Y})
		}
		out.Rivers = append(out.Rivers, rv)
	}
	return out
}

func FromSnapshot(s snapshot.PlanetV1) (*Planet, error) {
	p := &Planet{
		Seed:       s.Seed,
		RNGSeed:    s.RNGSeed,
		NoiseSeed:  s.NoiseSeed,
		Lacunarity: s.Lacunarity,
		Dims: spatial.Dims{
			WorldWidth:   s.Dims.WorldWidth,
			WorldHeight:  s.Dims.WorldHeight,
			RegionWidth:  s.Dims.RegionWidth,
			RegionHeight: s.Dims.RegionHeight,
			ChunkSize:    s.Dims.ChunkSize,
		},
		WaterHeight:  s.WaterHeight,
		PlainsHeight: s.PlainsHeight,
		HillsHeight:  s.HillsHeight,
		Landblocks:   make([]Landblock, len(s.Landblocks)),
	}
	for i, v := range s.Landblocks {
		lb := Landblock{
			Height:         v.Height,
			Variance:       v.Variance,
			Class:          catalogs.BiomeType(v.Class),
			TemperatureC:   v.TemperatureC,
			RainfallMM:     v.RainfallMM,
			BiomeIdx:       v.BiomeIdx,
			AirPressureKPA: v.AirPressureKPA,
			PrevailingWind: Direction(v.PrevailingWind),
		}
		for k, n := range v.Neighbors {
			lb.Neighbors[k] = Neighbor{Dir: Direction(n.Dir), Index: n.Index}
		}
		p.Landblocks[i] = lb
	}
	for _, rv := range s.Rivers {
		r := River{Name: rv.Name, Start: spatial.PlanetLocation{X: rv.Start[0], Y: rv.Start[1]}}
		for _, st := range rv.Steps {
			r.Steps = append(r.Steps, RiverStep{Position: spatial.PlanetLocation{X: st[0], Y: st[1]}})
		}
		p.Rivers = append(p.Rivers, r)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// SaveFile writes the planet as a single compressed world file.
func SaveFile(path, worldID string, p *Planet) (snapshot.Info, error) {
	return snapshot.WritePlanet(path, p.ToSnapshot(worldID))
}

func LoadFile(path string) (*Planet, error) {
	s, err := snapshot.ReadPlanet(path)
	if err != nil {
		return nil, err
	}
	p, err := FromSnapshot(s)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}
