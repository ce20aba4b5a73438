// Package planet builds the coarse planet-wide landblock grid: altitude,
// terrain classes, climate, biomes and rivers.
package planet

import (
	"fmt"

	"worldforge.ai/internal/sim/catalogs"
	"worldforge.ai/internal/sim/spatial"
)

type Direction uint8

const (
	None Direction = iota
	North
	South
	East
	West
)

func (d Direction) String() string {
	switch d {
	case North:
		return "N"
	case South:
		return "S"
	case East:
		return "E"
	case West:
		return "W"
	default:
		return "-"
	}
}

// Neighbor is one edge of the 4-way landblock graph. Index is -1 (and Dir
// None) past the poles.
type Neighbor struct {
	Dir   Direction
	Index int
}

func (n Neighbor) Valid() bool { return n.Index >= 0 }

type Landblock struct {
	Height         uint32
	Variance       uint32
	Class          catalogs.BiomeType
	TemperatureC   float64
	RainfallMM     int
	BiomeIdx       int
	AirPressureKPA float64
	PrevailingWind Direction
	// Fixed at zero-fill, in N, S, E, W order.
	Neighbors [4]Neighbor
}

// NeighborToward returns the neighbor in direction d.
func (lb *Landblock) NeighborToward(d Direction) (Neighbor, bool) {
	for _, n := range lb.Neighbors {
		if n.Dir == d && n.Valid() {
			return n, true
		}
	}
	return Neighbor{Index: -1}, false
}

type RiverStep struct {
	Position spatial.PlanetLocation
}

type River struct {
	Name  string
	Start spatial.PlanetLocation
	Steps []RiverStep
}

type Planet struct {
	Seed       string
	RNGSeed    uint64
	NoiseSeed  uint64
	Lacunarity float64
	Dims       spatial.Dims

	WaterHeight  uint32
	PlainsHeight uint32
	HillsHeight  uint32

	Rivers     []River
	Landblocks []Landblock
}

// SeedsFor derives the noise and rng seeds from a seed string: the sum of its
// code points, and that sum plus one.
func SeedsFor(seed string) (noiseSeed, rngSeed uint64) {
	var base uint64
	for _, r := range seed {
		base += uint64(r)
	}
	return base, base + 1
}

func (p *Planet) Landblock(loc spatial.PlanetLocation) *Landblock {
	idx := p.Dims.RegionIndex(loc)
	if idx < 0 || idx >= len(p.Landblocks) {
		panic(fmt.Sprintf("planet: landblock %v out of range", loc))
	}
	return &p.Landblocks[idx]
}

// RiverTiles returns the landblock indices crossed by any river.
func (p *Planet) RiverTiles() map[int]bool {
	out := map[int]bool{}
	for _, r := range p.Rivers {
		out[p.Dims.RegionIndex(r.Start)] = true
		for _, s := range r.Steps {
			out[p.Dims.RegionIndex(s.Position)] = true
		}
	}
	return out
}

// Validate checks the structural invariants of a finished planet.
func (p *Planet) Validate() error {
	if err := p.Dims.Validate(); err != nil {
		return err
	}
	if len(p.Landblocks) != p.Dims.WorldTiles() {
		return fmt.Errorf("planet: %d landblocks, want %d", len(p.Landblocks), p.Dims.WorldTiles())
	}
	if p.WaterHeight > p.PlainsHeight || p.PlainsHeight > p.HillsHeight {
		return fmt.Errorf("planet: thresholds out of order: water=%d plains=%d hills=%d", p.WaterHeight, p.PlainsHeight, p.HillsHeight)
	}
	return nil
}
