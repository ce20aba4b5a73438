package planet

import "worldforge.ai/internal/sim/catalogs"

// prevailingWinds points every landblock at its highest-pressure neighbor.
// Ties keep the first neighbor in N, S, E, W order.
func prevailingWinds(p *Planet) {
	for i := range p.Landblocks {
		lb := &p.Landblocks[i]
		lb.PrevailingWind = None
		best := 0.0
		for _, n := range lb.Neighbors {
			if !n.Valid() {
				continue
			}
			pr := p.Landblocks[n.Index].AirPressureKPA
			if lb.PrevailingWind == None || pr > best {
				lb.PrevailingWind = n.Dir
				best = pr
			}
		}
	}
}

type rainParticle struct {
	load     int
	cycles   int
	raining  bool
	position int
	history  map[int]struct{}
}

func (r *rainParticle) takeWater(lb *Landblock, amount int) {
	if amount <= lb.RainfallMM {
		lb.RainfallMM -= amount
		r.load += amount
		return
	}
	r.load += lb.RainfallMM
	lb.RainfallMM = 0
}

func (r *rainParticle) dumpWater(lb *Landblock, amount int) {
	if r.load >= amount {
		r.load -= amount
		lb.RainfallMM += amount
		return
	}
	lb.RainfallMM += r.load
	r.load = 0
}

// rainfall runs one particle per landblock in lockstep rounds until every
// particle exceeds the cycle cap. progress receives the share of terminated
// particles after each round. It returns the number of rounds run, which
// never exceeds the cap.
func rainfall(p *Planet, rp RainParams, progress func(percent int)) int {
	capCycles := p.Dims.WorldWidth * max(rp.CycleCapFactor, 1)
	total := len(p.Landblocks)

	particles := make([]*rainParticle, 0, total)
	for i := range p.Landblocks {
		particles = append(particles, &rainParticle{position: i, history: map[int]struct{}{}})
	}

	rounds := 0
	for len(particles) > 0 {
		rounds++
		for _, r := range particles {
			r.cycles++
			lb := &p.Landblocks[r.position]

			switch {
			case lb.Class == catalogs.BiomeWater:
				// Open water is an unbounded source.
				r.load += rp.OceanAbsorb
			case r.raining:
				r.dumpWater(lb, rp.RainDump)
			default:
				r.takeWater(lb, rp.AmbientAbsorb)
			}

			if r.load < 1 {
				r.raining = false
			}
			if r.load > 0 && (lb.Class == catalogs.BiomeMountains || lb.Class == catalogs.BiomeHighlands) {
				r.raining = true
			}

			next, ok := lb.NeighborToward(lb.PrevailingWind)
			if !ok {
				r.cycles += rp.CycleBump
				continue
			}
			if _, seen := r.history[next.Index]; seen {
				r.cycles += rp.CycleBump
				continue
			}
			r.history[r.position] = struct{}{}
			r.position = next.Index
		}

		kept := particles[:0]
		for _, r := range particles {
			if r.cycles < capCycles {
				kept = append(kept, r)
			}
		}
		particles = kept

		if progress != nil && total > 0 {
			progress(int((1 - float64(len(particles))/float64(total)) * 100))
		}
	}
	return rounds
}
