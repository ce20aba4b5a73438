package catalogs

import "worldforge.ai/internal/sim/tile"

type Plant struct {
	Name           string `json:"name"`
	MinTemp        int    `json:"min_temp"`
	MaxTemp        int    `json:"max_temp"`
	MinSoilQuality int    `json:"min_soil_quality,omitempty"`

	Kind tile.PlantKind `json:"-"`
}

// PlantsFor returns the plants that tolerate tempC on soil of the given quality.
func (c *Catalog) PlantsFor(tempC, soilQuality int) []Plant {
	var out []Plant
	for _, p := range c.Plants {
		if tempC < p.MinTemp || tempC >= p.MaxTemp {
			continue
		}
		if soilQuality < p.MinSoilQuality {
			continue
		}
		out = append(out, p)
	}
	return out
}
