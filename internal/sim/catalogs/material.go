package catalogs

import (
	"encoding/json"
	"fmt"
)

type MaterialLayer uint8

const (
	LayerSoil MaterialLayer = iota
	LayerSand
	LayerSedimentary
	LayerIgneous
)

func (l MaterialLayer) String() string {
	switch l {
	case LayerSoil:
		return "soil"
	case LayerSand:
		return "sand"
	case LayerSedimentary:
		return "sedimentary"
	case LayerIgneous:
		return "igneous"
	default:
		return fmt.Sprintf("layer(%d)", uint8(l))
	}
}

func (l MaterialLayer) MarshalJSON() ([]byte, error) { return json.Marshal(l.String()) }

func (l *MaterialLayer) UnmarshalJSON(raw []byte) error {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return err
	}
	switch s {
	case "soil":
		*l = LayerSoil
	case "sand":
		*l = LayerSand
	case "sedimentary":
		*l = LayerSedimentary
	case "igneous":
		*l = LayerIgneous
	default:
		return fmt.Errorf("unknown material layer %q", s)
	}
	return nil
}

type Material struct {
	Name  string        `json:"name"`
	Layer MaterialLayer `json:"layer"`
	// Quality only applies to soils.
	Quality int `json:"quality,omitempty"`
}

// SoilQuality is the fertility used by vegetation placement: the soil's own
// quality, otherwise 1.
func (m *Material) SoilQuality() int {
	if m.Layer == LayerSoil {
		return m.Quality
	}
	return 1
}

// Strata groups material indices by layer.
type Strata struct {
	Soils       []int
	Sand        []int
	Sedimentary []int
	Igneous     []int
}

func buildStrata(materials []Material) Strata {
	var s Strata
	for i, m := range materials {
		switch m.Layer {
		case LayerSoil:
			s.Soils = append(s.Soils, i)
		case LayerSand:
			s.Sand = append(s.Sand, i)
		case LayerSedimentary:
			s.Sedimentary = append(s.Sedimentary, i)
		case LayerIgneous:
			s.Igneous = append(s.Igneous, i)
		}
	}
	return s
}

// PickMaterial maps a noise value in [-1,1] proportionally onto materials.
// Out of range values clamp to the ends.
func PickMaterial(materials []int, n float64) int {
	if len(materials) == 0 {
		panic("catalogs: no materials in stratum")
	}
	i := int((n + 1) / 2 * float64(len(materials)))
	if i < 0 {
		i = 0
	}
	if i >= len(materials) {
		i = len(materials) - 1
	}
	return materials[i]
}
