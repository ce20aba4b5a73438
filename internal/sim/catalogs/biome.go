package catalogs

import (
	"encoding/json"
	"fmt"
	"strings"
)

// BiomeType is the coarse landblock class assigned by the planet generator.
type BiomeType uint8

const (
	BiomeNone BiomeType = iota
	BiomeWater
	BiomePlains
	BiomeHills
	BiomeMountains
	BiomeMarsh
	BiomePlateau
	BiomeHighlands
	BiomeCoastal
	BiomeSaltMarsh
)

var biomeTypeNames = [...]string{
	"None", "Water", "Plains", "Hills", "Mountains",
	"Marsh", "Plateau", "Highlands", "Coastal", "SaltMarsh",
}

// AllBiomeTypes lists every class in declaration order.
func AllBiomeTypes() []BiomeType {
	out := make([]BiomeType, len(biomeTypeNames))
	for i := range biomeTypeNames {
		out[i] = BiomeType(i)
	}
	return out
}

func (b BiomeType) String() string {
	if int(b) < len(biomeTypeNames) {
		return biomeTypeNames[b]
	}
	return fmt.Sprintf("BiomeType(%d)", uint8(b))
}

func ParseBiomeType(s string) (BiomeType, error) {
	for i, n := range biomeTypeNames {
		if strings.EqualFold(n, s) {
			return BiomeType(i), nil
		}
	}
	return BiomeNone, fmt.Errorf("unknown biome type %q", s)
}

func (b BiomeType) MarshalJSON() ([]byte, error) { return json.Marshal(b.String()) }

func (b *BiomeType) UnmarshalJSON(raw []byte) error {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return err
	}
	v, err := ParseBiomeType(s)
	if err != nil {
		return err
	}
	*b = v
	return nil
}

type Biome struct {
	Name        string      `json:"name"`
	MinTemp     int         `json:"min_temp"`
	MaxTemp     int         `json:"max_temp"`
	MinRain     int         `json:"min_rain"`
	MaxRain     int         `json:"max_rain"`
	MinMutation int         `json:"min_mutation"`
	MaxMutation int         `json:"max_mutation"`
	Occurs      []BiomeType `json:"occurs"`
	Soils       SoilTypes   `json:"soils"`
	Trees       []BiomeTree `json:"trees"`
	Nouns       []string    `json:"nouns"`
	// Display hints for the excluded presentation layer.
	WorldgenTile int `json:"worldgen_tile"`
	EmbarkTile   int `json:"embark_tile"`
}

// SoilTypes are d100 thresholds for soil and sand placement.
type SoilTypes struct {
	Soil int `json:"soil"`
	Sand int `json:"sand"`
}

// BiomeTree is a frequency weight per tree family: "d" deciduous, "e" evergreen.
type BiomeTree struct {
	Tree string  `json:"tree"`
	Freq float64 `json:"freq"`
}

// Accepts reports whether the biome may be assigned to a landblock with the
// given class, temperature and rainfall. Ranges are half open.
func (b *Biome) Accepts(class BiomeType, tempC float64, rainMM int) bool {
	found := false
	for _, o := range b.Occurs {
		if o == class {
			found = true
			break
		}
	}
	if !found {
		return false
	}
	t := int(tempC)
	if t < b.MinTemp || t >= b.MaxTemp {
		return false
	}
	return rainMM >= b.MinRain && rainMM < b.MaxRain
}

// TreeChances returns the deciduous and evergreen frequency thresholds.
func (b *Biome) TreeChances() (deciduous, evergreen int) {
	for _, t := range b.Trees {
		switch strings.ToLower(t.Tree) {
		case "d":
			deciduous = int(t.Freq)
		case "e":
			evergreen = int(t.Freq)
		}
	}
	return deciduous, evergreen
}
