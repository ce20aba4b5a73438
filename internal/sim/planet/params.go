package planet

import "worldforge.ai/internal/sim/noise"

type Params struct {
	Lacunarity      float64      `yaml:"lacunarity"`
	Noise           noise.Params `yaml:"noise"`
	AltitudeSamples int          `yaml:"altitude_samples"`

	WaterDivisor  int `yaml:"water_divisor"`
	PlainsDivisor int `yaml:"plains_divisor"`
	HillsDivisor  int `yaml:"hills_divisor"`

	Rain RainParams `yaml:"rain"`

	RiverMax      int `yaml:"river_max"`
	RiverMaxSteps int `yaml:"river_max_steps"`
}

type RainParams struct {
	OceanAbsorb    int `yaml:"ocean_absorb"`
	RainDump       int `yaml:"rain_dump"`
	AmbientAbsorb  int `yaml:"ambient_absorb"`
	CycleCapFactor int `yaml:"cycle_cap_factor"`
	CycleBump      int `yaml:"cycle_bump"`
}

func DefaultParams() Params {
	return Params{
		Lacunarity:      2,
		Noise:           noise.DefaultParams(),
		AltitudeSamples: 4,
		WaterDivisor:    3,
		PlainsDivisor:   3,
		HillsDivisor:    4,
		Rain: RainParams{
			OceanAbsorb:    20,
			RainDump:       5,
			AmbientAbsorb:  200,
			CycleCapFactor: 2,
			CycleBump:      500,
		},
		RiverMax:      10,
		RiverMaxSteps: 64,
	}
}
