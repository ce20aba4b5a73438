package tuning

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"worldforge.ai/internal/sim/planet"
	"worldforge.ai/internal/sim/region"
	"worldforge.ai/internal/sim/spatial"
)

type Tuning struct {
	World  spatial.Dims  `yaml:"world"`
	Planet planet.Params `yaml:"planet"`
	Region region.Params `yaml:"region"`
	Stream Stream        `yaml:"stream"`
}

type Stream struct {
	TickRateHz int `yaml:"tick_rate_hz"`
	LoadRadius int `yaml:"load_radius"`
	Workers    int `yaml:"workers"`
	// ObserverHz is the push rate of the observer feed.
	ObserverHz int `yaml:"observer_hz"`
}

func Defaults() Tuning {
	return Tuning{
		World:  spatial.DefaultDims(),
		Planet: planet.DefaultParams(),
		Region: region.DefaultParams(),
		Stream: Stream{
			TickRateHz: 30,
			LoadRadius: 4,
			Workers:    4,
			ObserverHz: 2,
		},
	}
}

// Load overlays the file onto Defaults, so a partial file keeps the
// remaining defaults.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if err := t.World.Validate(); err != nil {
		return err
	}
	p := t.Planet
	if p.Lacunarity <= 0 {
		return errors.New("planet.lacunarity must be positive")
	}
	if p.Noise.Octaves <= 0 || p.Noise.SphereRadius <= 0 {
		return errors.New("planet.noise: octaves and sphere_radius must be positive")
	}
	if p.AltitudeSamples <= 0 {
		return errors.New("planet.altitude_samples must be positive")
	}
	if p.WaterDivisor <= 0 || p.PlainsDivisor <= 0 || p.HillsDivisor <= 0 {
		return errors.New("planet divisors must be positive")
	}
	if p.Rain.CycleCapFactor <= 0 {
		return errors.New("planet.rain.cycle_cap_factor must be positive")
	}
	r := t.Region
	if r.PlantingChance <= 0 || r.TreeChance <= 0 {
		return errors.New("region: planting_chance and tree_chance must be positive")
	}
	if r.TreeBorder < 0 || 2*r.TreeBorder >= min(t.World.RegionWidth, t.World.RegionHeight) {
		return fmt.Errorf("region.tree_border %d does not fit the region", r.TreeBorder)
	}
	if t.Stream.TickRateHz <= 0 || t.Stream.Workers <= 0 || t.Stream.LoadRadius <= 0 {
		return errors.New("stream: tick_rate_hz, workers and load_radius must be positive")
	}
	return nil
}
