package region

import "time"

type Params struct {
	PlantingChance int `yaml:"planting_chance"`
	TreeChance     int `yaml:"tree_chance"`
	TreeBorder     int `yaml:"tree_border"`
	ClearingRadius int `yaml:"clearing_radius"`
	PollIntervalMS int `yaml:"poll_interval_ms"`
	OutcropMargin  int `yaml:"outcrop_margin"`
}

func DefaultParams() Params {
	return Params{
		PlantingChance: 20,
		TreeChance:     1000,
		TreeBorder:     10,
		ClearingRadius: 20,
		PollIntervalMS: 10,
		OutcropMargin:  20,
	}
}

func (p Params) PollInterval() time.Duration {
	if p.PollIntervalMS <= 0 {
		return 10 * time.Millisecond
	}
	return time.Duration(p.PollIntervalMS) * time.Millisecond
}
