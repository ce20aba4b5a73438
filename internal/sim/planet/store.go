package planet

import (
	"errors"
	"sync"

	"worldforge.ai/internal/sim/noise"
)

var ErrNoPlanet = errors.New("planet: none active")

// Store holds the active planet and the noise field derived from it.
type Store struct {
	mu     sync.RWMutex
	planet *Planet
	field  *noise.Field
	params noise.Params
}

func NewStore(params noise.Params) *Store { return &Store{params: params} }

// Set installs p and rebuilds its noise field.
func (s *Store) Set(p *Planet) {
	var f *noise.Field
	if p != nil {
		f = noise.New(p.Dims, p.NoiseSeed, p.Lacunarity, s.params)
	}
	s.mu.Lock()
	s.planet, s.field = p, f
	s.mu.Unlock()
}

// Get returns the active planet. The planet is read-only once stored.
func (s *Store) Get() (*Planet, *noise.Field, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.planet == nil {
		return nil, nil, ErrNoPlanet
	}
	return s.planet, s.field, nil
}
