package catalogs

import (
	"errors"
	"sync"
)

var ErrNotLoaded = errors.New("catalogs: not loaded")

// Store holds the process-wide catalog. Readers share the lock; a reload
// takes it exclusively.
type Store struct {
	mu  sync.RWMutex
	cat *Catalog
}

func NewStore(c *Catalog) *Store { return &Store{cat: c} }

func (s *Store) Set(c *Catalog) {
	s.mu.Lock()
	s.cat = c
	s.mu.Unlock()
}

func (s *Store) Get() (*Catalog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cat == nil {
		return nil, ErrNotLoaded
	}
	return s.cat, nil
}

// MustGet panics when nothing has been loaded.
func (s *Store) MustGet() *Catalog {
	c, err := s.Get()
	if err != nil {
		panic(err)
	}
	return c
}

// Reload replaces the catalog with a fresh load of indexPath. The previous
// catalog stays in place on error.
func (s *Store) Reload(indexPath string) error {
	c, err := Load(indexPath)
	if err != nil {
		return err
	}
	s.Set(c)
	return nil
}
