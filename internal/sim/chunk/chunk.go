// Package chunk holds the fixed-size unit of streaming and persistence, its
// on-disk store, and noise population of chunk tiles.
package chunk

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"worldforge.ai/internal/persistence/snapshot"
	"worldforge.ai/internal/sim/spatial"
	"worldforge.ai/internal/sim/tile"
)

type Chunk struct {
	Region   spatial.PlanetLocation
	Location spatial.ChunkLocation
	Size     int
	Tiles    []tile.Type
	Material []int

	// changed is set by Set and cleared by MarkSaved.
	changed bool
	hashOK  bool
	hash    [32]byte
}

// New returns an all-floor chunk.
func New(size int, region spatial.PlanetLocation, loc spatial.ChunkLocation) *Chunk {
	c := &Chunk{
		Region:   region,
		Location: loc,
		Size:     size,
		Tiles:    make([]tile.Type, size*size),
		Material: make([]int, size*size),
	}
	for i := range c.Tiles {
		c.Tiles[i] = tile.FloorTile
	}
	return c
}

func (c *Chunk) index(x, y int) int {
	if x < 0 || y < 0 || x >= c.Size || y >= c.Size {
		panic(fmt.Sprintf("chunk %s: local (%d,%d) out of range", c.Location, x, y))
	}
	return y*c.Size + x
}

func (c *Chunk) Get(x, y int) (tile.Type, int) {
	i := c.index(x, y)
	return c.Tiles[i], c.Material[i]
}

// Set reports whether the tile changed.
func (c *Chunk) Set(x, y int, t tile.Type, material int) bool {
	i := c.index(x, y)
	if c.Tiles[i] == t && c.Material[i] == material {
		return false
	}
	c.Tiles[i] = t
	c.Material[i] = material
	c.changed = true
	c.hashOK = false
	return true
}

func (c *Chunk) Changed() bool { return c.changed }

func (c *Chunk) MarkSaved() { c.changed = false }

// Codes returns the packed tile codes in chunk index order.
func (c *Chunk) Codes() []uint16 {
	out := make([]uint16, len(c.Tiles))
	for i, t := range c.Tiles {
		out[i] = t.Code()
	}
	return out
}

// Digest hashes tile codes and materials.
func (c *Chunk) Digest() [32]byte {
	if c.hashOK {
		return c.hash
	}
	h := sha256.New()
	var tmp [4]byte
	for i, t := range c.Tiles {
		binary.LittleEndian.PutUint16(tmp[:2], t.Code())
		h.Write(tmp[:2])
		binary.LittleEndian.PutUint32(tmp[:], uint32(c.Material[i]))
		h.Write(tmp[:])
	}
	copy(c.hash[:], h.Sum(nil))
	c.hashOK = true
	return c.hash
}

// Density counts the vegetation in the chunk.
func (c *Chunk) Density() tile.Density {
	var d tile.Density
	for _, t := range c.Tiles {
		d.Add(t)
	}
	return d
}

func (c *Chunk) ToSnapshot(worldID string) snapshot.ChunkV1 {
	out := snapshot.ChunkV1{
		Header:   snapshot.Header{WorldID: worldID},
		Region:   [2]int{c.Region.X, c.Region.Y},
		Origin:   [2]int{c.Location.X, c.Location.Y},
		Size:     c.Size,
		Tiles:    c.Codes(),
		Material: make([]uint32, len(c.Material)),
	}
	for i, m := range c.Material {
		out.Material[i] = uint32(m)
	}
	return out
}

func FromSnapshot(s snapshot.ChunkV1) (*Chunk, error) {
	n := s.Size * s.Size
	if s.Size <= 0 || len(s.Tiles) != n || len(s.Material) != n {
		return nil, fmt.Errorf("chunk %v: size %d with %d tiles and %d materials", s.Origin, s.Size, len(s.Tiles), len(s.Material))
	}
	c := &Chunk{
		Region:   spatial.PlanetLocation{X: s.Region[0], Y: s.Region[1]},
		Location: spatial.ChunkLocation{X: s.Origin[0], Y: s.Origin[1]},
		Size:     s.Size,
		Tiles:    make([]tile.Type, n),
		Material: make([]int, n),
	}
	for i, code := range s.Tiles {
		t, err := tile.FromCode(code)
		if err != nil {
			return nil, fmt.Errorf("chunk %s tile %d: %w", c.Location, i, err)
		}
		c.Tiles[i] = t
		c.Material[i] = int(s.Material[i])
	}
	return c, nil
}
