// Package noise provides the two seeded fields the generators sample: a
// fractal height field evaluated on the surface of a sphere, and a cellular
// material field. Both are pure functions of their coordinates and safe for
// concurrent use.
package noise

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/ojrac/opensimplex-go"

	"worldforge.ai/internal/sim/spatial"
)

type Params struct {
	Octaves           int     `yaml:"octaves"`
	Gain              float64 `yaml:"gain"`
	HeightFrequency   float64 `yaml:"height_frequency"`
	MaterialFrequency float64 `yaml:"material_frequency"`
	SphereRadius      float64 `yaml:"sphere_radius"`
}

func DefaultParams() Params {
	return Params{
		Octaves:           5,
		Gain:              0.5,
		HeightFrequency:   0.01,
		MaterialFrequency: 0.08,
		SphereRadius:      100,
	}
}

// Field bundles the height and material noise for one planet.
type Field struct {
	dims       spatial.Dims
	params     Params
	lacunarity float64

	height   opensimplex.Noise
	cellSeed int64
}

// New seeds the height field with seed and the material field with seed+1.
func New(d spatial.Dims, seed uint64, lacunarity float64, p Params) *Field {
	if p.Octaves <= 0 {
		p.Octaves = 1
	}
	if lacunarity <= 0 {
		lacunarity = 2
	}
	return &Field{
		dims:       d,
		params:     p,
		lacunarity: lacunarity,
		height:     opensimplex.New(int64(seed)),
		cellSeed:   int64(seed + 1),
	}
}

// Height3 is fractal Brownian motion over simplex noise, normalized to [-1,1].
func (f *Field) Height3(x, y, z float64) float64 {
	freq := f.params.HeightFrequency
	amp := 1.0
	total, norm := 0.0, 0.0
	for o := 0; o < f.params.Octaves; o++ {
		total += amp * f.height.Eval3(x*freq, y*freq, z*freq)
		norm += amp
		amp *= f.params.Gain
		freq *= f.lacunarity
	}
	if norm == 0 {
		return 0
	}
	return clampUnit(total / norm)
}

// Lat is the latitude in degrees of sub-row regionY of landblock row worldY.
func (f *Field) Lat(worldY, regionY int) float64 {
	d := f.dims
	return (float64(worldY*d.RegionHeight+regionY)/float64(d.WorldHeight*d.RegionHeight))*180 - 90
}

// Lon is the longitude in degrees of sub-column regionX of landblock column worldX.
func (f *Field) Lon(worldX, regionX int) float64 {
	d := f.dims
	return (float64(worldX*d.RegionWidth+regionX)/float64(d.WorldWidth*d.RegionWidth))*360 - 180
}

// SphereVertex projects latitude/longitude in degrees onto a sphere of radius r.
func SphereVertex(r, latDeg, lonDeg float64) mgl64.Vec3 {
	// Inclination is measured from the +Z pole.
	theta := mgl64.DegToRad(90 - latDeg)
	phi := mgl64.DegToRad(lonDeg)
	return mgl64.SphericalToCartesian(r, theta, phi)
}

// NoiseToPlanetHeight maps [-1,1] monotonically onto [0,300].
func NoiseToPlanetHeight(n float64) uint32 {
	return uint32((clampUnit(n) + 1) * 150)
}

// CellAltitude is the height of tile (rx,ry) inside landblock (wx,wy).
func (f *Field) CellAltitude(wx, wy, rx, ry int) uint32 {
	v := SphereVertex(f.params.SphereRadius, f.Lat(wy, ry), f.Lon(wx, rx))
	return NoiseToPlanetHeight(f.Height3(v[0], v[1], v[2]))
}

// CellMaterial samples the material field for tile (rx,ry) of landblock
// (wx,wy) at twice the tile resolution. The result is in [-1,1].
func (f *Field) CellMaterial(wx, wy, rx, ry int) float64 {
	return f.Material(f.Lon(wx, rx*2), f.Lat(wy, ry*2))
}

func clampUnit(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}
