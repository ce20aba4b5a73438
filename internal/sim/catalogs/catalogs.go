// Package catalogs loads the raw content tables (biomes, materials, plants)
// the generators draw from.
package catalogs

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"worldforge.ai/internal/sim/tile"
)

//go:embed bundle.schema.json
var bundleSchemaJSON []byte

// Bundle is one raw file. Every table is optional.
type Bundle struct {
	Biomes    []Biome    `json:"biomes,omitempty"`
	Materials []Material `json:"materials,omitempty"`
	Plants    []Plant    `json:"plants,omitempty"`
}

// Catalog is the merged, read-only content used during generation.
type Catalog struct {
	Biomes    []Biome
	Materials []Material
	Plants    []Plant
	Strata    Strata

	BundleDigests map[string]string
	Digest        string

	materialIndex map[string]int
}

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func bundleSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource("bundle.schema.json", bytes.NewReader(bundleSchemaJSON)); err != nil {
			schemaErr = err
			return
		}
		schema, schemaErr = c.Compile("bundle.schema.json")
	})
	return schema, schemaErr
}

// Load reads an index file and merges every bundle it lists, in order.
// Bundle paths are relative to the index file. Empty lines and lines
// starting with "# " are skipped. Any unreadable or invalid bundle fails the
// whole load.
func Load(indexPath string) (*Catalog, error) {
	f, err := os.Open(indexPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var names []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if line == "" || strings.HasPrefix(line, "# ") {
			continue
		}
		names = append(names, strings.TrimSpace(line))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(indexPath), err)
	}

	dir := filepath.Dir(indexPath)
	var merged Bundle
	digests := make(map[string]string, len(names))
	var concat bytes.Buffer
	for _, name := range names {
		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("raw bundle %s: %w", name, err)
		}
		b, err := DecodeBundle(raw)
		if err != nil {
			return nil, fmt.Errorf("raw bundle %s: %w", name, err)
		}
		digests[name] = sha256Hex(raw)
		concat.Write(raw)
		concat.WriteByte('\n')
		merged.merge(b)
	}

	c, err := New(merged)
	if err != nil {
		return nil, err
	}
	c.BundleDigests = digests
	c.Digest = sha256Hex(concat.Bytes())
	return c, nil
}

// DecodeBundle validates raw against the bundle schema and decodes it.
func DecodeBundle(raw []byte) (Bundle, error) {
	var b Bundle
	s, err := bundleSchema()
	if err != nil {
		return b, fmt.Errorf("compile bundle schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return b, err
	}
	if err := s.Validate(v); err != nil {
		return b, err
	}
	if err := json.Unmarshal(raw, &b); err != nil {
		return b, err
	}
	return b, nil
}

func (b *Bundle) merge(o Bundle) {
	b.Biomes = append(b.Biomes, o.Biomes...)
	b.Materials = append(b.Materials, o.Materials...)
	b.Plants = append(b.Plants, o.Plants...)
}

// New builds a catalog from already decoded tables.
func New(b Bundle) (*Catalog, error) {
	c := &Catalog{
		Biomes:        b.Biomes,
		Materials:     b.Materials,
		Plants:        make([]Plant, 0, len(b.Plants)),
		BundleDigests: map[string]string{},
		materialIndex: make(map[string]int, len(b.Materials)),
	}
	for i, m := range b.Materials {
		if m.Name == "" {
			return nil, fmt.Errorf("material %d: empty name", i)
		}
		if _, dup := c.materialIndex[m.Name]; dup {
			return nil, fmt.Errorf("material %s: duplicate", m.Name)
		}
		c.materialIndex[m.Name] = i
	}
	for _, bio := range b.Biomes {
		if bio.MaxTemp <= bio.MinTemp || bio.MaxRain <= bio.MinRain {
			return nil, fmt.Errorf("biome %s: empty climate range", bio.Name)
		}
	}
	for _, p := range b.Plants {
		k, err := tile.ParsePlant(p.Name)
		if err != nil {
			return nil, err
		}
		p.Kind = k
		c.Plants = append(c.Plants, p)
	}
	c.Strata = buildStrata(c.Materials)
	raw, _ := json.Marshal(b)
	c.Digest = sha256Hex(raw)
	return c, nil
}

func (c *Catalog) MaterialByName(name string) (int, bool) {
	i, ok := c.materialIndex[name]
	return i, ok
}

// Material panics on an unknown index.
func (c *Catalog) Material(idx int) *Material {
	if idx < 0 || idx >= len(c.Materials) {
		panic(fmt.Sprintf("catalogs: material index %d out of range", idx))
	}
	return &c.Materials[idx]
}

// Biome panics on an unknown index.
func (c *Catalog) Biome(idx int) *Biome {
	if idx < 0 || idx >= len(c.Biomes) {
		panic(fmt.Sprintf("catalogs: biome index %d out of range", idx))
	}
	return &c.Biomes[idx]
}

// BiomesFor returns the indices of every biome accepting the given climate.
func (c *Catalog) BiomesFor(class BiomeType, tempC float64, rainMM int) []int {
	var out []int
	for i := range c.Biomes {
		if c.Biomes[i].Accepts(class, tempC, rainMM) {
			out = append(out, i)
		}
	}
	return out
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
