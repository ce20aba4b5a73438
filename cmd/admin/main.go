package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"worldforge.ai/internal/persistence/archive"
	"worldforge.ai/internal/persistence/snapshot"
	"worldforge.ai/internal/sim/catalogs"
	"worldforge.ai/internal/sim/chunk"
	"worldforge.ai/internal/sim/planet"
	"worldforge.ai/internal/sim/spatial"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "list":
			listCmd(os.Args[2:])
			return
		case "planets", "regions", "chunks":
			dbCmd(os.Args[1], os.Args[2:])
			return
		case "map":
			mapCmd(os.Args[2:])
			return
		case "inspect":
			inspectCmd(os.Args[2:])
			return
		case "archives":
			archivesCmd(os.Args[2:])
			return
		case "status":
			statusCmd(os.Args[2:])
			return
		case "build":
			buildCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	base := filepath.Join(*dataDir, "worlds")
	entries, err := os.ReadDir(base)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		line := e.Name()
		if h, err := snapshot.ReadHeader(planet.WorldFile(filepath.Join(base, e.Name()))); err == nil {
			line += fmt.Sprintf("\tplanet saved %s", humanize.Time(time.Unix(h.CreatedUnix, 0)))
		} else {
			line += "\tno planet"
		}
		fmt.Println(line)
	}
}

func worldDirFlag(fs *flag.FlagSet) func() string {
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "world_1", "world id")
	return func() string { return filepath.Join(*dataDir, "worlds", *worldID) }
}

// mapCmd prints one glyph per landblock.
func mapCmd(args []string) {
	fs := flag.NewFlagSet("map", flag.ExitOnError)
	worldDir := worldDirFlag(fs)
	rivers := fs.Bool("rivers", true, "overlay rivers")
	_ = fs.Parse(args)

	p, err := planet.LoadFile(planet.WorldFile(worldDir()))
	if err != nil {
		fmt.Fprintln(os.Stderr, "load planet:", err)
		os.Exit(1)
	}
	fmt.Printf("seed=%q water=%d plains=%d hills=%d rivers=%d\n", p.Seed, p.WaterHeight, p.PlainsHeight, p.HillsHeight, len(p.Rivers))
	writePlanetMap(os.Stdout, p, *rivers)
}

func writePlanetMap(w io.Writer, p *planet.Planet, rivers bool) {
	d := p.Dims
	river := map[spatial.PlanetLocation]bool{}
	if rivers {
		for _, r := range p.Rivers {
			for _, s := range r.Steps {
				river[s.Position] = true
			}
		}
	}
	var sb strings.Builder
	for y := 0; y < d.WorldHeight; y++ {
		for x := 0; x < d.WorldWidth; x++ {
			if river[spatial.PlanetLocation{X: x, Y: y}] {
				sb.WriteByte('=')
				continue
			}
			sb.WriteByte(classGlyph(p.Landblocks[d.PlanetIndex(x, y)].Class))
		}
		sb.WriteByte('\n')
	}
	_, _ = io.WriteString(w, sb.String())
}

func classGlyph(c catalogs.BiomeType) byte {
	switch c {
	case catalogs.BiomeWater:
		return '~'
	case catalogs.BiomePlains:
		return '.'
	case catalogs.BiomeHills:
		return 'n'
	case catalogs.BiomeMountains:
		return '^'
	case catalogs.BiomeMarsh:
		return ','
	case catalogs.BiomePlateau:
		return '_'
	case catalogs.BiomeHighlands:
		return 'h'
	case catalogs.BiomeCoastal:
		return ':'
	case catalogs.BiomeSaltMarsh:
		return ';'
	default:
		return ' '
	}
}

// inspectCmd dumps one chunk file, addressed directly or by coordinates.
func inspectCmd(args []string) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	worldDir := worldDirFlag(fs)
	file := fs.String("file", "", "chunk file path (overrides -region/-chunk)")
	regionArg := fs.String("region", "", "landblock x,y")
	chunkArg := fs.String("chunk", "", "chunk origin x,y inside the region")
	raws := fs.String("raws", "./configs/raws/index.txt", "raw catalog index for material names (optional)")
	_ = fs.Parse(args)

	path := strings.TrimSpace(*file)
	if path == "" {
		rx, ry, err1 := parsePair(*regionArg)
		cx, cy, err2 := parsePair(*chunkArg)
		if err1 != nil || err2 != nil {
			fmt.Fprintln(os.Stderr, "need -file, or -region x,y and -chunk x,y")
			os.Exit(2)
		}
		disk := chunk.NewDiskStore(worldDir(), "", 0, nil, nil)
		path = disk.Path(spatial.PlanetLocation{X: rx, Y: ry}, spatial.ChunkLocation{X: cx, Y: cy})
	}

	st, err := os.Stat(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "stat:", err)
		os.Exit(1)
	}
	s, err := snapshot.ReadChunk(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read chunk:", err)
		os.Exit(1)
	}
	c, err := chunk.FromSnapshot(s)
	if err != nil {
		fmt.Fprintln(os.Stderr, "decode chunk:", err)
		os.Exit(1)
	}
	var cat *catalogs.Catalog
	if *raws != "" {
		cat, _ = catalogs.Load(*raws)
	}
	writeChunkReport(os.Stdout, c, st.Size(), time.Unix(s.Header.CreatedUnix, 0), cat)
}

func writeChunkReport(w io.Writer, c *chunk.Chunk, size int64, saved time.Time, cat *catalogs.Catalog) {
	dg := c.Digest()
	fmt.Fprintf(w, "region=%s chunk=%s size=%d file=%s saved=%s digest=%x\n",
		c.Region, c.Location, c.Size, humanize.Bytes(uint64(size)), humanize.Time(saved), dg[:8])
	for y := 0; y < c.Size; y++ {
		var sb strings.Builder
		for x := 0; x < c.Size; x++ {
			t, _ := c.Get(x, y)
			sb.WriteRune(t.Glyph())
		}
		fmt.Fprintln(w, sb.String())
	}
	d := c.Density()
	fmt.Fprintf(w, "floor=%d wall=%d water=%d sand=%d soil=%d evergreen=%d deciduous=%d grass=%d daisy=%d heather=%d\n",
		d.Floor, d.Wall, d.Water, d.Sand, d.Soil, d.Evergreen, d.Deciduous, d.Grass, d.Daisy, d.Heather)

	counts := map[int]int{}
	for _, m := range c.Material {
		counts[m]++
	}
	mats := make([]int, 0, len(counts))
	for m := range counts {
		mats = append(mats, m)
	}
	sort.Slice(mats, func(i, j int) bool { return counts[mats[i]] > counts[mats[j]] || (counts[mats[i]] == counts[mats[j]] && mats[i] < mats[j]) })
	for _, m := range mats {
		name := fmt.Sprintf("#%d", m)
		if cat != nil && m >= 0 && m < len(cat.Materials) {
			name = cat.Materials[m].Name
		}
		fmt.Fprintf(w, "  %-16s %s tiles\n", name, humanize.Comma(int64(counts[m])))
	}
}

func archivesCmd(args []string) {
	fs := flag.NewFlagSet("archives", flag.ExitOnError)
	worldDir := worldDirFlag(fs)
	_ = fs.Parse(args)

	dir := worldDir()
	gens := archive.Generations(dir)
	if len(gens) == 0 {
		fmt.Println("no archived planets")
		return
	}
	for _, g := range gens {
		p := filepath.Join(dir, "archives", fmt.Sprintf("gen_%03d", g), filepath.Base(planet.WorldFile(dir)))
		line := fmt.Sprintf("%d\t%s", g, p)
		if st, err := os.Stat(p); err == nil {
			line += "\t" + humanize.Bytes(uint64(st.Size()))
		}
		if h, err := snapshot.ReadHeader(p); err == nil {
			line += "\t" + humanize.Time(time.Unix(h.CreatedUnix, 0))
		}
		fmt.Println(line)
	}
}
