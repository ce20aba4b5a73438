package chunk

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"worldforge.ai/internal/persistence/snapshot"
	"worldforge.ai/internal/sim/events"
	"worldforge.ai/internal/sim/spatial"
)

// DiskStore keeps one compressed file per chunk under
// <world>/chunks/<rx>_<ry>/<x>_<y>.chunk. It is safe for concurrent use on
// distinct chunks.
type DiskStore struct {
	root    string
	worldID string
	size    int
	sink    events.Sink
	logger  *log.Logger
}

func NewDiskStore(worldDir, worldID string, chunkSize int, sink events.Sink, logger *log.Logger) *DiskStore {
	if logger == nil {
		logger = log.New(os.Stdout, "[chunks] ", log.LstdFlags|log.Lmicroseconds)
	}
	return &DiskStore{
		root:    filepath.Join(worldDir, "chunks"),
		worldID: worldID,
		size:    chunkSize,
		sink:    events.OrDiscard(sink),
		logger:  logger,
	}
}

func (s *DiskStore) Root() string { return s.root }

func (s *DiskStore) Path(region spatial.PlanetLocation, loc spatial.ChunkLocation) string {
	return filepath.Join(s.root, fmt.Sprintf("%d_%d", region.X, region.Y), loc.String()+".chunk")
}

func (s *DiskStore) Exists(region spatial.PlanetLocation, loc spatial.ChunkLocation) bool {
	_, err := os.Stat(s.Path(region, loc))
	return err == nil
}

// Load reads a chunk file. A missing or unreadable file reports ok=false; read
// failures are logged and otherwise treated as absence.
func (s *DiskStore) Load(region spatial.PlanetLocation, loc spatial.ChunkLocation) (*Chunk, bool) {
	path := s.Path(region, loc)
	snap, err := snapshot.ReadChunk(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Printf("load chunk %s/%s: %v", region, loc, err)
		}
		return nil, false
	}
	c, err := FromSnapshot(snap)
	if err == nil && (c.Size != s.size || c.Region != region || c.Location != loc) {
		err = fmt.Errorf("file holds %s/%s size %d", c.Region, c.Location, c.Size)
	}
	if err != nil {
		s.logger.Printf("load chunk %s/%s: %v", region, loc, err)
		return nil, false
	}
	e := events.New(events.KindChunkLoaded, s.worldID).WithRegion(region.X, region.Y).WithChunk(loc.X, loc.Y)
	e.Path = path
	s.sink.Emit(e)
	return c, true
}

// Save writes the chunk whole and clears its changed mark.
func (s *DiskStore) Save(c *Chunk) error {
	path := s.Path(c.Region, c.Location)
	info, err := snapshot.WriteChunk(path, c.ToSnapshot(s.worldID))
	if err != nil {
		return fmt.Errorf("save chunk %s/%s: %w", c.Region, c.Location, err)
	}
	c.MarkSaved()
	e := events.New(events.KindChunkSaved, s.worldID).WithRegion(c.Region.X, c.Region.Y).WithChunk(c.Location.X, c.Location.Y)
	e.Path, e.Bytes, e.SHA256 = path, info.Bytes, info.SHA256
	d := c.Density()
	e.Data = map[string]any{"trees": d.Trees(), "plants": d.Plants()}
	s.sink.Emit(e)
	return nil
}

// List returns the chunk origins saved for a region.
func (s *DiskStore) List(region spatial.PlanetLocation) ([]spatial.ChunkLocation, error) {
	dir := filepath.Join(s.root, fmt.Sprintf("%d_%d", region.X, region.Y))
	ents, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var out []spatial.ChunkLocation
	for _, e := range ents {
		var x, y int
		if _, err := fmt.Sscanf(e.Name(), "%d_%d.chunk", &x, &y); err != nil {
			continue
		}
		out = append(out, spatial.ChunkLocation{X: x, Y: y})
	}
	return out, nil
}
