package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"worldforge.ai/internal/persistence/snapshot"
)

type WorldArchiveMeta struct {
	Generation int    `json:"generation"`
	WorldID    string `json:"world_id"`
	Seed       string `json:"seed"`
	File       string `json:"file,omitempty"`
	Bytes      int64  `json:"bytes"`
	Chunks     bool   `json:"chunks,omitempty"`
	CreatedAt  string `json:"created_at"`
}

// ArchiveWorldFile copies an existing world file into
// `worldDir/archives/gen_<NNN>/` before it is overwritten, and moves the
// previous planet's `worldDir/chunks/` tree into the same generation. With
// neither present it reports archived=false. archivedPath is the copied
// world file, or the generation directory when only chunks were moved.
func ArchiveWorldFile(worldDir, worldPath, seed string) (generation int, archivedPath string, archived bool, err error) {
	st, err := os.Stat(worldPath)
	if err != nil && !os.IsNotExist(err) {
		return 0, "", false, err
	}
	hasWorld := err == nil
	chunksDir := filepath.Join(worldDir, "chunks")
	cst, err := os.Stat(chunksDir)
	if err != nil && !os.IsNotExist(err) {
		return 0, "", false, err
	}
	hasChunks := err == nil && cst.IsDir()
	if !hasWorld && !hasChunks {
		return 0, "", false, nil
	}

	generation = nextGeneration(worldDir)
	archiveDir := filepath.Join(worldDir, "archives", fmt.Sprintf("gen_%03d", generation))
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return 0, "", false, err
	}

	meta := WorldArchiveMeta{
		Generation: generation,
		Seed:       seed,
		CreatedAt:  time.Now().UTC().Format(time.RFC3339Nano),
	}
	if hasWorld {
		dst := filepath.Join(archiveDir, filepath.Base(worldPath))
		if err := copyFile(worldPath, dst); err != nil {
			return 0, "", false, err
		}
		meta.File, meta.Bytes = filepath.Base(dst), st.Size()
		if h, err := snapshot.ReadHeader(worldPath); err == nil {
			meta.WorldID = h.WorldID
		}
		archivedPath = dst
	}
	if hasChunks {
		if err := os.Rename(chunksDir, filepath.Join(archiveDir, "chunks")); err != nil {
			return 0, "", false, fmt.Errorf("archive chunks: %w", err)
		}
		meta.Chunks = true
		if archivedPath == "" {
			archivedPath = archiveDir
		}
	}
	if b, err := json.MarshalIndent(meta, "", "  "); err == nil {
		_ = os.WriteFile(filepath.Join(archiveDir, "meta.json"), b, 0o644)
	}
	return generation, archivedPath, true, nil
}

// Generations lists archived generation numbers in ascending order.
func Generations(worldDir string) []int {
	ents, err := os.ReadDir(filepath.Join(worldDir, "archives"))
	if err != nil {
		return nil
	}
	var out []int
	for _, e := range ents {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), "gen_") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimPrefix(e.Name(), "gen_"))
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

func nextGeneration(worldDir string) int {
	gens := Generations(worldDir)
	if len(gens) == 0 {
		return 1
	}
	return gens[len(gens)-1] + 1
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
