// Package snapshot reads and writes whole world and chunk files: a JSON
// header line followed by a gob body, deflate-compressed as one unit.
package snapshot

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/flate"
)

const (
	Version = 1

	KindPlanet = "planet"
	KindChunk  = "chunk"

	compressionLevel = 6
)

var ErrKindMismatch = errors.New("snapshot: kind mismatch")

type Header struct {
	Version     int    `json:"version"`
	Kind        string `json:"kind"`
	WorldID     string `json:"world_id"`
	CreatedUnix int64  `json:"created_unix"`
}

type DimsV1 struct {
	WorldWidth   int
	WorldHeight  int
	RegionWidth  int
	RegionHeight int
	ChunkSize    int
}

type PlanetV1 struct {
	Header Header

	Seed       string
	RNGSeed    uint64
	NoiseSeed  uint64
	Lacunarity float64
	Dims       DimsV1

	WaterHeight  uint32
	PlainsHeight uint32
	HillsHeight  uint32

	Landblocks []LandblockV1
	Rivers     []RiverV1
}

type LandblockV1 struct {
	Height         uint32
	Variance       uint32
	Class          uint8
	TemperatureC   float64
	RainfallMM     int
	BiomeIdx       int
	AirPressureKPA float64
	PrevailingWind uint8
	Neighbors      [4]NeighborV1
}

type NeighborV1 struct {
	Dir   uint8
	Index int
}

type RiverV1 struct {
	Name  string
	Start [2]int
	Steps [][2]int
}

type ChunkV1 struct {
	Header Header

	Region   [2]int
	Origin   [2]int
	Size     int
	Tiles    []uint16
	Material []uint32
}

// Info describes a written file.
type Info struct {
	Bytes  int
	SHA256 string
}

func WritePlanet(path string, p PlanetV1) (Info, error) {
	p.Header = stamp(p.Header, KindPlanet)
	return writeFile(path, p.Header, &p)
}

func ReadPlanet(path string) (PlanetV1, error) {
	var p PlanetV1
	err := readFile(path, KindPlanet, &p)
	return p, err
}

func WriteChunk(path string, c ChunkV1) (Info, error) {
	c.Header = stamp(c.Header, KindChunk)
	return writeFile(path, c.Header, &c)
}

func ReadChunk(path string) (ChunkV1, error) {
	var c ChunkV1
	err := readFile(path, KindChunk, &c)
	return c, err
}

// ReadHeader decodes only the header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	raw, err := os.ReadFile(path)
	if err != nil {
		return h, err
	}
	br := bufio.NewReader(flate.NewReader(bytes.NewReader(raw)))
	line, err := br.ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("decode header: %w", err)
	}
	return h, nil
}

// stamp fills the version and kind, and the write time unless the caller
// already set one.
func stamp(h Header, kind string) Header {
	h.Version = Version
	h.Kind = kind
	if h.CreatedUnix == 0 {
		h.CreatedUnix = time.Now().Unix()
	}
	return h
}

func encode(h Header, body any) ([]byte, error) {
	var buf bytes.Buffer
	fw, err := flate.NewWriter(&buf, compressionLevel)
	if err != nil {
		return nil, err
	}
	bw := bufio.NewWriterSize(fw, 64*1024)

	hb, _ := json.Marshal(h)
	if _, err := bw.Write(hb); err != nil {
		return nil, err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return nil, err
	}
	if err := gob.NewEncoder(bw).Encode(body); err != nil {
		return nil, fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return nil, err
	}
	if err := fw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeFile replaces path in one step through a temp file and rename.
func writeFile(path string, h Header, body any) (Info, error) {
	data, err := encode(h, body)
	if err != nil {
		return Info{}, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Info{}, err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return Info{}, err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return Info{}, err
	}
	sum := sha256.Sum256(data)
	return Info{Bytes: len(data), SHA256: hex.EncodeToString(sum[:])}, nil
}

func readFile(path, kind string, out any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	fr := flate.NewReader(bytes.NewReader(raw))
	defer fr.Close()
	br := bufio.NewReaderSize(fr, 64*1024)

	line, err := br.ReadBytes('\n')
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	var h Header
	if err := json.Unmarshal(line, &h); err != nil {
		return fmt.Errorf("decode header: %w", err)
	}
	if h.Kind != kind {
		return fmt.Errorf("%w: got %q want %q", ErrKindMismatch, h.Kind, kind)
	}
	if h.Version != Version {
		return fmt.Errorf("unsupported %s version %d", kind, h.Version)
	}
	if err := gob.NewDecoder(br).Decode(out); err != nil {
		return fmt.Errorf("gob decode: %w", err)
	}
	// The body must be the whole stream.
	if _, err := br.ReadByte(); err != io.EOF {
		return fmt.Errorf("trailing data after %s body", kind)
	}
	return nil
}
